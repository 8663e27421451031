package world

import "encoding/binary"

// Gem is the collectable currency, freed from gem rocks by bomb blasts.
type Gem uint8

const (
	GemEmerald Gem = iota
	GemRuby
	GemDiamond

	gemCount
)

// Value is a gem's purchase power. Emeralds are the unit.
func (g Gem) Value() uint64 {
	switch g {
	case GemRuby:
		return 10
	case GemDiamond:
		return 100
	}
	return 1
}

func (g Gem) String() string {
	switch g {
	case GemEmerald:
		return "emerald"
	case GemRuby:
		return "ruby"
	case GemDiamond:
		return "diamond"
	}
	return "emerald"
}

// DecodeGem maps a wire/storage byte to a gem kind.
func DecodeGem(b byte) (Gem, bool) {
	if b >= byte(gemCount) {
		return GemEmerald, false
	}
	return Gem(b), true
}

// GemCollection counts gems per kind. The zero value is an empty, usable
// collection.
type GemCollection struct {
	counts [gemCount]uint32
}

func (c *GemCollection) Add(g Gem, n uint32) {
	if g < gemCount {
		c.counts[g] += n
	}
}

func (c *GemCollection) Count(g Gem) uint32 {
	if g >= gemCount {
		return 0
	}
	return c.counts[g]
}

// Value is the collection's total purchase power.
func (c *GemCollection) Value() uint64 {
	var total uint64
	for g := Gem(0); g < gemCount; g++ {
		total += uint64(c.counts[g]) * g.Value()
	}
	return total
}

// Spend deducts exactly cost from the collection, paying with the smallest
// gems first and breaking one larger gem into emerald change when needed.
// It reports false, leaving the collection untouched, when the total value
// cannot cover the cost.
func (c *GemCollection) Spend(cost uint64) bool {
	if c.Value() < cost {
		return false
	}
	remaining := cost
	for g := Gem(0); g < gemCount && remaining > 0; g++ {
		v := g.Value()
		use := remaining / v
		if uint64(c.counts[g]) < use {
			use = uint64(c.counts[g])
		}
		c.counts[g] -= uint32(use)
		remaining -= use * v
	}
	if remaining > 0 {
		// Break the smallest gem that covers the remainder and take the
		// difference back as emeralds.
		for g := Gem(1); g < gemCount; g++ {
			if c.counts[g] > 0 && g.Value() >= remaining {
				c.counts[g]--
				c.counts[GemEmerald] += uint32(g.Value() - remaining)
				remaining = 0
				break
			}
		}
	}
	return remaining == 0
}

// Each visits the non-zero gem kinds in fixed ascending order, so encoded
// forms are deterministic.
func (c *GemCollection) Each(fn func(Gem, uint32)) {
	for g := Gem(0); g < gemCount; g++ {
		if c.counts[g] > 0 {
			fn(g, c.counts[g])
		}
	}
}

// EncodeBlob packs the collection as (kind, count) varint pairs for
// storage and the wire.
func (c *GemCollection) EncodeBlob() []byte {
	var out []byte
	c.Each(func(g Gem, n uint32) {
		out = binary.AppendUvarint(out, uint64(g))
		out = binary.AppendUvarint(out, uint64(n))
	})
	return out
}

// DecodeGemBlob parses a stored gem blob. Malformed input yields an empty
// collection and ok=false so the caller can log and carry on.
func DecodeGemBlob(data []byte) (GemCollection, bool) {
	var c GemCollection
	for len(data) > 0 {
		kind, n := binary.Uvarint(data)
		if n <= 0 {
			return GemCollection{}, false
		}
		data = data[n:]
		count, n := binary.Uvarint(data)
		if n <= 0 {
			return GemCollection{}, false
		}
		data = data[n:]
		if kind >= uint64(gemCount) || count > uint64(^uint32(0)) {
			return GemCollection{}, false
		}
		c.Add(Gem(kind), uint32(count))
	}
	return c, true
}
