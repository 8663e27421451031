package world

import "encoding/binary"

// Item is a carryable inventory item.
type Item uint8

const (
	ItemBomb Item = iota

	itemCount
)

// BombPrice is what one bomb costs, in gem value. The server charges it
// and clients mirror the debit locally, so both sides share the number.
const BombPrice = 2

func (i Item) String() string {
	switch i {
	case ItemBomb:
		return "bomb"
	}
	return "bomb"
}

// DecodeItem maps a wire/storage byte to an item kind.
func DecodeItem(b byte) (Item, bool) {
	if b >= byte(itemCount) {
		return ItemBomb, false
	}
	return Item(b), true
}

// Inventory counts items per kind. The zero value is an empty, usable
// inventory.
type Inventory struct {
	counts [itemCount]uint32
}

func (inv *Inventory) Give(i Item, n uint32) {
	if i < itemCount {
		inv.counts[i] += n
	}
}

// Take removes one of the given item, reporting false when none is held.
func (inv *Inventory) Take(i Item) bool {
	if i >= itemCount || inv.counts[i] == 0 {
		return false
	}
	inv.counts[i]--
	return true
}

func (inv *Inventory) Count(i Item) uint32 {
	if i >= itemCount {
		return 0
	}
	return inv.counts[i]
}

// Each visits the non-zero item kinds in fixed ascending order.
func (inv *Inventory) Each(fn func(Item, uint32)) {
	for i := Item(0); i < itemCount; i++ {
		if inv.counts[i] > 0 {
			fn(i, inv.counts[i])
		}
	}
}

// EncodeBlob packs the inventory as (kind, count) varint pairs.
func (inv *Inventory) EncodeBlob() []byte {
	var out []byte
	inv.Each(func(i Item, n uint32) {
		out = binary.AppendUvarint(out, uint64(i))
		out = binary.AppendUvarint(out, uint64(n))
	})
	return out
}

// DecodeInventoryBlob parses a stored inventory blob. Malformed input
// yields an empty inventory and ok=false.
func DecodeInventoryBlob(data []byte) (Inventory, bool) {
	var inv Inventory
	for len(data) > 0 {
		kind, n := binary.Uvarint(data)
		if n <= 0 {
			return Inventory{}, false
		}
		data = data[n:]
		count, n := binary.Uvarint(data)
		if n <= 0 {
			return Inventory{}, false
		}
		data = data[n:]
		if kind >= uint64(itemCount) || count > uint64(^uint32(0)) {
			return Inventory{}, false
		}
		inv.Give(Item(kind), uint32(count))
	}
	return inv, true
}
