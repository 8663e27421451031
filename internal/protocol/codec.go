package protocol

import (
	"encoding/binary"
	"math"

	"gemrush.dev/internal/sim/ids"
	"gemrush.dev/internal/sim/world"
)

// Wire limits. Tokens are 32 hex chars and the gem/inventory blobs a
// handful of varint pairs; anything near these caps is a hostile frame.
const (
	maxStringLen = 256
	maxBlobLen   = 256
)

func appendInt32(out []byte, v int32) []byte {
	return binary.AppendVarint(out, int64(v))
}

func appendUint32(out []byte, v uint32) []byte {
	return binary.AppendUvarint(out, uint64(v))
}

func appendString(out []byte, s string) []byte {
	out = binary.AppendUvarint(out, uint64(len(s)))
	return append(out, s...)
}

func appendBlob(out, blob []byte) []byte {
	out = binary.AppendUvarint(out, uint64(len(blob)))
	return append(out, blob...)
}

func appendTileCoords(out []byte, t world.TileCoords) []byte {
	out = appendInt32(out, t.X)
	return appendInt32(out, t.Y)
}

func appendChunkCoords(out []byte, c world.ChunkCoords) []byte {
	out = appendInt32(out, c.X)
	return appendInt32(out, c.Y)
}

func appendEntity(out []byte, e *world.Entity) []byte {
	out = appendTileCoords(out, e.Pos)
	out = append(out,
		byte(e.Direction),
		byte(e.FacialExpression),
		byte(e.HairStyle),
		byte(e.ClothingColour),
		byte(e.SkinColour),
		byte(e.HairColour),
	)
	out = appendBlob(out, e.Gems.EncodeBlob())
	out = appendBlob(out, e.Inventory.EncodeBlob())
	return appendUint32(out, e.BombsPlaced)
}

// EncodeToServer renders one client message as a wire frame. Encoding
// cannot fail; unknown message types yield nil, which no caller produces.
func EncodeToServer(msg ToServer) []byte {
	switch m := msg.(type) {
	case Hello:
		out := []byte{TagHello, m.Version}
		return appendString(out, m.Token)
	case RequestChunk:
		return appendChunkCoords([]byte{TagRequestChunk}, m.Coords)
	case Move:
		out := appendUint32([]byte{TagMove}, m.Request)
		return append(out, byte(m.Direction))
	case PlaceBomb:
		return []byte{TagPlaceBomb}
	case DetonateBombs:
		return []byte{TagDetonateBombs}
	case PurchaseBombs:
		return appendUint32([]byte{TagPurchaseBombs}, m.Quantity)
	}
	return nil
}

// EncodeFromServer renders one server message as a wire frame.
func EncodeFromServer(msg FromServer) []byte {
	switch m := msg.(type) {
	case Welcome:
		out := appendString([]byte{TagWelcome}, m.Token)
		out = binary.AppendUvarint(out, uint64(m.ID))
		return appendEntity(out, &m.Entity)
	case ProvideChunk:
		out := appendChunkCoords([]byte{TagProvideChunk}, m.Chunk.Coords)
		return append(out, m.Chunk.EncodeTiles()...)
	case ShouldUnloadChunk:
		return appendChunkCoords([]byte{TagShouldUnloadChunk}, m.Coords)
	case ChangeTile:
		out := appendTileCoords([]byte{TagChangeTile}, m.Pos)
		return append(out, byte(m.Tile))
	case YourEntityMoved:
		out := appendUint32([]byte{TagYourEntityMoved}, m.Request)
		return appendTileCoords(out, m.Pos)
	case MoveEntity:
		out := binary.AppendUvarint([]byte{TagMoveEntity}, uint64(m.ID))
		out = appendTileCoords(out, m.Pos)
		return append(out, byte(m.Direction))
	case ProvideEntity:
		out := binary.AppendUvarint([]byte{TagProvideEntity}, uint64(m.ID))
		return appendEntity(out, &m.Entity)
	case ShouldUnloadEntity:
		return binary.AppendUvarint([]byte{TagShouldUnloadEntity}, uint64(m.ID))
	case YouCollectedGems:
		out := append([]byte{TagYouCollectedGems}, byte(m.Gem))
		return appendUint32(out, m.Quantity)
	}
	return nil
}

// reader consumes a frame's payload, remembering the first failure.
// Storage decoding repairs bad values; the wire rejects them instead, so
// every out-of-domain byte fails the whole frame.
type reader struct {
	tag  byte
	data []byte
	err  *DecodeError
}

func (r *reader) fail(format string, args ...any) {
	if r.err == nil {
		r.err = decodeErr(r.tag, format, args...)
	}
}

func (r *reader) byte() byte {
	if r.err != nil {
		return 0
	}
	if len(r.data) == 0 {
		r.fail("truncated frame")
		return 0
	}
	b := r.data[0]
	r.data = r.data[1:]
	return b
}

func (r *reader) bytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	if len(r.data) < n {
		r.fail("truncated frame: want %d bytes, have %d", n, len(r.data))
		return nil
	}
	b := r.data[:n]
	r.data = r.data[n:]
	return b
}

func (r *reader) uvarint() uint64 {
	if r.err != nil {
		return 0
	}
	v, n := binary.Uvarint(r.data)
	if n <= 0 {
		r.fail("bad varint")
		return 0
	}
	r.data = r.data[n:]
	return v
}

func (r *reader) uint32() uint32 {
	v := r.uvarint()
	if r.err == nil && v > math.MaxUint32 {
		r.fail("value %d overflows uint32", v)
	}
	return uint32(v)
}

func (r *reader) int32() int32 {
	if r.err != nil {
		return 0
	}
	v, n := binary.Varint(r.data)
	if n <= 0 {
		r.fail("bad varint")
		return 0
	}
	r.data = r.data[n:]
	if v < math.MinInt32 || v > math.MaxInt32 {
		r.fail("value %d overflows int32", v)
		return 0
	}
	return int32(v)
}

func (r *reader) str() string {
	n := r.uvarint()
	if r.err != nil {
		return ""
	}
	if n > maxStringLen {
		r.fail("string length %d over limit", n)
		return ""
	}
	return string(r.bytes(int(n)))
}

func (r *reader) blob() []byte {
	n := r.uvarint()
	if r.err != nil {
		return nil
	}
	if n > maxBlobLen {
		r.fail("blob length %d over limit", n)
		return nil
	}
	return r.bytes(int(n))
}

func (r *reader) id() ids.ID {
	return ids.ID(r.uvarint())
}

func (r *reader) tileCoords() world.TileCoords {
	x := r.int32()
	y := r.int32()
	return world.TileCoords{X: x, Y: y}
}

func (r *reader) chunkCoords() world.ChunkCoords {
	x := r.int32()
	y := r.int32()
	return world.ChunkCoords{X: x, Y: y}
}

func (r *reader) direction() world.Direction {
	b := r.byte()
	if r.err == nil && b > byte(world.DirectionRight) {
		r.fail("bad direction %d", b)
	}
	return world.Direction(b)
}

func (r *reader) tile() world.Tile {
	b := r.byte()
	if r.err == nil && !world.ValidTile(b) {
		r.fail("bad tile %d", b)
	}
	return world.Tile(b)
}

func (r *reader) gem() world.Gem {
	b := r.byte()
	g, ok := world.DecodeGem(b)
	if r.err == nil && !ok {
		r.fail("bad gem %d", b)
	}
	return g
}

// cosmeticByte validates an enum byte with its clamping decoder: a value
// the decoder would alter is out of domain.
func cosmeticByte(r *reader, clamped byte, raw byte, what string) {
	if r.err == nil && clamped != raw {
		r.fail("bad %s %d", what, raw)
	}
}

func (r *reader) entity() world.Entity {
	var e world.Entity
	e.Pos = r.tileCoords()
	e.Direction = r.direction()

	b := r.byte()
	e.FacialExpression = world.DecodeFacialExpression(b)
	cosmeticByte(r, byte(e.FacialExpression), b, "facial expression")
	b = r.byte()
	e.HairStyle = world.DecodeHairStyle(b)
	cosmeticByte(r, byte(e.HairStyle), b, "hair style")
	b = r.byte()
	e.ClothingColour = world.DecodeClothingColour(b)
	cosmeticByte(r, byte(e.ClothingColour), b, "clothing colour")
	b = r.byte()
	e.SkinColour = world.DecodeSkinColour(b)
	cosmeticByte(r, byte(e.SkinColour), b, "skin colour")
	b = r.byte()
	e.HairColour = world.DecodeHairColour(b)
	cosmeticByte(r, byte(e.HairColour), b, "hair colour")

	gems, ok := world.DecodeGemBlob(r.blob())
	if r.err == nil && !ok {
		r.fail("bad gem blob")
	}
	e.Gems = gems
	inv, ok := world.DecodeInventoryBlob(r.blob())
	if r.err == nil && !ok {
		r.fail("bad inventory blob")
	}
	e.Inventory = inv
	e.BombsPlaced = r.uint32()
	return e
}

func (r *reader) chunk(coords world.ChunkCoords) world.Chunk {
	chunk := world.Chunk{Coords: coords}
	raw := r.bytes(world.ChunkTileCount)
	if r.err != nil {
		return chunk
	}
	for i, b := range raw {
		if !world.ValidTile(b) {
			r.fail("bad tile %d at index %d", b, i)
			return chunk
		}
		chunk.Tiles[i] = world.Tile(b)
	}
	return chunk
}

func (r *reader) finish() error {
	if r.err != nil {
		return r.err
	}
	if len(r.data) != 0 {
		return decodeErr(r.tag, "%d trailing bytes", len(r.data))
	}
	return nil
}

// DecodeToServer parses one client frame.
func DecodeToServer(frame []byte) (ToServer, error) {
	if len(frame) == 0 {
		return nil, decodeErr(0, "empty frame")
	}
	r := &reader{tag: frame[0], data: frame[1:]}
	var msg ToServer
	switch r.tag {
	case TagHello:
		m := Hello{Version: r.byte()}
		m.Token = r.str()
		msg = m
	case TagRequestChunk:
		msg = RequestChunk{Coords: r.chunkCoords()}
	case TagMove:
		m := Move{Request: r.uint32()}
		m.Direction = r.direction()
		msg = m
	case TagPlaceBomb:
		msg = PlaceBomb{}
	case TagDetonateBombs:
		msg = DetonateBombs{}
	case TagPurchaseBombs:
		msg = PurchaseBombs{Quantity: r.uint32()}
	default:
		return nil, decodeErr(r.tag, "unknown client message tag")
	}
	if err := r.finish(); err != nil {
		return nil, err
	}
	return msg, nil
}

// DecodeFromServer parses one server frame.
func DecodeFromServer(frame []byte) (FromServer, error) {
	if len(frame) == 0 {
		return nil, decodeErr(0, "empty frame")
	}
	r := &reader{tag: frame[0], data: frame[1:]}
	var msg FromServer
	switch r.tag {
	case TagWelcome:
		m := Welcome{Token: r.str()}
		m.ID = r.id()
		m.Entity = r.entity()
		msg = m
	case TagProvideChunk:
		coords := r.chunkCoords()
		msg = ProvideChunk{Chunk: r.chunk(coords)}
	case TagShouldUnloadChunk:
		msg = ShouldUnloadChunk{Coords: r.chunkCoords()}
	case TagChangeTile:
		m := ChangeTile{Pos: r.tileCoords()}
		m.Tile = r.tile()
		msg = m
	case TagYourEntityMoved:
		m := YourEntityMoved{Request: r.uint32()}
		m.Pos = r.tileCoords()
		msg = m
	case TagMoveEntity:
		m := MoveEntity{ID: r.id()}
		m.Pos = r.tileCoords()
		m.Direction = r.direction()
		msg = m
	case TagProvideEntity:
		m := ProvideEntity{ID: r.id()}
		m.Entity = r.entity()
		msg = m
	case TagShouldUnloadEntity:
		msg = ShouldUnloadEntity{ID: r.id()}
	case TagYouCollectedGems:
		m := YouCollectedGems{Gem: r.gem()}
		m.Quantity = r.uint32()
		msg = m
	default:
		return nil, decodeErr(r.tag, "unknown server message tag")
	}
	if err := r.finish(); err != nil {
		return nil, err
	}
	return msg, nil
}
