package world

import "fmt"

// Chunk dimensions in tiles. The tile grid is unbounded; chunks cover it in
// fixed 16x16 blocks.
const (
	ChunkWidth     = 16
	ChunkHeight    = 16
	ChunkTileCount = ChunkWidth * ChunkHeight
)

// TileCoords is an absolute tile position on the unbounded grid. Y grows
// downward.
type TileCoords struct {
	X, Y int32
}

// ChunkCoords identifies a 16x16 chunk. Negative tiles fall in negative
// chunks: tile -1 is in chunk -1, tile -17 in chunk -2.
type ChunkCoords struct {
	X, Y int32
}

// OffsetCoords is a position inside a chunk, each component in [0,16).
type OffsetCoords struct {
	X, Y int32
}

func floorDiv(a, b int32) int32 {
	// b > 0
	q := a / b
	r := a % b
	if r < 0 {
		q--
	}
	return q
}

func floorMod(a, b int32) int32 {
	// b > 0
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

// Chunk returns the coordinates of the chunk containing this tile.
func (t TileCoords) Chunk() ChunkCoords {
	return ChunkCoords{X: floorDiv(t.X, ChunkWidth), Y: floorDiv(t.Y, ChunkHeight)}
}

// Offset returns this tile's position within its chunk. Components are
// always non-negative, also for negative tiles.
func (t TileCoords) Offset() OffsetCoords {
	return OffsetCoords{X: floorMod(t.X, ChunkWidth), Y: floorMod(t.Y, ChunkHeight)}
}

// Tile reconstructs the absolute position of an offset within this chunk,
// the inverse of TileCoords.Chunk/Offset.
func (c ChunkCoords) Tile(o OffsetCoords) TileCoords {
	return TileCoords{X: c.X*ChunkWidth + o.X, Y: c.Y*ChunkHeight + o.Y}
}

// Index is the row-major position of this offset in a chunk's tile array,
// clamped into [0,256) so a corrupt offset can never index out of bounds.
func (o OffsetCoords) Index() int {
	i := int(o.Y)*ChunkWidth + int(o.X)
	if i < 0 {
		return 0
	}
	if i >= ChunkTileCount {
		return ChunkTileCount - 1
	}
	return i
}

func (t TileCoords) String() string {
	return fmt.Sprintf("(%d, %d)", t.X, t.Y)
}

func (c ChunkCoords) String() string {
	return fmt.Sprintf("(%d, %d)", c.X, c.Y)
}
