package world

// Chunk is a fixed 16x16 block of tiles. The zero value of every slot is
// grass.
type Chunk struct {
	Coords ChunkCoords
	Tiles  [ChunkTileCount]Tile
}

func NewChunk(coords ChunkCoords) *Chunk {
	return &Chunk{Coords: coords}
}

func (c *Chunk) TileAt(o OffsetCoords) Tile {
	return c.Tiles[o.Index()]
}

func (c *Chunk) SetTileAt(o OffsetCoords, t Tile) {
	c.Tiles[o.Index()] = t
}

// EncodeTiles returns the chunk's tiles as 256 raw bytes in row-major
// order.
func (c *Chunk) EncodeTiles() []byte {
	out := make([]byte, ChunkTileCount)
	for i, t := range c.Tiles {
		out[i] = byte(t)
	}
	return out
}

// DecodeTiles fills the chunk from a stored tile blob, repairing bad input
// in place: short blobs pad with grass, long ones truncate, unknown bytes
// decode to grass. It reports whether any repair was needed so the caller
// can log a warning.
func (c *Chunk) DecodeTiles(data []byte) (repaired bool) {
	if len(data) != ChunkTileCount {
		repaired = true
	}
	n := len(data)
	if n > ChunkTileCount {
		n = ChunkTileCount
	}
	for i := 0; i < n; i++ {
		t := DecodeTile(data[i])
		if byte(t) != data[i] {
			repaired = true
		}
		c.Tiles[i] = t
	}
	for i := n; i < ChunkTileCount; i++ {
		c.Tiles[i] = TileGrass
	}
	return repaired
}
