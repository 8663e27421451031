// Package worldtest holds terrain fixtures and the cross-package
// behavior tests that belong to neither map implementation alone.
// Builders hand back chunks with known tiles, so tests assert against
// terrain they placed instead of generator output.
package worldtest

import (
	"gemrush.dev/internal/sim/world"
)

// FilledChunk returns a chunk at coords with every slot set to fill.
func FilledChunk(coords world.ChunkCoords, fill world.Tile) *world.Chunk {
	c := world.NewChunk(coords)
	for i := range c.Tiles {
		c.Tiles[i] = fill
	}
	return c
}

// Chunk returns a grass chunk at coords with tiles placed on top.
func Chunk(coords world.ChunkCoords, tiles map[world.OffsetCoords]world.Tile) *world.Chunk {
	c := world.NewChunk(coords)
	for o, t := range tiles {
		c.SetTileAt(o, t)
	}
	return c
}

// Neighborhood returns grass chunks covering the 3x3 block centered on
// center: enough terrain for an entity to step any direction from the
// middle chunk without touching unloaded ground.
func Neighborhood(center world.ChunkCoords) []*world.Chunk {
	var out []*world.Chunk
	for dy := int32(-1); dy <= 1; dy++ {
		for dx := int32(-1); dx <= 1; dx++ {
			out = append(out, world.NewChunk(world.ChunkCoords{X: center.X + dx, Y: center.Y + dy}))
		}
	}
	return out
}
