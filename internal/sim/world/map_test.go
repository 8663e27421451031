package world

import (
	"testing"

	"gemrush.dev/internal/sim/ids"
)

type testMap struct {
	chunks   map[ChunkCoords]*Chunk
	entities map[ids.ID]*Entity
}

func newTestMap() *testMap {
	return &testMap{
		chunks:   make(map[ChunkCoords]*Chunk),
		entities: make(map[ids.ID]*Entity),
	}
}

func (m *testMap) ChunkAt(c ChunkCoords) (*Chunk, bool) {
	chunk, ok := m.chunks[c]
	return chunk, ok
}

func (m *testMap) PutChunk(c *Chunk)              { m.chunks[c.Coords] = c }
func (m *testMap) RemoveChunk(c ChunkCoords)      { delete(m.chunks, c) }
func (m *testMap) PutEntity(id ids.ID, e *Entity) { m.entities[id] = e }

func (m *testMap) Entity(id ids.ID) (*Entity, bool) {
	e, ok := m.entities[id]
	return e, ok
}

func (m *testMap) RemoveEntity(id ids.ID) (*Entity, bool) {
	e, ok := m.entities[id]
	delete(m.entities, id)
	return e, ok
}

func (m *testMap) EachEntity(fn func(ids.ID, *Entity)) {
	for id, e := range m.entities {
		fn(id, e)
	}
}

func TestTileAt_MissingChunk(t *testing.T) {
	m := newTestMap()
	if _, ok := TileAt(m, TileCoords{3, 3}); ok {
		t.Fatalf("tile read from missing chunk reported ok")
	}
	m.PutChunk(NewChunk(ChunkCoords{0, 0}))
	tile, ok := TileAt(m, TileCoords{3, 3})
	if !ok || tile != TileGrass {
		t.Fatalf("tile read: got %v %v", tile, ok)
	}
}

func TestPositionFree(t *testing.T) {
	m := newTestMap()
	pos := TileCoords{4, 4}

	// Unloaded terrain is never free.
	if PositionFree(m, pos) {
		t.Fatalf("unloaded position reported free")
	}

	m.PutChunk(NewChunk(ChunkCoords{0, 0}))
	if !PositionFree(m, pos) {
		t.Fatalf("open grass reported blocked")
	}

	SetTileAt(m, pos, TileWater)
	if PositionFree(m, pos) {
		t.Fatalf("water reported free")
	}

	SetTileAt(m, pos, TileGrass)
	m.PutEntity(ids.ID(1), &Entity{Pos: pos})
	if PositionFree(m, pos) {
		t.Fatalf("occupied tile reported free")
	}
}
