package server

import (
	"gemrush.dev/internal/sim/ids"
	"gemrush.dev/internal/sim/world"
)

// Map is the authoritative world state: every loaded chunk plus every
// connected entity. It is not safe for concurrent use; the Hub's mutex
// guards all access.
type Map struct {
	chunks   map[world.ChunkCoords]*world.Chunk
	entities map[ids.ID]*world.Entity
}

var _ world.Map = (*Map)(nil)

func NewMap() *Map {
	return &Map{
		chunks:   map[world.ChunkCoords]*world.Chunk{},
		entities: map[ids.ID]*world.Entity{},
	}
}

func (m *Map) ChunkAt(c world.ChunkCoords) (*world.Chunk, bool) {
	chunk, ok := m.chunks[c]
	return chunk, ok
}

func (m *Map) PutChunk(chunk *world.Chunk) {
	m.chunks[chunk.Coords] = chunk
}

func (m *Map) RemoveChunk(c world.ChunkCoords) {
	delete(m.chunks, c)
}

func (m *Map) Entity(id ids.ID) (*world.Entity, bool) {
	e, ok := m.entities[id]
	return e, ok
}

func (m *Map) PutEntity(id ids.ID, e *world.Entity) {
	m.entities[id] = e
}

func (m *Map) RemoveEntity(id ids.ID) (*world.Entity, bool) {
	e, ok := m.entities[id]
	if ok {
		delete(m.entities, id)
	}
	return e, ok
}

func (m *Map) EachEntity(fn func(ids.ID, *world.Entity)) {
	for id, e := range m.entities {
		fn(id, e)
	}
}

func (m *Map) ChunkCount() int  { return len(m.chunks) }
func (m *Map) EntityCount() int { return len(m.entities) }
