// Package client is the replica side of the world: a partial map
// streamed from the server, remote entity copies, and the predicted
// local player. Everything here runs on one goroutine; there are no
// locks.
package client

import (
	"gemrush.dev/internal/sim/ids"
	"gemrush.dev/internal/sim/world"
)

// ClientMap is the partial replica a client holds. Reading terrain the
// server has not provided marks the chunk as needed; FlushRequests
// turns the needed set into RequestChunk messages exactly once per
// chunk.
type ClientMap struct {
	chunks   map[world.ChunkCoords]*world.Chunk
	entities map[ids.ID]*world.Entity

	needed    map[world.ChunkCoords]struct{}
	requested map[world.ChunkCoords]struct{}
}

var _ world.Map = (*ClientMap)(nil)

func NewClientMap() *ClientMap {
	return &ClientMap{
		chunks:    map[world.ChunkCoords]*world.Chunk{},
		entities:  map[ids.ID]*world.Entity{},
		needed:    map[world.ChunkCoords]struct{}{},
		requested: map[world.ChunkCoords]struct{}{},
	}
}

// ChunkAt returns the chunk when loaded. A miss records the chunk as
// needed unless a request is already outstanding, so the next flush
// asks for it.
func (m *ClientMap) ChunkAt(c world.ChunkCoords) (*world.Chunk, bool) {
	chunk, ok := m.chunks[c]
	if !ok {
		if _, outstanding := m.requested[c]; !outstanding {
			m.needed[c] = struct{}{}
		}
	}
	return chunk, ok
}

// Loaded reports chunk presence without touching the needed set.
func (m *ClientMap) Loaded(c world.ChunkCoords) bool {
	_, ok := m.chunks[c]
	return ok
}

func (m *ClientMap) PutChunk(chunk *world.Chunk) {
	m.chunks[chunk.Coords] = chunk
	delete(m.needed, chunk.Coords)
	delete(m.requested, chunk.Coords)
}

func (m *ClientMap) RemoveChunk(c world.ChunkCoords) {
	delete(m.chunks, c)
	delete(m.needed, c)
	delete(m.requested, c)
}

// FlushRequests calls send for every chunk that is needed but not yet
// requested, marking each as outstanding. It stops at the first send
// error.
func (m *ClientMap) FlushRequests(send func(world.ChunkCoords) error) error {
	for c := range m.needed {
		if _, outstanding := m.requested[c]; outstanding {
			delete(m.needed, c)
			continue
		}
		if err := send(c); err != nil {
			return err
		}
		m.requested[c] = struct{}{}
		delete(m.needed, c)
	}
	return nil
}

func (m *ClientMap) Entity(id ids.ID) (*world.Entity, bool) {
	e, ok := m.entities[id]
	return e, ok
}

func (m *ClientMap) PutEntity(id ids.ID, e *world.Entity) {
	m.entities[id] = e
}

func (m *ClientMap) RemoveEntity(id ids.ID) (*world.Entity, bool) {
	e, ok := m.entities[id]
	if ok {
		delete(m.entities, id)
	}
	return e, ok
}

func (m *ClientMap) EachEntity(fn func(ids.ID, *world.Entity)) {
	for id, e := range m.entities {
		fn(id, e)
	}
}

func (m *ClientMap) ChunkCount() int  { return len(m.chunks) }
func (m *ClientMap) EntityCount() int { return len(m.entities) }
