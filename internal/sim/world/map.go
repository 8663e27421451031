package world

import "gemrush.dev/internal/sim/ids"

// Map is the world view shared by the server's authoritative store and the
// client's partial replica: loaded chunks plus an entity registry.
//
// Implementations are not safe for concurrent use; the server guards its
// map with the hub lock and the client runs single-threaded.
type Map interface {
	ChunkAt(ChunkCoords) (*Chunk, bool)
	PutChunk(*Chunk)
	RemoveChunk(ChunkCoords)

	Entity(ids.ID) (*Entity, bool)
	PutEntity(ids.ID, *Entity)
	RemoveEntity(ids.ID) (*Entity, bool)
	EachEntity(func(ids.ID, *Entity))
}

// TileAt reads a tile through m. ok is false when the containing chunk is
// not loaded.
func TileAt(m Map, pos TileCoords) (Tile, bool) {
	chunk, ok := m.ChunkAt(pos.Chunk())
	if !ok {
		return TileGrass, false
	}
	return chunk.TileAt(pos.Offset()), true
}

// SetTileAt writes a tile through m, reporting false when the containing
// chunk is not loaded.
func SetTileAt(m Map, pos TileCoords, t Tile) bool {
	chunk, ok := m.ChunkAt(pos.Chunk())
	if !ok {
		return false
	}
	chunk.SetTileAt(pos.Offset(), t)
	return true
}

// PositionFree reports whether an entity may stand at pos: the tile must
// be loaded, non-blocking, and unoccupied. Unloaded terrain counts as not
// free, so nobody walks into the unknown.
func PositionFree(m Map, pos TileCoords) bool {
	t, ok := TileAt(m, pos)
	if !ok || t.Blocking() {
		return false
	}
	free := true
	m.EachEntity(func(_ ids.ID, e *Entity) {
		if e.Pos == pos {
			free = false
		}
	})
	return free
}
