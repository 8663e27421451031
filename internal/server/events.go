package server

import (
	"gemrush.dev/internal/sim/ids"
	"gemrush.dev/internal/sim/world"
)

// Events fan out from the hub to every session's buffered channel.
// Sessions filter them against their own view before anything reaches
// the wire.
type event interface{ event() }

type entityAdded struct {
	id     ids.ID
	entity world.Entity
}

type entityRemoved struct {
	id ids.ID
}

type entityMoved struct {
	id        ids.ID
	pos       world.TileCoords
	direction world.Direction
}

type tileChanged struct {
	pos  world.TileCoords
	tile world.Tile
}

func (entityAdded) event()   {}
func (entityRemoved) event() {}
func (entityMoved) event()   {}
func (tileChanged) event()   {}
