// Package protocol defines the wire messages exchanged between the server
// and its clients, and their binary codec. Every websocket frame carries
// exactly one message: a single tag byte followed by the fields.
package protocol

import (
	"gemrush.dev/internal/sim/ids"
	"gemrush.dev/internal/sim/world"
)

// Client -> server tags.
const (
	TagHello byte = iota + 1
	TagRequestChunk
	TagMove
	TagPlaceBomb
	TagDetonateBombs
	TagPurchaseBombs
)

// Server -> client tags.
const (
	TagWelcome byte = iota + 64
	TagProvideChunk
	TagShouldUnloadChunk
	TagChangeTile
	TagYourEntityMoved
	TagMoveEntity
	TagProvideEntity
	TagShouldUnloadEntity
	TagYouCollectedGems
)

// ToServer is a message a client sends to the server.
type ToServer interface{ toServer() }

// FromServer is a message the server sends to a client.
type FromServer interface{ fromServer() }

// Version is the wire protocol version. Hello carries it; the server
// refuses mismatched clients during the handshake.
const Version byte = 1

// HELLO (client -> server): opens a connection. Token is the identity
// token from an earlier session, or empty on a first join.
type Hello struct {
	Version byte
	Token   string
}

// REQUEST_CHUNK (client -> server)
type RequestChunk struct {
	Coords world.ChunkCoords
}

// MOVE (client -> server): step the client's own entity one tile. Request
// numbers strictly increase per connection; the server echoes a number
// back only when it rejects that move.
type Move struct {
	Request   uint32
	Direction world.Direction
}

// PLACE_BOMB (client -> server): put one bomb from the inventory down at
// the entity's current tile.
type PlaceBomb struct{}

// DETONATE_BOMBS (client -> server): set off every bomb the entity has
// placed.
type DetonateBombs struct{}

// PURCHASE_BOMBS (client -> server)
type PurchaseBombs struct {
	Quantity uint32
}

// WELCOME (server -> client): first message on a connection. Token is the
// client's identity token (freshly minted when Hello carried none), ID and
// Entity the authoritative snapshot of the client's own entity.
type Welcome struct {
	Token  string
	ID     ids.ID
	Entity world.Entity
}

// PROVIDE_CHUNK (server -> client): one whole chunk.
type ProvideChunk struct {
	Chunk world.Chunk
}

// SHOULD_UNLOAD_CHUNK (server -> client): drop a chunk from the replica.
type ShouldUnloadChunk struct {
	Coords world.ChunkCoords
}

// CHANGE_TILE (server -> client): a single tile mutation.
type ChangeTile struct {
	Pos  world.TileCoords
	Tile world.Tile
}

// YOUR_ENTITY_MOVED (server -> client): correction for a rejected move.
// Pos is the authoritative position after the named request.
type YourEntityMoved struct {
	Request uint32
	Pos     world.TileCoords
}

// MOVE_ENTITY (server -> client): another entity's committed move.
type MoveEntity struct {
	ID        ids.ID
	Pos       world.TileCoords
	Direction world.Direction
}

// PROVIDE_ENTITY (server -> client): an entity entered the client's view.
type ProvideEntity struct {
	ID     ids.ID
	Entity world.Entity
}

// SHOULD_UNLOAD_ENTITY (server -> client): an entity left the client's
// view.
type ShouldUnloadEntity struct {
	ID ids.ID
}

// YOU_COLLECTED_GEMS (server -> client): gems freed by the client's own
// detonation.
type YouCollectedGems struct {
	Gem      world.Gem
	Quantity uint32
}

func (Hello) toServer()         {}
func (RequestChunk) toServer()  {}
func (Move) toServer()          {}
func (PlaceBomb) toServer()     {}
func (DetonateBombs) toServer() {}
func (PurchaseBombs) toServer() {}

func (Welcome) fromServer()            {}
func (ProvideChunk) fromServer()       {}
func (ShouldUnloadChunk) fromServer()  {}
func (ChangeTile) fromServer()         {}
func (YourEntityMoved) fromServer()    {}
func (MoveEntity) fromServer()         {}
func (ProvideEntity) fromServer()      {}
func (ShouldUnloadEntity) fromServer() {}
func (YouCollectedGems) fromServer()   {}
