package client

import (
	"log"
	"os"
	"testing"
	"time"

	"gemrush.dev/internal/protocol"
	"gemrush.dev/internal/sim/ids"
	"gemrush.dev/internal/sim/world"
)

func newTestClient() *Client {
	entity := &world.Entity{Pos: world.TileCoords{X: 8, Y: 8}}
	return &Client{
		log:          log.New(os.Stdout, "[test] ", 0),
		Token:        "token",
		Map:          NewClientMap(),
		Player:       NewPlayerEntity(1, entity, 100*time.Millisecond),
		walkDuration: 100 * time.Millisecond,
		tweens:       map[ids.ID]Tween{},
	}
}

func TestApplyChunkAndTileMessages(t *testing.T) {
	c := newTestClient()
	base := time.Unix(1000, 0)

	chunk := world.NewChunk(world.ChunkCoords{})
	c.apply(protocol.ProvideChunk{Chunk: *chunk}, base)
	if !c.Map.Loaded(world.ChunkCoords{}) {
		t.Fatal("chunk not installed")
	}

	pos := world.TileCoords{X: 5, Y: 5}
	c.apply(protocol.ChangeTile{Pos: pos, Tile: world.TileRockSmashed}, base)
	if tile, ok := world.TileAt(c.Map, pos); !ok || tile != world.TileRockSmashed {
		t.Fatalf("tile = %v ok=%v after change", tile, ok)
	}

	// A change for terrain the replica dropped is ignored without
	// wanting the chunk back.
	c.apply(protocol.ChangeTile{Pos: world.TileCoords{X: 200, Y: 200}, Tile: world.TileDirt}, base)
	var sent []world.ChunkCoords
	if err := c.Map.FlushRequests(func(cc world.ChunkCoords) error {
		sent = append(sent, cc)
		return nil
	}); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if len(sent) != 0 {
		t.Fatalf("stray tile change requested chunks: %v", sent)
	}

	c.apply(protocol.ShouldUnloadChunk{Coords: world.ChunkCoords{}}, base)
	if c.Map.Loaded(world.ChunkCoords{}) {
		t.Fatal("chunk still loaded after unload")
	}
}

func TestApplyEntityMessages(t *testing.T) {
	c := newTestClient()
	base := time.Unix(1000, 0)

	other := ids.ID(2)
	c.apply(protocol.ProvideEntity{ID: other, Entity: world.Entity{Pos: world.TileCoords{X: 9, Y: 9}}}, base)
	if c.Map.EntityCount() != 1 {
		t.Fatalf("entities = %d, want 1", c.Map.EntityCount())
	}

	c.apply(protocol.MoveEntity{ID: other, Pos: world.TileCoords{X: 9, Y: 10}, Direction: world.DirectionDown}, base)
	entity, ok := c.Map.Entity(other)
	if !ok || entity.Pos != (world.TileCoords{X: 9, Y: 10}) {
		t.Fatalf("entity pos = %v after move", entity.Pos)
	}
	tw, ok := c.RemoteTween(other)
	if !ok {
		t.Fatal("no tween for remote move")
	}
	if _, y := tw.Pos(base.Add(50 * time.Millisecond)); y != 9.5 {
		t.Fatalf("tween y = %v at halfway, want 9.5", y)
	}

	// Moves for entities never provided resolve to nothing.
	c.apply(protocol.MoveEntity{ID: ids.ID(99), Pos: world.TileCoords{X: 1, Y: 1}, Direction: world.DirectionUp}, base)
	if c.Map.EntityCount() != 1 {
		t.Fatalf("entities = %d after stray move, want 1", c.Map.EntityCount())
	}

	c.Update(base.Add(200 * time.Millisecond))
	if _, ok := c.RemoteTween(other); ok {
		t.Fatal("tween survived past its duration")
	}

	c.apply(protocol.ShouldUnloadEntity{ID: other}, base)
	if c.Map.EntityCount() != 0 {
		t.Fatalf("entities = %d after unload, want 0", c.Map.EntityCount())
	}
}

func TestApplyCorrectionAndGems(t *testing.T) {
	c := newTestClient()
	base := time.Unix(1000, 0)
	c.Map.PutChunk(world.NewChunk(world.ChunkCoords{}))

	msg, ok := c.Player.MoveTowards(world.DirectionRight, c.Map, base)
	if !ok {
		t.Fatal("move refused")
	}
	c.apply(protocol.YourEntityMoved{Request: msg.Request, Pos: world.TileCoords{X: 8, Y: 8}}, base.Add(30*time.Millisecond))
	if c.Player.State() != MoveCorrected {
		t.Fatalf("state = %v after correction", c.Player.State())
	}
	if c.Player.Entity.Pos != (world.TileCoords{X: 8, Y: 8}) {
		t.Fatalf("pos = %v after correction", c.Player.Entity.Pos)
	}

	c.apply(protocol.YouCollectedGems{Gem: world.GemRuby, Quantity: 2}, base)
	if got := c.Player.Entity.Gems.Count(world.GemRuby); got != 2 {
		t.Fatalf("rubies = %d, want 2", got)
	}
}

func TestPurchaseMirrorsServerRule(t *testing.T) {
	c := newTestClient()
	c.Player.Entity.Gems.Add(world.GemRuby, 1)

	// Insufficient funds: no message, no mutation. send would panic on
	// the nil conn, so reaching it at all is the bug.
	if err := c.PurchaseBombs(100); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if got := c.Player.Entity.Inventory.Count(world.ItemBomb); got != 0 {
		t.Fatalf("bombs = %d after refused purchase, want 0", got)
	}
	if got := c.Player.Entity.Gems.Value(); got != 10 {
		t.Fatalf("gem value = %d after refused purchase, want 10", got)
	}

	// No bombs held: placing is refused locally the same way.
	if err := c.PlaceBomb(); err != nil {
		t.Fatalf("place: %v", err)
	}
	if c.Player.Entity.BombsPlaced != 0 {
		t.Fatalf("bombs placed = %d, want 0", c.Player.Entity.BombsPlaced)
	}
}
