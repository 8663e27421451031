package db

import (
	"log"
	"os"
	"path/filepath"
	"testing"

	"gemrush.dev/internal/sim/ids"
	"gemrush.dev/internal/sim/world"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	logger := log.New(os.Stderr, "[db-test] ", log.LstdFlags)
	s, err := Open(filepath.Join(t.TempDir(), "world.db"), logger)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_EntityRoundTrip(t *testing.T) {
	s := openTestStore(t)

	e := &world.Entity{
		Pos:            world.TileCoords{X: -12, Y: 900},
		HairStyle:      world.HairFringe,
		ClothingColour: world.ClothingGreen,
		SkinColour:     world.SkinPale,
		HairColour:     world.HairColourRed,
		BombsPlaced:    7,
	}
	e.Gems.Add(world.GemEmerald, 42)
	e.Inventory.Give(world.ItemBomb, 5)

	id := ids.New()
	if err := s.SaveEntity("tok-1", id, e); err != nil {
		t.Fatalf("save: %v", err)
	}

	gotID, got, ok, err := s.LoadEntity("tok-1")
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if gotID != id {
		t.Fatalf("id: got %v, want %v", gotID, id)
	}
	if got.Pos != e.Pos || got.HairStyle != e.HairStyle || got.HairColour != e.HairColour {
		t.Fatalf("fields differ: %+v", got)
	}
	if got.Gems.Count(world.GemEmerald) != 42 || got.Inventory.Count(world.ItemBomb) != 5 {
		t.Fatalf("collections differ: %+v", got)
	}
	if got.BombsPlaced != 7 {
		t.Fatalf("bombs placed: got %d", got.BombsPlaced)
	}
	// Transient fields come back at their defaults.
	if got.Direction != world.DirectionDown || got.FacialExpression != world.ExpressionNeutral {
		t.Fatalf("transient fields persisted: %+v", got)
	}
}

func TestStore_LoadEntityMissing(t *testing.T) {
	s := openTestStore(t)
	if _, _, ok, err := s.LoadEntity("nobody"); ok || err != nil {
		t.Fatalf("missing row: ok=%v err=%v", ok, err)
	}
}

func TestStore_CorruptGemBlobRepairs(t *testing.T) {
	s := openTestStore(t)
	e := &world.Entity{}
	e.Gems.Add(world.GemRuby, 3)
	if err := s.SaveEntity("tok-2", ids.New(), e); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := s.db.Exec(`UPDATE entities SET gems = ? WHERE client_token = ?`, []byte{0xff, 0xff, 0xff}, "tok-2"); err != nil {
		t.Fatalf("corrupt row: %v", err)
	}

	_, got, ok, err := s.LoadEntity("tok-2")
	if err != nil || !ok {
		t.Fatalf("load after corruption: ok=%v err=%v", ok, err)
	}
	if got.Gems.Value() != 0 {
		t.Fatalf("corrupt blob not repaired to empty: %+v", got.Gems)
	}
}

func TestStore_ChunkRoundTrip(t *testing.T) {
	s := openTestStore(t)

	chunk := world.NewChunk(world.ChunkCoords{X: -4, Y: 9})
	chunk.SetTileAt(world.OffsetCoords{X: 1, Y: 2}, world.TileWater)
	chunk.SetTileAt(world.OffsetCoords{X: 8, Y: 8}, world.TileRockEmerald)

	if err := s.SaveChunk(chunk); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok, err := s.LoadChunk(chunk.Coords)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if got.Tiles != chunk.Tiles {
		t.Fatalf("tiles differ after round trip")
	}

	if _, ok, err := s.LoadChunk(world.ChunkCoords{X: 99, Y: 99}); ok || err != nil {
		t.Fatalf("missing chunk: ok=%v err=%v", ok, err)
	}
}

func TestStore_CorruptChunkBlobIsAMiss(t *testing.T) {
	s := openTestStore(t)
	chunk := world.NewChunk(world.ChunkCoords{X: 1, Y: 1})
	if err := s.SaveChunk(chunk); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := s.db.Exec(`UPDATE chunks SET tiles = ? WHERE chunk_x = 1 AND chunk_y = 1`, []byte("not zstd")); err != nil {
		t.Fatalf("corrupt row: %v", err)
	}
	if _, ok, err := s.LoadChunk(chunk.Coords); ok || err != nil {
		t.Fatalf("unreadable blob should be a miss: ok=%v err=%v", ok, err)
	}
}
