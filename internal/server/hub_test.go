package server

import (
	"errors"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gemrush.dev/internal/persistence/db"
	"gemrush.dev/internal/sim/world"
	"gemrush.dev/internal/sim/world/gen"
)

func newTestStore(t *testing.T) *db.Store {
	t.Helper()
	logger := log.New(os.Stdout, "[test] ", 0)
	store, err := db.Open(filepath.Join(t.TempDir(), "world.db"), logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	logger := log.New(os.Stdout, "[test] ", 0)
	return NewHub(Config{}, gen.NewSurface(7), newTestStore(t), nil, logger)
}

func drainEvents(ch <-chan event) []event {
	var out []event
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestJoinCreatesFreshEntity(t *testing.T) {
	h := newTestHub(t)

	j, err := h.Join("")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if len(j.Token) != 32 {
		t.Fatalf("token %q, want 32 hex chars", j.Token)
	}
	if j.ID == 0 {
		t.Fatal("id not assigned")
	}
	if j.Entity.Pos != (world.TileCoords{}) {
		t.Fatalf("spawned at %v, want origin", j.Entity.Pos)
	}

	j2, err := h.Join("")
	if err != nil {
		t.Fatalf("second join: %v", err)
	}
	if j2.ID == j.ID {
		t.Fatal("fresh joins share an id")
	}
	if j2.Entity.Pos == j.Entity.Pos {
		t.Fatalf("both entities spawned at %v", j.Entity.Pos)
	}
}

func TestJoinPersistsAcrossSessions(t *testing.T) {
	h := newTestHub(t)

	j, err := h.Join("")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	h.Leave(j.Token, j.ID)

	back, err := h.Join(j.Token)
	if err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if back.ID != j.ID {
		t.Fatalf("rejoin id = %s, want %s", back.ID, j.ID)
	}
	if back.Entity.HairStyle != j.Entity.HairStyle ||
		back.Entity.ClothingColour != j.Entity.ClothingColour ||
		back.Entity.SkinColour != j.Entity.SkinColour {
		t.Fatal("cosmetics did not survive the round trip")
	}
}

func TestJoinRefusesLiveToken(t *testing.T) {
	h := newTestHub(t)

	j, err := h.Join("")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := h.Join(j.Token); !errors.Is(err, ErrAlreadyConnected) {
		t.Fatalf("second join with live token: %v", err)
	}
}

func TestMoveCommitAndReject(t *testing.T) {
	h := newTestHub(t)

	a, err := h.Join("")
	if err != nil {
		t.Fatalf("join a: %v", err)
	}
	b, err := h.Join("")
	if err != nil {
		t.Fatalf("join b: %v", err)
	}
	if got := drainEvents(a.Events); len(got) != 1 {
		t.Fatalf("a saw %d events after b joined, want 1", len(got))
	}

	// Surround a committed move: pick a direction whose destination is
	// actually free right now.
	var dir world.Direction
	var dest world.TileCoords
	found := false
	h.mu.Lock()
	entity, _ := h.m.Entity(a.ID)
	for _, d := range []world.Direction{world.DirectionDown, world.DirectionUp, world.DirectionLeft, world.DirectionRight} {
		candidate := d.MoveTowards(entity.Pos)
		if world.PositionFree(h.m, candidate) {
			dir, dest, found = d, candidate, true
			break
		}
	}
	h.mu.Unlock()
	if !found {
		t.Fatal("no free tile around spawn")
	}

	outcome, err := h.Move(a.ID, 1, dir)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if !outcome.Committed || outcome.Pos != dest {
		t.Fatalf("outcome = %+v, want commit to %v", outcome, dest)
	}
	events := drainEvents(b.Events)
	if len(events) != 1 {
		t.Fatalf("b saw %d events, want 1", len(events))
	}
	moved, ok := events[0].(entityMoved)
	if !ok || moved.id != a.ID || moved.pos != dest {
		t.Fatalf("b saw %+v", events[0])
	}
	if got := drainEvents(a.Events); len(got) != 0 {
		t.Fatalf("mover saw %d of its own move events", len(got))
	}

	// Wall the entity in with water and watch the move bounce.
	h.mu.Lock()
	blocked := world.DirectionUp.MoveTowards(dest)
	world.SetTileAt(h.m, blocked, world.TileWater)
	h.mu.Unlock()

	outcome, err = h.Move(a.ID, 2, world.DirectionUp)
	if err != nil {
		t.Fatalf("blocked move: %v", err)
	}
	if outcome.Committed || outcome.Pos != dest {
		t.Fatalf("outcome = %+v, want rejection at %v", outcome, dest)
	}
	if got := drainEvents(b.Events); len(got) != 0 {
		t.Fatalf("b saw %d events for a rejected move", len(got))
	}
	if got := h.movesRejected.Load(); got != 1 {
		t.Fatalf("movesRejected = %d, want 1", got)
	}

	h.mu.Lock()
	entity, _ = h.m.Entity(a.ID)
	pos := entity.Pos
	h.mu.Unlock()
	if pos != dest {
		t.Fatalf("entity at %v after rejection, want %v", pos, dest)
	}
}

func TestMoveIntoOccupiedTileRejected(t *testing.T) {
	h := newTestHub(t)

	a, err := h.Join("")
	if err != nil {
		t.Fatalf("join a: %v", err)
	}
	b, err := h.Join("")
	if err != nil {
		t.Fatalf("join b: %v", err)
	}

	// Park b directly below a.
	h.mu.Lock()
	ea, _ := h.m.Entity(a.ID)
	eb, _ := h.m.Entity(b.ID)
	eb.Pos = world.DirectionDown.MoveTowards(ea.Pos)
	start := ea.Pos
	h.mu.Unlock()

	outcome, err := h.Move(a.ID, 7, world.DirectionDown)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if outcome.Committed || outcome.Pos != start {
		t.Fatalf("outcome = %+v, want rejection at %v", outcome, start)
	}
}

type countingGen struct {
	inner gen.Generator
	calls atomic.Int64
}

func (g *countingGen) Name() string { return g.inner.Name() }

func (g *countingGen) Generate(c world.ChunkCoords) *world.Chunk {
	g.calls.Add(1)
	time.Sleep(20 * time.Millisecond)
	return g.inner.Generate(c)
}

func TestEnsureChunkGeneratesOnce(t *testing.T) {
	logger := log.New(os.Stdout, "[test] ", 0)
	store := newTestStore(t)
	counting := &countingGen{inner: gen.NewSurface(7)}
	h := NewHub(Config{}, counting, store, nil, logger)

	coords := world.ChunkCoords{X: 5, Y: 5}
	var wg sync.WaitGroup
	results := make([]world.Chunk, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			chunk, _, err := h.ChunkSnapshot(coords)
			if err != nil {
				t.Errorf("snapshot %d: %v", i, err)
				return
			}
			results[i] = chunk
		}(i)
	}
	wg.Wait()

	if got := counting.calls.Load(); got != 1 {
		t.Fatalf("generator ran %d times, want 1", got)
	}
	if results[0].Tiles != results[1].Tiles {
		t.Fatal("concurrent requests saw different chunks")
	}

	// A second hub on the same store loads from sqlite instead of
	// generating again.
	h2 := NewHub(Config{}, counting, store, nil, logger)
	if _, _, err := h2.ChunkSnapshot(coords); err != nil {
		t.Fatalf("snapshot on fresh hub: %v", err)
	}
	if got := counting.calls.Load(); got != 1 {
		t.Fatalf("generator ran %d times after reload, want 1", got)
	}
}

func TestDetonateSmashesAndCredits(t *testing.T) {
	h := newTestHub(t)

	a, err := h.Join("")
	if err != nil {
		t.Fatalf("join a: %v", err)
	}
	b, err := h.Join("")
	if err != nil {
		t.Fatalf("join b: %v", err)
	}
	drainEvents(a.Events)
	drainEvents(b.Events)

	h.mu.Lock()
	entity, _ := h.m.Entity(a.ID)
	pos := entity.Pos
	ruby := world.TileCoords{X: pos.X + 1, Y: pos.Y}
	diamond := world.TileCoords{X: pos.X + 1, Y: pos.Y + 1}
	plain := world.TileCoords{X: pos.X - 1, Y: pos.Y}
	world.SetTileAt(h.m, ruby, world.TileRockRuby)
	world.SetTileAt(h.m, diamond, world.TileRockDiamond)
	world.SetTileAt(h.m, plain, world.TileRock)
	entity.Inventory.Give(world.ItemBomb, 2)
	h.mu.Unlock()

	if !h.PlaceBomb(a.ID) {
		t.Fatal("place bomb refused")
	}
	collected := h.DetonateBombs(a.ID)
	if got := collected.Count(world.GemRuby); got != 1 {
		t.Fatalf("rubies = %d, want 1", got)
	}
	if got := collected.Count(world.GemDiamond); got != 1 {
		t.Fatalf("diamonds = %d, want 1", got)
	}
	if got := collected.Count(world.GemEmerald); got != 0 {
		t.Fatalf("emeralds = %d, want 0", got)
	}

	h.mu.Lock()
	for _, at := range []world.TileCoords{ruby, diamond, plain} {
		tile, ok := world.TileAt(h.m, at)
		if !ok || tile != world.TileRockSmashed {
			h.mu.Unlock()
			t.Fatalf("tile at %v = %v, want rock-smashed", at, tile)
		}
	}
	entity, _ = h.m.Entity(a.ID)
	if got := entity.Gems.Count(world.GemRuby); got != 1 {
		h.mu.Unlock()
		t.Fatalf("entity rubies = %d, want 1", got)
	}
	if got := entity.Inventory.Count(world.ItemBomb); got != 1 {
		h.mu.Unlock()
		t.Fatalf("bombs left = %d, want 1", got)
	}
	if entity.BombsPlaced != 1 {
		h.mu.Unlock()
		t.Fatalf("bombs placed = %d, want 1", entity.BombsPlaced)
	}
	h.mu.Unlock()

	var tiles int
	for _, ev := range drainEvents(b.Events) {
		if _, ok := ev.(tileChanged); ok {
			tiles++
		}
	}
	if tiles != 3 {
		t.Fatalf("b saw %d tile changes, want 3", tiles)
	}

	// Nothing left to set off.
	if again := h.DetonateBombs(a.ID); again.Value() != 0 {
		t.Fatalf("second detonation collected value %d", again.Value())
	}
}

func TestPurchaseBombs(t *testing.T) {
	h := newTestHub(t)

	j, err := h.Join("")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	h.mu.Lock()
	entity, _ := h.m.Entity(j.ID)
	entity.Gems.Add(world.GemDiamond, 1)
	h.mu.Unlock()

	if !h.PurchaseBombs(j.ID, 3) {
		t.Fatal("purchase refused with 100 value on hand")
	}
	h.mu.Lock()
	bombs := entity.Inventory.Count(world.ItemBomb)
	value := entity.Gems.Value()
	h.mu.Unlock()
	if bombs != 3 {
		t.Fatalf("bombs = %d, want 3", bombs)
	}
	if value != 94 {
		t.Fatalf("gem value = %d, want 94", value)
	}

	if h.PurchaseBombs(j.ID, 1000) {
		t.Fatal("purchase of 1000 bombs should fail")
	}
	h.mu.Lock()
	bombs = entity.Inventory.Count(world.ItemBomb)
	value = entity.Gems.Value()
	h.mu.Unlock()
	if bombs != 3 || value != 94 {
		t.Fatalf("failed purchase mutated state: bombs=%d value=%d", bombs, value)
	}
}

func TestStatsSnapshot(t *testing.T) {
	h := newTestHub(t)

	a, err := h.Join("")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := h.Join(""); err != nil {
		t.Fatalf("join: %v", err)
	}

	stats := h.Stats()
	if stats.Sessions != 2 || stats.Entities != 2 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.ChunksLoaded < 9 {
		t.Fatalf("chunks loaded = %d, want at least the spawn neighbourhood", stats.ChunksLoaded)
	}
	if stats.Connects != 2 {
		t.Fatalf("connects = %d, want 2", stats.Connects)
	}

	h.Leave(a.Token, a.ID)
	stats = h.Stats()
	if stats.Sessions != 1 || stats.Disconnects != 1 {
		t.Fatalf("stats after leave = %+v", stats)
	}
}

func TestChunkDistance(t *testing.T) {
	cases := []struct {
		a, b world.ChunkCoords
		want int32
	}{
		{world.ChunkCoords{}, world.ChunkCoords{}, 0},
		{world.ChunkCoords{X: 2, Y: 1}, world.ChunkCoords{X: 0, Y: 0}, 2},
		{world.ChunkCoords{X: -3, Y: 4}, world.ChunkCoords{X: 1, Y: 1}, 4},
		{world.ChunkCoords{X: -1, Y: -1}, world.ChunkCoords{X: 1, Y: 1}, 2},
	}
	for _, c := range cases {
		if got := chunkDistance(c.a, c.b); got != c.want {
			t.Fatalf("chunkDistance(%v, %v) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestShutdownRefusesJoinsAndDrains(t *testing.T) {
	h := newTestHub(t)

	j, err := h.Join("")
	if err != nil {
		t.Fatalf("join: %v", err)
	}

	done := make(chan struct{})
	go func() {
		<-h.closing
		h.Leave(j.Token, j.ID)
		close(done)
	}()

	start := time.Now()
	h.Shutdown(5 * time.Second)
	if elapsed := time.Since(start); elapsed >= 5*time.Second {
		t.Fatalf("shutdown blocked for %v, want prompt drain", elapsed)
	}
	<-done

	if _, err := h.Join(""); !errors.Is(err, ErrShuttingDown) {
		t.Fatalf("join after shutdown: %v, want ErrShuttingDown", err)
	}
	if _, _, ok, err := h.store.LoadEntity(j.Token); err != nil || !ok {
		t.Fatalf("entity not persisted on shutdown leave: ok=%v err=%v", ok, err)
	}
}
