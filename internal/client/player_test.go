package client

import (
	"testing"
	"time"

	"gemrush.dev/internal/sim/world"
)

func newTestPlayer(pos world.TileCoords) (*PlayerEntity, *ClientMap) {
	m := NewClientMap()
	m.PutChunk(world.NewChunk(pos.Chunk()))
	entity := &world.Entity{Pos: pos}
	return NewPlayerEntity(1, entity, 100*time.Millisecond), m
}

func TestPredictedMoveAppliesLocally(t *testing.T) {
	p, m := newTestPlayer(world.TileCoords{X: 8, Y: 8})
	base := time.Unix(1000, 0)

	msg, ok := p.MoveTowards(world.DirectionRight, m, base)
	if !ok {
		t.Fatal("legal move refused")
	}
	if msg.Request != 1 || msg.Direction != world.DirectionRight {
		t.Fatalf("move message = %+v", msg)
	}
	if p.Entity.Pos != (world.TileCoords{X: 9, Y: 8}) {
		t.Fatalf("predicted position = %v", p.Entity.Pos)
	}
	if p.State() != MovePredicted {
		t.Fatalf("state = %v, want MovePredicted", p.State())
	}
	if p.PendingMoves() != 1 {
		t.Fatalf("pending = %d, want 1", p.PendingMoves())
	}

	// Walk cooldown: a second step right away is refused.
	if _, ok := p.MoveTowards(world.DirectionRight, m, base.Add(10*time.Millisecond)); ok {
		t.Fatal("move accepted during walk cooldown")
	}

	// Silence plus a finished walk confirms the step.
	p.Update(base.Add(100 * time.Millisecond))
	if p.State() != MoveIdle {
		t.Fatalf("state = %v after walk, want MoveIdle", p.State())
	}
	msg, ok = p.MoveTowards(world.DirectionRight, m, base.Add(100*time.Millisecond))
	if !ok || msg.Request != 2 {
		t.Fatalf("second move = %+v ok=%v, want request 2", msg, ok)
	}
	if p.PendingMoves() != 2 {
		t.Fatalf("pending = %d, want 2", p.PendingMoves())
	}
}

func TestBlockedStepOnlyTurns(t *testing.T) {
	p, m := newTestPlayer(world.TileCoords{X: 8, Y: 8})
	base := time.Unix(1000, 0)
	world.SetTileAt(m, world.TileCoords{X: 8, Y: 7}, world.TileWater)

	if _, ok := p.MoveTowards(world.DirectionUp, m, base); ok {
		t.Fatal("step into water accepted")
	}
	if p.Entity.Pos != (world.TileCoords{X: 8, Y: 8}) {
		t.Fatalf("position moved to %v", p.Entity.Pos)
	}
	if p.Entity.Direction != world.DirectionUp {
		t.Fatalf("direction = %v, want up", p.Entity.Direction)
	}
	if p.State() != MoveIdle || p.PendingMoves() != 0 {
		t.Fatalf("state = %v pending = %d after refused step", p.State(), p.PendingMoves())
	}
}

func TestStepIntoUnknownTerrainRefusedAndRequested(t *testing.T) {
	p, m := newTestPlayer(world.TileCoords{X: 0, Y: 0})
	base := time.Unix(1000, 0)

	if _, ok := p.MoveTowards(world.DirectionLeft, m, base); ok {
		t.Fatal("step into unloaded chunk accepted")
	}
	var sent []world.ChunkCoords
	if err := m.FlushRequests(func(c world.ChunkCoords) error {
		sent = append(sent, c)
		return nil
	}); err != nil {
		t.Fatalf("flush: %v", err)
	}
	want := world.ChunkCoords{X: -1, Y: 0}
	if len(sent) != 1 || sent[0] != want {
		t.Fatalf("flush sent %v, want [%v]", sent, want)
	}
}

func TestCorrectionSnapsAndClearsPending(t *testing.T) {
	p, m := newTestPlayer(world.TileCoords{X: 8, Y: 8})
	base := time.Unix(1000, 0)

	if _, ok := p.MoveTowards(world.DirectionRight, m, base); !ok {
		t.Fatal("first move refused")
	}
	p.Update(base.Add(100 * time.Millisecond))
	if _, ok := p.MoveTowards(world.DirectionRight, m, base.Add(100*time.Millisecond)); !ok {
		t.Fatal("second move refused")
	}
	if p.PendingMoves() != 2 {
		t.Fatalf("pending = %d, want 2", p.PendingMoves())
	}

	// The server rejected request 1: everything predicted after it was
	// built on sand.
	correctedAt := base.Add(150 * time.Millisecond)
	p.ReceiveCorrection(1, world.TileCoords{X: 8, Y: 8}, correctedAt)
	if p.Entity.Pos != (world.TileCoords{X: 8, Y: 8}) {
		t.Fatalf("position = %v after correction, want (8, 8)", p.Entity.Pos)
	}
	if p.PendingMoves() != 0 {
		t.Fatalf("pending = %d after correction, want 0", p.PendingMoves())
	}
	if p.State() != MoveCorrected {
		t.Fatalf("state = %v, want MoveCorrected", p.State())
	}

	// Input stays refused until the corrective tween ends.
	if _, ok := p.MoveTowards(world.DirectionDown, m, correctedAt.Add(10*time.Millisecond)); ok {
		t.Fatal("move accepted during correction")
	}
	p.Update(correctedAt.Add(correctionDuration))
	if p.State() != MoveIdle {
		t.Fatalf("state = %v after corrective tween, want MoveIdle", p.State())
	}
	if _, ok := p.MoveTowards(world.DirectionDown, m, correctedAt.Add(correctionDuration)); !ok {
		t.Fatal("move refused after correction settled")
	}
}

func TestCorrectionMatchingPositionGoesIdle(t *testing.T) {
	p, m := newTestPlayer(world.TileCoords{X: 8, Y: 8})
	base := time.Unix(1000, 0)

	if _, ok := p.MoveTowards(world.DirectionRight, m, base); !ok {
		t.Fatal("move refused")
	}
	// A correction that lands exactly where we already are needs no
	// corrective animation.
	p.ReceiveCorrection(1, world.TileCoords{X: 9, Y: 8}, base.Add(20*time.Millisecond))
	if p.State() != MoveIdle {
		t.Fatalf("state = %v, want MoveIdle", p.State())
	}
	if p.PendingMoves() != 0 {
		t.Fatalf("pending = %d, want 0", p.PendingMoves())
	}
}
