package client

import (
	"time"

	"gemrush.dev/internal/protocol"
	"gemrush.dev/internal/sim/ids"
	"gemrush.dev/internal/sim/world"
)

// MoveState is where the local player sits in the prediction cycle.
type MoveState uint8

const (
	// MoveIdle: standing still, input accepted.
	MoveIdle MoveState = iota
	// MovePredicted: at least one move applied locally, awaiting the
	// server's silence (commit) or a correction.
	MovePredicted
	// MoveCorrected: a correction snapped the player; input is refused
	// until the corrective tween finishes.
	MoveCorrected
)

// Corrections play much faster than a walk so the snap reads as a snap.
const correctionDuration = 25 * time.Millisecond

// Pending predictions are confirmed only implicitly (by silence), so
// the table is bounded; the oldest entries go first.
const maxPendingMoves = 64

// PlayerEntity is the client's own entity plus everything prediction
// needs: the request counter, the outstanding predictions, and the
// movement state machine.
type PlayerEntity struct {
	ID     ids.ID
	Entity *world.Entity

	state       MoveState
	nextRequest uint32
	pending     map[uint32]world.TileCoords

	walk         Tween
	walkDuration time.Duration
}

func NewPlayerEntity(id ids.ID, entity *world.Entity, walkDuration time.Duration) *PlayerEntity {
	return &PlayerEntity{
		ID:           id,
		Entity:       entity,
		pending:      map[uint32]world.TileCoords{},
		walkDuration: walkDuration,
	}
}

func (p *PlayerEntity) State() MoveState { return p.state }

// Walk exposes the current movement tween for rendering.
func (p *PlayerEntity) Walk() Tween { return p.walk }

// Update advances the state machine. Call it every frame.
func (p *PlayerEntity) Update(now time.Time) {
	switch p.state {
	case MovePredicted:
		if p.walk.Done(now) {
			p.state = MoveIdle
		}
	case MoveCorrected:
		if p.walk.Done(now) {
			p.state = MoveIdle
		}
	}
}

// MoveTowards attempts one predicted step. When the step is legal
// against the local replica it applies immediately and the returned
// message must go to the server. A refused step (cooldown, correction
// in progress, blocked or unknown terrain) returns ok=false and sends
// nothing; a blocked step still turns the player to face dir.
func (p *PlayerEntity) MoveTowards(dir world.Direction, m *ClientMap, now time.Time) (protocol.Move, bool) {
	if p.state == MoveCorrected {
		return protocol.Move{}, false
	}
	if p.state == MovePredicted && !p.walk.Done(now) {
		return protocol.Move{}, false
	}
	dest := dir.MoveTowards(p.Entity.Pos)
	if !world.PositionFree(m, dest) {
		p.Entity.Direction = dir
		return protocol.Move{}, false
	}

	p.nextRequest++
	request := p.nextRequest
	p.pending[request] = dest
	if len(p.pending) > maxPendingMoves {
		oldest := request
		for r := range p.pending {
			if r < oldest {
				oldest = r
			}
		}
		delete(p.pending, oldest)
	}

	from := p.Entity.Pos
	p.Entity.Pos = dest
	p.Entity.Direction = dir
	p.walk = NewTween(from, dest, now, p.walkDuration)
	p.state = MovePredicted
	return protocol.Move{Request: request, Direction: dir}, true
}

// ReceiveCorrection handles YourEntityMoved: the named request was
// rejected and pos is authoritative. Every outstanding prediction was
// built on state the server just contradicted, so all of them go.
func (p *PlayerEntity) ReceiveCorrection(request uint32, pos world.TileCoords, now time.Time) {
	delete(p.pending, request)
	for r := range p.pending {
		delete(p.pending, r)
	}
	if p.Entity.Pos == pos {
		p.state = MoveIdle
		return
	}
	from := p.Entity.Pos
	p.Entity.Pos = pos
	p.walk = NewTween(from, pos, now, correctionDuration)
	p.state = MoveCorrected
}

// PendingMoves reports how many predictions await resolution.
func (p *PlayerEntity) PendingMoves() int { return len(p.pending) }
