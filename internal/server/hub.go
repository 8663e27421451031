// Package server holds the authoritative side of the world: one Hub
// guarding the map and entity registry with a single mutex, and one
// Session per websocket connection. Chunk generation, sqlite I/O, and
// socket writes all happen outside the lock.
package server

import (
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"gemrush.dev/internal/persistence/db"
	"gemrush.dev/internal/persistence/journal"
	"gemrush.dev/internal/sim/ids"
	"gemrush.dev/internal/sim/world"
	"gemrush.dev/internal/sim/world/gen"
)

const (
	// Outbound events queued per session before the hub starts
	// dropping them for that session.
	sessionEventBuffer = 256

	// How far from the configured spawn tile the join scan will look
	// for a free tile.
	spawnScanRadius = 8
)

// ErrAlreadyConnected is returned by Join when the presented token's
// entity is on another live connection.
var ErrAlreadyConnected = errors.New("entity already connected")

// ErrShuttingDown is returned by Join once Shutdown has begun.
var ErrShuttingDown = errors.New("server shutting down")

type Config struct {
	Spawn        world.TileCoords
	StreamRadius int32
	PingInterval time.Duration
}

func (c *Config) applyDefaults() {
	if c.StreamRadius <= 0 {
		c.StreamRadius = 2
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
}

type subscriber struct {
	events chan event
	warned bool
}

// Hub owns all authoritative state. Every exported method is safe for
// concurrent use by sessions.
type Hub struct {
	cfg     Config
	gen     gen.Generator
	store   *db.Store
	journal *journal.Journal
	log     *log.Logger

	mu       sync.Mutex
	m        *Map
	subs     map[ids.ID]*subscriber
	inflight map[world.ChunkCoords]chan struct{}
	bombs    map[ids.ID][]world.TileCoords
	rng      *rand.Rand

	closing   chan struct{}
	closeOnce sync.Once
	sessions  sync.WaitGroup

	connects        atomic.Uint64
	disconnects     atomic.Uint64
	framesIn        atomic.Uint64
	framesOut       atomic.Uint64
	movesRejected   atomic.Uint64
	chunksGenerated atomic.Uint64
	eventsDropped   atomic.Uint64
}

func NewHub(cfg Config, g gen.Generator, store *db.Store, jrnl *journal.Journal, logger *log.Logger) *Hub {
	cfg.applyDefaults()
	return &Hub{
		cfg:      cfg,
		gen:      g,
		store:    store,
		journal:  jrnl,
		log:      logger,
		m:        NewMap(),
		subs:     map[ids.ID]*subscriber{},
		inflight: map[world.ChunkCoords]chan struct{}{},
		bombs:    map[ids.ID][]world.TileCoords{},
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		closing:  make(chan struct{}),
	}
}

// Joined is what a session gets back from Join: the identity it should
// hand the client and the channel its view updates arrive on.
type Joined struct {
	Token  string
	ID     ids.ID
	Entity world.Entity
	Events <-chan event
}

// Join loads or creates the entity behind token, installs it in the
// world, and subscribes the caller to the event fan-out. An empty token
// mints a fresh identity.
func (h *Hub) Join(token string) (Joined, error) {
	var none Joined

	var id ids.ID
	var entity *world.Entity
	if token != "" {
		loadedID, loaded, ok, err := h.store.LoadEntity(token)
		if err != nil {
			return none, fmt.Errorf("load entity: %w", err)
		}
		if ok {
			id = loadedID
			entity = loaded
		}
	}
	if token == "" {
		minted, err := ids.NewToken()
		if err != nil {
			return none, fmt.Errorf("mint token: %w", err)
		}
		token = minted
	}

	// The neighbourhood the entity lands in has to be resolved before
	// anybody can be placed on it.
	anchor := h.cfg.Spawn
	if entity != nil {
		anchor = entity.Pos
	}
	anchorChunk := anchor.Chunk()
	for dy := int32(-1); dy <= 1; dy++ {
		for dx := int32(-1); dx <= 1; dx++ {
			c := world.ChunkCoords{X: anchorChunk.X + dx, Y: anchorChunk.Y + dy}
			if _, err := h.ensureChunk(c); err != nil {
				return none, err
			}
		}
	}

	h.mu.Lock()
	select {
	case <-h.closing:
		h.mu.Unlock()
		return none, ErrShuttingDown
	default:
	}
	if entity == nil {
		id = ids.New()
		entity = world.NewRandomEntity(h.rng, h.cfg.Spawn)
	}
	if _, connected := h.subs[id]; connected {
		h.mu.Unlock()
		return none, ErrAlreadyConnected
	}
	entity.FacialExpression = world.ExpressionNeutral
	entity.Pos = h.freeTileNearLocked(entity.Pos)

	h.m.PutEntity(id, entity)
	events := make(chan event, sessionEventBuffer)
	h.subs[id] = &subscriber{events: events}
	h.sessions.Add(1)
	h.broadcastLocked(entityAdded{id: id, entity: *entity}, id)
	snapshot := *entity
	h.mu.Unlock()

	h.connects.Add(1)
	h.journal.Append(journal.Record{
		Kind:   journal.KindJoin,
		Entity: id.String(),
		X:      snapshot.Pos.X,
		Y:      snapshot.Pos.Y,
	})
	return Joined{Token: token, ID: id, Entity: snapshot, Events: events}, nil
}

// freeTileNearLocked scans outward from pos ring by ring for a tile an
// entity can stand on. Falls back to pos itself when the whole
// neighbourhood is somehow taken.
func (h *Hub) freeTileNearLocked(pos world.TileCoords) world.TileCoords {
	for r := int32(0); r <= spawnScanRadius; r++ {
		for dy := -r; dy <= r; dy++ {
			for dx := -r; dx <= r; dx++ {
				if maxAbs(dx, dy) != r {
					continue
				}
				candidate := world.TileCoords{X: pos.X + dx, Y: pos.Y + dy}
				if world.PositionFree(h.m, candidate) {
					return candidate
				}
			}
		}
	}
	return pos
}

// Leave tears a session down: the entity comes out of the world, the
// removal is broadcast, and the final entity state is written back.
func (h *Hub) Leave(token string, id ids.ID) {
	defer h.sessions.Done()
	h.mu.Lock()
	entity, ok := h.m.RemoveEntity(id)
	delete(h.bombs, id)
	var snapshot world.Entity
	if ok {
		snapshot = *entity
		h.broadcastLocked(entityRemoved{id: id}, id)
	}
	h.mu.Unlock()

	if ok {
		if err := h.store.SaveEntity(token, id, &snapshot); err != nil {
			h.log.Printf("save entity %s: %v", id, err)
		}
		h.journal.Append(journal.Record{
			Kind:   journal.KindLeave,
			Entity: id.String(),
			X:      snapshot.Pos.X,
			Y:      snapshot.Pos.Y,
		})
	}

	// The token stays refused until the row is written: a client that
	// reconnects the instant its socket drops must load this state, not
	// a fresh entity.
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
	h.disconnects.Add(1)
}

// Shutdown refuses further joins, tells every live session to wind
// down, and waits up to timeout for them to detach. Each session runs
// its normal leave path on the way out, so entities are persisted.
func (h *Hub) Shutdown(timeout time.Duration) {
	h.closeOnce.Do(func() {
		h.mu.Lock()
		close(h.closing)
		h.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		h.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		h.log.Printf("shutdown: sessions still draining after %v", timeout)
	}
}

// ensureChunk returns the loaded chunk at coords, resolving it through
// sqlite or the generator exactly once per process no matter how many
// sessions ask at the same time.
func (h *Hub) ensureChunk(coords world.ChunkCoords) (*world.Chunk, error) {
	h.mu.Lock()
	for {
		if chunk, ok := h.m.ChunkAt(coords); ok {
			h.mu.Unlock()
			return chunk, nil
		}
		wait, ok := h.inflight[coords]
		if !ok {
			break
		}
		h.mu.Unlock()
		<-wait
		h.mu.Lock()
	}
	done := make(chan struct{})
	h.inflight[coords] = done
	h.mu.Unlock()

	chunk, err := h.loadOrGenerate(coords)

	h.mu.Lock()
	delete(h.inflight, coords)
	close(done)
	if err != nil {
		h.mu.Unlock()
		return nil, err
	}
	if existing, ok := h.m.ChunkAt(coords); ok {
		h.mu.Unlock()
		return existing, nil
	}
	h.m.PutChunk(chunk)
	h.mu.Unlock()
	return chunk, nil
}

func (h *Hub) loadOrGenerate(coords world.ChunkCoords) (*world.Chunk, error) {
	chunk, ok, err := h.store.LoadChunk(coords)
	if err != nil {
		return nil, fmt.Errorf("load chunk %v: %w", coords, err)
	}
	if ok {
		return chunk, nil
	}
	chunk = h.gen.Generate(coords)
	h.chunksGenerated.Add(1)
	if err := h.store.SaveChunk(chunk); err != nil {
		// Worst case the chunk regenerates identically next run.
		h.log.Printf("save chunk %v: %v", coords, err)
	}
	return chunk, nil
}

// entityView is a point-in-time copy handed to sessions for encoding.
type entityView struct {
	id     ids.ID
	entity world.Entity
}

// ChunkSnapshot resolves coords and returns a copy of the chunk plus
// every entity currently standing in it.
func (h *Hub) ChunkSnapshot(coords world.ChunkCoords) (world.Chunk, []entityView, error) {
	chunk, err := h.ensureChunk(coords)
	if err != nil {
		return world.Chunk{}, nil, err
	}
	h.mu.Lock()
	snapshot := *chunk
	var present []entityView
	h.m.EachEntity(func(id ids.ID, e *world.Entity) {
		if e.Pos.Chunk() == coords {
			present = append(present, entityView{id: id, entity: *e})
		}
	})
	h.mu.Unlock()
	return snapshot, present, nil
}

// EntitySnapshot returns a copy of one entity, for sessions whose view
// an entity just walked into.
func (h *Hub) EntitySnapshot(id ids.ID) (world.Entity, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.m.Entity(id)
	if !ok {
		return world.Entity{}, false
	}
	return *e, true
}

// MoveOutcome reports what the hub did with a move request. Pos is the
// authoritative position afterwards either way.
type MoveOutcome struct {
	Committed bool
	Pos       world.TileCoords
}

// Move steps id's entity one tile. The move commits only when the
// destination resolves to a free tile; a rejection leaves the entity
// untouched and the caller sends the correction.
func (h *Hub) Move(id ids.ID, request uint32, dir world.Direction) (MoveOutcome, error) {
	h.mu.Lock()
	entity, ok := h.m.Entity(id)
	if !ok {
		h.mu.Unlock()
		return MoveOutcome{}, fmt.Errorf("move: unknown entity %s", id)
	}
	dest := dir.MoveTowards(entity.Pos)
	if _, loaded := h.m.ChunkAt(dest.Chunk()); !loaded {
		h.mu.Unlock()
		if _, err := h.ensureChunk(dest.Chunk()); err != nil {
			return MoveOutcome{}, err
		}
		h.mu.Lock()
		entity, ok = h.m.Entity(id)
		if !ok {
			h.mu.Unlock()
			return MoveOutcome{}, fmt.Errorf("move: unknown entity %s", id)
		}
		dest = dir.MoveTowards(entity.Pos)
	}

	if !world.PositionFree(h.m, dest) {
		pos := entity.Pos
		h.mu.Unlock()
		h.movesRejected.Add(1)
		h.journal.Append(journal.Record{
			Kind:    journal.KindMoveRejected,
			Entity:  id.String(),
			X:       pos.X,
			Y:       pos.Y,
			Request: request,
		})
		return MoveOutcome{Committed: false, Pos: pos}, nil
	}

	entity.Pos = dest
	entity.Direction = dir
	h.broadcastLocked(entityMoved{id: id, pos: dest, direction: dir}, id)
	h.mu.Unlock()
	return MoveOutcome{Committed: true, Pos: dest}, nil
}

// PlaceBomb takes one bomb from the inventory and arms it at the
// entity's tile. Reports false when there is no bomb to place.
func (h *Hub) PlaceBomb(id ids.ID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	entity, ok := h.m.Entity(id)
	if !ok || !entity.Inventory.Take(world.ItemBomb) {
		return false
	}
	entity.BombsPlaced++
	h.bombs[id] = append(h.bombs[id], entity.Pos)
	return true
}

// DetonateBombs sets off every bomb id has placed. Rocks within
// Chebyshev radius 1 of each bomb smash; gem rocks credit their gem to
// the detonator. Returns what was collected.
func (h *Hub) DetonateBombs(id ids.ID) world.GemCollection {
	var collected world.GemCollection

	h.mu.Lock()
	entity, ok := h.m.Entity(id)
	bombs := h.bombs[id]
	delete(h.bombs, id)
	if !ok || len(bombs) == 0 {
		h.mu.Unlock()
		return collected
	}

	changedChunks := map[world.ChunkCoords]struct{}{}
	var changes []tileChanged
	for _, bomb := range bombs {
		for dy := int32(-1); dy <= 1; dy++ {
			for dx := int32(-1); dx <= 1; dx++ {
				pos := world.TileCoords{X: bomb.X + dx, Y: bomb.Y + dy}
				tile, loaded := world.TileAt(h.m, pos)
				if !loaded || !tile.Smashable() {
					continue
				}
				if gem, isGem := tile.Gem(); isGem {
					collected.Add(gem, 1)
				}
				world.SetTileAt(h.m, pos, world.TileRockSmashed)
				changes = append(changes, tileChanged{pos: pos, tile: world.TileRockSmashed})
				changedChunks[pos.Chunk()] = struct{}{}
			}
		}
	}
	collected.Each(func(g world.Gem, n uint32) {
		entity.Gems.Add(g, n)
	})
	for _, change := range changes {
		h.broadcastLocked(change, 0)
	}
	var snapshots []world.Chunk
	for coords := range changedChunks {
		if chunk, ok := h.m.ChunkAt(coords); ok {
			snapshots = append(snapshots, *chunk)
		}
	}
	pos := entity.Pos
	h.mu.Unlock()

	for i := range snapshots {
		if err := h.store.SaveChunk(&snapshots[i]); err != nil {
			h.log.Printf("save chunk %v: %v", snapshots[i].Coords, err)
		}
	}
	for _, change := range changes {
		h.journal.Append(journal.Record{
			Kind:   journal.KindTileChange,
			Entity: id.String(),
			X:      change.pos.X,
			Y:      change.pos.Y,
			Tile:   change.tile.String(),
		})
	}
	h.journal.Append(journal.Record{
		Kind:   journal.KindDetonate,
		Entity: id.String(),
		X:      pos.X,
		Y:      pos.Y,
		Detail: fmt.Sprintf("bombs=%d smashed=%d", len(bombs), len(changes)),
	})
	return collected
}

// PurchaseBombs exchanges gems for bombs at world.BombPrice apiece.
// Both outcomes are silent on the wire; the caller only persists on
// success.
func (h *Hub) PurchaseBombs(id ids.ID, quantity uint32) bool {
	if quantity == 0 {
		return false
	}
	h.mu.Lock()
	entity, ok := h.m.Entity(id)
	if !ok {
		h.mu.Unlock()
		return false
	}
	if !entity.Gems.Spend(uint64(quantity) * world.BombPrice) {
		h.mu.Unlock()
		return false
	}
	entity.Inventory.Give(world.ItemBomb, quantity)
	h.mu.Unlock()

	h.journal.Append(journal.Record{
		Kind:   journal.KindPurchase,
		Entity: id.String(),
		Detail: fmt.Sprintf("quantity=%d", quantity),
	})
	return true
}

// PersistEntity writes the current state of id's entity back to the
// store under token. Sessions call it after gem or inventory mutations.
func (h *Hub) PersistEntity(token string, id ids.ID) {
	h.mu.Lock()
	entity, ok := h.m.Entity(id)
	if !ok {
		h.mu.Unlock()
		return
	}
	snapshot := *entity
	h.mu.Unlock()
	if err := h.store.SaveEntity(token, id, &snapshot); err != nil {
		h.log.Printf("save entity %s: %v", id, err)
	}
}

// broadcastLocked fans ev out to every subscriber except skip; a zero
// skip reaches everyone.
func (h *Hub) broadcastLocked(ev event, skip ids.ID) {
	for id, sub := range h.subs {
		if id == skip {
			continue
		}
		select {
		case sub.events <- ev:
		default:
			h.eventsDropped.Add(1)
			if !sub.warned {
				sub.warned = true
				h.log.Printf("session %s: event buffer full, dropping", id)
			}
		}
	}
}

// Stats is a point-in-time snapshot for the metrics endpoint.
type Stats struct {
	Sessions        int
	Entities        int
	ChunksLoaded    int
	Connects        uint64
	Disconnects     uint64
	FramesIn        uint64
	FramesOut       uint64
	MovesRejected   uint64
	ChunksGenerated uint64
	EventsDropped   uint64
	JournalDropped  uint64
}

func (h *Hub) Stats() Stats {
	h.mu.Lock()
	sessions := len(h.subs)
	entities := h.m.EntityCount()
	chunks := h.m.ChunkCount()
	h.mu.Unlock()
	return Stats{
		Sessions:        sessions,
		Entities:        entities,
		ChunksLoaded:    chunks,
		Connects:        h.connects.Load(),
		Disconnects:     h.disconnects.Load(),
		FramesIn:        h.framesIn.Load(),
		FramesOut:       h.framesOut.Load(),
		MovesRejected:   h.movesRejected.Load(),
		ChunksGenerated: h.chunksGenerated.Load(),
		EventsDropped:   h.eventsDropped.Load(),
		JournalDropped:  h.journal.Dropped(),
	}
}

func maxAbs(a, b int32) int32 {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	if a > b {
		return a
	}
	return b
}
