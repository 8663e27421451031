package server

import (
	"errors"
	"fmt"
	"log"
	"time"

	"gemrush.dev/internal/protocol"
	"gemrush.dev/internal/sim/ids"
	"gemrush.dev/internal/sim/world"
	"gemrush.dev/internal/transport/ws"
)

const handshakeTimeout = 5 * time.Second

// Session drives one client connection: handshake, inbound messages,
// and this connection's slice of the event fan-out. Every socket write
// happens on the session goroutine, so frames never interleave.
type Session struct {
	hub  *Hub
	conn *ws.Conn
	log  *log.Logger

	token  string
	id     ids.ID
	events <-chan event

	// View tracking: chunks this client holds and entities it has been
	// provided, with the last position it saw for each.
	held     map[world.ChunkCoords]struct{}
	provided map[ids.ID]world.TileCoords
}

// RunSession handles one connection from handshake to cleanup and
// returns when the connection is done.
func RunSession(hub *Hub, conn *ws.Conn, logger *log.Logger) {
	s := &Session{
		hub:      hub,
		conn:     conn,
		log:      logger,
		held:     map[world.ChunkCoords]struct{}{},
		provided: map[ids.ID]world.TileCoords{},
	}

	hello, err := s.awaitHello()
	if err != nil {
		s.logClose(err)
		return
	}
	joined, err := hub.Join(hello.Token)
	if err != nil {
		s.log.Printf("session join: %v", err)
		return
	}
	s.token = joined.Token
	s.id = joined.ID
	s.events = joined.Events
	defer s.hub.Leave(s.token, s.id)

	if err := s.send(protocol.Welcome{Token: joined.Token, ID: joined.ID, Entity: joined.Entity}); err != nil {
		s.logClose(err)
		return
	}
	s.logClose(s.loop())
}

func (s *Session) awaitHello() (protocol.Hello, error) {
	frame, err := s.conn.ReceiveTimeout(handshakeTimeout)
	if err != nil {
		return protocol.Hello{}, err
	}
	msg, err := protocol.DecodeToServer(frame)
	if err != nil {
		return protocol.Hello{}, err
	}
	hello, ok := msg.(protocol.Hello)
	if !ok {
		return protocol.Hello{}, fmt.Errorf("expected hello, got %T", msg)
	}
	if hello.Version != protocol.Version {
		return protocol.Hello{}, fmt.Errorf("unsupported protocol version %d", hello.Version)
	}
	return hello, nil
}

type inbound struct {
	frame []byte
	err   error
}

func (s *Session) loop() error {
	in := make(chan inbound)
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			frame, err := s.conn.Receive()
			m := inbound{frame: frame, err: err}
			select {
			case in <- m:
			case <-done:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(s.hub.cfg.PingInterval)
	defer ping.Stop()

	for {
		select {
		case m := <-in:
			if m.err != nil {
				return m.err
			}
			s.hub.framesIn.Add(1)
			msg, err := protocol.DecodeToServer(m.frame)
			if err != nil {
				return err
			}
			if err := s.handle(msg); err != nil {
				return err
			}
		case ev := <-s.events:
			if err := s.deliver(ev); err != nil {
				return err
			}
		case <-ping.C:
			if err := s.conn.Ping(); err != nil {
				return err
			}
		case <-s.hub.closing:
			return ErrShuttingDown
		}
	}
}

func (s *Session) handle(msg protocol.ToServer) error {
	switch m := msg.(type) {
	case protocol.Hello:
		return errors.New("unexpected hello after handshake")
	case protocol.RequestChunk:
		return s.provideChunk(m.Coords)
	case protocol.Move:
		return s.move(m)
	case protocol.PlaceBomb:
		if s.hub.PlaceBomb(s.id) {
			s.hub.PersistEntity(s.token, s.id)
		}
		return nil
	case protocol.DetonateBombs:
		return s.detonate()
	case protocol.PurchaseBombs:
		if s.hub.PurchaseBombs(s.id, m.Quantity) {
			s.hub.PersistEntity(s.token, s.id)
		}
		return nil
	default:
		return fmt.Errorf("unhandled message %T", msg)
	}
}

func (s *Session) provideChunk(coords world.ChunkCoords) error {
	chunk, present, err := s.hub.ChunkSnapshot(coords)
	if err != nil {
		return err
	}
	if err := s.send(protocol.ProvideChunk{Chunk: chunk}); err != nil {
		return err
	}
	s.held[coords] = struct{}{}
	for _, view := range present {
		if view.id == s.id {
			continue
		}
		if _, already := s.provided[view.id]; already {
			s.provided[view.id] = view.entity.Pos
			continue
		}
		if err := s.send(protocol.ProvideEntity{ID: view.id, Entity: view.entity}); err != nil {
			return err
		}
		s.provided[view.id] = view.entity.Pos
	}
	return nil
}

func (s *Session) move(m protocol.Move) error {
	outcome, err := s.hub.Move(s.id, m.Request, m.Direction)
	if err != nil {
		return err
	}
	if !outcome.Committed {
		return s.send(protocol.YourEntityMoved{Request: m.Request, Pos: outcome.Pos})
	}
	// A committed move is silent for the mover; only the view hints
	// follow it.
	return s.pruneView(outcome.Pos.Chunk())
}

// pruneView tells the client to drop chunks outside the stream radius
// around center, and entities that no longer stand in any held chunk.
func (s *Session) pruneView(center world.ChunkCoords) error {
	for coords := range s.held {
		if chunkDistance(coords, center) <= s.hub.cfg.StreamRadius {
			continue
		}
		if err := s.send(protocol.ShouldUnloadChunk{Coords: coords}); err != nil {
			return err
		}
		delete(s.held, coords)
	}
	for id, pos := range s.provided {
		if _, ok := s.held[pos.Chunk()]; ok {
			continue
		}
		if err := s.send(protocol.ShouldUnloadEntity{ID: id}); err != nil {
			return err
		}
		delete(s.provided, id)
	}
	return nil
}

func (s *Session) detonate() error {
	collected := s.hub.DetonateBombs(s.id)
	var sendErr error
	collected.Each(func(g world.Gem, n uint32) {
		if sendErr != nil || n == 0 {
			return
		}
		sendErr = s.send(protocol.YouCollectedGems{Gem: g, Quantity: n})
	})
	if sendErr != nil {
		return sendErr
	}
	s.hub.PersistEntity(s.token, s.id)
	return nil
}

func (s *Session) deliver(ev event) error {
	switch e := ev.(type) {
	case entityAdded:
		if e.id == s.id {
			return nil
		}
		if _, ok := s.held[e.entity.Pos.Chunk()]; !ok {
			return nil
		}
		if err := s.send(protocol.ProvideEntity{ID: e.id, Entity: e.entity}); err != nil {
			return err
		}
		s.provided[e.id] = e.entity.Pos
		return nil

	case entityRemoved:
		if _, ok := s.provided[e.id]; !ok {
			return nil
		}
		delete(s.provided, e.id)
		return s.send(protocol.ShouldUnloadEntity{ID: e.id})

	case entityMoved:
		if e.id == s.id {
			return nil
		}
		_, wasProvided := s.provided[e.id]
		_, inView := s.held[e.pos.Chunk()]
		switch {
		case wasProvided && inView:
			s.provided[e.id] = e.pos
			return s.send(protocol.MoveEntity{ID: e.id, Pos: e.pos, Direction: e.direction})
		case wasProvided:
			delete(s.provided, e.id)
			return s.send(protocol.ShouldUnloadEntity{ID: e.id})
		case inView:
			entity, ok := s.hub.EntitySnapshot(e.id)
			if !ok {
				return nil
			}
			if err := s.send(protocol.ProvideEntity{ID: e.id, Entity: entity}); err != nil {
				return err
			}
			s.provided[e.id] = entity.Pos
			return nil
		default:
			return nil
		}

	case tileChanged:
		if _, ok := s.held[e.pos.Chunk()]; !ok {
			return nil
		}
		return s.send(protocol.ChangeTile{Pos: e.pos, Tile: e.tile})

	default:
		return nil
	}
}

func (s *Session) send(msg protocol.FromServer) error {
	s.hub.framesOut.Add(1)
	return s.conn.Send(protocol.EncodeFromServer(msg))
}

func (s *Session) logClose(err error) {
	who := "(pre-join)"
	if s.id != 0 {
		who = s.id.String()
	}
	var decodeErr *protocol.DecodeError
	var connErr *ws.ConnectionError
	switch {
	case err == nil:
		s.log.Printf("session %s: closed", who)
	case errors.Is(err, ErrShuttingDown):
		s.log.Printf("session %s: server shutting down", who)
	case errors.Is(err, ws.ErrClosed):
		s.log.Printf("session %s: peer closed", who)
	case errors.As(err, &decodeErr):
		s.log.Printf("session %s: malformed payload: %v", who, err)
	case errors.As(err, &connErr):
		s.log.Printf("session %s: connection fault: %v", who, err)
	default:
		s.log.Printf("session %s: %v", who, err)
	}
}

func chunkDistance(a, b world.ChunkCoords) int32 {
	return maxAbs(a.X-b.X, a.Y-b.Y)
}
