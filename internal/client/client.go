package client

import (
	"context"
	"fmt"
	"log"
	"time"

	"gemrush.dev/internal/protocol"
	"gemrush.dev/internal/sim/ids"
	"gemrush.dev/internal/sim/world"
	"gemrush.dev/internal/transport/ws"
)

const welcomeTimeout = 5 * time.Second

type Options struct {
	// Token is the identity from an earlier session; empty joins fresh.
	Token        string
	WalkDuration time.Duration
	Logger       *log.Logger
}

// Client ties the pieces together for a headless or rendering client:
// the connection, the partial map, the predicted player, and the tween
// table for everybody else. Not safe for concurrent use; drive it from
// one loop.
type Client struct {
	conn *ws.Conn
	log  *log.Logger

	Token  string
	Map    *ClientMap
	Player *PlayerEntity

	walkDuration time.Duration
	tweens       map[ids.ID]Tween
}

// Connect dials the server, performs the hello/welcome handshake, and
// returns a ready client.
func Connect(ctx context.Context, url string, opts Options) (*Client, error) {
	if opts.WalkDuration <= 0 {
		opts.WalkDuration = 100 * time.Millisecond
	}
	conn, err := ws.Dial(ctx, url)
	if err != nil {
		return nil, err
	}
	hello := protocol.Hello{Version: protocol.Version, Token: opts.Token}
	if err := conn.Send(protocol.EncodeToServer(hello)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send hello: %w", err)
	}
	frame, err := conn.ReceiveTimeout(welcomeTimeout)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("await welcome: %w", err)
	}
	msg, err := protocol.DecodeFromServer(frame)
	if err != nil {
		conn.Close()
		return nil, err
	}
	welcome, ok := msg.(protocol.Welcome)
	if !ok {
		conn.Close()
		return nil, fmt.Errorf("expected welcome, got %T", msg)
	}

	entity := welcome.Entity
	return &Client{
		conn:         conn,
		log:          opts.Logger,
		Token:        welcome.Token,
		Map:          NewClientMap(),
		Player:       NewPlayerEntity(welcome.ID, &entity, opts.WalkDuration),
		walkDuration: opts.WalkDuration,
		tweens:       map[ids.ID]Tween{},
	}, nil
}

func (c *Client) Close() error { return c.conn.Close() }

// Poll drains every frame the server has sent so far and applies it to
// the replica. It never blocks; call it once per loop iteration.
func (c *Client) Poll(now time.Time) error {
	for {
		frame, ok, err := c.conn.TryReceive()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		msg, err := protocol.DecodeFromServer(frame)
		if err != nil {
			return err
		}
		c.apply(msg, now)
	}
}

func (c *Client) apply(msg protocol.FromServer, now time.Time) {
	switch m := msg.(type) {
	case protocol.Welcome:
		// A re-welcome refreshes the authoritative self snapshot.
		entity := m.Entity
		c.Token = m.Token
		c.Player = NewPlayerEntity(m.ID, &entity, c.walkDuration)

	case protocol.ProvideChunk:
		chunk := m.Chunk
		c.Map.PutChunk(&chunk)

	case protocol.ShouldUnloadChunk:
		c.Map.RemoveChunk(m.Coords)

	case protocol.ChangeTile:
		if !c.Map.Loaded(m.Pos.Chunk()) {
			c.warnf("tile change for unloaded chunk %v", m.Pos.Chunk())
			return
		}
		world.SetTileAt(c.Map, m.Pos, m.Tile)

	case protocol.ProvideEntity:
		if m.ID == c.Player.ID {
			return
		}
		entity := m.Entity
		c.Map.PutEntity(m.ID, &entity)
		delete(c.tweens, m.ID)

	case protocol.ShouldUnloadEntity:
		c.Map.RemoveEntity(m.ID)
		delete(c.tweens, m.ID)

	case protocol.MoveEntity:
		entity, ok := c.Map.Entity(m.ID)
		if !ok {
			// The provide for this entity is still in flight or its
			// chunk was already dropped; either way it resolves itself.
			return
		}
		from := entity.Pos
		entity.Pos = m.Pos
		entity.Direction = m.Direction
		c.tweens[m.ID] = NewTween(from, m.Pos, now, c.walkDuration)

	case protocol.YourEntityMoved:
		c.Player.ReceiveCorrection(m.Request, m.Pos, now)

	case protocol.YouCollectedGems:
		c.Player.Entity.Gems.Add(m.Gem, m.Quantity)
	}
}

// Update advances the player state machine and expires finished remote
// tweens.
func (c *Client) Update(now time.Time) {
	c.Player.Update(now)
	for id, tw := range c.tweens {
		if tw.Done(now) {
			delete(c.tweens, id)
		}
	}
}

// Move runs one predicted step and tells the server when the step
// applied locally.
func (c *Client) Move(dir world.Direction, now time.Time) error {
	msg, ok := c.Player.MoveTowards(dir, c.Map, now)
	if !ok {
		return nil
	}
	return c.send(msg)
}

// FlushChunkRequests asks the server for every chunk a read has wanted
// since the last flush.
func (c *Client) FlushChunkRequests() error {
	return c.Map.FlushRequests(func(coords world.ChunkCoords) error {
		return c.send(protocol.RequestChunk{Coords: coords})
	})
}

// PlaceBomb arms a bomb at the player's tile when one is in the local
// inventory, mirroring the server's silent refusal otherwise.
func (c *Client) PlaceBomb() error {
	if !c.Player.Entity.Inventory.Take(world.ItemBomb) {
		return nil
	}
	c.Player.Entity.BombsPlaced++
	return c.send(protocol.PlaceBomb{})
}

// DetonateBombs sets off everything the player has placed; collected
// gems arrive back as YouCollectedGems.
func (c *Client) DetonateBombs() error {
	return c.send(protocol.DetonateBombs{})
}

// PurchaseBombs spends local gems and tells the server; both sides
// apply the same debit rule, and the purchase is silent on the wire
// either way.
func (c *Client) PurchaseBombs(quantity uint32) error {
	if quantity == 0 {
		return nil
	}
	if !c.Player.Entity.Gems.Spend(uint64(quantity) * world.BombPrice) {
		return nil
	}
	c.Player.Entity.Inventory.Give(world.ItemBomb, quantity)
	return c.send(protocol.PurchaseBombs{Quantity: quantity})
}

// RemoteTween exposes the interpolation for one remote entity, when a
// move is still animating.
func (c *Client) RemoteTween(id ids.ID) (Tween, bool) {
	tw, ok := c.tweens[id]
	return tw, ok
}

func (c *Client) send(msg protocol.ToServer) error {
	return c.conn.Send(protocol.EncodeToServer(msg))
}

func (c *Client) warnf(format string, args ...any) {
	if c.log != nil {
		c.log.Printf(format, args...)
	}
}
