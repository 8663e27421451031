package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"gemrush.dev/internal/client"
	"gemrush.dev/internal/sim/world"
	"gemrush.dev/internal/transport/ws"
)

func main() {
	var (
		url      = flag.String("url", "ws://localhost:5678/ws", "server ws url")
		token    = flag.String("token", "", "session token from an earlier run (empty joins fresh)")
		duration = flag.Duration("duration", 0, "stop after this long (0 runs until interrupted)")
		seed     = flag.Int64("seed", 0, "walk rng seed (0 seeds from the clock)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)

	s := *seed
	if s == 0 {
		s = time.Now().UnixNano()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	c, err := client.Connect(ctx, *url, client.Options{Token: *token, Logger: logger})
	cancel()
	if err != nil {
		logger.Fatalf("connect: %v", err)
	}
	defer c.Close()
	logger.Printf("joined as %s at %v", c.Player.ID, c.Player.Entity.Pos)
	logger.Printf("token %s", c.Token)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	var deadline <-chan time.Time
	if *duration > 0 {
		deadline = time.After(*duration)
	}

	b := &bot{c: c, rng: rand.New(rand.NewSource(s))}
	startValue := c.Player.Entity.Gems.Value()

	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()

loop:
	for {
		select {
		case <-stop:
			break loop
		case <-deadline:
			break loop
		case now := <-tick.C:
			if err := b.step(now); err != nil {
				if errors.Is(err, ws.ErrClosed) {
					logger.Printf("server closed the connection")
				} else {
					logger.Printf("session over: %v", err)
				}
				break loop
			}
		}
	}

	report(logger, c, startValue)
}

// bot wanders the world with the same prediction pipeline a rendering
// client would use, and when its wallet covers a bomb it mines for a
// while.
type bot struct {
	c   *client.Client
	rng *rand.Rand

	dir      world.Direction
	lastMine time.Time
}

func (b *bot) step(now time.Time) error {
	if err := b.c.Poll(now); err != nil {
		return err
	}
	b.c.Update(now)

	// Mostly keep heading, sometimes turn.
	if b.rng.Intn(8) == 0 {
		b.dir = world.Direction(b.rng.Intn(4))
	}
	if err := b.c.Move(b.dir, now); err != nil {
		return err
	}

	if now.Sub(b.lastMine) >= 5*time.Second {
		b.lastMine = now
		if err := b.mine(); err != nil {
			return err
		}
	}

	return b.c.FlushChunkRequests()
}

// mine buys a bomb when the wallet allows, drops whatever bombs are
// held, and sets them off. Every call is a no-op for a broke bot; the
// client mirrors the server's silent refusals.
func (b *bot) mine() error {
	player := b.c.Player.Entity
	if player.Inventory.Count(world.ItemBomb) == 0 && player.Gems.Value() >= world.BombPrice {
		if err := b.c.PurchaseBombs(1); err != nil {
			return err
		}
	}
	if player.Inventory.Count(world.ItemBomb) == 0 {
		return nil
	}
	if err := b.c.PlaceBomb(); err != nil {
		return err
	}
	return b.c.DetonateBombs()
}

func report(logger *log.Logger, c *client.Client, startValue uint64) {
	gems := c.Player.Entity.Gems
	gems.Each(func(g world.Gem, n uint32) {
		logger.Printf("holding %d %s", n, g)
	})
	logger.Printf("gem value %d (%+d this run)", gems.Value(), int64(gems.Value())-int64(startValue))
}
