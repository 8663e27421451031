package client

import (
	"time"

	"gemrush.dev/internal/sim/world"
)

// Tween interpolates an entity's rendered position between two tiles.
// The world state snaps instantly; tweens exist so a renderer can slide
// bodies between tiles instead of teleporting them.
type Tween struct {
	From     world.TileCoords
	To       world.TileCoords
	Start    time.Time
	Duration time.Duration
}

func NewTween(from, to world.TileCoords, start time.Time, d time.Duration) Tween {
	return Tween{From: from, To: to, Start: start, Duration: d}
}

func (tw Tween) Done(now time.Time) bool {
	return !now.Before(tw.Start.Add(tw.Duration))
}

// Pos returns the interpolated position in fractional tile coordinates.
func (tw Tween) Pos(now time.Time) (x, y float64) {
	if tw.Duration <= 0 {
		return float64(tw.To.X), float64(tw.To.Y)
	}
	t := float64(now.Sub(tw.Start)) / float64(tw.Duration)
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	x = float64(tw.From.X) + (float64(tw.To.X)-float64(tw.From.X))*t
	y = float64(tw.From.Y) + (float64(tw.To.Y)-float64(tw.From.Y))*t
	return x, y
}
