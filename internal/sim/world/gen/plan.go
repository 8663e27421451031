package gen

import "gemrush.dev/internal/sim/world"

// Category is the coarse terrain class a position holds before transition
// resolution turns it into a concrete tile.
type Category uint8

const (
	CategoryGrass Category = iota
	CategoryDirt
	CategoryWater
)

// ChunkPlan is the intermediate category grid for one chunk. Unset offsets
// and offsets outside [0,16)^2 read as grass, so neighbour checks at chunk
// borders see grass beyond the edge and borders resolve to edge tiles.
type ChunkPlan struct {
	categories map[world.OffsetCoords]Category
}

func NewChunkPlan() *ChunkPlan {
	return &ChunkPlan{categories: make(map[world.OffsetCoords]Category, world.ChunkTileCount)}
}

func (p *ChunkPlan) SetCategory(o world.OffsetCoords, c Category) {
	p.categories[o] = c
}

func (p *ChunkPlan) CategoryAt(o world.OffsetCoords) Category {
	if c, ok := p.categories[o]; ok {
		return c
	}
	return CategoryGrass
}

// RemoveJutting demotes to grass every non-grass position whose orthogonal
// neighbours disagree with it on 3 or more of 4 sides. Lone tiles,
// dominoes, and L-triominoes of a category dissolve entirely; 2x2 blocks
// survive. Demoting a position re-queues the neighbours that shared its
// old category, since losing support can leave them jutting too. The work
// stack keeps processing order fixed, so results are deterministic.
func (p *ChunkPlan) RemoveJutting() {
	stack := make([]world.OffsetCoords, 0, world.ChunkTileCount)
	for y := int32(0); y < world.ChunkHeight; y++ {
		for x := int32(0); x < world.ChunkWidth; x++ {
			stack = append(stack, world.OffsetCoords{X: x, Y: y})
		}
	}

	for len(stack) > 0 {
		o := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		cat := p.CategoryAt(o)
		if cat == CategoryGrass {
			continue
		}

		neighbours := [4]world.OffsetCoords{
			{X: o.X - 1, Y: o.Y},
			{X: o.X, Y: o.Y - 1},
			{X: o.X + 1, Y: o.Y},
			{X: o.X, Y: o.Y + 1},
		}
		matching := neighbours[:0:0]
		for _, n := range neighbours {
			if p.CategoryAt(n) == cat {
				matching = append(matching, n)
			}
		}
		if len(matching) > 1 {
			continue
		}

		p.categories[o] = CategoryGrass
		stack = append(stack, matching...)
	}
}

// TransitionSet names the concrete tiles that blend one category into
// surrounding grass.
type TransitionSet struct {
	Center world.Tile

	Top, Bottom, Left, Right world.Tile

	TopLeft, TopRight, BottomLeft, BottomRight world.Tile

	CornerTopLeft, CornerTopRight, CornerBottomLeft, CornerBottomRight world.Tile
}

var DirtTransitions = TransitionSet{
	Center:            world.TileDirt,
	Top:               world.TileDirtTop,
	Bottom:            world.TileDirtBottom,
	Left:              world.TileDirtLeft,
	Right:             world.TileDirtRight,
	TopLeft:           world.TileDirtTopLeft,
	TopRight:          world.TileDirtTopRight,
	BottomLeft:        world.TileDirtBottomLeft,
	BottomRight:       world.TileDirtBottomRight,
	CornerTopLeft:     world.TileDirtCornerTopLeft,
	CornerTopRight:    world.TileDirtCornerTopRight,
	CornerBottomLeft:  world.TileDirtCornerBottomLeft,
	CornerBottomRight: world.TileDirtCornerBottomRight,
}

var WaterTransitions = TransitionSet{
	Center:            world.TileWater,
	Top:               world.TileWaterTop,
	Bottom:            world.TileWaterBottom,
	Left:              world.TileWaterLeft,
	Right:             world.TileWaterRight,
	TopLeft:           world.TileWaterTopLeft,
	TopRight:          world.TileWaterTopRight,
	BottomLeft:        world.TileWaterBottomLeft,
	BottomRight:       world.TileWaterBottomRight,
	CornerTopLeft:     world.TileWaterCornerTopLeft,
	CornerTopRight:    world.TileWaterCornerTopRight,
	CornerBottomLeft:  world.TileWaterCornerBottomLeft,
	CornerBottomRight: world.TileWaterCornerBottomRight,
}

// resolveTransition picks the tile for a non-grass position from the
// same-category match tuple of its four orthogonal neighbours. Right-angle
// double edges win over straight edges, straight edges over inner corners.
// Shapes jutting removal never leaves behind (three or more differing
// sides, opposite-side corridors) fall through to the centre tile.
func (p *ChunkPlan) resolveTransition(o world.OffsetCoords, cat Category, set TransitionSet) world.Tile {
	same := func(dx, dy int32) bool {
		return p.CategoryAt(world.OffsetCoords{X: o.X + dx, Y: o.Y + dy}) == cat
	}
	left, up, right, down := same(-1, 0), same(0, -1), same(1, 0), same(0, 1)

	switch {
	case !left && !up && right && down:
		return set.TopLeft
	case left && !up && !right && down:
		return set.TopRight
	case !left && up && right && !down:
		return set.BottomLeft
	case left && up && !right && !down:
		return set.BottomRight
	case !left && up && right && down:
		return set.Left
	case left && !up && right && down:
		return set.Top
	case left && up && !right && down:
		return set.Right
	case left && up && right && !down:
		return set.Bottom
	case left && up && right && down:
		switch {
		case !same(-1, -1):
			return set.CornerTopLeft
		case !same(1, -1):
			return set.CornerTopRight
		case !same(-1, 1):
			return set.CornerBottomLeft
		case !same(1, 1):
			return set.CornerBottomRight
		}
	}
	return set.Center
}

// ToChunk renders the plan into tiles. Dirt and water positions resolve
// through their transition sets; nonTransition supplies the tile for every
// grass position (plain grass, decorations, rocks).
func (p *ChunkPlan) ToChunk(coords world.ChunkCoords, nonTransition func(world.OffsetCoords) world.Tile) *world.Chunk {
	chunk := world.NewChunk(coords)
	for y := int32(0); y < world.ChunkHeight; y++ {
		for x := int32(0); x < world.ChunkWidth; x++ {
			o := world.OffsetCoords{X: x, Y: y}
			switch cat := p.CategoryAt(o); cat {
			case CategoryDirt:
				chunk.SetTileAt(o, p.resolveTransition(o, cat, DirtTransitions))
			case CategoryWater:
				chunk.SetTileAt(o, p.resolveTransition(o, cat, WaterTransitions))
			default:
				chunk.SetTileAt(o, nonTransition(o))
			}
		}
	}
	return chunk
}
