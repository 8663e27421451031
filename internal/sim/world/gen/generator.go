package gen

import "gemrush.dev/internal/sim/world"

// Generator produces chunks deterministically: the same name, seed, and
// coordinates yield a bit-identical chunk on every call, in every process.
type Generator interface {
	Name() string
	Generate(world.ChunkCoords) *world.Chunk
}

// ByName looks up a generator by its persisted name. "surface" is the
// overworld generator and currently the only one.
func ByName(name string, seed int64) (Generator, bool) {
	switch name {
	case "surface":
		return NewSurface(seed), true
	}
	return nil, false
}

// Per-purpose seed offsets keep the hash lattices independent of each
// other while deriving from the one world seed.
const (
	seedOffsetWater  = 101
	seedOffsetDirt   = 102
	seedOffsetFlower = 103
	seedOffsetRock   = 104
	seedOffsetGem    = 105
)

// Worldgen tuning. Fixed rather than configurable: world shape is part of
// the contract between the server and any offline tooling reading the same
// seed.
const (
	waterGrid         = 24
	waterRadius       = 4
	waterProbPermille = 420

	dirtGrid         = 16
	dirtRadius       = 3
	dirtProbPermille = 500

	flowerPermille = 22
	rockPermille   = 11

	spawnClearRadius = 8
)

// Surface is the overworld generator: grass plains with hashed lakes and
// dirt patches, a flower sprinkle, and rock outcrops hiding gems.
type Surface struct {
	seed int64
}

func NewSurface(seed int64) *Surface {
	return &Surface{seed: seed}
}

func (s *Surface) Name() string { return "surface" }

func (s *Surface) Generate(coords world.ChunkCoords) *world.Chunk {
	plan := NewChunkPlan()
	for y := int32(0); y < world.ChunkHeight; y++ {
		for x := int32(0); x < world.ChunkWidth; x++ {
			o := world.OffsetCoords{X: x, Y: y}
			tile := coords.Tile(o)
			if withinSpawnClear(tile) {
				continue
			}
			switch {
			case inCluster(s.seed+seedOffsetWater, tile, waterGrid, waterRadius, waterProbPermille):
				plan.SetCategory(o, CategoryWater)
			case inCluster(s.seed+seedOffsetDirt, tile, dirtGrid, dirtRadius, dirtProbPermille):
				plan.SetCategory(o, CategoryDirt)
			}
		}
	}
	plan.RemoveJutting()

	return plan.ToChunk(coords, func(o world.OffsetCoords) world.Tile {
		return s.grassTile(coords.Tile(o))
	})
}

// withinSpawnClear keeps the area around the origin walkable so fresh
// entities never spawn walled in.
func withinSpawnClear(tile world.TileCoords) bool {
	dx := int64(tile.X)
	dy := int64(tile.Y)
	return dx*dx+dy*dy <= spawnClearRadius*spawnClearRadius
}

// grassTile sprinkles rocks and flowers over plain grass. Gem rocks get
// rarer with gem value.
func (s *Surface) grassTile(tile world.TileCoords) world.Tile {
	if withinSpawnClear(tile) {
		return world.TileGrass
	}
	h := hash2(s.seed+seedOffsetRock, tile.X, tile.Y)
	if h%1000 < rockPermille {
		switch g := hash2(s.seed+seedOffsetGem, tile.X, tile.Y) % 100; {
		case g < 4:
			return world.TileRockDiamond
		case g < 16:
			return world.TileRockRuby
		case g < 40:
			return world.TileRockEmerald
		default:
			return world.TileRock
		}
	}
	f := hash2(s.seed+seedOffsetFlower, tile.X, tile.Y)
	if f%1000 < flowerPermille {
		if (f>>10)&1 == 0 {
			return world.TileFlowerBlue
		}
		return world.TileFlowerYellow
	}
	return world.TileGrass
}
