package world

// Tile is one grid cell, a single byte on the wire and in storage.
//
// Transition tiles blend a category (dirt, water) into surrounding grass.
// The plain-side names (Top, Left, ...) are straight edges, the two-sided
// names (TopLeft, ...) are right-angle double edges, and the Corner names
// are inner corners where only a diagonal neighbour differs.
type Tile uint8

const (
	TileGrass Tile = iota
	TileDirt
	TileWater
	TileRock
	TileRockEmerald
	TileRockRuby
	TileRockDiamond
	TileRockSmashed
	TileFlowerBlue
	TileFlowerYellow

	TileDirtTop
	TileDirtBottom
	TileDirtLeft
	TileDirtRight
	TileDirtTopLeft
	TileDirtTopRight
	TileDirtBottomLeft
	TileDirtBottomRight
	TileDirtCornerTopLeft
	TileDirtCornerTopRight
	TileDirtCornerBottomLeft
	TileDirtCornerBottomRight

	TileWaterTop
	TileWaterBottom
	TileWaterLeft
	TileWaterRight
	TileWaterTopLeft
	TileWaterTopRight
	TileWaterBottomLeft
	TileWaterBottomRight
	TileWaterCornerTopLeft
	TileWaterCornerTopRight
	TileWaterCornerBottomLeft
	TileWaterCornerBottomRight

	tileCount
)

// DecodeTile maps a stored byte to a tile. Unknown values decode to grass
// so corrupt rows stay loadable. Wire decoding is stricter; it checks
// ValidTile and rejects the frame instead.
func DecodeTile(b byte) Tile {
	if !ValidTile(b) {
		return TileGrass
	}
	return Tile(b)
}

func ValidTile(b byte) bool {
	return b < byte(tileCount)
}

// Blocking reports whether entities may not stand on this tile. Water and
// all of its transitions are impassable, as is unsmashed rock.
func (t Tile) Blocking() bool {
	switch {
	case t == TileWater:
		return true
	case t >= TileWaterTop && t <= TileWaterCornerBottomRight:
		return true
	case t >= TileRock && t <= TileRockDiamond:
		return true
	}
	return false
}

// Gem returns the gem embedded in this tile, if any.
func (t Tile) Gem() (Gem, bool) {
	switch t {
	case TileRockEmerald:
		return GemEmerald, true
	case TileRockRuby:
		return GemRuby, true
	case TileRockDiamond:
		return GemDiamond, true
	}
	return GemEmerald, false
}

// Smashable reports whether a bomb blast turns this tile into smashed rock.
func (t Tile) Smashable() bool {
	return t >= TileRock && t <= TileRockDiamond
}

var tileNames = [tileCount]string{
	TileGrass:        "grass",
	TileDirt:         "dirt",
	TileWater:        "water",
	TileRock:         "rock",
	TileRockEmerald:  "rock_emerald",
	TileRockRuby:     "rock_ruby",
	TileRockDiamond:  "rock_diamond",
	TileRockSmashed:  "rock_smashed",
	TileFlowerBlue:   "flower_blue",
	TileFlowerYellow: "flower_yellow",

	TileDirtTop:               "dirt_top",
	TileDirtBottom:            "dirt_bottom",
	TileDirtLeft:              "dirt_left",
	TileDirtRight:             "dirt_right",
	TileDirtTopLeft:           "dirt_top_left",
	TileDirtTopRight:          "dirt_top_right",
	TileDirtBottomLeft:        "dirt_bottom_left",
	TileDirtBottomRight:       "dirt_bottom_right",
	TileDirtCornerTopLeft:     "dirt_corner_top_left",
	TileDirtCornerTopRight:    "dirt_corner_top_right",
	TileDirtCornerBottomLeft:  "dirt_corner_bottom_left",
	TileDirtCornerBottomRight: "dirt_corner_bottom_right",

	TileWaterTop:               "water_top",
	TileWaterBottom:            "water_bottom",
	TileWaterLeft:              "water_left",
	TileWaterRight:             "water_right",
	TileWaterTopLeft:           "water_top_left",
	TileWaterTopRight:          "water_top_right",
	TileWaterBottomLeft:        "water_bottom_left",
	TileWaterBottomRight:       "water_bottom_right",
	TileWaterCornerTopLeft:     "water_corner_top_left",
	TileWaterCornerTopRight:    "water_corner_top_right",
	TileWaterCornerBottomLeft:  "water_corner_bottom_left",
	TileWaterCornerBottomRight: "water_corner_bottom_right",
}

func (t Tile) String() string {
	if t >= tileCount {
		return "unknown"
	}
	return tileNames[t]
}
