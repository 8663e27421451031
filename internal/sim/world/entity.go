package world

import "math/rand"

// Entity is a player-controlled body in the world. The server's copy is
// authoritative; each client holds replicas of nearby entities plus a
// predicted copy of its own.
type Entity struct {
	Pos       TileCoords
	Direction Direction

	// FacialExpression is transient; it never persists and loads as
	// neutral.
	FacialExpression FacialExpression
	HairStyle        HairStyle
	ClothingColour   ClothingColour
	SkinColour       SkinColour
	HairColour       HairColour

	Gems        GemCollection
	Inventory   Inventory
	BombsPlaced uint32
}

// NewRandomEntity rolls a fresh entity with random cosmetics standing at
// pos, facing down.
func NewRandomEntity(rng *rand.Rand, pos TileCoords) *Entity {
	return &Entity{
		Pos:            pos,
		Direction:      DirectionDown,
		HairStyle:      HairStyle(rng.Intn(int(hairStyleCount))),
		ClothingColour: ClothingColour(rng.Intn(int(clothingColourCount))),
		SkinColour:     SkinColour(rng.Intn(int(skinColourCount))),
		HairColour:     HairColour(rng.Intn(int(hairColourCount))),
	}
}

type FacialExpression uint8

const (
	ExpressionNeutral FacialExpression = iota
	ExpressionShocked
	ExpressionSkeptical
	ExpressionAngry

	expressionCount
)

type HairStyle uint8

const (
	HairQuiff HairStyle = iota
	HairMohawk
	HairFringe
	HairBald

	hairStyleCount
)

type ClothingColour uint8

const (
	ClothingGrey ClothingColour = iota
	ClothingWhite
	ClothingRed
	ClothingGreen
	ClothingBlue

	clothingColourCount
)

type SkinColour uint8

const (
	SkinBlack SkinColour = iota
	SkinBrown
	SkinPale
	SkinWhite

	skinColourCount
)

type HairColour uint8

const (
	HairColourBlack HairColour = iota
	HairColourBrown
	HairColourBlonde
	HairColourWhite
	HairColourRed

	hairColourCount
)

// clampCosmetic keeps a decoded cosmetic byte inside its enum range.
func clampCosmetic(b byte, count uint8) uint8 {
	if b >= count {
		return 0
	}
	return b
}

func DecodeFacialExpression(b byte) FacialExpression {
	return FacialExpression(clampCosmetic(b, uint8(expressionCount)))
}

func DecodeHairStyle(b byte) HairStyle {
	return HairStyle(clampCosmetic(b, uint8(hairStyleCount)))
}

func DecodeClothingColour(b byte) ClothingColour {
	return ClothingColour(clampCosmetic(b, uint8(clothingColourCount)))
}

func DecodeSkinColour(b byte) SkinColour {
	return SkinColour(clampCosmetic(b, uint8(skinColourCount)))
}

func DecodeHairColour(b byte) HairColour {
	return HairColour(clampCosmetic(b, uint8(hairColourCount)))
}
