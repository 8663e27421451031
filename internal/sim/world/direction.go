package world

// Direction is a 4-way facing and movement direction. Y grows downward, so
// Down steps toward +Y.
type Direction uint8

const (
	DirectionDown Direction = iota
	DirectionUp
	DirectionLeft
	DirectionRight
)

// DecodeDirection maps a wire/storage byte to a direction, defaulting
// unknown values to Down.
func DecodeDirection(b byte) Direction {
	if b > byte(DirectionRight) {
		return DirectionDown
	}
	return Direction(b)
}

// MoveTowards returns pos stepped one tile in this direction.
func (d Direction) MoveTowards(pos TileCoords) TileCoords {
	switch d {
	case DirectionDown:
		pos.Y++
	case DirectionUp:
		pos.Y--
	case DirectionLeft:
		pos.X--
	case DirectionRight:
		pos.X++
	}
	return pos
}

func (d Direction) String() string {
	switch d {
	case DirectionDown:
		return "down"
	case DirectionUp:
		return "up"
	case DirectionLeft:
		return "left"
	case DirectionRight:
		return "right"
	}
	return "down"
}
