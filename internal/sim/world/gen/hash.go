package gen

import "gemrush.dev/internal/sim/world"

func floorDiv(a, b int32) int32 {
	// b > 0
	q := a / b
	r := a % b
	if r < 0 {
		q--
	}
	return q
}

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func hash2(seed int64, x, y int32) uint64 {
	ux := uint64(uint32(x))
	uy := uint64(uint32(y))
	v := uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uy * 0xbf58476d1ce4e5b9)
	return mix64(v)
}

// inCluster reports whether tile lies inside a hashed blob on a lattice of
// grid-sized cells. Each cell hashes out presence and a centre point; the
// 3x3 neighbourhood check keeps blobs whole across cell borders.
func inCluster(seed int64, tile world.TileCoords, grid, radius int32, probPermille uint64) bool {
	if grid <= 0 || radius <= 0 || probPermille == 0 {
		return false
	}
	gx := floorDiv(tile.X, grid)
	gy := floorDiv(tile.Y, grid)
	r2 := radius * radius

	for dy := int32(-1); dy <= 1; dy++ {
		for dx := int32(-1); dx <= 1; dx++ {
			cgx := gx + dx
			cgy := gy + dy
			h := hash2(seed, cgx, cgy)
			if h%1000 >= probPermille {
				continue
			}

			ox := int32((h >> 10) % uint64(grid))
			oy := int32((h >> 20) % uint64(grid))
			cx := cgx*grid + ox
			cy := cgy*grid + oy

			ddx := tile.X - cx
			ddy := tile.Y - cy
			if ddx*ddx+ddy*ddy <= r2 {
				return true
			}
		}
	}
	return false
}
