package match

import "fmt"

const (
	tileEmpty byte = 0
	tileWall  byte = 1
	tileBrick byte = 2
)

// buildWorldTiles generates the deterministic tile grid of spec.md §3:
// a hard-wall border and even/even pillars, a 3x3 empty spawn-safe region
// at each corner, and a deterministic interior brick pattern.
func buildWorldTiles(gridW, gridH int) []byte {
	tiles := make([]byte, gridW*gridH)

	for y := 0; y < gridH; y++ {
		for x := 0; x < gridW; x++ {
			i := y*gridW + x
			switch {
			case x == 0 || y == 0 || x == gridW-1 || y == gridH-1:
				tiles[i] = tileWall
			case x%2 == 0 && y%2 == 0:
				tiles[i] = tileWall
			case (x+y)%3 == 0:
				tiles[i] = tileBrick
			default:
				tiles[i] = tileEmpty
			}
		}
	}

	for _, corner := range corners(gridW, gridH) {
		clearSpawnRegion(tiles, gridW, gridH, corner[0], corner[1])
	}

	return tiles
}

// corners returns the four spawn-safe corner anchor cells (spec.md §4.2).
func corners(gridW, gridH int) [4][2]int {
	return [4][2]int{
		{1, 1},
		{gridW - 2, 1},
		{1, gridH - 2},
		{gridW - 2, gridH - 2},
	}
}

func clearSpawnRegion(tiles []byte, gridW, gridH, cx, cy int) {
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			x, y := cx+dx, cy+dy
			if x <= 0 || y <= 0 || x >= gridW-1 || y >= gridH-1 {
				continue
			}
			tiles[y*gridW+x] = tileEmpty
		}
	}
}

// worldHash computes the FNV-1a-32 hash of the tile grid, hex-encoded, so
// identical tiles produce an identical hash across reruns (spec.md §3).
func worldHash(tiles []byte) string {
	const (
		offsetBasis uint32 = 2166136261
		prime       uint32 = 16777619
	)
	h := offsetBasis
	for _, b := range tiles {
		h ^= uint32(b)
		h *= prime
	}
	return fmt.Sprintf("%08x", h)
}

// BuildWorldForSpawns exposes world generation to matchmgr so it can
// compute spawn corners before a Match exists.
func BuildWorldForSpawns(gridW, gridH int) World {
	return buildWorld(gridW, gridH)
}

// SpawnCorners returns the four corner spawn cells used by createMatch
// (spec.md §4.2).
func (w World) SpawnCorners() [4][2]int {
	return corners(w.GridW, w.GridH)
}

func buildWorld(gridW, gridH int) World {
	tiles := buildWorldTiles(gridW, gridH)
	return World{
		GridW:     gridW,
		GridH:     gridH,
		Tiles:     tiles,
		WorldHash: worldHash(tiles),
	}
}

func (w *World) inBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < w.GridW && y < w.GridH
}

func (w *World) tileAt(x, y int) byte {
	return w.Tiles[y*w.GridW+x]
}

func (w *World) isEmpty(x, y int) bool {
	return w.inBounds(x, y) && w.tileAt(x, y) == tileEmpty
}
