package testutil

import (
	"math/rand"

	"github.com/mitchelldurbincs/FogOfWarPreview/internal/fog"
)

// GridAreas returns cols*rows areas laid out on a square grid with the given
// spacing, starting at (0,0). Areas are listed row by row.
func GridAreas(cols, rows, spacing, radius int) []fog.RevealedArea {
	areas := make([]fog.RevealedArea, 0, cols*rows)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			areas = append(areas, fog.RevealedArea{X: col * spacing, Y: row * spacing, Radius: radius})
		}
	}
	return areas
}

// DuplicateAreas returns n copies of the same area
func DuplicateAreas(n int, area fog.RevealedArea) []fog.RevealedArea {
	areas := make([]fog.RevealedArea, n)
	for i := range areas {
		areas[i] = area
	}
	return areas
}

// ScatterAreas returns n areas with coordinates in [0,size) drawn from rng
func ScatterAreas(rng *rand.Rand, n, size, radius int) []fog.RevealedArea {
	areas := make([]fog.RevealedArea, n)
	for i := range areas {
		areas[i] = fog.RevealedArea{X: rng.Intn(size), Y: rng.Intn(size), Radius: radius}
	}
	return areas
}
