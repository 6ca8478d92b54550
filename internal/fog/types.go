// Package fog keeps track of which parts of a battle map have been revealed
// to players and persists that state inside the map's unified document.
package fog

import (
	"errors"
	"math"
)

var (
	// ErrInvalidArea is returned for areas that cannot be revealed or hidden
	ErrInvalidArea = errors.New("invalid revealed area")
	// ErrEmptyMapName is returned when an operation is called without a map name
	ErrEmptyMapName = errors.New("map name is required")
)

// RevealedArea is a circle, or one grid cell when IsGridCell is set, that is no
// longer covered by fog. Areas are added and removed whole, never edited.
type RevealedArea struct {
	X          int  `json:"x"`
	Y          int  `json:"y"`
	Radius     int  `json:"radius"`
	IsGridCell bool `json:"isGridCell"`
}

// AreaFromFloats builds an area from client or stored coordinates, which may
// be fractional. Values are truncated toward zero.
func AreaFromFloats(x, y, radius float64, isGridCell bool) RevealedArea {
	return RevealedArea{
		X:          int(math.Trunc(x)),
		Y:          int(math.Trunc(y)),
		Radius:     int(math.Trunc(radius)),
		IsGridCell: isGridCell,
	}
}

// Validate rejects areas with a negative radius
func (a RevealedArea) Validate() error {
	if a.Radius < 0 {
		return ErrInvalidArea
	}
	return nil
}

// distance returns the Euclidean distance between the two centers
func (a RevealedArea) distance(b RevealedArea) float64 {
	dx := float64(a.X - b.X)
	dy := float64(a.Y - b.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// State is the reveal state of a single map. RevealedAreas is never nil; an
// empty slice means the whole map is hidden.
type State struct {
	MapName       string         `json:"mapName"`
	RevealedAreas []RevealedArea `json:"revealedAreas"`
}

// NewState returns a fully hidden state for mapName
func NewState(mapName string) State {
	return State{MapName: mapName, RevealedAreas: []RevealedArea{}}
}

// Hash returns the change-detection fingerprint of the state
func (s State) Hash() string {
	return Fingerprint(s.RevealedAreas)
}

// removeNear drops every area whose center lies within point.Radius+tolerance
// of point's center. Only the radius of the removal point is considered.
func removeNear(areas []RevealedArea, point RevealedArea, tolerance int) []RevealedArea {
	limit := float64(point.Radius + tolerance)
	kept := areas[:0]
	for _, a := range areas {
		if a.distance(point) <= limit {
			continue
		}
		kept = append(kept, a)
	}
	return kept
}
