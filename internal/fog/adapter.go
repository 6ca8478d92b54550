package fog

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/mitchelldurbincs/FogOfWarPreview/internal/mapstore"
)

const revealedAreaSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["x", "y", "radius"],
  "properties": {
    "x": {"type": "number"},
    "y": {"type": "number"},
    "radius": {"type": "number", "minimum": 0},
    "isGridCell": {"type": "boolean"}
  }
}`

var areaSchema = jsonschema.MustCompileString("revealed_area.json", revealedAreaSchema)

// storedSection is the fog sub-tree as written to disk. Points are decoded one
// at a time so a single bad entry does not discard the rest.
type storedSection struct {
	MapName       string            `json:"mapName"`
	RevealedAreas []json.RawMessage `json:"revealedAreas"`
}

type storedArea struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Radius     float64 `json:"radius"`
	IsGridCell bool    `json:"isGridCell"`
}

// decodeResult carries the decoded state and how many stored points were dropped
type decodeResult struct {
	State   State
	Skipped int
	// Malformed is set when the fog section itself could not be decoded
	Malformed error
}

// decodeState extracts the fog section of doc. Absent or malformed sections
// yield an empty state for mapName.
func decodeState(mapName string, doc mapstore.Document) decodeResult {
	result := decodeResult{State: NewState(mapName)}
	if doc == nil {
		return result
	}

	var section storedSection
	ok, err := doc.Section(mapstore.SectionFog, &section)
	if err != nil {
		result.Malformed = err
		return result
	}
	if !ok {
		return result
	}

	areas := make([]RevealedArea, 0, len(section.RevealedAreas))
	for _, raw := range section.RevealedAreas {
		area, err := decodeArea(raw)
		if err != nil {
			result.Skipped++
			continue
		}
		areas = append(areas, area)
	}
	result.State.RevealedAreas = areas
	return result
}

func decodeArea(raw json.RawMessage) (RevealedArea, error) {
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return RevealedArea{}, err
	}
	if err := areaSchema.Validate(generic); err != nil {
		return RevealedArea{}, fmt.Errorf("%w: %v", ErrInvalidArea, err)
	}
	var stored storedArea
	if err := json.Unmarshal(raw, &stored); err != nil {
		return RevealedArea{}, err
	}
	return AreaFromFloats(stored.X, stored.Y, stored.Radius, stored.IsGridCell), nil
}

// encodeState replaces the fog section of doc and stamps the modification time.
// Every other section is left as it is.
func encodeState(doc mapstore.Document, state State, now time.Time) error {
	if state.RevealedAreas == nil {
		state.RevealedAreas = []RevealedArea{}
	}
	if err := doc.SetSection(mapstore.SectionFog, state); err != nil {
		return err
	}
	doc.Touch(now)
	return nil
}
