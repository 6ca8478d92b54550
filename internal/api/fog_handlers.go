package api

import (
	"math"
	"net/http"
	"strconv"

	"github.com/mitchelldurbincs/FogOfWarPreview/internal/fog"
)

// pointRequest is a revealed area as sent by the GM client. Grid cell centers
// and radii are often fractional.
type pointRequest struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Radius     float64 `json:"radius"`
	IsGridCell bool    `json:"isGridCell"`
}

func (p pointRequest) area() fog.RevealedArea {
	return fog.AreaFromFloats(p.X, p.Y, p.Radius, p.IsGridCell)
}

// stateRequest is a full fog state as sent by the GM client
type stateRequest struct {
	MapName       string         `json:"mapName"`
	RevealedAreas []pointRequest `json:"revealedAreas"`
}

func toAreas(points []pointRequest) []fog.RevealedArea {
	areas := make([]fog.RevealedArea, len(points))
	for i, p := range points {
		areas[i] = p.area()
	}
	return areas
}

// batchAction values of the mixed batch endpoint
const (
	actionErase = "erase" // remove fog, i.e. reveal
	actionPaint = "paint" // paint fog back, i.e. hide
)

type batchPointRequest struct {
	pointRequest
	Action string `json:"action"`
}

func (s *Server) handleGetFog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.GetState(r.Context(), r.PathValue("map")))
}

func (s *Server) handleFogHash(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"hash": s.engine.Hash(r.Context(), r.PathValue("map"))})
}

func (s *Server) handleReveal(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	x, errX := parseCoordinate(q.Get("x"))
	y, errY := parseCoordinate(q.Get("y"))
	if errX != nil || errY != nil {
		writeError(w, http.StatusBadRequest, "x and y must be numbers")
		return
	}
	radius := float64(s.engine.Config().DefaultRadius)
	if raw := q.Get("radius"); raw != "" {
		var err error
		if radius, err = parseCoordinate(raw); err != nil {
			writeError(w, http.StatusBadRequest, "radius must be a number")
			return
		}
	}

	a := fog.AreaFromFloats(x, y, radius, false)
	s.respondMutation(w, r, s.engine.AddRevealedArea(r.Context(), r.PathValue("map"), a.X, a.Y, a.Radius))
}

// parseCoordinate accepts integer or fractional query values
func parseCoordinate(raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, strconv.ErrRange
	}
	return v, nil
}

func (s *Server) handleRevealBatch(w http.ResponseWriter, r *http.Request) {
	var points []pointRequest
	if err := decodeJSON(r, &points); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondMutation(w, r, s.engine.AddRevealedAreas(r.Context(), r.PathValue("map"), toAreas(points)))
}

func (s *Server) handleHideBatch(w http.ResponseWriter, r *http.Request) {
	var points []pointRequest
	if err := decodeJSON(r, &points); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondMutation(w, r, s.engine.RemoveRevealedAreas(r.Context(), r.PathValue("map"), toAreas(points)))
}

func (s *Server) handleRevealPoint(w http.ResponseWriter, r *http.Request) {
	var p pointRequest
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	a := p.area()
	err := s.engine.RevealPoint(r.Context(), r.PathValue("map"), a.X, a.Y, a.Radius, a.IsGridCell)
	s.respondMutation(w, r, err)
}

// handleMixedBatch applies erase and paint strokes in order. Consecutive
// strokes with the same action are saved together.
func (s *Server) handleMixedBatch(w http.ResponseWriter, r *http.Request) {
	var points []batchPointRequest
	if err := decodeJSON(r, &points); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	mapName := r.PathValue("map")
	flush := func(action string, run []fog.RevealedArea) error {
		switch action {
		case actionErase:
			return s.engine.AddRevealedAreas(r.Context(), mapName, run)
		case actionPaint:
			return s.engine.RemoveRevealedAreas(r.Context(), mapName, run)
		}
		return nil
	}

	var (
		current string
		run     []fog.RevealedArea
	)
	for _, p := range points {
		if p.Action != actionErase && p.Action != actionPaint {
			continue
		}
		if p.Action != current && len(run) > 0 {
			if err := flush(current, run); err != nil {
				s.respondMutation(w, r, err)
				return
			}
			run = nil
		}
		current = p.Action
		run = append(run, p.area())
	}
	if len(run) > 0 {
		if err := flush(current, run); err != nil {
			s.respondMutation(w, r, err)
			return
		}
	}
	writeOK(w)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.respondMutation(w, r, s.engine.Reset(r.Context(), r.PathValue("map")))
}

func (s *Server) handleSaveFogState(w http.ResponseWriter, r *http.Request) {
	var req stateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	state := fog.State{MapName: req.MapName, RevealedAreas: toAreas(req.RevealedAreas)}
	s.respondMutation(w, r, s.engine.SaveState(r.Context(), r.PathValue("map"), state))
}

func (s *Server) respondMutation(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		writeOK(w)
		return
	}
	status, msg := mutationStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).
			Str("map", r.PathValue("map")).
			Str("request_id", RequestID(r.Context())).
			Msg("Fog mutation failed")
	}
	writeError(w, status, msg)
}
