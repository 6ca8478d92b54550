package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/mitchelldurbincs/FogOfWarPreview/internal/mapstore"
)

// Version is served by /api/version
type Version struct {
	Build     int    `json:"build"`
	BuildDate string `json:"buildDate"`
}

var (
	defaultVersion     = Version{Build: 1, BuildDate: "2025-01-17 00:00"}
	unavailableVersion = Version{Build: 0, BuildDate: "unknown"}
)

func (s *Server) handleGetMapData(w http.ResponseWriter, r *http.Request) {
	doc, err := s.store.Load(r.Context(), r.PathValue("map"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, doc)
	case errors.Is(err, mapstore.ErrNotFound), errors.Is(err, mapstore.ErrCorrupt):
		writeError(w, http.StatusNotFound, "map data not found")
	case errors.Is(err, mapstore.ErrInvalidMapName):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error().Err(err).Str("map", r.PathValue("map")).Msg("Failed to load map data")
		writeError(w, http.StatusInternalServerError, "failed to load map data")
	}
}

// handleSaveMapData replaces a map's document. A document without a fog
// section keeps the stored one.
func (s *Server) handleSaveMapData(w http.ResponseWriter, r *http.Request) {
	var incoming mapstore.Document
	if err := decodeJSON(r, &incoming); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if incoming == nil {
		writeError(w, http.StatusBadRequest, "map data must be an object")
		return
	}

	mapName := r.PathValue("map")
	err := s.store.Update(r.Context(), mapName, func(doc mapstore.Document) error {
		fog := doc[mapstore.SectionFog]
		keepFog := !incoming.Has(mapstore.SectionFog) && doc.Has(mapstore.SectionFog)

		for k := range doc {
			delete(doc, k)
		}
		for k, v := range incoming {
			doc[k] = v
		}
		if keepFog {
			doc[mapstore.SectionFog] = fog
		}
		if !doc.Has(mapstore.SectionVersion) {
			version, _ := json.Marshal(mapstore.DocumentVersion)
			doc[mapstore.SectionVersion] = version
		}
		doc.Touch(time.Now())
		return nil
	})
	if err != nil {
		status := http.StatusInternalServerError
		msg := "failed to save map data"
		if errors.Is(err, mapstore.ErrInvalidMapName) {
			status, msg = http.StatusBadRequest, err.Error()
		} else {
			s.logger.Error().Err(err).Str("map", mapName).Msg("Failed to save map data")
		}
		writeError(w, status, msg)
		return
	}
	writeOK(w)
}

func (s *Server) handleDeleteMapData(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.store.Delete(r.Context(), r.PathValue("map"))
	switch {
	case errors.Is(err, mapstore.ErrInvalidMapName):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		s.logger.Error().Err(err).Str("map", r.PathValue("map")).Msg("Failed to delete map data")
		writeError(w, http.StatusInternalServerError, "failed to delete map data")
	case !deleted:
		writeError(w, http.StatusNotFound, "map data not found")
	default:
		writeOK(w)
	}
}

// handleGetSettings serves a map's display settings; maps without stored
// settings get the defaults.
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.settings.Get(r.Context(), r.PathValue("map")))
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if s.options.VersionFile == "" {
		writeJSON(w, http.StatusOK, defaultVersion)
		return
	}
	data, err := os.ReadFile(s.options.VersionFile)
	if errors.Is(err, os.ErrNotExist) {
		writeJSON(w, http.StatusOK, defaultVersion)
		return
	}
	var v Version
	if err == nil {
		err = json.Unmarshal(data, &v)
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("path", s.options.VersionFile).Msg("Failed to read version file")
		writeJSON(w, http.StatusOK, unavailableVersion)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"store": s.store.Stats()})
		return
	}
	writeJSON(w, http.StatusOK, s.metrics.Metrics())
}
