package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

func (s *Server) handleGetPreviewMap(w http.ResponseWriter, r *http.Request) {
	name, ok := s.coordinator.PreviewMap()
	if !ok {
		http.Error(w, "no preview map", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, name)
}

func (s *Server) handleSetPreviewMap(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body")
		return
	}
	name := parseMapName(body)
	if name == "" {
		writeError(w, http.StatusBadRequest, "map name is required")
		return
	}
	s.coordinator.SetPreviewMap(name)
	writeOK(w)
}

// parseMapName accepts a bare name, a JSON string or {"mapName": "..."}
func parseMapName(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}
	switch trimmed[0] {
	case '"':
		var name string
		if json.Unmarshal([]byte(trimmed), &name) == nil {
			return strings.TrimSpace(name)
		}
	case '{':
		var payload struct {
			MapName string `json:"mapName"`
		}
		if json.Unmarshal([]byte(trimmed), &payload) == nil {
			return strings.TrimSpace(payload.MapName)
		}
		return ""
	}
	return trimmed
}

func (s *Server) handleClearPreviewMap(w http.ResponseWriter, r *http.Request) {
	s.coordinator.ClearPreviewMap()
	writeOK(w)
}

func (s *Server) handleCheckRefresh(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.coordinator.CheckAndClearRefresh())
}

func (s *Server) handleRequestRefresh(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"requested": s.coordinator.RequestRefresh()})
}

func (s *Server) handleForceRefresh(w http.ResponseWriter, r *http.Request) {
	s.coordinator.ForceRefresh()
	writeOK(w)
}

// handleFogSaveGuard sets the manual save guard. It is independent of the
// guard the fog engine holds during its own saves; refresh requests dropped
// while either is up are delivered once both are down.
func (s *Server) handleFogSaveGuard(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		InProgress *bool `json:"inProgress"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.InProgress == nil {
		writeError(w, http.StatusBadRequest, "inProgress is required")
		return
	}
	s.coordinator.SetFogSaveInProgress(*payload.InProgress)
	writeOK(w)
}

func (s *Server) handleViewportFrame(w http.ResponseWriter, r *http.Request) {
	switch r.PathValue("state") {
	case "enable":
		s.coordinator.EnableViewportFrame()
	case "disable":
		s.coordinator.DisableViewportFrame()
	default:
		writeError(w, http.StatusBadRequest, "state must be enable or disable")
		return
	}
	writeOK(w)
}

func (s *Server) handleTakeNavigation(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.coordinator.TakeNavigationCommand())
}

func (s *Server) handleSetNavigation(w http.ResponseWriter, r *http.Request) {
	var payload map[string]interface{}
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	command := make(map[string]string, len(payload))
	for k, v := range payload {
		command[k] = stringify(v)
	}
	s.coordinator.SetNavigationCommand(command)
	writeOK(w)
}

// stringify renders a decoded JSON value the way the Viewer expects to read
// navigation parameters back.
func stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		raw, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(raw)
	}
}

func (s *Server) handleGetViewport(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.coordinator.Viewport())
}

func (s *Server) handleSetViewport(w http.ResponseWriter, r *http.Request) {
	var viewport map[string]interface{}
	if err := decodeJSON(r, &viewport); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.coordinator.SetViewport(r.Context(), viewport)
	writeOK(w)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.coordinator.Status())
}
