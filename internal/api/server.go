// Package api is the HTTP surface used by the GM and Viewer web clients.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/FogOfWarPreview/internal/fog"
	"github.com/mitchelldurbincs/FogOfWarPreview/internal/mapstore"
	"github.com/mitchelldurbincs/FogOfWarPreview/internal/monitoring"
	"github.com/mitchelldurbincs/FogOfWarPreview/internal/preview"
)

// MetricsSource exposes runtime metrics for the debug endpoint
type MetricsSource interface {
	Metrics() monitoring.Metrics
}

// SettingsSource reads a map's display settings, falling back to defaults
type SettingsSource interface {
	Get(ctx context.Context, mapName string) map[string]interface{}
}

// Options holds HTTP behaviour settings
type Options struct {
	CORSOrigins []string
	Compression bool
	VersionFile string
}

// Server wires HTTP routes to the fog engine, the preview coordinator and the
// map store.
type Server struct {
	engine      *fog.Engine
	coordinator *preview.Coordinator
	store       mapstore.Store
	settings    SettingsSource
	metrics     MetricsSource
	options     Options
	logger      zerolog.Logger
}

// NewServer creates the HTTP API. metrics may be nil.
func NewServer(engine *fog.Engine, coordinator *preview.Coordinator, store mapstore.Store, settings SettingsSource, metrics MetricsSource, options Options, logger zerolog.Logger) *Server {
	return &Server{
		engine:      engine,
		coordinator: coordinator,
		store:       store,
		settings:    settings,
		metrics:     metrics,
		options:     options,
		logger:      logger.With().Str("component", "http_api").Logger(),
	}
}

// Handler returns the routed handler wrapped in the middleware chain
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/fog/{map}", s.handleGetFog)
	mux.HandleFunc("POST /api/fog/{map}/reveal", s.handleReveal)
	mux.HandleFunc("POST /api/fog/{map}/reveal-batch", s.handleRevealBatch)
	mux.HandleFunc("POST /api/fog/{map}/hide-batch", s.handleHideBatch)
	mux.HandleFunc("POST /api/fog/{map}/reveal-cell", s.handleRevealPoint)
	mux.HandleFunc("POST /api/fog/{map}/reveal-point", s.handleRevealPoint)
	mux.HandleFunc("POST /api/fog/{map}/batch", s.handleMixedBatch)
	mux.HandleFunc("POST /api/fog/{map}/reset", s.handleReset)

	mux.HandleFunc("GET /api/fog-states/{map}", s.handleGetFog)
	mux.HandleFunc("POST /api/fog-states/{map}", s.handleSaveFogState)
	mux.HandleFunc("GET /api/fog-states/{map}/hash", s.handleFogHash)
	mux.HandleFunc("POST /api/fog-states/{map}/reset", s.handleReset)

	mux.HandleFunc("GET /api/preview-map", s.handleGetPreviewMap)
	mux.HandleFunc("POST /api/preview-map", s.handleSetPreviewMap)
	mux.HandleFunc("POST /api/preview-map/clear", s.handleClearPreviewMap)
	mux.HandleFunc("GET /api/preview-map/refresh", s.handleCheckRefresh)
	mux.HandleFunc("POST /api/preview-map/refresh", s.handleRequestRefresh)
	mux.HandleFunc("POST /api/preview-map/force-refresh", s.handleForceRefresh)
	mux.HandleFunc("POST /api/preview-map/refresh-fog", s.handleForceRefresh)
	mux.HandleFunc("POST /api/preview-map/fog-save", s.handleFogSaveGuard)
	mux.HandleFunc("POST /api/preview-map/viewport-frame/{state}", s.handleViewportFrame)
	mux.HandleFunc("GET /api/preview-map/navigation", s.handleTakeNavigation)
	mux.HandleFunc("POST /api/preview-map/navigation", s.handleSetNavigation)
	mux.HandleFunc("GET /api/preview-map/viewport", s.handleGetViewport)
	mux.HandleFunc("POST /api/preview-map/viewport", s.handleSetViewport)
	mux.HandleFunc("GET /api/preview-map/status", s.handleStatus)

	mux.HandleFunc("GET /api/map-data/{map}", s.handleGetMapData)
	mux.HandleFunc("POST /api/map-data/{map}", s.handleSaveMapData)
	mux.HandleFunc("DELETE /api/map-data/{map}", s.handleDeleteMapData)

	mux.HandleFunc("GET /api/settings/{map}", s.handleGetSettings)

	mux.HandleFunc("GET /api/version", s.handleVersion)
	mux.HandleFunc("GET /api/debug/metrics", s.handleMetrics)

	quiet := map[string]bool{
		"/api/preview-map/refresh":    true,
		"/api/preview-map/navigation": true,
		"/api/preview-map/viewport":   true,
		"/api/preview-map/status":     true,
	}

	middleware := []func(http.Handler) http.Handler{
		recoveryMiddleware(s.logger),
		requestIDMiddleware,
		loggingMiddleware(s.logger, quiet),
		corsMiddleware(s.options.CORSOrigins),
	}
	if s.options.Compression {
		middleware = append(middleware, compressionMiddleware)
	}
	return chain(mux, middleware...)
}

// HTTPServer builds an *http.Server for addr with the given timeouts
func (s *Server) HTTPServer(addr string, readTimeout, writeTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
		WriteTimeout:      writeTimeout,
	}
}

// mutationStatus maps engine and store errors to an HTTP status and a message
// safe to show to clients.
func mutationStatus(err error) (int, string) {
	switch {
	case errors.Is(err, fog.ErrInvalidArea),
		errors.Is(err, fog.ErrEmptyMapName),
		errors.Is(err, mapstore.ErrInvalidMapName):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "request cancelled"
	default:
		return http.StatusInternalServerError, "failed to save fog state"
	}
}
