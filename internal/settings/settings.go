// Package settings reads and updates the display settings section of a map's
// unified document.
package settings

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/FogOfWarPreview/internal/mapstore"
)

// viewportKeys are the viewport values mirrored into map settings
var viewportKeys = []string{"zoom", "panX", "panY", "rotation"}

// Service updates map display settings
type Service struct {
	store  mapstore.Store
	logger zerolog.Logger
}

// NewService creates a settings service on top of store
func NewService(store mapstore.Store, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger.With().Str("component", "map_settings").Logger(),
	}
}

// Get returns the settings section of mapName, or the defaults when the map
// has no readable settings.
func (s *Service) Get(ctx context.Context, mapName string) map[string]interface{} {
	doc, err := s.store.Load(ctx, mapName)
	if err != nil {
		if !errors.Is(err, mapstore.ErrNotFound) {
			s.logger.Warn().Err(err).Str("map", mapName).Msg("Using default settings")
		}
		doc = mapstore.DefaultDocument()
	}
	return decodeSettings(doc)
}

// ApplyViewport copies zoom, panX, panY and rotation from viewport into the
// settings of mapName. Other settings keys are left alone. Non-numeric values
// are ignored; when nothing applies no write happens.
func (s *Service) ApplyViewport(ctx context.Context, mapName string, viewport map[string]interface{}) error {
	updates := make(map[string]float64, len(viewportKeys))
	for _, key := range viewportKeys {
		if v, ok := toFloat(viewport[key]); ok {
			updates[key] = v
		}
	}
	if len(updates) == 0 {
		return nil
	}

	return s.store.Update(ctx, mapName, func(doc mapstore.Document) error {
		current := decodeSettings(doc)
		for k, v := range updates {
			current[k] = v
		}
		s.logger.Debug().Str("map", mapName).Interface("updates", updates).Msg("Viewport synced into settings")
		return doc.SetSection(mapstore.SectionSettings, current)
	})
}

func decodeSettings(doc mapstore.Document) map[string]interface{} {
	current := map[string]interface{}{}
	if _, err := doc.Section(mapstore.SectionSettings, &current); err != nil || current == nil {
		return map[string]interface{}{}
	}
	return current
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
