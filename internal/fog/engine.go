package fog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/FogOfWarPreview/internal/events"
	"github.com/mitchelldurbincs/FogOfWarPreview/internal/mapstore"
)

// SaveGuard is told when a fog save starts and finishes so that viewers are
// not asked to re-fetch a half written state.
type SaveGuard interface {
	BeginFogSave()
	EndFogSave()
}

type nopGuard struct{}

func (nopGuard) BeginFogSave() {}
func (nopGuard) EndFogSave()   {}

// Config contains the tunables of the reveal engine
type Config struct {
	// DefaultRadius is used by callers that reveal without giving a radius
	DefaultRadius int
	// HideTolerance is added to the removal radius when hiding areas
	HideTolerance int
	Compaction    CompactionConfig
}

// DefaultConfig returns the default engine configuration
func DefaultConfig() Config {
	return Config{
		DefaultRadius: 50,
		HideTolerance: 10,
		Compaction:    DefaultCompactionConfig(),
	}
}

// Engine owns the reveal state of every map. Mutations of any map are
// serialized through one process-wide lock; reads are not.
type Engine struct {
	store     mapstore.Store
	config    Config
	publisher events.Publisher
	guard     SaveGuard
	logger    zerolog.Logger
	now       func() time.Time

	mu sync.Mutex
}

// Option configures an Engine
type Option func(*Engine)

// WithPublisher sets where fog events are published
func WithPublisher(p events.Publisher) Option {
	return func(e *Engine) {
		e.publisher = p
	}
}

// WithSaveGuard sets the guard bracketing every persist
func WithSaveGuard(g SaveGuard) Option {
	return func(e *Engine) {
		e.guard = g
	}
}

// NewEngine creates a reveal engine on top of store
func NewEngine(store mapstore.Store, config Config, logger zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		config:    config,
		publisher: events.NopPublisher{},
		guard:     nopGuard{},
		logger:    logger.With().Str("component", "fog_engine").Logger(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the engine configuration
func (e *Engine) Config() Config {
	return e.config
}

// GetState returns the reveal state of mapName. It never fails: a missing,
// unreadable or malformed document yields a fully hidden state.
func (e *Engine) GetState(ctx context.Context, mapName string) State {
	doc, err := e.store.Load(ctx, mapName)
	if err != nil {
		if !errors.Is(err, mapstore.ErrNotFound) {
			e.logger.Warn().Err(err).Str("map", mapName).Msg("Fog state unavailable, treating map as fully hidden")
		}
		return NewState(mapName)
	}
	return e.decode(mapName, doc).State
}

// Hash returns the fingerprint of the current state of mapName
func (e *Engine) Hash(ctx context.Context, mapName string) string {
	return e.GetState(ctx, mapName).Hash()
}

// AddRevealedArea reveals a single free-form circle
func (e *Engine) AddRevealedArea(ctx context.Context, mapName string, x, y, radius int) error {
	return e.AddRevealedAreas(ctx, mapName, []RevealedArea{{X: x, Y: y, Radius: radius}})
}

// RevealPoint reveals a single area, either free-form or one grid cell
func (e *Engine) RevealPoint(ctx context.Context, mapName string, x, y, radius int, isGridCell bool) error {
	return e.AddRevealedAreas(ctx, mapName, []RevealedArea{{X: x, Y: y, Radius: radius, IsGridCell: isGridCell}})
}

// AddRevealedAreas appends areas to the state of mapName and persists it
func (e *Engine) AddRevealedAreas(ctx context.Context, mapName string, areas []RevealedArea) error {
	if err := validateAreas(areas); err != nil {
		return err
	}

	var total int
	err := e.mutate(ctx, mapName, func(state *State) {
		state.RevealedAreas = append(state.RevealedAreas, areas...)
		total = len(state.RevealedAreas)
	})
	if err != nil {
		return err
	}

	gridCells := 0
	for _, a := range areas {
		if a.IsGridCell {
			gridCells++
		}
	}
	e.publisher.Publish(events.NewFogRevealedEvent(mapName, len(areas), gridCells, total))
	return nil
}

// RemoveRevealedAreas hides every revealed area whose center is within
// point.Radius plus the hide tolerance of any of points.
func (e *Engine) RemoveRevealedAreas(ctx context.Context, mapName string, points []RevealedArea) error {
	if err := validateAreas(points); err != nil {
		return err
	}

	var removed, total int
	err := e.mutate(ctx, mapName, func(state *State) {
		before := len(state.RevealedAreas)
		for _, p := range points {
			state.RevealedAreas = removeNear(state.RevealedAreas, p, e.config.HideTolerance)
		}
		removed = before - len(state.RevealedAreas)
		total = len(state.RevealedAreas)
	})
	if err != nil {
		return err
	}

	e.publisher.Publish(events.NewFogHiddenEvent(mapName, len(points), removed, total))
	return nil
}

// Reset hides the whole map
func (e *Engine) Reset(ctx context.Context, mapName string) error {
	var cleared int
	err := e.mutate(ctx, mapName, func(state *State) {
		cleared = len(state.RevealedAreas)
		state.RevealedAreas = []RevealedArea{}
	})
	if err != nil {
		return err
	}

	e.publisher.Publish(events.NewFogResetEvent(mapName, cleared))
	return nil
}

// SaveState replaces the stored state of mapName with state. The map name
// inside state is ignored in favour of mapName.
func (e *Engine) SaveState(ctx context.Context, mapName string, state State) error {
	if err := validateAreas(state.RevealedAreas); err != nil {
		return err
	}

	var total int
	err := e.mutate(ctx, mapName, func(current *State) {
		current.RevealedAreas = append([]RevealedArea{}, state.RevealedAreas...)
		total = len(current.RevealedAreas)
	})
	if err != nil {
		return err
	}

	e.publisher.Publish(events.NewFogReplacedEvent(mapName, total))
	return nil
}

// mutate applies fn to the current state of mapName, compacts the result and
// writes it back, all under the engine lock and the save guard.
func (e *Engine) mutate(ctx context.Context, mapName string, fn func(state *State)) error {
	if strings.TrimSpace(mapName) == "" {
		return ErrEmptyMapName
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.guard.BeginFogSave()
	defer e.guard.EndFogSave()

	var compaction CompactionResult
	err := e.store.Update(ctx, mapName, func(doc mapstore.Document) error {
		state := e.decode(mapName, doc).State
		fn(&state)

		state.RevealedAreas, compaction = Compact(state.RevealedAreas, e.config.Compaction)
		return encodeState(doc, state, e.now())
	})
	if err != nil {
		e.logger.Error().Err(err).Str("map", mapName).Msg("Failed to save fog state")
		return fmt.Errorf("save fog state for %s: %w", mapName, err)
	}

	if compaction.Changed() {
		e.logger.Info().
			Str("map", mapName).
			Int("before", compaction.Before).
			Int("deduplicated", compaction.Deduplicated).
			Int("after", compaction.After).
			Msg("Fog state compacted")
		e.publisher.Publish(events.NewFogCompactedEvent(mapName, compaction.Before, compaction.Deduplicated, compaction.After, compaction.Stride))
	}
	return nil
}

func (e *Engine) decode(mapName string, doc mapstore.Document) decodeResult {
	result := decodeState(mapName, doc)
	if result.Malformed != nil {
		e.logger.Warn().Err(result.Malformed).Str("map", mapName).Msg("Malformed fog section ignored")
	}
	if result.Skipped > 0 {
		e.logger.Warn().Int("skipped", result.Skipped).Str("map", mapName).Msg("Skipped malformed revealed areas")
	}
	return result
}

func validateAreas(areas []RevealedArea) error {
	for i, a := range areas {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("area %d: %w", i, err)
		}
	}
	return nil
}
