// Package preview coordinates what the read-only Viewer shows. The GM side
// mutates this state, the Viewer polls it; nothing is pushed.
package preview

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/FogOfWarPreview/internal/events"
)

// SettingsSyncer copies viewport values into a map's persisted display settings
type SettingsSyncer interface {
	ApplyViewport(ctx context.Context, mapName string, viewport map[string]interface{}) error
}

// Status is a snapshot of every coordination field. Taking it does not
// consume the refresh flag or the navigation command.
type Status struct {
	CurrentMap           string                 `json:"currentMap,omitempty"`
	HasPreviewMap        bool                   `json:"hasPreviewMap"`
	RefreshRequested     bool                   `json:"refreshRequested"`
	FogSaveInProgress    bool                   `json:"fogSaveInProgress"`
	ViewportFrameEnabled bool                   `json:"viewportFrameEnabled"`
	HasNavigationCommand bool                   `json:"hasNavigationCommand"`
	Viewport             map[string]interface{} `json:"viewport"`
}

// Coordinator is the process-wide GM/Viewer coordination state. Each field is
// guarded on its own; no consistency between fields is promised.
type Coordinator struct {
	previewMap atomic.Pointer[string]

	refreshRequested atomic.Bool
	// refreshDeferred records a request dropped while the save guard was up
	refreshDeferred atomic.Bool
	viewportFrame   atomic.Bool

	// The save guard is up while the GM holds it manually or any engine save
	// is running. The two never clear each other.
	manualSave  atomic.Bool
	engineSaves atomic.Int32

	navMu      sync.Mutex
	navigation map[string]string

	viewportMu sync.RWMutex
	viewport   map[string]interface{}

	syncer    SettingsSyncer
	publisher events.Publisher
	logger    zerolog.Logger
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithSettingsSyncer sets the target of best-effort viewport sync
func WithSettingsSyncer(s SettingsSyncer) Option {
	return func(c *Coordinator) {
		c.syncer = s
	}
}

// WithPublisher sets where preview events are published
func WithPublisher(p events.Publisher) Option {
	return func(c *Coordinator) {
		c.publisher = p
	}
}

// NewCoordinator creates a coordinator with nothing previewed
func NewCoordinator(logger zerolog.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		navigation: map[string]string{},
		viewport:   map[string]interface{}{},
		publisher:  events.NopPublisher{},
		logger:     logger.With().Str("component", "preview_coordinator").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PreviewMap returns the map shown to the Viewer and whether one is set
func (c *Coordinator) PreviewMap() (string, bool) {
	p := c.previewMap.Load()
	if p == nil {
		return "", false
	}
	return *p, true
}

// SetPreviewMap switches the Viewer to mapName, turns the viewport frame on
// and asks the Viewer to refresh.
func (c *Coordinator) SetPreviewMap(mapName string) {
	previous := c.previewMap.Swap(&mapName)
	c.viewportFrame.Store(true)
	c.RequestRefresh()

	prev := ""
	if previous != nil {
		prev = *previous
	}
	c.logger.Info().Str("map", mapName).Str("previous", prev).Msg("Preview map set")
	c.publisher.Publish(events.NewPreviewMapChangedEvent(mapName, prev))
}

// ClearPreviewMap stops previewing any map and asks the Viewer to refresh
func (c *Coordinator) ClearPreviewMap() {
	previous := c.previewMap.Swap(nil)
	c.RequestRefresh()

	if previous != nil {
		c.logger.Info().Str("previous", *previous).Msg("Preview map cleared")
		c.publisher.Publish(events.NewPreviewMapChangedEvent("", *previous))
	}
}

// IsPreviewing reports whether mapName is the map currently shown to the Viewer
func (c *Coordinator) IsPreviewing(mapName string) bool {
	current, ok := c.PreviewMap()
	return ok && current == mapName
}

// RequestRefresh raises the refresh flag unless a fog save is in progress.
// A suppressed request is kept and delivered when the guard comes down. It
// reports whether the flag was raised now.
func (c *Coordinator) RequestRefresh() bool {
	if c.FogSaveInProgress() {
		c.refreshDeferred.Store(true)
		c.logger.Debug().Msg("Refresh deferred, fog save in progress")
		// the guard may have dropped between the check and the store
		c.flushDeferredRefresh()
		return false
	}
	c.refreshRequested.Store(true)
	c.logger.Debug().Msg("Refresh requested")
	return true
}

// ForceRefresh raises the refresh flag regardless of the save guard
func (c *Coordinator) ForceRefresh() {
	c.refreshDeferred.Store(false)
	c.refreshRequested.Store(true)
	c.logger.Debug().Msg("Refresh forced")
}

// CheckAndClearRefresh returns true at most once per raised flag
func (c *Coordinator) CheckAndClearRefresh() bool {
	return c.refreshRequested.CompareAndSwap(true, false)
}

// SetFogSaveInProgress sets or clears the manual save guard held by the GM
// client. Engine saves keep the guard up on their own while they run.
func (c *Coordinator) SetFogSaveInProgress(inProgress bool) {
	c.manualSave.Store(inProgress)
	c.logger.Debug().Bool("in_progress", inProgress).Msg("Manual fog save guard changed")
	if !inProgress {
		c.flushDeferredRefresh()
	}
}

// FogSaveInProgress reports whether the save guard is up
func (c *Coordinator) FogSaveInProgress() bool {
	return c.manualSave.Load() || c.engineSaves.Load() > 0
}

// BeginFogSave implements fog.SaveGuard
func (c *Coordinator) BeginFogSave() {
	c.engineSaves.Add(1)
}

// EndFogSave implements fog.SaveGuard
func (c *Coordinator) EndFogSave() {
	if c.engineSaves.Add(-1) == 0 {
		c.flushDeferredRefresh()
	}
}

func (c *Coordinator) flushDeferredRefresh() {
	if c.FogSaveInProgress() {
		return
	}
	if c.refreshDeferred.CompareAndSwap(true, false) {
		c.refreshRequested.Store(true)
		c.logger.Debug().Msg("Deferred refresh delivered")
	}
}

// EnableViewportFrame shows the viewport frame on the GM view
func (c *Coordinator) EnableViewportFrame() {
	c.viewportFrame.Store(true)
}

// DisableViewportFrame hides the viewport frame
func (c *Coordinator) DisableViewportFrame() {
	c.viewportFrame.Store(false)
}

// ViewportFrameEnabled reports the viewport frame toggle
func (c *Coordinator) ViewportFrameEnabled() bool {
	return c.viewportFrame.Load()
}

// SetNavigationCommand stores a one-shot command, replacing any pending one
func (c *Coordinator) SetNavigationCommand(command map[string]string) {
	copied := make(map[string]string, len(command))
	for k, v := range command {
		copied[k] = v
	}

	c.navMu.Lock()
	c.navigation = copied
	c.navMu.Unlock()

	c.logger.Debug().Interface("command", copied).Msg("Navigation command set")
}

// TakeNavigationCommand returns the pending command and clears it. With no
// pending command the result is an empty map.
func (c *Coordinator) TakeNavigationCommand() map[string]string {
	c.navMu.Lock()
	command := c.navigation
	c.navigation = map[string]string{}
	c.navMu.Unlock()

	if len(command) > 0 {
		c.logger.Debug().Interface("command", command).Msg("Navigation command delivered")
	}
	return command
}

func (c *Coordinator) hasNavigationCommand() bool {
	c.navMu.Lock()
	defer c.navMu.Unlock()
	return len(c.navigation) > 0
}

// SetViewport replaces the last known viewport and copies zoom, pan and
// rotation into the previewed map's settings. Sync failures are logged only.
func (c *Coordinator) SetViewport(ctx context.Context, viewport map[string]interface{}) {
	copied := copyViewport(viewport)

	c.viewportMu.Lock()
	c.viewport = copied
	c.viewportMu.Unlock()

	mapName, ok := c.PreviewMap()
	if !ok || c.syncer == nil {
		return
	}
	if err := c.syncer.ApplyViewport(ctx, mapName, copied); err != nil {
		c.logger.Warn().Err(err).Str("map", mapName).Msg("Failed to sync viewport into map settings")
	}
}

// Viewport returns a copy of the last known viewport
func (c *Coordinator) Viewport() map[string]interface{} {
	c.viewportMu.RLock()
	defer c.viewportMu.RUnlock()
	return copyViewport(c.viewport)
}

// Status returns a snapshot of all fields
func (c *Coordinator) Status() Status {
	mapName, ok := c.PreviewMap()
	return Status{
		CurrentMap:           mapName,
		HasPreviewMap:        ok,
		RefreshRequested:     c.refreshRequested.Load(),
		FogSaveInProgress:    c.FogSaveInProgress(),
		ViewportFrameEnabled: c.viewportFrame.Load(),
		HasNavigationCommand: c.hasNavigationCommand(),
		Viewport:             c.Viewport(),
	}
}

func copyViewport(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
