package events

// Event type constants
const (
	TypeFogRevealed       = "fog.revealed"
	TypeFogHidden         = "fog.hidden"
	TypeFogReset          = "fog.reset"
	TypeFogReplaced       = "fog.replaced"
	TypeFogCompacted      = "fog.compacted"
	TypePreviewMapChanged = "preview.map_changed"
)

// FogMutationTypes lists the event types that change a map's revealed areas
var FogMutationTypes = []string{
	TypeFogRevealed,
	TypeFogHidden,
	TypeFogReset,
	TypeFogReplaced,
}

// FogRevealedEvent is published after revealed areas were added and persisted
type FogRevealedEvent struct {
	BaseEvent
	Added     int
	GridCells int
	Total     int
}

// NewFogRevealedEvent creates a new FogRevealedEvent
func NewFogRevealedEvent(mapName string, added, gridCells, total int) *FogRevealedEvent {
	return &FogRevealedEvent{
		BaseEvent: newBase(TypeFogRevealed, mapName),
		Added:     added,
		GridCells: gridCells,
		Total:     total,
	}
}

// FogHiddenEvent is published after revealed areas were removed and persisted
type FogHiddenEvent struct {
	BaseEvent
	Requested int
	Removed   int
	Total     int
}

// NewFogHiddenEvent creates a new FogHiddenEvent
func NewFogHiddenEvent(mapName string, requested, removed, total int) *FogHiddenEvent {
	return &FogHiddenEvent{
		BaseEvent: newBase(TypeFogHidden, mapName),
		Requested: requested,
		Removed:   removed,
		Total:     total,
	}
}

// FogResetEvent is published after a map was returned to fully hidden
type FogResetEvent struct {
	BaseEvent
	Cleared int
}

// NewFogResetEvent creates a new FogResetEvent
func NewFogResetEvent(mapName string, cleared int) *FogResetEvent {
	return &FogResetEvent{
		BaseEvent: newBase(TypeFogReset, mapName),
		Cleared:   cleared,
	}
}

// FogReplacedEvent is published after a whole fog state was saved by a client
type FogReplacedEvent struct {
	BaseEvent
	Total int
}

// NewFogReplacedEvent creates a new FogReplacedEvent
func NewFogReplacedEvent(mapName string, total int) *FogReplacedEvent {
	return &FogReplacedEvent{
		BaseEvent: newBase(TypeFogReplaced, mapName),
		Total:     total,
	}
}

// FogCompactedEvent is published when compaction dropped areas before a save
type FogCompactedEvent struct {
	BaseEvent
	Before       int
	Deduplicated int
	After        int
	Stride       int
}

// NewFogCompactedEvent creates a new FogCompactedEvent
func NewFogCompactedEvent(mapName string, before, deduplicated, after, stride int) *FogCompactedEvent {
	return &FogCompactedEvent{
		BaseEvent:    newBase(TypeFogCompacted, mapName),
		Before:       before,
		Deduplicated: deduplicated,
		After:        after,
		Stride:       stride,
	}
}

// PreviewMapChangedEvent is published when the map shown to the viewer changes.
// MapName is empty when the preview was cleared.
type PreviewMapChangedEvent struct {
	BaseEvent
	Previous string
}

// NewPreviewMapChangedEvent creates a new PreviewMapChangedEvent
func NewPreviewMapChangedEvent(mapName, previous string) *PreviewMapChangedEvent {
	return &PreviewMapChangedEvent{
		BaseEvent: newBase(TypePreviewMapChanged, mapName),
		Previous:  previous,
	}
}
