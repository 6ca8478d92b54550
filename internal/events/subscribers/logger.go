package subscribers

import (
	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/FogOfWarPreview/internal/events"
)

// LoggerSubscriber logs events to structured logs
type LoggerSubscriber struct {
	id              string
	logger          zerolog.Logger
	logLevel        zerolog.Level
	eventTypeFilter map[string]bool // If non-nil, only log these event types
}

// NewLoggerSubscriber creates a new logger subscriber
func NewLoggerSubscriber(id string, logger zerolog.Logger, logLevel zerolog.Level) *LoggerSubscriber {
	return &LoggerSubscriber{
		id:       id,
		logger:   logger.With().Str("subscriber", "event_logger").Logger(),
		logLevel: logLevel,
	}
}

// ID returns the subscriber's unique identifier
func (ls *LoggerSubscriber) ID() string {
	return ls.id
}

// SetEventFilter sets which event types to log (nil means log all)
func (ls *LoggerSubscriber) SetEventFilter(eventTypes []string) {
	if len(eventTypes) == 0 {
		ls.eventTypeFilter = nil
		return
	}

	ls.eventTypeFilter = make(map[string]bool)
	for _, eventType := range eventTypes {
		ls.eventTypeFilter[eventType] = true
	}
}

// InterestedIn returns true if the subscriber wants to receive this event type
func (ls *LoggerSubscriber) InterestedIn(eventType string) bool {
	if ls.eventTypeFilter == nil {
		return true
	}
	return ls.eventTypeFilter[eventType]
}

// HandleEvent processes an event by logging it
func (ls *LoggerSubscriber) HandleEvent(event events.Event) {
	logEvent := ls.logger.WithLevel(ls.logLevel).
		Str("event_type", event.Type()).
		Str("event_id", event.ID()).
		Str("map", event.MapName()).
		Time("event_time", event.Timestamp())

	switch e := event.(type) {
	case *events.FogRevealedEvent:
		logEvent.
			Int("added", e.Added).
			Int("grid_cells", e.GridCells).
			Int("total", e.Total)

	case *events.FogHiddenEvent:
		logEvent.
			Int("requested", e.Requested).
			Int("removed", e.Removed).
			Int("total", e.Total)

	case *events.FogResetEvent:
		logEvent.Int("cleared", e.Cleared)

	case *events.FogReplacedEvent:
		logEvent.Int("total", e.Total)

	case *events.FogCompactedEvent:
		logEvent.
			Int("before", e.Before).
			Int("deduplicated", e.Deduplicated).
			Int("after", e.After).
			Int("stride", e.Stride)

	case *events.PreviewMapChangedEvent:
		logEvent.Str("previous", e.Previous)
	}

	logEvent.Msg("Event")
}
