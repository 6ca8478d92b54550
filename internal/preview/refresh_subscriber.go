package preview

import (
	"github.com/mitchelldurbincs/FogOfWarPreview/internal/events"
)

// RefreshSubscriber asks the Viewer to refresh whenever the fog of the map it
// is showing changes.
type RefreshSubscriber struct {
	coordinator *Coordinator
	interested  map[string]bool
}

// NewRefreshSubscriber creates a subscriber bound to coordinator
func NewRefreshSubscriber(coordinator *Coordinator) *RefreshSubscriber {
	interested := make(map[string]bool, len(events.FogMutationTypes))
	for _, t := range events.FogMutationTypes {
		interested[t] = true
	}
	return &RefreshSubscriber{coordinator: coordinator, interested: interested}
}

// ID implements events.Subscriber
func (rs *RefreshSubscriber) ID() string {
	return "preview_refresh"
}

// InterestedIn implements events.Subscriber
func (rs *RefreshSubscriber) InterestedIn(eventType string) bool {
	return rs.interested[eventType]
}

// HandleEvent implements events.Subscriber
func (rs *RefreshSubscriber) HandleEvent(event events.Event) {
	if rs.coordinator.IsPreviewing(event.MapName()) {
		rs.coordinator.RequestRefresh()
	}
}
