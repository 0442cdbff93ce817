package api

import (
	"time"

	"gobiodiv/domain/stats"
	"gobiodiv/internal/analysis"
)

// SSEEventBroadcaster publishes finished engine runs on the hub
type SSEEventBroadcaster struct {
	sseHub *SSEHub
}

var _ analysis.Observer = (*SSEEventBroadcaster)(nil)

// NewSSEEventBroadcaster creates a broadcaster for hub
func NewSSEEventBroadcaster(sseHub *SSEHub) *SSEEventBroadcaster {
	return &SSEEventBroadcaster{sseHub: sseHub}
}

// ObserveRun converts a run outcome into a RunEvent
func (seb *SSEEventBroadcaster) ObserveRun(bundle *stats.ResultBundle, elapsed time.Duration, err error) {
	event := RunEvent{
		EventType: EventRunCompleted,
		ElapsedMS: elapsed.Milliseconds(),
		Timestamp: time.Now().UTC(),
	}
	if err != nil {
		event.EventType = EventRunFailed
		event.Error = err.Error()
	}
	if bundle != nil {
		event.RunID = bundle.RunID().String()
		event.Fingerprint = bundle.Fingerprint().String()
		event.Sites = len(bundle.Sites())
		event.Groups = len(bundle.Groups())
		event.Diagnostics = len(bundle.Diagnostics())
	}
	seb.sseHub.Broadcast(event)
}
