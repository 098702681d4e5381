package history

import (
	"context"
	"time"
)

// EventType defines the kind of audited event.
type EventType string

const (
	EventProbe    EventType = "probe"    // a liveness check ran
	EventSpawn    EventType = "spawn"    // the watched program was started (or failed to start)
	EventDownload EventType = "download" // the download engine was invoked
)

// Record carries the event details. Status holds the liveness result for
// probes and ok/error for spawns and downloads.
type Record struct {
	Name   string `json:"name"`
	PID    int    `json:"pid"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Event represents an audited event exported to external systems.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Record     Record    `json:"record"`
}

// Sink is a destination for history events (analytics/statistics systems).
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}

// ErrString returns err's message, or "" for nil.
func ErrString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
