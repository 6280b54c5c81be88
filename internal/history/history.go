package history

import (
	"context"
	"database/sql"
	"time"
)

// EventType defines the kind of lifecycle event.
type EventType string

const (
	EventStarted EventType = "started"
	EventStopped EventType = "stopped"
)

// Event represents a service lifecycle event exported to external systems.
// ExitCode is valid only for stopped events where the OS reported a code.
type Event struct {
	Type       EventType     `json:"type"`
	Service    string        `json:"service"`
	PID        int           `json:"pid"`
	ExitCode   sql.NullInt64 `json:"exit_code"`
	Detail     string        `json:"detail,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// Sink is a destination for lifecycle events (audit/analytics systems).
// Implementations must be safe for concurrent use. Delivery is best
// effort; callers ignore Send errors.
type Sink interface {
	Send(ctx context.Context, e Event) error
	Close() error
}
