package history

import (
	"context"
	"time"

	"github.com/lptsplit/lptsplit/internal/render"
)

// EventType defines the kind of job event.
type EventType string

const (
	EventJobOpen  EventType = "job_open"
	EventJobClose EventType = "job_close"
)

// Event represents a job boundary exported to external systems.
type Event struct {
	Type       EventType        `json:"type"`
	OccurredAt time.Time        `json:"occurred_at"`
	Job        render.JobRecord `json:"job"`
}

// Sink is a destination for job history (archives, statistics).
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
	Close() error
}

// ClosedAt returns the job close time or nil when the job is still open, for
// nullable columns.
func (e Event) ClosedAt() any {
	if e.Job.ClosedAt.IsZero() {
		return nil
	}
	return e.Job.ClosedAt.UTC()
}

// ExitErr returns the renderer exit error or nil, for nullable columns.
func (e Event) ExitErr() any {
	if e.Job.ExitErr == "" {
		return nil
	}
	return e.Job.ExitErr
}
