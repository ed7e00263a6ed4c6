package history

import (
	"context"
	"log/slog"
	"time"

	"github.com/lptsplit/lptsplit/internal/render"
)

// DefaultSendTimeout bounds a single Send from the control loop.
const DefaultSendTimeout = 5 * time.Second

// Forwarder turns render job notifications into history events. Send
// failures are logged and otherwise ignored so a slow or unavailable archive
// never stops printing.
type Forwarder struct {
	Sink    Sink
	Timeout time.Duration
	Log     *slog.Logger
}

func (f *Forwarder) JobOpened(rec render.JobRecord) {
	f.send(Event{Type: EventJobOpen, OccurredAt: rec.StartedAt, Job: rec})
}

func (f *Forwarder) JobClosed(rec render.JobRecord) {
	f.send(Event{Type: EventJobClose, OccurredAt: rec.ClosedAt, Job: rec})
}

func (f *Forwarder) send(e Event) {
	if f.Sink == nil {
		return
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := f.Sink.Send(ctx, e); err != nil {
		log := f.Log
		if log == nil {
			log = slog.Default()
		}
		log.Warn("history sink send failed", "event", e.Type, "path", e.Job.Path, "error", err)
	}
}
