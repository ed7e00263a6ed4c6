package history

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lptsplit/lptsplit/internal/render"
)

type memSink struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (m *memSink) Send(_ context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, e)
	return nil
}

func (m *memSink) Close() error { return nil }

func TestForwarderSendsOpenAndClose(t *testing.T) {
	sink := &memSink{}
	f := &Forwarder{Sink: sink}
	var _ render.Observer = f

	start := time.Date(2022, 1, 1, 10, 0, 0, 0, time.UTC)
	rec := render.JobRecord{Path: "a.pdf", StartedAt: start}
	f.JobOpened(rec)
	rec.ClosedAt = start.Add(time.Minute)
	rec.Reason = render.ReasonComplete
	f.JobClosed(rec)

	require.Len(t, sink.events, 2)
	assert.Equal(t, EventJobOpen, sink.events[0].Type)
	assert.Equal(t, start, sink.events[0].OccurredAt)
	assert.Equal(t, EventJobClose, sink.events[1].Type)
	assert.Equal(t, rec.ClosedAt, sink.events[1].OccurredAt)
	assert.Equal(t, rec.ClosedAt.UTC(), sink.events[1].ClosedAt())
	assert.Nil(t, sink.events[0].ClosedAt())
	assert.Nil(t, sink.events[1].ExitErr())
}

func TestForwarderSwallowsErrors(t *testing.T) {
	sink := &memSink{err: errors.New("down")}
	f := &Forwarder{Sink: sink, Log: slog.New(slog.NewTextHandler(io.Discard, nil))}
	f.JobClosed(render.JobRecord{Path: "a.pdf"})
	assert.Empty(t, sink.events)
}

func TestForwarderWithoutSink(t *testing.T) {
	f := &Forwarder{}
	f.JobOpened(render.JobRecord{Path: "a.pdf"})
}
