package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lptsplit/lptsplit/internal/history"
	"github.com/lptsplit/lptsplit/internal/render"
)

func TestSQLiteSink_Integration(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "jobs.db")
	sink, err := New("sqlite://" + dbPath)
	require.NoError(t, err)
	defer func() { _ = sink.Close() }()

	ctx := context.Background()
	job := render.JobRecord{
		Path:      "/spool/print-2022_01_01_10_00_00.pdf",
		PID:       12345,
		StartedAt: time.Now().Add(-time.Minute).UTC(),
	}
	require.NoError(t, sink.Send(ctx, history.Event{Type: history.EventJobOpen, OccurredAt: job.StartedAt, Job: job}))

	job.ClosedAt = time.Now().UTC()
	job.Lines = 64
	job.Bytes = 4096
	job.Reason = render.ReasonComplete
	job.ExitErr = "exit status 1"
	require.NoError(t, sink.Send(ctx, history.Event{Type: history.EventJobClose, OccurredAt: job.ClosedAt, Job: job}))

	n, err := sink.Count(ctx, job.Path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSQLiteSink_Memory(t *testing.T) {
	sink, err := New(":memory:")
	require.NoError(t, err)
	defer func() { _ = sink.Close() }()

	ctx := context.Background()
	require.NoError(t, sink.Send(ctx, history.Event{
		Type:       history.EventJobOpen,
		OccurredAt: time.Now(),
		Job:        render.JobRecord{Path: "a.pdf", StartedAt: time.Now()},
	}))
	n, err := sink.Count(ctx, "a.pdf")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSQLiteSink_EmptyDSN(t *testing.T) {
	_, err := New("  ")
	assert.Error(t, err)
}
