package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/lptsplit/lptsplit/internal/history"
	"github.com/lptsplit/lptsplit/internal/render"
)

func TestPostgresSink_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Skipf("PostgreSQL container unavailable: %v", err)
	}
	defer func() {
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Errorf("Failed to terminate PostgreSQL container: %v", err)
		}
	}()

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	sink, err := New(connStr)
	if err != nil {
		t.Fatalf("Failed to create PostgreSQL sink: %v", err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			t.Errorf("Failed to close sink: %v", err)
		}
	}()

	job := render.JobRecord{
		Path:      "/spool/print-2022_01_01_10_00_00.pdf",
		PID:       12345,
		StartedAt: time.Now().UTC(),
	}
	if err := sink.Send(ctx, history.Event{Type: history.EventJobOpen, OccurredAt: job.StartedAt, Job: job}); err != nil {
		t.Fatalf("Failed to send open event: %v", err)
	}

	job.ClosedAt = time.Now().UTC()
	job.Lines = 10
	job.Reason = render.ReasonShutdown
	if err := sink.Send(ctx, history.Event{Type: history.EventJobClose, OccurredAt: job.ClosedAt, Job: job}); err != nil {
		t.Fatalf("Failed to send close event: %v", err)
	}

	count, err := sink.Count(ctx, job.Path)
	if err != nil {
		t.Fatalf("Failed to query job_history: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 events in history, got %d", count)
	}
}

func TestPostgresSink_EmptyDSN(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty DSN")
	}
}
