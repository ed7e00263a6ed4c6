package opensearch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lptsplit/lptsplit/internal/history"
	"github.com/lptsplit/lptsplit/internal/render"
)

func TestOpenSearchSink_Send(t *testing.T) {
	var receivedBody []byte
	var receivedURL string
	var receivedMethod string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedMethod = r.Method
		receivedURL = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		receivedBody = body
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"_id":"test","_index":"jobs","result":"created"}`))
	}))
	defer server.Close()

	sink := New(server.URL, "jobs")
	defer func() { _ = sink.Close() }()

	event := history.Event{
		Type:       history.EventJobClose,
		OccurredAt: time.Now().UTC(),
		Job: render.JobRecord{
			Path:      "/spool/print-2022_01_01_10_00_00.pdf",
			StartedAt: time.Now().Add(-time.Minute).UTC(),
			ClosedAt:  time.Now().UTC(),
			Lines:     120,
			Reason:    render.ReasonComplete,
		},
	}
	if err := sink.Send(context.Background(), event); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if receivedMethod != http.MethodPost {
		t.Errorf("expected POST, got %s", receivedMethod)
	}
	if receivedURL != "/jobs/_doc" {
		t.Errorf("unexpected URL %s", receivedURL)
	}
	var m map[string]any
	if err := json.Unmarshal(receivedBody, &m); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if m["type"] != "job_close" {
		t.Errorf("unexpected type: %v", m["type"])
	}
	job, ok := m["job"].(map[string]any)
	if !ok {
		t.Fatalf("missing job in payload: %v", m)
	}
	if job["path"] != "/spool/print-2022_01_01_10_00_00.pdf" || job["reason"] != "complete" {
		t.Errorf("unexpected job payload: %v", job)
	}
}

func TestOpenSearchSink_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	sink := New(server.URL+"/", "jobs")
	err := sink.Send(context.Background(), history.Event{Type: history.EventJobOpen, OccurredAt: time.Now()})
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
}
