package render

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lptsplit/lptsplit/internal/metrics"
)

// CloseReason tells why a job document was finalized.
type CloseReason string

const (
	ReasonComplete CloseReason = "complete" // second end-of-job marker seen
	ReasonShutdown CloseReason = "shutdown" // daemon stopped while the job was open
)

// JobRecord summarizes one renderer run.
type JobRecord struct {
	Path      string      `json:"path"`
	PID       int         `json:"pid"`
	StartedAt time.Time   `json:"started_at"`
	ClosedAt  time.Time   `json:"closed_at,omitempty"`
	Lines     int         `json:"lines"`
	Bytes     int64       `json:"bytes"`
	Reason    CloseReason `json:"reason,omitempty"`
	ExitErr   string      `json:"exit_error,omitempty"`
	WriteErr  string      `json:"write_error,omitempty"`
}

// Observer is notified about job boundaries. Calls happen on the control loop
// and must not block for long.
type Observer interface {
	JobOpened(rec JobRecord)
	JobClosed(rec JobRecord)
}

// Manager owns at most one live renderer at a time.
type Manager struct {
	launcher  Launcher
	log       *slog.Logger
	observers []Observer
	now       func() time.Time

	sink   Sink
	rec    JobRecord
	broken bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger; slog.Default is used otherwise.
func WithLogger(l *slog.Logger) Option { return func(m *Manager) { m.log = l } }

// WithObserver adds a job observer.
func WithObserver(o Observer) Option {
	return func(m *Manager) { m.observers = append(m.observers, o) }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

func NewManager(l Launcher, opts ...Option) *Manager {
	m := &Manager{launcher: l, log: slog.Default(), now: time.Now}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Live reports whether a renderer is currently open.
func (m *Manager) Live() bool { return m.sink != nil }

// Current returns the record of the open job, if any.
func (m *Manager) Current() (JobRecord, bool) {
	if m.sink == nil {
		return JobRecord{}, false
	}
	return m.rec, true
}

// Open starts a renderer for outputPath. It fails with ErrHandleLive when the
// previous job has not been closed and with ErrRendererUnavailable when the
// renderer cannot be spawned.
func (m *Manager) Open(outputPath string, startedAt time.Time) error {
	if m.sink != nil {
		return fmt.Errorf("%w: %s", ErrHandleLive, m.rec.Path)
	}
	sink, err := m.launcher.Launch(outputPath)
	if err != nil {
		metrics.IncRendererFailure("spawn")
		if !errors.Is(err, ErrRendererUnavailable) {
			err = fmt.Errorf("%w: %v", ErrRendererUnavailable, err)
		}
		return err
	}
	m.sink = sink
	m.broken = false
	m.rec = JobRecord{Path: outputPath, StartedAt: startedAt}
	if p, ok := sink.(interface{ Pid() int }); ok {
		m.rec.PID = p.Pid()
	}
	metrics.IncJobOpened()
	metrics.SetJobOpen(true)
	m.log.Info("job opened", "path", outputPath, "pid", m.rec.PID)
	for _, o := range m.observers {
		o.JobOpened(m.rec)
	}
	return nil
}

// Feed writes one emulated line to the renderer. The write completes before
// Feed returns. A failed write is logged once; later lines of the same job
// are dropped until Close.
func (m *Manager) Feed(b []byte) error {
	if m.sink == nil {
		return ErrNoHandle
	}
	if len(b) == 0 {
		return nil
	}
	m.rec.Lines++
	if m.broken {
		return nil
	}
	n, err := m.sink.Write(b)
	m.rec.Bytes += int64(n)
	metrics.AddRenderBytes(n)
	if err != nil {
		m.broken = true
		m.rec.WriteErr = err.Error()
		metrics.IncRendererFailure("write")
		m.log.Warn("renderer stopped accepting input", "path", m.rec.Path, "error", err)
	}
	return nil
}

// Close ends the renderer input, waits for it to exit and releases the
// handle. A non-zero exit is logged and recorded but not returned as an error.
func (m *Manager) Close(reason CloseReason) (JobRecord, error) {
	if m.sink == nil {
		return JobRecord{}, ErrNoHandle
	}
	out, exitErr := m.sink.Close()
	rec := m.rec
	rec.ClosedAt = m.now()
	rec.Reason = reason
	if out.PID != 0 {
		rec.PID = out.PID
	}
	m.sink = nil
	m.rec = JobRecord{}
	m.broken = false

	if len(out.Stdout) > 0 {
		m.log.Debug("renderer stdout", "path", rec.Path, "output", strings.TrimSpace(string(out.Stdout)))
	}
	if len(out.Stderr) > 0 {
		m.log.Info("renderer stderr", "path", rec.Path, "output", strings.TrimSpace(string(out.Stderr)))
	}
	if exitErr != nil {
		rec.ExitErr = exitErr.Error()
		metrics.IncRendererFailure("exit")
		m.log.Warn("renderer exited with error", "path", rec.Path, "error", exitErr)
	}

	metrics.IncJobClosed(string(reason))
	metrics.SetJobOpen(false)
	if !rec.StartedAt.IsZero() {
		metrics.ObserveJobDuration(rec.ClosedAt.Sub(rec.StartedAt).Seconds())
	}
	m.log.Info("job closed", "path", rec.Path, "reason", reason, "lines", rec.Lines, "bytes", rec.Bytes)
	for _, o := range m.observers {
		o.JobClosed(rec)
	}
	return rec, nil
}
