package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lptsplit/lptsplit/internal/metrics"
	"github.com/lptsplit/lptsplit/internal/printer"
	"github.com/lptsplit/lptsplit/internal/render"
)

const (
	DefaultPollInterval = 2 * time.Second
	DefaultCloseSettle  = time.Second
)

// LineSource yields completed lines from the printer stream. Poll returns
// ok=false when no complete line is available yet.
type LineSource interface {
	Poll() (line string, ok bool, err error)
	Offset() int64
	Pending() int
	Close() error
}

// Options tune the control loop.
type Options struct {
	// PollInterval is the sleep after an idle poll.
	PollInterval time.Duration
	// CloseSettle is the pause after a completed job so the next one gets a
	// distinct file name. Zero disables it; negative values are treated as zero.
	CloseSettle time.Duration
	Logger      *slog.Logger
	Clock       func() time.Time
}

// Status is a read-only view of the loop, safe to share with other goroutines.
type Status struct {
	Running       bool              `json:"running"`
	Job           printer.Snapshot  `json:"job"`
	Current       *render.JobRecord `json:"current,omitempty"`
	Last          *render.JobRecord `json:"last,omitempty"`
	Offset        int64             `json:"offset"`
	Pending       int               `json:"pending_bytes"`
	Lines         int64             `json:"lines"`
	JobsCompleted int               `json:"jobs_completed"`
	JobsAborted   int               `json:"jobs_aborted"`
	Error         string            `json:"error,omitempty"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Pipeline connects the printer stream, the job segmenter and the renderer.
// Run owns all of its mutable state; only Status may be called concurrently.
type Pipeline struct {
	src  LineSource
	seg  *printer.Segmenter
	mgr  *render.Manager
	opts Options
	log  *slog.Logger

	lines     int64
	completed int
	aborted   int
	last      *render.JobRecord
	running   bool
	failure   string

	status   atomic.Pointer[Status]
	stopOnce sync.Once
	stopErr  error
}

func New(src LineSource, seg *printer.Segmenter, mgr *render.Manager, opts Options) *Pipeline {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.CloseSettle < 0 {
		opts.CloseSettle = 0
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	p := &Pipeline{src: src, seg: seg, mgr: mgr, opts: opts, log: log}
	p.publish()
	return p
}

// Status returns the most recently published snapshot.
func (p *Pipeline) Status() Status { return *p.status.Load() }

// Run processes lines until ctx is cancelled or a fatal error occurs. The
// context is observed between lines only. On return an open job has been
// closed and the line source released.
func (p *Pipeline) Run(ctx context.Context) (err error) {
	p.running = true
	p.publish()
	p.log.Info("pipeline started", "poll_interval", p.opts.PollInterval)
	defer func() {
		if serr := p.shutdown(); serr != nil {
			err = errors.Join(err, serr)
		}
		if err != nil {
			p.failure = err.Error()
		}
		p.running = false
		p.publish()
		p.log.Info("pipeline stopped", "jobs_completed", p.completed, "jobs_aborted", p.aborted)
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}
		line, ok, perr := p.src.Poll()
		if perr != nil {
			return fmt.Errorf("read printer stream: %w", perr)
		}
		if !ok {
			metrics.IncIdlePolls()
			if p.streamMoved() {
				p.publish()
			}
			if !sleep(ctx, p.opts.PollInterval) {
				return nil
			}
			continue
		}
		if derr := p.dispatch(ctx, line); derr != nil {
			return derr
		}
		p.publish()
	}
}

func (p *Pipeline) dispatch(ctx context.Context, line string) error {
	res := p.seg.Process(line, p.opts.Clock())
	p.lines++
	metrics.IncLines()
	if res.Marker {
		metrics.IncMarkers()
	}
	if res.Start != nil {
		if err := p.mgr.Open(res.Start.Path, res.Start.StartedAt); err != nil {
			return fmt.Errorf("open job %s: %w", res.Start.Path, err)
		}
	}
	if err := p.mgr.Feed(res.Render); err != nil {
		return fmt.Errorf("feed job: %w", err)
	}
	if !res.Complete {
		return nil
	}
	rec, err := p.mgr.Close(render.ReasonComplete)
	if err != nil {
		return fmt.Errorf("close job: %w", err)
	}
	p.completed++
	p.last = &rec
	p.publish()
	sleep(ctx, p.opts.CloseSettle)
	return nil
}

// shutdown finalizes a partially received job. It runs at most once.
func (p *Pipeline) shutdown() error {
	p.stopOnce.Do(func() {
		wasOpen := p.seg.Shutdown()
		if p.mgr.Live() {
			rec, err := p.mgr.Close(render.ReasonShutdown)
			if err != nil {
				p.stopErr = fmt.Errorf("close job on shutdown: %w", err)
			} else {
				p.aborted++
				p.last = &rec
				p.log.Warn("job closed before end of list", "path", rec.Path, "lines", rec.Lines)
			}
		} else if wasOpen {
			p.log.Debug("job open without renderer at shutdown")
		}
		if pending := p.src.Pending(); pending > 0 {
			p.log.Debug("discarding partial line", "bytes", pending)
		}
		if err := p.src.Close(); err != nil {
			p.stopErr = errors.Join(p.stopErr, fmt.Errorf("close printer stream: %w", err))
		}
	})
	return p.stopErr
}

// streamMoved reports whether the reader consumed bytes since the last
// published status, as an idle poll does when it buffers a partial line.
func (p *Pipeline) streamMoved() bool {
	st := p.status.Load()
	return st == nil || st.Offset != p.src.Offset() || st.Pending != p.src.Pending()
}

func (p *Pipeline) publish() {
	st := &Status{
		Running:       p.running,
		Job:           p.seg.Snapshot(),
		Offset:        p.src.Offset(),
		Pending:       p.src.Pending(),
		Lines:         p.lines,
		JobsCompleted: p.completed,
		JobsAborted:   p.aborted,
		Error:         p.failure,
		UpdatedAt:     time.Now(),
	}
	if cur, ok := p.mgr.Current(); ok {
		st.Current = &cur
	}
	if p.last != nil {
		last := *p.last
		st.Last = &last
	}
	p.status.Store(st)
}

// sleep waits for d or until ctx is done. It reports false when cancelled.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
