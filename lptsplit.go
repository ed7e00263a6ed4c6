package lptsplit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	cfg "github.com/lptsplit/lptsplit/internal/config"
	"github.com/lptsplit/lptsplit/internal/history"
	"github.com/lptsplit/lptsplit/internal/history/factory"
	"github.com/lptsplit/lptsplit/internal/logger"
	"github.com/lptsplit/lptsplit/internal/metrics"
	"github.com/lptsplit/lptsplit/internal/pidfile"
	"github.com/lptsplit/lptsplit/internal/pipeline"
	"github.com/lptsplit/lptsplit/internal/printer"
	"github.com/lptsplit/lptsplit/internal/render"
	iapi "github.com/lptsplit/lptsplit/internal/server"
	"github.com/lptsplit/lptsplit/internal/stream"
	tlsx "github.com/lptsplit/lptsplit/internal/tls"
)

// Re-export core types for external consumers.

type Config = cfg.Config

type Status = pipeline.Status

type JobRecord = render.JobRecord

var (
	ErrInvalidConfig       = cfg.ErrInvalid
	ErrDecode              = stream.ErrDecode
	ErrRendererUnavailable = render.ErrRendererUnavailable
)

// ErrAlreadyRunning is returned when the pid file names a live process.
var ErrAlreadyRunning = errors.New("monitor already running")

// LoadConfig reads a configuration file; see config.Load.
func LoadConfig(path string) (*Config, error) { return cfg.Load(path) }

// Monitor is one assembled print spool monitor.
type Monitor struct {
	cfg      *Config
	log      *slog.Logger
	pipe     *pipeline.Pipeline
	server   *http.Server
	closers  []func() error
	pidFile  string
	launcher render.Launcher
}

// Option customizes a Monitor.
type Option func(*Monitor)

// WithLogger replaces the logger built from the configuration.
func WithLogger(l *slog.Logger) Option { return func(m *Monitor) { m.log = l } }

// WithLauncher replaces the renderer subprocess launcher.
func WithLauncher(l render.Launcher) Option { return func(m *Monitor) { m.launcher = l } }

// New validates c and prepares everything the monitor loop needs: logging,
// the pid file, the truncated printer stream, the renderer, the optional
// history sink and status server. Close releases what New acquired.
func New(c *Config, opts ...Option) (mon *Monitor, err error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	m := &Monitor{cfg: c}
	for _, o := range opts {
		o(m)
	}
	defer func() {
		if err != nil {
			_ = m.Close()
		}
	}()

	if m.log == nil {
		l, closer, err := logger.New(c.Logger())
		if err != nil {
			return nil, fmt.Errorf("setup logging: %w", err)
		}
		m.log = l
		m.closers = append(m.closers, closer.Close)
	}

	if alive, pid, _ := pidfile.Alive(c.PIDFile); alive && pid != os.Getpid() {
		return nil, fmt.Errorf("%w: pid %d (%s)", ErrAlreadyRunning, pid, c.PIDFile)
	}

	if err := stream.Truncate(c.PrinterFile); err != nil {
		return nil, fmt.Errorf("truncate printer file: %w", err)
	}
	reader, err := stream.Open(c.PrinterFile)
	if err != nil {
		return nil, err
	}
	m.closers = append(m.closers, reader.Close)

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		m.log.Warn("metrics registration failed", "error", err)
	}

	if m.launcher == nil {
		exe, err := c.RendererPath()
		if err != nil {
			return nil, err
		}
		env, err := c.RendererEnv()
		if err != nil {
			return nil, err
		}
		m.launcher = render.ExecLauncher{Path: exe, Args: c.RendererArgs(), Env: env, Log: c.Logger(), Logger: m.log}
	}

	mopts := []render.Option{render.WithLogger(m.log)}
	if c.History.DSN != "" {
		sink, err := factory.NewSinkFromDSN(c.History.DSN)
		if err != nil {
			return nil, fmt.Errorf("history sink: %w", err)
		}
		m.closers = append(m.closers, sink.Close)
		mopts = append(mopts, render.WithObserver(&history.Forwarder{Sink: sink, Timeout: c.History.Timeout, Log: m.log}))
	}
	mgr := render.NewManager(m.launcher, mopts...)

	m.pipe = pipeline.New(reader, printer.NewSegmenter(c.OutputDir, c.Output.Extension), mgr, pipeline.Options{
		PollInterval: c.PollInterval,
		CloseSettle:  c.CloseSettle,
		Logger:       m.log,
	})

	if c.Server.Listen != "" {
		tlsCfg, err := tlsx.Setup(c.Server.TLS)
		if err != nil {
			return nil, fmt.Errorf("status server TLS: %w", err)
		}
		srv, err := iapi.NewServer(c.Server.Listen, c.Server.BasePath, m.pipe, c.Server.Metrics, tlsCfg)
		if err != nil {
			return nil, err
		}
		m.server = srv
		m.log.Info("status server listening", "addr", srv.Addr, "base", c.Server.BasePath, "tls", tlsCfg != nil)
	}

	if err := pidfile.Write(c.PIDFile, os.Getpid()); err != nil {
		return nil, fmt.Errorf("write pid file: %w", err)
	}
	m.pidFile = c.PIDFile
	return m, nil
}

// Run monitors the printer file until ctx is done or a fatal error occurs.
func (m *Monitor) Run(ctx context.Context) error {
	m.log.Info("monitoring printer file",
		"printer_file", m.cfg.PrinterFile,
		"output_dir", m.cfg.OutputDir,
		"poll_interval", m.cfg.PollInterval)
	err := m.pipe.Run(ctx)
	if err != nil {
		m.log.Error("monitor stopped", "error", err)
	}
	return err
}

// Status returns the current pipeline snapshot.
func (m *Monitor) Status() Status { return m.pipe.Status() }

// Handler returns the read-only status API for mounting in another server.
func (m *Monitor) Handler(basePath string) http.Handler {
	return iapi.NewRouter(m.pipe, basePath, false).Handler()
}

// Addr is the bound status server address, empty when disabled.
func (m *Monitor) Addr() string {
	if m.server == nil {
		return ""
	}
	return m.server.Addr
}

// Close stops the status server, closes the history sink and log file and
// removes the pid file.
func (m *Monitor) Close() error {
	var errs []error
	if m.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = append(errs, m.server.Shutdown(ctx))
		cancel()
		m.server = nil
	}
	if m.pidFile != "" {
		errs = append(errs, pidfile.Remove(m.pidFile))
		m.pidFile = ""
	}
	for i := len(m.closers) - 1; i >= 0; i-- {
		errs = append(errs, m.closers[i]())
	}
	m.closers = nil
	return errors.Join(errs...)
}

var _ io.Closer = (*Monitor)(nil)
