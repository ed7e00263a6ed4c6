package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default logging configuration constants
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 3  // number of backup files
	DefaultMaxAgeDays = 7  // days
)

// Config describes where the daemon log and the renderer output go.
// Rotation parameters follow lumberjack semantics.
type Config struct {
	File        string // daemon log file; empty disables file logging
	Level       string // debug, info, warn, error
	Console     bool   // also log to stderr with colored levels
	RendererDir string // directory for renderer stdout/stderr logs; empty keeps them in memory only
	MaxSizeMB   int    // megabytes before rotation (default 10)
	MaxBackups  int    // number of backups to keep (default 3)
	MaxAgeDays  int    // days to keep (default 7)
	Compress    bool   // Gzip rotated files
}

// ParseLevel maps a level name to a slog.Level. Unknown names yield info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds the daemon logger. The returned closer flushes and closes the
// log file and must be called on shutdown.
func New(c Config) (*slog.Logger, io.Closer, error) {
	opts := &slog.HandlerOptions{Level: ParseLevel(c.Level)}
	var handlers []slog.Handler
	var closer io.Closer = nopCloser{}

	if c.File != "" {
		if dir := filepath.Dir(c.File); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, nil, fmt.Errorf("create log dir: %w", err)
			}
		}
		w := c.rotating(c.File)
		handlers = append(handlers, slog.NewTextHandler(w, opts))
		closer = w
	}
	if c.Console || len(handlers) == 0 {
		handlers = append(handlers, NewColorTextHandler(os.Stderr, opts, true))
	}
	if len(handlers) == 1 {
		return slog.New(handlers[0]), closer, nil
	}
	return slog.New(fanout(handlers)), closer, nil
}

// RendererWriters returns rotating writers for the renderer's stdout and
// stderr, named <dir>/<name>.stdout.log and <dir>/<name>.stderr.log.
// Both are nil when RendererDir is empty.
func (c Config) RendererWriters(name string) (io.WriteCloser, io.WriteCloser, error) {
	if c.RendererDir == "" {
		return nil, nil, nil
	}
	if err := os.MkdirAll(c.RendererDir, 0o750); err != nil {
		return nil, nil, fmt.Errorf("create renderer log dir: %w", err)
	}
	outW := c.rotating(filepath.Join(c.RendererDir, fmt.Sprintf("%s.stdout.log", name)))
	errW := c.rotating(filepath.Join(c.RendererDir, fmt.Sprintf("%s.stderr.log", name)))
	return outW, errW, nil
}

func (c Config) rotating(path string) *lj.Logger {
	return &lj.Logger{
		Filename:   path,
		MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(c.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   c.Compress,
	}
}

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
