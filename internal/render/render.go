package render

import (
	"errors"
	"io"
)

var (
	// ErrRendererUnavailable wraps failures to locate or spawn the renderer.
	ErrRendererUnavailable = errors.New("renderer unavailable")
	// ErrHandleLive is returned by Open while a previous job is still open.
	ErrHandleLive = errors.New("render handle already live")
	// ErrNoHandle is returned by Feed and Close when no job is open.
	ErrNoHandle = errors.New("no live render handle")
)

// Output is what a renderer left behind once its input was closed.
type Output struct {
	PID     int
	Stdout  []byte
	Stderr  []byte
	ExitErr error
}

// Sink is the input channel of one renderer instance. Writes go to the
// renderer in order; Close ends the input, waits for the renderer to exit and
// returns its captured output. The returned error is the exit error, if any.
type Sink interface {
	io.Writer
	Close() (Output, error)
}

// Launcher starts one renderer producing outputPath.
type Launcher interface {
	Launch(outputPath string) (Sink, error)
}

// LauncherFunc adapts a function to Launcher.
type LauncherFunc func(outputPath string) (Sink, error)

func (f LauncherFunc) Launch(outputPath string) (Sink, error) { return f(outputPath) }
