package render

import (
	"bytes"
	"errors"
	"sync"
)

// Recorder is an in-memory Launcher that keeps every opened sink. It lets
// callers exercise the job lifecycle without spawning a renderer.
type Recorder struct {
	mu       sync.Mutex
	Sinks    []*MemorySink
	LaunchFn func(outputPath string) error // optional failure injection
}

func (r *Recorder) Launch(outputPath string) (Sink, error) {
	if r.LaunchFn != nil {
		if err := r.LaunchFn(outputPath); err != nil {
			return nil, err
		}
	}
	s := &MemorySink{Path: outputPath}
	r.mu.Lock()
	r.Sinks = append(r.Sinks, s)
	r.mu.Unlock()
	return s, nil
}

// Opened returns a copy of the sinks launched so far.
func (r *Recorder) Opened() []*MemorySink {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*MemorySink(nil), r.Sinks...)
}

// MemorySink buffers everything written to it.
type MemorySink struct {
	Path    string
	Writes  [][]byte
	Closes  int
	ExitErr error
	WriteFn func(p []byte) error // optional failure injection

	buf bytes.Buffer
}

var errSinkClosed = errors.New("sink closed")

func (s *MemorySink) Write(p []byte) (int, error) {
	if s.Closes > 0 {
		return 0, errSinkClosed
	}
	if s.WriteFn != nil {
		if err := s.WriteFn(p); err != nil {
			return 0, err
		}
	}
	s.Writes = append(s.Writes, append([]byte(nil), p...))
	return s.buf.Write(p)
}

func (s *MemorySink) Close() (Output, error) {
	s.Closes++
	return Output{ExitErr: s.ExitErr}, s.ExitErr
}

// Bytes returns everything written so far.
func (s *MemorySink) Bytes() []byte { return s.buf.Bytes() }
