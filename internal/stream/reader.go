package stream

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"unicode/utf8"
)

// ErrDecode is returned when a completed line is not valid UTF-8.
var ErrDecode = errors.New("stream decode error")

// Reader assembles newline-terminated lines from an append-only source.
// It never blocks waiting for data: when the source has nothing more to offer
// Poll reports would-block and keeps the partial line for the next call.
type Reader struct {
	src    io.Reader
	closer io.Closer
	buf    *bufio.Reader
	line   []byte
	offset int64
}

// NewReader wraps src. The cursor starts at offset 0.
func NewReader(src io.Reader) *Reader {
	r := &Reader{src: src, buf: bufio.NewReader(src)}
	if c, ok := src.(io.Closer); ok {
		r.closer = c
	}
	return r
}

// Open opens the printer file for reading from its beginning.
func Open(path string) (*Reader, error) {
	// #nosec G304
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open printer file: %w", err)
	}
	return NewReader(f), nil
}

// Truncate empties path, creating it when missing. It runs once at startup so
// the reader starts from a known offset of zero.
func Truncate(path string) error {
	// #nosec G302 G304
	f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("truncate printer file: %w", err)
	}
	return f.Close()
}

// Poll consumes available bytes one at a time until a line terminator or the
// end of the currently available data. It returns ok=true with the line
// (terminator excluded) once a full line has been read. When no complete line
// is available it returns ok=false and a nil error; the caller should back off.
func (r *Reader) Poll() (string, bool, error) {
	for {
		c, err := r.buf.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", false, nil
			}
			return "", false, fmt.Errorf("read printer file: %w", err)
		}
		r.offset++
		if c != '\n' {
			r.line = append(r.line, c)
			continue
		}
		line := r.line
		r.line = nil
		if !utf8.Valid(line) {
			return "", false, fmt.Errorf("%w at offset %d", ErrDecode, r.offset-int64(len(line))-1)
		}
		return string(line), true, nil
	}
}

// Offset is the number of bytes consumed so far.
func (r *Reader) Offset() int64 { return r.offset }

// Pending is the length of the partial line buffered since the last terminator.
func (r *Reader) Pending() int { return len(r.line) }

// Close discards any partial line and closes the underlying source. Later
// calls are no-ops.
func (r *Reader) Close() error {
	r.line = nil
	if r.closer == nil {
		return nil
	}
	c := r.closer
	r.closer = nil
	return c.Close()
}
