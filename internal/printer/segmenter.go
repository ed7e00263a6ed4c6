package printer

import (
	"path/filepath"
	"strings"
	"time"
)

// EndOfJobMarker is printed by the operating system at the end of every
// listing. Two occurrences close a print job.
const EndOfJobMarker = " //// END OF LIST ////  "

// MarkersPerJob is the number of end-of-job pulses that close a job.
const MarkersPerJob = 2

// FileStampLayout formats the job start time in output names.
const FileStampLayout = "2006_01_02_15_04_05"

// DefaultExtension is used when no output extension is configured.
const DefaultExtension = "pdf"

// Start asks the caller to open a renderer for a new job.
type Start struct {
	Path      string
	StartedAt time.Time
}

// Result is what a single line turns into.
type Result struct {
	Start    *Start // non-nil when the line opened a job
	Render   []byte // bytes for the renderer; empty for an empty line
	Marker   bool   // the line carried the end-of-job marker
	Complete bool   // the job is finished after Render has been written
}

// Snapshot is a copy of the segmenter state.
type Snapshot struct {
	Open      bool      `json:"open"`
	Path      string    `json:"path,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
	Markers   int       `json:"markers"`
	FirstLine bool      `json:"first_line"`
	Lines     int       `json:"lines"`
	Jobs      int       `json:"jobs"`
}

// Segmenter splits a printer line stream into jobs. It is not safe for
// concurrent use; the control loop owns it.
type Segmenter struct {
	dir string
	ext string

	open      bool
	path      string
	startedAt time.Time
	markers   int
	firstLine bool
	lines     int
	jobs      int
}

// NewSegmenter creates a segmenter writing job documents into dir with the
// given extension (without leading dot).
func NewSegmenter(dir, ext string) *Segmenter {
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	if ext == "" {
		ext = DefaultExtension
	}
	return &Segmenter{dir: dir, ext: ext}
}

// OutputPath returns the document path for a job started at t.
func (s *Segmenter) OutputPath(t time.Time) string {
	return filepath.Join(s.dir, "print-"+t.Format(FileStampLayout)+"."+s.ext)
}

// Process classifies one completed line. now is the wall clock used to name
// the job when this line opens one.
func (s *Segmenter) Process(line string, now time.Time) Result {
	var res Result
	if strings.Contains(line, EndOfJobMarker) {
		s.markers++
		res.Marker = true
	}
	if !s.open {
		s.open = true
		s.path = s.OutputPath(now)
		s.startedAt = now
		s.firstLine = true
		s.lines = 0
		res.Start = &Start{Path: s.path, StartedAt: now}
	}
	res.Render, s.firstLine = Emulate(line, s.firstLine)
	s.lines++
	if s.markers >= MarkersPerJob {
		s.markers = 0
		s.open = false
		s.jobs++
		res.Complete = true
	}
	return res
}

// Open reports whether a job is in progress.
func (s *Segmenter) Open() bool { return s.open }

// Shutdown closes an open job without a second marker. It reports whether a
// job was open. The marker count is left untouched.
func (s *Segmenter) Shutdown() bool {
	if !s.open {
		return false
	}
	s.open = false
	return true
}

// Snapshot returns a copy of the current state.
func (s *Segmenter) Snapshot() Snapshot {
	snap := Snapshot{
		Open:      s.open,
		Markers:   s.markers,
		FirstLine: s.firstLine,
		Lines:     s.lines,
		Jobs:      s.jobs,
	}
	if s.open {
		snap.Path = s.path
		snap.StartedAt = s.startedAt
	}
	return snap
}
