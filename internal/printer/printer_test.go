package printer

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmulateTable(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		first     bool
		want      string
		wantFirst bool
	}{
		{"blank", " HELLO", false, "HELLO\n", false},
		{"double space", "0HELLO", false, "\nHELLO\n", false},
		{"eject", "1HELLO", false, "\fHELLO\n", false},
		{"eject suppressed on first line", "1HELLO", true, "HELLO\n", false},
		{"overprint", "+HELLO", false, "\rHELLO\n", false},
		{"other control", "-HELLO", true, "HELLO\n", true},
		{"blank keeps first flag", " X", true, "X\n", true},
		{"control only", "0", false, "\n\n", false},
		{"eject only", "1", false, "\f\n", false},
		{"multibyte control", "äbc", false, "bc\n", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, first := Emulate(tc.line, tc.first)
			assert.Equal(t, tc.want, string(got))
			assert.Equal(t, tc.wantFirst, first)
		})
	}
}

func TestEmulateEmptyLineEmitsNothing(t *testing.T) {
	got, first := Emulate("", true)
	assert.Empty(t, got)
	assert.True(t, first)
}

var t0 = time.Date(2022, 3, 4, 5, 6, 7, 0, time.Local)

func TestOutputPath(t *testing.T) {
	s := NewSegmenter("/spool", ".pdf")
	assert.Equal(t, filepath.Join("/spool", "print-2022_03_04_05_06_07.pdf"), s.OutputPath(t0))

	s = NewSegmenter("out", "")
	assert.Equal(t, filepath.Join("out", "print-2022_03_04_05_06_07.pdf"), s.OutputPath(t0))
}

func TestScenarioHeaderMarkerTrailerMarker(t *testing.T) {
	s := NewSegmenter("spool", "pdf")
	lines := []string{"header", EndOfJobMarker, "trailer", EndOfJobMarker}

	var starts, completes, rendered int
	for i, l := range lines {
		res := s.Process(l, t0)
		if res.Start != nil {
			starts++
			assert.Equal(t, 0, i, "only the first line opens the job")
		}
		if len(res.Render) > 0 {
			rendered++
		}
		if res.Complete {
			completes++
			assert.Equal(t, len(lines)-1, i)
		}
	}
	assert.Equal(t, 1, starts)
	assert.Equal(t, 1, completes)
	assert.Equal(t, 4, rendered)
	assert.False(t, s.Open())
	assert.Equal(t, 0, s.Snapshot().Markers)
	assert.Equal(t, 1, s.Snapshot().Jobs)
}

func TestMarkerCounting(t *testing.T) {
	s := NewSegmenter("spool", "pdf")
	res := s.Process(EndOfJobMarker, t0)
	assert.True(t, res.Marker)
	assert.False(t, res.Complete)
	assert.Equal(t, 1, s.Snapshot().Markers)

	res = s.Process(EndOfJobMarker, t0)
	assert.True(t, res.Complete)
	assert.Equal(t, 0, s.Snapshot().Markers)

	// marker embedded in a longer line still counts
	s.Process("1JOB", t0)
	res = s.Process(" USER01"+EndOfJobMarker+"12.00.00", t0)
	assert.True(t, res.Marker)
	assert.Equal(t, 1, s.Snapshot().Markers)

	// marker text without its trailing spaces does not count
	res = s.Process(" //// END OF LIST ////", t0)
	assert.False(t, res.Marker)
	assert.Equal(t, 1, s.Snapshot().Markers)
}

func TestNoMarkerKeepsJobOpen(t *testing.T) {
	s := NewSegmenter("spool", "pdf")
	for i := 0; i < 500; i++ {
		res := s.Process(" LINE "+strings.Repeat("X", i%40), t0)
		require.False(t, res.Complete)
	}
	assert.True(t, s.Open())
}

func TestFirstEjectSuppressedPerJob(t *testing.T) {
	s := NewSegmenter("spool", "pdf")

	res := s.Process("1PAGE 1", t0)
	require.NotNil(t, res.Start)
	assert.Equal(t, "PAGE 1\n", string(res.Render))

	res = s.Process("1PAGE 2", t0)
	assert.Equal(t, "\fPAGE 2\n", string(res.Render))

	s.Process(EndOfJobMarker, t0)
	res = s.Process(EndOfJobMarker, t0)
	require.True(t, res.Complete)

	res = s.Process("1NEXT JOB", t0.Add(time.Second))
	require.NotNil(t, res.Start)
	assert.Equal(t, "NEXT JOB\n", string(res.Render))
	assert.Contains(t, res.Start.Path, "print-2022_03_04_05_06_08.pdf")
}

func TestFirstEjectSuppressedAfterLeadingBlankLines(t *testing.T) {
	s := NewSegmenter("spool", "pdf")
	s.Process(" BANNER", t0)
	res := s.Process("1TITLE", t0)
	assert.Equal(t, "TITLE\n", string(res.Render))
}

func TestEmptyLineOpensJobButRendersNothing(t *testing.T) {
	s := NewSegmenter("spool", "pdf")
	res := s.Process("", t0)
	assert.NotNil(t, res.Start)
	assert.Empty(t, res.Render)
	assert.True(t, s.Open())
}

func TestShutdown(t *testing.T) {
	s := NewSegmenter("spool", "pdf")
	assert.False(t, s.Shutdown())
	s.Process(" text", t0)
	s.Process(EndOfJobMarker, t0)
	assert.True(t, s.Shutdown())
	assert.False(t, s.Open())
	assert.False(t, s.Shutdown())
}
