package pidfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	gopsproc "github.com/shirou/gopsutil/v4/process"
)

// meta follows the PID on the second line so a reused PID can be told apart
// from the process that wrote the file.
type meta struct {
	StartUnixMilli int64 `json:"start_unix_ms"`
}

// Write records pid (and its start time, when known) in path.
func Write(path string, pid int) error {
	if path == "" {
		return nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create pid dir: %w", err)
		}
	}
	var b strings.Builder
	b.WriteString(strconv.Itoa(pid))
	b.WriteByte('\n')
	if start := startMilli(pid); start > 0 {
		m, _ := json.Marshal(meta{StartUnixMilli: start})
		b.Write(m)
		b.WriteByte('\n')
	}
	// #nosec G306
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// Read returns the PID stored in path and the recorded start time (0 when
// the file has none).
func Read(path string) (int, int64, error) {
	// #nosec G304
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return 0, 0, err
	}
	pidLine, rest, _ := strings.Cut(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	pid, err := strconv.Atoi(strings.TrimSpace(pidLine))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid pid in %s: %w", path, err)
	}
	var m meta
	if line, _, _ := strings.Cut(rest, "\n"); strings.TrimSpace(line) != "" {
		_ = json.Unmarshal([]byte(line), &m)
	}
	return pid, m.StartUnixMilli, nil
}

// Alive reports whether the process recorded in path still runs. A missing
// file is not an error. A PID that now belongs to a different process (start
// time mismatch) is reported as not alive.
func Alive(path string) (bool, int, error) {
	pid, start, err := Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, 0, nil
		}
		return false, 0, err
	}
	if pid <= 0 {
		return false, pid, nil
	}
	ok, err := gopsproc.PidExists(int32(pid))
	if err != nil || !ok {
		return false, pid, nil
	}
	if start > 0 {
		if cur := startMilli(pid); cur > 0 && cur != start {
			return false, pid, nil
		}
	}
	return true, pid, nil
}

// Remove deletes path, ignoring a missing file.
func Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func startMilli(pid int) int64 {
	p, err := gopsproc.NewProcess(int32(pid))
	if err != nil {
		return 0
	}
	ms, err := p.CreateTime()
	if err != nil {
		return 0
	}
	return ms
}
