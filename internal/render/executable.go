package render

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// ExecutableName is the renderer binary name without platform suffix.
const ExecutableName = "lpt2pdf"

// ExeSuffix returns the platform executable suffix.
func ExeSuffix() string {
	if runtime.GOOS == "windows" {
		return ".exe"
	}
	return ""
}

// DefaultExecutable locates the renderer next to the running binary.
func DefaultExecutable() (string, error) {
	self, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate own executable: %w", err)
	}
	return filepath.Join(filepath.Dir(self), ExecutableName+ExeSuffix()), nil
}

// CheckExecutable verifies that path names an executable renderer.
func CheckExecutable(path string) error {
	if path == "" {
		return fmt.Errorf("%w: no renderer path", ErrRendererUnavailable)
	}
	fi, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRendererUnavailable, err)
	}
	if fi.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrRendererUnavailable, path)
	}
	if _, err := exec.LookPath(path); err != nil {
		return fmt.Errorf("%w: %v", ErrRendererUnavailable, err)
	}
	return nil
}
