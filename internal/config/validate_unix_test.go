//go:build !windows

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestValidateAcceptsCompleteSetup(t *testing.T) {
	dir := t.TempDir()
	prt := filepath.Join(dir, "lpt.prt")
	out := filepath.Join(dir, "pdf")
	exe := filepath.Join(dir, "lpt2pdf")
	require.NoError(t, os.WriteFile(prt, nil, 0o644))
	require.NoError(t, os.Mkdir(out, 0o755))
	require.NoError(t, os.WriteFile(exe, []byte("#!/bin/sh\ncat >/dev/null\n"), 0o755))

	c := &Config{
		PrinterFile:  prt,
		OutputDir:    out,
		PollInterval: time.Second,
		CloseSettle:  time.Second,
		Renderer:     RendererConfig{Path: exe, TopOfForm: 3},
	}
	require.NoError(t, c.Validate())
}
