//go:build !windows

package render

import (
	"os/exec"
	"syscall"
)

// configureSysProcAttr puts the renderer in its own process group so a
// terminal interrupt aimed at the daemon does not kill it before its input
// has been closed and the document finalized.
func configureSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
