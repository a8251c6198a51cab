//go:build linux

package sandbox

import (
	"os/exec"
	"syscall"
)

// applySysProcAttr kills bwrap if the shim dies before it does. bwrap's own
// --die-with-parent then takes the application down with it.
func applySysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Pdeathsig: syscall.SIGKILL,
	}
}
