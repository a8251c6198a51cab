//go:build !linux

package sandbox

import "os/exec"

func applySysProcAttr(_ *exec.Cmd) {
	// No parent-death signal outside Linux
}
