//go:build linux

package sandbox

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// landlockABI returns the highest Landlock ABI the kernel supports, 0 when
// Landlock is unavailable.
func landlockABI() int {
	// landlock_create_ruleset(NULL, 0, LANDLOCK_CREATE_RULESET_VERSION)
	abi, _, errno := syscall.Syscall(
		unix.SYS_LANDLOCK_CREATE_RULESET,
		0,
		0,
		uintptr(unix.LANDLOCK_CREATE_RULESET_VERSION),
	)
	if errno != 0 {
		return 0
	}
	return int(abi)
}
