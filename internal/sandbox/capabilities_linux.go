//go:build linux

package sandbox

import (
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// DetectCapabilities probes the host for sandbox capabilities. helper is
// passed to HelperPath.
func DetectCapabilities(helper string) Capabilities {
	abi := landlockABI()
	caps := Capabilities{
		UserNamespace: detectUserNamespace(),
		Landlock:      abi > 0,
		LandlockABI:   abi,
		Kernel:        kernelRelease(),
	}
	if path, err := HelperPath(helper); err == nil {
		caps.Helper = path
	}
	return caps
}

func detectUserNamespace() bool {
	// Debian-style kernels gate unprivileged user namespaces behind a sysctl.
	data, err := os.ReadFile("/proc/sys/kernel/unprivileged_userns_clone")
	if err == nil && strings.TrimSpace(string(data)) != "1" {
		return false
	}

	data, err = os.ReadFile("/proc/sys/user/max_user_namespaces")
	if err != nil {
		return false
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	return err == nil && n > 0
}

func kernelRelease() string {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return ""
	}
	return unix.ByteSliceToString(uts.Release[:])
}
