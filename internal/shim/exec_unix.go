//go:build unix

package shim

import "golang.org/x/sys/unix"

func execRuntime(path string, argv, env []string) error {
	return unix.Exec(path, argv, env)
}
