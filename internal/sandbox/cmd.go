package sandbox

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

// DefaultShell runs the launch script inside the sandbox. It is reachable
// through the /bin system mount.
const DefaultShell = "/bin/sh"

// helperLocations are probed when bwrap is not on PATH.
var helperLocations = []string{
	"/usr/bin/bwrap",
	"/usr/local/bin/bwrap",
	"/bin/bwrap",
}

// Launch describes one sandboxed run of an application's exec string.
type Launch struct {
	// Helper is the path to the bwrap executable.
	Helper string
	Spec   Spec
	// Script is the generated launch script. It is bound read-only at the
	// same path inside the sandbox.
	Script string
	// Shell interprets Script; DefaultShell when empty.
	Shell string
	// Dir is the working directory bwrap is started in.
	Dir string
	// Env is the complete environment handed to bwrap.
	Env []string
}

// Argv returns the full command line: helper, sandbox options, the script
// mount, the separator and the shell invocation of the script.
func (l Launch) Argv() []string {
	shell := l.Shell
	if shell == "" {
		shell = DefaultShell
	}
	specArgs := l.Spec.Args()
	argv := make([]string, 0, 1+len(specArgs)+6)
	argv = append(argv, l.Helper)
	argv = append(argv, specArgs...)
	if l.Script != "" {
		argv = append(argv, ReadOnly.Flag(), l.Script, l.Script)
	}
	argv = append(argv, "--", shell, l.Script)
	return argv
}

// Command builds the exec.Cmd for l. Standard streams are inherited from
// the shim.
func Command(ctx context.Context, l Launch) (*exec.Cmd, error) {
	if l.Helper == "" {
		return nil, fmt.Errorf("sandbox helper path is required")
	}
	if l.Script == "" {
		return nil, fmt.Errorf("launch script is required")
	}

	argv := l.Argv()
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = l.Dir
	cmd.Env = l.Env
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	applySysProcAttr(cmd)

	return cmd, nil
}

// HelperPath locates bwrap. A non-empty override is used as-is after
// checking that it exists.
func HelperPath(override string) (string, error) {
	if override != "" {
		if _, err := os.Stat(override); err != nil {
			return "", fmt.Errorf("sandbox helper %q: %w", override, err)
		}
		return override, nil
	}

	if path, err := exec.LookPath("bwrap"); err == nil {
		return path, nil
	}
	for _, path := range helperLocations {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("bwrap not found on PATH or in standard locations")
}
