//go:build !unix

package shim

import (
	"fmt"
	"runtime"
)

func execRuntime(_ string, _, _ []string) error {
	return fmt.Errorf("replacing the process is not supported on %s", runtime.GOOS)
}
