package supervisor

import (
	"errors"
	"fmt"
)

// ExitError carries a child's non-zero exit code.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("child exited with code %d", e.Code)
}

// IsExitError checks if an error is an ExitError and returns the code.
func IsExitError(err error) (int, bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, true
	}
	return 0, false
}

// ExitCode maps a Run result to a process exit status: 0 for nil, the
// child's code for an ExitError, 1 for anything else.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if code, ok := IsExitError(err); ok {
		return code
	}
	return 1
}
