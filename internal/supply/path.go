// Package supply locates the real runtime binary on a search path and checks
// it against an optional location allowlist and content pin before it is
// executed.
package supply

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when no executable matches on the search path.
var ErrNotFound = errors.New("executable file not found in search path")

// Lookup finds name on pathVar the way a shell would: a name containing a
// separator is used as given, otherwise each non-empty entry is tried in
// order and the first executable regular file wins. The result is absolute
// but symlinks are left in place.
func Lookup(name, pathVar string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("resolving command: empty name")
	}

	if strings.ContainsRune(name, filepath.Separator) {
		if err := executable(name); err != nil {
			return "", fmt.Errorf("resolving command %q: %w", name, err)
		}
		return filepath.Abs(name)
	}

	for _, dir := range filepath.SplitList(pathVar) {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, name)
		if executable(candidate) == nil {
			return filepath.Abs(candidate)
		}
	}
	return "", fmt.Errorf("resolving command %q: %w", name, ErrNotFound)
}

func executable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%q is not a regular file", path)
	}
	if info.Mode().Perm()&0o111 == 0 {
		return fmt.Errorf("%q is not executable", path)
	}
	return nil
}

// ResolvePath looks command up on pathVar and evaluates symlinks.
func ResolvePath(command, pathVar string) (string, error) {
	found, err := Lookup(command, pathVar)
	if err != nil {
		return "", err
	}

	resolved, err := filepath.EvalSymlinks(found)
	if err != nil {
		return "", fmt.Errorf("resolving symlinks for %q: %w", found, err)
	}

	return resolved, nil
}

// ValidatePath checks the resolved path is under one of the allowed prefixes.
// Empty allowedPaths means no restriction.
func ValidatePath(resolved string, allowedPaths []string) error {
	if len(allowedPaths) == 0 {
		return nil
	}

	for _, allowed := range allowedPaths {
		prefix := filepath.Clean(expandTilde(allowed))

		dir := prefix
		if !strings.HasSuffix(dir, string(filepath.Separator)) {
			dir += string(filepath.Separator)
		}

		if resolved == prefix || strings.HasPrefix(resolved, dir) {
			return nil
		}
	}

	return fmt.Errorf("runtime path %q is not under any allowed path", resolved)
}

func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
