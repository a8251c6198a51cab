package supply

import (
	"fmt"
	"strings"
)

// Pin restricts which runtime binary may be executed. The zero value
// accepts anything.
type Pin struct {
	Hash         string   // "sha256:<hex>", empty to skip
	AllowedPaths []string // directory prefixes, empty to skip
}

// Validate checks the pin is well formed.
func (p Pin) Validate() error {
	if p.Hash == "" {
		return nil
	}
	_, _, err := ParseHash(p.Hash)
	return err
}

// VerifyResult holds the outcome of a verification.
type VerifyResult struct {
	Path         string // as found on the search path
	ResolvedPath string // symlinks resolved
	ComputedHash string // only set if a hash was pinned
}

// Verify looks command up on pathVar, then runs path validation and hash
// verification. Path validation runs first so a denied binary is never read.
func Verify(command, pathVar string, pin Pin) (*VerifyResult, error) {
	found, err := Lookup(command, pathVar)
	if err != nil {
		return nil, fmt.Errorf("supply chain: %w", err)
	}
	resolved, err := ResolvePath(found, pathVar)
	if err != nil {
		return nil, fmt.Errorf("supply chain: %w", err)
	}

	if err := ValidatePath(resolved, pin.AllowedPaths); err != nil {
		return nil, fmt.Errorf("supply chain: %w", err)
	}

	result := &VerifyResult{
		Path:         found,
		ResolvedPath: resolved,
	}

	if pin.Hash == "" {
		return result, nil
	}

	_, want, err := ParseHash(pin.Hash)
	if err != nil {
		return nil, fmt.Errorf("supply chain: %w", err)
	}
	computed, err := ComputeFileHash(resolved)
	if err != nil {
		return nil, fmt.Errorf("supply chain: %w", err)
	}
	result.ComputedHash = computed

	if !strings.EqualFold(strings.TrimPrefix(computed, "sha256:"), want) {
		return nil, fmt.Errorf("supply chain: hash mismatch for %q: expected %s, computed %s",
			resolved, pin.Hash, computed)
	}

	return result, nil
}
