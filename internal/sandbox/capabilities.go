package sandbox

// Capabilities describes what the host offers for running the sandbox.
type Capabilities struct {
	// Helper is the resolved bwrap path, empty when not found.
	Helper        string
	UserNamespace bool
	Landlock      bool // informational, bwrap does not use it
	LandlockABI   int
	Kernel        string
}

// EffectiveLevel returns the effective sandbox isolation level.
// "full" = bwrap + unprivileged user namespaces, "partial" = bwrap that has
// to rely on being setuid, "none" = no bwrap, interception will fail.
func (c Capabilities) EffectiveLevel() string {
	if c.Helper == "" {
		return "none"
	}
	if c.UserNamespace {
		return "full"
	}
	return "partial"
}
