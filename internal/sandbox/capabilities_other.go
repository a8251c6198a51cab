//go:build !linux

package sandbox

// DetectCapabilities reports no namespace support outside Linux; bwrap is
// Linux-only.
func DetectCapabilities(helper string) Capabilities {
	caps := Capabilities{}
	if path, err := HelperPath(helper); err == nil {
		caps.Helper = path
	}
	return caps
}
