package sandbox

import (
	"fmt"
	"os"
)

// WriteScript stores execLine in a new shell script under dir (the system
// temp dir when empty) and returns its path. The caller removes it.
func WriteScript(dir, execLine string) (string, error) {
	f, err := os.CreateTemp(dir, "smallweb-shim-*.sh")
	if err != nil {
		return "", fmt.Errorf("creating launch script: %w", err)
	}

	body := "#!/bin/sh\n" + execLine + "\n"
	if _, err := f.WriteString(body); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("writing launch script: %w", err)
	}
	if err := f.Chmod(0o700); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("chmod launch script: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("closing launch script: %w", err)
	}

	return f.Name(), nil
}
