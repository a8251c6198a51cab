// Package environ reads the process environment once at startup.
package environ

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/VikingOwl91/smallweb-shim/internal/config"
)

// LoginShellTimeout bounds the PATH query against the login shell.
const LoginShellTimeout = 5 * time.Second

// Env is the subset of the environment the shim reads.
type Env struct {
	Path       string `envconfig:"PATH"`
	Debug      string `envconfig:"DEBUG"`
	Shell      string `envconfig:"SHELL" default:"/bin/sh"`
	ConfigPath string `envconfig:"SMALLWEB_SHIM_CONFIG"`
	Home       string `envconfig:"HOME"`
}

// Load decodes Env from the process environment.
func Load() (*Env, error) {
	var e Env
	if err := envconfig.Process("", &e); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}
	return &e, nil
}

// SettingsPath is SMALLWEB_SHIM_CONFIG, else the default location under
// HOME, else empty.
func (e *Env) SettingsPath() string {
	if e.ConfigPath != "" {
		return e.ConfigPath
	}
	if e.Home != "" {
		return config.DefaultPath(e.Home)
	}
	return ""
}

// LoginShellPath asks shell, started as a login shell, for its PATH. Used
// when the shim was launched with an empty PATH.
func LoginShellPath(ctx context.Context, shell string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, LoginShellTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, shell, "-lc", `printf %s "$PATH"`).Output()
	if err != nil {
		return "", fmt.Errorf("querying PATH from login shell %s: %w", shell, err)
	}
	path := string(bytes.TrimSpace(out))
	if path == "" {
		return "", fmt.Errorf("login shell %s reported an empty PATH", shell)
	}
	return path, nil
}
