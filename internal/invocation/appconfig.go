package invocation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"
)

// ConfigFileNames are the application config files looked up in the app
// directory, in order.
var ConfigFileNames = []string{"smallweb.json", "smallweb.jsonc"}

// AppConfig is the per-application configuration next to the entrypoint.
// Only Exec is consumed by the shim.
type AppConfig struct {
	Exec         string `json:"exec"`
	WatchPattern string `json:"watchPattern,omitempty"`
	Build        string `json:"build,omitempty"`
}

var errMissingExec = errors.New("app config: missing string field \"exec\"")

// ParseAppConfig decodes an application config. Comments and trailing commas
// are tolerated. Optional fields of the wrong type are ignored rather than
// rejected, since the shim never reads them.
func ParseAppConfig(data []byte) (AppConfig, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(jsonc.ToJSON(data), &raw); err != nil {
		return AppConfig{}, fmt.Errorf("decoding app config: %w", err)
	}

	var cfg AppConfig
	execRaw, ok := raw["exec"]
	if !ok || bytes.Equal(bytes.TrimSpace(execRaw), []byte("null")) {
		return AppConfig{}, errMissingExec
	}
	if err := json.Unmarshal(execRaw, &cfg.Exec); err != nil {
		return AppConfig{}, fmt.Errorf("app config: exec: %w", err)
	}

	optionalString(raw, &cfg.WatchPattern, "watchPattern", "watchpattern")
	optionalString(raw, &cfg.Build, "build")

	return cfg, nil
}

func optionalString(raw map[string]json.RawMessage, dst *string, keys ...string) {
	for _, k := range keys {
		if v, ok := raw[k]; ok {
			if json.Unmarshal(v, dst) == nil {
				return
			}
		}
	}
}

// LoadAppConfig reads the first config file that exists in dir and parses it.
// It returns the path it read from.
func LoadAppConfig(dir string) (AppConfig, string, error) {
	var readErr error
	for _, name := range ConfigFileNames {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			if readErr == nil {
				readErr = err
			}
			continue
		}
		cfg, err := ParseAppConfig(data)
		if err != nil {
			return AppConfig{}, path, fmt.Errorf("%s: %w", path, err)
		}
		return cfg, path, nil
	}
	return AppConfig{}, "", fmt.Errorf("reading app config: %w", readErr)
}
