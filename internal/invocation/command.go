package invocation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// FileScheme prefixes entrypoints that live on the local filesystem.
const FileScheme = "file://"

// ParsedCommand is the JSON payload smallweb appends as the last argument
// when it starts an application through the runtime.
type ParsedCommand struct {
	Command    string `json:"command"`
	Entrypoint string `json:"entrypoint"`
	Port       uint16 `json:"port"`
}

var errNotObject = errors.New("not a JSON object")

// ParseCommand decodes s as a ParsedCommand. All three fields must be present
// under their exact lowercase keys and correctly typed; unknown fields are
// ignored.
func ParseCommand(s string) (ParsedCommand, error) {
	if !strings.HasPrefix(strings.TrimSpace(s), "{") {
		return ParsedCommand{}, errNotObject
	}

	// encoding/json folds key case when decoding into a struct, so look the
	// keys up by hand.
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return ParsedCommand{}, fmt.Errorf("decoding command: %w", err)
	}

	var cmd ParsedCommand
	if err := requiredField(raw, "command", &cmd.Command); err != nil {
		return ParsedCommand{}, err
	}
	if err := requiredField(raw, "entrypoint", &cmd.Entrypoint); err != nil {
		return ParsedCommand{}, err
	}
	if err := requiredField(raw, "port", &cmd.Port); err != nil {
		return ParsedCommand{}, err
	}
	return cmd, nil
}

func requiredField(raw map[string]json.RawMessage, key string, dst any) error {
	v, ok := raw[key]
	if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		return fmt.Errorf("command: missing field %q", key)
	}
	if err := json.Unmarshal(v, dst); err != nil {
		return fmt.Errorf("command: %s: %w", key, err)
	}
	return nil
}

// EntrypointPath returns the filesystem path of a file:// entrypoint.
func (c ParsedCommand) EntrypointPath() (string, bool) {
	path, ok := strings.CutPrefix(c.Entrypoint, FileScheme)
	if !ok || path == "" {
		return "", false
	}
	return path, true
}
