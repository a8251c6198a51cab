package sandbox

import (
	"strconv"
	"strings"
)

// FilterEnv returns only env vars whose keys are in the allowlist. An
// allowlist entry ending in '*' matches every key with that prefix.
// Entries without '=' are dropped. Key matching is case-sensitive.
func FilterEnv(env []string, allowlist []string) []string {
	if len(env) == 0 || len(allowlist) == 0 {
		return nil
	}

	allowed := make(map[string]bool, len(allowlist))
	var prefixes []string
	for _, k := range allowlist {
		if p, ok := strings.CutSuffix(k, "*"); ok {
			prefixes = append(prefixes, p)
			continue
		}
		allowed[k] = true
	}

	var result []string
	for _, entry := range env {
		k, _, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		if allowed[k] || hasAnyPrefix(k, prefixes) {
			result = append(result, entry)
		}
	}
	return result
}

func hasAnyPrefix(key string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

// ChildEnv builds the environment for the sandbox helper: env, narrowed to
// allowlist when one is given, with PORT set to port. Any inherited PORT is
// replaced.
func ChildEnv(env []string, allowlist []string, port uint16) []string {
	if len(allowlist) > 0 {
		env = FilterEnv(env, allowlist)
	}

	result := make([]string, 0, len(env)+1)
	for _, entry := range env {
		if strings.HasPrefix(entry, "PORT=") {
			continue
		}
		result = append(result, entry)
	}
	return append(result, "PORT="+strconv.Itoa(int(port)))
}
