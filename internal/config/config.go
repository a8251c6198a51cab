// Package config loads the shim's optional YAML settings file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/cel-go/cel"
	"gopkg.in/yaml.v3"
)

const (
	EffectIntercept = "intercept"
	EffectDelegate  = "delegate"

	DefaultRuntime  = "deno"
	DefaultLogLevel = "info"
)

type SandboxConfig struct {
	Helper       string   `yaml:"helper,omitempty"`
	EnvAllowlist []string `yaml:"env_allowlist,omitempty"`
}

type SupplyConfig struct {
	Hash         string   `yaml:"hash,omitempty"`
	AllowedPaths []string `yaml:"allowed_paths,omitempty"`
}

type PolicyRule struct {
	Name       string `yaml:"name"`
	Expression string `yaml:"expression"`
	Effect     string `yaml:"effect"`
}

type PolicyConfig struct {
	Default string       `yaml:"default"`
	Rules   []PolicyRule `yaml:"rules,omitempty"`
}

type Config struct {
	LogLevel string        `yaml:"log_level"`
	LogFile  string        `yaml:"log_file,omitempty"`
	Runtime  string        `yaml:"runtime,omitempty"`
	Sandbox  SandboxConfig `yaml:"sandbox,omitempty"`
	Supply   SupplyConfig  `yaml:"supply,omitempty"`
	Policy   PolicyConfig  `yaml:"policy,omitempty"`
}

// Default returns the settings used when no file exists.
func Default() *Config {
	cfg := &Config{}
	// Validating the zero value only fills defaults.
	_ = cfg.Validate()
	return cfg
}

// DefaultPath is the settings location under home.
func DefaultPath(home string) string {
	return filepath.Join(home, ".config", "smallweb-shim", "config.yaml")
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config %s: %w", path, err)
	}

	return &cfg, nil
}

// LoadOptional is Load, except a missing file yields Default.
func LoadOptional(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

func (c *Config) Validate() error {
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error, got %q", c.LogLevel)
	}

	if c.Runtime == "" {
		c.Runtime = DefaultRuntime
	}
	if strings.ContainsRune(c.Runtime, '/') {
		return fmt.Errorf("runtime must be a bare command name, got %q", c.Runtime)
	}

	if c.Supply.Hash != "" {
		if err := validateHash(c.Supply.Hash); err != nil {
			return fmt.Errorf("supply: %w", err)
		}
	}

	return c.validatePolicy()
}

func validateHash(h string) error {
	algo, digest, ok := strings.Cut(h, ":")
	if !ok {
		return fmt.Errorf("invalid hash format %q: expected \"sha256:digest\"", h)
	}
	if algo != "sha256" {
		return fmt.Errorf("unsupported hash algorithm %q", algo)
	}
	if len(digest) != 64 {
		return fmt.Errorf("sha256 digest must be 64 hex characters, got %d", len(digest))
	}
	return nil
}

func validEffect(e string) bool {
	return e == EffectIntercept || e == EffectDelegate
}

func (c *Config) validatePolicy() error {
	if c.Policy.Default == "" {
		c.Policy.Default = EffectIntercept
	}
	if !validEffect(c.Policy.Default) {
		return fmt.Errorf("policy default must be 'intercept' or 'delegate', got %q", c.Policy.Default)
	}

	seen := make(map[string]bool)
	for i, rule := range c.Policy.Rules {
		if rule.Name == "" {
			return fmt.Errorf("rule %d: name is required", i)
		}
		if !validEffect(rule.Effect) {
			return fmt.Errorf("rule %d (%q): effect must be 'intercept' or 'delegate', got %q", i, rule.Name, rule.Effect)
		}
		if seen[rule.Name] {
			return fmt.Errorf("rule %d: duplicate rule name %q", i, rule.Name)
		}
		seen[rule.Name] = true
	}

	return validateCELExpressions(c.Policy.Rules)
}

func validateCELExpressions(rules []PolicyRule) error {
	if len(rules) == 0 {
		return nil
	}

	env, err := cel.NewEnv(
		cel.Variable("command", cel.StringType),
		cel.Variable("entrypoint", cel.StringType),
		cel.Variable("port", cel.IntType),
		cel.Variable("app_dir", cel.StringType),
	)
	if err != nil {
		return fmt.Errorf("creating CEL environment: %w", err)
	}

	for _, rule := range rules {
		ast, issues := env.Compile(rule.Expression)
		if issues != nil && issues.Err() != nil {
			return fmt.Errorf("rule %q: invalid CEL expression: %w", rule.Name, issues.Err())
		}
		out := ast.OutputType()
		if !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
			return fmt.Errorf("rule %q: expression must evaluate to bool, got %s", rule.Name, out)
		}
	}

	return nil
}
