// Package invocation decides what to do with one invocation of the runtime:
// run the smallweb application it describes inside the sandbox, or hand it
// to the real runtime untouched.
//
// Classification is deliberately permissive. Anything that does not look
// exactly like a smallweb launch of an application with a config file falls
// through to Delegate, so an unrecognised invocation behaves as if the shim
// were not installed. The only error Classify returns is failing to resolve
// the shim's own path.
package invocation

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/VikingOwl91/smallweb-shim/internal/searchpath"
)

// RuntimeName is the conventional binary name of the runtime the shim
// stands in for.
const RuntimeName = "deno"

// Policy vetoes interception of an otherwise runnable application.
type Policy interface {
	Intercept(cmd ParsedCommand, appDir string) (bool, string)
}

// Classifier maps an argument vector to an Action.
type Classifier struct {
	logger      *slog.Logger
	runtimeName string
	policy      Policy
	executable  func() (string, error)
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithRuntimeName overrides the name used to detect shadowing.
func WithRuntimeName(name string) Option {
	return func(c *Classifier) {
		if name != "" {
			c.runtimeName = name
		}
	}
}

// WithPolicy installs an interception policy. A nil policy intercepts
// every runnable application.
func WithPolicy(p Policy) Option {
	return func(c *Classifier) {
		c.policy = p
	}
}

// NewClassifier returns a Classifier logging to logger (nil discards).
func NewClassifier(logger *slog.Logger, opts ...Option) *Classifier {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	c := &Classifier{
		logger:      logger,
		runtimeName: RuntimeName,
		executable:  os.Executable,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify is shorthand for NewClassifier(nil).Classify.
func Classify(args []string, pathVar string) (Action, string, error) {
	return NewClassifier(nil).Classify(args, pathVar)
}

// classification carries the values each step derives for the next one.
type classification struct {
	args    []string
	last    string
	command ParsedCommand
	appDir  string
	config  AppConfig
}

type step struct {
	name string
	run  func(*Classifier, *classification) error
}

var steps = []step{
	{"last-argument", (*Classifier).lastArgument},
	{"parse-command", (*Classifier).parseCommand},
	{"file-entrypoint", (*Classifier).resolveAppDir},
	{"app-config", (*Classifier).loadConfig},
	{"policy", (*Classifier).checkPolicy},
}

// Classify returns the action for args along with the canonical path of
// the shim itself.
func (c *Classifier) Classify(args []string, pathVar string) (Action, string, error) {
	c.logger.Debug("classifying invocation", "args", args, "path", pathVar)

	self, err := c.selfPath(args)
	if err != nil {
		return nil, "", err
	}
	shadowing := len(args) > 0 && filepath.Base(args[0]) == c.runtimeName
	c.logger.Debug("resolved own path", "self", self, "shadowing", shadowing)

	state := &classification{args: args}
	for _, s := range steps {
		if err := s.run(c, state); err != nil {
			c.logger.Debug("delegating to runtime", "step", s.name, "reason", err)
			return c.delegate(pathVar, self, shadowing), self, nil
		}
	}

	c.logger.Debug("intercepting invocation",
		"entrypoint", state.command.Entrypoint,
		"port", state.command.Port,
		"app_dir", state.appDir,
	)
	return RunApplication{
		Config:  state.config,
		Command: state.command,
		AppDir:  state.appDir,
	}, self, nil
}

// selfPath canonicalises argv[0]. A bare name was found through PATH, so the
// running executable is asked instead of guessing which entry matched.
func (c *Classifier) selfPath(args []string) (string, error) {
	if len(args) == 0 {
		return "", errors.New("resolving own path: empty argument vector")
	}

	invoked := args[0]
	if !strings.ContainsRune(invoked, filepath.Separator) {
		exe, err := c.executable()
		if err != nil {
			return "", fmt.Errorf("resolving own path for %q: %w", invoked, err)
		}
		invoked = exe
	}

	abs, err := filepath.Abs(invoked)
	if err != nil {
		return "", fmt.Errorf("resolving own path %q: %w", invoked, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("resolving own path %q: %w", invoked, err)
	}
	return resolved, nil
}

func (c *Classifier) delegate(pathVar, self string, shadowing bool) Delegate {
	if !shadowing {
		return Delegate{}
	}
	sanitized, removed := searchpath.Sanitize(pathVar, self)
	if len(removed) > 0 {
		c.logger.Debug("removed own directory from PATH", "removed", removed, "path", sanitized)
	}
	return Delegate{Path: sanitized, Sanitized: true}
}

func (c *Classifier) lastArgument(s *classification) error {
	if len(s.args) < 2 {
		return errors.New("no trailing argument")
	}
	s.last = s.args[len(s.args)-1]
	return nil
}

func (c *Classifier) parseCommand(s *classification) error {
	cmd, err := ParseCommand(s.last)
	if err != nil {
		return err
	}
	s.command = cmd
	return nil
}

func (c *Classifier) resolveAppDir(s *classification) error {
	path, ok := s.command.EntrypointPath()
	if !ok {
		return fmt.Errorf("entrypoint %q is not a %s URI", s.command.Entrypoint, FileScheme)
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		s.appDir = path
	} else {
		s.appDir = filepath.Dir(path)
	}
	return nil
}

func (c *Classifier) loadConfig(s *classification) error {
	cfg, path, err := LoadAppConfig(s.appDir)
	if err != nil {
		return err
	}
	c.logger.Debug("loaded app config", "path", path, "exec", cfg.Exec)
	s.config = cfg
	return nil
}

func (c *Classifier) checkPolicy(s *classification) error {
	if c.policy == nil {
		return nil
	}
	ok, rule := c.policy.Intercept(s.command, s.appDir)
	if !ok {
		return fmt.Errorf("interception declined by %s", rule)
	}
	c.logger.Debug("interception allowed", "rule", rule)
	return nil
}
