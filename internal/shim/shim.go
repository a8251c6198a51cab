// Package shim is the entry point shared by the deno-shim binary: it
// classifies one invocation and either supervises the sandboxed
// application or replaces itself with the real runtime.
package shim

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/VikingOwl91/smallweb-shim/internal/config"
	"github.com/VikingOwl91/smallweb-shim/internal/invocation"
	"github.com/VikingOwl91/smallweb-shim/internal/netstat"
	"github.com/VikingOwl91/smallweb-shim/internal/policy"
	"github.com/VikingOwl91/smallweb-shim/internal/supervisor"
)

// Name prefixes every diagnostic written to stderr.
const Name = "deno-shim"

// ExecFunc replaces the current process image. It returns only on failure.
type ExecFunc func(path string, argv, env []string) error

// Options is everything one invocation needs, resolved by main.
type Options struct {
	Args     []string
	Path     string
	Environ  []string
	Settings *config.Config
	Logger   *slog.Logger
	// Signals received here are relayed to a supervised application.
	Signals <-chan os.Signal
	Stderr  io.Writer
	// TempDir holds the generated launch script; os.TempDir when empty.
	TempDir string
	// Probe checks readiness; netstat when nil.
	Probe supervisor.Probe
	// Exec replaces the process for delegation; a nil return is treated
	// as success.
	Exec              ExecFunc
	SupervisorOptions []supervisor.Option
}

type shim struct {
	opts     Options
	settings *config.Config
	logger   *slog.Logger
	stderr   io.Writer
}

func newShim(opts Options) *shim {
	s := &shim{
		opts:     opts,
		settings: opts.Settings,
		logger:   opts.Logger,
		stderr:   opts.Stderr,
	}
	if s.settings == nil {
		s.settings = config.Default()
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if s.stderr == nil {
		s.stderr = os.Stderr
	}
	if s.opts.Exec == nil {
		s.opts.Exec = execRuntime
	}
	if s.opts.Probe == nil {
		s.opts.Probe = netstat.New(s.logger)
	}
	return s
}

func (s *shim) classify() (invocation.Action, string, error) {
	classifier := invocation.NewClassifier(s.logger,
		invocation.WithRuntimeName(s.settings.Runtime),
		invocation.WithPolicy(s.policy()),
	)
	return classifier.Classify(s.opts.Args, s.opts.Path)
}

// Run handles one invocation and returns the process exit code.
func Run(ctx context.Context, opts Options) int {
	s := newShim(opts)

	action, self, err := s.classify()
	if err != nil {
		return s.fatal(err)
	}

	switch a := action.(type) {
	case invocation.RunApplication:
		return s.runApplication(ctx, a, self)
	case invocation.Delegate:
		return s.delegate(a, self)
	default:
		return s.fatal(fmt.Errorf("unhandled action %T", action))
	}
}

// declineAll refuses every interception.
type declineAll string

func (d declineAll) Intercept(invocation.ParsedCommand, string) (bool, string) {
	return false, string(d)
}

func (s *shim) policy() invocation.Policy {
	p := s.settings.Policy
	if len(p.Rules) == 0 && p.Default != config.EffectDelegate {
		return nil
	}
	engine, err := policy.New(p)
	if err != nil {
		s.logger.Warn("interception policy unusable, delegating everything", "error", err)
		return declineAll("error:policy")
	}
	return engine
}

func (s *shim) fatal(err error) int {
	fmt.Fprintf(s.stderr, "%s: %v\n", Name, err)
	s.logger.Error("fatal", "error", err)
	return 1
}
