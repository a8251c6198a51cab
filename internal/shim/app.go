package shim

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/VikingOwl91/smallweb-shim/internal/invocation"
	"github.com/VikingOwl91/smallweb-shim/internal/sandbox"
	"github.com/VikingOwl91/smallweb-shim/internal/supervisor"
)

func (s *shim) runApplication(ctx context.Context, a invocation.RunApplication, self string) int {
	port := a.Command.Port
	spec := sandbox.NewSynthesizer(s.logger).Synthesize(s.opts.Args[1:], self)

	helper, err := sandbox.HelperPath(s.settings.Sandbox.Helper)
	if err != nil {
		return s.fatal(fmt.Errorf("%w: %w", supervisor.ErrSpawn, err))
	}

	tmp := s.opts.TempDir
	if tmp == "" {
		tmp = os.TempDir()
	}
	script, err := sandbox.WriteScript(tmp, a.Config.Exec)
	if err != nil {
		return s.fatal(fmt.Errorf("%w: %w", supervisor.ErrSpawn, err))
	}
	defer func() {
		if err := os.Remove(script); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("removing launch script", "path", script, "error", err)
		}
	}()

	cmd, err := sandbox.Command(ctx, sandbox.Launch{
		Helper: helper,
		Spec:   spec,
		Script: script,
		Dir:    a.AppDir,
		Env:    sandbox.ChildEnv(s.opts.Environ, s.settings.Sandbox.EnvAllowlist, port),
	})
	if err != nil {
		return s.fatal(fmt.Errorf("%w: %w", supervisor.ErrSpawn, err))
	}
	s.logger.Debug("launching application", "argv", cmd.Args, "dir", cmd.Dir)

	opts := append([]supervisor.Option{
		supervisor.WithLogger(s.logger),
		supervisor.WithSignals(s.opts.Signals),
	}, s.opts.SupervisorOptions...)
	err = supervisor.New(s.opts.Probe, opts...).Run(ctx, cmd, port)

	if code, ok := supervisor.IsExitError(err); ok {
		s.logger.Debug("application exited", "code", code)
		return code
	}
	switch {
	case err == nil:
		return 0
	case errors.Is(err, supervisor.ErrTimeout):
		return s.fatal(fmt.Errorf("application in %s did not listen on port %d: %w", a.AppDir, port, err))
	default:
		return s.fatal(err)
	}
}
