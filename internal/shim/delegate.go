package shim

import (
	"errors"
	"fmt"
	"strings"

	"github.com/VikingOwl91/smallweb-shim/internal/fileid"
	"github.com/VikingOwl91/smallweb-shim/internal/invocation"
	"github.com/VikingOwl91/smallweb-shim/internal/searchpath"
	"github.com/VikingOwl91/smallweb-shim/internal/supervisor"
	"github.com/VikingOwl91/smallweb-shim/internal/supply"
)

var errResolvesToSelf = errors.New("resolves to the shim itself")

func (s *shim) delegate(d invocation.Delegate, self string) int {
	pathVar := s.opts.Path
	if d.Sanitized {
		pathVar = d.Path
	}

	result, pathVar, err := s.resolveRuntime(pathVar, self)
	if err != nil {
		return s.fatal(fmt.Errorf("%w: running %s: %w", supervisor.ErrSpawn, s.settings.Runtime, err))
	}

	argv := append([]string{s.settings.Runtime}, s.opts.Args[1:]...)
	env := withPath(s.opts.Environ, pathVar)
	s.logger.Debug("executing real runtime", "path", result.Path, "resolved", result.ResolvedPath, "argv", argv)

	if err := s.opts.Exec(result.Path, argv, env); err != nil {
		return s.fatal(fmt.Errorf("%w: exec %s: %w", supervisor.ErrSpawn, result.Path, err))
	}
	return 0
}

// resolveRuntime finds and verifies the real runtime. If the first match is
// the shim, the shim's directory is dropped from the search path and the
// lookup repeated once.
func (s *shim) resolveRuntime(pathVar, self string) (*supply.VerifyResult, string, error) {
	pin := supply.Pin{
		Hash:         s.settings.Supply.Hash,
		AllowedPaths: s.settings.Supply.AllowedPaths,
	}
	runtime := s.settings.Runtime

	result, err := supply.Verify(runtime, pathVar, pin)
	if err != nil || !fileid.Same(result.ResolvedPath, self) {
		return result, pathVar, err
	}

	sanitized, removed := searchpath.Sanitize(pathVar, self)
	if len(removed) == 0 {
		return nil, pathVar, fmt.Errorf("%s %w", result.Path, errResolvesToSelf)
	}
	s.logger.Debug("runtime resolved to shim, retrying", "removed", removed)

	result, err = supply.Verify(runtime, sanitized, pin)
	if err != nil {
		return nil, sanitized, err
	}
	if fileid.Same(result.ResolvedPath, self) {
		return nil, sanitized, fmt.Errorf("%s %w", result.Path, errResolvesToSelf)
	}
	return result, sanitized, nil
}

// withPath returns env with PATH set to pathVar.
func withPath(env []string, pathVar string) []string {
	out := make([]string, 0, len(env)+1)
	for _, e := range env {
		if strings.HasPrefix(e, "PATH=") {
			continue
		}
		out = append(out, e)
	}
	return append(out, "PATH="+pathVar)
}
