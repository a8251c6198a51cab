// Package supervisor launches an application child process and waits for it
// to start listening on its port, watching for early exit and enforcing a
// startup deadline.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"
)

const (
	DefaultPollInterval = 100 * time.Millisecond
	DefaultTimeout      = 30 * time.Second
)

var (
	// ErrSpawn wraps failures to start the child.
	ErrSpawn = errors.New("spawn failed")
	// ErrTimeout is returned when the port never became ready in time.
	ErrTimeout = errors.New("timed out waiting for application to listen")
)

// State is a position in the supervision lifecycle.
type State int

const (
	Spawning State = iota
	Polling
	Ready
	ChildExited
	TimedOut
)

func (s State) String() string {
	switch s {
	case Spawning:
		return "spawning"
	case Polling:
		return "polling"
	case Ready:
		return "ready"
	case ChildExited:
		return "child-exited"
	case TimedOut:
		return "timed-out"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Probe reports whether a TCP port is being listened on.
type Probe interface {
	IsListening(ctx context.Context, port uint16) bool
}

// ProbeFunc adapts a function to Probe.
type ProbeFunc func(ctx context.Context, port uint16) bool

func (f ProbeFunc) IsListening(ctx context.Context, port uint16) bool {
	return f(ctx, port)
}

// Supervisor drives one child through Spawning, Polling and a terminal state.
type Supervisor struct {
	probe    Probe
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration
	signals  <-chan os.Signal
	onReady  func(port uint16)
	onState  func(State)
}

// Option configures a Supervisor.
type Option func(*Supervisor)

func WithLogger(l *slog.Logger) Option {
	return func(s *Supervisor) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithInterval(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithSignals relays every signal received on ch to the child.
func WithSignals(ch <-chan os.Signal) Option {
	return func(s *Supervisor) {
		s.signals = ch
	}
}

// WithReadyFunc is called once when the port is first seen listening.
func WithReadyFunc(fn func(port uint16)) Option {
	return func(s *Supervisor) {
		s.onReady = fn
	}
}

// WithStateFunc observes every state transition.
func WithStateFunc(fn func(State)) Option {
	return func(s *Supervisor) {
		s.onState = fn
	}
}

// New creates a Supervisor that checks readiness with probe.
func New(probe Probe, opts ...Option) *Supervisor {
	s := &Supervisor{
		probe:    probe,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		interval: DefaultPollInterval,
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Supervisor) enter(st State) {
	s.logger.Debug("supervisor state", "state", st.String())
	if s.onState != nil {
		s.onState(st)
	}
}

// Run starts cmd and supervises it until it exits or misses the readiness
// deadline. A nil return means the child exited 0; a non-zero exit is an
// *ExitError. On timeout or context cancellation the child is killed and
// reaped before Run returns.
func (s *Supervisor) Run(ctx context.Context, cmd *exec.Cmd, port uint16) error {
	s.enter(Spawning)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %w", ErrSpawn, err)
	}
	s.logger.Debug("child started", "pid", cmd.Process.Pid, "port", port)

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	s.enter(Polling)
	expiry := time.Now().Add(s.timeout)
	// The probe shares the readiness deadline so a hung socket listing
	// cannot outlive it.
	probeCtx, cancel := context.WithDeadline(ctx, expiry)
	defer cancel()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	deadline := time.NewTimer(time.Until(expiry))
	defer deadline.Stop()

	for {
		select {
		case err := <-done:
			s.enter(ChildExited)
			return exitResult(err)

		case <-ticker.C:
			// Child exit takes precedence over a port that is already open.
			if exited, err := exitedNow(done); exited {
				s.enter(ChildExited)
				return exitResult(err)
			}
			listening := s.probe.IsListening(probeCtx, port)
			if exited, err := exitedNow(done); exited {
				s.enter(ChildExited)
				return exitResult(err)
			}
			if listening {
				s.enter(Ready)
				s.logger.Info("application ready", "port", port, "pid", cmd.Process.Pid)
				if s.onReady != nil {
					s.onReady(port)
				}
				return s.wait(ctx, cmd, done)
			}
			if ctx.Err() != nil {
				s.kill(cmd, done)
				return ctx.Err()
			}
			if !time.Now().Before(expiry) {
				return s.expire(cmd, done, port)
			}

		case <-deadline.C:
			return s.expire(cmd, done, port)

		case sig := <-s.signals:
			s.relay(cmd, sig)

		case <-ctx.Done():
			s.kill(cmd, done)
			return ctx.Err()
		}
	}
}

// exitedNow reports a child exit that has already been observed, without
// blocking.
func exitedNow(done <-chan error) (bool, error) {
	select {
	case err := <-done:
		return true, err
	default:
		return false, nil
	}
}

// expire handles the readiness deadline. A child that exited at the same
// moment is reported as exited, not timed out.
func (s *Supervisor) expire(cmd *exec.Cmd, done <-chan error, port uint16) error {
	if exited, err := exitedNow(done); exited {
		s.enter(ChildExited)
		return exitResult(err)
	}
	s.enter(TimedOut)
	s.logger.Warn("application did not listen in time, killing", "port", port, "timeout", s.timeout)
	s.kill(cmd, done)
	return ErrTimeout
}

// wait blocks until the child exits, relaying signals meanwhile.
func (s *Supervisor) wait(ctx context.Context, cmd *exec.Cmd, done <-chan error) error {
	for {
		select {
		case err := <-done:
			return exitResult(err)
		case sig := <-s.signals:
			s.relay(cmd, sig)
		case <-ctx.Done():
			s.kill(cmd, done)
			return ctx.Err()
		}
	}
}

func (s *Supervisor) relay(cmd *exec.Cmd, sig os.Signal) {
	s.logger.Debug("relaying signal", "signal", sig.String())
	if err := cmd.Process.Signal(sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
		s.logger.Warn("relaying signal failed", "signal", sig.String(), "error", err)
	}
}

func (s *Supervisor) kill(cmd *exec.Cmd, done <-chan error) {
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		s.logger.Warn("killing child failed", "error", err)
	}
	<-done
}

// exitResult maps the result of cmd.Wait. Termination by a signal is
// reported as exit code 1.
func exitResult(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		if code < 0 {
			code = 1
		}
		return &ExitError{Code: code}
	}
	return err
}
