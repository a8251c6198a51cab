// Package netstat answers "is anything listening on this TCP port" by
// reading the output of the system socket listing tools.
package netstat

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
)

// Tool is a socket listing command.
type Tool struct {
	Name string
	Args []string
}

// DefaultTools are tried in order until one can be run.
var DefaultTools = []Tool{
	{Name: "netstat", Args: []string{"-tln"}},
	{Name: "ss", Args: []string{"-tln"}},
}

// Runner executes a tool and returns its standard output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Prober checks listening sockets.
type Prober struct {
	logger *slog.Logger
	tools  []Tool
	run    Runner
}

// Option configures a Prober.
type Option func(*Prober)

// WithTools replaces DefaultTools.
func WithTools(tools ...Tool) Option {
	return func(p *Prober) {
		p.tools = tools
	}
}

// WithRunner replaces process execution, for tests.
func WithRunner(r Runner) Option {
	return func(p *Prober) {
		p.run = r
	}
}

// New returns a Prober logging to logger (nil discards).
func New(logger *slog.Logger, opts ...Option) *Prober {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	p := &Prober{
		logger: logger,
		tools:  DefaultTools,
		run:    execRunner,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// IsListening reports whether port shows up as listening. A tool that
// cannot be run, or exits non-zero without output, is skipped. Not being
// able to run any tool counts as not listening.
func (p *Prober) IsListening(ctx context.Context, port uint16) bool {
	for _, tool := range p.tools {
		out, err := p.run(ctx, tool.Name, tool.Args...)
		if err != nil {
			var exitErr *exec.ExitError
			if !errors.As(err, &exitErr) {
				p.logger.Debug("socket listing failed", "tool", tool.Name, "error", err)
				continue
			}
			// A non-zero exit can still print a usable table.
			if len(bytes.TrimSpace(out)) == 0 {
				p.logger.Debug("socket listing exited non-zero without output", "tool", tool.Name, "error", err)
				continue
			}
			p.logger.Debug("socket listing exited non-zero", "tool", tool.Name, "error", err)
		}

		listening := Listening(out, port)
		p.logger.Debug("checked port", "tool", tool.Name, "port", port, "listening", listening)
		return listening
	}
	return false
}

// Listening reports whether any line of a socket table mentions ":port "
// together with a LISTEN state.
func Listening(table []byte, port uint16) bool {
	needle := ":" + strconv.Itoa(int(port)) + " "
	sc := bufio.NewScanner(bytes.NewReader(table))
	for sc.Scan() {
		line := sc.Text()
		if strings.Contains(line, needle) && strings.Contains(line, "LISTEN") {
			return true
		}
	}
	return false
}
