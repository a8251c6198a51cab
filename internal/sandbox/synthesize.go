package sandbox

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/VikingOwl91/smallweb-shim/internal/fileid"
)

// Runtime permission flags translated into mounts.
const (
	AllowNetFlag   = "--allow-net"
	allowReadFlag  = "--allow-read="
	allowWriteFlag = "--allow-write="
)

var (
	// SystemDirs hold the shell and shared libraries the exec string needs.
	SystemDirs = []string{"/bin", "/usr", "/lib"}
	// NetworkPaths provide DNS resolution and TLS trust roots.
	NetworkPaths = []string{"/etc/resolv.conf", "/etc/ssl"}
)

// Synthesizer builds Specs from invocation arguments.
type Synthesizer struct {
	logger *slog.Logger
}

// NewSynthesizer returns a Synthesizer logging skipped mounts to logger
// (nil discards).
func NewSynthesizer(logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Synthesizer{logger: logger}
}

// Synthesize is shorthand for NewSynthesizer(nil).Synthesize.
func Synthesize(args []string, selfPath string) Spec {
	return NewSynthesizer(nil).Synthesize(args, selfPath)
}

// Synthesize derives the sandbox for an invocation. Paths that do not exist
// and paths that are the shim binary itself (by device and inode) are left
// out. Read grants come before write grants, each in argument order.
func (s *Synthesizer) Synthesize(args []string, selfPath string) Spec {
	own, ownErr := fileid.Of(selfPath)
	b := builder{synth: s, own: own, haveOwn: ownErr == nil}

	var spec Spec
	spec.System = b.mounts(SystemDirs, ReadOnly)

	for _, arg := range args {
		if arg == AllowNetFlag {
			spec.ShareNet = true
			break
		}
	}
	if spec.ShareNet {
		spec.Network = b.mounts(NetworkPaths, ReadOnly)
	}

	spec.Grants = append(spec.Grants, b.mounts(grantPaths(args, allowReadFlag), ReadOnly)...)
	spec.Grants = append(spec.Grants, b.mounts(grantPaths(args, allowWriteFlag), ReadWrite)...)
	return spec
}

// grantPaths collects the comma separated, non-empty paths of every
// argument starting with prefix.
func grantPaths(args []string, prefix string) []string {
	var paths []string
	for _, arg := range args {
		list, ok := strings.CutPrefix(arg, prefix)
		if !ok {
			continue
		}
		for _, p := range strings.Split(list, ",") {
			if p != "" {
				paths = append(paths, p)
			}
		}
	}
	return paths
}

type builder struct {
	synth   *Synthesizer
	own     fileid.ID
	haveOwn bool
}

func (b builder) mounts(paths []string, mode Mode) []Mount {
	var out []Mount
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			b.synth.logger.Debug("skipping bind mount for missing path", "path", p)
			continue
		}
		if b.haveOwn {
			if id, err := fileid.Of(p); err == nil && id == b.own {
				b.synth.logger.Debug("skipping bind mount for own path", "path", p)
				continue
			}
		}
		out = append(out, Mount{Mode: mode, Path: p})
	}
	return out
}
