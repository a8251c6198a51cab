// Package sandbox turns the runtime's permission flags into a bubblewrap
// (bwrap) invocation and builds the command that runs an application's exec
// string inside it.
//
// Only the flags the runtime itself understands are translated:
// --allow-net shares the network namespace, --allow-read=a,b and
// --allow-write=a,b become read-only and read-write bind mounts. Everything
// else about the sandbox is fixed.
package sandbox

// Mode is the access mode of a bind mount.
type Mode string

const (
	ReadOnly  Mode = "ro"
	ReadWrite Mode = "rw"
)

// Flag returns the bwrap option that binds with this mode.
func (m Mode) Flag() string {
	if m == ReadWrite {
		return "--bind"
	}
	return "--ro-bind"
}

// Mount binds Path at the same location inside the sandbox.
type Mount struct {
	Mode Mode
	Path string
}

// Spec is a synthesized sandbox. Mounts are grouped so that Args can keep
// the network switch between the system and network mounts.
type Spec struct {
	System   []Mount
	ShareNet bool
	Network  []Mount
	Grants   []Mount
}

// baselineArgs isolate PIDs and the session, tie the sandbox to the shim's
// lifetime and provide /proc, /dev and the /lib64 compatibility link.
var baselineArgs = []string{
	"--die-with-parent",
	"--unshare-pid",
	"--new-session",
	"--proc", "/proc",
	"--dev", "/dev",
	"--symlink", "usr/lib64", "/lib64",
}

// Mounts returns all mounts in emission order.
func (s Spec) Mounts() []Mount {
	out := make([]Mount, 0, len(s.System)+len(s.Network)+len(s.Grants))
	out = append(out, s.System...)
	out = append(out, s.Network...)
	out = append(out, s.Grants...)
	return out
}

// Args renders the spec as bwrap options, without the command separator.
func (s Spec) Args() []string {
	args := make([]string, 0, len(baselineArgs)+1+3*(len(s.System)+len(s.Network)+len(s.Grants)))
	args = append(args, baselineArgs...)
	args = appendMounts(args, s.System)
	if s.ShareNet {
		args = append(args, "--share-net")
		args = appendMounts(args, s.Network)
	}
	return appendMounts(args, s.Grants)
}

func appendMounts(args []string, mounts []Mount) []string {
	for _, m := range mounts {
		args = append(args, m.Mode.Flag(), m.Path, m.Path)
	}
	return args
}
