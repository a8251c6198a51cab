//go:build unix

package sandbox

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hasTriple reports whether args contains flag, path, path consecutively.
func hasTriple(args []string, flag, path string) bool {
	for i := 0; i+2 < len(args); i++ {
		if args[i] == flag && args[i+1] == path && args[i+2] == path {
			return true
		}
	}
	return false
}

func indexOfTriple(args []string, flag, path string) int {
	for i := 0; i+2 < len(args); i++ {
		if args[i] == flag && args[i+1] == path && args[i+2] == path {
			return i
		}
	}
	return -1
}

func mkdir(t *testing.T, parent, name string) string {
	t.Helper()
	p := filepath.Join(parent, name)
	require.NoError(t, os.Mkdir(p, 0o755))
	return p
}

func TestSynthesize_Baseline(t *testing.T) {
	args := Synthesize(nil, "/fake/deno").Args()

	assert.Equal(t, baselineArgs, args[:len(baselineArgs)])
	assert.Contains(t, args, "--die-with-parent")
	assert.Contains(t, args, "--unshare-pid")
	assert.Contains(t, args, "--new-session")
	assert.True(t, hasTriple(args, "--ro-bind", "/bin"))
	assert.True(t, hasTriple(args, "--ro-bind", "/usr"))
	assert.NotContains(t, args, "--share-net")
}

func TestSynthesize_AllowNet(t *testing.T) {
	spec := Synthesize([]string{"run", AllowNetFlag}, "/fake/deno")
	args := spec.Args()

	assert.True(t, spec.ShareNet)
	assert.Contains(t, args, "--share-net")
	if _, err := os.Stat("/etc/resolv.conf"); err == nil {
		assert.True(t, hasTriple(args, "--ro-bind", "/etc/resolv.conf"))
	}
}

func TestSynthesize_AllowNetPrefixIsNotNet(t *testing.T) {
	spec := Synthesize([]string{"--allow-net=example.com"}, "/fake/deno")
	assert.False(t, spec.ShareNet)
	assert.Empty(t, spec.Network)
}

func TestSynthesize_AllowRead(t *testing.T) {
	dir := t.TempDir()
	user := mkdir(t, dir, "user")

	args := Synthesize([]string{"--allow-read=" + user + ",/tmp"}, "/fake/deno").Args()
	assert.True(t, hasTriple(args, "--ro-bind", user))
	assert.True(t, hasTriple(args, "--ro-bind", "/tmp"))
}

func TestSynthesize_AllowReadMissingSkipped(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "non_existent")

	spec := Synthesize([]string{"--allow-read=" + missing, "--allow-write=" + missing}, "/fake/deno")
	for _, m := range spec.Mounts() {
		assert.NotEqual(t, missing, m.Path)
	}
}

func TestSynthesize_EmptyEntriesSkipped(t *testing.T) {
	dir := t.TempDir()
	data := mkdir(t, dir, "data")

	spec := Synthesize([]string{"--allow-write=," + data + ",,"}, "/fake/deno")
	assert.Equal(t, []Mount{{Mode: ReadWrite, Path: data}}, spec.Grants)
}

func TestSynthesize_AllowWrite(t *testing.T) {
	data := mkdir(t, t.TempDir(), "data")

	args := Synthesize([]string{"--allow-write=" + data}, "/fake/deno").Args()
	assert.True(t, hasTriple(args, "--bind", data))
	assert.False(t, hasTriple(args, "--ro-bind", data))
}

func TestSynthesize_Mixed(t *testing.T) {
	dir := t.TempDir()
	user := mkdir(t, dir, "user")
	data := mkdir(t, dir, "data")

	args := Synthesize([]string{
		AllowNetFlag,
		"--allow-read=" + user,
		"--allow-write=" + data,
	}, "/fake/deno").Args()

	assert.Contains(t, args, "--share-net")
	assert.True(t, hasTriple(args, "--ro-bind", user))
	assert.True(t, hasTriple(args, "--bind", data))
}

func TestSynthesize_Ordering(t *testing.T) {
	dir := t.TempDir()
	w1 := mkdir(t, dir, "w1")
	r1 := mkdir(t, dir, "r1")
	r2 := mkdir(t, dir, "r2")
	w2 := mkdir(t, dir, "w2")

	// Write grants appear first on the command line but are emitted after
	// all read grants.
	args := Synthesize([]string{
		"--allow-write=" + w1,
		"--allow-read=" + r1,
		AllowNetFlag,
		"--allow-write=" + w2,
		"--allow-read=" + r2,
	}, "/fake/deno").Args()

	positions := []int{
		indexOfTriple(args, "--ro-bind", "/usr"),
		slices.Index(args, "--share-net"),
		indexOfTriple(args, "--ro-bind", r1),
		indexOfTriple(args, "--ro-bind", r2),
		indexOfTriple(args, "--bind", w1),
		indexOfTriple(args, "--bind", w2),
	}
	for _, p := range positions {
		require.GreaterOrEqual(t, p, 0)
	}
	assert.True(t, slices.IsSorted(positions), "positions %v", positions)
}

func TestSynthesize_Deterministic(t *testing.T) {
	dir := t.TempDir()
	a := mkdir(t, dir, "a")
	b := mkdir(t, dir, "b")
	in := []string{AllowNetFlag, "--allow-read=" + a + "," + b, "--allow-write=" + b}

	assert.Equal(t, Synthesize(in, "/fake/deno").Args(), Synthesize(in, "/fake/deno").Args())
}

func TestSynthesize_FilterOwnPath(t *testing.T) {
	dir := t.TempDir()
	own := filepath.Join(dir, "deno")
	require.NoError(t, os.WriteFile(own, nil, 0o755))
	link := filepath.Join(dir, "deno-link")
	require.NoError(t, os.Symlink(own, link))
	data := mkdir(t, dir, "data")

	args := Synthesize([]string{
		"--allow-read=" + own + "," + link,
		"--allow-write=" + data + "," + own,
	}, own).Args()

	assert.False(t, hasTriple(args, "--ro-bind", own))
	assert.False(t, hasTriple(args, "--ro-bind", link))
	assert.False(t, hasTriple(args, "--bind", own))
	assert.True(t, hasTriple(args, "--bind", data))
}

func TestSynthesize_OwnDirStillBindable(t *testing.T) {
	dir := t.TempDir()
	own := filepath.Join(dir, "deno")
	require.NoError(t, os.WriteFile(own, nil, 0o755))

	args := Synthesize([]string{"--allow-read=" + dir}, own).Args()
	assert.True(t, hasTriple(args, "--ro-bind", dir))
}

func TestSynthesize_NeverBindsMissingOrSelf(t *testing.T) {
	dir := t.TempDir()
	own := filepath.Join(dir, "deno")
	require.NoError(t, os.WriteFile(own, nil, 0o755))
	present := mkdir(t, dir, "present")
	missing := filepath.Join(dir, "missing")

	spec := Synthesize([]string{
		AllowNetFlag,
		"--allow-read=" + missing + "," + own + "," + present,
		"--allow-write=" + missing + "," + present,
	}, own)

	for _, m := range spec.Mounts() {
		_, err := os.Stat(m.Path)
		assert.NoError(t, err, "mount %s must exist", m.Path)
		assert.NotEqual(t, own, m.Path)
	}
}

func TestMode_Flag(t *testing.T) {
	assert.Equal(t, "--ro-bind", ReadOnly.Flag())
	assert.Equal(t, "--bind", ReadWrite.Flag())
}
