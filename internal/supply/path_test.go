package supply

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeBin(t *testing.T, dir, name string, mode os.FileMode) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte("#!/bin/sh\n"), mode))
	return p
}

func TestLookup_FirstMatchWins(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	writeBin(t, a, "deno", 0o755)
	writeBin(t, b, "deno", 0o755)

	found, err := Lookup("deno", a+string(os.PathListSeparator)+b)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(a, "deno"), found)
}

func TestLookup_SkipsNonExecutable(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	writeBin(t, a, "deno", 0o644)
	writeBin(t, b, "deno", 0o755)

	found, err := Lookup("deno", a+string(os.PathListSeparator)+b)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(b, "deno"), found)
}

func TestLookup_SkipsDirectories(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(a, "deno"), 0o755))
	writeBin(t, b, "deno", 0o755)

	found, err := Lookup("deno", a+string(os.PathListSeparator)+b)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(b, "deno"), found)
}

func TestLookup_IgnoresEmptyEntries(t *testing.T) {
	t.Chdir(t.TempDir())
	writeBin(t, ".", "deno", 0o755)

	_, err := Lookup("deno", string(os.PathListSeparator))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLookup_NotFound(t *testing.T) {
	_, err := Lookup("nonexistent-binary-that-does-not-exist-12345", t.TempDir())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLookup_PathWithSeparator(t *testing.T) {
	bin := writeBin(t, t.TempDir(), "mybin", 0o755)

	found, err := Lookup(bin, "")
	require.NoError(t, err)
	assert.Equal(t, bin, found)

	_, err = Lookup(bin+"-missing", "")
	require.Error(t, err)
}

func TestLookup_Empty(t *testing.T) {
	_, err := Lookup("", "/usr/bin")
	require.Error(t, err)
}

func TestResolvePath_SymlinkFollowed(t *testing.T) {
	dir := t.TempDir()
	target := writeBin(t, dir, "target", 0o755)
	link := filepath.Join(dir, "deno")
	require.NoError(t, os.Symlink(target, link))

	resolved, err := ResolvePath("deno", dir)
	require.NoError(t, err)
	assert.Equal(t, target, resolved)
}

func TestValidatePath_InAllowlist(t *testing.T) {
	err := ValidatePath("/usr/local/bin/deno", []string{"/usr/local/bin"})
	require.NoError(t, err)
}

func TestValidatePath_OutsideAllowlist(t *testing.T) {
	err := ValidatePath("/opt/evil/deno", []string{"/usr/local/bin", "/usr/bin"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not under any allowed path")
}

func TestValidatePath_EmptyAllowlist(t *testing.T) {
	require.NoError(t, ValidatePath("/anywhere/is/fine", nil))
	require.NoError(t, ValidatePath("/anywhere/is/fine", []string{}))
}

func TestValidatePath_ExactMatch(t *testing.T) {
	require.NoError(t, ValidatePath("/usr/local/bin", []string{"/usr/local/bin"}))
}

func TestValidatePath_TrailingSlash(t *testing.T) {
	require.NoError(t, ValidatePath("/usr/local/bin/deno", []string{"/usr/local/bin/"}))
}

func TestValidatePath_TraversalPrevented(t *testing.T) {
	// Shares a string prefix but is not under the directory.
	err := ValidatePath("/usr/local/bin-evil/hack", []string{"/usr/local/bin"})
	require.Error(t, err)
}

func TestValidatePath_TildeExpansion(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	resolved := filepath.Join(home, ".deno", "bin", "deno")
	require.NoError(t, ValidatePath(resolved, []string{"~/.deno/bin"}))
}
