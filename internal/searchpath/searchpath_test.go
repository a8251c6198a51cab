//go:build unix

package searchpath

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// shimLayout creates <tmp>/shim/deno and returns (tmp, shimDir, selfPath).
func shimLayout(t *testing.T) (string, string, string) {
	t.Helper()
	root := t.TempDir()
	shimDir := filepath.Join(root, "shim")
	require.NoError(t, os.Mkdir(shimDir, 0o755))
	self := filepath.Join(shimDir, "deno")
	require.NoError(t, os.WriteFile(self, []byte("#!/bin/sh\n"), 0o755))
	return root, shimDir, self
}

func TestSanitize_RemovesOwnDir(t *testing.T) {
	_, shimDir, self := shimLayout(t)

	got, removed := Sanitize(shimDir+":/usr/bin:/bin", self)
	assert.Equal(t, "/usr/bin:/bin", got)
	assert.Equal(t, []string{shimDir}, removed)
}

func TestSanitize_RemovesEveryOccurrence(t *testing.T) {
	_, shimDir, self := shimLayout(t)

	got, removed := Sanitize("/usr/bin:"+shimDir+":/bin:"+shimDir+"/", self)
	assert.Equal(t, "/usr/bin:/bin", got)
	assert.Len(t, removed, 2)
}

func TestSanitize_SymlinkSpelling(t *testing.T) {
	root, shimDir, self := shimLayout(t)
	link := filepath.Join(root, "alias")
	require.NoError(t, os.Symlink(shimDir, link))

	got, removed := Sanitize(link+":/usr/bin", self)
	assert.Equal(t, "/usr/bin", got)
	assert.Equal(t, []string{link}, removed)
}

func TestSanitize_RelativeSpelling(t *testing.T) {
	root, _, self := shimLayout(t)
	t.Chdir(root)

	got, _ := Sanitize("./shim:/usr/bin", self)
	assert.Equal(t, "/usr/bin", got)
}

func TestSanitize_MissingEntriesKept(t *testing.T) {
	_, shimDir, self := shimLayout(t)
	pathVar := "/does/not/exist::" + shimDir + ":/usr/bin"

	got, _ := Sanitize(pathVar, self)
	assert.Equal(t, "/does/not/exist::/usr/bin", got)
}

func TestSanitize_NothingToRemove(t *testing.T) {
	_, _, self := shimLayout(t)

	got, removed := Sanitize("/usr/bin:/bin", self)
	assert.Equal(t, "/usr/bin:/bin", got)
	assert.Empty(t, removed)
}

func TestSanitize_UnresolvableSelf(t *testing.T) {
	got, removed := Sanitize("/usr/bin:/bin", "/nonexistent-shim-dir/deno")
	assert.Equal(t, "/usr/bin:/bin", got)
	assert.Empty(t, removed)
}

func TestSanitize_Idempotent(t *testing.T) {
	root, shimDir, self := shimLayout(t)
	link := filepath.Join(root, "alias")
	require.NoError(t, os.Symlink(shimDir, link))

	inputs := []string{
		"",
		shimDir,
		shimDir + ":" + link,
		"/usr/bin:" + shimDir + "::/bin",
		strings.Join([]string{link, "/nope", shimDir + "/", "/usr/local/bin"}, ":"),
	}
	for _, in := range inputs {
		once, _ := Sanitize(in, self)
		twice, removed := Sanitize(once, self)
		assert.Equal(t, once, twice, "input %q", in)
		assert.Empty(t, removed, "input %q", in)
	}
}
