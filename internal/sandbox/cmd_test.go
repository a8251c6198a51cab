package sandbox

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLaunch_ArgvFormat(t *testing.T) {
	l := Launch{
		Helper: "/usr/bin/bwrap",
		Spec:   Spec{System: []Mount{{Mode: ReadOnly, Path: "/usr"}}},
		Script: "/tmp/smallweb-shim-1.sh",
	}

	argv := l.Argv()
	assert.Equal(t, "/usr/bin/bwrap", argv[0])
	assert.Equal(t, []string{
		"--ro-bind", "/usr", "/usr",
		"--ro-bind", "/tmp/smallweb-shim-1.sh", "/tmp/smallweb-shim-1.sh",
		"--", "/bin/sh", "/tmp/smallweb-shim-1.sh",
	}, argv[1+len(baselineArgs):])
}

func TestLaunch_CustomShell(t *testing.T) {
	l := Launch{Helper: "bwrap", Script: "/s.sh", Shell: "/bin/bash"}
	argv := l.Argv()
	assert.Equal(t, []string{"--", "/bin/bash", "/s.sh"}, argv[len(argv)-3:])
}

func TestCommand_Fields(t *testing.T) {
	cmd, err := Command(context.Background(), Launch{
		Helper: "/usr/bin/bwrap",
		Script: "/tmp/x.sh",
		Dir:    "/srv/app",
		Env:    []string{"PORT=8000"},
	})
	require.NoError(t, err)

	assert.Equal(t, "/usr/bin/bwrap", cmd.Path)
	assert.Equal(t, "/usr/bin/bwrap", cmd.Args[0])
	assert.Equal(t, "/srv/app", cmd.Dir)
	assert.Equal(t, []string{"PORT=8000"}, cmd.Env)
	assert.Equal(t, os.Stdout, cmd.Stdout)
}

func TestCommand_ParentDeathSignal(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("Pdeathsig only on Linux")
	}
	cmd, err := Command(context.Background(), Launch{Helper: "/usr/bin/bwrap", Script: "/tmp/x.sh"})
	require.NoError(t, err)
	require.NotNil(t, cmd.SysProcAttr)
}

func TestCommand_RequiresHelperAndScript(t *testing.T) {
	_, err := Command(context.Background(), Launch{Script: "/x.sh"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "helper")

	_, err = Command(context.Background(), Launch{Helper: "/usr/bin/bwrap"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "script")
}

func TestHelperPath_Override(t *testing.T) {
	bin := filepath.Join(t.TempDir(), "bwrap")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755))

	got, err := HelperPath(bin)
	require.NoError(t, err)
	assert.Equal(t, bin, got)
}

func TestHelperPath_MissingOverride(t *testing.T) {
	_, err := HelperPath("/nonexistent/bwrap")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/nonexistent/bwrap")
}

func TestWriteScript(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteScript(dir, "echo $PORT")
	require.NoError(t, err)

	assert.Equal(t, dir, filepath.Dir(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/sh\necho $PORT\n", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())
}

func TestWriteScript_BadDir(t *testing.T) {
	_, err := WriteScript(filepath.Join(t.TempDir(), "missing"), "true")
	require.Error(t, err)
}
