package process

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anyawal/corerun/configs"
	"github.com/anyawal/corerun/namespaces"
)

func TestPidFlagSplitFromCloneFlags(t *testing.T) {
	list := configs.Namespaces{
		{Type: configs.NEWPID},
		{Type: configs.NEWNS},
		{Type: configs.NEWUSER},
	}
	all := namespaces.CloneFlags(namespaces.Ordered(list))
	pidFlag := all & syscall.CLONE_NEWPID
	rest := all &^ syscall.CLONE_NEWPID

	require.NotZero(t, pidFlag)
	require.Zero(t, rest&syscall.CLONE_NEWPID)
	require.NotZero(t, rest&syscall.CLONE_NEWNS)
	require.NotZero(t, rest&syscall.CLONE_NEWUSER)
}

func TestLookPathFindsExecutableInPath(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "mytool")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755))

	got, err := lookPath("mytool", []string{"PATH=" + dir})
	require.NoError(t, err)
	require.Equal(t, bin, got)
}

func TestLookPathRejectsMissingBinary(t *testing.T) {
	_, err := lookPath("no-such-binary-anywhere", []string{"PATH=" + t.TempDir()})
	require.Error(t, err)
}

func TestLookPathPassesThroughAbsolutePath(t *testing.T) {
	got, err := lookPath("/bin/true", nil)
	require.NoError(t, err)
	require.Equal(t, "/bin/true", got)
}
