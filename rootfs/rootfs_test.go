package rootfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anyawal/corerun/configs"
	"github.com/anyawal/corerun/system"
)

func TestResolveDestConfinesEscapingSymlink(t *testing.T) {
	rootfs := t.TempDir()
	require.NoError(t, os.Symlink("/etc", filepath.Join(rootfs, "escape")))

	dest, err := resolveDest(rootfs, "/escape/passwd")
	require.NoError(t, err)
	require.True(t, filepath.HasPrefix(dest, rootfs), "resolved dest %q must stay under rootfs %q", dest, rootfs)
}

func TestBindMountMissingSourceFails(t *testing.T) {
	rootfs := t.TempDir()
	p := &Preparer{Sys: &system.Fake{}}
	err := p.bindMount(filepath.Join(rootfs, "dst"), configs.Mount{Source: filepath.Join(rootfs, "does-not-exist")})
	require.Error(t, err)
}

func TestSetupPtmxSymlinks(t *testing.T) {
	rootfs := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(rootfs, "dev"), 0o755))
	fake := &system.Fake{}
	p := &Preparer{Sys: fake}
	require.NoError(t, p.setupPtmx(rootfs))
}

func TestPivotUsesSyscaller(t *testing.T) {
	rootfs := t.TempDir()
	fake := &system.Fake{}
	p := &Preparer{Sys: fake}
	require.NoError(t, p.pivot(rootfs))
	require.Equal(t, rootfs, fake.PivotedTo)
	require.Equal(t, "/", fake.Chdired)
}

func TestCreateDevicesDefaults(t *testing.T) {
	rootfs := t.TempDir()
	fake := &system.Fake{}
	p := &Preparer{Sys: fake}
	require.NoError(t, p.createDevices(rootfs, &configs.Config{}))
	_, err := os.Stat(filepath.Join(rootfs, "dev"))
	require.NoError(t, err)
}

func TestCreateDevicesBindsFromHostWithoutMknodCapability(t *testing.T) {
	rootfs := t.TempDir()
	fake := &system.Fake{}
	p := &Preparer{Sys: fake}
	cfg := &configs.Config{
		Linux: configs.Linux{
			Namespaces: configs.Namespaces{{Type: configs.NEWUSER}},
		},
	}
	require.NoError(t, p.createDevices(rootfs, cfg))
	require.NotEmpty(t, fake.Mounts)
	require.Equal(t, "/dev/null", fake.Mounts[0].Source)
}

func TestHasMknodTrueOutsideUserNamespace(t *testing.T) {
	require.True(t, hasMknod(&configs.Config{}))
}

func TestHasMknodFalseInUserNamespaceWithoutCapability(t *testing.T) {
	cfg := &configs.Config{Linux: configs.Linux{Namespaces: configs.Namespaces{{Type: configs.NEWUSER}}}}
	require.False(t, hasMknod(cfg))
}

func TestHasMknodTrueInUserNamespaceWithCapability(t *testing.T) {
	cfg := &configs.Config{
		Linux: configs.Linux{
			Namespaces: configs.Namespaces{{Type: configs.NEWUSER}},
		},
		Process: configs.Process{Capabilities: &configs.Capabilities{Bounding: []string{"CAP_MKNOD"}}},
	}
	require.True(t, hasMknod(cfg))
}
