package corerun

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anyawal/corerun/configs"
)

func TestNewFactoryOpensStateRoot(t *testing.T) {
	root := t.TempDir() + "/state"
	f, err := NewFactory(root, false)
	require.NoError(t, err)
	require.Equal(t, root, f.Root)
	require.NotNil(t, f.Store)
	require.NotNil(t, f.Validator)
}

func TestLoadUnknownIDReturnsNotFound(t *testing.T) {
	f, err := NewFactory(t.TempDir(), false)
	require.NoError(t, err)

	_, err = f.Load("does-not-exist")
	require.Error(t, err)
	cerr, ok := err.(*Error)
	require.True(t, ok)
	require.Equal(t, NotFound, cerr.Kind)
}

func TestListEmptyStateRoot(t *testing.T) {
	f, err := NewFactory(t.TempDir(), false)
	require.NoError(t, err)

	ids, err := f.List()
	require.NoError(t, err)
	require.Empty(t, ids)
}

func TestNewIDIsUnique(t *testing.T) {
	a, b := NewID(), NewID()
	require.NotEqual(t, a, b)
	require.NotEmpty(t, a)
}

func TestNewCgroupManagerDefaultsPathToID(t *testing.T) {
	f, err := NewFactory(t.TempDir(), false)
	require.NoError(t, err)

	_, path, err := f.newCgroupManager("c1", &configs.Linux{})
	require.NoError(t, err)
	require.Contains(t, path, "c1")
}

func TestNewCgroupManagerHonorsExplicitPath(t *testing.T) {
	f, err := NewFactory(t.TempDir(), false)
	require.NoError(t, err)

	_, path, err := f.newCgroupManager("c1", &configs.Linux{CgroupsPath: "custom/slice"})
	require.NoError(t, err)
	require.Equal(t, "custom/slice", path)
}
