package system

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFakeMountRecordsCall(t *testing.T) {
	f := &Fake{}
	require.NoError(t, f.Mount("proc", "/rootfs/proc", "proc", 0, ""))
	require.Len(t, f.Mounts, 1)
	require.Equal(t, "/rootfs/proc", f.Mounts[0].Target)
}

func TestFakeInjectsFailure(t *testing.T) {
	f := &Fake{FailOn: "pivot_root"}
	err := f.PivotRoot("/new", "/new/.old")
	require.Error(t, err)
}

func TestFakeUnshareAccumulatesFlags(t *testing.T) {
	f := &Fake{}
	require.NoError(t, f.Unshare(1))
	require.NoError(t, f.Unshare(2))
	require.Equal(t, 3, f.Unshared)
}
