package corerun

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/anyawal/corerun/configs"
	"github.com/anyawal/corerun/state"
)

func newTestContainer(t *testing.T, status state.Status, pid int) (*Factory, *Container) {
	t.Helper()
	f, err := NewFactory(t.TempDir(), false)
	require.NoError(t, err)

	st := &state.State{ID: "c1", Status: status, Pid: pid, Bundle: "/bundle", Created: time.Now()}
	require.NoError(t, f.Store.Create(st, []byte(`{"ociVersion":"1.0.2","process":{"args":["/bin/true"]}}`)))
	return f, &Container{factory: f, state: st}
}

func TestKillRejectsStoppedContainer(t *testing.T) {
	_, c := newTestContainer(t, state.Stopped, 0)
	err := c.Kill(1)
	require.Error(t, err)
	require.Equal(t, InvalidState, err.(*Error).Kind)
}

func TestDeleteRunningWithoutForceIsRejected(t *testing.T) {
	_, c := newTestContainer(t, state.Running, 999999)
	err := c.Delete(DeleteOptions{})
	require.Error(t, err)
	require.Equal(t, InvalidState, err.(*Error).Kind)
}

func TestStateTransitionsDeadInitToStopped(t *testing.T) {
	// A pid this large is never alive in the test sandbox's pid namespace.
	_, c := newTestContainer(t, state.Created, 999999)
	got, err := c.State()
	require.NoError(t, err)
	require.Equal(t, "stopped", string(got.Status))
}

func TestPauseRejectsNonRunningContainer(t *testing.T) {
	_, c := newTestContainer(t, state.Created, 0)
	err := c.Pause()
	require.Error(t, err)
	require.Equal(t, InvalidState, err.(*Error).Kind)
}

func TestStartRejectsNonCreatedContainer(t *testing.T) {
	_, c := newTestContainer(t, state.Running, 0)
	err := c.Start()
	require.Error(t, err)
	require.Equal(t, InvalidState, err.(*Error).Kind)
}

func TestCgroupLinuxOfToleratesMissingConfig(t *testing.T) {
	require.Equal(t, &configs.Linux{}, cgroupLinuxOf(nil))

	cfg := &configs.Config{Linux: configs.Linux{CgroupsPath: "x"}}
	require.Equal(t, &cfg.Linux, cgroupLinuxOf(cfg))
}

func TestSplitStatFieldsHandlesSpacesInComm(t *testing.T) {
	// comm can itself contain spaces and parens; splitting must find the
	// last ')' rather than the first.
	stat := "4242 (my weird (proc) name) S 1 4242 4242 0 -1 4194560 100 0 0 0 2 3 0 0 20 0 1 0 123456789 0"
	fields := splitStatFields(stat)
	require.GreaterOrEqual(t, len(fields), 22)
	require.Equal(t, "123456789", fields[21])
}

func TestAliveReturnsFalseForZeroPid(t *testing.T) {
	_, c := newTestContainer(t, state.Created, 0)
	require.False(t, c.alive())
}
