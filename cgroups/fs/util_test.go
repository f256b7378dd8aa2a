package fs

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anyawal/corerun/cgroups"
	"github.com/anyawal/corerun/configs"
)

func TestCPUGroupSetAndStats(t *testing.T) {
	dir := t.TempDir()
	writeFileContents(t, dir, map[string]string{
		"cpu.stat": "nr_periods 10\nnr_throttled 2\nthrottled_time 500\n",
	})

	c := &cpuGroup{}
	require.NoError(t, c.Set(dir, &configs.Resources{CPU: configs.CPU{Shares: 1024, Period: 100000, Quota: 50000}}))

	shares, err := readFile(dir, "cpu.shares")
	require.NoError(t, err)
	require.Equal(t, "1024", shares)

	stats := &cgroups.Stats{}
	require.NoError(t, c.GetStats(dir, stats))
	require.Equal(t, uint64(10), stats.CPUStats.ThrottlingData.Periods)
	require.Equal(t, uint64(2), stats.CPUStats.ThrottlingData.ThrottledPeriods)
}

func TestMemoryGroupSet(t *testing.T) {
	dir := t.TempDir()
	m := &memoryGroup{}
	require.NoError(t, m.Set(dir, &configs.Resources{Memory: configs.Memory{Limit: 1 << 20}}))

	v, err := readFile(dir, "memory.limit_in_bytes")
	require.NoError(t, err)
	require.Equal(t, "1048576", v)
}

func TestPidsGroupSetUnlimited(t *testing.T) {
	dir := t.TempDir()
	p := &pidsGroup{}
	require.NoError(t, p.Set(dir, &configs.Resources{Pids: configs.Pids{Limit: -1}}))

	v, err := readFile(dir, "pids.max")
	require.NoError(t, err)
	require.Equal(t, "max", v)
}

func TestDevicesGroupWritesAllowAndDenyRules(t *testing.T) {
	dir := t.TempDir()
	d := &devicesGroup{}
	require.NoError(t, d.Set(dir, &configs.Resources{Devices: []configs.DeviceRule{
		{Type: 'a', Major: -1, Minor: -1, Permissions: "rwm", Allow: false},
		{Type: 'c', Major: 1, Minor: 5, Permissions: "rwm", Allow: true},
	}}))

	deny, err := readFile(dir, "devices.deny")
	require.NoError(t, err)
	require.Equal(t, "a *:* rwm", deny)

	allow, err := readFile(dir, "devices.allow")
	require.NoError(t, err)
	require.Equal(t, "c 1:5 rwm", allow)
}

func writeFileContents(t *testing.T, dir string, contents map[string]string) {
	t.Helper()
	for file, data := range contents {
		require.NoError(t, writeFile(dir, file, data))
	}
}
