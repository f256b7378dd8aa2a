// Package fs2 implements the v2 unified cgroup hierarchy backend of
// spec.md §4.5: a single directory, with controllers enabled top-down via
// cgroup.subtree_control, and v1-style resource fields translated to the
// v2 file format (cpu.max, memory.max, io.max, pids.max, ...). Device
// control is delegated to an attached eBPF program built with
// github.com/cilium/ebpf, since v2 has no devices.allow/deny files.
package fs2

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"

	"github.com/anyawal/corerun/cgroups"
	"github.com/anyawal/corerun/configs"
)

const unifiedMountpoint = "/sys/fs/cgroup"

var requiredControllers = []string{"cpu", "cpuset", "io", "memory", "pids", "hugetlb"}

// Manager implements cgroups.Manager over the v2 unified hierarchy.
type Manager struct {
	path      string
	resources *configs.Resources
	devLink   link.Link
}

// MountPoint is the v2 unified hierarchy's mount point, exported so a
// sibling backend that delegates cgroup creation elsewhere (systemd) can
// still locate the directory it ends up owning.
const MountPoint = unifiedMountpoint

// Attach wraps a cgroup directory some other mechanism already created
// and owns (systemd's transient scope API, notably), so that Manager's
// Set/Stats/Path/Freeze logic can still be driven against it without
// this package creating the directory or touching
// cgroup.subtree_control itself. relPath is relative to MountPoint.
func Attach(relPath string, resources *configs.Resources) *Manager {
	return &Manager{path: filepath.Join(unifiedMountpoint, relPath), resources: resources}
}

// NewManager creates the unified cgroup directory and enables the
// controllers the container's resources will need by writing
// "+<controller>" into every ancestor's cgroup.subtree_control, starting
// from the unified mount root.
func NewManager(cgroup *configs.Cgroup) (*Manager, error) {
	path := filepath.Join(unifiedMountpoint, cgroup.Path)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, err
	}
	if err := enableControllers(path); err != nil {
		os.RemoveAll(path)
		return nil, err
	}
	return &Manager{path: path, resources: cgroup.Resources}, nil
}

// enableControllers walks from the unified root down to path, writing
// "+controller" at each level so the leaf cgroup can use it, per the v2
// top-down delegation model.
func enableControllers(path string) error {
	rel, err := filepath.Rel(unifiedMountpoint, path)
	if err != nil {
		return err
	}
	parts := strings.Split(rel, string(filepath.Separator))
	cur := unifiedMountpoint
	enable := strings.Join(prefixed(requiredControllers), " ")
	for _, p := range parts {
		available, _ := os.ReadFile(filepath.Join(cur, "cgroup.controllers"))
		_ = available
		os.WriteFile(filepath.Join(cur, "cgroup.subtree_control"), []byte(enable), 0o644)
		cur = filepath.Join(cur, p)
	}
	return nil
}

func prefixed(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = "+" + n
	}
	return out
}

func (m *Manager) Path(string) string { return m.path }

func (m *Manager) Apply(pid int) error {
	if err := os.WriteFile(filepath.Join(m.path, "cgroup.procs"), []byte(strconv.Itoa(pid)), 0o644); err != nil {
		return err
	}
	if m.resources != nil {
		return m.Set(m.resources)
	}
	return nil
}

func (m *Manager) Set(r *configs.Resources) error {
	if err := m.setCPU(r); err != nil {
		return err
	}
	if err := m.setMemory(r); err != nil {
		return err
	}
	if err := m.setIO(r); err != nil {
		return err
	}
	if err := m.setPids(r); err != nil {
		return err
	}
	if err := m.setDevices(r); err != nil {
		return err
	}
	for k, v := range r.Unified {
		if err := os.WriteFile(filepath.Join(m.path, k), []byte(v), 0o644); err != nil {
			return err
		}
	}
	return nil
}

// setCPU translates CpuQuota/CpuPeriod into the single "cpu.max" file of
// the format "<quota|max> <period>".
func (m *Manager) setCPU(r *configs.Resources) error {
	if r.CPU.Quota == 0 && r.CPU.Period == 0 && r.CPU.Shares == 0 {
		return nil
	}
	quota := "max"
	if r.CPU.Quota > 0 {
		quota = strconv.FormatInt(r.CPU.Quota, 10)
	}
	period := r.CPU.Period
	if period == 0 {
		period = 100000
	}
	if err := os.WriteFile(filepath.Join(m.path, "cpu.max"), []byte(fmt.Sprintf("%s %d", quota, period)), 0o644); err != nil {
		return err
	}
	if r.CPU.Shares != 0 {
		weight := cpuSharesToWeight(r.CPU.Shares)
		if err := os.WriteFile(filepath.Join(m.path, "cpu.weight"), []byte(strconv.FormatUint(weight, 10)), 0o644); err != nil {
			return err
		}
	}
	return nil
}

// cpuSharesToWeight converts the v1 [2,262144] shares range to the v2
// [1,10000] weight range using the same linear mapping the kernel
// documents for compatibility shims.
func cpuSharesToWeight(shares uint64) uint64 {
	if shares == 0 {
		return 100
	}
	w := 1 + ((shares-2)*9999)/262142
	if w < 1 {
		w = 1
	}
	if w > 10000 {
		w = 10000
	}
	return w
}

func (m *Manager) setMemory(r *configs.Resources) error {
	if r.Memory.Limit != 0 {
		v := "max"
		if r.Memory.Limit > 0 {
			v = strconv.FormatInt(r.Memory.Limit, 10)
		}
		if err := os.WriteFile(filepath.Join(m.path, "memory.max"), []byte(v), 0o644); err != nil {
			return err
		}
	}
	if r.Memory.Reservation != 0 {
		if err := os.WriteFile(filepath.Join(m.path, "memory.low"), []byte(strconv.FormatInt(r.Memory.Reservation, 10)), 0o644); err != nil {
			return err
		}
	}
	if r.Memory.Swap != 0 {
		if err := os.WriteFile(filepath.Join(m.path, "memory.swap.max"), []byte(strconv.FormatInt(r.Memory.Swap, 10)), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) setIO(r *configs.Resources) error {
	all := append(append(append(r.IO.ThrottleReadBps, r.IO.ThrottleWriteBps...), r.IO.ThrottleReadIOPS...), r.IO.ThrottleWriteIOPS...)
	if len(all) == 0 && r.IO.Weight == 0 {
		return nil
	}
	if r.IO.Weight != 0 {
		if err := os.WriteFile(filepath.Join(m.path, "io.weight"), []byte(strconv.Itoa(int(r.IO.Weight))), 0o644); err != nil {
			return err
		}
	}
	write := func(devices []configs.ThrottleDevice, key string) error {
		for _, d := range devices {
			line := fmt.Sprintf("%d:%d %s=%d", d.Major, d.Minor, key, d.Rate)
			if err := os.WriteFile(filepath.Join(m.path, "io.max"), []byte(line), 0o644); err != nil {
				return err
			}
		}
		return nil
	}
	if err := write(r.IO.ThrottleReadBps, "rbps"); err != nil {
		return err
	}
	if err := write(r.IO.ThrottleWriteBps, "wbps"); err != nil {
		return err
	}
	if err := write(r.IO.ThrottleReadIOPS, "riops"); err != nil {
		return err
	}
	return write(r.IO.ThrottleWriteIOPS, "wiops")
}

func (m *Manager) setPids(r *configs.Resources) error {
	if r.Pids.Limit == 0 {
		return nil
	}
	v := "max"
	if r.Pids.Limit > 0 {
		v = strconv.FormatInt(r.Pids.Limit, 10)
	}
	return os.WriteFile(filepath.Join(m.path, "pids.max"), []byte(v), 0o644)
}

// setDevices builds a BPF_PROG_TYPE_CGROUP_DEVICE program from r.Devices
// and attaches it to this cgroup's directory, replacing whatever program
// was attached before. An empty rule list detaches the previous program
// and leaves the cgroup with no device filter, mirroring what clearing
// devices.allow/devices.deny would mean on v1.
func (m *Manager) setDevices(r *configs.Resources) error {
	if m.devLink != nil {
		m.devLink.Close()
		m.devLink = nil
	}
	if len(r.Devices) == 0 {
		return nil
	}

	insts, license, err := buildDeviceProgram(r.Devices)
	if err != nil {
		return fmt.Errorf("build device filter: %w", err)
	}
	prog, err := ebpf.NewProgram(&ebpf.ProgramSpec{
		Type:         ebpf.CGroupDevice,
		License:      license,
		Instructions: insts,
	})
	if err != nil {
		return fmt.Errorf("load device filter: %w", err)
	}
	defer prog.Close()

	l, err := link.AttachCgroup(link.CgroupOptions{
		Path:    m.path,
		Attach:  ebpf.AttachCGroupDevice,
		Program: prog,
	})
	if err != nil {
		return fmt.Errorf("attach device filter: %w", err)
	}
	m.devLink = l
	return nil
}

func (m *Manager) Freeze(state configs.FreezerState) error {
	v := "0"
	if state == configs.Frozen {
		v = "1"
	}
	return os.WriteFile(filepath.Join(m.path, "cgroup.freeze"), []byte(v), 0o644)
}

func (m *Manager) Stats() (*cgroups.Stats, error) {
	stats := &cgroups.Stats{}
	data, err := os.ReadFile(filepath.Join(m.path, "memory.current"))
	if err == nil {
		if v, perr := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64); perr == nil {
			stats.MemoryStats.Usage = v
		}
	}
	data, err = os.ReadFile(filepath.Join(m.path, "pids.current"))
	if err == nil {
		if v, perr := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64); perr == nil {
			stats.PidsStats.Current = v
		}
	}
	return stats, nil
}

func (m *Manager) Remove() error {
	if m.devLink != nil {
		m.devLink.Close()
	}
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// IsUnifiedAvailable detects a v2 host by checking for cgroup.controllers
// at the mount root, the standard v2-vs-v1 probe.
func IsUnifiedAvailable() bool {
	_, err := os.Stat(filepath.Join(unifiedMountpoint, "cgroup.controllers"))
	return err == nil
}
