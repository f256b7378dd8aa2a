package fs

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/anyawal/corerun/cgroups"
	"github.com/anyawal/corerun/configs"
)

func itoa(i int) string { return strconv.Itoa(i) }

var controllers = []controller{
	&cpuGroup{},
	&cpusetGroup{},
	&memoryGroup{},
	&pidsGroup{},
	&blkioGroup{},
	&devicesGroup{},
	&freezerGroup{},
	&hugetlbGroup{},
	&netClsGroup{},
	&netPrioGroup{},
	&perfEventGroup{},
}

// Manager implements cgroups.Manager over the v1 multi-controller
// hierarchy, one directory per controller under its own mount point, per
// spec.md §4.5 "v1 (fs)". Grounded on the teacher's per-subsystem
// CpuGroup pattern, generalized to loop over every controller uniformly.
type Manager struct {
	cgroup *configs.Cgroup
	paths  map[string]string
}

// NewManager resolves each controller's mount point and target
// directory up front; directories are created lazily by Apply.
func NewManager(cgroup *configs.Cgroup) (*Manager, error) {
	paths := map[string]string{}
	for _, c := range controllers {
		mnt, err := findMountpoint(c.Name())
		if err != nil {
			if cgroups.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		paths[c.Name()] = filepath.Join(mnt, cgroup.Path)
	}
	return &Manager{cgroup: cgroup, paths: paths}, nil
}

func (m *Manager) Path(subsystem string) string {
	return m.paths[subsystem]
}

// Apply creates each controller's directory (if not already present)
// and writes pid into cgroup.procs. On any failure it rolls back the
// directories it just created, per spec.md §4.5's partial-failure
// policy.
func (m *Manager) Apply(pid int) error {
	created := []string{}
	rollback := func() {
		for i := len(created) - 1; i >= 0; i-- {
			os.Remove(created[i])
		}
	}

	for _, c := range controllers {
		path, ok := m.paths[c.Name()]
		if !ok {
			continue
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := os.MkdirAll(path, 0o755); err != nil {
				rollback()
				return err
			}
			created = append(created, path)
		}
		if err := c.Apply(path, pid); err != nil {
			rollback()
			return err
		}
	}

	if m.cgroup.Resources != nil {
		if err := m.Set(m.cgroup.Resources); err != nil {
			rollback()
			return err
		}
	}
	return nil
}

func (m *Manager) Set(r *configs.Resources) error {
	for _, c := range controllers {
		path, ok := m.paths[c.Name()]
		if !ok {
			continue
		}
		if err := c.Set(path, r); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) Freeze(state configs.FreezerState) error {
	path, ok := m.paths["freezer"]
	if !ok {
		return cgroups.NewNotFoundError("freezer")
	}
	fz := &freezerGroup{}
	return fz.setState(path, state)
}

func (m *Manager) Stats() (*cgroups.Stats, error) {
	stats := &cgroups.Stats{}
	for _, c := range controllers {
		path, ok := m.paths[c.Name()]
		if !ok {
			continue
		}
		if err := c.GetStats(path, stats); err != nil {
			return nil, err
		}
	}
	return stats, nil
}

// Remove tears down every controller directory. The kernel refuses to
// rmdir a cgroup with tasks still inside it, so this is only called
// once the init process has exited.
func (m *Manager) Remove() error {
	var firstErr error
	for _, c := range controllers {
		path, ok := m.paths[c.Name()]
		if !ok {
			continue
		}
		if err := c.Remove(path); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
