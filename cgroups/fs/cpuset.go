package fs

import (
	"github.com/anyawal/corerun/cgroups"
	"github.com/anyawal/corerun/configs"
)

type cpusetGroup struct{}

func (s *cpusetGroup) Name() string { return "cpuset" }

func (s *cpusetGroup) Apply(path string, pid int) error {
	return writeFile(path, "cgroup.procs", itoa(pid))
}

func (s *cpusetGroup) Set(path string, r *configs.Resources) error {
	if r.CPU.Cpus != "" {
		if err := writeFile(path, "cpuset.cpus", r.CPU.Cpus); err != nil {
			return err
		}
	}
	if r.CPU.Mems != "" {
		if err := writeFile(path, "cpuset.mems", r.CPU.Mems); err != nil {
			return err
		}
	}
	return nil
}

func (s *cpusetGroup) Remove(path string) error {
	return removePath(path)
}

func (s *cpusetGroup) GetStats(path string, stats *cgroups.Stats) error {
	return nil
}
