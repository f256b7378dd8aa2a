package fs

import (
	"fmt"

	"github.com/anyawal/corerun/cgroups"
	"github.com/anyawal/corerun/configs"
)

type netPrioGroup struct{}

func (s *netPrioGroup) Name() string { return "net_prio" }

func (s *netPrioGroup) Apply(path string, pid int) error {
	return writeFile(path, "cgroup.procs", itoa(pid))
}

func (s *netPrioGroup) Set(path string, r *configs.Resources) error {
	for _, p := range r.Network.Priorities {
		if err := writeFile(path, "net_prio.ifpriomap", fmt.Sprintf("%s %d", p.Interface, p.Priority)); err != nil {
			return err
		}
	}
	return nil
}

func (s *netPrioGroup) Remove(path string) error {
	return removePath(path)
}

func (s *netPrioGroup) GetStats(path string, stats *cgroups.Stats) error {
	return nil
}
