package fs

import (
	"github.com/anyawal/corerun/cgroups"
	"github.com/anyawal/corerun/configs"
)

type netClsGroup struct{}

func (s *netClsGroup) Name() string { return "net_cls" }

func (s *netClsGroup) Apply(path string, pid int) error {
	return writeFile(path, "cgroup.procs", itoa(pid))
}

func (s *netClsGroup) Set(path string, r *configs.Resources) error {
	if r.Network.ClassID == nil {
		return nil
	}
	return writeFileUint(path, "net_cls.classid", uint64(*r.Network.ClassID))
}

func (s *netClsGroup) Remove(path string) error {
	return removePath(path)
}

func (s *netClsGroup) GetStats(path string, stats *cgroups.Stats) error {
	return nil
}
