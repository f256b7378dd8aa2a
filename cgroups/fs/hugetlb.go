package fs

import (
	"fmt"

	"github.com/anyawal/corerun/cgroups"
	"github.com/anyawal/corerun/configs"
)

type hugetlbGroup struct{}

func (s *hugetlbGroup) Name() string { return "hugetlb" }

func (s *hugetlbGroup) Apply(path string, pid int) error {
	return writeFile(path, "cgroup.procs", itoa(pid))
}

func (s *hugetlbGroup) Set(path string, r *configs.Resources) error {
	for _, hl := range r.HugeTLB {
		file := fmt.Sprintf("hugetlb.%s.limit_in_bytes", hl.Pagesize)
		if err := writeFileUint(path, file, hl.Limit); err != nil {
			return err
		}
	}
	return nil
}

func (s *hugetlbGroup) Remove(path string) error {
	return removePath(path)
}

func (s *hugetlbGroup) GetStats(path string, stats *cgroups.Stats) error {
	return nil
}
