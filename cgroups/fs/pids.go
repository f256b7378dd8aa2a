package fs

import (
	"strconv"

	"github.com/anyawal/corerun/cgroups"
	"github.com/anyawal/corerun/configs"
)

type pidsGroup struct{}

func (s *pidsGroup) Name() string { return "pids" }

func (s *pidsGroup) Apply(path string, pid int) error {
	return writeFile(path, "cgroup.procs", itoa(pid))
}

func (s *pidsGroup) Set(path string, r *configs.Resources) error {
	if r.Pids.Limit == 0 {
		return nil
	}
	limit := "max"
	if r.Pids.Limit > 0 {
		limit = strconv.FormatInt(r.Pids.Limit, 10)
	}
	return writeFile(path, "pids.max", limit)
}

func (s *pidsGroup) Remove(path string) error {
	return removePath(path)
}

func (s *pidsGroup) GetStats(path string, stats *cgroups.Stats) error {
	if v, err := getCgroupParamUint(path, "pids.current"); err == nil {
		stats.PidsStats.Current = v
	}
	if v, err := getCgroupParamUint(path, "pids.max"); err == nil {
		stats.PidsStats.Limit = v
	}
	return nil
}
