package fs

import (
	"github.com/anyawal/corerun/cgroups"
	"github.com/anyawal/corerun/configs"
)

// perfEventGroup has no resource knobs of its own; joining it is what
// lets an external perf/bpftool invocation scope its collection to the
// container's tasks.
type perfEventGroup struct{}

func (s *perfEventGroup) Name() string { return "perf_event" }

func (s *perfEventGroup) Apply(path string, pid int) error {
	return writeFile(path, "cgroup.procs", itoa(pid))
}

func (s *perfEventGroup) Set(path string, r *configs.Resources) error {
	return nil
}

func (s *perfEventGroup) Remove(path string) error {
	return removePath(path)
}

func (s *perfEventGroup) GetStats(path string, stats *cgroups.Stats) error {
	return nil
}
