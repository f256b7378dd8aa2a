package fs

import (
	"github.com/anyawal/corerun/cgroups"
	"github.com/anyawal/corerun/configs"
)

type memoryGroup struct{}

func (s *memoryGroup) Name() string { return "memory" }

func (s *memoryGroup) Apply(path string, pid int) error {
	return writeFile(path, "cgroup.procs", itoa(pid))
}

func (s *memoryGroup) Set(path string, r *configs.Resources) error {
	if r.Memory.Limit != 0 {
		if err := writeFileInt(path, "memory.limit_in_bytes", r.Memory.Limit); err != nil {
			return err
		}
	}
	if r.Memory.Reservation != 0 {
		if err := writeFileInt(path, "memory.soft_limit_in_bytes", r.Memory.Reservation); err != nil {
			return err
		}
	}
	if r.Memory.Swap != 0 {
		if err := writeFileInt(path, "memory.memsw.limit_in_bytes", r.Memory.Swap); err != nil {
			return err
		}
	}
	if r.Memory.KernelMemory != 0 {
		if err := writeFileInt(path, "memory.kmem.limit_in_bytes", r.Memory.KernelMemory); err != nil {
			return err
		}
	}
	if r.Memory.DisableOOMKiller {
		if err := writeFileInt(path, "memory.oom_control", 1); err != nil {
			return err
		}
	}
	if r.Memory.Swappiness != nil {
		if err := writeFileUint(path, "memory.swappiness", *r.Memory.Swappiness); err != nil {
			return err
		}
	}
	return nil
}

func (s *memoryGroup) Remove(path string) error {
	return removePath(path)
}

func (s *memoryGroup) GetStats(path string, stats *cgroups.Stats) error {
	if v, err := getCgroupParamUint(path, "memory.usage_in_bytes"); err == nil {
		stats.MemoryStats.Usage = v
	}
	if v, err := getCgroupParamUint(path, "memory.limit_in_bytes"); err == nil {
		stats.MemoryStats.Limit = v
	}
	if v, err := getCgroupParamUint(path, "memory.max_usage_in_bytes"); err == nil {
		stats.MemoryStats.MaxUsage = v
	}
	if v, err := getCgroupParamUint(path, "memory.failcnt"); err == nil {
		stats.MemoryStats.Failcnt = v
	}
	if v, err := getCgroupParamUint(path, "memory.kmem.usage_in_bytes"); err == nil {
		stats.MemoryStats.KernelUsage = v
	}
	return nil
}
