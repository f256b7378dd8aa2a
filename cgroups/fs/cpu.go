package fs

import (
	"github.com/anyawal/corerun/cgroups"
	"github.com/anyawal/corerun/configs"
)

type cpuGroup struct{}

func (s *cpuGroup) Name() string { return "cpu" }

func (s *cpuGroup) Apply(path string, pid int) error {
	return writeFile(path, "cgroup.procs", itoa(pid))
}

func (s *cpuGroup) Set(path string, r *configs.Resources) error {
	if r.CPU.Shares != 0 {
		if err := writeFileUint(path, "cpu.shares", r.CPU.Shares); err != nil {
			return err
		}
	}
	if r.CPU.Period != 0 {
		if err := writeFileUint(path, "cpu.cfs_period_us", r.CPU.Period); err != nil {
			return err
		}
	}
	if r.CPU.Quota != 0 {
		if err := writeFileInt(path, "cpu.cfs_quota_us", r.CPU.Quota); err != nil {
			return err
		}
	}
	if r.CPU.RealtimePeriod != 0 {
		if err := writeFileUint(path, "cpu.rt_period_us", r.CPU.RealtimePeriod); err != nil {
			return err
		}
	}
	if r.CPU.RealtimeRuntime != 0 {
		if err := writeFileInt(path, "cpu.rt_runtime_us", r.CPU.RealtimeRuntime); err != nil {
			return err
		}
	}
	return nil
}

func (s *cpuGroup) Remove(path string) error {
	return removePath(path)
}

func (s *cpuGroup) GetStats(path string, stats *cgroups.Stats) error {
	return scanLines(path+"/cpu.stat", func(line string) error {
		t, v, err := getCgroupParamKeyValue(line)
		if err != nil {
			return nil
		}
		switch t {
		case "nr_periods":
			stats.CPUStats.ThrottlingData.Periods = v
		case "nr_throttled":
			stats.CPUStats.ThrottlingData.ThrottledPeriods = v
		case "throttled_time":
			stats.CPUStats.ThrottlingData.ThrottledTime = v
		}
		return nil
	})
}
