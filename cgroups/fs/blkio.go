package fs

import (
	"fmt"

	"github.com/anyawal/corerun/cgroups"
	"github.com/anyawal/corerun/configs"
)

type blkioGroup struct{}

func (s *blkioGroup) Name() string { return "blkio" }

func (s *blkioGroup) Apply(path string, pid int) error {
	return writeFile(path, "cgroup.procs", itoa(pid))
}

func (s *blkioGroup) Set(path string, r *configs.Resources) error {
	if r.IO.Weight != 0 {
		if err := writeFileUint(path, "blkio.weight", uint64(r.IO.Weight)); err != nil {
			return err
		}
	}
	if r.IO.LeafWeight != 0 {
		if err := writeFileUint(path, "blkio.leaf_weight", uint64(r.IO.LeafWeight)); err != nil {
			return err
		}
	}
	for _, td := range r.IO.ThrottleReadBps {
		if err := writeThrottleDevice(path, "blkio.throttle.read_bps_device", td); err != nil {
			return err
		}
	}
	for _, td := range r.IO.ThrottleWriteBps {
		if err := writeThrottleDevice(path, "blkio.throttle.write_bps_device", td); err != nil {
			return err
		}
	}
	for _, td := range r.IO.ThrottleReadIOPS {
		if err := writeThrottleDevice(path, "blkio.throttle.read_iops_device", td); err != nil {
			return err
		}
	}
	for _, td := range r.IO.ThrottleWriteIOPS {
		if err := writeThrottleDevice(path, "blkio.throttle.write_iops_device", td); err != nil {
			return err
		}
	}
	return nil
}

func writeThrottleDevice(path, file string, td configs.ThrottleDevice) error {
	line := fmt.Sprintf("%d:%d %d", td.Major, td.Minor, td.Rate)
	return writeFile(path, file, line)
}

func (s *blkioGroup) Remove(path string) error {
	return removePath(path)
}

func (s *blkioGroup) GetStats(path string, stats *cgroups.Stats) error {
	return scanLines(path+"/blkio.throttle.io_service_bytes", func(line string) error {
		var major, minor uint64
		var op string
		var value uint64
		if _, err := fmt.Sscanf(line, "%d:%d %s %d", &major, &minor, &op, &value); err != nil {
			return nil
		}
		stats.BlkioStats.IoServiceBytesRecursive = append(stats.BlkioStats.IoServiceBytesRecursive,
			cgroups.BlkioStatEntry{Major: major, Minor: minor, Op: op, Value: value})
		return nil
	})
}
