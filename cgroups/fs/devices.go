package fs

import (
	"fmt"

	"github.com/anyawal/corerun/cgroups"
	"github.com/anyawal/corerun/configs"
)

type devicesGroup struct{}

func (s *devicesGroup) Name() string { return "devices" }

func (s *devicesGroup) Apply(path string, pid int) error {
	return writeFile(path, "cgroup.procs", itoa(pid))
}

// Set writes one devices.allow/devices.deny line per configured rule, in
// order, matching the v1 devices controller's append-only semantics.
func (s *devicesGroup) Set(path string, r *configs.Resources) error {
	for _, d := range r.Devices {
		rule := deviceRuleString(d)
		file := "devices.deny"
		if d.Allow {
			file = "devices.allow"
		}
		if err := writeFile(path, file, rule); err != nil {
			return err
		}
	}
	return nil
}

func deviceRuleString(d configs.DeviceRule) string {
	major := "*"
	if d.Major >= 0 {
		major = fmt.Sprintf("%d", d.Major)
	}
	minor := "*"
	if d.Minor >= 0 {
		minor = fmt.Sprintf("%d", d.Minor)
	}
	return fmt.Sprintf("%c %s:%s %s", d.Type, major, minor, d.Permissions)
}

func (s *devicesGroup) Remove(path string) error {
	return removePath(path)
}

func (s *devicesGroup) GetStats(path string, stats *cgroups.Stats) error {
	return nil
}
