// Package validate checks a configs.Config for semantic errors before the
// lifecycle controller begins the construction pipeline, turning kernel-
// level failures discovered deep inside Init into a single InvalidConfig
// error surfaced synchronously from create().
package validate

import (
	"fmt"
	"strings"

	"github.com/anyawal/corerun/configs"
)

// Validator checks a single config.Config.
type Validator interface {
	Validate(config *configs.Config) error
}

// ConfigValidator is the default Validator implementation.
type ConfigValidator struct{}

// New returns the default Validator.
func New() Validator {
	return &ConfigValidator{}
}

func (v *ConfigValidator) Validate(config *configs.Config) error {
	checks := []func(*configs.Config) error{
		v.rootfs,
		v.network,
		v.procMount,
		v.usernamespace,
		v.hostname,
		v.cgroupPath,
		v.sysctl,
	}
	for _, check := range checks {
		if err := check(config); err != nil {
			return err
		}
	}
	return nil
}

func (v *ConfigValidator) rootfs(config *configs.Config) error {
	if config.Root.Path == "" {
		return fmt.Errorf("root.path must not be empty")
	}
	return nil
}

// network requires a network namespace whenever the config carries
// network-specific fields (mirrors the teacher's checkNamespaceFlags).
func (v *ConfigValidator) network(config *configs.Config) error {
	if config.Linux.Namespaces.Contains(configs.NEWNET) {
		return nil
	}
	if r := config.Linux.Resources; r != nil && r.Resources != nil {
		net := r.Resources.Network
		if net.ClassID != nil || len(net.Priorities) > 0 {
			return fmt.Errorf("net_cls/net_prio resources require a network namespace")
		}
	}
	return nil
}

// procMount requires that /proc only be mounted fresh when a new PID
// namespace is in play; otherwise the container would see the host's
// process table through its own /proc mount.
func (v *ConfigValidator) procMount(config *configs.Config) error {
	if config.Linux.Namespaces.Contains(configs.NEWPID) {
		return nil
	}
	for _, m := range config.Mounts {
		if m.Destination == "/proc" {
			return fmt.Errorf("cannot mount proc filesystem without a new PID namespace")
		}
	}
	return nil
}

func (v *ConfigValidator) usernamespace(config *configs.Config) error {
	if !config.Linux.Namespaces.Contains(configs.NEWUSER) {
		if len(config.Linux.UIDMappings) > 0 || len(config.Linux.GIDMappings) > 0 {
			return fmt.Errorf("uid/gid mappings specified without a user namespace")
		}
		return nil
	}
	if len(config.Linux.UIDMappings) == 0 || len(config.Linux.GIDMappings) == 0 {
		return fmt.Errorf("user namespace requires both uidMappings and gidMappings")
	}
	return nil
}

// hostname requires a UTS namespace whenever the bundle asks for a
// container-specific hostname, since without one Sethostname would
// change the host's own hostname.
func (v *ConfigValidator) hostname(config *configs.Config) error {
	if config.Hostname != "" && !config.Linux.Namespaces.Contains(configs.NEWUTS) {
		return fmt.Errorf("hostname configured without a UTS namespace")
	}
	return nil
}

// cgroupPath rejects a cgroupsPath that climbs out of the runtime's
// cgroup root via a ".." component, the same escape a rootfs path is
// checked for elsewhere in the pipeline.
func (v *ConfigValidator) cgroupPath(config *configs.Config) error {
	p := config.Linux.CgroupsPath
	if p == "" {
		return nil
	}
	for _, part := range strings.Split(p, "/") {
		if part == ".." {
			return fmt.Errorf("cgroupsPath must not contain '..': %q", p)
		}
	}
	return nil
}

func (v *ConfigValidator) sysctl(config *configs.Config) error {
	netOnly := map[string]bool{}
	for key := range config.Linux.Sysctl {
		if len(key) > 4 && key[:4] == "net." {
			netOnly[key] = true
			continue
		}
	}
	if len(netOnly) > 0 && !config.Linux.Namespaces.Contains(configs.NEWNET) {
		return fmt.Errorf("sysctl %q requires a network namespace", "net.*")
	}
	return nil
}
