// Package seccomp installs the configured BPF filter as the last
// privileged operation before Init execs the user command, per spec.md
// §4.2's ordering contract. It treats filter compilation as the opaque
// operation spec.md §1 scopes out: Load accepts the parsed
// configs.Seccomp record and hands it to the kernel via
// github.com/seccomp/libseccomp-golang, without attempting to model
// every rule shape a real filter might need. Grounded on the teacher's
// own security/seccomp package (InitSeccomp: resolve a default action,
// add extra architectures, add one rule per listed syscall, load),
// rebuilt against the maintained libseccomp binding instead of the
// teacher's now-defunct sourceforge/mheon imports.
package seccomp

import (
	"fmt"

	libseccomp "github.com/seccomp/libseccomp-golang"

	"github.com/anyawal/corerun/configs"
)

var actionByName = map[string]libseccomp.ScmpAction{
	"SCMP_ACT_KILL":         libseccomp.ActKill,
	"SCMP_ACT_KILL_PROCESS": libseccomp.ActKillProcess,
	"SCMP_ACT_ERRNO":        libseccomp.ActErrno,
	"SCMP_ACT_TRAP":         libseccomp.ActTrap,
	"SCMP_ACT_ALLOW":        libseccomp.ActAllow,
	"SCMP_ACT_TRACE":        libseccomp.ActTrace,
	"SCMP_ACT_LOG":          libseccomp.ActLog,
}

// Load compiles cfg into a BPF program and installs it for the calling
// process (and, because seccomp filters are inherited across execve,
// for the user command about to replace it).
func Load(cfg *configs.Seccomp) error {
	if cfg == nil {
		return nil
	}

	defaultAction, ok := actionByName[cfg.DefaultAction]
	if !ok {
		return fmt.Errorf("unknown seccomp default action %q", cfg.DefaultAction)
	}

	filter, err := libseccomp.NewFilter(defaultAction)
	if err != nil {
		return fmt.Errorf("create filter: %w", err)
	}
	defer filter.Release()

	for _, archName := range cfg.Architectures {
		arch, err := libseccomp.GetArchFromString(archName)
		if err != nil {
			return fmt.Errorf("unknown architecture %q: %w", archName, err)
		}
		if err := filter.AddArch(arch); err != nil {
			return fmt.Errorf("add architecture %s: %w", archName, err)
		}
	}

	for _, rule := range cfg.Syscalls {
		action, ok := actionByName[rule.Action]
		if !ok {
			return fmt.Errorf("unknown seccomp action %q", rule.Action)
		}
		for _, name := range rule.Names {
			id, err := libseccomp.GetSyscallFromName(name)
			if err != nil {
				return fmt.Errorf("unknown syscall %q: %w", name, err)
			}
			if err := filter.AddRule(id, action); err != nil {
				return fmt.Errorf("add rule for %s: %w", name, err)
			}
		}
	}

	if err := filter.Load(); err != nil {
		return fmt.Errorf("load filter into kernel: %w", err)
	}
	return nil
}
