// Package capabilities implements the capability half of spec.md §4.4:
// compute the union of the configured bounding/effective/permitted/
// inheritable/ambient sets, drop everything outside bounding, then set
// the rest, with bounding dropped last and ambient applied after the
// exec-preserving bits. Grounded on the teacher's in-tree
// security/capabilities package, rebuilt against
// github.com/syndtr/gocapability/capability — the dependency the
// reference runtime actually ships, per the sibling example
// ChrisforCrystal-mas-cri's indirect requirements.
package capabilities

import (
	"fmt"

	"github.com/syndtr/gocapability/capability"

	"github.com/anyawal/corerun/configs"
)

// Apply computes the configured capability sets and applies them to the
// calling process (Init, just before it execs the user entrypoint).
func Apply(caps *configs.Capabilities) error {
	if caps == nil {
		return nil
	}
	c, err := capability.NewPid2(0)
	if err != nil {
		return fmt.Errorf("open capability state: %w", err)
	}
	if err := c.Load(); err != nil {
		return fmt.Errorf("load capability state: %w", err)
	}

	bounding, err := resolve(caps.Bounding)
	if err != nil {
		return err
	}
	effective, err := resolve(caps.Effective)
	if err != nil {
		return err
	}
	inheritable, err := resolve(caps.Inheritable)
	if err != nil {
		return err
	}
	permitted, err := resolve(caps.Permitted)
	if err != nil {
		return err
	}
	ambient, err := resolve(caps.Ambient)
	if err != nil {
		return err
	}

	// Order matters: ambient is applied after the exec-preserving bits
	// (effective, permitted, inheritable) are in place, and bounding is
	// reset last of all, per spec.md §4.4.
	c.Clear(capability.EFFECTIVE | capability.PERMITTED | capability.INHERITABLE | capability.AMBIENT)
	c.Set(capability.EFFECTIVE, effective...)
	c.Set(capability.PERMITTED, permitted...)
	c.Set(capability.INHERITABLE, inheritable...)

	if err := c.Apply(capability.CAPS); err != nil {
		return fmt.Errorf("apply effective/permitted/inheritable: %w", err)
	}

	c.Set(capability.AMBIENT, ambient...)
	if err := c.Apply(capability.AMBS); err != nil {
		return fmt.Errorf("apply ambient: %w", err)
	}

	c.Clear(capability.BOUNDING)
	c.Set(capability.BOUNDING, bounding...)
	if err := c.Apply(capability.BOUNDING); err != nil {
		return fmt.Errorf("apply bounding: %w", err)
	}

	return nil
}

func resolve(names []string) ([]capability.Cap, error) {
	out := make([]capability.Cap, 0, len(names))
	for _, name := range names {
		cap, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown capability %q", name)
		}
		out = append(out, cap)
	}
	return out, nil
}

// byName maps OCI capability names (e.g. "CAP_SYS_ADMIN") to
// gocapability's enum, covering the set the reference runtime
// documents as the default bounding set plus the common extras
// (CAP_SYS_ADMIN, CAP_NET_ADMIN, CAP_SYS_PTRACE, ...).
var byName = map[string]capability.Cap{
	"CAP_AUDIT_CONTROL":      capability.CAP_AUDIT_CONTROL,
	"CAP_AUDIT_READ":         capability.CAP_AUDIT_READ,
	"CAP_AUDIT_WRITE":        capability.CAP_AUDIT_WRITE,
	"CAP_BLOCK_SUSPEND":      capability.CAP_BLOCK_SUSPEND,
	"CAP_CHOWN":              capability.CAP_CHOWN,
	"CAP_DAC_OVERRIDE":       capability.CAP_DAC_OVERRIDE,
	"CAP_DAC_READ_SEARCH":    capability.CAP_DAC_READ_SEARCH,
	"CAP_FOWNER":             capability.CAP_FOWNER,
	"CAP_FSETID":             capability.CAP_FSETID,
	"CAP_IPC_LOCK":           capability.CAP_IPC_LOCK,
	"CAP_IPC_OWNER":          capability.CAP_IPC_OWNER,
	"CAP_KILL":               capability.CAP_KILL,
	"CAP_LEASE":              capability.CAP_LEASE,
	"CAP_LINUX_IMMUTABLE":    capability.CAP_LINUX_IMMUTABLE,
	"CAP_MAC_ADMIN":          capability.CAP_MAC_ADMIN,
	"CAP_MAC_OVERRIDE":       capability.CAP_MAC_OVERRIDE,
	"CAP_MKNOD":              capability.CAP_MKNOD,
	"CAP_NET_ADMIN":          capability.CAP_NET_ADMIN,
	"CAP_NET_BIND_SERVICE":   capability.CAP_NET_BIND_SERVICE,
	"CAP_NET_BROADCAST":      capability.CAP_NET_BROADCAST,
	"CAP_NET_RAW":            capability.CAP_NET_RAW,
	"CAP_SETGID":             capability.CAP_SETGID,
	"CAP_SETFCAP":            capability.CAP_SETFCAP,
	"CAP_SETPCAP":            capability.CAP_SETPCAP,
	"CAP_SETUID":             capability.CAP_SETUID,
	"CAP_SYS_ADMIN":          capability.CAP_SYS_ADMIN,
	"CAP_SYS_BOOT":           capability.CAP_SYS_BOOT,
	"CAP_SYS_CHROOT":         capability.CAP_SYS_CHROOT,
	"CAP_SYS_MODULE":         capability.CAP_SYS_MODULE,
	"CAP_SYS_NICE":           capability.CAP_SYS_NICE,
	"CAP_SYS_PACCT":          capability.CAP_SYS_PACCT,
	"CAP_SYS_PTRACE":         capability.CAP_SYS_PTRACE,
	"CAP_SYS_RAWIO":          capability.CAP_SYS_RAWIO,
	"CAP_SYS_RESOURCE":       capability.CAP_SYS_RESOURCE,
	"CAP_SYS_TIME":           capability.CAP_SYS_TIME,
	"CAP_SYS_TTY_CONFIG":     capability.CAP_SYS_TTY_CONFIG,
	"CAP_SYSLOG":             capability.CAP_SYSLOG,
	"CAP_WAKE_ALARM":         capability.CAP_WAKE_ALARM,
}
