package namespaces

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/anyawal/corerun/configs"
)

// WriteIDMappings writes /proc/{pid}/uid_map and gid_map from the
// Caller, before the child attempts any privileged operation inside its
// new user namespace, per spec.md §4.4. Writing gid_map first requires
// writing /proc/{pid}/setgroups=deny unless the caller holds CAP_SETGID
// in the outer user namespace; this always writes "deny" since a
// one-shot runtime invocation cannot assume that capability.
func WriteIDMappings(pid int, uidMappings, gidMappings []configs.IDMap) error {
	procPath := fmt.Sprintf("/proc/%d", pid)

	if len(gidMappings) > 0 {
		if err := os.WriteFile(filepath.Join(procPath, "setgroups"), []byte("deny"), 0o644); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("write setgroups: %w", err)
		}
	}
	if len(uidMappings) > 0 {
		if err := writeMap(filepath.Join(procPath, "uid_map"), uidMappings); err != nil {
			return fmt.Errorf("write uid_map: %w", err)
		}
	}
	if len(gidMappings) > 0 {
		if err := writeMap(filepath.Join(procPath, "gid_map"), gidMappings); err != nil {
			return fmt.Errorf("write gid_map: %w", err)
		}
	}
	return nil
}

func writeMap(path string, entries []configs.IDMap) error {
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%d %d %d\n", e.ContainerID, e.HostID, e.Size)
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}
