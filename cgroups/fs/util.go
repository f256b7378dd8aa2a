// Package fs implements the v1 multi-controller cgroup hierarchy backend
// of spec.md §4.5, one subdirectory per controller under its own mount
// point. Grounded on the teacher's cgroups/fs package (CpuGroup et al.),
// generalized to every controller spec.md §3's Cgroup resource record
// names and wired to a single Manager rather than a package of loose
// free functions.
package fs

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/moby/sys/mountinfo"

	"github.com/anyawal/corerun/cgroups"
	"github.com/anyawal/corerun/configs"
)

// controller is implemented once per v1 subsystem, mirroring the
// teacher's CpuGroup shape (Apply/Set/Remove/GetStats).
type controller interface {
	Name() string
	Apply(path string, pid int) error
	Set(path string, r *configs.Resources) error
	Remove(path string) error
	GetStats(path string, stats *cgroups.Stats) error
}

func writeFile(dir, file, data string) error {
	if dir == "" {
		return fmt.Errorf("no such directory for %s", file)
	}
	return os.WriteFile(filepath.Join(dir, file), []byte(data), 0o700)
}

func writeFileInt(dir, file string, v int64) error {
	return writeFile(dir, file, strconv.FormatInt(v, 10))
}

func writeFileUint(dir, file string, v uint64) error {
	return writeFile(dir, file, strconv.FormatUint(v, 10))
}

func readFile(dir, file string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, file))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func getCgroupParamUint(dir, file string) (uint64, error) {
	s, err := readFile(dir, file)
	if err != nil {
		return 0, err
	}
	if s == "max" {
		return 0, nil
	}
	return strconv.ParseUint(s, 10, 64)
}

// getCgroupParamKeyValue splits a "key value" line from a *.stat file,
// matching the teacher's CpuGroup.GetStats scanning convention.
func getCgroupParamKeyValue(line string) (string, uint64, error) {
	parts := strings.Fields(line)
	if len(parts) != 2 {
		return "", 0, fmt.Errorf("unexpected cgroup stat line %q", line)
	}
	v, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return "", 0, err
	}
	return parts[0], v, nil
}

func scanLines(path string, fn func(line string) error) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if err := fn(sc.Text()); err != nil {
			return err
		}
	}
	return sc.Err()
}

// findMountpoint locates the v1 mount point serving the given subsystem,
// using moby/sys/mountinfo to parse /proc/self/mountinfo rather than a
// hand-rolled /proc scanner.
func findMountpoint(subsystem string) (string, error) {
	mounts, err := mountinfo.GetMounts(mountinfo.FSTypeFilter("cgroup"))
	if err != nil {
		return "", err
	}
	for _, m := range mounts {
		for _, opt := range strings.Split(m.VFSOptions, ",") {
			if opt == subsystem {
				return m.Mountpoint, nil
			}
		}
	}
	return "", cgroups.NewNotFoundError(subsystem)
}

func removePath(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
