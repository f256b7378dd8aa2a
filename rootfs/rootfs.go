// Package rootfs implements the Rootfs Preparer of spec.md §4.3: mount
// propagation setup, the self bind-mount pivot_root requires, per-mount
// destination resolution and creation, default + user devices, ptmx
// setup, masked/readonly paths, and finally pivot_root itself. It
// executes inside the mount-namespaced Init process. Grounded on the
// teacher's mount package (SetupPtmx) and rootfs_linux_test.go's
// checkMountDest guard, generalized from a fixed destination blocklist
// to securejoin-based destination resolution: a destination whose
// symlinks point outside rootfs is resolved to the matching path inside
// rootfs, and the mount does not fail because of such a symlink.
package rootfs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/mrunalp/fileutils"

	"github.com/anyawal/corerun/configs"
	"github.com/anyawal/corerun/system"
)

// Preparer builds the container's filesystem view, then performs the
// pivot_root/chroot handoff.
type Preparer struct {
	Sys system.Syscaller
}

// New returns a Preparer using the real Linux syscaller; pass a
// system.Fake in tests.
func New() *Preparer {
	return &Preparer{Sys: system.Linux{}}
}

// Prepare runs the full algorithm of spec.md §4.3, steps 1-7.
func (p *Preparer) Prepare(config *configs.Config) error {
	rootfs := config.Rootfs()
	if rootfs == "" {
		return fmt.Errorf("empty rootfs path")
	}

	if err := p.setPropagation(config.Linux.RootfsPropagation); err != nil {
		return fmt.Errorf("set mount propagation: %w", err)
	}

	if err := p.bindSelf(rootfs); err != nil {
		return fmt.Errorf("bind rootfs to itself: %w", err)
	}

	for _, m := range config.Mounts {
		if err := p.mount(rootfs, m); err != nil {
			return fmt.Errorf("mount %s: %w", m.Destination, err)
		}
	}

	if err := p.createDevices(rootfs, config); err != nil {
		return fmt.Errorf("create devices: %w", err)
	}

	if err := p.setupPtmx(rootfs); err != nil {
		return fmt.Errorf("setup ptmx: %w", err)
	}

	for _, mp := range config.Linux.MaskedPaths {
		if err := p.maskPath(rootfs, mp); err != nil {
			return fmt.Errorf("mask path %s: %w", mp, err)
		}
	}
	for _, rp := range config.Linux.ReadonlyPaths {
		if err := p.readonlyPath(rootfs, rp); err != nil {
			return fmt.Errorf("readonly path %s: %w", rp, err)
		}
	}

	if config.Root.Readonly {
		if err := p.Sys.Mount("", rootfs, "", uintptr(bindRemountFlags()), ""); err != nil {
			return fmt.Errorf("remount rootfs readonly: %w", err)
		}
	}

	return p.pivot(rootfs)
}

// setPropagation makes the rootfs mount's propagation type match the
// configured value (default rprivate), recursively, so later mounts the
// runtime makes do not leak to the host's mount namespace (spec.md §5's
// MS_SLAVE note covers the symmetric case before unshare; this is the
// "after unshare, make our own tree private" half).
func (p *Preparer) setPropagation(propagation string) error {
	flag := msRPRIVATE
	switch propagation {
	case "shared":
		flag = msSHARED
	case "rshared":
		flag = msRSHARED
	case "slave":
		flag = msSLAVE
	case "rslave":
		flag = msRSLAVE
	case "private":
		flag = msPRIVATE
	case "", "rprivate":
		flag = msRPRIVATE
	}
	return p.Sys.Mount("", "/", "", uintptr(flag), "")
}

// bindSelf performs the self bind-mount pivot_root requires: the new
// root must be a mount point, not merely a directory.
func (p *Preparer) bindSelf(rootfs string) error {
	return p.Sys.Mount(rootfs, rootfs, "", uintptr(msBIND|msREC), "")
}

// resolveDest resolves destination relative to rootfs using a
// symlink-aware join so a malicious or misconfigured destination cannot
// escape rootfs via a dangling/absolute symlink component, per spec.md
// §4.3's edge case.
func resolveDest(rootfs, destination string) (string, error) {
	dest, err := securejoin.SecureJoin(rootfs, destination)
	if err != nil {
		return "", fmt.Errorf("destination %q escapes rootfs: %w", destination, err)
	}
	return dest, nil
}

func (p *Preparer) mount(rootfs string, m configs.Mount) error {
	dest, err := resolveDest(rootfs, m.Destination)
	if err != nil {
		return err
	}

	switch m.Type {
	case "proc", "sysfs":
		if err := os.MkdirAll(dest, 0o755); err != nil {
			return err
		}
		return p.Sys.Mount(m.Type, dest, m.Type, 0, "")
	case "tmpfs":
		if err := os.MkdirAll(dest, 0o755); err != nil {
			return err
		}
		return p.Sys.Mount("tmpfs", dest, "tmpfs", 0, strings.Join(m.Options, ","))
	case "devpts":
		if err := os.MkdirAll(dest, 0o755); err != nil {
			return err
		}
		return p.Sys.Mount("devpts", dest, "devpts", 0, "newinstance,ptmxmode=0666,mode=0620")
	case "mqueue":
		if err := os.MkdirAll(dest, 0o755); err != nil {
			return err
		}
		return p.Sys.Mount("mqueue", dest, "mqueue", 0, "")
	case "cgroup":
		return p.mountCgroup(dest, m)
	default:
		return p.bindMount(dest, m)
	}
}

// bindMount handles a plain bind mount: the source must exist before the
// mount is attempted (spec.md §4.3 edge case), and the destination is
// created as a file or directory to match the source's kind.
func (p *Preparer) bindMount(dest string, m configs.Mount) error {
	info, err := os.Stat(m.Source)
	if err != nil {
		return fmt.Errorf("bind mount source %s: %w", m.Source, err)
	}
	if info.IsDir() {
		if err := os.MkdirAll(dest, 0o755); err != nil {
			return err
		}
	} else {
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		if err := fileutils.CreateIfNotExists(dest, false); err != nil {
			return err
		}
	}
	flags := uintptr(msBIND)
	if contains(m.Options, "rbind") {
		flags |= msREC
	}
	if err := p.Sys.Mount(m.Source, dest, "", flags, ""); err != nil {
		return err
	}
	if contains(m.Options, "ro") {
		return p.Sys.Mount("", dest, "", flags|msRemount|msRDONLY, "")
	}
	return nil
}

func (p *Preparer) mountCgroup(dest string, m configs.Mount) error {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}
	return p.Sys.Mount("cgroup", dest, "cgroup", 0, strings.Join(m.Options, ","))
}

func contains(opts []string, want string) bool {
	for _, o := range opts {
		if o == want {
			return true
		}
	}
	return false
}

// maskPath hides a path: a directory gets a read-only tmpfs mounted over
// it, anything else gets /dev/null bind-mounted over it, after an empty
// file is created there if the path is missing. A path that cannot be
// created is silently skipped.
func (p *Preparer) maskPath(rootfs, path string) error {
	dest, err := resolveDest(rootfs, path)
	if err != nil {
		return err
	}
	if info, statErr := os.Stat(dest); statErr == nil && info.IsDir() {
		return p.Sys.Mount("tmpfs", dest, "tmpfs", uintptr(msRDONLY), "")
	}
	if err := fileutils.CreateIfNotExists(dest, false); err != nil {
		return nil
	}
	return p.Sys.Mount("/dev/null", dest, "", uintptr(msBIND), "")
}

// readonlyPath bind-mounts then remounts MS_RDONLY, applied after all
// inner mounts complete per spec.md §4.3's edge case.
func (p *Preparer) readonlyPath(rootfs, path string) error {
	dest, err := resolveDest(rootfs, path)
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(dest); statErr != nil {
		return nil
	}
	if err := p.Sys.Mount(dest, dest, "", uintptr(msBIND|msREC), ""); err != nil {
		return err
	}
	return p.Sys.Mount("", dest, "", uintptr(msBIND|msREC|msRemount|msRDONLY), "")
}

// setupPtmx replaces rootfs/dev/ptmx with a symlink to pts/ptmx,
// matching the teacher's mount.SetupPtmx.
func (p *Preparer) setupPtmx(rootfs string) error {
	ptmx := filepath.Join(rootfs, "dev/ptmx")
	if err := os.Remove(ptmx); err != nil && !os.IsNotExist(err) {
		return err
	}
	return p.Sys.Symlink("pts/ptmx", ptmx)
}

// pivot performs step 7: pivot_root into rootfs, unmount the old root,
// chdir to /.
func (p *Preparer) pivot(rootfs string) error {
	oldRoot := filepath.Join(rootfs, ".pivot_root")
	if err := os.MkdirAll(oldRoot, 0o700); err != nil {
		return err
	}
	if err := p.Sys.PivotRoot(rootfs, oldRoot); err != nil {
		return fmt.Errorf("pivot_root: %w", err)
	}
	if err := p.Sys.Chdir("/"); err != nil {
		return err
	}
	putOld := "/.pivot_root"
	if err := p.Sys.Unmount(putOld, mntDetach); err != nil {
		return fmt.Errorf("unmount old root: %w", err)
	}
	return os.RemoveAll(putOld)
}
