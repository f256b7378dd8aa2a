// Package system is the narrow capability interface of spec.md §2.1: a
// façade over privileged Linux operations the runtime needs (mount,
// pivot_root, unshare, setns, sethostname, chroot, chdir, prctl, mknod,
// symlink), existing solely so a test double can be substituted for it.
// Capability sets are not part of it: package capabilities changes them
// directly. Grounded on the teacher's own system/ usage
// pattern (referenced throughout namespaces/init.go as
// "github.com/dotcloud/docker/pkg/system"), rebuilt here against
// golang.org/x/sys/unix instead of raw syscall so the same calls work
// across the kernel ABI surface the teacher's pkg/system wrapped.
package system

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Syscaller is implemented by Linux and by a test double; the rootfs
// preparer's mount, pivot_root, mknod and symlink calls go through it so
// its tests can run without CAP_SYS_ADMIN.
type Syscaller interface {
	Mount(source, target, fstype string, flags uintptr, data string) error
	Unmount(target string, flags int) error
	PivotRoot(newRoot, putOld string) error
	Unshare(flags int) error
	Setns(fd int, nstype int) error
	Sethostname(name string) error
	Chroot(dir string) error
	Chdir(dir string) error
	Prctl(option int, arg2, arg3, arg4, arg5 uintptr) error
	Mknod(path string, mode uint32, dev int) error
	Symlink(oldname, newname string) error
}

// Linux is the real Syscaller, backing production use.
type Linux struct{}

func (Linux) Mount(source, target, fstype string, flags uintptr, data string) error {
	return unix.Mount(source, target, fstype, flags, data)
}

func (Linux) Unmount(target string, flags int) error {
	return unix.Unmount(target, flags)
}

func (Linux) PivotRoot(newRoot, putOld string) error {
	return unix.PivotRoot(newRoot, putOld)
}

func (Linux) Unshare(flags int) error {
	return unix.Unshare(flags)
}

func (Linux) Setns(fd int, nstype int) error {
	_, _, errno := unix.Syscall(unix.SYS_SETNS, uintptr(fd), uintptr(nstype), 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func (Linux) Sethostname(name string) error {
	return unix.Sethostname([]byte(name))
}

func (Linux) Chroot(dir string) error {
	return unix.Chroot(dir)
}

func (Linux) Chdir(dir string) error {
	return unix.Chdir(dir)
}

func (Linux) Prctl(option int, arg2, arg3, arg4, arg5 uintptr) error {
	_, _, errno := unix.Syscall6(unix.SYS_PRCTL, uintptr(option), arg2, arg3, arg4, arg5, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func (Linux) Mknod(path string, mode uint32, dev int) error {
	return unix.Mknod(path, mode, dev)
}

func (Linux) Symlink(oldname, newname string) error {
	return os.Symlink(oldname, newname)
}

// SetKeepCaps / ClearKeepCaps toggle SECBIT_KEEP_CAPS-equivalent
// behavior via PR_SET_KEEPCAPS, used before a uid change in a user
// namespace so capabilities aren't dropped by the uid switch itself.
func SetKeepCaps() error {
	_, _, errno := unix.Syscall6(unix.SYS_PRCTL, unix.PR_SET_KEEPCAPS, 1, 0, 0, 0, 0)
	if errno != 0 {
		return fmt.Errorf("prctl(PR_SET_KEEPCAPS): %w", errno)
	}
	return nil
}

func ClearKeepCaps() error {
	_, _, errno := unix.Syscall6(unix.SYS_PRCTL, unix.PR_SET_KEEPCAPS, 0, 0, 0, 0, 0)
	if errno != 0 {
		return fmt.Errorf("prctl(PR_SET_KEEPCAPS): %w", errno)
	}
	return nil
}

// SetNoNewPrivs sets PR_SET_NO_NEW_PRIVS, required before installing a
// seccomp filter as a non-root user and by spec.md §4.2's ordering
// contract ("NO_NEW_PRIVS must be set before seccomp").
func SetNoNewPrivs() error {
	_, _, errno := unix.Syscall6(unix.SYS_PRCTL, unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0, 0)
	if errno != 0 {
		return fmt.Errorf("prctl(PR_SET_NO_NEW_PRIVS): %w", errno)
	}
	return nil
}
