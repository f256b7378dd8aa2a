package system

import "golang.org/x/sys/unix"

// RestoreParentDeathSignal re-arms PR_SET_PDEATHSIG after a uid/gid
// change clears it, matching the teacher's restoreParentDeathSignal in
// namespaces/init.go. Nothing in this module calls it: Init is started
// without a parent-death signal (see process/intermediate.go).
func RestoreParentDeathSignal(sig unix.Signal) error {
	if sig == 0 {
		return nil
	}
	return unix.Prctl(unix.PR_SET_PDEATHSIG, uintptr(sig), 0, 0, 0)
}
