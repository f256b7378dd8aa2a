package state

import "os"

// createDirAllWithMode creates dir (and any missing parents) with mode
// applied to the final component only, matching the reference runtime's
// helper of the same intent for console-socket and exec-fifo parent
// directories, where MkdirAll's single mode argument would otherwise also
// narrow the parents' permissions.
func createDirAllWithMode(dir string, mode os.FileMode) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.Chmod(dir, mode)
}

// CreateDirAllWithMode is the exported form other packages use (process,
// for the exec fifo's state directory).
func CreateDirAllWithMode(dir string, mode os.FileMode) error {
	return createDirAllWithMode(dir, mode)
}
