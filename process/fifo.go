package process

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/anyawal/corerun/state"
)

const execFifoName = "exec.fifo"

// FifoPath returns the exec fifo path for a container's state
// directory, exported so callers outside this package (the start
// operation, invoked from a separate process than the one that
// called Start and populated a Result.Fifo) can locate it without
// duplicating the file name.
func FifoPath(stateDir string) string {
	return filepath.Join(stateDir, execFifoName)
}

// createExecFifo makes the named pipe Init blocks on in place of the
// syncpipe's StartPlease milestone, needed because the syncpipe's fds
// close when the Caller (the `create` invocation) exits, while Init must
// keep waiting across the separate `start` invocation. This is the
// reference runtime's well known exec-fifo technique; spec.md §4.2
// describes StartPlease as a channel message, which this realizes across
// process-invocation boundaries rather than within the single `create`
// call the syncpipe itself spans.
func createExecFifo(stateDir string) (string, error) {
	if err := state.CreateDirAllWithMode(stateDir, 0o711); err != nil {
		return "", err
	}
	path := FifoPath(stateDir)
	if err := unix.Mkfifo(path, 0o622); err != nil {
		return "", fmt.Errorf("create exec fifo: %w", err)
	}
	return path, nil
}

// openExecFifoWriteOnly is used by the `start` operation to unblock
// Init's read; writing a single byte satisfies Init's read(2) and lets
// it proceed past StartPlease.
func openExecFifoWriteOnly(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_WRONLY, 0)
}

// openExecFifoRDWR is used by Init to acquire its end of the fifo before
// pivot_root makes the path unreachable. Opening O_RDWR never blocks
// regardless of whether a peer has opened the other end yet (unlike a
// plain O_RDONLY open, which would stall Init's entire setup sequence);
// Init keeps the resulting fd and reads one byte from it later, once
// setup is complete, without needing to resolve the path again.
func openExecFifoRDWR(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_RDWR, 0)
}

// SignalStart opens the exec fifo for writing and sends a single byte,
// the cross-invocation equivalent of sending StartPlease.
func SignalStart(fifoPath string) error {
	f, err := openExecFifoWriteOnly(fifoPath)
	if err != nil {
		return fmt.Errorf("open exec fifo: %w", err)
	}
	defer f.Close()
	_, err = f.Write([]byte{0})
	return err
}

// waitExecFifo blocks on an already-open fifo fd (acquired before
// pivot_root via openExecFifoRDWR) until a single byte arrives.
func waitExecFifo(f *os.File) error {
	buf := make([]byte, 1)
	_, err := f.Read(buf)
	return err
}

// removeExecFifo deletes the fifo once Init has execed or the container
// is being torn down.
func removeExecFifo(stateDir string) error {
	return os.Remove(FifoPath(stateDir))
}
