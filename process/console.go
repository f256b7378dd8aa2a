// Console allocation, supplementing spec.md §4.2 (which is silent on
// terminal handling) per SPEC_FULL.md §4.9: a pty master is opened by
// the Caller, its fd sent over the --console-socket unix socket to
// whatever external process asked for one (the standard OCI runtime
// convention), and the slave path handed down to Init so it can become
// the container process's controlling terminal. Grounded on the
// teacher's console package (linuxConsole: open /dev/ptmx, ptsname,
// unlockpt, Dup onto stdio, Setctty), rebuilt against
// github.com/containerd/console, the library the modern ecosystem
// converged on in place of the teacher's hand-rolled ioctl wrappers.
package process

import (
	"fmt"
	"net"
	"os"

	"github.com/containerd/console"
	"golang.org/x/sys/unix"
)

// allocateConsole opens a new pty pair for a container whose
// process.terminal is true.
func allocateConsole() (console.Console, string, error) {
	return console.NewPty()
}

// sendConsoleFD hands the pty master's fd to the caller-supplied
// console socket via SCM_RIGHTS, then closes the runtime's own copy
// once sent (the receiving process owns it from here on).
func sendConsoleFD(socketPath string, master console.Console) error {
	f, ok := master.(interface{ Fd() uintptr })
	if !ok {
		return fmt.Errorf("console master has no fd")
	}

	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return fmt.Errorf("dial console socket %s: %w", socketPath, err)
	}
	defer conn.Close()
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		return fmt.Errorf("%s is not a unix socket", socketPath)
	}

	rights := unix.UnixRights(int(f.Fd()))
	if _, _, err := uc.WriteMsgUnix([]byte("console"), rights, nil); err != nil {
		return err
	}
	return master.Close()
}

// setupConsoleInInit runs inside Init: opens the pty slave by path and
// makes it the process's stdio and controlling terminal.
func setupConsoleInInit(slavePath string) error {
	slave, err := os.OpenFile(slavePath, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("open console slave %s: %w", slavePath, err)
	}
	defer slave.Close()

	if err := unix.Dup2(int(slave.Fd()), 0); err != nil {
		return err
	}
	if err := unix.Dup2(int(slave.Fd()), 1); err != nil {
		return err
	}
	if err := unix.Dup2(int(slave.Fd()), 2); err != nil {
		return err
	}
	if _, err := unix.IoctlSetInt(int(slave.Fd()), unix.TIOCSCTTY, 0); err != nil {
		return fmt.Errorf("set controlling terminal: %w", err)
	}
	return nil
}
