// Package checkpoint supplements spec.md's construction pipeline with
// the checkpoint/restore surface present in both the teacher
// (nsinit/checkpoint.go, nsinit/restore.go, nsinit/cr_common.go) and the
// original Rust reference runtime, dropped by the distillation because
// it is adjacent to, not part of, container construction. It treats
// criu(8) as an external collaborator process exactly as the teacher's
// runCriu did when it shelled out to a "CRIU_BINARY", except the
// transport here is the RPC protocol github.com/checkpoint-restore/go-criu/v5
// speaks to a running criu swrk service rather than parsed argv/stdout.
package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"

	criu "github.com/checkpoint-restore/go-criu/v5"
	"github.com/checkpoint-restore/go-criu/v5/rpc"
)

// Options mirrors the nsinit restore command's flag set.
type Options struct {
	ImagesDirectory string
	WorkDirectory   string
	TCPEstablished  bool
	ExternalUnixSK  bool
	ShellJob        bool
	LeaveRunning    bool
}

func boolPtr(b bool) *bool       { return &b }
func int32Ptr(i int32) *int32    { return &i }
func stringPtr(s string) *string { return &s }

// Dump checkpoints the container's init process tree (and everything
// under its cgroup) into opts.ImagesDirectory, matching the teacher's
// checkpointAction: create the image directory, then hand the PID and
// directory to CRIU.
func Dump(pid int, opts Options) error {
	if err := os.MkdirAll(opts.ImagesDirectory, 0o700); err != nil {
		return fmt.Errorf("create images directory: %w", err)
	}
	imagesFd, err := os.Open(opts.ImagesDirectory)
	if err != nil {
		return fmt.Errorf("open images directory: %w", err)
	}
	defer imagesFd.Close()

	c := criu.MakeCriu()
	criuOpts := &rpc.CriuOpts{
		ImagesDirFd:    int32Ptr(int32(imagesFd.Fd())),
		Pid:            int32Ptr(int32(pid)),
		LeaveRunning:   boolPtr(opts.LeaveRunning),
		TcpEstablished: boolPtr(opts.TCPEstablished),
		ExtUnixSk:      boolPtr(opts.ExternalUnixSK),
		ShellJob:       boolPtr(opts.ShellJob),
		LogFile:        stringPtr(filepath.Join(opts.ImagesDirectory, "dump.log")),
		LogLevel:       int32Ptr(4),
	}
	return c.Dump(criuOpts, criu.NoNotify{})
}

// Restore re-creates a process tree from a previous Dump's images
// directory. It only drives CRIU: it does not create or update a
// container state record, and neither does the restore CLI command
// that calls it.
func Restore(opts Options) error {
	imagesFd, err := os.Open(opts.ImagesDirectory)
	if err != nil {
		return fmt.Errorf("open images directory: %w", err)
	}
	defer imagesFd.Close()

	c := criu.MakeCriu()
	criuOpts := &rpc.CriuOpts{
		ImagesDirFd:    int32Ptr(int32(imagesFd.Fd())),
		TcpEstablished: boolPtr(opts.TCPEstablished),
		ExtUnixSk:      boolPtr(opts.ExternalUnixSK),
		ShellJob:       boolPtr(opts.ShellJob),
		LogFile:        stringPtr(filepath.Join(opts.ImagesDirectory, "restore.log")),
		LogLevel:       int32Ptr(4),
	}
	if opts.WorkDirectory != "" {
		workFd, err := os.Open(opts.WorkDirectory)
		if err == nil {
			defer workFd.Close()
			criuOpts.WorkDirFd = int32Ptr(int32(workFd.Fd()))
		}
	}
	return c.Restore(criuOpts, criu.NoNotify{})
}
