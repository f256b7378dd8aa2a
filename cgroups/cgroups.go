// Package cgroups defines the uniform controller interface of spec.md
// §4.5/§4.9 (design notes): apply/set/freeze/thaw/stats/remove, dispatched
// across three backend implementations (fs, fs2, systemd) via a tagged
// variant rather than inheritance. It is grounded on the teacher's
// cgroups/fs package, generalized from a single v1-only implementation
// into the three-backend abstraction the spec requires.
package cgroups

import (
	"errors"
	"fmt"
	"os"

	"github.com/anyawal/corerun/configs"
)

// Manager is the uniform interface every cgroup backend implements.
type Manager interface {
	// Apply places pid into the container's cgroup(s), creating them
	// first if this is the first call.
	Apply(pid int) error

	// Set updates the resource limits of an already-applied cgroup.
	Set(r *configs.Resources) error

	// Freeze transitions the cgroup's freezer state (pause/resume).
	Freeze(state configs.FreezerState) error

	// Stats reads current resource counters.
	Stats() (*Stats, error)

	// Remove tears down the cgroup directory/scope. The kernel requires
	// it to be empty of tasks first.
	Remove() error

	// Path returns the filesystem path (v1: per subsystem, v2: unified)
	// backing this cgroup, for diagnostics and tests.
	Path(subsystem string) string
}

// notFoundError is returned by backends when a controller mount or
// cgroup directory is absent; it is not necessarily fatal, mirroring the
// teacher's cgroups.IsNotFound.
type notFoundError struct {
	subsystem string
}

func (e *notFoundError) Error() string {
	return fmt.Sprintf("mountpoint for %s not found", e.subsystem)
}

// NewNotFoundError builds the sentinel error IsNotFound recognizes.
func NewNotFoundError(subsystem string) error {
	return &notFoundError{subsystem: subsystem}
}

// IsNotFound reports whether err indicates a missing controller mount,
// which callers may treat as "this controller is unavailable" rather
// than fatal, matching the teacher's CpuGroup.Apply pattern.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var nf *notFoundError
	if errors.As(err, &nf) {
		return true
	}
	return os.IsNotExist(err)
}

// ThrottlingData mirrors cpu.stat's nr_periods/nr_throttled/throttled_time.
type ThrottlingData struct {
	Periods          uint64
	ThrottledPeriods uint64
	ThrottledTime    uint64
}

// CPUStats aggregates usage and throttling counters.
type CPUStats struct {
	ThrottlingData ThrottlingData
	UsageUsec      uint64
}

// MemoryStats aggregates the memory controller's current counters, as
// read by Stats().
type MemoryStats struct {
	Usage       uint64
	Limit       uint64
	MaxUsage    uint64
	Failcnt     uint64
	KernelUsage uint64
}

// PidsStats reports the pids controller's current/limit counters.
type PidsStats struct {
	Current uint64
	Limit   uint64
}

// BlkioStats reports per-device IO service counters.
type BlkioStats struct {
	IoServiceBytesRecursive []BlkioStatEntry
}

type BlkioStatEntry struct {
	Major uint64
	Minor uint64
	Op    string
	Value uint64
}

// Stats is the aggregate counter snapshot returned by Manager.Stats,
// matching the "Applying then reading cgroup resources yields equal
// values" round-trip property of spec.md §8.
type Stats struct {
	CPUStats    CPUStats
	MemoryStats MemoryStats
	PidsStats   PidsStats
	BlkioStats  BlkioStats
}
