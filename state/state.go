// Package state defines the persisted per-container record of spec.md
// §3/§4.6 and the Store that mediates concurrent access to it. It is
// grounded on the teacher's state.go Status enum, generalized to the
// four-state OCI DAG (Creating -> Created -> Running -> Stopped) and to
// the on-disk JSON document of spec.md §6.
package state

import (
	"time"

	specs "github.com/opencontainers/runtime-spec/specs-go"
)

// Status is one of the four lifecycle states. Transitions are linear and
// irreversible: Creating -> Created -> Running -> Stopped.
type Status int

const (
	Creating Status = iota
	Created
	Running
	Stopped
)

func (s Status) String() string {
	switch s {
	case Creating:
		return "creating"
	case Created:
		return "created"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

func (s Status) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

func (s *Status) UnmarshalJSON(data []byte) error {
	str := string(data)
	switch str {
	case `"creating"`:
		*s = Creating
	case `"created"`:
		*s = Created
	case `"running"`:
		*s = Running
	case `"stopped"`:
		*s = Stopped
	default:
		*s = Creating
	}
	return nil
}

// OCIState is the wire document returned by the `state` operation. It is
// the real github.com/opencontainers/runtime-spec State type rather than
// a hand-rolled mirror of spec.md §6's schema, since the two are the
// same document by construction.
type OCIState = specs.State

// State is the full, runtime-private record persisted to state.json. It
// embeds everything OCIState needs plus the fields spec.md §3 requires
// for internal bookkeeping (created time, owner, rootfs, cgroup path).
type State struct {
	ID          string            `json:"id"`
	Status      Status            `json:"status"`
	Pid         int               `json:"pid,omitempty"`
	Bundle      string            `json:"bundle"`
	Rootfs      string            `json:"rootfs"`
	Created     time.Time         `json:"created"`
	Owner       Owner             `json:"owner"`
	Annotations map[string]string `json:"annotations,omitempty"`
	CgroupPath  string            `json:"cgroupPath,omitempty"`
	// InitStartTime disambiguates a reused PID: the kernel's
	// /proc/<pid>/stat starttime field at the moment the record was
	// written, compared again before a kill -0 probe is trusted.
	InitStartTime string `json:"initStartTime,omitempty"`
}

// Owner is the numeric uid/gid of the process that ran create().
type Owner struct {
	UID int `json:"uid"`
	GID int `json:"gid"`
}

const ociVersion = "1.0.2"

// ToOCIState projects the runtime-private record down to the public OCI
// state schema of spec.md §6.
func (s *State) ToOCIState() OCIState {
	return OCIState{
		Version:     ociVersion,
		ID:          s.ID,
		Status:      specs.ContainerState(s.Status.String()),
		Pid:         s.Pid,
		Bundle:      s.Bundle,
		Annotations: s.Annotations,
	}
}

// ProvisionalState builds the OCI state document for a container that
// has not yet been durably recorded (the createRuntime hook point runs
// before create() writes anything to disk).
func ProvisionalState(id string, status Status, bundle string) OCIState {
	return OCIState{Version: ociVersion, ID: id, Status: specs.ContainerState(status.String()), Bundle: bundle}
}
