// Package syncpipe implements the typed synchronization channel described
// in spec.md §4.2: a bidirectional message pipe between the Caller,
// Intermediate, and Init roles of the process pipeline, built atop a
// socket-pair file descriptor inherited across fork. It generalizes the
// teacher's byte-oriented SyncPipe into a strict message protocol so each
// side can block on a specific milestone rather than racing on raw bytes.
package syncpipe

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// Kind identifies a milestone message. See spec.md §4.2 for the
// authoritative list; this type is the wire encoding of that list.
type Kind string

const (
	ChildReady     Kind = "child_ready"
	MappingWritten Kind = "mapping_written"
	CgroupJoined   Kind = "cgroup_joined"
	SetupComplete  Kind = "setup_complete"
	StartPlease    Kind = "start_please"
	ErrorMsg       Kind = "error"
)

// ErrorDetail carries the structured error payload of an ErrorMsg
// message, mirroring the Kind/Detail/stage fields of spec.md §7.
type ErrorDetail struct {
	Kind   string `json:"kind"`
	Stage  string `json:"stage,omitempty"`
	Detail string `json:"detail"`
}

// Message is a single milestone transmitted over the pipe, newline
// delimited JSON so either side can use bufio.Scanner.
type Message struct {
	Kind  Kind         `json:"kind"`
	Error *ErrorDetail `json:"error,omitempty"`
	// Pid carries the Init PID as observed in the Intermediate's (i.e.
	// the Caller's) pid namespace, set on the ChildReady message the
	// Intermediate sends after forking Init, per spec.md §4.2.
	Pid int `json:"pid,omitempty"`
}

// SyncPipe is one endpoint of the socket pair.
type SyncPipe struct {
	f       *os.File
	scanner *bufio.Scanner
}

// New creates a connected pair of pipe endpoints using a Unix domain
// socket pair, so both ends can read and write (the teacher's
// NewSyncPipeFromFd gave each side only one direction; the milestone
// protocol needs both directions on each end).
func New() (caller *SyncPipe, childSide *SyncPipe, err error) {
	fds, err := unix.Socketpair(unix.AF_LOCAL, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("socketpair: %w", err)
	}
	p := os.NewFile(uintptr(fds[1]), "sync-parent")
	c := os.NewFile(uintptr(fds[0]), "sync-child")
	return &SyncPipe{f: p, scanner: bufio.NewScanner(p)},
		&SyncPipe{f: c, scanner: bufio.NewScanner(c)}, nil
}

// FromFd wraps an inherited fd, used by the Intermediate/Init process
// after fork when it only has the raw fd number.
func FromFd(fd uintptr) *SyncPipe {
	f := os.NewFile(fd, "sync-child")
	return &SyncPipe{f: f, scanner: bufio.NewScanner(f)}
}

// File returns the underlying fd for passing across exec as an
// ExtraFile.
func (s *SyncPipe) File() *os.File {
	return s.f
}

// Send writes a milestone message, newline-terminated.
func (s *SyncPipe) Send(m Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = s.f.Write(data)
	return err
}

// SendError is a convenience for the common Error{kind,detail} message.
func (s *SyncPipe) SendError(kind, stage, detail string) error {
	return s.Send(Message{Kind: ErrorMsg, Error: &ErrorDetail{Kind: kind, Stage: stage, Detail: detail}})
}

// Recv blocks until the next message arrives or the deadline elapses.
// A zero deadline blocks indefinitely; a non-zero one enforces the
// caller's bounded operation timeout (spec.md §5).
func (s *SyncPipe) Recv(deadline time.Time) (Message, error) {
	if !deadline.IsZero() {
		if err := s.f.SetReadDeadline(deadline); err != nil {
			return Message{}, err
		}
		defer s.f.SetReadDeadline(time.Time{})
	}
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return Message{}, err
		}
		return Message{}, fmt.Errorf("sync pipe closed: EOF")
	}
	var m Message
	if err := json.Unmarshal(s.scanner.Bytes(), &m); err != nil {
		return Message{}, fmt.Errorf("decode sync message: %w", err)
	}
	return m, nil
}

// Expect reads the next message and requires it to be of kind want,
// propagating any Error message as a Go error instead.
func (s *SyncPipe) Expect(want Kind, deadline time.Time) (Message, error) {
	m, err := s.Recv(deadline)
	if err != nil {
		return m, err
	}
	if m.Kind == ErrorMsg {
		if m.Error != nil {
			return m, fmt.Errorf("%s: %s", m.Error.Kind, m.Error.Detail)
		}
		return m, fmt.Errorf("peer reported an error")
	}
	if m.Kind != want {
		return m, fmt.Errorf("expected %s milestone, got %s", want, m.Kind)
	}
	return m, nil
}

// Close closes this endpoint.
func (s *SyncPipe) Close() error {
	if s.f != nil {
		return s.f.Close()
	}
	return nil
}
