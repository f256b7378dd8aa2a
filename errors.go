package corerun

import "fmt"

// Kind identifies the category of a Error, per spec.md §7.
type Kind int

const (
	SystemError Kind = iota
	InvalidConfig
	AlreadyExists
	NotFound
	InvalidState
	Busy
	SetupFailed
	ExecFailed
	HookFailed
)

func (k Kind) String() string {
	switch k {
	case InvalidConfig:
		return "InvalidConfig"
	case AlreadyExists:
		return "AlreadyExists"
	case NotFound:
		return "NotFound"
	case InvalidState:
		return "InvalidState"
	case Busy:
		return "Busy"
	case SetupFailed:
		return "SetupFailed"
	case ExecFailed:
		return "ExecFailed"
	case HookFailed:
		return "HookFailed"
	default:
		return "SystemError"
	}
}

// Error is the structured error type every corerun operation returns,
// carrying enough detail for the CLI's --log-format json record.
type Error struct {
	Kind   Kind
	Stage  string // set for SetupFailed: cgroup, namespace, rootfs, hooks, capability, seccomp
	Name   string // set for HookFailed: the hook's lifecycle point
	Code   int    // set for HookFailed: the hook's exit code
	Detail string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Stage != "":
		return fmt.Sprintf("%s(%s): %s", e.Kind, e.Stage, e.Detail)
	case e.Name != "":
		return fmt.Sprintf("%s(%s, exit=%d): %s", e.Kind, e.Name, e.Code, e.Detail)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

func setupFailed(stage, detail string, err error) *Error {
	return &Error{Kind: SetupFailed, Stage: stage, Detail: detail, Err: err}
}

func hookFailed(name string, code int, detail string) *Error {
	return &Error{Kind: HookFailed, Name: name, Code: code, Detail: detail}
}

func execFailed(detail string, err error) *Error {
	return &Error{Kind: ExecFailed, Detail: detail, Err: err}
}
