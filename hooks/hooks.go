// Package hooks implements the Hook Runner of spec.md §4.7: for each
// lifecycle hook, spawn the configured executable, write the current OCI
// state as JSON on its stdin, and enforce a timeout. A poststop hook's
// failure is logged but does not abort the enclosing operation; every
// other lifecycle point's hook failure does. Grounded on the teacher's
// os/exec usage in process.go (ProcessConfig.createCommand's Stdin/
// Stdout/Stderr wiring), generalized from "exec the container's own
// entrypoint" to "exec an external hook with the state document on
// stdin", a concern none of the example repos' in-tree packages cover,
// so this stays on exec.CommandContext from the standard library rather
// than reaching for a third-party process-supervision dependency (see
// DESIGN.md).
package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/anyawal/corerun/configs"
	"github.com/anyawal/corerun/state"
)

// defaultTimeout bounds a hook with no explicit timeout configured.
const defaultTimeout = 30 * time.Second

// Point identifies which hooks list to run.
type Point string

const (
	Prestart        Point = "prestart"
	CreateRuntime    Point = "createRuntime"
	CreateContainer Point = "createContainer"
	StartContainer  Point = "startContainer"
	Poststart       Point = "poststart"
	Poststop        Point = "poststop"
)

// list picks the configured hook list for a given lifecycle point.
func list(h *configs.Hooks, point Point) []configs.Hook {
	if h == nil {
		return nil
	}
	switch point {
	case Prestart:
		return h.Prestart
	case CreateRuntime:
		return h.CreateRuntime
	case CreateContainer:
		return h.CreateContainer
	case StartContainer:
		return h.StartContainer
	case Poststart:
		return h.Poststart
	case Poststop:
		return h.Poststop
	default:
		return nil
	}
}

// Error reports a single hook invocation's failure, carrying enough
// detail (which lifecycle point, which hook, its exit code) for a
// caller to build the HookFailed error spec.md §8 scenario 6 requires.
// ExitCode is -1 when the hook never produced an exit status (it timed
// out or could not be exec'd at all).
type Error struct {
	Point    Point
	Path     string
	ExitCode int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s hook %s: %s", e.Point, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Run executes every hook configured for point, in order, feeding each
// one the current OCI state as JSON on stdin. A non-poststop failure
// stops the run and returns an *Error immediately; a poststop failure is
// logged at warning level and the remaining poststop hooks still run.
func Run(ctx context.Context, h *configs.Hooks, point Point, st state.OCIState) error {
	stateJSON, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal hook state: %w", err)
	}

	for _, hook := range list(h, point) {
		code, err := runOne(ctx, hook, stateJSON)
		if err == nil {
			continue
		}
		if point == Poststop {
			logrus.WithError(err).WithField("path", hook.Path).Warn("poststop hook failed")
			continue
		}
		return &Error{Point: point, Path: hook.Path, ExitCode: code, Err: err}
	}
	return nil
}

// runOne runs a single hook and reports its exit code alongside any
// error, so a non-zero exit can be distinguished from a timeout or an
// exec failure that never produced one.
func runOne(ctx context.Context, hook configs.Hook, stateJSON []byte) (int, error) {
	timeout := defaultTimeout
	if hook.Timeout != nil {
		timeout = time.Duration(*hook.Timeout) * time.Second
	}
	hookCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := hook.Args
	if len(args) == 0 {
		args = []string{hook.Path}
	}
	cmd := exec.CommandContext(hookCtx, hook.Path, args[1:]...)
	cmd.Env = hook.Env
	cmd.Stdin = bytes.NewReader(stateJSON)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if hookCtx.Err() == context.DeadlineExceeded {
			return -1, fmt.Errorf("timed out after %s", timeout)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), fmt.Errorf("%s", stderr.String())
		}
		return -1, fmt.Errorf("%w: %s", err, stderr.String())
	}
	return 0, nil
}
