package corerun

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/anyawal/corerun/cgroups"
	"github.com/anyawal/corerun/configs"
	"github.com/anyawal/corerun/hooks"
	"github.com/anyawal/corerun/process"
	"github.com/anyawal/corerun/state"
)

// Container is a single on-disk container record plus, while this
// process is the one driving it, the live handles (cgroup manager,
// process pipeline result) needed to act on it further. A Container
// loaded purely to answer `state`/`kill`/`delete` has nil cgroup/proc
// fields; they are only populated across the single create() call that
// builds the thing.
type Container struct {
	factory *Factory
	state   *state.State
	cgroup  cgroups.Manager
	proc    *process.Result
}

// ID returns the container's identifier.
func (c *Container) ID() string { return c.state.ID }

// CreateOptions carries the per-invocation knobs create() accepts
// beyond the parsed bundle configuration itself.
type CreateOptions struct {
	ConsoleSocket string
}

// Create implements spec.md §4.1's create(id, bundle_path, options):
// validate the config, provision cgroups empty of processes, fork the
// process pipeline, wait for Init to finish setup, then durably persist
// a Created record. Hooks run at createRuntime (before cgroup/process
// setup) and createContainer (after Init reports setup complete, before
// the record is written), matching the OCI hook-point contract.
func (f *Factory) Create(id, bundlePath string, cfg *configs.Config, opts CreateOptions) (*Container, error) {
	log := logrus.WithFields(logFields(id, "create"))

	if id == "" {
		return nil, newError(InvalidConfig, "container id must not be empty", nil)
	}
	if f.Store.Exists(id) {
		return nil, newError(AlreadyExists, fmt.Sprintf("container %s already exists", id), nil)
	}
	if err := f.Validator.Validate(cfg); err != nil {
		return nil, newError(InvalidConfig, err.Error(), err)
	}
	cfg.BundlePath = bundlePath

	lock, err := f.Store.AcquireLock(id, lockTimeout)
	if err != nil {
		if err == state.ErrBusy {
			return nil, newError(Busy, "acquire container lock", err)
		}
		return nil, newError(SystemError, "acquire container lock", err)
	}
	defer lock.Unlock()

	provisionalState := state.ProvisionalState(id, state.Creating, bundlePath)
	if err := hooks.Run(context.Background(), cfg.Hooks, hooks.CreateRuntime, provisionalState); err != nil {
		return nil, hookErr(err)
	}

	cgroupMgr, cgroupPath, err := f.newCgroupManager(id, &cfg.Linux)
	if err != nil {
		return nil, setupFailed("cgroup", err.Error(), err)
	}

	result, err := process.Start(&process.Bootstrap{
		Config:        cfg,
		StateDir:      f.Store.Root + "/" + id,
		ConsoleSocket: opts.ConsoleSocket,
	})
	if err != nil {
		cgroupMgr.Remove()
		return nil, setupFailed("namespace", err.Error(), err)
	}

	if err := cgroupMgr.Apply(result.Pid); err != nil {
		result.Pipe.SendError("cgroup", "caller", err.Error())
		killPipeline(result)
		cgroupMgr.Remove()
		return nil, setupFailed("cgroup", err.Error(), err)
	}

	if err := result.FinishSetup(); err != nil {
		killPipeline(result)
		cgroupMgr.Remove()
		return nil, setupFailed("rootfs", err.Error(), err)
	}

	st := &state.State{
		ID:            id,
		Status:        state.Created,
		Pid:           result.Pid,
		Bundle:        bundlePath,
		Rootfs:        cfg.Rootfs(),
		Created:       time.Now(),
		Owner:         state.Owner{UID: os.Getuid(), GID: os.Getgid()},
		Annotations:   cfg.Annotations,
		CgroupPath:    cgroupPath,
		InitStartTime: startTime(result.Pid),
	}

	if err := hooks.Run(context.Background(), cfg.Hooks, hooks.CreateContainer, st.ToOCIState()); err != nil {
		killPipeline(result)
		cgroupMgr.Remove()
		return nil, hookErr(err)
	}

	configJSON, err := json.Marshal(cfg)
	if err != nil {
		killPipeline(result)
		cgroupMgr.Remove()
		return nil, newError(SystemError, "marshal config snapshot", err)
	}
	if err := f.Store.Create(st, configJSON); err != nil {
		killPipeline(result)
		cgroupMgr.Remove()
		return nil, newError(SystemError, "persist state record", err)
	}

	log.WithField("pid", result.Pid).Info("container created")
	return &Container{factory: f, state: st, cgroup: cgroupMgr, proc: result}, nil
}

// killPipeline is the rollback helper used when create() fails after
// Init has already been forked: it asks Init to die rather than leave
// it parked on the exec fifo forever.
func killPipeline(r *process.Result) {
	unix.Kill(r.Pid, unix.SIGKILL)
	r.Wait()
}

// startTime reads /proc/<pid>/stat's starttime field, used to
// disambiguate a reused PID before trusting a later kill -0 probe.
func startTime(pid int) string {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return ""
	}
	fields := splitStatFields(string(data))
	if len(fields) < 22 {
		return ""
	}
	return fields[21]
}

// splitStatFields splits /proc/<pid>/stat on spaces, outside of the
// parenthesized comm field which may itself contain spaces.
func splitStatFields(stat string) []string {
	close := -1
	for i := len(stat) - 1; i >= 0; i-- {
		if stat[i] == ')' {
			close = i
			break
		}
	}
	if close == -1 {
		return nil
	}
	rest := stat[close+1:]
	fields := []string{"", ""}
	cur := ""
	for _, r := range rest {
		if r == ' ' {
			if cur != "" {
				fields = append(fields, cur)
				cur = ""
			}
			continue
		}
		cur += string(r)
	}
	if cur != "" {
		fields = append(fields, cur)
	}
	return fields
}

// Start implements spec.md §4.1's start(id): requires Created, runs
// prestart/startContainer hooks, signals Init via the exec fifo, and
// advances status to Running. Per the OPEN QUESTIONS pin, a hook
// failure at this point advances the record to Stopped and kills the
// already-forked Init rather than leaving it parked in Created.
func (c *Container) Start() error {
	log := logrus.WithFields(logFields(c.state.ID, "start"))

	lock, err := c.factory.Store.AcquireLock(c.state.ID, lockTimeout)
	if err != nil {
		return lockErr(err)
	}
	defer lock.Unlock()

	if c.state.Status != state.Created {
		return newError(InvalidState, fmt.Sprintf("cannot start container in state %s", c.state.Status), nil)
	}

	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}

	ociSt := c.state.ToOCIState()
	if err := hooks.Run(context.Background(), cfg.Hooks, hooks.Prestart, ociSt); err != nil {
		return c.failStart(cfg, err)
	}
	if err := hooks.Run(context.Background(), cfg.Hooks, hooks.StartContainer, ociSt); err != nil {
		return c.failStart(cfg, err)
	}

	if err := process.SignalStart(c.fifoPath()); err != nil {
		return c.failStart(cfg, execFailed("write exec fifo", err))
	}

	c.state.Status = state.Running
	if err := c.factory.Store.Save(c.state); err != nil {
		return newError(SystemError, "persist running state", err)
	}

	if err := hooks.Run(context.Background(), cfg.Hooks, hooks.Poststart, c.state.ToOCIState()); err != nil {
		log.WithError(err).Warn("poststart hook failed")
		return c.failStart(cfg, err)
	}

	log.Info("container started")
	return nil
}

func (c *Container) failStart(cfg *configs.Config, cause error) error {
	unix.Kill(c.state.Pid, unix.SIGKILL)
	c.state.Status = state.Stopped
	c.factory.Store.Save(c.state)
	return hookErr(cause)
}

// hookErr converts a hook-failure cause into the HookFailed error kind
// spec.md §4.1/§8 scenario 6 require, carrying the failing hook's name
// and exit code when available rather than flattening every hook
// failure into a generic SetupFailed.
func hookErr(cause error) *Error {
	if e, ok := cause.(*Error); ok {
		return e
	}
	var hErr *hooks.Error
	if errors.As(cause, &hErr) {
		return hookFailed(string(hErr.Point), hErr.ExitCode, hErr.Error())
	}
	return setupFailed("hooks", cause.Error(), cause)
}

func (c *Container) fifoPath() string {
	return process.FifoPath(c.factory.Store.Root + "/" + c.state.ID)
}

func (c *Container) loadConfig() (*configs.Config, error) {
	data, err := c.factory.Store.LoadConfig(c.state.ID)
	if err != nil {
		return nil, newError(SystemError, "load config snapshot", err)
	}
	var cfg configs.Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, newError(SystemError, "parse config snapshot", err)
	}
	return &cfg, nil
}

// State implements spec.md §4.1's state(id): before returning, probes
// the init process with signal 0 and transitions a dead process to
// Stopped, per the testable property that kill -0 succeeds for every
// Created/Running record at read time.
func (c *Container) State() (state.OCIState, error) {
	lock, err := c.factory.Store.AcquireLock(c.state.ID, lockTimeout)
	if err != nil {
		return state.OCIState{}, lockErr(err)
	}
	defer lock.Unlock()

	if c.state.Status == state.Created || c.state.Status == state.Running {
		if !c.alive() {
			c.state.Status = state.Stopped
			if err := c.factory.Store.Save(c.state); err != nil {
				return state.OCIState{}, newError(SystemError, "persist stopped state", err)
			}
		}
	}
	return c.state.ToOCIState(), nil
}

// alive sends signal 0 to the init PID, trusting the result only if
// /proc/<pid>/stat's starttime still matches the value recorded at
// create time, guarding against PID reuse.
func (c *Container) alive() bool {
	if c.state.Pid == 0 {
		return false
	}
	if err := unix.Kill(c.state.Pid, 0); err != nil {
		return false
	}
	if c.state.InitStartTime == "" {
		return true
	}
	return startTime(c.state.Pid) == c.state.InitStartTime
}

// Kill implements spec.md §4.1's kill(id, signal): requires
// Created/Running, sends the signal, does not wait for exit.
func (c *Container) Kill(sig unix.Signal) error {
	lock, err := c.factory.Store.AcquireLock(c.state.ID, lockTimeout)
	if err != nil {
		return lockErr(err)
	}
	defer lock.Unlock()

	if c.state.Status != state.Created && c.state.Status != state.Running {
		return newError(InvalidState, fmt.Sprintf("cannot signal container in state %s", c.state.Status), nil)
	}
	if err := unix.Kill(c.state.Pid, sig); err != nil {
		return newError(SystemError, "send signal", err)
	}
	return nil
}

// DeleteOptions carries delete()'s --force switch.
type DeleteOptions struct {
	Force bool
}

// Delete implements spec.md §4.1's delete(id): requires Stopped unless
// Force is set (the OPEN QUESTIONS pin: Running without --force is an
// error, matching runtime-spec guidance), removes the cgroup, runs
// poststop hooks, and erases the state record.
func (c *Container) Delete(opts DeleteOptions) error {
	log := logrus.WithFields(logFields(c.state.ID, "delete"))

	lock, err := c.factory.Store.AcquireLock(c.state.ID, lockTimeout)
	if err != nil {
		return lockErr(err)
	}

	if c.state.Status != state.Stopped && !opts.Force {
		lock.Unlock()
		return newError(InvalidState, "container is still running, pass --force", nil)
	}
	if c.state.Status != state.Stopped && opts.Force {
		unix.Kill(c.state.Pid, unix.SIGKILL)
		for i := 0; i < 50 && c.alive(); i++ {
			time.Sleep(20 * time.Millisecond)
		}
	}

	cfg, cfgErr := c.loadConfig()

	if cgroupMgr, _, err := c.factory.newCgroupManager(c.state.ID, cgroupLinuxOf(cfg)); err == nil {
		cgroupMgr.Remove()
	}

	if cfgErr == nil {
		hooks.Run(context.Background(), cfg.Hooks, hooks.Poststop, c.state.ToOCIState())
	}

	if err := c.factory.Store.Remove(c.state.ID); err != nil {
		lock.Unlock()
		return newError(SystemError, "remove state directory", err)
	}
	// The lock file itself lived inside the directory just removed;
	// there is nothing left to unlock on disk, only the in-memory fd.
	lock.Unlock()

	log.Info("container deleted")
	return nil
}

// cgroupLinuxOf extracts the linux stanza needed to rebuild a cgroup
// manager at delete time, tolerating a missing config snapshot (the
// container directory may be partially constructed after a prior
// failure) by returning an empty one.
func cgroupLinuxOf(cfg *configs.Config) *configs.Linux {
	if cfg == nil {
		return &configs.Linux{}
	}
	return &cfg.Linux
}

// Pause implements the paused-execution half of spec.md §4.5's freezer
// integration: freeze every task in the container's cgroup.
func (c *Container) Pause() error {
	return c.withCgroup(func(mgr cgroups.Manager) error {
		return mgr.Freeze(configs.Frozen)
	})
}

// Resume thaws a previously paused container's cgroup.
func (c *Container) Resume() error {
	return c.withCgroup(func(mgr cgroups.Manager) error {
		return mgr.Freeze(configs.Thawed)
	})
}

func (c *Container) withCgroup(fn func(cgroups.Manager) error) error {
	lock, err := c.factory.Store.AcquireLock(c.state.ID, lockTimeout)
	if err != nil {
		return lockErr(err)
	}
	defer lock.Unlock()

	if c.state.Status != state.Running {
		return newError(InvalidState, fmt.Sprintf("cannot pause/resume container in state %s", c.state.Status), nil)
	}
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	mgr, _, err := c.factory.newCgroupManager(c.state.ID, &cfg.Linux)
	if err != nil {
		return setupFailed("cgroup", err.Error(), err)
	}
	if err := fn(mgr); err != nil {
		return setupFailed("cgroup", err.Error(), err)
	}
	return nil
}

// Stats reports the container's current cgroup resource counters, used
// by the `ps` CLI command.
func (c *Container) Stats() (*cgroups.Stats, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	mgr, _, err := c.factory.newCgroupManager(c.state.ID, &cfg.Linux)
	if err != nil {
		return nil, setupFailed("cgroup", err.Error(), err)
	}
	stats, err := mgr.Stats()
	if err != nil {
		return nil, newError(SystemError, "read cgroup stats", err)
	}
	return stats, nil
}

func lockErr(err error) error {
	if err == state.ErrBusy {
		return newError(Busy, "acquire container lock", err)
	}
	return newError(SystemError, "acquire container lock", err)
}
