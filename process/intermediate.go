package process

import (
	"os"
	"os/exec"
	"strconv"
	"syscall"

	"github.com/anyawal/corerun/configs"
	"github.com/anyawal/corerun/namespaces"
	"github.com/anyawal/corerun/syncpipe"
	"github.com/anyawal/corerun/system"
)

// RunIntermediate is the entry point cmd/corerun dispatches to when
// Stage() == stageIntermed. It already runs inside every namespace the
// Caller's clone() call created (everything but pid); its job is to
// exchange the MappingWritten milestone, join any config-specified
// joined namespaces, fork Init into a fresh pid namespace, and relay
// Init's pid back to the Caller, then exit so Init is reparented.
func RunIntermediate() int {
	pipe := syncpipe.FromFd(3)
	defer pipe.Close()

	cfgFile := os.NewFile(4, "corerun-config")
	cfg, err := readConfig(cfgFile)
	cfgFile.Close()
	if err != nil {
		pipe.SendError("config", "intermediate", err.Error())
		return 1
	}

	if err := namespaces.Join(system.Linux{}, cfg.Linux.Namespaces); err != nil {
		pipe.SendError("namespace-join", "intermediate", err.Error())
		return 1
	}

	if err := pipe.Send(syncpipe.Message{Kind: syncpipe.ChildReady}); err != nil {
		return 1
	}
	if _, err := pipe.Expect(syncpipe.MappingWritten, noDeadline()); err != nil {
		return 1
	}

	pidFlag, err := strconv.Atoi(os.Getenv(envPidNSFlag))
	if err != nil {
		pipe.SendError("config", "intermediate", "bad pidns flag: "+err.Error())
		return 1
	}

	initCmd, initConfigR, err := buildInitCommand(cfg, pipe, pidFlag)
	if err != nil {
		pipe.SendError("fork", "intermediate", err.Error())
		return 1
	}
	if err := initCmd.Start(); err != nil {
		pipe.SendError("fork", "intermediate", err.Error())
		return 1
	}
	initConfigR.Close()

	if err := pipe.Send(syncpipe.Message{Kind: syncpipe.ChildReady, Pid: initCmd.Process.Pid}); err != nil {
		return 1
	}

	return 0
}

// buildInitCommand constructs the re-exec into the Init stage. Init
// inherits the same syncpipe fd (the socket survives a second exec via
// plain fd duplication) plus a fresh config pipe, since the first one
// was already drained by the Intermediate.
func buildInitCommand(cfg *configs.Config, pipe *syncpipe.SyncPipe, pidFlag int) (*exec.Cmd, *os.File, error) {
	self, err := os.Executable()
	if err != nil {
		return nil, nil, err
	}

	cfgR, cfgW, err := os.Pipe()
	if err != nil {
		return nil, nil, err
	}
	if err := writeConfig(cfgW, cfg); err != nil {
		cfgR.Close()
		cfgW.Close()
		return nil, nil, err
	}
	cfgW.Close()

	cmd := exec.Command(self)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Dir = cfg.Rootfs()
	cmd.ExtraFiles = []*os.File{pipe.File(), cfgR}
	cmd.Env = append(os.Environ(),
		envStage+"="+stageInit,
		envInitPipeFD+"=3",
		envConfigFD+"=4",
	)
	// No Pdeathsig here: Init's direct parent is this Intermediate, which
	// exits within microseconds of starting it by design (its job ends
	// once the pid is relayed). Arming pdeathsig against it would SIGKILL
	// Init before it ever reaches the exec fifo. Init's lifecycle is
	// instead bounded by the syncpipe: a Caller that dies before sending
	// StartPlease leaves Init blocked on the fifo and reparented to the
	// nearest subreaper/init, and a cancelled create() kills it directly
	// by pid.
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Cloneflags: uintptr(pidFlag),
	}

	return cmd, cfgR, nil
}
