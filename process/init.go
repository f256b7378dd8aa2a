package process

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	selinux "github.com/opencontainers/selinux/go-selinux"
	"golang.org/x/sys/unix"

	"github.com/anyawal/corerun/capabilities"
	"github.com/anyawal/corerun/configs"
	"github.com/anyawal/corerun/network"
	"github.com/anyawal/corerun/rootfs"
	"github.com/anyawal/corerun/seccomp"
	"github.com/anyawal/corerun/syncpipe"
	"github.com/anyawal/corerun/system"
)

// RunInit is the entry point cmd/corerun dispatches to when
// Stage() == stageInit. It performs the ordered setup list of spec.md
// §4.2's role 3 description, blocks on the exec fifo in place of a live
// StartPlease message, then execve's the user command.
func RunInit() int {
	pipe := syncpipe.FromFd(3)
	defer pipe.Close()

	cfgFile := os.NewFile(4, "corerun-config")
	cfg, err := readConfig(cfgFile)
	cfgFile.Close()
	if err != nil {
		pipe.SendError("config", "init", err.Error())
		return 1
	}

	fifo, err := openExecFifoRDWR(os.Getenv(envFifoPath))
	if err != nil {
		pipe.SendError("fifo", "init", err.Error())
		return 1
	}
	defer fifo.Close()

	if err := setup(cfg); err != nil {
		pipe.SendError("setup", "init", err.Error())
		return 1
	}

	if err := pipe.Send(syncpipe.Message{Kind: syncpipe.SetupComplete}); err != nil {
		return 1
	}
	if _, err := pipe.Expect(syncpipe.CgroupJoined, noDeadline()); err != nil {
		return 1
	}

	if err := waitExecFifo(fifo); err != nil {
		pipe.SendError("start", "init", err.Error())
		return 1
	}
	pipe.Close()

	if err := execEntrypoint(cfg); err != nil {
		// execEntrypoint only returns on failure; there is no live pipe
		// left to report through, so this goes to the inherited stderr.
		fmt.Fprintln(os.Stderr, "corerun: exec failed:", err)
		return 1
	}
	return 0
}

// setup runs every privileged construction step between namespace entry
// and the wait for StartPlease, in this order: rootfs (which performs its
// own internal pivot_root after mounts/devices, see package rootfs)
// before capability drop, NO_NEW_PRIVS before seccomp, and seccomp before
// the switch to the configured uid/gid and the chdir, which are the last
// steps before exec.
func setup(cfg *configs.Config) error {
	if cfg.Hostname != "" {
		if err := system.Linux{}.Sethostname(cfg.Hostname); err != nil {
			return fmt.Errorf("sethostname: %w", err)
		}
	}

	if err := rootfs.New().Prepare(cfg); err != nil {
		return fmt.Errorf("prepare rootfs: %w", err)
	}

	if err := applySysctls(cfg.Linux.Sysctl); err != nil {
		return fmt.Errorf("sysctl: %w", err)
	}

	if cfg.Linux.Namespaces.Contains(configs.NEWNET) {
		if err := network.BringUpLoopback(); err != nil {
			return fmt.Errorf("loopback: %w", err)
		}
	}

	if cfg.Process.SelinuxLabel != "" && selinux.GetEnabled() {
		if err := selinux.SetExecLabel(cfg.Process.SelinuxLabel); err != nil {
			return fmt.Errorf("selinux label: %w", err)
		}
	}

	if cfg.Process.Terminal {
		if err := setupConsoleInInit(os.Getenv(envConsolePath)); err != nil {
			return fmt.Errorf("console: %w", err)
		}
	}

	if err := capabilities.Apply(cfg.Process.Capabilities); err != nil {
		return fmt.Errorf("capabilities: %w", err)
	}

	if err := applyRlimits(cfg.Process.Rlimits); err != nil {
		return fmt.Errorf("rlimits: %w", err)
	}

	if cfg.Process.NoNewPrivileges {
		if err := system.SetNoNewPrivs(); err != nil {
			return err
		}
	}

	if cfg.Linux.Seccomp != nil {
		if err := seccomp.Load(cfg.Linux.Seccomp); err != nil {
			return fmt.Errorf("seccomp: %w", err)
		}
	}

	if err := setUser(cfg.Process.User); err != nil {
		return fmt.Errorf("set user: %w", err)
	}

	if cfg.Process.Cwd != "" {
		if err := unix.Chdir(cfg.Process.Cwd); err != nil {
			return fmt.Errorf("chdir %s: %w", cfg.Process.Cwd, err)
		}
	}

	return nil
}

// applySysctls writes /proc/sys/<dotted.key.turned.into.path>, run after
// rootfs.Prepare so the container's own /proc mount (if configured) is
// the one being written to, not the host's.
func applySysctls(sysctl map[string]string) error {
	for key, value := range sysctl {
		path := filepath.Join("/proc/sys", strings.ReplaceAll(key, ".", "/"))
		if err := os.WriteFile(path, []byte(value), 0o644); err != nil {
			return fmt.Errorf("sysctl %s: %w", key, err)
		}
	}
	return nil
}

var rlimitByName = map[string]int{
	"RLIMIT_CPU":        unix.RLIMIT_CPU,
	"RLIMIT_FSIZE":      unix.RLIMIT_FSIZE,
	"RLIMIT_DATA":       unix.RLIMIT_DATA,
	"RLIMIT_STACK":      unix.RLIMIT_STACK,
	"RLIMIT_CORE":       unix.RLIMIT_CORE,
	"RLIMIT_RSS":        unix.RLIMIT_RSS,
	"RLIMIT_NPROC":      unix.RLIMIT_NPROC,
	"RLIMIT_NOFILE":     unix.RLIMIT_NOFILE,
	"RLIMIT_MEMLOCK":    unix.RLIMIT_MEMLOCK,
	"RLIMIT_AS":         unix.RLIMIT_AS,
	"RLIMIT_LOCKS":      unix.RLIMIT_LOCKS,
	"RLIMIT_SIGPENDING": unix.RLIMIT_SIGPENDING,
	"RLIMIT_MSGQUEUE":   unix.RLIMIT_MSGQUEUE,
	"RLIMIT_NICE":       unix.RLIMIT_NICE,
	"RLIMIT_RTPRIO":     unix.RLIMIT_RTPRIO,
	"RLIMIT_RTTIME":     unix.RLIMIT_RTTIME,
}

func applyRlimits(limits []configs.Rlimit) error {
	for _, l := range limits {
		res, ok := rlimitByName[l.Type]
		if !ok {
			return fmt.Errorf("unknown rlimit %q", l.Type)
		}
		rlim := unix.Rlimit{Cur: l.Soft, Max: l.Hard}
		if err := unix.Setrlimit(res, &rlim); err != nil {
			return fmt.Errorf("setrlimit %s: %w", l.Type, err)
		}
	}
	return nil
}

// setUser applies supplementary groups, then gid, then uid, in that
// order (uid last, since dropping uid away from 0 forecloses the
// ability to change gid or groups afterward). The uid/gid change itself
// is bracketed in PR_SET_KEEPCAPS so the capability sets
// capabilities.Apply already installed survive the switch away from
// uid 0 instead of being cleared by the kernel's normal setuid
// behavior, matching the teacher's own bracketing of setupUser between
// SetKeepCaps and ClearKeepCaps.
func setUser(u configs.User) error {
	if len(u.AdditionalGids) > 0 {
		gids := make([]int, len(u.AdditionalGids))
		for i, g := range u.AdditionalGids {
			gids[i] = int(g)
		}
		if err := unix.Setgroups(gids); err != nil {
			return fmt.Errorf("setgroups: %w", err)
		}
	}

	if err := system.SetKeepCaps(); err != nil {
		return fmt.Errorf("set keep caps: %w", err)
	}
	defer system.ClearKeepCaps()

	if err := unix.Setgid(int(u.GID)); err != nil {
		return fmt.Errorf("setgid: %w", err)
	}
	if err := unix.Setuid(int(u.UID)); err != nil {
		return fmt.Errorf("setuid: %w", err)
	}
	return nil
}

// execEntrypoint performs the final execve; on success it never
// returns.
func execEntrypoint(cfg *configs.Config) error {
	if len(cfg.Process.Args) == 0 {
		return fmt.Errorf("empty process args")
	}
	path, err := lookPath(cfg.Process.Args[0], cfg.Process.Env)
	if err != nil {
		return err
	}
	return unix.Exec(path, cfg.Process.Args, cfg.Process.Env)
}

func lookPath(file string, env []string) (string, error) {
	if strings.Contains(file, "/") {
		return file, nil
	}
	path := "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"
	for _, kv := range env {
		if strings.HasPrefix(kv, "PATH=") {
			path = strings.TrimPrefix(kv, "PATH=")
		}
	}
	for _, dir := range strings.Split(path, ":") {
		if dir == "" {
			dir = "."
		}
		candidate := filepath.Join(dir, file)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() && info.Mode()&0o111 != 0 {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%s: not found in PATH", file)
}
