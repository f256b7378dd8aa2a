// Command corerun is the CLI entry point of SPEC_FULL.md §6: create,
// start, state, kill, delete, list, pause, resume, ps, checkpoint,
// restore. Grounded on the teacher's nsinit command set, continued onto
// urfave/cli/v2 at its modern import path and sirupsen/logrus for
// structured logging, per SPEC_FULL.md §4.1.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	units "github.com/docker/go-units"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sys/unix"

	corerun "github.com/anyawal/corerun"
	"github.com/anyawal/corerun/checkpoint"
	"github.com/anyawal/corerun/configs"
	"github.com/anyawal/corerun/process"
)

func main() {
	// The re-exec stages dispatch before urfave/cli ever sees argv: a
	// process started by process.Start carries _CORERUN_STAGE in its
	// environment and is not a normal CLI invocation at all.
	if process.Stage() != "" {
		os.Exit(runStage())
	}

	app := &cli.App{
		Name:  "corerun",
		Usage: "an OCI-conformant Linux container runtime core",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "root", Value: defaultRoot(), Usage: "runtime state root directory"},
			&cli.StringFlag{Name: "log", Usage: "path to log to, in addition to stderr"},
			&cli.StringFlag{Name: "log-format", Value: "text", Usage: "text or json"},
			&cli.BoolFlag{Name: "systemd-cgroup", Usage: "use systemd to manage cgroups"},
		},
		Before: setupLogging,
		Commands: []*cli.Command{
			createCommand,
			startCommand,
			stateCommand,
			killCommand,
			deleteCommand,
			listCommand,
			pauseCommand,
			resumeCommand,
			psCommand,
			checkpointCommand,
			restoreCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}

// runStage dispatches to the Intermediate or Init role; it is only
// reached by a process that was itself exec'd by process.Start, never
// by a user invoking the corerun binary directly.
func runStage() int {
	switch process.Stage() {
	case "intermediate":
		return process.RunIntermediate()
	case "init":
		return process.RunInit()
	default:
		fmt.Fprintln(os.Stderr, "corerun: unknown re-exec stage")
		return 1
	}
}

func defaultRoot() string {
	if uid := os.Getuid(); uid != 0 {
		return fmt.Sprintf("/run/user/%d/corerun", uid)
	}
	return "/run/corerun"
}

func setupLogging(c *cli.Context) error {
	if c.String("log-format") == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
	if path := c.String("log"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		logrus.SetOutput(f)
	}
	return nil
}

func factory(c *cli.Context) (*corerun.Factory, error) {
	return corerun.NewFactory(c.String("root"), c.Bool("systemd-cgroup"))
}

var createCommand = &cli.Command{
	Name:      "create",
	Usage:     "create a container",
	ArgsUsage: "<id>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "bundle", Aliases: []string{"b"}, Value: ".", Usage: "path to the OCI bundle"},
		&cli.StringFlag{Name: "console-socket", Usage: "unix socket to send the console pty master fd to"},
	},
	Action: func(c *cli.Context) error {
		id := c.Args().First()
		if id == "" {
			id = corerun.NewID()
		}
		f, err := factory(c)
		if err != nil {
			return err
		}
		cfg, err := configs.LoadFromBundle(c.String("bundle"))
		if err != nil {
			return err
		}
		_, err = f.Create(id, c.String("bundle"), cfg, corerun.CreateOptions{
			ConsoleSocket: c.String("console-socket"),
		})
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	},
}

var startCommand = &cli.Command{
	Name:      "start",
	Usage:     "start a created container",
	ArgsUsage: "<id>",
	Action: func(c *cli.Context) error {
		id := c.Args().First()
		if id == "" {
			return cli.Exit("container id required", 1)
		}
		f, err := factory(c)
		if err != nil {
			return err
		}
		cont, err := f.Load(id)
		if err != nil {
			return err
		}
		return cont.Start()
	},
}

var stateCommand = &cli.Command{
	Name:      "state",
	Usage:     "print the OCI state of a container",
	ArgsUsage: "<id>",
	Action: func(c *cli.Context) error {
		id := c.Args().First()
		if id == "" {
			return cli.Exit("container id required", 1)
		}
		f, err := factory(c)
		if err != nil {
			return err
		}
		cont, err := f.Load(id)
		if err != nil {
			return err
		}
		st, err := cont.State()
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

var killCommand = &cli.Command{
	Name:      "kill",
	Usage:     "send a signal to a container's init process",
	ArgsUsage: "<id> [signal]",
	Action: func(c *cli.Context) error {
		id := c.Args().First()
		if id == "" {
			return cli.Exit("container id required", 1)
		}
		sig := unix.SIGTERM
		if raw := c.Args().Get(1); raw != "" {
			s, err := parseSignal(raw)
			if err != nil {
				return err
			}
			sig = s
		}
		f, err := factory(c)
		if err != nil {
			return err
		}
		cont, err := f.Load(id)
		if err != nil {
			return err
		}
		return cont.Kill(sig)
	},
}

var deleteCommand = &cli.Command{
	Name:      "delete",
	Usage:     "delete a stopped container",
	ArgsUsage: "<id>",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "delete a container even if it is still running"},
	},
	Action: func(c *cli.Context) error {
		id := c.Args().First()
		if id == "" {
			return cli.Exit("container id required", 1)
		}
		f, err := factory(c)
		if err != nil {
			return err
		}
		cont, err := f.Load(id)
		if err != nil {
			return err
		}
		return cont.Delete(corerun.DeleteOptions{Force: c.Bool("force")})
	},
}

var listCommand = &cli.Command{
	Name:  "list",
	Usage: "list known containers",
	Action: func(c *cli.Context) error {
		f, err := factory(c)
		if err != nil {
			return err
		}
		ids, err := f.List()
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	},
}

var pauseCommand = &cli.Command{
	Name:      "pause",
	Usage:     "freeze a running container's processes",
	ArgsUsage: "<id>",
	Action: func(c *cli.Context) error {
		return withLoaded(c, func(cont *corerun.Container) error { return cont.Pause() })
	},
}

var resumeCommand = &cli.Command{
	Name:      "resume",
	Usage:     "thaw a paused container's processes",
	ArgsUsage: "<id>",
	Action: func(c *cli.Context) error {
		return withLoaded(c, func(cont *corerun.Container) error { return cont.Resume() })
	},
}

var psCommand = &cli.Command{
	Name:      "ps",
	Usage:     "show resource usage for a container",
	ArgsUsage: "<id>",
	Action: func(c *cli.Context) error {
		id := c.Args().First()
		if id == "" {
			return cli.Exit("container id required", 1)
		}
		f, err := factory(c)
		if err != nil {
			return err
		}
		cont, err := f.Load(id)
		if err != nil {
			return err
		}
		stats, err := cont.Stats()
		if err != nil {
			return err
		}
		fmt.Printf("memory: %s\tpids: %d/%s\n",
			units.BytesSize(float64(stats.MemoryStats.Usage)),
			stats.PidsStats.Current,
			limitString(stats.PidsStats.Limit))
		return nil
	},
}

func limitString(limit uint64) string {
	if limit == 0 {
		return "unlimited"
	}
	return strconv.FormatUint(limit, 10)
}

var checkpointCommand = &cli.Command{
	Name:      "checkpoint",
	Usage:     "checkpoint a running container with criu",
	ArgsUsage: "<id>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "image-path", Required: true, Usage: "directory to save criu images to"},
		&cli.BoolFlag{Name: "leave-running", Usage: "leave the container running after checkpoint"},
		&cli.BoolFlag{Name: "tcp-established", Usage: "allow open tcp connections"},
	},
	Action: func(c *cli.Context) error {
		id := c.Args().First()
		if id == "" {
			return cli.Exit("container id required", 1)
		}
		f, err := factory(c)
		if err != nil {
			return err
		}
		cont, err := f.Load(id)
		if err != nil {
			return err
		}
		st, err := cont.State()
		if err != nil {
			return err
		}
		return checkpoint.Dump(st.Pid, checkpoint.Options{
			ImagesDirectory: c.String("image-path"),
			LeaveRunning:    c.Bool("leave-running"),
			TCPEstablished:  c.Bool("tcp-established"),
		})
	},
}

var restoreCommand = &cli.Command{
	Name:      "restore",
	Usage:     "restore a container from a previous checkpoint",
	ArgsUsage: "<id>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "image-path", Required: true, Usage: "directory containing criu images"},
		&cli.StringFlag{Name: "work-path", Usage: "directory for criu logs and work files"},
		&cli.BoolFlag{Name: "tcp-established", Usage: "allow open tcp connections"},
	},
	Action: func(c *cli.Context) error {
		return checkpoint.Restore(checkpoint.Options{
			ImagesDirectory: c.String("image-path"),
			WorkDirectory:   c.String("work-path"),
			TCPEstablished:  c.Bool("tcp-established"),
		})
	},
}

func withLoaded(c *cli.Context, fn func(*corerun.Container) error) error {
	id := c.Args().First()
	if id == "" {
		return cli.Exit("container id required", 1)
	}
	f, err := factory(c)
	if err != nil {
		return err
	}
	cont, err := f.Load(id)
	if err != nil {
		return err
	}
	return fn(cont)
}

func parseSignal(raw string) (unix.Signal, error) {
	if n, err := strconv.Atoi(raw); err == nil {
		return unix.Signal(n), nil
	}
	if sig, ok := signalByName[raw]; ok {
		return sig, nil
	}
	return 0, fmt.Errorf("unknown signal %q", raw)
}

var signalByName = map[string]unix.Signal{
	"HUP": unix.SIGHUP, "INT": unix.SIGINT, "QUIT": unix.SIGQUIT,
	"KILL": unix.SIGKILL, "TERM": unix.SIGTERM, "USR1": unix.SIGUSR1,
	"USR2": unix.SIGUSR2, "STOP": unix.SIGSTOP, "CONT": unix.SIGCONT,
	"SIGHUP": unix.SIGHUP, "SIGINT": unix.SIGINT, "SIGQUIT": unix.SIGQUIT,
	"SIGKILL": unix.SIGKILL, "SIGTERM": unix.SIGTERM, "SIGUSR1": unix.SIGUSR1,
	"SIGUSR2": unix.SIGUSR2, "SIGSTOP": unix.SIGSTOP, "SIGCONT": unix.SIGCONT,
}
