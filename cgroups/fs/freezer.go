package fs

import (
	"fmt"
	"time"

	"github.com/anyawal/corerun/cgroups"
	"github.com/anyawal/corerun/configs"
)

type freezerGroup struct{}

func (s *freezerGroup) Name() string { return "freezer" }

func (s *freezerGroup) Apply(path string, pid int) error {
	return writeFile(path, "cgroup.procs", itoa(pid))
}

func (s *freezerGroup) Set(path string, r *configs.Resources) error {
	if r.Freezer == configs.Undefined {
		return nil
	}
	return s.setState(path, r.Freezer)
}

// setState polls freezer.state after writing, since the kernel applies
// FROZEN asynchronously and may report "FREEZING" briefly in between.
func (s *freezerGroup) setState(path string, state configs.FreezerState) error {
	if err := writeFile(path, "freezer.state", string(state)); err != nil {
		return err
	}
	if state != configs.Frozen {
		return nil
	}
	for i := 0; i < 100; i++ {
		current, err := readFile(path, "freezer.state")
		if err != nil {
			return err
		}
		if current == string(configs.Frozen) {
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	return fmt.Errorf("freezer: timed out waiting for cgroup to freeze")
}

func (s *freezerGroup) Remove(path string) error {
	return removePath(path)
}

func (s *freezerGroup) GetStats(path string, stats *cgroups.Stats) error {
	return nil
}
