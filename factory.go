// Package corerun is the Lifecycle Controller of spec.md §4.1/§4.6: it
// wires the state store, cgroup manager, process pipeline, hook runner,
// and rootfs/namespace/capability appliers into the create/start/state/
// kill/delete operations the CLI exposes. Grounded on the teacher's
// container.go/factory.go Container/Factory interface split, generalized
// from the teacher's own Config/State types to this module's configs/
// state packages and to the linear four-state DAG of spec.md §3.
package corerun

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/anyawal/corerun/cgroups"
	"github.com/anyawal/corerun/cgroups/fs"
	"github.com/anyawal/corerun/cgroups/fs2"
	"github.com/anyawal/corerun/cgroups/systemd"
	"github.com/anyawal/corerun/configs"
	"github.com/anyawal/corerun/configs/validate"
	"github.com/anyawal/corerun/state"
)

// lockTimeout bounds how long an operation blocks acquiring a
// container's file lock before surfacing Busy, per spec.md §4.1.
const lockTimeout = 10 * time.Second

// Factory mediates every container's access to the shared state root:
// it is the thing `create` asks for a new Container and `state`/`kill`/
// `delete` ask to recover an existing one, mirroring the teacher's
// Factory.Create/Factory.Import split but returning a single concrete
// type rather than an interface value, since this module has exactly
// one on-disk backend.
type Factory struct {
	Root          string
	Store         *state.Store
	Validator     validate.Validator
	SystemdCgroup bool
}

// NewFactory opens (creating if absent) the state root and returns a
// Factory bound to it.
func NewFactory(root string, systemdCgroup bool) (*Factory, error) {
	store, err := state.New(root)
	if err != nil {
		return nil, newError(SystemError, "open state root", err)
	}
	return &Factory{
		Root:          root,
		Store:         store,
		Validator:     validate.New(),
		SystemdCgroup: systemdCgroup,
	}, nil
}

// NewID generates an opaque container identifier for callers that do
// not supply one on the command line.
func NewID() string {
	return uuid.NewString()
}

// newCgroupManager picks one of the three cgroup backends per spec.md
// §4.5, resolving the OPEN QUESTIONS pin on --systemd-cgroup: the flag
// only changes which backend owns the cgroup, not whether an explicit
// cgroupsPath in config.json is honored.
func (f *Factory) newCgroupManager(id string, linux *configs.Linux) (cgroups.Manager, string, error) {
	path := linux.CgroupsPath
	if path == "" {
		path = "corerun/" + id
	}
	var resources *configs.Resources
	if linux.Resources != nil {
		resources = linux.Resources.Resources
	}
	cg := &configs.Cgroup{Path: path, Resources: resources}

	var (
		mgr cgroups.Manager
		err error
	)
	switch {
	case f.SystemdCgroup:
		mgr, err = systemd.NewManager(cg)
	case fs2.IsUnifiedAvailable():
		mgr, err = fs2.NewManager(cg)
	default:
		mgr, err = fs.NewManager(cg)
	}
	return mgr, path, err
}

// Load recovers the Container value for an existing id, for the state/
// kill/delete operations, which all start from an on-disk record rather
// than a freshly created one.
func (f *Factory) Load(id string) (*Container, error) {
	lock, err := f.Store.AcquireLock(id, lockTimeout)
	if err != nil {
		if err == state.ErrBusy {
			return nil, newError(Busy, "acquire container lock", err)
		}
		return nil, newError(SystemError, "acquire container lock", err)
	}
	defer lock.Unlock()

	st, err := f.Store.Load(id)
	if err != nil {
		if err == state.ErrNotExist {
			return nil, newError(NotFound, fmt.Sprintf("container %s does not exist", id), err)
		}
		return nil, newError(SystemError, "load state", err)
	}
	return &Container{factory: f, state: st}, nil
}

// List returns every container id currently recorded under the root.
func (f *Factory) List() ([]string, error) {
	ids, err := f.Store.List()
	if err != nil {
		return nil, newError(SystemError, "list state root", err)
	}
	return ids, nil
}

func logFields(id, op string) logrus.Fields {
	return logrus.Fields{"id": id, "op": op}
}
