// Package namespaces implements the Namespace & Capability Applier of
// spec.md §4.4: for each configured namespace kind, either join an
// existing one (setns against a bind-mounted path) or fold its
// CLONE_NEW* flag into the clone() that creates Init. Grounded on the
// teacher's namespaces/types_linux.go clone-flag table and
// namespaces/utils.go's getNamespaceFlags/checkNamespaceFlags, widened
// from six to the full seven-namespace OCI set (adding cgroup) and
// reworked to operate on configs.Config instead of the teacher's
// bespoke Config type.
package namespaces

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/anyawal/corerun/configs"
	"github.com/anyawal/corerun/system"
)

var cloneFlags = map[configs.NamespaceType]int{
	configs.NEWNS:     unix.CLONE_NEWNS,
	configs.NEWUTS:    unix.CLONE_NEWUTS,
	configs.NEWIPC:    unix.CLONE_NEWIPC,
	configs.NEWUSER:   unix.CLONE_NEWUSER,
	configs.NEWPID:    unix.CLONE_NEWPID,
	configs.NEWNET:    unix.CLONE_NEWNET,
	configs.NEWCGROUP: unix.CLONE_NEWCGROUP,
}

// CloneFlags returns the bitwise OR of CLONE_NEW* for every namespace in
// the list the config asks to be freshly created (Path == ""); joined
// namespaces are handled separately via setns and must not appear here.
func CloneFlags(list configs.Namespaces) uintptr {
	var flags int
	for _, ns := range list {
		if ns.Path != "" {
			continue
		}
		flags |= cloneFlags[ns.Type]
	}
	return uintptr(flags)
}

// order is the namespace entry order required by spec.md §4.2/§4.4: user
// first (when created, so subsequent privileged steps run inside it),
// mount before any mount operation, the rest following.
var order = []configs.NamespaceType{
	configs.NEWUSER,
	configs.NEWNS,
	configs.NEWUTS,
	configs.NEWIPC,
	configs.NEWPID,
	configs.NEWNET,
	configs.NEWCGROUP,
}

// Ordered returns the configured namespace list sorted into the
// construction order the ordering contract requires.
func Ordered(list configs.Namespaces) configs.Namespaces {
	out := make(configs.Namespaces, 0, len(list))
	for _, t := range order {
		if ns, ok := find(list, t); ok {
			out = append(out, ns)
		}
	}
	return out
}

// Join setns's the calling process (the Intermediate, per spec.md §4.4)
// into every namespace in list that names a Path, in construction order.
// CLONE_NEW* doubles as the nstype argument setns(2) expects.
func Join(sys system.Syscaller, list configs.Namespaces) error {
	for _, ns := range Ordered(list) {
		if ns.Path == "" {
			continue
		}
		f, err := os.Open(ns.Path)
		if err != nil {
			return fmt.Errorf("open namespace %s at %s: %w", ns.Type, ns.Path, err)
		}
		err = sys.Setns(int(f.Fd()), cloneFlags[ns.Type])
		f.Close()
		if err != nil {
			return fmt.Errorf("setns %s: %w", ns.Type, err)
		}
	}
	return nil
}

func find(list configs.Namespaces, t configs.NamespaceType) (configs.Namespace, bool) {
	for _, ns := range list {
		if ns.Type == t {
			return ns, true
		}
	}
	return configs.Namespace{}, false
}
