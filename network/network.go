// Package network supplements spec.md §4.4's namespace applier with the
// one piece of network-namespace setup an OCI runtime core still owns
// once interface provisioning itself is left to an external tool: the
// loopback device comes up dead in a freshly created network namespace,
// and nothing but the runtime's own init process is in position to
// bring it up before handing control to the container's entrypoint.
// Grounded on the teacher's network.Loopback strategy, narrowed from its
// full veth/dummy/bridge strategy set (out of scope for a conformant
// runtime core, which receives an already-wired namespace path rather
// than building one) to just this step, and ported from the teacher's
// in-tree netlink package to github.com/vishvananda/netlink.
package network

import (
	"fmt"

	"github.com/vishvananda/netlink"
)

// BringUpLoopback sets the "lo" interface in the caller's current
// network namespace to the up state. It is a no-op error, not a panic,
// when the namespace has no loopback device at all (NEWNET was not
// requested), since the caller only invokes this after confirming a
// network namespace was created.
func BringUpLoopback() error {
	link, err := netlink.LinkByName("lo")
	if err != nil {
		return fmt.Errorf("find loopback device: %w", err)
	}
	if err := netlink.LinkSetUp(link); err != nil {
		return fmt.Errorf("set loopback up: %w", err)
	}
	return nil
}
