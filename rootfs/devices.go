package rootfs

import (
	"os"
	"path/filepath"
	"syscall"

	"github.com/anyawal/corerun/configs"
)

// defaultDevices is the standard set spec.md §4.3 step 4 requires:
// null, zero, full, random, urandom, tty. No /dev/console node is
// created; with a terminal, Init only takes the pty slave as its stdio.
var defaultDevices = []configs.Device{
	{Path: "/dev/null", Type: 'c', Major: 1, Minor: 3, FileMode: 0o666},
	{Path: "/dev/zero", Type: 'c', Major: 1, Minor: 5, FileMode: 0o666},
	{Path: "/dev/full", Type: 'c', Major: 1, Minor: 7, FileMode: 0o666},
	{Path: "/dev/random", Type: 'c', Major: 1, Minor: 8, FileMode: 0o666},
	{Path: "/dev/urandom", Type: 'c', Major: 1, Minor: 9, FileMode: 0o666},
	{Path: "/dev/tty", Type: 'c', Major: 5, Minor: 0, FileMode: 0o666},
}

// createDevices creates the default devices plus any user-specified
// ones. When the container has no CAP_MKNOD in its (possibly user-
// namespaced) context, nodes are bind-mounted from the host instead of
// created with mknod, per spec.md §4.3 step 4.
func (p *Preparer) createDevices(rootfs string, config *configs.Config) error {
	all := append(append([]configs.Device{}, defaultDevices...), config.Linux.Devices...)
	canMknod := hasMknod(config)

	for _, d := range all {
		dest := filepath.Join(rootfs, d.Path)
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		if canMknod {
			if err := p.mknod(dest, d); err != nil {
				return err
			}
			continue
		}
		if err := p.bindDeviceFromHost(dest, d.Path); err != nil {
			return err
		}
	}
	return nil
}

func (p *Preparer) mknod(dest string, d configs.Device) error {
	var mode uint32
	switch d.Type {
	case 'c', 'u':
		mode = syscall.S_IFCHR
	case 'b':
		mode = syscall.S_IFBLK
	case 'p':
		mode = syscall.S_IFIFO
	}
	mode |= d.FileMode
	dev := int(unixMkdev(uint32(d.Major), uint32(d.Minor)))
	if err := p.Sys.Mknod(dest, mode, dev); err != nil {
		if os.IsExist(err) {
			return nil
		}
		return err
	}
	return nil
}

// bindDeviceFromHost bind-mounts the host's existing node over the
// container's placeholder file, used in rootless/user-namespace setups
// that lack CAP_MKNOD.
func (p *Preparer) bindDeviceFromHost(dest, hostPath string) error {
	if _, err := os.Stat(hostPath); err != nil {
		return nil
	}
	f, err := os.OpenFile(dest, os.O_CREATE, 0o644)
	if err == nil {
		f.Close()
	}
	return p.Sys.Mount(hostPath, dest, "", uintptr(msBIND), "")
}

func unixMkdev(major, minor uint32) uint64 {
	return (uint64(major)&0xfff)<<8 | uint64(minor&0xff) | ((uint64(major) &^ 0xfff) << 32) | ((uint64(minor) &^ 0xff) << 12)
}

// hasMknod reports whether the init process will hold CAP_MKNOD once it
// applies config.Process.Capabilities. Outside a user namespace the
// runtime itself is root and can always mknod regardless of what the
// container's own capability set ends up being, since the nodes are
// created before setUser/capabilities.Apply in process/init.go's setup
// order. Inside a user namespace without CAP_MKNOD in the bounding set,
// mknod(2) will fail, so the rootless bind-from-host path is required.
func hasMknod(config *configs.Config) bool {
	if !config.Linux.Namespaces.Contains(configs.NEWUSER) {
		return true
	}
	if config.Process.Capabilities == nil {
		return false
	}
	return containsCap(config.Process.Capabilities.Bounding, "CAP_MKNOD")
}

func containsCap(caps []string, want string) bool {
	for _, c := range caps {
		if c == want {
			return true
		}
	}
	return false
}
