// Package configs defines the in-memory representation of a parsed OCI
// bundle configuration (config.json). The runtime core treats this as a
// read-only record handed down by the caller; parsing config.json itself
// is out of scope (see spec.md §1) and is assumed to have already happened
// by the time a configs.Config reaches this package.
package configs

import "time"

// NamespaceType is one of the Linux namespace kinds the runtime can
// create or join.
type NamespaceType string

const (
	NEWNS     NamespaceType = "mount"
	NEWUTS    NamespaceType = "uts"
	NEWIPC    NamespaceType = "ipc"
	NEWUSER   NamespaceType = "user"
	NEWPID    NamespaceType = "pid"
	NEWNET    NamespaceType = "network"
	NEWCGROUP NamespaceType = "cgroup"
)

// Namespace describes a single namespace entry from the config's
// linux.namespaces list. An empty Path means the runtime creates a new
// namespace of this type; a non-empty Path means it joins the namespace
// at that bind-mounted path via setns.
type Namespace struct {
	Type NamespaceType `json:"type"`
	Path string        `json:"path,omitempty"`
}

// Namespaces is the ordered namespace list from the config. Order in the
// config.json array does not confer creation order; the process pipeline
// applies the ordering contract of spec.md §4.2 regardless of list order.
type Namespaces []Namespace

// Contains reports whether the list contains a namespace of type t.
func (n Namespaces) Contains(t NamespaceType) bool {
	_, ok := n.find(t)
	return ok
}

// PathOf returns the join path for the given namespace type, if present.
func (n Namespaces) PathOf(t NamespaceType) string {
	ns, _ := n.find(t)
	return ns.Path
}

func (n Namespaces) find(t NamespaceType) (Namespace, bool) {
	for _, ns := range n {
		if ns.Type == t {
			return ns, true
		}
	}
	return Namespace{}, false
}

// IDMap is a single uid_map/gid_map line: ContainerID maps to HostID for
// Size consecutive ids.
type IDMap struct {
	ContainerID int64 `json:"containerID"`
	HostID      int64 `json:"hostID"`
	Size        int64 `json:"size"`
}

// Device describes a device node to create (or bind-mount, when the
// container lacks CAP_MKNOD in its user namespace) inside the rootfs.
type Device struct {
	Path     string `json:"path"`
	Type     rune   `json:"type"` // 'c', 'b', 'p', or 'u' (unbuffered char)
	Major    int64  `json:"major"`
	Minor    int64  `json:"minor"`
	FileMode uint32 `json:"fileMode"`
	UID      uint32 `json:"uid"`
	GID      uint32 `json:"gid"`
	// Allow controls whether this device is permitted through the
	// devices cgroup; it is separate from whether a node is created.
	Allow bool `json:"allow"`
}

// Mount is a single entry from config.json's mounts array.
type Mount struct {
	Source      string   `json:"source"`
	Destination string   `json:"destination"`
	Type        string   `json:"type"`
	Options     []string `json:"options,omitempty"`
}

// Rlimit mirrors one entry of process.rlimits.
type Rlimit struct {
	Type string `json:"type"`
	Hard uint64 `json:"hard"`
	Soft uint64 `json:"soft"`
}

// Capabilities is the union, per set, of capabilities requested by
// process.capabilities in config.json.
type Capabilities struct {
	Bounding    []string `json:"bounding,omitempty"`
	Effective   []string `json:"effective,omitempty"`
	Inheritable []string `json:"inheritable,omitempty"`
	Permitted   []string `json:"permitted,omitempty"`
	Ambient     []string `json:"ambient,omitempty"`
}

// User identifies the uid/gid/supplementary groups the init process
// should assume before it execs the entrypoint.
type User struct {
	UID            uint32  `json:"uid"`
	GID            uint32  `json:"gid"`
	AdditionalGids []uint32 `json:"additionalGids,omitempty"`
	Username       string  `json:"username,omitempty"`
}

// Scheduler mirrors process.scheduler for non-default CPU scheduling
// policies (SCHED_FIFO, SCHED_RR, SCHED_BATCH, ...).
type Scheduler struct {
	Policy   string `json:"policy,omitempty"`
	Priority int    `json:"priority,omitempty"`
	Nice     int    `json:"nice,omitempty"`
}

// Process is the parsed process stanza of config.json.
type Process struct {
	Args            []string      `json:"args"`
	Env             []string      `json:"env,omitempty"`
	Cwd             string        `json:"cwd"`
	User            User          `json:"user"`
	Capabilities    *Capabilities `json:"capabilities,omitempty"`
	Rlimits         []Rlimit      `json:"rlimits,omitempty"`
	NoNewPrivileges bool          `json:"noNewPrivileges,omitempty"`
	Terminal        bool          `json:"terminal,omitempty"`
	Scheduler       *Scheduler    `json:"scheduler,omitempty"`
	// SelinuxLabel is the process label applied to the init process
	// before exec, via /proc/self/attr/exec.
	SelinuxLabel string `json:"selinuxLabel,omitempty"`
}

// Hook is a single external executable invoked at a lifecycle point.
type Hook struct {
	Path    string   `json:"path"`
	Args    []string `json:"args,omitempty"`
	Env     []string `json:"env,omitempty"`
	Timeout *int     `json:"timeout,omitempty"`
}

// Hooks groups the hook lists by lifecycle point.
type Hooks struct {
	Prestart        []Hook `json:"prestart,omitempty"`
	CreateRuntime   []Hook `json:"createRuntime,omitempty"`
	CreateContainer []Hook `json:"createContainer,omitempty"`
	StartContainer  []Hook `json:"startContainer,omitempty"`
	Poststart       []Hook `json:"poststart,omitempty"`
	Poststop        []Hook `json:"poststop,omitempty"`
}

// Seccomp carries the opaque filter description; compiling it to BPF is
// out of scope here (spec.md §1) and delegated to package seccomp, which
// treats it as "install this filter".
type Seccomp struct {
	DefaultAction string           `json:"defaultAction"`
	Architectures []string         `json:"architectures,omitempty"`
	Syscalls      []SeccompSyscall `json:"syscalls,omitempty"`
}

type SeccompSyscall struct {
	Names  []string `json:"names"`
	Action string   `json:"action"`
}

// Linux groups every linux-specific stanza of config.json.
type Linux struct {
	Namespaces    Namespaces `json:"namespaces,omitempty"`
	UIDMappings   []IDMap    `json:"uidMappings,omitempty"`
	GIDMappings   []IDMap    `json:"gidMappings,omitempty"`
	Resources     *Cgroup    `json:"resources,omitempty"`
	Devices       []Device   `json:"devices,omitempty"`
	Sysctl        map[string]string `json:"sysctl,omitempty"`
	MaskedPaths   []string   `json:"maskedPaths,omitempty"`
	ReadonlyPaths []string   `json:"readonlyPaths,omitempty"`
	Seccomp       *Seccomp   `json:"seccomp,omitempty"`
	// RootfsPropagation is one of "", "private", "rprivate", "slave",
	// "rslave", "shared", "rshared".
	RootfsPropagation string `json:"rootfsPropagation,omitempty"`
	CgroupsPath       string `json:"cgroupsPath,omitempty"`
}

// Root is the config's root stanza.
type Root struct {
	Path     string `json:"path"`
	Readonly bool   `json:"readonly,omitempty"`
}

// Config is the fully parsed configuration for a single container,
// equivalent to config.json plus the bundle path it was read from.
type Config struct {
	OCIVersion  string            `json:"ociVersion"`
	Hostname    string            `json:"hostname,omitempty"`
	Root        Root              `json:"root"`
	Mounts      []Mount           `json:"mounts,omitempty"`
	Process     Process           `json:"process"`
	Linux       Linux             `json:"linux"`
	Hooks       *Hooks            `json:"hooks,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`

	// BundlePath is not part of config.json; it is recorded by the
	// loader for state.State.Bundle.
	BundlePath string `json:"-"`
}

// Rootfs returns the absolute root filesystem path for this container,
// resolved against the bundle directory when Root.Path is relative.
func (c *Config) Rootfs() string {
	if c.Root.Path == "" {
		return ""
	}
	if c.Root.Path[0] == '/' {
		return c.Root.Path
	}
	return c.BundlePath + "/" + c.Root.Path
}

// CreatedAt is a thin time wrapper kept here (rather than in package
// state) so Config and State can share the same JSON time encoding.
type CreatedAt = time.Time
