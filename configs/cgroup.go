package configs

// Cgroup is the aggregate resource record of spec.md §3: CPU, memory,
// IO, pids, hugetlb, network, devices, freezer, and an escape hatch for
// arbitrary cgroup v2 keys that have no v1 analogue.
type Cgroup struct {
	// Path is resolved relative to each v1 controller's mount point, or
	// to the v2 unified mount point. Empty means derive one from the
	// container ID (see Open Questions in SPEC_FULL.md for the
	// --systemd-cgroup interaction).
	Path string

	Resources *Resources
}

// Resources holds the resource limits themselves, decoupled from Path so
// Set(resources) can be called without re-deriving the cgroup location.
type Resources struct {
	CPU     CPU
	Memory  Memory
	IO      IO
	Pids    Pids
	HugeTLB []HugepageLimit
	Network Network
	Devices []DeviceRule
	Freezer FreezerState

	// Unified carries raw v2 file/value pairs for settings with no v1
	// equivalent (e.g. "memory.swap.max", "cpu.idle").
	Unified map[string]string
}

type CPU struct {
	Shares          uint64
	Quota           int64
	Period          uint64
	RealtimeRuntime int64
	RealtimePeriod  uint64
	Cpus            string
	Mems            string
}

type Memory struct {
	Limit            int64
	Reservation      int64
	Swap             int64
	KernelMemory     int64
	DisableOOMKiller bool
	Swappiness       *uint64
}

type IO struct {
	Weight          uint16
	LeafWeight      uint16
	ThrottleReadBps  []ThrottleDevice
	ThrottleWriteBps []ThrottleDevice
	ThrottleReadIOPS []ThrottleDevice
	ThrottleWriteIOPS []ThrottleDevice
}

type ThrottleDevice struct {
	Major int64
	Minor int64
	Rate  uint64
}

type Pids struct {
	Limit int64
}

type HugepageLimit struct {
	Pagesize string
	Limit    uint64
}

type Network struct {
	ClassID    *uint32
	Priorities []NetPriority
}

type NetPriority struct {
	Interface string
	Priority  uint32
}

// DeviceRule mirrors configs.Device's allow/deny semantics for the
// devices cgroup (v1 devices.allow/deny, v2 eBPF program).
type DeviceRule struct {
	Type        rune // 'a', 'b', 'c'
	Major       int64 // -1 means wildcard
	Minor       int64
	Permissions string // subset of "rwm"
	Allow       bool
}

type FreezerState string

const (
	Undefined FreezerState = ""
	Frozen    FreezerState = "FROZEN"
	Thawed    FreezerState = "THAWED"
)
