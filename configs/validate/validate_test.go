package validate

import (
	"testing"

	"github.com/anyawal/corerun/configs"
)

func TestProcMount(t *testing.T) {
	v := &ConfigValidator{}

	config := &configs.Config{
		Root:  configs.Root{Path: "rootfs"},
		Linux: configs.Linux{Namespaces: configs.Namespaces{{Type: configs.NEWPID}}},
	}
	if err := v.procMount(config); err != nil {
		t.Fatalf("procMount failed to check proc mount: %v", err)
	}

	config = &configs.Config{
		Root:  configs.Root{Path: "rootfs"},
		Linux: configs.Linux{Namespaces: configs.Namespaces{{Type: configs.NEWNS}}},
		Mounts: []configs.Mount{
			{Source: "proc", Destination: "/proc"},
		},
	}
	if err := v.procMount(config); err == nil {
		t.Fatalf("expected procMount to reject /proc without a new PID namespace")
	}

	config = &configs.Config{
		Root:  configs.Root{Path: "rootfs"},
		Linux: configs.Linux{Namespaces: configs.Namespaces{{Type: configs.NEWNS}}},
	}
	if err := v.procMount(config); err != nil {
		t.Fatalf("procMount failed with no /proc mount present: %v", err)
	}
}

func TestUsernamespaceRequiresMappings(t *testing.T) {
	v := &ConfigValidator{}

	config := &configs.Config{
		Root: configs.Root{Path: "rootfs"},
		Linux: configs.Linux{
			Namespaces: configs.Namespaces{{Type: configs.NEWUSER}},
		},
	}
	if err := v.usernamespace(config); err == nil {
		t.Fatalf("expected error for user namespace without mappings")
	}

	config.Linux.UIDMappings = []configs.IDMap{{ContainerID: 0, HostID: 100000, Size: 65536}}
	config.Linux.GIDMappings = []configs.IDMap{{ContainerID: 0, HostID: 100000, Size: 65536}}
	if err := v.usernamespace(config); err != nil {
		t.Fatalf("usernamespace failed with valid mappings: %v", err)
	}
}

func TestRootfsRequired(t *testing.T) {
	v := &ConfigValidator{}
	if err := v.rootfs(&configs.Config{}); err == nil {
		t.Fatalf("expected error for empty root path")
	}
}

func TestHostnameRequiresUTSNamespace(t *testing.T) {
	v := &ConfigValidator{}

	config := &configs.Config{Hostname: "box"}
	if err := v.hostname(config); err == nil {
		t.Fatalf("expected error for hostname without a UTS namespace")
	}

	config.Linux.Namespaces = configs.Namespaces{{Type: configs.NEWUTS}}
	if err := v.hostname(config); err != nil {
		t.Fatalf("hostname failed with a UTS namespace present: %v", err)
	}
}
