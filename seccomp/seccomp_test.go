package seccomp

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anyawal/corerun/configs"
)

func TestLoadNilIsNoop(t *testing.T) {
	require.NoError(t, Load(nil))
}

func TestLoadRejectsUnknownDefaultAction(t *testing.T) {
	err := Load(&configs.Seccomp{DefaultAction: "SCMP_ACT_BOGUS"})
	require.Error(t, err)
}

func TestLoadRejectsUnknownSyscallAction(t *testing.T) {
	err := Load(&configs.Seccomp{
		DefaultAction: "SCMP_ACT_ALLOW",
		Syscalls: []configs.SeccompSyscall{
			{Names: []string{"clone"}, Action: "SCMP_ACT_BOGUS"},
		},
	})
	require.Error(t, err)
}
