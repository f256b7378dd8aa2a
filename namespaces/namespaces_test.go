package namespaces

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/anyawal/corerun/configs"
)

func TestCloneFlagsSkipsJoinedNamespaces(t *testing.T) {
	list := configs.Namespaces{
		{Type: configs.NEWPID},
		{Type: configs.NEWNET, Path: "/var/run/netns/existing"},
	}
	flags := CloneFlags(list)
	require.NotZero(t, flags&unix.CLONE_NEWPID)
	require.Zero(t, flags&unix.CLONE_NEWNET)
}

func TestOrderedPutsUserFirst(t *testing.T) {
	list := configs.Namespaces{
		{Type: configs.NEWNET},
		{Type: configs.NEWUSER},
		{Type: configs.NEWNS},
	}
	out := Ordered(list)
	require.Equal(t, configs.NEWUSER, out[0].Type)
	require.Equal(t, configs.NEWNS, out[1].Type)
}

