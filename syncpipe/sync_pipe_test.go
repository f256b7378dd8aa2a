package syncpipe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSendRecvRoundtrip(t *testing.T) {
	parent, child, err := New()
	require.NoError(t, err)
	defer parent.Close()
	defer child.Close()

	require.NoError(t, child.Send(Message{Kind: ChildReady}))

	m, err := parent.Expect(ChildReady, time.Now().Add(2*time.Second))
	require.NoError(t, err)
	require.Equal(t, ChildReady, m.Kind)
}

func TestExpectSurfacesError(t *testing.T) {
	parent, child, err := New()
	require.NoError(t, err)
	defer parent.Close()
	defer child.Close()

	require.NoError(t, child.SendError("SetupFailed", "rootfs", "bind mount source missing"))

	_, err = parent.Expect(SetupComplete, time.Now().Add(2*time.Second))
	require.Error(t, err)
	require.Contains(t, err.Error(), "bind mount source missing")
}

func TestExpectWrongKind(t *testing.T) {
	parent, child, err := New()
	require.NoError(t, err)
	defer parent.Close()
	defer child.Close()

	require.NoError(t, child.Send(Message{Kind: ChildReady}))

	_, err = parent.Expect(SetupComplete, time.Now().Add(2*time.Second))
	require.Error(t, err)
}

func TestRecvDeadline(t *testing.T) {
	parent, child, err := New()
	require.NoError(t, err)
	defer parent.Close()
	defer child.Close()

	_, err = parent.Recv(time.Now().Add(50 * time.Millisecond))
	require.Error(t, err)
}
