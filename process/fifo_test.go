package process

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExecFifoRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path, err := createExecFifo(dir)
	require.NoError(t, err)

	f, err := openExecFifoRDWR(path)
	require.NoError(t, err)
	defer f.Close()

	done := make(chan error, 1)
	go func() {
		done <- waitExecFifo(f)
	}()

	require.NoError(t, SignalStart(path))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("waitExecFifo never returned after SignalStart")
	}
}
