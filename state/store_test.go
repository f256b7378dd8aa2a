package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCreateLoadRemove(t *testing.T) {
	root := t.TempDir()
	s, err := New(root)
	require.NoError(t, err)

	st := &State{ID: "c1", Status: Creating, Bundle: "/bundle", Created: time.Now()}
	require.NoError(t, s.Create(st, []byte(`{"ociVersion":"1.0.2"}`)))

	require.ErrorIs(t, s.Create(st, nil), ErrExist)

	loaded, err := s.Load("c1")
	require.NoError(t, err)
	require.Equal(t, "c1", loaded.ID)
	require.Equal(t, Creating, loaded.Status)

	loaded.Status = Created
	loaded.Pid = 4242
	require.NoError(t, s.Save(loaded))

	reloaded, err := s.Load("c1")
	require.NoError(t, err)
	require.Equal(t, Created, reloaded.Status)
	require.Equal(t, 4242, reloaded.Pid)

	ids, err := s.List()
	require.NoError(t, err)
	require.Contains(t, ids, "c1")

	require.NoError(t, s.Remove("c1"))
	_, err = s.Load("c1")
	require.ErrorIs(t, err, ErrNotExist)
}

func TestLockMutualExclusion(t *testing.T) {
	root := t.TempDir()
	s, err := New(root)
	require.NoError(t, err)

	lock, err := s.AcquireLock("c2", time.Second)
	require.NoError(t, err)

	_, err = s.AcquireLock("c2", 100*time.Millisecond)
	require.ErrorIs(t, err, ErrBusy)

	require.NoError(t, lock.Unlock())

	lock2, err := s.AcquireLock("c2", time.Second)
	require.NoError(t, err)
	require.NoError(t, lock2.Unlock())
}

func TestStatusJSONRoundtrip(t *testing.T) {
	for _, want := range []Status{Creating, Created, Running, Stopped} {
		data, err := want.MarshalJSON()
		require.NoError(t, err)
		var got Status
		require.NoError(t, got.UnmarshalJSON(data))
		require.Equal(t, want, got)
	}
}
