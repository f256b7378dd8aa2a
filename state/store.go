package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

// ErrNotExist indicates no state directory exists for the given id.
var ErrNotExist = fmt.Errorf("container does not exist")

// ErrExist indicates a state directory already exists for the given id.
var ErrExist = fmt.Errorf("container already exists")

// ErrBusy indicates the per-container lock could not be acquired within
// the bounded timeout of spec.md §4.1.
var ErrBusy = fmt.Errorf("container is busy")

const (
	stateFileName  = "state.json"
	configFileName = "config.json"
	lockFileName   = "container.lock"
)

// Store mediates access to the on-disk per-container directories under
// Root, matching the layout of spec.md §6:
// <root>/<id>/{state.json,config.json,container.lock}.
type Store struct {
	Root string
}

// New returns a Store rooted at root, creating it if necessary.
func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o711); err != nil {
		return nil, fmt.Errorf("create state root %s: %w", root, err)
	}
	return &Store{Root: root}, nil
}

func (s *Store) dir(id string) string {
	return filepath.Join(s.Root, id)
}

// Exists reports whether a state directory for id is already present.
func (s *Store) Exists(id string) bool {
	_, err := os.Stat(s.dir(id))
	return err == nil
}

// Lock is a held per-container file lock; the caller must call Unlock.
type Lock struct {
	f *os.File
}

// Unlock releases the flock and closes the underlying file.
func (l *Lock) Unlock() error {
	if l.f == nil {
		return nil
	}
	err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	l.f.Close()
	return err
}

// AcquireLock blocks until the per-container exclusive lock is obtained
// or timeout elapses, at which point it returns ErrBusy (spec.md §4.1).
func (s *Store) AcquireLock(id string, timeout time.Duration) (*Lock, error) {
	dir := s.dir(id)
	if err := os.MkdirAll(dir, 0o711); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(filepath.Join(dir, lockFileName), os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(timeout)
	for {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return &Lock{f: f}, nil
		}
		if err != unix.EWOULDBLOCK {
			f.Close()
			return nil, err
		}
		if timeout > 0 && time.Now().After(deadline) {
			f.Close()
			return nil, ErrBusy
		}
		time.Sleep(20 * time.Millisecond)
	}
}

// Create atomically writes a brand-new state record, failing with
// ErrExist if the container directory is already populated.
func (s *Store) Create(st *State, configJSON []byte) error {
	dir := s.dir(st.ID)
	if _, err := os.Stat(filepath.Join(dir, stateFileName)); err == nil {
		return ErrExist
	}
	if err := os.MkdirAll(dir, 0o711); err != nil {
		return err
	}
	if err := s.writeAtomic(filepath.Join(dir, configFileName), configJSON); err != nil {
		return err
	}
	return s.Save(st)
}

// Save atomically overwrites state.json via write-to-temp + rename.
func (s *Store) Save(st *State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return s.writeAtomic(filepath.Join(s.dir(st.ID), stateFileName), data)
}

func (s *Store) writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Load reads the persisted state record for id.
func (s *Store) Load(id string) (*State, error) {
	data, err := os.ReadFile(filepath.Join(s.dir(id), stateFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotExist
		}
		return nil, err
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse state.json: %w", err)
	}
	return &st, nil
}

// LoadConfig reads back the frozen config.json snapshot for id.
func (s *Store) LoadConfig(id string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.dir(id), configFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotExist
		}
		return nil, err
	}
	return data, nil
}

// Remove erases the entire per-container directory, matching delete()'s
// "no files remain under <root>/<id>" invariant (spec.md §8).
func (s *Store) Remove(id string) error {
	return os.RemoveAll(s.dir(id))
}

// List returns the ids of every container directory under Root.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.Root)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}
