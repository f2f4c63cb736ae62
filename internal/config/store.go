package config

import (
	"sync/atomic"
)

// Store holds the current Snapshot. Readers get the snapshot that was
// current at the time of the call; Reload swaps the whole value.
type Store struct {
	path    string
	current atomic.Pointer[Snapshot]
}

// NewStore loads the configuration at path into a new Store. The returned
// error is informational: the Store always holds a usable snapshot.
func NewStore(path string) (*Store, error) {
	s := &Store{path: path}
	err := s.Reload()
	return s, err
}

// NewStaticStore wraps an already built snapshot. Reload is a no-op.
func NewStaticStore(snap *Snapshot) *Store {
	s := &Store{}
	s.current.Store(snap)
	return s
}

// Path returns the configuration file path, empty for static stores.
func (s *Store) Path() string {
	return s.path
}

// Snapshot returns the current configuration.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Reload re-reads the configuration file and replaces the snapshot.
func (s *Store) Reload() error {
	if s.path == "" {
		return nil
	}
	snap, err := Load(s.path)
	s.current.Store(snap)
	return err
}

// Set replaces the snapshot directly.
func (s *Store) Set(snap *Snapshot) {
	s.current.Store(snap)
}
