// Package file implements the JSON-file storage backend. The whole data set
// is loaded and rewritten on every operation; a single process-wide mutex
// serializes read-modify-write cycles so concurrent requests cannot lose
// updates to each other.
package file

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/taskledger/core/internal/domain/entities"
)

// Store owns the backing data file. All access goes through View or Update,
// which hold the mutex for the full load(+mutate+save) cycle.
type Store struct {
	mu   sync.Mutex
	path string
}

// New creates a store backed by the file at path. The file is created with
// an empty snapshot on first load if it does not exist.
func New(path string) *Store {
	return &Store{path: path}
}

// Load reads the current snapshot from disk.
func (s *Store) Load() (*entities.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Save rewrites the data file with the given snapshot.
func (s *Store) Save(snap *entities.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(snap)
}

// View runs fn against the current snapshot without persisting changes.
func (s *Store) View(fn func(*entities.Snapshot) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.load()
	if err != nil {
		return err
	}
	return fn(snap)
}

// Update runs fn against the current snapshot and persists the result. If fn
// returns an error nothing is written and the file keeps its last saved
// state.
func (s *Store) Update(fn func(*entities.Snapshot) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(snap); err != nil {
		return err
	}
	return s.save(snap)
}

func (s *Store) load() (*entities.Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			snap := &entities.Snapshot{Users: []entities.User{}, Tasks: []entities.Task{}}
			if err := s.save(snap); err != nil {
				return nil, err
			}
			return snap, nil
		}
		return nil, fmt.Errorf("read data file: %w", err)
	}

	var snap entities.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode data file: %w", err)
	}

	if snap.Users == nil {
		snap.Users = []entities.User{}
	}
	if snap.Tasks == nil {
		snap.Tasks = []entities.Task{}
	}

	return &snap, nil
}

func (s *Store) save(snap *entities.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode data file: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("write data file: %w", err)
	}

	return nil
}
