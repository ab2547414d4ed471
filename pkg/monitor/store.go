package monitor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Store persists the monitor's files under one directory: append-only cycle
// snapshots, the running state file, the status file, and incident reports.
type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	for _, sub := range []string{"snapshots", "reports"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create state dir: %w", err)
		}
	}
	return &Store{dir: dir}, nil
}

// SaveSnapshot appends a cycle snapshot and returns its ref (the file name).
func (s *Store) SaveSnapshot(cs *CycleSnapshot) (string, error) {
	ref := fmt.Sprintf("cycle-%d.json", cs.TakenAt)
	data, err := json.MarshalIndent(cs, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, "snapshots", ref), data, 0o644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return ref, nil
}

func (s *Store) LoadSnapshot(ref string) (*CycleSnapshot, error) {
	if ref == "" {
		return nil, nil
	}
	data, err := os.ReadFile(filepath.Join(s.dir, "snapshots", ref))
	if err != nil {
		return nil, err
	}
	var cs CycleSnapshot
	if err := json.Unmarshal(data, &cs); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", ref, err)
	}
	return &cs, nil
}

// LoadState returns the running state, or a fresh one when none exists yet.
func (s *Store) LoadState() (*State, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, "state.json"))
	if os.IsNotExist(err) {
		return &State{}, nil
	}
	if err != nil {
		return nil, err
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	return &st, nil
}

// SaveState writes the state file atomically so a crashed cycle never leaves
// a torn state behind.
func (s *Store) SaveState(st *State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	path := filepath.Join(s.dir, "state.json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return os.Rename(tmp, path)
}

func (s *Store) WriteStatus(text string) error {
	return os.WriteFile(filepath.Join(s.dir, "status.txt"), []byte(text), 0o644)
}

func (s *Store) WriteReport(inc *Incident, takenAt int64, text string) error {
	name := fmt.Sprintf("%s-%d.txt", inc.ID, takenAt)
	return os.WriteFile(filepath.Join(s.dir, "reports", name), []byte(text), 0o644)
}
