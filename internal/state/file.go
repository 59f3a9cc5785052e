package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
)

// FileManager implements the Manager interface using one JSON file per job
type FileManager struct {
	baseDir string
	mu      sync.RWMutex
}

// NewFileManager creates a file-based state manager rooted at baseDir
func NewFileManager(baseDir string) (*FileManager, error) {
	if baseDir == "" {
		baseDir = ".gbqetl"
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &FileManager{baseDir: baseDir}, nil
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

func (m *FileManager) stateFile(jobID string) string {
	return filepath.Join(m.baseDir, unsafeFileChars.ReplaceAllString(jobID, "_")+".state")
}

func (m *FileManager) GetState(ctx context.Context, jobID string) (*State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.readState(jobID)
}

func (m *FileManager) readState(jobID string) (*State, error) {
	data, err := os.ReadFile(m.stateFile(jobID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("job %s: %w", jobID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return &state, nil
}

func (m *FileManager) CreateState(ctx context.Context, state *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := os.Stat(m.stateFile(state.JobID)); err == nil {
		return fmt.Errorf("state already exists for job %s", state.JobID)
	}
	return m.saveState(state)
}

func (m *FileManager) UpdateState(ctx context.Context, state *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := os.Stat(m.stateFile(state.JobID)); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("job %s: %w", state.JobID, ErrNotFound)
	}
	return m.saveState(state)
}

func (m *FileManager) DeleteState(ctx context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.Remove(m.stateFile(jobID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete state file: %w", err)
	}
	return nil
}

func (m *FileManager) ListStates(ctx context.Context, table string) ([]*State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries, err := os.ReadDir(m.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read state directory: %w", err)
	}

	var states []*State
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".state" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(m.baseDir, entry.Name()))
		if err != nil {
			continue
		}

		var state State
		if err := json.Unmarshal(data, &state); err != nil {
			continue
		}
		if table == "" || state.Table == table {
			states = append(states, &state)
		}
	}

	sortStates(states)
	return states, nil
}

// saveState writes through a temp file so readers never see a partial state
func (m *FileManager) saveState(state *State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	path := m.stateFile(state.JobID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	return nil
}
