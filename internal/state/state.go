package state

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ErrNotFound is returned when no state exists for a job
var ErrNotFound = errors.New("state not found")

// State records a submitted load job
type State struct {
	JobID         string    `json:"job_id"`
	Location      string    `json:"location,omitempty"`
	Table         string    `json:"table"`
	SourceFile    string    `json:"source_file"`
	Status        string    `json:"status"` // "pending", "running", "completed", "failed"
	Error         string    `json:"error,omitempty"`
	ProcessedRows int64     `json:"processed_rows"`
	LastUpdated   time.Time `json:"last_updated"`
}

// Manager defines the interface for load job state storage
type Manager interface {
	// GetState retrieves the state for a job
	GetState(ctx context.Context, jobID string) (*State, error)

	// CreateState stores the state of a newly submitted job
	CreateState(ctx context.Context, state *State) error

	// UpdateState replaces the state of an existing job
	UpdateState(ctx context.Context, state *State) error

	// DeleteState removes the state for a job
	DeleteState(ctx context.Context, jobID string) error

	// ListStates returns the states for a destination table, or all states when table is empty
	ListStates(ctx context.Context, table string) ([]*State, error)
}

// NewManager creates a state manager by type: memory, file or kubernetes
func NewManager(stateType, dir, namespace string) (Manager, error) {
	switch stateType {
	case "", "memory":
		return NewMemoryManager(), nil
	case "file":
		return NewFileManager(dir)
	case "kubernetes":
		return NewInClusterManager(namespace)
	default:
		return nil, fmt.Errorf("unsupported state type: %s", stateType)
	}
}

// MemoryManager implements the Manager interface using in-memory storage
// This is useful for testing and single-run invocations
type MemoryManager struct {
	states map[string]State
	mu     sync.RWMutex
}

// NewMemoryManager creates a new in-memory state manager
func NewMemoryManager() *MemoryManager {
	return &MemoryManager{
		states: make(map[string]State),
	}
}

func (m *MemoryManager) GetState(ctx context.Context, jobID string) (*State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if state, exists := m.states[jobID]; exists {
		return &state, nil
	}
	return nil, fmt.Errorf("job %s: %w", jobID, ErrNotFound)
}

func (m *MemoryManager) CreateState(ctx context.Context, state *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.states[state.JobID]; exists {
		return fmt.Errorf("state already exists for job %s", state.JobID)
	}
	m.states[state.JobID] = *state
	return nil
}

func (m *MemoryManager) UpdateState(ctx context.Context, state *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.states[state.JobID]; !exists {
		return fmt.Errorf("job %s: %w", state.JobID, ErrNotFound)
	}
	m.states[state.JobID] = *state
	return nil
}

func (m *MemoryManager) DeleteState(ctx context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.states, jobID)
	return nil
}

func (m *MemoryManager) ListStates(ctx context.Context, table string) ([]*State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var states []*State
	for _, state := range m.states {
		if table == "" || state.Table == table {
			s := state
			states = append(states, &s)
		}
	}
	sortStates(states)
	return states, nil
}

// oldest first
func sortStates(states []*State) {
	sort.Slice(states, func(i, j int) bool {
		if !states[i].LastUpdated.Equal(states[j].LastUpdated) {
			return states[i].LastUpdated.Before(states[j].LastUpdated)
		}
		return states[i].JobID < states[j].JobID
	})
}
