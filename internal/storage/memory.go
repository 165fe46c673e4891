package storage

import (
	"context"
	"sync"

	"tally/internal/core"
)

// MemoryStore keeps the snapshot in process memory. It backs tests and the
// default dev backend.
type MemoryStore struct {
	mu    sync.Mutex
	state *core.AppState

	// WriteErr, when set, is returned by Write. Tests use it to exercise the
	// best-effort persistence path.
	WriteErr error
	Writes   int
}

// NewMemoryStore returns an empty in-memory persister.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Read(ctx context.Context) (*core.AppState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return nil, nil
	}
	return m.state.Clone(), nil
}

func (m *MemoryStore) Write(ctx context.Context, state *core.AppState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Writes++
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.state = state.Clone()
	return nil
}

func (m *MemoryStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = nil
	return nil
}
