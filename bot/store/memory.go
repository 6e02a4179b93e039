package store

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-process UserStore used in tests and by the scheduler
// tests' fixtures.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[int64]*UserRecord
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[int64]*UserRecord)}
}

// Get implements UserStore.
func (m *MemoryStore) Get(_ context.Context, userID int64) (*UserRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.users[userID]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

// Set implements UserStore.
func (m *MemoryStore) Set(_ context.Context, rec *UserRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.users[rec.UserID] = &cp
	return nil
}

// Delete implements UserStore.
func (m *MemoryStore) Delete(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, userID)
	return nil
}

// All implements UserStore.
func (m *MemoryStore) All(_ context.Context) ([]*UserRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*UserRecord, 0, len(m.users))
	for _, rec := range m.users {
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}
