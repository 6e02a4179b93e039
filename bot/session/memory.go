package session

import (
	"context"
	"sync"
)

// memoryStore keeps sessions in process memory. State does not survive a
// restart; applicants simply start over.
type memoryStore struct {
	mu       sync.RWMutex
	sessions map[Key]*Session

	locksMu sync.Mutex
	locks   map[Key]*sync.Mutex
}

// NewMemoryStore returns the default in-process session store.
func NewMemoryStore() Store {
	return &memoryStore{
		sessions: make(map[Key]*Session),
		locks:    make(map[Key]*sync.Mutex),
	}
}

func (m *memoryStore) keyLock(key Key) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	return l
}

func (m *memoryStore) Get(_ context.Context, key Key) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[key]
	if !ok {
		return nil, nil
	}
	return s.Clone(), nil
}

func (m *memoryStore) Put(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.Key] = s.Clone()
	return nil
}

func (m *memoryStore) Delete(_ context.Context, key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, key)
	return nil
}

func (m *memoryStore) Do(ctx context.Context, key Key, fn func(*Session) error) error {
	lock := m.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	s, err := m.Get(ctx, key)
	if err != nil {
		return err
	}
	if s == nil {
		s = New(key)
	}
	if err := fn(s); err != nil {
		return err
	}
	return m.Put(ctx, s)
}
