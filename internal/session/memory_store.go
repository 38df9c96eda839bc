package session

import (
	"context"
	"sort"
	"sync"
)

const defaultMaxSessions = 1000

// MemoryStore keeps sessions in process memory with capacity-based eviction.
// Suitable for development and as the cache layer inside FileStore.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	max      int
}

// NewMemoryStore creates a memory store evicting the oldest sessions by
// updated-at once max is reached. max <= 0 uses the default cap.
func NewMemoryStore(max int) *MemoryStore {
	if max <= 0 {
		max = defaultMaxSessions
	}
	return &MemoryStore{
		sessions: make(map[string]*Session),
		max:      max,
	}
}

func (m *MemoryStore) Create(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id != "" {
		if existing, ok := m.sessions[id]; ok {
			return existing, nil
		}
	}
	if len(m.sessions) >= m.max {
		m.evictOldestLocked()
	}
	s := New(id)
	m.sessions[s.ID] = s
	return s, nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

func (m *MemoryStore) Put(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s.Touch()
	m.sessions[s.ID] = s
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, id)
	return nil
}

// Len reports the number of resident sessions.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// evictOldestLocked drops the oldest 10% of sessions by updated-at. The store
// mutex is held, so eviction never races a read or write of the evicted
// session.
func (m *MemoryStore) evictOldestLocked() {
	if len(m.sessions) == 0 {
		return
	}
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return m.sessions[ids[i]].UpdatedAt.Before(m.sessions[ids[j]].UpdatedAt)
	})
	n := len(ids) / 10
	if n < 1 {
		n = 1
	}
	for _, id := range ids[:n] {
		delete(m.sessions, id)
	}
}
