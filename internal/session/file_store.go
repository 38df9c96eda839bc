package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// FileStore persists one JSON document per session under a directory, with an
// in-memory cache in front. Timestamps serialize as RFC 3339 so records
// round-trip losslessly.
type FileStore struct {
	dir   string
	mu    sync.Mutex
	cache map[string]*Session
	max   int
}

// NewFileStore creates the directory if needed. max <= 0 uses the default
// session cap.
func NewFileStore(dir string, max int) (*FileStore, error) {
	if max <= 0 {
		max = defaultMaxSessions
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("session: create store dir: %w", err)
	}
	return &FileStore{
		dir:   dir,
		cache: make(map[string]*Session),
		max:   max,
	}, nil
}

func (f *FileStore) Create(ctx context.Context, id string) (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if id != "" {
		if s, ok := f.cache[id]; ok {
			return s, nil
		}
		if s, err := f.loadLocked(id); err == nil {
			f.cache[id] = s
			return s, nil
		}
	}
	if len(f.cache) >= f.max {
		f.evictOldestLocked()
	}
	s := New(id)
	if err := f.persistLocked(s); err != nil {
		return nil, err
	}
	f.cache[s.ID] = s
	return s, nil
}

func (f *FileStore) Get(_ context.Context, id string) (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if s, ok := f.cache[id]; ok {
		return s, nil
	}
	s, err := f.loadLocked(id)
	if err != nil {
		return nil, err
	}
	f.cache[id] = s
	return s, nil
}

func (f *FileStore) Put(_ context.Context, s *Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	s.Touch()
	if err := f.persistLocked(s); err != nil {
		return err
	}
	f.cache[s.ID] = s
	return nil
}

func (f *FileStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.cache, id)
	err := os.Remove(f.path(id))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("session: delete %s: %w", id, err)
	}
	return nil
}

func (f *FileStore) path(id string) string {
	return filepath.Join(f.dir, id+".json")
}

func (f *FileStore) persistLocked(s *Session) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("session: encode %s: %w", s.ID, err)
	}
	tmp := f.path(s.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("session: write %s: %w", s.ID, err)
	}
	if err := os.Rename(tmp, f.path(s.ID)); err != nil {
		return fmt.Errorf("session: commit %s: %w", s.ID, err)
	}
	return nil
}

func (f *FileStore) loadLocked(id string) (*Session, error) {
	data, err := os.ReadFile(f.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("session: read %s: %w", id, err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		// Corrupt persisted data is a programmer/operator error, not a
		// recoverable condition.
		return nil, fmt.Errorf("session: corrupt record %s: %w", id, err)
	}
	return &s, nil
}

// evictOldestLocked drops the oldest 10% of cached sessions by updated-at.
// The on-disk records are kept so an evicted session can still be reloaded.
func (f *FileStore) evictOldestLocked() {
	if len(f.cache) == 0 {
		return
	}
	ids := make([]string, 0, len(f.cache))
	for id := range f.cache {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return f.cache[ids[i]].UpdatedAt.Before(f.cache[ids[j]].UpdatedAt)
	})
	n := len(ids) / 10
	if n < 1 {
		n = 1
	}
	for _, id := range ids[:n] {
		delete(f.cache, id)
	}
}
