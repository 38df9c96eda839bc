package session

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no session exists for the id, letting
// callers distinguish a 404-equivalent from a real failure.
var ErrNotFound = errors.New("session: not found")

// Store owns session records. Implementations must make capacity eviction
// mutually exclusive with per-session reads and writes.
type Store interface {
	// Create returns a new session. A non-empty id is honored to preserve
	// client-side continuity; if a session with that id already exists it is
	// returned instead.
	Create(ctx context.Context, id string) (*Session, error)
	// Get loads a session or ErrNotFound.
	Get(ctx context.Context, id string) (*Session, error)
	// Put persists the session, bumping its updated-at timestamp.
	Put(ctx context.Context, s *Session) error
	// Delete removes a session. Deleting a missing session is not an error.
	Delete(ctx context.Context, id string) error
}
