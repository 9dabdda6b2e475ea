// Package sessionstore keeps decoy conversation records keyed by session id and
// serializes every read-modify-write on a single id.
package sessionstore

import (
	"context"
	"errors"

	"honeypot-lab/internal/domain/models"
)

var (
	// ErrSessionNotFound is returned by Get for unknown or evicted sessions
	ErrSessionNotFound = errors.New("session not found")
	// ErrLockTimeout is returned when a session stayed locked past the wait budget
	ErrLockTimeout = errors.New("timed out waiting for session lock")
)

// UpdateFunc mutates a session inside its critical section. created is true when
// the record did not exist (or had been evicted) and was made fresh for this call.
// Returning an error discards every mutation made by the function.
type UpdateFunc func(s *models.Session, created bool) error

// Store is the session persistence boundary
type Store interface {
	// Update loads or creates the session, applies fn exclusively and stores the
	// result. It returns a copy of the stored session.
	Update(ctx context.Context, id string, fn UpdateFunc) (*models.Session, error)
	// Get returns a copy of the session without creating it
	Get(ctx context.Context, id string) (*models.Session, error)
	// Count returns the number of live sessions
	Count(ctx context.Context) (int, error)
}
