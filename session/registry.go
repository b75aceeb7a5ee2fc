package session

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a key has no entry.
var ErrNotFound = errors.New("session: not found")

// Entry binds an external key to a CLI session.
type Entry struct {
	Key       string    `json:"key"`
	SessionID string    `json:"session_id"`
	Agent     string    `json:"agent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Registry stores Entries by key.
type Registry interface {
	// Get returns the entry for key, or an error wrapping ErrNotFound.
	Get(ctx context.Context, key string) (Entry, error)
	// Put creates or replaces the entry for e.Key.
	Put(ctx context.Context, e Entry) error
	// Delete removes the entry for key, or returns an error wrapping ErrNotFound.
	Delete(ctx context.Context, key string) error
	// Keys lists the live keys in no particular order.
	Keys(ctx context.Context) ([]string, error)
}

// NewEntry returns an entry stamped with the current time.
func NewEntry(key, sessionID string) Entry {
	now := time.Now().UTC()
	return Entry{Key: key, SessionID: sessionID, CreatedAt: now, UpdatedAt: now}
}

func (e Entry) validate() error {
	if e.Key == "" {
		return errors.New("session: empty key")
	}
	if e.SessionID == "" {
		return fmt.Errorf("session: entry %q has no session id", e.Key)
	}
	return nil
}

func notFound(key string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, key)
}
