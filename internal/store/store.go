package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/afoley587/coding-challenges-2025/usersync/internal/user"
)

// ErrNotFound is returned by UpdateUser and DeleteUser when no record has
// the requested id.
var ErrNotFound = errors.New("user not found")

// UserStore defines the persistence behind the users API.
//
// Implementations may use different backends (in-memory for tests, Redis
// or SQLite for a long-running server).  The HTTP handlers depend on this
// abstraction rather than a concrete data store.
//
// Every backend keeps records in creation order; ListUsers returns them in
// that order and updates never move a record.
type UserStore interface {
	// ListUsers returns all users in creation order.
	ListUsers(ctx context.Context) ([]user.User, error)
	// GetUser returns the user identified by id or nil if the user does
	// not exist.  A nil error is returned when the user isn't found.
	GetUser(ctx context.Context, id string) (*user.User, error)
	// CreateUser stores a new user.  The store assigns a unique id and,
	// when the draft has none, the registration date.
	CreateUser(ctx context.Context, draft user.Draft) (user.User, error)
	// UpdateUser replaces the record with u.ID.  The registration date is
	// kept when u carries a zero one.
	UpdateUser(ctx context.Context, u user.User) (user.User, error)
	// DeleteUser removes the record and returns it.
	DeleteUser(ctx context.Context, id string) (user.User, error)
	// Close releases the backend's resources.
	Close() error
}

// newRecord turns a draft into a stored record.
func newRecord(draft user.Draft, now time.Time) user.User {
	if draft.RegistrationDate.IsZero() {
		draft.RegistrationDate = now.UTC()
	}
	return draft.WithID(uuid.NewString())
}

// mergeUpdate applies the rules of UpdateUser on top of the stored record.
func mergeUpdate(stored, next user.User) user.User {
	next = next.Clone()
	if next.RegistrationDate.IsZero() {
		next.RegistrationDate = stored.RegistrationDate
	}
	return next
}
