package api

import (
	"context"
	"fmt"

	"github.com/afoley587/coding-challenges-2025/usersync/internal/user"
)

// Client is the remote CRUD contract the collection is synchronized with.
//
// Every method fails with a *TransportError when the call could not be
// completed (network failure or a non-success response) and with a
// *user.ParseError when the server answered with a malformed record.
type Client interface {
	// List returns every record in server order.
	List(ctx context.Context) ([]user.User, error)
	// Create stores a new record.  The server assigns the id and may
	// assign the registration date.
	Create(ctx context.Context, draft user.Draft) (user.User, error)
	// Update replaces the full record identified by u.ID.
	Update(ctx context.Context, u user.User) (user.User, error)
	// Delete removes the record and returns the confirmed id.
	Delete(ctx context.Context, id string) (string, error)
}

// TransportError is the single failure category of the remote API.  Status
// is the HTTP status code, or 0 when no response was received.
type TransportError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: remote api returned status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
