package collection

import (
	"slices"

	"github.com/afoley587/coding-challenges-2025/usersync/internal/user"
)

// ItemsPerPage is the fixed page size of the collection view.
const ItemsPerPage = 5

// SortOrder is the direction of the active sort.
type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// Toggle returns the opposite order.
func (o SortOrder) Toggle() SortOrder {
	if o == Desc {
		return Asc
	}
	return Desc
}

// State is the client-side copy of the remote collection plus the
// parameters of its view.  Error is empty when no fetch failure is
// recorded; SortField is empty when no sort is active.
type State struct {
	Users        []user.User
	Loading      bool
	Error        string
	CurrentPage  int
	ItemsPerPage int
	SortField    user.Field
	SortOrder    SortOrder
}

// InitialState is the state a Store starts from.
func InitialState() State {
	return State{
		Users:        []user.User{},
		CurrentPage:  1,
		ItemsPerPage: ItemsPerPage,
		SortOrder:    Asc,
	}
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	s.Users = user.CloneAll(s.Users)
	return s
}

// Event is a lifecycle event or user intent applied to a State.  The set of
// events is closed; see Reduce.
type Event interface {
	apply(State) State
}

// BeginFetch marks a full fetch as in flight.
type BeginFetch struct{}

// FetchSucceeded replaces the whole collection with the server's list.
type FetchSucceeded struct{ Users []user.User }

// FetchFailed records a failed full fetch.
type FetchFailed struct{ Message string }

// CreateSucceeded appends a record created by the server.
type CreateSucceeded struct{ User user.User }

// UpdateSucceeded replaces the record with the same id.
type UpdateSucceeded struct{ User user.User }

// DeleteSucceeded removes the record with the given id.
type DeleteSucceeded struct{ ID string }

// SetPage moves the view to a page.  The value is not clamped.
type SetPage struct{ Page int }

// SetSorting sorts by a field, or flips the order when the field is already
// active.
type SetSorting struct{ Field user.Field }

// Reduce applies ev to s and returns the new state.  It never mutates s or
// anything s references, and it is total: every event yields a valid state.
// A nil event leaves the state unchanged.
func Reduce(s State, ev Event) State {
	if ev == nil {
		return s
	}
	return ev.apply(s)
}

func (BeginFetch) apply(s State) State {
	s.Loading = true
	s.Error = ""
	return s
}

func (e FetchSucceeded) apply(s State) State {
	s.Loading = false
	s.Users = user.CloneAll(e.Users)
	if s.Users == nil {
		s.Users = []user.User{}
	}
	return s
}

func (e FetchFailed) apply(s State) State {
	s.Loading = false
	s.Error = e.Message
	return s
}

func (e CreateSucceeded) apply(s State) State {
	// A fetch that settled first may already hold the record.
	if i := slices.IndexFunc(s.Users, func(u user.User) bool { return u.ID == e.User.ID }); i >= 0 {
		users := slices.Clone(s.Users)
		users[i] = e.User.Clone()
		s.Users = users
		return s
	}
	users := make([]user.User, len(s.Users), len(s.Users)+1)
	copy(users, s.Users)
	s.Users = append(users, e.User.Clone())
	return s
}

func (e UpdateSucceeded) apply(s State) State {
	i := slices.IndexFunc(s.Users, func(u user.User) bool { return u.ID == e.User.ID })
	if i < 0 {
		return s
	}
	users := slices.Clone(s.Users)
	users[i] = e.User.Clone()
	s.Users = users
	return s
}

func (e DeleteSucceeded) apply(s State) State {
	if !slices.ContainsFunc(s.Users, func(u user.User) bool { return u.ID == e.ID }) {
		return s
	}
	s.Users = slices.DeleteFunc(slices.Clone(s.Users), func(u user.User) bool { return u.ID == e.ID })
	return s
}

func (e SetPage) apply(s State) State {
	s.CurrentPage = e.Page
	return s
}

func (e SetSorting) apply(s State) State {
	if e.Field == s.SortField {
		s.SortOrder = s.SortOrder.Toggle()
		return s
	}
	s.SortField = e.Field
	s.SortOrder = Asc
	return s
}
