// Package view derives the visible page of the user collection.  Everything
// here is a pure function of its arguments; the input slice is never
// modified.
package view

import (
	"slices"

	"github.com/afoley587/coding-challenges-2025/usersync/internal/collection"
	"github.com/afoley587/coding-challenges-2025/usersync/internal/user"
)

// Page is the visible slice of the collection plus what the pagination
// controls need.
type Page struct {
	Users       []user.User
	CurrentPage int
	TotalPages  int
	Total       int
	// From and To are the 1-based positions of the first and last visible
	// record, both 0 when the page is empty.
	From int
	To   int
}

// ControlsActive reports whether pagination controls should be shown.
func (p Page) ControlsActive() bool { return p.TotalPages > 1 }

// HasPrev reports whether a previous page exists.
func (p Page) HasPrev() bool { return p.CurrentPage > 1 }

// HasNext reports whether a following page exists.
func (p Page) HasNext() bool { return p.CurrentPage < p.TotalPages }

// Pages lists the selectable page numbers, 1 through TotalPages.
func (p Page) Pages() []int {
	pages := make([]int, p.TotalPages)
	for i := range pages {
		pages[i] = i + 1
	}
	return pages
}

// Of derives the page for a store snapshot.
func Of(s collection.State) Page {
	return Derive(s.Users, s.SortField, s.SortOrder, s.CurrentPage, s.ItemsPerPage)
}

// Derive sorts users by field (when set) and cuts out page number page of
// size perPage.  An out-of-range page yields an empty result.
func Derive(users []user.User, field user.Field, order collection.SortOrder, page, perPage int) Page {
	sorted := Sort(users, field, order)

	out := Page{
		Users:       []user.User{},
		CurrentPage: page,
		Total:       len(sorted),
	}
	if perPage <= 0 || len(sorted) == 0 {
		return out
	}
	out.TotalPages = (len(sorted) + perPage - 1) / perPage
	if page < 1 || page > out.TotalPages {
		return out
	}

	start := (page - 1) * perPage
	end := min(page*perPage, len(sorted))

	out.Users = user.CloneAll(sorted[start:end])
	out.From = start + 1
	out.To = end
	return out
}

// Sort returns a sorted copy of users.  The comparison is stable; a
// descending order reverses the ascending result.  An empty field returns
// an unsorted copy.
func Sort(users []user.User, field user.Field, order collection.SortOrder) []user.User {
	sorted := user.CloneAll(users)
	if field == "" || len(sorted) < 2 {
		return sorted
	}
	slices.SortStableFunc(sorted, func(a, b user.User) int {
		return user.Compare(a, b, field)
	})
	if order == collection.Desc {
		slices.Reverse(sorted)
	}
	return sorted
}
