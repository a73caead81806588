package collection_test

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afoley587/coding-challenges-2025/usersync/internal/collection"
	"github.com/afoley587/coding-challenges-2025/usersync/internal/user"
)

func mkUser(id string) user.User {
	return user.User{
		ID:               id,
		FirstName:        "First" + id,
		LastName:         "Last" + id,
		Email:            id + "@example.com",
		Skills:           []string{"go"},
		RegistrationDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func ids(users []user.User) []string {
	out := make([]string, len(users))
	for i, u := range users {
		out[i] = u.ID
	}
	return out
}

func TestInitialState(t *testing.T) {
	s := collection.InitialState()
	assert.Empty(t, s.Users)
	assert.NotNil(t, s.Users)
	assert.False(t, s.Loading)
	assert.Empty(t, s.Error)
	assert.Equal(t, 1, s.CurrentPage)
	assert.Equal(t, 5, s.ItemsPerPage)
	assert.Equal(t, user.Field(""), s.SortField)
	assert.Equal(t, collection.Asc, s.SortOrder)
}

func TestFetchLifecycle(t *testing.T) {
	s := collection.InitialState()

	s = collection.Reduce(s, collection.FetchFailed{Message: "offline"})
	assert.False(t, s.Loading)
	assert.Equal(t, "offline", s.Error)

	s = collection.Reduce(s, collection.BeginFetch{})
	assert.True(t, s.Loading)
	assert.Empty(t, s.Error, "a new fetch clears the previous error")

	s = collection.Reduce(s, collection.FetchSucceeded{Users: []user.User{mkUser("1"), mkUser("2")}})
	assert.False(t, s.Loading)
	assert.Equal(t, []string{"1", "2"}, ids(s.Users))

	s = collection.Reduce(s, collection.FetchSucceeded{Users: []user.User{mkUser("3")}})
	assert.Equal(t, []string{"3"}, ids(s.Users), "fetch replaces, never merges")

	s = collection.Reduce(s, collection.FetchSucceeded{})
	assert.NotNil(t, s.Users)
	assert.Empty(t, s.Users)
}

func TestFetchSucceededIsIdempotent(t *testing.T) {
	payload := []user.User{mkUser("1"), mkUser("2")}
	base := collection.Reduce(collection.InitialState(), collection.BeginFetch{})

	once := collection.Reduce(base, collection.FetchSucceeded{Users: payload})
	twice := collection.Reduce(once, collection.FetchSucceeded{Users: payload})
	assert.Equal(t, once, twice)
}

func TestMutationTransitions(t *testing.T) {
	s := collection.Reduce(collection.InitialState(), collection.FetchSucceeded{Users: []user.User{mkUser("1"), mkUser("2")}})

	s = collection.Reduce(s, collection.SetSorting{Field: user.FieldEmail})
	s = collection.Reduce(s, collection.CreateSucceeded{User: mkUser("0")})
	assert.Equal(t, []string{"1", "2", "0"}, ids(s.Users), "create appends regardless of the active sort")

	changed := mkUser("2")
	changed.Email = "new@example.com"
	s = collection.Reduce(s, collection.UpdateSucceeded{User: changed})
	assert.Equal(t, "new@example.com", s.Users[1].Email)
	assert.Equal(t, []string{"1", "2", "0"}, ids(s.Users))

	before := s
	s = collection.Reduce(s, collection.UpdateSucceeded{User: mkUser("missing")})
	assert.Equal(t, before, s, "update of an unknown id is a no-op")

	s = collection.Reduce(s, collection.DeleteSucceeded{ID: "missing"})
	assert.Equal(t, before, s, "delete of an unknown id is a no-op")

	s = collection.Reduce(s, collection.DeleteSucceeded{ID: "1"})
	assert.Equal(t, []string{"2", "0"}, ids(s.Users))
}

func TestCreateAfterFetchKeepsIDsUnique(t *testing.T) {
	s := collection.Reduce(collection.InitialState(), collection.FetchSucceeded{Users: []user.User{mkUser("1"), mkUser("9"), mkUser("2")}})

	created := mkUser("9")
	created.Email = "created@example.com"
	s = collection.Reduce(s, collection.CreateSucceeded{User: created})
	assert.Equal(t, []string{"1", "9", "2"}, ids(s.Users), "a known id is replaced in place")
	assert.Equal(t, "created@example.com", s.Users[1].Email)

	s = collection.Reduce(s, collection.CreateSucceeded{User: mkUser("3")})
	assert.Equal(t, []string{"1", "9", "2", "3"}, ids(s.Users))
}

func TestReduceDoesNotMutateInput(t *testing.T) {
	orig := collection.Reduce(collection.InitialState(), collection.FetchSucceeded{Users: []user.User{mkUser("1"), mkUser("2")}})
	snapshot := orig.Clone()

	changed := mkUser("1")
	changed.Skills = []string{"rust"}
	events := []collection.Event{
		collection.CreateSucceeded{User: mkUser("3")},
		collection.UpdateSucceeded{User: changed},
		collection.DeleteSucceeded{ID: "2"},
		collection.SetPage{Page: 4},
		collection.SetSorting{Field: user.FieldID},
		collection.BeginFetch{},
		collection.FetchFailed{Message: "x"},
		nil,
	}
	for _, ev := range events {
		_ = collection.Reduce(orig, ev)
		require.Equal(t, snapshot, orig, "event %T mutated its input", ev)
	}
}

func TestSetPageDoesNotClamp(t *testing.T) {
	s := collection.Reduce(collection.InitialState(), collection.SetPage{Page: 5})
	assert.Equal(t, 5, s.CurrentPage)

	s = collection.Reduce(s, collection.SetPage{Page: -1})
	assert.Equal(t, -1, s.CurrentPage)
}

func TestSetSorting(t *testing.T) {
	s := collection.InitialState()

	s = collection.Reduce(s, collection.SetSorting{Field: user.FieldLastName})
	assert.Equal(t, user.FieldLastName, s.SortField)
	assert.Equal(t, collection.Asc, s.SortOrder)

	s = collection.Reduce(s, collection.SetSorting{Field: user.FieldLastName})
	assert.Equal(t, collection.Desc, s.SortOrder)

	s = collection.Reduce(s, collection.SetSorting{Field: user.FieldEmail})
	assert.Equal(t, user.FieldEmail, s.SortField)
	assert.Equal(t, collection.Asc, s.SortOrder, "switching field resets to ascending")
}

func TestSetSortingToggleIsItsOwnInverse(t *testing.T) {
	for _, f := range user.Fields() {
		for _, start := range []collection.SortOrder{collection.Asc, collection.Desc} {
			s := collection.InitialState()
			s.SortField = f
			s.SortOrder = start

			s = collection.Reduce(s, collection.SetSorting{Field: f})
			s = collection.Reduce(s, collection.SetSorting{Field: f})
			assert.Equal(t, start, s.SortOrder, "field %s", f)
		}
	}
}

func TestIDsStayUniqueUnderRandomMutations(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	s := collection.InitialState()
	next := 0

	for step := 0; step < 2000; step++ {
		switch rng.Intn(3) {
		case 0:
			next++
			s = collection.Reduce(s, collection.CreateSucceeded{User: mkUser(fmt.Sprintf("u%d", next))})
		case 1:
			if len(s.Users) == 0 {
				continue
			}
			u := s.Users[rng.Intn(len(s.Users))]
			u.FirstName = fmt.Sprintf("edit-%d", step)
			s = collection.Reduce(s, collection.UpdateSucceeded{User: u})
		case 2:
			id := fmt.Sprintf("u%d", rng.Intn(next+2))
			s = collection.Reduce(s, collection.DeleteSucceeded{ID: id})
		}

		seen := make(map[string]bool, len(s.Users))
		for _, u := range s.Users {
			require.False(t, seen[u.ID], "duplicate id %s at step %d", u.ID, step)
			seen[u.ID] = true
		}
	}
}
