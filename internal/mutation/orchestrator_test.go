package mutation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afoley587/coding-challenges-2025/usersync/internal/api"
	"github.com/afoley587/coding-challenges-2025/usersync/internal/collection"
	"github.com/afoley587/coding-challenges-2025/usersync/internal/mutation"
	"github.com/afoley587/coding-challenges-2025/usersync/internal/user"
)

// pendingCall is one remote call held open until the test settles it.
type pendingCall struct {
	op    string
	draft user.Draft
	user  user.User
	id    string
	reply chan callReply
}

type callReply struct {
	users []user.User
	user  user.User
	id    string
	err   error
}

// fakeClient parks every call on a channel so tests decide when, and in
// which order, calls settle.
type fakeClient struct {
	calls chan *pendingCall
}

var _ api.Client = (*fakeClient)(nil)

func newFakeClient() *fakeClient {
	return &fakeClient{calls: make(chan *pendingCall, 16)}
}

func (f *fakeClient) park(c *pendingCall) callReply {
	c.reply = make(chan callReply, 1)
	f.calls <- c
	return <-c.reply
}

func (f *fakeClient) List(ctx context.Context) ([]user.User, error) {
	r := f.park(&pendingCall{op: "list"})
	return r.users, r.err
}

func (f *fakeClient) Create(ctx context.Context, d user.Draft) (user.User, error) {
	r := f.park(&pendingCall{op: "create", draft: d})
	return r.user, r.err
}

func (f *fakeClient) Update(ctx context.Context, u user.User) (user.User, error) {
	r := f.park(&pendingCall{op: "update", user: u})
	return r.user, r.err
}

func (f *fakeClient) Delete(ctx context.Context, id string) (string, error) {
	r := f.park(&pendingCall{op: "delete", id: id})
	return r.id, r.err
}

func (f *fakeClient) next(t *testing.T) *pendingCall {
	t.Helper()
	select {
	case c := <-f.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("no remote call issued")
		return nil
	}
}

func wait[T any](t *testing.T, task *mutation.Task[T]) mutation.Result[T] {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := task.Wait(ctx)
	require.NoError(t, err)
	return res
}

func setup(t *testing.T, opts ...mutation.Option) (*fakeClient, *collection.Store, *mutation.Orchestrator) {
	t.Helper()
	client := newFakeClient()
	store := collection.NewStore()
	t.Cleanup(store.Close)
	return client, store, mutation.New(client, store, opts...)
}

func mkUser(id, email string) user.User {
	return user.User{ID: id, FirstName: "F" + id, LastName: "L" + id, Email: email, Skills: []string{}}
}

func TestFetchAllLifecycle(t *testing.T) {
	client, store, orch := setup(t)
	ctx := context.Background()

	task := orch.FetchAll(ctx)
	assert.Equal(t, "fetch", task.Op())

	// Pending is applied before the call settles.
	assert.True(t, store.Snapshot().Loading)
	_, settled := task.Result()
	assert.False(t, settled)

	call := client.next(t)
	assert.Equal(t, "list", call.op)
	call.reply <- callReply{users: []user.User{mkUser("1", "a@x"), mkUser("2", "b@x")}}

	res := wait(t, task)
	require.NoError(t, res.Err)
	assert.Len(t, res.Value, 2)

	snap := store.Snapshot()
	assert.False(t, snap.Loading)
	assert.Len(t, snap.Users, 2)
}

func TestFetchAllFailureRecordsError(t *testing.T) {
	client, store, orch := setup(t)

	task := orch.FetchAll(context.Background())
	client.next(t).reply <- callReply{err: &api.TransportError{Op: "list", Status: 503, Err: errors.New("unavailable")}}

	res := wait(t, task)
	var terr *api.TransportError
	require.ErrorAs(t, res.Err, &terr)

	snap := store.Snapshot()
	assert.False(t, snap.Loading)
	assert.Contains(t, snap.Error, "unavailable")

	// A new fetch clears the error while it is in flight.
	task = orch.FetchAll(context.Background())
	assert.Empty(t, store.Snapshot().Error)
	client.next(t).reply <- callReply{users: []user.User{}}
	wait(t, task)
}

type blankError struct{}

func (blankError) Error() string { return "" }

func TestFetchAllFailureFallbackMessage(t *testing.T) {
	client, store, orch := setup(t)

	task := orch.FetchAll(context.Background())
	client.next(t).reply <- callReply{err: blankError{}}
	wait(t, task)

	assert.Equal(t, mutation.DefaultFetchError, store.Snapshot().Error)
}

func TestCreateStampsRegistrationDateAndAppends(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.FixedZone("X", 3600))
	client, store, orch := setup(t, mutation.WithClock(func() time.Time { return now }))

	task := orch.Create(context.Background(), user.Draft{FirstName: "Ada"})
	call := client.next(t)
	assert.True(t, call.draft.RegistrationDate.Equal(now))
	assert.Equal(t, time.UTC, call.draft.RegistrationDate.Location())

	created := call.draft.WithID("42")
	call.reply <- callReply{user: created}

	res := wait(t, task)
	require.NoError(t, res.Err)
	assert.Equal(t, "42", res.Value.ID)
	assert.Equal(t, "42", store.Snapshot().Users[0].ID)
}

func TestCreateKeepsProvidedRegistrationDate(t *testing.T) {
	client, _, orch := setup(t)
	when := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	task := orch.Create(context.Background(), user.Draft{RegistrationDate: when})
	call := client.next(t)
	assert.True(t, call.draft.RegistrationDate.Equal(when))
	call.reply <- callReply{user: call.draft.WithID("1")}
	wait(t, task)
}

func TestMutationFailuresAreReportedNotStored(t *testing.T) {
	client, store, orch := setup(t)
	ctx := context.Background()
	require.NoError(t, store.Dispatch(ctx, collection.FetchSucceeded{Users: []user.User{mkUser("1", "a@x")}}))
	before := store.Snapshot()

	boom := &api.TransportError{Op: "x", Err: errors.New("boom")}

	create := orch.Create(ctx, user.Draft{})
	client.next(t).reply <- callReply{err: boom}
	update := orch.Update(ctx, mkUser("1", "changed@x"))
	client.next(t).reply <- callReply{err: boom}
	del := orch.Delete(ctx, "1")
	client.next(t).reply <- callReply{err: boom}

	assert.ErrorIs(t, wait(t, create).Err, boom)
	assert.ErrorIs(t, wait(t, update).Err, boom)
	_, err := del.Await(ctx)
	assert.ErrorIs(t, err, boom)

	after := store.Snapshot()
	assert.Equal(t, before.Users, after.Users)
	assert.Empty(t, after.Error)
}

func TestDeleteRemovesConfirmedID(t *testing.T) {
	client, store, orch := setup(t)
	ctx := context.Background()
	require.NoError(t, store.Dispatch(ctx, collection.FetchSucceeded{Users: []user.User{mkUser("1", "a@x"), mkUser("2", "b@x")}}))

	task := orch.Delete(ctx, "1")
	call := client.next(t)
	assert.Equal(t, "1", call.id)
	call.reply <- callReply{id: "1"}

	id, err := task.Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1", id)

	snap := store.Snapshot()
	require.Len(t, snap.Users, 1)
	assert.Equal(t, "2", snap.Users[0].ID)
}

func TestConcurrentUpdatesLastFulfilledWins(t *testing.T) {
	client, store, orch := setup(t)
	ctx := context.Background()
	require.NoError(t, store.Dispatch(ctx, collection.FetchSucceeded{Users: []user.User{mkUser("1", "orig@x")}}))

	first := orch.Update(ctx, mkUser("1", "first@x"))
	firstCall := client.next(t)
	second := orch.Update(ctx, mkUser("1", "second@x"))
	secondCall := client.next(t)

	// The newer edit settles first, then the older one lands on top.
	secondCall.reply <- callReply{user: secondCall.user}
	res2 := wait(t, second)
	assert.False(t, res2.Stale)
	assert.Equal(t, "second@x", store.Snapshot().Users[0].Email)

	firstCall.reply <- callReply{user: firstCall.user}
	res1 := wait(t, first)
	require.NoError(t, res1.Err)
	assert.True(t, res1.Stale, "older edit applied after a newer one must be flagged")
	assert.Equal(t, "first@x", store.Snapshot().Users[0].Email)
}

func TestSequentialUpdatesAreNotStale(t *testing.T) {
	client, _, orch := setup(t)
	ctx := context.Background()

	for _, email := range []string{"a@x", "b@x"} {
		task := orch.Update(ctx, mkUser("1", email))
		call := client.next(t)
		call.reply <- callReply{user: call.user}
		assert.False(t, wait(t, task).Stale)
	}
}

func TestConcurrentMixedTasksSettleIndependently(t *testing.T) {
	client, store, orch := setup(t)
	ctx := context.Background()

	create := orch.Create(ctx, user.Draft{FirstName: "new"})
	createCall := client.next(t)
	fetch := orch.FetchAll(ctx)
	fetchCall := client.next(t)

	// The create resolves first, then the fetch replaces the collection
	// with a server list that does not contain it yet.
	createCall.reply <- callReply{user: createCall.draft.WithID("9")}
	wait(t, create)
	assert.Len(t, store.Snapshot().Users, 1)

	fetchCall.reply <- callReply{users: []user.User{mkUser("1", "a@x")}}
	wait(t, fetch)

	snap := store.Snapshot()
	require.Len(t, snap.Users, 1)
	assert.Equal(t, "1", snap.Users[0].ID)
}

func TestCreateSettlingAfterFetchDoesNotDuplicate(t *testing.T) {
	client, store, orch := setup(t)
	ctx := context.Background()

	create := orch.Create(ctx, user.Draft{FirstName: "new"})
	createCall := client.next(t)
	fetch := orch.FetchAll(ctx)
	fetchCall := client.next(t)

	// The server list already holds the record the create is about to confirm.
	made := createCall.draft.WithID("9")
	fetchCall.reply <- callReply{users: []user.User{mkUser("1", "a@x"), made}}
	wait(t, fetch)
	createCall.reply <- callReply{user: made}
	require.NoError(t, wait(t, create).Err)

	seen := map[string]int{}
	for _, u := range store.Snapshot().Users {
		seen[u.ID]++
	}
	assert.Equal(t, map[string]int{"1": 1, "9": 1}, seen)
}

func TestAbandonedTaskStillReachesStore(t *testing.T) {
	client, store, orch := setup(t)

	ctx, cancel := context.WithCancel(context.Background())
	task := orch.Create(ctx, user.Draft{FirstName: "late"})
	call := client.next(t)

	cancel()
	_, err := task.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	call.reply <- callReply{user: call.draft.WithID("7")}
	orch.Wait()

	<-task.Done()
	res, ok := task.Result()
	require.True(t, ok)
	assert.NoError(t, res.Err)
	require.Len(t, store.Snapshot().Users, 1)
	assert.Equal(t, "7", store.Snapshot().Users[0].ID)
}

func TestFetchAllOnClosedStore(t *testing.T) {
	client := newFakeClient()
	store := collection.NewStore()
	store.Close()

	task := mutation.New(client, store).FetchAll(context.Background())
	res := wait(t, task)
	assert.ErrorIs(t, res.Err, collection.ErrClosed)
}
