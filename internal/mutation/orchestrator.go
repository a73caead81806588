package mutation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/afoley587/coding-challenges-2025/usersync/internal/api"
	"github.com/afoley587/coding-challenges-2025/usersync/internal/collection"
	"github.com/afoley587/coding-challenges-2025/usersync/internal/observability"
	"github.com/afoley587/coding-challenges-2025/usersync/internal/user"
)

// DefaultFetchError is recorded when a fetch fails without a message.
const DefaultFetchError = "failed to load users"

const (
	opFetch  = "fetch"
	opCreate = "create"
	opUpdate = "update"
	opDelete = "delete"
)

// Orchestrator turns remote calls into tasks whose outcomes are delivered to
// a collection store.  Tasks are never queued, merged, retried or
// cancelled; each one applies its own result as soon as it settles.
type Orchestrator struct {
	client api.Client
	store  *collection.Store
	logger *zap.Logger
	now    func() time.Time

	inflight sync.WaitGroup

	mu      sync.Mutex
	updates map[string]*updateSeq
}

// updateSeq numbers the updates of one record in issue order.
type updateSeq struct {
	issued   uint64
	applied  uint64
	inflight int
}

type Option func(*Orchestrator)

func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock replaces the clock used to stamp new records.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

func New(client api.Client, store *collection.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		client:  client,
		store:   store,
		logger:  zap.NewNop(),
		now:     time.Now,
		updates: make(map[string]*updateSeq),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// FetchAll reloads the whole collection.  BeginFetch is applied before
// FetchAll returns; the outcome replaces the users or records the error.
func (o *Orchestrator) FetchAll(ctx context.Context) *Task[[]user.User] {
	if err := o.store.Dispatch(ctx, collection.BeginFetch{}); err != nil {
		t := newTask[[]user.User](opFetch)
		t.complete(Result[[]user.User]{Err: fmt.Errorf("fetch: %w", err)})
		return t
	}

	return start(ctx, o, opFetch, o.client.List, func(ctx context.Context, users []user.User, err error) Result[[]user.User] {
		if err != nil {
			msg := err.Error()
			if msg == "" {
				msg = DefaultFetchError
			}
			o.apply(ctx, opFetch, collection.FetchFailed{Message: msg})
			return Result[[]user.User]{Err: err}
		}
		o.apply(ctx, opFetch, collection.FetchSucceeded{Users: users})
		return Result[[]user.User]{Value: users}
	})
}

// Create stores a new record.  A zero registration date is stamped with the
// current time before the call.
func (o *Orchestrator) Create(ctx context.Context, draft user.Draft) *Task[user.User] {
	if draft.RegistrationDate.IsZero() {
		draft.RegistrationDate = o.now().UTC()
	}
	call := func(ctx context.Context) (user.User, error) {
		return o.client.Create(ctx, draft)
	}

	return start(ctx, o, opCreate, call, func(ctx context.Context, created user.User, err error) Result[user.User] {
		if err != nil {
			return Result[user.User]{Err: err}
		}
		o.apply(ctx, opCreate, collection.CreateSucceeded{User: created})
		return Result[user.User]{Value: created}
	})
}

// Update sends the full record.  Concurrent updates of the same record are
// applied in the order they are fulfilled; an update fulfilled after a newer
// one reports Stale.
func (o *Orchestrator) Update(ctx context.Context, u user.User) *Task[user.User] {
	u = u.Clone()
	seq := o.issueUpdate(u.ID)
	call := func(ctx context.Context) (user.User, error) {
		return o.client.Update(ctx, u)
	}

	return start(ctx, o, opUpdate, call, func(ctx context.Context, updated user.User, err error) Result[user.User] {
		o.mu.Lock()
		defer o.mu.Unlock()

		stale := o.settleUpdate(u.ID, seq, err == nil)
		if err != nil {
			return Result[user.User]{Err: err}
		}
		if stale {
			o.logger.Warn("applied update that was superseded by a newer edit",
				zap.String("id", u.ID),
				zap.Uint64("seq", seq),
			)
		}
		// Applied under mu so that staleness and store order agree.
		o.apply(ctx, opUpdate, collection.UpdateSucceeded{User: updated})
		return Result[user.User]{Value: updated, Stale: stale}
	})
}

// Delete removes a record by id.
func (o *Orchestrator) Delete(ctx context.Context, id string) *Task[string] {
	call := func(ctx context.Context) (string, error) {
		return o.client.Delete(ctx, id)
	}

	return start(ctx, o, opDelete, call, func(ctx context.Context, confirmed string, err error) Result[string] {
		if err != nil {
			return Result[string]{Err: err}
		}
		o.apply(ctx, opDelete, collection.DeleteSucceeded{ID: confirmed})
		return Result[string]{Value: confirmed}
	})
}

// Wait blocks until every task issued so far has settled.
func (o *Orchestrator) Wait() {
	o.inflight.Wait()
}

// start runs call on its own goroutine.  The call gets a context that keeps
// ctx's values but ignores its cancellation, so an abandoned task still
// settles and reaches the store.
func start[T any](
	ctx context.Context,
	o *Orchestrator,
	op string,
	call func(context.Context) (T, error),
	settle func(context.Context, T, error) Result[T],
) *Task[T] {
	t := newTask[T](op)
	callCtx := context.WithoutCancel(ctx)
	issued := time.Now()

	o.inflight.Add(1)
	go func() {
		defer o.inflight.Done()

		v, err := call(callCtx)
		res := settle(callCtx, v, err)

		outcome := observability.OutcomeFulfilled
		if res.Err != nil {
			outcome = observability.OutcomeRejected
			o.logger.Warn("task rejected", zap.String("op", op), zap.Error(res.Err))
		}
		observability.RecordTask(op, outcome, time.Since(issued))

		t.complete(res)
	}()
	return t
}

// apply hands a lifecycle event to the store.  The store only refuses
// events once it is closed, in which case the event is dropped.
func (o *Orchestrator) apply(ctx context.Context, op string, ev collection.Event) {
	if err := o.store.Dispatch(ctx, ev); err != nil {
		o.logger.Warn("dropped lifecycle event", zap.String("op", op), zap.Error(err))
	}
}

func (o *Orchestrator) issueUpdate(id string) uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()

	seq, ok := o.updates[id]
	if !ok {
		seq = &updateSeq{}
		o.updates[id] = seq
	}
	seq.issued++
	seq.inflight++
	return seq.issued
}

// settleUpdate must be called with mu held.  It reports whether a newer
// update of id was applied before this one.
func (o *Orchestrator) settleUpdate(id string, n uint64, fulfilled bool) bool {
	seq := o.updates[id]
	stale := fulfilled && seq.applied > n
	if fulfilled && n > seq.applied {
		seq.applied = n
	}
	seq.inflight--
	if seq.inflight == 0 {
		delete(o.updates, id)
	}
	return stale
}
