package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/afoley587/coding-challenges-2025/usersync/internal/api"
	"github.com/afoley587/coding-challenges-2025/usersync/internal/collection"
	"github.com/afoley587/coding-challenges-2025/usersync/internal/mutation"
	"github.com/afoley587/coding-challenges-2025/usersync/internal/user"
	"github.com/afoley587/coding-challenges-2025/usersync/internal/view"
)

// ErrUnknownUser is returned when an id is not part of the loaded
// collection.
var ErrUnknownUser = errors.New("user not found in collection")

// Session is one synchronized view of the remote collection: a store, the
// orchestrator feeding it and the remote client behind both.
type Session struct {
	store  *collection.Store
	orch   *mutation.Orchestrator
	logger *zap.Logger
}

// NewClient dials the users API described by cfg.
func NewClient(cfg DialConfig, logger *zap.Logger) (*Session, error) {
	tlsCfg, err := cfg.TLSConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to build tls config: %w", err)
	}
	remote, err := api.NewHTTPClient(api.HTTPConfig{
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
		TLS:     tlsCfg,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}
	return NewSession(remote, logger), nil
}

// NewSession wraps an existing remote client.
func NewSession(remote api.Client, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	store := collection.NewStore(collection.WithLogger(logger))
	return &Session{
		store:  store,
		orch:   mutation.New(remote, store, mutation.WithLogger(logger)),
		logger: logger,
	}
}

// Load fetches the whole collection.  A failed fetch is reported with the
// message recorded in the state.
func (s *Session) Load(ctx context.Context) (collection.State, error) {
	res, err := s.orch.FetchAll(ctx).Wait(ctx)
	if err != nil {
		return s.store.Snapshot(), err
	}
	st := s.store.Snapshot()
	if st.Error != "" {
		return st, errors.New(st.Error)
	}
	return st, res.Err
}

// Apply hands view intents (SetPage, SetSorting) to the store in order.
func (s *Session) Apply(ctx context.Context, intents ...collection.Event) error {
	for _, ev := range intents {
		if err := s.store.Dispatch(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) State() collection.State {
	return s.store.Snapshot()
}

// Page derives the visible page from the current state.
func (s *Session) Page() view.Page {
	return view.Of(s.store.Snapshot())
}

// Find looks id up in the loaded collection.
func (s *Session) Find(id string) (user.User, error) {
	for _, u := range s.store.Snapshot().Users {
		if u.ID == id {
			return u, nil
		}
	}
	return user.User{}, fmt.Errorf("%w: %s", ErrUnknownUser, id)
}

func (s *Session) Create(ctx context.Context, draft user.Draft) (user.User, error) {
	return s.orch.Create(ctx, draft).Await(ctx)
}

// Update replaces the record.  The result reports whether a newer edit of
// the same record had already been applied.
func (s *Session) Update(ctx context.Context, u user.User) (mutation.Result[user.User], error) {
	res, err := s.orch.Update(ctx, u).Wait(ctx)
	if err != nil {
		return res, err
	}
	return res, res.Err
}

func (s *Session) Delete(ctx context.Context, id string) (string, error) {
	return s.orch.Delete(ctx, id).Await(ctx)
}

// Seed issues n creates at once and waits for all of them.  It returns the
// created records in completion order and every failure joined.
func (s *Session) Seed(ctx context.Context, n int, draft func(i int) user.Draft) ([]user.User, error) {
	tasks := make([]*mutation.Task[user.User], n)
	for i := range n {
		tasks[i] = s.orch.Create(ctx, draft(i))
	}

	var (
		mu      sync.Mutex
		created []user.User
		errs    []error
	)
	var g errgroup.Group
	for i, t := range tasks {
		g.Go(func() error {
			u, err := t.Await(ctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				err = fmt.Errorf("seed %d: %w", i, err)
				errs = append(errs, err)
				return err
			}
			created = append(created, u)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Warn("seed incomplete", zap.Error(err))
	}

	s.logger.Info("seeded users", zap.Int("created", len(created)), zap.Int("failed", len(errs)))
	return created, errors.Join(errs...)
}

// Close waits for outstanding tasks and stops the store.
func (s *Session) Close() {
	s.orch.Wait()
	s.store.Close()
}
