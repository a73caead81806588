package collection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// ErrClosed is returned by Dispatch once the store has been closed.
var ErrClosed = errors.New("collection store closed")

// Store owns a State and applies events to it one at a time on a single
// goroutine.  Callers hand events over with Dispatch and read copies with
// Snapshot; nothing outside the store can reach the live state.
//
// A Store is safe for concurrent use.  Events are applied in the order the
// store receives them.
type Store struct {
	logger *zap.Logger

	events chan envelope
	reads  chan chan State
	subs   chan subRequest

	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
	final     State
	nextSub   atomic.Int64
}

type envelope struct {
	ev      Event
	applied chan struct{}
}

type subRequest struct {
	id     int
	ch     chan State
	cancel bool
}

// Option customizes a Store.
type Option func(*Store)

// WithLogger sets the logger used to trace applied events.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewStore starts a store holding InitialState.  Close must be called to
// release its goroutine.
func NewStore(opts ...Option) *Store {
	return newStore(InitialState(), opts...)
}

// NewStoreFrom starts a store holding a copy of initial.
func NewStoreFrom(initial State, opts ...Option) *Store {
	return newStore(initial.Clone(), opts...)
}

func newStore(initial State, opts ...Option) *Store {
	s := &Store{
		logger:  zap.NewNop(),
		events:  make(chan envelope),
		reads:   make(chan chan State),
		subs:    make(chan subRequest),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.loop(initial)
	return s
}

func (s *Store) loop(state State) {
	subs := make(map[int]chan State)
	defer func() {
		for _, ch := range subs {
			close(ch)
		}
		s.final = state
		close(s.stopped)
	}()

	for {
		select {
		case env := <-s.events:
			state = Reduce(state, env.ev)
			s.logger.Debug("applied event",
				zap.String("event", fmt.Sprintf("%T", env.ev)),
				zap.Int("users", len(state.Users)),
				zap.Bool("loading", state.Loading),
			)
			for _, ch := range subs {
				publish(ch, state.Clone())
			}
			close(env.applied)
		case reply := <-s.reads:
			reply <- state.Clone()
		case req := <-s.subs:
			if req.cancel {
				if ch, ok := subs[req.id]; ok {
					close(ch)
					delete(subs, req.id)
				}
				continue
			}
			subs[req.id] = req.ch
		case <-s.done:
			return
		}
	}
}

// publish replaces whatever the subscriber has not read yet with the
// latest snapshot, so slow readers never block the store.
func publish(ch chan State, st State) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- st:
	default:
	}
}

// Dispatch delivers ev to the store and returns once it has been applied.
// It fails with ctx.Err() if ctx ends before the store accepts the event,
// and with ErrClosed after Close.
func (s *Store) Dispatch(ctx context.Context, ev Event) error {
	env := envelope{ev: ev, applied: make(chan struct{})}
	select {
	case s.events <- env:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stopped:
		return ErrClosed
	}
	<-env.applied
	return nil
}

// Snapshot returns a deep copy of the current state.  After Close it
// returns the last state the store held.
func (s *Store) Snapshot() State {
	reply := make(chan State, 1)
	select {
	case s.reads <- reply:
		return <-reply
	case <-s.stopped:
		return s.final.Clone()
	}
}

// Subscribe returns a channel that receives a snapshot after every applied
// event.  Only the most recent unread snapshot is kept.  The returned
// function unsubscribes and closes the channel; the channel is also closed
// when the store is closed.
func (s *Store) Subscribe() (<-chan State, func()) {
	id := int(s.nextSub.Add(1))

	ch := make(chan State, 1)
	select {
	case s.subs <- subRequest{id: id, ch: ch}:
	case <-s.stopped:
		close(ch)
		return ch, func() {}
	}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			select {
			case s.subs <- subRequest{id: id, cancel: true}:
			case <-s.stopped:
			}
		})
	}
}

// Close stops the store.  It is safe to call more than once.
func (s *Store) Close() {
	s.closeOnce.Do(func() { close(s.done) })
	<-s.stopped
}
