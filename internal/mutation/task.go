package mutation

import "context"

// Result is the settled outcome of a task: either Value or Err.
type Result[T any] struct {
	Value T
	Err   error
	// Stale is set on a fulfilled update that was issued before another
	// update of the same record which had already been applied.  The
	// stale response was still applied, so it may have overwritten the
	// newer edit.
	Stale bool
}

// Task is a single remote call in flight.  Its lifecycle event reaches the
// collection store whether or not anybody waits for it.
type Task[T any] struct {
	op   string
	done chan struct{}
	res  Result[T]
}

func newTask[T any](op string) *Task[T] {
	return &Task[T]{op: op, done: make(chan struct{})}
}

func (t *Task[T]) complete(res Result[T]) {
	t.res = res
	close(t.done)
}

// Op names the operation ("fetch", "create", "update", "delete").
func (t *Task[T]) Op() string { return t.op }

// Done is closed once the task has settled and its event, if any, has been
// applied to the store.
func (t *Task[T]) Done() <-chan struct{} { return t.done }

// Result returns the outcome and true once the task has settled.
func (t *Task[T]) Result() (Result[T], bool) {
	select {
	case <-t.done:
		return t.res, true
	default:
		return Result[T]{}, false
	}
}

// Wait blocks until the task settles or ctx ends.  Giving up on a task does
// not cancel it.
func (t *Task[T]) Wait(ctx context.Context) (Result[T], error) {
	select {
	case <-t.done:
		return t.res, nil
	case <-ctx.Done():
		return Result[T]{}, ctx.Err()
	}
}

// Await is Wait folded into a single error: the context error if the caller
// gave up, otherwise the task's own error.
func (t *Task[T]) Await(ctx context.Context) (T, error) {
	res, err := t.Wait(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	return res.Value, res.Err
}
