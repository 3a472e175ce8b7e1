package async

import (
	"context"
)

// Future is a value that becomes available once, at some later point.
// Readers block in Await until the value (or its error) is settled.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Go starts fn in a goroutine and returns a Future for its result.
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.val, f.err = fn(ctx)
	}()
	return f
}

// Resolved returns a Future that already holds v.
func Resolved[T any](v T) *Future[T] {
	f := &Future[T]{done: make(chan struct{}), val: v}
	close(f.done)
	return f
}

// Failed returns a Future that already holds err.
func Failed[T any](err error) *Future[T] {
	f := &Future[T]{done: make(chan struct{}), err: err}
	close(f.done)
	return f
}

// Done is closed once the future has settled.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the future settles or ctx is done.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Then derives a Future by applying fn to f's value once it resolves.
// fn runs at most once and never sees an unresolved value; if f fails,
// the error propagates and fn is not called.
func Then[T, U any](f *Future[T], fn func(T) (U, error)) *Future[U] {
	out := &Future[U]{done: make(chan struct{})}
	go func() {
		defer close(out.done)
		<-f.done
		if f.err != nil {
			out.err = f.err
			return
		}
		out.val, out.err = fn(f.val)
	}()
	return out
}
