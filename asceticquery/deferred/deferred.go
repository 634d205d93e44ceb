package deferred

import (
	"context"
	"sync"
)

/**
* Simplified version of
* - https://github.com/emacsway/store/blob/devel/polyfill.js#L199
* - https://github.com/emacsway/go-promise
*
* Unlike a plain promise, a DeferredImp may be settled from another goroutine
* (a remote page fetch, for instance) while the consumer blocks in Await.
**/

type nextDeferred interface {
	resolveAny(any)
	rejectAny(error)
}

type handler[T any] struct {
	onSuccess func(T) (any, error)
	onError   func(error) (any, error)
	next      nextDeferred
}

type DeferredImp[T any] struct {
	mu         sync.Mutex
	value      T
	err        error
	isResolved bool
	isRejected bool
	handlers   []handler[T]
	done       chan struct{}
}

// Resolved returns a deferred already resolved with value.
func Resolved[T any](value T) *DeferredImp[T] {
	d := &DeferredImp[T]{}
	d.Resolve(value)
	return d
}

// Rejected returns a deferred already rejected with err.
func Rejected[T any](err error) *DeferredImp[T] {
	d := &DeferredImp[T]{}
	d.Reject(err)
	return d
}

func (d *DeferredImp[T]) resolveAny(v any) {
	var t T
	if v != nil {
		t = v.(T)
	}
	d.Resolve(t)
}

func (d *DeferredImp[T]) rejectAny(err error) {
	d.Reject(err)
}

// doneChan must be called with d.mu held.
func (d *DeferredImp[T]) doneChan() chan struct{} {
	if d.done == nil {
		d.done = make(chan struct{})
	}
	return d.done
}

// Resolve settles the deferred with value. Settling twice is a no-op.
func (d *DeferredImp[T]) Resolve(value T) {
	d.mu.Lock()
	if d.isResolved || d.isRejected {
		d.mu.Unlock()
		return
	}
	d.value = value
	d.isResolved = true
	handlers := append([]handler[T](nil), d.handlers...)
	close(d.doneChan())
	d.mu.Unlock()

	for _, h := range handlers {
		d.resolveHandler(h)
	}
}

// Reject settles the deferred with err. Settling twice is a no-op.
func (d *DeferredImp[T]) Reject(err error) {
	d.mu.Lock()
	if d.isResolved || d.isRejected {
		d.mu.Unlock()
		return
	}
	d.err = err
	d.isRejected = true
	handlers := append([]handler[T](nil), d.handlers...)
	close(d.doneChan())
	d.mu.Unlock()

	for _, h := range handlers {
		d.rejectHandler(h)
	}
}

func (d *DeferredImp[T]) Done() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doneChan()
}

func (d *DeferredImp[T]) Settled() (T, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.value, d.err
}

func (d *DeferredImp[T]) addHandler(h handler[T]) {
	d.mu.Lock()
	d.handlers = append(d.handlers, h)
	isResolved, isRejected := d.isResolved, d.isRejected
	d.mu.Unlock()

	if isResolved {
		d.resolveHandler(h)
	} else if isRejected {
		d.rejectHandler(h)
	}
}

func (d *DeferredImp[T]) Then(onSuccess func(T) (any, error), onError func(error) (any, error)) Deferred[any] {
	next := &DeferredImp[any]{}
	d.addHandler(handler[T]{
		onSuccess: onSuccess,
		onError:   onError,
		next:      next,
	})
	return next
}

// Then registers typed callbacks for success and error cases.
//
// Per Promises/A+ 2.2.7:
//   - If onSuccess returns a value, next deferred is resolved with it.
//   - If onSuccess returns an error, next deferred is rejected with it.
//   - If onError returns a value, next deferred is resolved with it (recovery).
//   - If onError returns an error, next deferred is rejected with it.
//
// This is a free function (not a method) because Go does not support
// type parameters on methods.
func Then[T, R any](d Deferred[T], onSuccess func(T) (R, error), onError func(error) (R, error)) *DeferredImp[R] {
	next := &DeferredImp[R]{}
	settle := func(value R, err error) (any, error) {
		if err != nil {
			next.Reject(err)
		} else {
			next.Resolve(value)
		}
		return nil, nil
	}
	d.Then(func(value T) (any, error) {
		return settle(onSuccess(value))
	}, func(err error) (any, error) {
		return settle(onError(err))
	})
	return next
}

func (d *DeferredImp[T]) resolveHandler(h handler[T]) {
	value, _ := d.Settled()
	result, err := h.onSuccess(value)
	if err == nil {
		h.next.resolveAny(result)
	} else {
		h.next.rejectAny(err)
	}
}

func (d *DeferredImp[T]) rejectHandler(h handler[T]) {
	_, rejection := d.Settled()
	result, err := h.onError(rejection)
	if err == nil {
		h.next.resolveAny(result)
	} else {
		h.next.rejectAny(err)
	}
}

// Await blocks until d settles or ctx is done.
func Await[T any](ctx context.Context, d Deferred[T]) (T, error) {
	select {
	case <-d.Done():
		return d.Settled()
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func All[T any](deferreds []Deferred[T]) *DeferredImp[[]T] {
	result := &DeferredImp[[]T]{}

	if len(deferreds) == 0 {
		result.Resolve([]T{})
		return result
	}

	var mu sync.Mutex
	count := len(deferreds)
	values := make([]T, count)
	resolvedCount := 0

	for i, d := range deferreds {
		idx := i
		d.Then(func(value T) (any, error) {
			mu.Lock()
			values[idx] = value
			resolvedCount++
			complete := resolvedCount == count
			mu.Unlock()
			if complete {
				result.Resolve(values)
			}
			return nil, nil
		}, func(err error) (any, error) {
			result.Reject(err)
			return nil, nil
		})
	}

	return result
}
