// Package chunk is a lazy, pull-based sequence of element chunks.
//
// The consumer drives execution: every operator pulls its upstream only when
// its own Next is called, and Stop travels upstream so a satisfied Take ends
// the work of everything before it. An Iterator has exactly one consumer and
// is not restartable.
package chunk

import (
	"context"

	"github.com/hashicorp/go-multierror"
)

type Iterator[T any] interface {
	// Next returns the next non-empty chunk; ok is false at the end of the sequence.
	Next(ctx context.Context) (chunk []T, ok bool, err error)
	// Stop tells the iterator no further chunks are needed. It is idempotent and
	// after it Next reports the end of the sequence.
	Stop() error
}

// halt tracks the end of an operator and forwards Stop to its upstream once.
type halt struct {
	done    bool
	stopped bool
}

func (h *halt) stop(upstream interface{ Stop() error }) error {
	h.done = true
	if h.stopped {
		return nil
	}
	h.stopped = true
	return upstream.Stop()
}

type sliceIterator[T any] struct {
	items []T
	size  int
	pos   int
	done  bool
}

// FromSlice yields items in chunks of size; size <= 0 yields a single chunk.
func FromSlice[T any](items []T, size int) Iterator[T] {
	if size <= 0 {
		size = len(items)
	}
	return &sliceIterator[T]{items: items, size: size}
}

func (it *sliceIterator[T]) Next(ctx context.Context) ([]T, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if it.done || it.pos >= len(it.items) {
		it.done = true
		return nil, false, nil
	}
	end := min(it.pos+it.size, len(it.items))
	chunk := it.items[it.pos:end:end]
	it.pos = end
	return chunk, true, nil
}

func (it *sliceIterator[T]) Stop() error {
	it.done = true
	return nil
}

func Empty[T any]() Iterator[T] {
	return FromSlice[T](nil, 0)
}

type funcIterator[T any] struct {
	next func(ctx context.Context) ([]T, bool, error)
	stop func() error
	halt
}

// FromFunc adapts a pull function. stop may be nil.
func FromFunc[T any](next func(ctx context.Context) ([]T, bool, error), stop func() error) Iterator[T] {
	return &funcIterator[T]{next: next, stop: stop}
}

func (it *funcIterator[T]) Next(ctx context.Context) ([]T, bool, error) {
	for !it.done {
		chunk, ok, err := it.next(ctx)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			it.done = true
			break
		}
		if len(chunk) > 0 {
			return chunk, true, nil
		}
	}
	return nil, false, nil
}

func (it *funcIterator[T]) Stop() error {
	it.done = true
	if it.stopped || it.stop == nil {
		return nil
	}
	it.stopped = true
	return it.stop()
}

// Drain concatenates every chunk of it. The iterator is always stopped, and
// on failure no partial result is returned.
func Drain[T any](ctx context.Context, it Iterator[T]) (result []T, err error) {
	defer func() {
		if stopErr := it.Stop(); stopErr != nil {
			if err == nil {
				err = stopErr
			} else {
				err = multierror.Append(err, stopErr)
			}
		}
		if err != nil {
			result = nil
		}
	}()

	result = []T{}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chunk, ok, err := it.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return result, nil
		}
		result = append(result, chunk...)
	}
}
