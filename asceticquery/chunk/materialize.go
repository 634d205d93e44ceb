package chunk

import (
	"context"
	"slices"
)

// materialize pulls upstream to its end.
func materialize[T any](ctx context.Context, upstream Iterator[T]) ([]T, error) {
	var all []T
	for {
		chunk, ok, err := upstream.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return all, nil
		}
		all = append(all, chunk...)
	}
}

type orderByIterator[T any] struct {
	upstream Iterator[T]
	compare  func(a, b T) (int, error)
	halt
}

// OrderBy observes the whole upstream before yielding anything, then emits
// the stably sorted elements as a single chunk.
func OrderBy[T any](upstream Iterator[T], compare func(a, b T) (int, error)) Iterator[T] {
	return &orderByIterator[T]{upstream: upstream, compare: compare}
}

func (it *orderByIterator[T]) Next(ctx context.Context) ([]T, bool, error) {
	if it.done {
		return nil, false, nil
	}
	it.done = true
	all, err := materialize(ctx, it.upstream)
	if err != nil {
		return nil, false, err
	}

	var sortErr error
	slices.SortStableFunc(all, func(a, b T) int {
		if sortErr != nil {
			return 0
		}
		c, err := it.compare(a, b)
		if err != nil {
			sortErr = err
		}
		return c
	})
	if sortErr != nil {
		return nil, false, sortErr
	}
	if len(all) == 0 {
		return nil, false, nil
	}
	return all, true, nil
}

func (it *orderByIterator[T]) Stop() error {
	return it.stop(it.upstream)
}

type countIterator[T any] struct {
	upstream Iterator[T]
	halt
}

// Count consumes upstream and yields a single chunk holding the element count.
func Count[T any](upstream Iterator[T]) Iterator[int] {
	return &countIterator[T]{upstream: upstream}
}

func (it *countIterator[T]) Next(ctx context.Context) ([]int, bool, error) {
	if it.done {
		return nil, false, nil
	}
	it.done = true
	total := 0
	for {
		chunk, ok, err := it.upstream.Next(ctx)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return []int{total}, true, nil
		}
		total += len(chunk)
	}
}

func (it *countIterator[T]) Stop() error {
	return it.stop(it.upstream)
}
