package chunk

import "context"

type filterIterator[T any] struct {
	upstream Iterator[T]
	keep     func(T) (bool, error)
	halt
}

// Filter keeps elements for which keep is true. Chunk grouping is preserved;
// chunks emptied by the filter are skipped.
func Filter[T any](upstream Iterator[T], keep func(T) (bool, error)) Iterator[T] {
	return &filterIterator[T]{upstream: upstream, keep: keep}
}

func (it *filterIterator[T]) Next(ctx context.Context) ([]T, bool, error) {
	for !it.done {
		chunk, ok, err := it.upstream.Next(ctx)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			it.done = true
			break
		}
		kept := make([]T, 0, len(chunk))
		for _, item := range chunk {
			keep, err := it.keep(item)
			if err != nil {
				return nil, false, err
			}
			if keep {
				kept = append(kept, item)
			}
		}
		if len(kept) > 0 {
			return kept, true, nil
		}
	}
	return nil, false, nil
}

func (it *filterIterator[T]) Stop() error {
	return it.stop(it.upstream)
}

type mapIterator[T, R any] struct {
	upstream Iterator[T]
	fn       func(T) (R, error)
	halt
}

// Map transforms every element one-to-one, chunk by chunk.
func Map[T, R any](upstream Iterator[T], fn func(T) (R, error)) Iterator[R] {
	return &mapIterator[T, R]{upstream: upstream, fn: fn}
}

func (it *mapIterator[T, R]) Next(ctx context.Context) ([]R, bool, error) {
	if it.done {
		return nil, false, nil
	}
	chunk, ok, err := it.upstream.Next(ctx)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		it.done = true
		return nil, false, nil
	}
	mapped := make([]R, len(chunk))
	for i, item := range chunk {
		if mapped[i], err = it.fn(item); err != nil {
			return nil, false, err
		}
	}
	return mapped, true, nil
}

func (it *mapIterator[T, R]) Stop() error {
	return it.stop(it.upstream)
}

type takeIterator[T any] struct {
	upstream  Iterator[T]
	remaining int
	halt
}

// Take bounds the sequence to n elements. Once satisfied it stops its upstream
// without pulling again.
func Take[T any](upstream Iterator[T], n int) Iterator[T] {
	return &takeIterator[T]{upstream: upstream, remaining: n}
}

func (it *takeIterator[T]) Next(ctx context.Context) ([]T, bool, error) {
	if it.done {
		return nil, false, nil
	}
	if it.remaining <= 0 {
		return nil, false, it.stop(it.upstream)
	}
	chunk, ok, err := it.upstream.Next(ctx)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		it.done = true
		return nil, false, nil
	}
	if len(chunk) < it.remaining {
		it.remaining -= len(chunk)
		return chunk, true, nil
	}
	chunk = chunk[:it.remaining:it.remaining]
	it.remaining = 0
	if err := it.stop(it.upstream); err != nil {
		return nil, false, err
	}
	return chunk, true, nil
}

func (it *takeIterator[T]) Stop() error {
	return it.stop(it.upstream)
}

type expandIterator[T, R any] struct {
	upstream Iterator[T]
	expand   func(ctx context.Context, chunk []T) ([]R, error)
	halt
}

// Expand replaces every upstream chunk with the chunk expand derives from it.
// It is the suspension point for work that completes per chunk, such as a
// batch of asynchronous lookups. Empty results are skipped.
func Expand[T, R any](upstream Iterator[T], expand func(ctx context.Context, chunk []T) ([]R, error)) Iterator[R] {
	return &expandIterator[T, R]{upstream: upstream, expand: expand}
}

// FlatMap expands every element into its related collection and emits, per
// upstream chunk, the concatenation of those collections in element order.
func FlatMap[T, R any](upstream Iterator[T], related func(T) ([]R, error)) Iterator[R] {
	return Expand(upstream, func(_ context.Context, chunk []T) ([]R, error) {
		var expanded []R
		for _, item := range chunk {
			children, err := related(item)
			if err != nil {
				return nil, err
			}
			expanded = append(expanded, children...)
		}
		return expanded, nil
	})
}

func (it *expandIterator[T, R]) Next(ctx context.Context) ([]R, bool, error) {
	for !it.done {
		chunk, ok, err := it.upstream.Next(ctx)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			it.done = true
			break
		}
		expanded, err := it.expand(ctx, chunk)
		if err != nil {
			return nil, false, err
		}
		if len(expanded) > 0 {
			return expanded, true, nil
		}
	}
	return nil, false, nil
}

func (it *expandIterator[T, R]) Stop() error {
	return it.stop(it.upstream)
}

type tapIterator[T any] struct {
	upstream Iterator[T]
	observe  func([]T) error
}

// Tap calls observe with every chunk on its way downstream.
func Tap[T any](upstream Iterator[T], observe func([]T) error) Iterator[T] {
	return &tapIterator[T]{upstream: upstream, observe: observe}
}

func (it *tapIterator[T]) Next(ctx context.Context) ([]T, bool, error) {
	chunk, ok, err := it.upstream.Next(ctx)
	if err != nil || !ok {
		return chunk, ok, err
	}
	if err := it.observe(chunk); err != nil {
		return nil, false, err
	}
	return chunk, true, nil
}

func (it *tapIterator[T]) Stop() error {
	return it.upstream.Stop()
}
