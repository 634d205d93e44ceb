// Package source provides SourceExpression implementations: in-memory
// collections, a named catalog, paged fetchers and PostgreSQL tables.
package source

import (
	"context"

	"github.com/google/uuid"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/chunk"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/option"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/plan"
)

const DefaultChunkSize = 64

type Option func(*settings)

type settings struct {
	dataset   string
	chunkSize int
}

// WithDataset overrides the generated dataset name.
func WithDataset(name string) Option {
	return func(s *settings) {
		s.dataset = name
	}
}

// WithChunkSize sets how many items one pull yields. Non-positive sizes yield
// everything in one chunk.
func WithChunkSize(size int) Option {
	return func(s *settings) {
		s.chunkSize = size
	}
}

func newSettings(prefix string, opts []Option) settings {
	s := settings{dataset: prefix + ":" + uuid.NewString(), chunkSize: DefaultChunkSize}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Memory serves a slice. The slice is captured, not copied; callers must not
// mutate it while queries run.
type Memory[T any] struct {
	items    []T
	settings settings
}

func NewMemory[T any](items []T, opts ...Option) *Memory[T] {
	return &Memory[T]{items: items, settings: newSettings("memory", opts)}
}

func (m *Memory[T]) Iterator(ctx context.Context) (chunk.Iterator[any], error) {
	return chunk.Map(chunk.FromSlice(m.items, m.settings.chunkSize), func(item T) (any, error) {
		return item, nil
	}), nil
}

func (m *Memory[T]) ImplicatedDataset() string {
	return m.settings.dataset
}

func (m *Memory[T]) Optimize(p *plan.Plan, _ option.Option[*plan.HopPlan]) *plan.Plan {
	return plan.NewPlan(m, p.Derivations()...)
}
