// Package query is the fluent front of the module. Builder calls never run
// anything: each returns a new immutable node pointing at its prior, and a
// plan is compiled from the chain only when Gen is called.
package query

import (
	"context"
	"reflect"

	"github.com/pkg/errors"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/deferred"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/fieldpath"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/option"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/plan"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/predicate"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/source"
)

type Query[T any] interface {
	// Plan compiles a fresh, unoptimized plan from the chain.
	Plan() plan.IPlan
	ImplicatedDatasets() []string
	Where(path fieldpath.Path, p predicate.Predicate) *DerivedQuery[T]
	WhereLambda(fn func(T) bool) *DerivedQuery[T]
	OrderBy(path fieldpath.Path, direction plan.Direction) *DerivedQuery[T]
	Take(n int) *DerivedQuery[T]
	Gen(ctx context.Context) ([]T, error)
	Run(ctx context.Context) ([]T, error)
	executor() *Executor
}

type planner interface {
	Plan() plan.IPlan
}

type Option func(*settings)

type settings struct {
	source   []source.Option
	executor *Executor
}

func WithChunkSize(size int) Option {
	return func(s *settings) {
		s.source = append(s.source, source.WithChunkSize(size))
	}
}

func WithDataset(name string) Option {
	return func(s *settings) {
		s.source = append(s.source, source.WithDataset(name))
	}
}

func WithExecutor(e *Executor) Option {
	return func(s *settings) {
		s.executor = e
	}
}

func newSettings(opts []Option) settings {
	s := settings{executor: defaultExecutor}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Querify queries an in-memory slice.
func Querify[T any](items []T, opts ...Option) *DerivedQuery[T] {
	s := newSettings(opts)
	return From[T](source.NewMemory(items, s.source...), WithExecutor(s.executor))
}

// QueryAll queries the dataset registered in catalog under name. The name is
// resolved when the query runs.
func QueryAll[T any](catalog *source.Catalog, dataset string, opts ...Option) *DerivedQuery[T] {
	return From[T](catalog.Source(dataset), opts...)
}

// From queries any source. Elements the source yields must be of type T.
func From[T any](src plan.SourceExpression, opts ...Option) *DerivedQuery[T] {
	s := newSettings(opts)
	return derive[T](NewSourceQuery[T](src, s.executor), s.executor, option.Nothing[plan.Expression]())
}

// builder carries the operations shared by every node. self is the node
// that embeds it and becomes the prior of derived nodes.
type builder[T any] struct {
	self Query[T]
}

func (b builder[T]) Where(path fieldpath.Path, p predicate.Predicate) *DerivedQuery[T] {
	return b.derive(plan.Filter(option.Some(path), p))
}

// WhereLambda filters on the whole element.
func (b builder[T]) WhereLambda(fn func(T) bool) *DerivedQuery[T] {
	return b.derive(plan.Filter(option.Nothing[fieldpath.Path](), predicate.Func(func(v any) (bool, error) {
		t, err := cast[T](v)
		if err != nil {
			return false, err
		}
		return fn(t), nil
	})))
}

func (b builder[T]) OrderBy(path fieldpath.Path, direction plan.Direction) *DerivedQuery[T] {
	return b.derive(plan.OrderBy(path, direction))
}

func (b builder[T]) Take(n int) *DerivedQuery[T] {
	return b.derive(plan.Take(n))
}

func (b builder[T]) derive(e plan.Expression) *DerivedQuery[T] {
	return derive[T](b.self, b.self.executor(), option.Some(e))
}

func (b builder[T]) ImplicatedDatasets() []string {
	return b.self.Plan().ImplicatedDatasets()
}

// Gen compiles and optimizes a fresh plan and drains it. The result is all or
// nothing.
func (b builder[T]) Gen(ctx context.Context) ([]T, error) {
	items, err := b.self.executor().Execute(ctx, b.self.Plan().Optimize())
	if err != nil {
		return nil, err
	}
	result := make([]T, len(items))
	for i, item := range items {
		if result[i], err = cast[T](item); err != nil {
			return nil, errors.Wrapf(err, "element %d", i)
		}
	}
	return result, nil
}

func (b builder[T]) Run(ctx context.Context) ([]T, error) {
	return b.Gen(ctx)
}

func cast[T any](v any) (T, error) {
	if v == nil {
		var zero T
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return t, errors.Errorf("%T is not %s", v, reflect.TypeFor[T]())
	}
	return t, nil
}

type SourceQuery[T any] struct {
	builder[T]
	source plan.SourceExpression
	exec   *Executor
}

func NewSourceQuery[T any](src plan.SourceExpression, exec *Executor) *SourceQuery[T] {
	q := &SourceQuery[T]{source: src, exec: exec}
	q.builder = builder[T]{self: q}
	return q
}

func (q *SourceQuery[T]) Plan() plan.IPlan {
	return plan.NewPlan(q.source)
}

func (q *SourceQuery[T]) executor() *Executor {
	return q.exec
}

// DerivedQuery appends one expression to the plan of its prior. Without an
// expression it only re-types the prior.
type DerivedQuery[T any] struct {
	builder[T]
	prior      planner
	expression option.Option[plan.Expression]
	exec       *Executor
}

func derive[T any](prior planner, exec *Executor, e option.Option[plan.Expression]) *DerivedQuery[T] {
	q := &DerivedQuery[T]{prior: prior, expression: e, exec: exec}
	q.builder = builder[T]{self: q}
	return q
}

func (q *DerivedQuery[T]) Plan() plan.IPlan {
	p := q.prior.Plan()
	if e, ok := q.expression.Get(); ok {
		return p.WithDerivation(e)
	}
	return p
}

func (q *DerivedQuery[T]) executor() *Executor {
	return q.exec
}

// HopQuery continues across a hop; operations chained after it run on the
// related elements.
type HopQuery[TIn, TOut any] struct {
	builder[TOut]
	prior Query[TIn]
	hop   plan.HopExpression
}

func newHopQuery[TIn, TOut any](prior Query[TIn], hop plan.HopExpression) *HopQuery[TIn, TOut] {
	q := &HopQuery[TIn, TOut]{prior: prior, hop: hop}
	q.builder = builder[TOut]{self: q}
	return q
}

func (q *HopQuery[TIn, TOut]) Plan() plan.IPlan {
	return plan.NewHopPlan(q.prior.Plan(), q.hop)
}

func (q *HopQuery[TIn, TOut]) executor() *Executor {
	return q.prior.executor()
}

// Map transforms every element. fn must be pure.
func Map[T, R any](q Query[T], fn func(T) (R, error)) *DerivedQuery[R] {
	return derive[R](q, q.executor(), option.Some[plan.Expression](plan.Map(func(v any) (any, error) {
		t, err := cast[T](v)
		if err != nil {
			return nil, err
		}
		return fn(t)
	})))
}

// As re-types q without adding an operation. Elements are checked against R
// when the query runs.
func As[R, T any](q Query[T]) *DerivedQuery[R] {
	return derive[R](q, q.executor(), option.Nothing[plan.Expression]())
}

func Count[T any](q Query[T]) *DerivedQuery[int] {
	return derive[int](q, q.executor(), option.Some[plan.Expression](plan.Count()))
}

// Hop traverses into the collection at path of every element.
func Hop[TIn, TOut any](q Query[TIn], path fieldpath.Path) *HopQuery[TIn, TOut] {
	return newHopQuery[TIn, TOut](q, plan.FieldHop(path))
}

// HopFunc traverses with fn, which must be deterministic.
func HopFunc[TIn, TOut any](q Query[TIn], name string, fn func(TIn) ([]TOut, error)) *HopQuery[TIn, TOut] {
	return newHopQuery[TIn, TOut](q, plan.FuncHop(name, option.Nothing[string](), func(v any) ([]any, error) {
		parent, err := cast[TIn](v)
		if err != nil {
			return nil, err
		}
		related, err := fn(parent)
		if err != nil {
			return nil, err
		}
		items := make([]any, len(related))
		for i, r := range related {
			items[i] = r
		}
		return items, nil
	}))
}

// HopDeferred traverses with an asynchronous lookup into dataset. Lookups of
// one chunk run concurrently.
func HopDeferred[TIn, TOut any](q Query[TIn], dataset string, fn func(context.Context, TIn) deferred.Deferred[[]TOut]) *HopQuery[TIn, TOut] {
	return newHopQuery[TIn, TOut](q, plan.DeferredHop(dataset, option.Some(dataset), func(ctx context.Context, v any) deferred.Deferred[[]any] {
		parent, err := cast[TIn](v)
		if err != nil {
			return deferred.Rejected[[]any](err)
		}
		return deferred.Then(fn(ctx, parent), func(related []TOut) ([]any, error) {
			items := make([]any, len(related))
			for i, r := range related {
				items[i] = r
			}
			return items, nil
		}, func(err error) ([]any, error) {
			return nil, err
		})
	}))
}

// HopBatch traverses a whole chunk of parents per call of fn, e.g. with
// source.Lookup.Fetch. fn returns one collection per parent.
func HopBatch[TIn, TOut any](q Query[TIn], name, dataset string, fn func(context.Context, []TIn) ([][]TOut, error)) *HopQuery[TIn, TOut] {
	return newHopQuery[TIn, TOut](q, plan.BatchHop(name, option.Some(dataset), func(ctx context.Context, values []any) ([][]any, error) {
		parents := make([]TIn, len(values))
		for i, v := range values {
			parent, err := cast[TIn](v)
			if err != nil {
				return nil, err
			}
			parents[i] = parent
		}
		groups, err := fn(ctx, parents)
		if err != nil {
			return nil, err
		}
		related := make([][]any, len(groups))
		for i, g := range groups {
			related[i] = make([]any, len(g))
			for j, r := range g {
				related[i][j] = r
			}
		}
		return related, nil
	}))
}
