package plan

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/chunk"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/deferred"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/errs"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/fieldpath"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/option"
)

// HopExpression traverses from every element into its related collection.
// It is the only operation changing cardinality from one to many.
type HopExpression interface {
	Expression
	// Optimize folds nextHop, the plan directly chained after plan, into a
	// single HopPlan over sourcePlan.
	Optimize(sourcePlan IPlan, plan *HopPlan, nextHop option.Option[*HopPlan]) *HopPlan
	// ImplicatedDataset names the dataset the hop reads, if it reads one.
	ImplicatedDataset() option.Option[string]
	Name() string
	expand(upstream chunk.Iterator[any]) chunk.Iterator[any]
}

// fold merges plan.derivations ++ [nextHop.hop] ++ nextHop.derivations.
func fold(hop HopExpression, sourcePlan IPlan, plan *HopPlan, nextHop option.Option[*HopPlan]) *HopPlan {
	derivations := plan.Derivations()
	if next, ok := nextHop.Get(); ok {
		derivations = append(derivations, next.hop)
		derivations = append(derivations, next.derivations...)
	}
	return NewHopPlan(sourcePlan, hop, derivations...)
}

func relatedCollection(value any) ([]any, error) {
	if value == nil {
		return nil, nil
	}
	if items, ok := value.([]any); ok {
		return items, nil
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]any, v.Len())
		for i := range items {
			items[i] = v.Index(i).Interface()
		}
		return items, nil
	case reflect.Pointer:
		if v.IsNil() {
			return nil, nil
		}
		return relatedCollection(v.Elem().Interface())
	}
	return nil, fmt.Errorf("%T is not a collection", value)
}

// FieldHop traverses into the collection stored at path.
func FieldHop(path fieldpath.Path) FieldHopExpression {
	return FieldHopExpression{path: path}
}

type FieldHopExpression struct {
	path fieldpath.Path
}

func (e FieldHopExpression) Path() fieldpath.Path {
	return e.path
}

// Related resolves the collection of one parent. A missing last segment means
// the parent has no related collection; a missing intermediate is a failure.
func (e FieldHopExpression) Related(parent any) ([]any, error) {
	value, err := e.path.Get(parent)
	if err != nil {
		var accessErr *errs.FieldAccessError
		last := len(e.path.Keys()) - 1
		if errors.As(err, &accessErr) && accessErr.Index == last && accessErr.Cause == nil {
			return nil, nil
		}
		return nil, &errs.TraversalError{Hop: e.Name(), Parent: parent, Cause: err}
	}
	related, err := relatedCollection(value)
	if err != nil {
		return nil, &errs.TraversalError{Hop: e.Name(), Parent: parent, Cause: err}
	}
	return related, nil
}

func (e FieldHopExpression) Optimize(sourcePlan IPlan, plan *HopPlan, nextHop option.Option[*HopPlan]) *HopPlan {
	return fold(e, sourcePlan, plan, nextHop)
}

func (e FieldHopExpression) ImplicatedDataset() option.Option[string] {
	return option.Nothing[string]()
}

func (e FieldHopExpression) Name() string {
	return e.path.String()
}

func (e FieldHopExpression) expand(upstream chunk.Iterator[any]) chunk.Iterator[any] {
	return chunk.FlatMap(upstream, e.Related)
}

func (e FieldHopExpression) Kind() Kind {
	return KindHop
}

func (e FieldHopExpression) Accept(v Visitor) error {
	return v.VisitHop(e)
}

func (e FieldHopExpression) ChainAfter(upstream chunk.Iterator[any]) chunk.Iterator[any] {
	return chainAfter(e, upstream)
}

func (e FieldHopExpression) Equal(other Expression) bool {
	o, ok := other.(FieldHopExpression)
	return ok && o.path.Equal(e.path)
}

func (e FieldHopExpression) String() string {
	return describe(e)
}

func (e FieldHopExpression) expression() {}

// FuncHop traverses with fn, which must be deterministic and side-effect free.
// dataset names what fn reads, if anything.
func FuncHop(name string, dataset option.Option[string], fn func(any) ([]any, error)) FuncHopExpression {
	return FuncHopExpression{id: newIdentity(), name: name, dataset: dataset, fn: fn}
}

type FuncHopExpression struct {
	id      identity
	name    string
	dataset option.Option[string]
	fn      func(any) ([]any, error)
}

func (e FuncHopExpression) Related(parent any) ([]any, error) {
	related, err := e.fn(parent)
	if err != nil {
		return nil, &errs.TraversalError{Hop: e.name, Parent: parent, Cause: err}
	}
	return related, nil
}

func (e FuncHopExpression) Optimize(sourcePlan IPlan, plan *HopPlan, nextHop option.Option[*HopPlan]) *HopPlan {
	return fold(e, sourcePlan, plan, nextHop)
}

func (e FuncHopExpression) ImplicatedDataset() option.Option[string] {
	return e.dataset
}

func (e FuncHopExpression) Name() string {
	return e.name
}

func (e FuncHopExpression) expand(upstream chunk.Iterator[any]) chunk.Iterator[any] {
	return chunk.FlatMap(upstream, e.Related)
}

func (e FuncHopExpression) Kind() Kind {
	return KindHop
}

func (e FuncHopExpression) Accept(v Visitor) error {
	return v.VisitHop(e)
}

func (e FuncHopExpression) ChainAfter(upstream chunk.Iterator[any]) chunk.Iterator[any] {
	return chainAfter(e, upstream)
}

func (e FuncHopExpression) Equal(other Expression) bool {
	o, ok := other.(FuncHopExpression)
	return ok && o.id == e.id
}

func (e FuncHopExpression) String() string {
	return describe(e)
}

func (e FuncHopExpression) expression() {}

// DeferredHop traverses asynchronously. All lookups of one chunk are started
// before the first one is awaited, so a chunk costs one round of latency.
func DeferredHop(name string, dataset option.Option[string], fn func(ctx context.Context, parent any) deferred.Deferred[[]any]) DeferredHopExpression {
	return DeferredHopExpression{id: newIdentity(), name: name, dataset: dataset, fn: fn}
}

type DeferredHopExpression struct {
	id      identity
	name    string
	dataset option.Option[string]
	fn      func(ctx context.Context, parent any) deferred.Deferred[[]any]
}

func (e DeferredHopExpression) relatedChunk(ctx context.Context, parents []any) ([]any, error) {
	pending := make([]deferred.Deferred[any], len(parents))
	for i, parent := range parents {
		pending[i] = e.fn(ctx, parent).Then(func(related []any) (any, error) {
			return related, nil
		}, func(err error) (any, error) {
			return nil, &errs.TraversalError{Hop: e.name, Parent: parent, Cause: err}
		})
	}
	groups, err := deferred.Await[[]any](ctx, deferred.All(pending))
	if err != nil {
		return nil, err
	}
	var expanded []any
	for _, g := range groups {
		if related, ok := g.([]any); ok {
			expanded = append(expanded, related...)
		}
	}
	return expanded, nil
}

func (e DeferredHopExpression) Optimize(sourcePlan IPlan, plan *HopPlan, nextHop option.Option[*HopPlan]) *HopPlan {
	return fold(e, sourcePlan, plan, nextHop)
}

func (e DeferredHopExpression) ImplicatedDataset() option.Option[string] {
	return e.dataset
}

func (e DeferredHopExpression) Name() string {
	return e.name
}

func (e DeferredHopExpression) expand(upstream chunk.Iterator[any]) chunk.Iterator[any] {
	return chunk.Expand(upstream, e.relatedChunk)
}

func (e DeferredHopExpression) Kind() Kind {
	return KindHop
}

func (e DeferredHopExpression) Accept(v Visitor) error {
	return v.VisitHop(e)
}

func (e DeferredHopExpression) ChainAfter(upstream chunk.Iterator[any]) chunk.Iterator[any] {
	return chainAfter(e, upstream)
}

func (e DeferredHopExpression) Equal(other Expression) bool {
	o, ok := other.(DeferredHopExpression)
	return ok && o.id == e.id
}

func (e DeferredHopExpression) String() string {
	return describe(e)
}

func (e DeferredHopExpression) expression() {}

// BatchHop traverses a whole chunk of parents with one call of fn, which
// returns one related collection per parent, in parent order.
func BatchHop(name string, dataset option.Option[string], fn func(ctx context.Context, parents []any) ([][]any, error)) BatchHopExpression {
	return BatchHopExpression{id: newIdentity(), name: name, dataset: dataset, fn: fn}
}

type BatchHopExpression struct {
	id      identity
	name    string
	dataset option.Option[string]
	fn      func(ctx context.Context, parents []any) ([][]any, error)
}

// relatedChunk reports a failure of fn against the whole chunk, since no
// single parent can be blamed.
func (e BatchHopExpression) relatedChunk(ctx context.Context, parents []any) ([]any, error) {
	groups, err := e.fn(ctx, parents)
	if err != nil {
		return nil, &errs.TraversalError{Hop: e.name, Parent: parents, Cause: err}
	}
	if len(groups) != len(parents) {
		return nil, &errs.TraversalError{
			Hop:    e.name,
			Parent: parents,
			Cause:  fmt.Errorf("got %d related collections for %d parents", len(groups), len(parents)),
		}
	}
	var expanded []any
	for _, g := range groups {
		expanded = append(expanded, g...)
	}
	return expanded, nil
}

func (e BatchHopExpression) Optimize(sourcePlan IPlan, plan *HopPlan, nextHop option.Option[*HopPlan]) *HopPlan {
	return fold(e, sourcePlan, plan, nextHop)
}

func (e BatchHopExpression) ImplicatedDataset() option.Option[string] {
	return e.dataset
}

func (e BatchHopExpression) Name() string {
	return e.name
}

func (e BatchHopExpression) expand(upstream chunk.Iterator[any]) chunk.Iterator[any] {
	return chunk.Expand(upstream, e.relatedChunk)
}

func (e BatchHopExpression) Kind() Kind {
	return KindHop
}

func (e BatchHopExpression) Accept(v Visitor) error {
	return v.VisitHop(e)
}

func (e BatchHopExpression) ChainAfter(upstream chunk.Iterator[any]) chunk.Iterator[any] {
	return chainAfter(e, upstream)
}

func (e BatchHopExpression) Equal(other Expression) bool {
	o, ok := other.(BatchHopExpression)
	return ok && o.id == e.id
}

func (e BatchHopExpression) String() string {
	return describe(e)
}

func (e BatchHopExpression) expression() {}
