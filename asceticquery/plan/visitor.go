package plan

import (
	"fmt"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/chunk"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/fieldpath"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/option"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/specification/operators"
)

type Visitor interface {
	VisitTake(TakeExpression) error
	VisitFilter(FilterExpression) error
	VisitOrderBy(OrderByExpression) error
	VisitMap(MapExpression) error
	VisitCount(CountExpression) error
	VisitHop(HopExpression) error
}

// ChainVisitor wires expressions onto a chunk sequence.
type ChainVisitor struct {
	upstream chunk.Iterator[any]
	registry *operators.OperatorRegistry
}

func NewChainVisitor(upstream chunk.Iterator[any], registry *operators.OperatorRegistry) *ChainVisitor {
	return &ChainVisitor{upstream: upstream, registry: registry}
}

func (v *ChainVisitor) Result() chunk.Iterator[any] {
	return v.upstream
}

func (v *ChainVisitor) VisitTake(e TakeExpression) error {
	v.upstream = chunk.Take(v.upstream, e.n)
	return nil
}

func (v *ChainVisitor) VisitFilter(e FilterExpression) error {
	v.upstream = chunk.Filter(v.upstream, e.Test)
	return nil
}

func (v *ChainVisitor) VisitOrderBy(e OrderByExpression) error {
	sign := 1
	if e.direction == Desc {
		sign = -1
	}
	v.upstream = chunk.OrderBy(v.upstream, func(left, right any) (int, error) {
		l, err := e.path.Get(left)
		if err != nil {
			return 0, err
		}
		r, err := e.path.Get(right)
		if err != nil {
			return 0, err
		}
		c, err := v.registry.Compare(l, r)
		return sign * c, err
	})
	return nil
}

func (v *ChainVisitor) VisitMap(e MapExpression) error {
	v.upstream = chunk.Map(v.upstream, e.fn)
	return nil
}

func (v *ChainVisitor) VisitCount(e CountExpression) error {
	v.upstream = chunk.Map(chunk.Count(v.upstream), func(n int) (any, error) {
		return n, nil
	})
	return nil
}

func (v *ChainVisitor) VisitHop(e HopExpression) error {
	v.upstream = e.expand(v.upstream)
	return nil
}

func chainAfter(e Expression, upstream chunk.Iterator[any]) chunk.Iterator[any] {
	v := NewChainVisitor(upstream, operators.Default())
	// chaining never fails; the error return exists for other visitors
	_ = e.Accept(v)
	return v.Result()
}

// ExplainVisitor renders one expression per call into a human readable line.
type ExplainVisitor struct {
	line string
}

func (v *ExplainVisitor) Line() string {
	return v.line
}

func (v *ExplainVisitor) VisitTake(e TakeExpression) error {
	v.line = fmt.Sprintf("take %d", e.n)
	return nil
}

func (v *ExplainVisitor) VisitFilter(e FilterExpression) error {
	target := option.Map(e.getter, fieldpath.Path.String).UnwrapOr("@")
	v.line = fmt.Sprintf("filter %s %s", target, e.predicate)
	return nil
}

func (v *ExplainVisitor) VisitOrderBy(e OrderByExpression) error {
	v.line = fmt.Sprintf("orderBy %s %s", e.path, e.direction)
	return nil
}

func (v *ExplainVisitor) VisitMap(e MapExpression) error {
	v.line = "map"
	return nil
}

func (v *ExplainVisitor) VisitCount(e CountExpression) error {
	v.line = "count"
	return nil
}

func (v *ExplainVisitor) VisitHop(e HopExpression) error {
	v.line = "hop " + e.Name()
	return nil
}

func describe(e Expression) string {
	v := &ExplainVisitor{}
	_ = e.Accept(v)
	return v.Line()
}
