// Package plan holds the declarative operations of a query and the plans
// they compile into.
//
// Expressions form a closed set: Take, Filter, OrderBy, Map, Count and the
// hop variants. Every switch over them goes through Visitor, so adding a
// variant breaks each site at compile time.
package plan

import (
	"fmt"
	"reflect"
	"sync/atomic"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/chunk"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/fieldpath"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/option"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/predicate"
)

type Kind string

const (
	KindTake    Kind = "take"
	KindFilter  Kind = "filter"
	KindOrderBy Kind = "orderBy"
	KindMap     Kind = "map"
	KindCount   Kind = "count"
	KindHop     Kind = "hop"
)

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

type Expression interface {
	Kind() Kind
	Accept(Visitor) error
	// ChainAfter splices the operation onto upstream.
	ChainAfter(upstream chunk.Iterator[any]) chunk.Iterator[any]
	Equal(Expression) bool
	fmt.Stringer
	expression()
}

// identity distinguishes expressions carrying functions, which cannot be
// compared by payload.
type identity uint64

var lastIdentity atomic.Uint64

func newIdentity() identity {
	return identity(lastIdentity.Add(1))
}

func Take(n int) TakeExpression {
	return TakeExpression{n: n}
}

type TakeExpression struct {
	n int
}

func (e TakeExpression) N() int {
	return e.n
}

func (e TakeExpression) Kind() Kind {
	return KindTake
}

func (e TakeExpression) Accept(v Visitor) error {
	return v.VisitTake(e)
}

func (e TakeExpression) ChainAfter(upstream chunk.Iterator[any]) chunk.Iterator[any] {
	return chainAfter(e, upstream)
}

func (e TakeExpression) Equal(other Expression) bool {
	o, ok := other.(TakeExpression)
	return ok && o.n == e.n
}

func (e TakeExpression) String() string {
	return describe(e)
}

func (e TakeExpression) expression() {}

// Filter keeps elements whose addressed value satisfies p. With Nothing as
// getter the predicate sees the whole element.
func Filter(getter option.Option[fieldpath.Path], p predicate.Predicate) FilterExpression {
	return FilterExpression{id: newIdentity(), getter: getter, predicate: p}
}

type FilterExpression struct {
	id        identity
	getter    option.Option[fieldpath.Path]
	predicate predicate.Predicate
}

func (e FilterExpression) Getter() option.Option[fieldpath.Path] {
	return e.getter
}

func (e FilterExpression) Predicate() predicate.Predicate {
	return e.predicate
}

// Test evaluates the filter against one element.
func (e FilterExpression) Test(element any) (bool, error) {
	value := element
	if path, ok := e.getter.Get(); ok {
		var err error
		if value, err = path.Get(element); err != nil {
			return false, err
		}
	}
	return e.predicate.Evaluate(value)
}

func (e FilterExpression) Kind() Kind {
	return KindFilter
}

func (e FilterExpression) Accept(v Visitor) error {
	return v.VisitFilter(e)
}

func (e FilterExpression) ChainAfter(upstream chunk.Iterator[any]) chunk.Iterator[any] {
	return chainAfter(e, upstream)
}

func (e FilterExpression) Equal(other Expression) bool {
	o, ok := other.(FilterExpression)
	if !ok {
		return false
	}
	if o.id == e.id {
		return true
	}
	lp, lok := e.getter.Get()
	rp, rok := o.getter.Get()
	return lok == rok && lp.Equal(rp) && reflect.DeepEqual(e.predicate, o.predicate)
}

func (e FilterExpression) String() string {
	return describe(e)
}

func (e FilterExpression) expression() {}

func OrderBy(path fieldpath.Path, direction Direction) OrderByExpression {
	return OrderByExpression{path: path, direction: direction}
}

type OrderByExpression struct {
	path      fieldpath.Path
	direction Direction
}

func (e OrderByExpression) Path() fieldpath.Path {
	return e.path
}

func (e OrderByExpression) Direction() Direction {
	return e.direction
}

func (e OrderByExpression) Kind() Kind {
	return KindOrderBy
}

func (e OrderByExpression) Accept(v Visitor) error {
	return v.VisitOrderBy(e)
}

func (e OrderByExpression) ChainAfter(upstream chunk.Iterator[any]) chunk.Iterator[any] {
	return chainAfter(e, upstream)
}

func (e OrderByExpression) Equal(other Expression) bool {
	o, ok := other.(OrderByExpression)
	return ok && o.direction == e.direction && o.path.Equal(e.path)
}

func (e OrderByExpression) String() string {
	return describe(e)
}

func (e OrderByExpression) expression() {}

// Map transforms every element one-to-one. fn must be pure.
func Map(fn func(any) (any, error)) MapExpression {
	return MapExpression{id: newIdentity(), fn: fn}
}

type MapExpression struct {
	id identity
	fn func(any) (any, error)
}

func (e MapExpression) Apply(element any) (any, error) {
	return e.fn(element)
}

func (e MapExpression) Kind() Kind {
	return KindMap
}

func (e MapExpression) Accept(v Visitor) error {
	return v.VisitMap(e)
}

func (e MapExpression) ChainAfter(upstream chunk.Iterator[any]) chunk.Iterator[any] {
	return chainAfter(e, upstream)
}

func (e MapExpression) Equal(other Expression) bool {
	o, ok := other.(MapExpression)
	return ok && o.id == e.id
}

func (e MapExpression) String() string {
	return describe(e)
}

func (e MapExpression) expression() {}

func Count() CountExpression {
	return CountExpression{}
}

type CountExpression struct{}

func (e CountExpression) Kind() Kind {
	return KindCount
}

func (e CountExpression) Accept(v Visitor) error {
	return v.VisitCount(e)
}

func (e CountExpression) ChainAfter(upstream chunk.Iterator[any]) chunk.Iterator[any] {
	return chainAfter(e, upstream)
}

func (e CountExpression) Equal(other Expression) bool {
	_, ok := other.(CountExpression)
	return ok
}

func (e CountExpression) String() string {
	return describe(e)
}

func (e CountExpression) expression() {}
