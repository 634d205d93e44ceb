// Package predicate provides single-argument boolean tests used by filters.
package predicate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/errs"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/specification/operators"
)

// Predicate must be pure: the same value always gives the same answer.
type Predicate interface {
	Evaluate(value any) (bool, error)
	fmt.Stringer
}

type comparison struct {
	operator operators.Operator
	operand  any
}

func (c comparison) Evaluate(value any) (bool, error) {
	return operators.Default().Test(value, c.operator, c.operand)
}

func (c comparison) String() string {
	return fmt.Sprintf("%s %#v", c.operator, c.operand)
}

// equality falls back to structural equality for values the registry cannot compare.
type equality struct {
	operand any
	negate  bool
}

func (e equality) Evaluate(value any) (bool, error) {
	op := operators.OperatorEq
	if e.negate {
		op = operators.OperatorNe
	}
	if value == nil || e.operand == nil {
		return (value == nil && e.operand == nil) != e.negate, nil
	}
	holds, err := operators.Default().Test(value, op, e.operand)
	var cmpErr *errs.ComparisonError
	if errors.As(err, &cmpErr) {
		return reflect.DeepEqual(value, e.operand) != e.negate, nil
	}
	return holds, err
}

func (e equality) String() string {
	if e.negate {
		return fmt.Sprintf("!= %#v", e.operand)
	}
	return fmt.Sprintf("= %#v", e.operand)
}

func Equals(operand any) Predicate {
	return equality{operand: operand}
}

func NotEquals(operand any) Predicate {
	return equality{operand: operand, negate: true}
}

// GreaterThan requires a strict order between the value and operand;
// incomparable values fail with *errs.ComparisonError.
func GreaterThan(operand any) Predicate {
	return comparison{operator: operators.OperatorGt, operand: operand}
}

func GreaterThanEqual(operand any) Predicate {
	return comparison{operator: operators.OperatorGte, operand: operand}
}

func LessThan(operand any) Predicate {
	return comparison{operator: operators.OperatorLt, operand: operand}
}

func LessThanEqual(operand any) Predicate {
	return comparison{operator: operators.OperatorLte, operand: operand}
}

type lambda struct {
	fn func(any) (bool, error)
}

func (l lambda) Evaluate(value any) (bool, error) {
	return l.fn(value)
}

func (l lambda) String() string {
	return "lambda"
}

// Lambda wraps an arbitrary boolean function.
func Lambda(fn func(any) bool) Predicate {
	return lambda{fn: func(v any) (bool, error) {
		return fn(v), nil
	}}
}

// Func wraps a boolean function that may fail; its error aborts the filter.
func Func(fn func(any) (bool, error)) Predicate {
	return lambda{fn: fn}
}

type not struct {
	operand Predicate
}

func (n not) Evaluate(value any) (bool, error) {
	holds, err := n.operand.Evaluate(value)
	return !holds && err == nil, err
}

func (n not) String() string {
	return fmt.Sprintf("NOT (%s)", n.operand)
}

func Not(operand Predicate) Predicate {
	return not{operand: operand}
}

type junction struct {
	operator operators.Operator
	operands []Predicate
}

func (j junction) Evaluate(value any) (bool, error) {
	isAnd := j.operator == "AND"
	for _, p := range j.operands {
		holds, err := p.Evaluate(value)
		if err != nil {
			return false, err
		}
		if holds != isAnd {
			return holds, nil
		}
	}
	return isAnd, nil
}

func (j junction) String() string {
	parts := make([]string, len(j.operands))
	for i, p := range j.operands {
		parts[i] = "(" + p.String() + ")"
	}
	return strings.Join(parts, " "+string(j.operator)+" ")
}

// And short-circuits on the first false operand.
func And(operands ...Predicate) Predicate {
	return junction{operator: "AND", operands: operands}
}

// Or short-circuits on the first true operand.
func Or(operands ...Predicate) Predicate {
	return junction{operator: "OR", operands: operands}
}

type nullCheck struct {
	isNull bool
}

func (n nullCheck) Evaluate(value any) (bool, error) {
	isNil := value == nil
	if !isNil {
		v := reflect.ValueOf(value)
		switch v.Kind() {
		case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
			isNil = v.IsNil()
		}
	}
	return isNil == n.isNull, nil
}

func (n nullCheck) String() string {
	if n.isNull {
		return "IS NULL"
	}
	return "IS NOT NULL"
}

func IsNull() Predicate {
	return nullCheck{isNull: true}
}

func IsNotNull() Predicate {
	return nullCheck{isNull: false}
}

type in struct {
	operands []any
}

func (i in) Evaluate(value any) (bool, error) {
	for _, operand := range i.operands {
		holds, err := Equals(operand).Evaluate(value)
		if err != nil || holds {
			return holds, err
		}
	}
	return false, nil
}

func (i in) String() string {
	return fmt.Sprintf("IN %#v", i.operands)
}

func In(operands ...any) Predicate {
	return in{operands: operands}
}
