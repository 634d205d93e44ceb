package operators

import (
	"fmt"
	"math"
	"reflect"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/errs"
)

type BinaryOp func(left, right any) (any, error)

type binaryKey struct {
	left  reflect.Type
	op    Operator
	right reflect.Type
}

type OperatorRegistry struct {
	binary map[binaryKey]BinaryOp
}

func NewOperatorRegistry() *OperatorRegistry {
	return &OperatorRegistry{
		binary: make(map[binaryKey]BinaryOp),
	}
}

func RegisterBinary[L, R any](reg *OperatorRegistry, op Operator, fn func(L, R) (any, error)) {
	var zeroL L
	var zeroR R
	key := binaryKey{
		left:  reflect.TypeOf(zeroL),
		op:    op,
		right: reflect.TypeOf(zeroR),
	}
	reg.binary[key] = func(left, right any) (any, error) {
		return fn(left.(L), right.(R))
	}
}

// ExecBinary executes a binary operator with SQL NULL propagation:
// a nil operand yields a nil result.
func (r *OperatorRegistry) ExecBinary(left any, op Operator, right any) (any, error) {
	if left == nil || right == nil {
		return nil, nil
	}

	fn, left, right, err := r.lookupBinary(left, op, right)
	if err != nil {
		return nil, err
	}
	return fn(left, right)
}

// Test executes a comparison and reports whether it holds. NULL results are false.
func (r *OperatorRegistry) Test(left any, op Operator, right any) (bool, error) {
	result, err := r.ExecBinary(left, op, right)
	if err != nil {
		return false, err
	}
	holds, _ := result.(bool)
	return holds, nil
}

// Compare returns -1, 0 or 1 following the natural order of the operands.
func (r *OperatorRegistry) Compare(left, right any) (int, error) {
	if left == nil || right == nil {
		return 0, &errs.ComparisonError{Operator: string(OperatorLt), Left: left, Right: right,
			Cause: fmt.Errorf("NULL has no order")}
	}
	less, err := r.Test(left, OperatorLt, right)
	if err != nil {
		return 0, err
	}
	if less {
		return -1, nil
	}
	greater, err := r.Test(left, OperatorGt, right)
	if err != nil {
		return 0, err
	}
	if greater {
		return 1, nil
	}
	return 0, nil
}

func (r *OperatorRegistry) lookupBinary(left any, op Operator, right any) (BinaryOp, any, any, error) {
	if fn, ok := r.binary[keyOf(left, op, right)]; ok {
		return fn, left, right, nil
	}

	// Mixed numeric operands, e.g. float64 decoded from JSON against an int literal.
	if l, rr, ok := promote(left, right); ok {
		if fn, ok := r.binary[keyOf(l, op, rr)]; ok {
			return fn, l, rr, nil
		}
	}

	if fallback := interfaceFallback(left, op, right); fallback != nil {
		return fallback, left, right, nil
	}

	return nil, nil, nil, &errs.ComparisonError{Operator: string(op), Left: left, Right: right,
		Cause: fmt.Errorf("operator \"%s\" is not supported for %T and %T", op, left, right)}
}

func keyOf(left any, op Operator, right any) binaryKey {
	return binaryKey{left: reflect.TypeOf(left), op: op, right: reflect.TypeOf(right)}
}

// promote widens two numeric operands to a common type: int64 when both
// integers fit it, uint64 when one exceeds it and the other is not negative,
// float64 otherwise.
func promote(left, right any) (any, any, bool) {
	lv, rv := reflect.ValueOf(left), reflect.ValueOf(right)
	lk, rk := numericKind(lv.Kind()), numericKind(rv.Kind())
	if lk == notNumeric || rk == notNumeric {
		return nil, nil, false
	}
	if lk == integer && rk == integer {
		if fitsInt64(lv) && fitsInt64(rv) {
			return toInt64(lv), toInt64(rv), true
		}
		if !negative(lv) && !negative(rv) {
			return toUint64(lv), toUint64(rv), true
		}
	}
	return toFloat64(lv), toFloat64(rv), true
}

func fitsInt64(v reflect.Value) bool {
	return v.CanInt() || v.Uint() <= math.MaxInt64
}

func negative(v reflect.Value) bool {
	return v.CanInt() && v.Int() < 0
}

func toUint64(v reflect.Value) uint64 {
	if v.CanInt() {
		return uint64(v.Int())
	}
	return v.Uint()
}

type numeric int

const (
	notNumeric numeric = iota
	integer
	floating
)

func numericKind(k reflect.Kind) numeric {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return integer
	case reflect.Float32, reflect.Float64:
		return floating
	}
	return notNumeric
}

func toInt64(v reflect.Value) int64 {
	if v.CanInt() {
		return v.Int()
	}
	return int64(v.Uint())
}

func toFloat64(v reflect.Value) float64 {
	switch {
	case v.CanFloat():
		return v.Float()
	case v.CanInt():
		return float64(v.Int())
	}
	return float64(v.Uint())
}

func interfaceFallback(left any, op Operator, right any) BinaryOp {
	switch op {
	case OperatorEq, OperatorNe:
		l, lok := left.(EqualOperand)
		r, rok := right.(EqualOperand)
		if lok && rok {
			return func(_, _ any) (any, error) {
				return l.Equal(r) == (op == OperatorEq), nil
			}
		}
	case OperatorGt:
		l, lok := left.(GreaterThanOperand)
		r, rok := right.(GreaterThanOperand)
		if lok && rok {
			return func(_, _ any) (any, error) { return l.GreaterThan(r), nil }
		}
	case OperatorGte:
		l, lok := left.(GreaterThanEqualOperand)
		r, rok := right.(GreaterThanEqualOperand)
		if lok && rok {
			return func(_, _ any) (any, error) { return l.GreaterThanEqual(r), nil }
		}
	case OperatorLt:
		l, lok := left.(LessThanOperand)
		r, rok := right.(LessThanOperand)
		if lok && rok {
			return func(_, _ any) (any, error) { return l.LessThan(r), nil }
		}
	case OperatorLte:
		l, lok := left.(LessThanEqualOperand)
		r, rok := right.(LessThanEqualOperand)
		if lok && rok {
			return func(_, _ any) (any, error) { return l.LessThanEqual(r), nil }
		}
	}
	return nil
}
