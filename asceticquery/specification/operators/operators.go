package operators

type Operator string

const (
	OperatorEq  Operator = "="
	OperatorGt  Operator = ">"
	OperatorLt  Operator = "<"
	OperatorGte Operator = ">="
	OperatorLte Operator = "<="
	OperatorNe  Operator = "!="
)

// Value Object operands. A type implementing these is comparable without registration.

type EqualOperand interface {
	Equal(other EqualOperand) bool
}

type GreaterThanOperand interface {
	GreaterThan(other GreaterThanOperand) bool
}

type GreaterThanEqualOperand interface {
	GreaterThanEqual(other GreaterThanEqualOperand) bool
}

type LessThanOperand interface {
	LessThan(other LessThanOperand) bool
}

type LessThanEqualOperand interface {
	LessThanEqual(other LessThanEqualOperand) bool
}
