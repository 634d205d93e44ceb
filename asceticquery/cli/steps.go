// Package cli turns command line steps into queries over decoded records.
package cli

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/fieldpath"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/plan"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/predicate"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/query"
)

type StepKind string

const (
	Where   StepKind = "where"
	Hop     StepKind = "hop"
	OrderBy StepKind = "order-by"
	Take    StepKind = "take"
	Map     StepKind = "map"
	Count   StepKind = "count"
)

type Step struct {
	Kind      StepKind
	Path      fieldpath.Path
	Predicate predicate.Predicate
	Direction plan.Direction
	N         int
}

var comparators = map[string]func(any) predicate.Predicate{
	"=":  predicate.Equals,
	"!=": predicate.NotEquals,
	">":  predicate.GreaterThan,
	">=": predicate.GreaterThanEqual,
	"<":  predicate.LessThan,
	"<=": predicate.LessThanEqual,
}

// ParseStep parses the argument of one step flag:
//
//	where     name=Brown, weight>30, partner.name!=null
//	hop       animals
//	order-by  weight, weight:desc
//	take      2
//	map       type
//	count     (argument ignored)
func ParseStep(kind StepKind, raw string) (Step, error) {
	step := Step{Kind: kind}
	switch kind {
	case Where:
		return parseWhere(raw)
	case Hop, Map:
		if raw == "" {
			return step, errors.Errorf("%s needs a path", kind)
		}
		step.Path = fieldpath.Parse(raw)
	case OrderBy:
		dotted, dir, _ := strings.Cut(raw, ":")
		if dotted == "" {
			return step, errors.Errorf("%s needs a path", kind)
		}
		step.Path = fieldpath.Parse(dotted)
		switch plan.Direction(strings.ToLower(dir)) {
		case "", plan.Asc:
			step.Direction = plan.Asc
		case plan.Desc:
			step.Direction = plan.Desc
		default:
			return step, errors.Errorf("unknown direction %q", dir)
		}
	case Take:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return step, errors.Wrapf(err, "take %q", raw)
		}
		if n < 0 {
			return step, errors.Errorf("take must not be negative, got %d", n)
		}
		step.N = n
	case Count:
	default:
		return step, errors.Errorf("unknown step %q", kind)
	}
	return step, nil
}

// parseWhere splits at the first comparison symbol.
func parseWhere(raw string) (Step, error) {
	i := strings.IndexAny(raw, "<>=!")
	if i < 0 {
		return Step{}, errors.Errorf("where %q has no comparison", raw)
	}
	symbol := raw[i : i+1]
	if i+1 < len(raw) && raw[i+1] == '=' && symbol != "=" {
		symbol += "="
	}
	build, ok := comparators[symbol]
	if !ok {
		return Step{}, errors.Errorf("where %q has an unknown comparison %q", raw, symbol)
	}
	dotted := strings.TrimSpace(raw[:i])
	if dotted == "" {
		return Step{}, errors.Errorf("where %q has no path", raw)
	}
	operand, err := ParseLiteral(strings.TrimSpace(raw[i+len(symbol):]))
	if err != nil {
		return Step{}, errors.Wrapf(err, "where %q", raw)
	}
	return Step{Kind: Where, Path: fieldpath.Parse(dotted), Predicate: comparison(symbol, build, operand)}, nil
}

func comparison(symbol string, build func(any) predicate.Predicate, operand any) predicate.Predicate {
	if operand == nil {
		switch symbol {
		case "=":
			return predicate.IsNull()
		case "!=":
			return predicate.IsNotNull()
		}
	}
	return build(operand)
}

// ParseLiteral types an operand the way YAML types a scalar: 30 is an int,
// 2.5 a float64, true a bool, null nil and anything else a string. Quote a
// value to keep it a string.
func ParseLiteral(raw string) (any, error) {
	if raw == "" {
		return "", nil
	}
	var value any
	if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
		return nil, errors.Wrapf(err, "literal %q", raw)
	}
	switch value.(type) {
	case nil, bool, int, float64, string:
		return value, nil
	}
	return raw, nil
}

// Apply appends steps to q in order.
func Apply(q query.Query[any], steps []Step) query.Query[any] {
	for _, s := range steps {
		switch s.Kind {
		case Where:
			q = q.Where(s.Path, s.Predicate)
		case Hop:
			q = query.Hop[any, any](q, s.Path)
		case OrderBy:
			q = q.OrderBy(s.Path, s.Direction)
		case Take:
			q = q.Take(s.N)
		case Map:
			path := s.Path
			q = query.Map(q, func(v any) (any, error) {
				return path.Get(v)
			})
		case Count:
			q = query.As[any, int](query.Count(q))
		}
	}
	return q
}
