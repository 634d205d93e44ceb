package predicate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/errs"
)

func TestPredicates(t *testing.T) {
	tests := []struct {
		name      string
		predicate Predicate
		value     any
		expected  bool
	}{
		{"equals string", Equals("Brown"), "Brown", true},
		{"equals other string", Equals("Brown"), "Bob", false},
		{"equals numeric promotion", Equals(160), 160.0, true},
		{"equals structural", Equals(map[string]any{"name": "Alice"}), map[string]any{"name": "Alice"}, true},
		{"equals mismatched types", Equals("1"), 1, false},
		{"equals nil", Equals(nil), nil, true},
		{"not equals", NotEquals("Brown"), "Bob", true},
		{"not equals nil", NotEquals(nil), "Bob", true},
		{"greater than", GreaterThan(30), 160, true},
		{"greater than boundary", GreaterThan(30), 30, false},
		{"greater than nil", GreaterThan(30), nil, false},
		{"greater than equal", GreaterThanEqual(30), 30, true},
		{"less than", LessThan(30), 25, true},
		{"less than equal", LessThanEqual(25), 25, true},
		{"lambda", Lambda(func(v any) bool { return v.(string) == "pig" }), "pig", true},
		{"not", Not(Equals("pig")), "cow", true},
		{"and", And(GreaterThan(30), LessThan(200)), 160, true},
		{"and fails", And(GreaterThan(30), LessThan(200)), 300, false},
		{"or", Or(Equals("pig"), Equals("cow")), "cow", true},
		{"or fails", Or(Equals("pig"), Equals("cow")), "dog", false},
		{"is null", IsNull(), (*int)(nil), true},
		{"is not null", IsNotNull(), 1, true},
		{"in", In("pig", "cow"), "cow", true},
		{"not in", In("pig", "cow"), "dog", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			holds, err := tt.predicate.Evaluate(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, holds)
		})
	}
}

func TestGreaterThan_Incomparable(t *testing.T) {
	holds, err := GreaterThan(30).Evaluate("pig")

	assert.False(t, holds)
	var cmpErr *errs.ComparisonError
	assert.True(t, errors.As(err, &cmpErr))
}

func TestNot_PropagatesError(t *testing.T) {
	holds, err := Not(GreaterThan(30)).Evaluate("pig")

	assert.False(t, holds)
	assert.Error(t, err)
}

func TestLambda_IsStable(t *testing.T) {
	p := Lambda(func(v any) bool { return v.(int)%2 == 0 })
	for i := 0; i < 3; i++ {
		holds, err := p.Evaluate(4)
		require.NoError(t, err)
		assert.True(t, holds)
	}
}

func TestFunc_PropagatesError(t *testing.T) {
	failure := errors.New("not an animal")
	p := Func(func(any) (bool, error) { return false, failure })

	holds, err := p.Evaluate("pig")

	assert.False(t, holds)
	assert.ErrorIs(t, err, failure)
}

func TestString(t *testing.T) {
	assert.Equal(t, `= "Brown"`, Equals("Brown").String())
	assert.Equal(t, "> 30", GreaterThan(30).String())
	assert.Equal(t, `(> 30) AND (< 200)`, And(GreaterThan(30), LessThan(200)).String())
	assert.Equal(t, "lambda", Lambda(func(any) bool { return true }).String())
}
