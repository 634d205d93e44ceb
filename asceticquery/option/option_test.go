package option

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSome(t *testing.T) {
	o := Some(42)
	assert.Equal(t, 42, o.UnwrapOr(0))
	v, ok := o.Get()
	assert.True(t, ok)
	assert.Equal(t, 42, v)
}

func TestNothing(t *testing.T) {
	o := Nothing[string]()
	assert.Equal(t, "fallback", o.UnwrapOr("fallback"))
	_, ok := o.Get()
	assert.False(t, ok)
}

func TestMap(t *testing.T) {
	double := func(v int) int { return v * 2 }
	assert.Equal(t, Some(10), Map(Some(5), double))
	assert.Equal(t, Nothing[int](), Map(Nothing[int](), double))
}

func TestString(t *testing.T) {
	assert.Equal(t, "Some(hello)", Some("hello").String())
	assert.Equal(t, "Nothing", Nothing[int]().String())
}
