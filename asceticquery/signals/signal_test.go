package signals

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type sampleEvent struct {
	payload int
}

func TestSignal_AttachAndNotify(t *testing.T) {
	s := NewSignal[sampleEvent]()
	var called sampleEvent
	s.Attach(func(e sampleEvent) error { called = e; return nil }, "obs")
	assert.NoError(t, s.Notify(sampleEvent{1}))
	assert.Equal(t, sampleEvent{1}, called)
}

func TestSignal_NotifyPreservesOrder(t *testing.T) {
	s := NewSignal[sampleEvent]()
	var order []int
	s.Attach(func(e sampleEvent) error { order = append(order, 1); return nil }, "obs1")
	s.Attach(func(e sampleEvent) error { order = append(order, 2); return nil }, "obs2")
	s.Notify(sampleEvent{1})
	assert.Equal(t, []int{1, 2}, order)
}

func TestSignal_AttachSameIDTwice(t *testing.T) {
	s := NewSignal[sampleEvent]()
	calls := 0
	observer := Observer[sampleEvent](func(e sampleEvent) error { calls++; return nil })
	s.Attach(observer, "obs")
	s.Attach(observer, "obs")
	s.Notify(sampleEvent{1})
	assert.Equal(t, 1, calls)
}

func TestSignal_DisposeDetaches(t *testing.T) {
	s := NewSignal[sampleEvent]()
	called := false
	d := s.Attach(func(e sampleEvent) error { called = true; return nil })
	d.Dispose()
	s.Notify(sampleEvent{1})
	assert.False(t, called)
}

func TestSignal_NotifyCollectsErrors(t *testing.T) {
	s := NewSignal[sampleEvent]()
	first := errors.New("first")
	second := errors.New("second")
	delivered := 0
	s.Attach(func(e sampleEvent) error { delivered++; return first }, "obs1")
	s.Attach(func(e sampleEvent) error { delivered++; return second }, "obs2")

	err := s.Notify(sampleEvent{1})

	assert.Equal(t, 2, delivered)
	assert.ErrorIs(t, err, first)
	assert.ErrorIs(t, err, second)
}
