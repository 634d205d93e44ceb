package query

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/errs"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/fieldpath"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/predicate"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/utils/testutils"
)

type recorder struct {
	events []Event
}

func (r *recorder) observe(e Event) error {
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) kinds() []EventKind {
	kinds := make([]EventKind, len(r.events))
	for i, e := range r.events {
		kinds[i] = e.Kind
	}
	return kinds
}

func TestExecutorEvents(t *testing.T) {
	r := &recorder{}
	exec := NewExecutor(WithObserver(r.observe))
	q := animalsOf(Querify(testutils.Farmers(), WithChunkSize(1), WithExecutor(exec)))

	result, err := q.Gen(context.Background())
	require.NoError(t, err)
	require.Len(t, result, 4)

	assert.Equal(t, []EventKind{PlanCompiled, ChunkPulled, ChunkPulled, DrainEnded}, r.kinds())
	assert.Contains(t, r.events[0].Explain, "HopPlan(animals)")
	assert.Equal(t, 3, r.events[1].Size)
	assert.Equal(t, 1, r.events[2].Size)
	assert.Equal(t, 4, r.events[3].Total)
	for _, e := range r.events {
		assert.Equal(t, r.events[0].RunID, e.RunID)
	}

	_, err = q.Gen(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, r.events[0].RunID, r.events[len(r.events)-1].RunID)
}

func TestExecutorDrainFailedEvent(t *testing.T) {
	r := &recorder{}
	exec := NewExecutor()
	detach := exec.Observe(r.observe)
	q := Querify(testutils.Farmers(), WithExecutor(exec)).Where(fieldpath.New("nickname"), predicate.IsNull())

	_, err := q.Gen(context.Background())
	require.Error(t, err)
	require.Equal(t, []EventKind{PlanCompiled, DrainFailed}, r.kinds())
	var accessErr *errs.FieldAccessError
	assert.ErrorAs(t, r.events[1].Err, &accessErr)

	detach.Dispose()
	_, _ = q.Gen(context.Background())
	assert.Len(t, r.events, 2)
}

func TestExecutorObserveMany(t *testing.T) {
	first, second := &recorder{}, &recorder{}
	exec := NewExecutor()
	detach := exec.Observe(first.observe, second.observe)
	q := Querify(testutils.Farmers(), WithExecutor(exec))

	_, err := q.Gen(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.kinds(), second.kinds())
	assert.NotEmpty(t, first.events)

	detach.Dispose()
	seen := len(first.events)
	_, err = q.Gen(context.Background())
	require.NoError(t, err)
	assert.Len(t, first.events, seen)
	assert.Len(t, second.events, seen)
}

func TestExecutorObserverErrorAbortsRun(t *testing.T) {
	veto := errors.New("veto")
	exec := NewExecutor(WithObserver(func(e Event) error {
		if e.Kind == ChunkPulled {
			return veto
		}
		return nil
	}))
	result, err := Querify(testutils.Farmers(), WithExecutor(exec)).Gen(context.Background())
	assert.Nil(t, result)
	require.ErrorIs(t, err, veto)
}

func TestExecutorLogs(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	exec := NewExecutor(WithLogger(zap.New(core)))

	_, err := Count[testutils.Farmer](Querify(testutils.Farmers(), WithExecutor(exec))).Gen(context.Background())
	require.NoError(t, err)

	messages := make([]string, 0, logs.Len())
	for _, entry := range logs.All() {
		messages = append(messages, entry.Message)
		assert.Contains(t, entry.ContextMap(), "run")
	}
	assert.Equal(t, []string{"plan compiled", "chunk pulled", "drain ended"}, messages)
	assert.Equal(t, int64(1), logs.FilterMessage("drain ended").All()[0].ContextMap()["total"])
}
