package query

import (
	"context"

	"github.com/hashicorp/go-multierror"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/chunk"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/disposable"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/plan"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/signals"
)

type EventKind string

const (
	PlanCompiled EventKind = "plan_compiled"
	ChunkPulled  EventKind = "chunk_pulled"
	DrainEnded   EventKind = "drain_ended"
	DrainFailed  EventKind = "drain_failed"
)

// Event describes one step of a run. Fields not relevant to Kind are zero.
type Event struct {
	Kind    EventKind
	RunID   ulid.ULID
	Explain string
	Size    int
	Total   int
	Err     error
}

type ExecutorOption func(*Executor)

func WithLogger(logger *zap.Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = logger
	}
}

func WithObserver(observer signals.Observer[Event]) ExecutorOption {
	return func(e *Executor) {
		e.Observe(observer)
	}
}

// Executor drains compiled plans. An observer error aborts the run it was
// raised in.
type Executor struct {
	logger *zap.Logger
	events *signals.SignalImp[Event]
}

func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{logger: zap.NewNop(), events: signals.NewSignal[Event]()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultExecutor = NewExecutor()

// Observe attaches observers until the returned Disposable is disposed.
// Each observer gets its own id, so method values of one type do not collapse
// into a single attachment.
func (e *Executor) Observe(observers ...signals.Observer[Event]) disposable.Disposable {
	detach := make([]disposable.Disposable, len(observers))
	for i, observer := range observers {
		detach[i] = e.events.Attach(observer, new(int))
	}
	return disposable.NewCompositeDisposable(detach...)
}

// Execute runs p as given; callers optimize beforehand.
func (e *Executor) Execute(ctx context.Context, p plan.IPlan) ([]any, error) {
	runID := ulid.Make()
	log := e.logger.With(zap.Stringer("run", runID))

	explain := p.Explain()
	log.Debug("plan compiled", zap.String("plan", explain), zap.Int("stages", plan.Stages(p)))
	if err := e.events.Notify(Event{Kind: PlanCompiled, RunID: runID, Explain: explain}); err != nil {
		return nil, err
	}

	result, err := e.drain(ctx, runID, log, p)
	if err != nil {
		log.Debug("drain failed", zap.Error(err))
		if notifyErr := e.events.Notify(Event{Kind: DrainFailed, RunID: runID, Err: err}); notifyErr != nil {
			err = multierror.Append(err, notifyErr)
		}
		return nil, err
	}

	log.Debug("drain ended", zap.Int("total", len(result)))
	if err := e.events.Notify(Event{Kind: DrainEnded, RunID: runID, Total: len(result)}); err != nil {
		return nil, err
	}
	return result, nil
}

func (e *Executor) drain(ctx context.Context, runID ulid.ULID, log *zap.Logger, p plan.IPlan) ([]any, error) {
	it, err := p.Iterator(ctx)
	if err != nil {
		return nil, err
	}
	it = chunk.Tap(it, func(c []any) error {
		log.Debug("chunk pulled", zap.Int("size", len(c)))
		return e.events.Notify(Event{Kind: ChunkPulled, RunID: runID, Size: len(c)})
	})
	return chunk.Drain(ctx, it)
}
