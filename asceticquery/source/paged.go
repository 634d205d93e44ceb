package source

import (
	"context"

	"github.com/pkg/errors"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/chunk"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/deferred"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/option"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/plan"
)

// Fetcher starts loading one page, numbered from zero. An empty page ends the
// dataset.
type Fetcher func(ctx context.Context, page int) deferred.Deferred[[]any]

// Paged pulls pages on demand. Every page becomes one chunk, and no page is
// requested before the consumer asks for it.
type Paged struct {
	fetch    Fetcher
	settings settings
}

func NewPaged(fetch Fetcher, opts ...Option) *Paged {
	return &Paged{fetch: fetch, settings: newSettings("paged", opts)}
}

func (p *Paged) Iterator(ctx context.Context) (chunk.Iterator[any], error) {
	page := 0
	done := false
	return chunk.FromFunc(func(ctx context.Context) ([]any, bool, error) {
		if done {
			return nil, false, nil
		}
		items, err := deferred.Await(ctx, p.fetch(ctx, page))
		if err != nil {
			return nil, false, errors.Wrapf(err, "fetch page %d of %s", page, p.settings.dataset)
		}
		if len(items) == 0 {
			done = true
			return nil, false, nil
		}
		page++
		return items, true, nil
	}, func() error {
		done = true
		return nil
	}), nil
}

func (p *Paged) ImplicatedDataset() string {
	return p.settings.dataset
}

func (p *Paged) Optimize(pl *plan.Plan, _ option.Option[*plan.HopPlan]) *plan.Plan {
	return plan.NewPlan(p, pl.Derivations()...)
}
