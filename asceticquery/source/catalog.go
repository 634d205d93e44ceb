package source

import (
	"context"
	"sync"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/chunk"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/errs"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/option"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/plan"
)

// Catalog resolves sources by dataset name.
type Catalog struct {
	mu      sync.RWMutex
	sources map[string]plan.SourceExpression
}

func NewCatalog(sources ...plan.SourceExpression) *Catalog {
	c := &Catalog{sources: make(map[string]plan.SourceExpression, len(sources))}
	for _, s := range sources {
		c.Register(s)
	}
	return c
}

// Register makes s available under its ImplicatedDataset, replacing any
// previous source of that name.
func (c *Catalog) Register(s plan.SourceExpression) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources[s.ImplicatedDataset()] = s
}

func (c *Catalog) Lookup(dataset string) (plan.SourceExpression, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.sources[dataset]
	if !ok {
		return nil, &errs.DatasetNotFoundError{Dataset: dataset}
	}
	return s, nil
}

func (c *Catalog) Datasets() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.sources))
	for name := range c.sources {
		names = append(names, name)
	}
	return names
}

// Source returns a source resolved on every run, so a dataset registered
// after the query was built is still found.
func (c *Catalog) Source(dataset string) plan.SourceExpression {
	return catalogSource{catalog: c, dataset: dataset}
}

type catalogSource struct {
	catalog *Catalog
	dataset string
}

func (s catalogSource) Iterator(ctx context.Context) (chunk.Iterator[any], error) {
	resolved, err := s.catalog.Lookup(s.dataset)
	if err != nil {
		return nil, err
	}
	return resolved.Iterator(ctx)
}

func (s catalogSource) ImplicatedDataset() string {
	return s.dataset
}

func (s catalogSource) Optimize(p *plan.Plan, _ option.Option[*plan.HopPlan]) *plan.Plan {
	return plan.NewPlan(s, p.Derivations()...)
}
