package plan

import (
	"context"
	"slices"
	"strings"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/chunk"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/option"
)

// SourceExpression is the origin of data. Implementations live outside the
// core, see the source package.
type SourceExpression interface {
	Iterator(ctx context.Context) (chunk.Iterator[any], error)
	// ImplicatedDataset is an opaque name of the logical dataset.
	ImplicatedDataset() string
	// Optimize may absorb derivations of plan, or nextHop, into the source.
	Optimize(plan *Plan, nextHop option.Option[*HopPlan]) *Plan
}

// IPlan is a compiled group of operations. A plan is built per execution and
// never mutated; WithDerivation returns a new plan.
type IPlan interface {
	Iterator(ctx context.Context) (chunk.Iterator[any], error)
	Optimize() IPlan
	Derivations() []Expression
	WithDerivation(Expression) IPlan
	ImplicatedDatasets() []string
	Explain() string
}

func chainDerivations(it chunk.Iterator[any], derivations []Expression) chunk.Iterator[any] {
	for _, d := range derivations {
		it = d.ChainAfter(it)
	}
	return it
}

func explainDerivations(b *strings.Builder, derivations []Expression) {
	for _, d := range derivations {
		b.WriteString("  ")
		b.WriteString(d.String())
		b.WriteString("\n")
	}
}

// Plan binds derivations to a source. Derivation order is execution order.
type Plan struct {
	source      SourceExpression
	derivations []Expression
}

func NewPlan(source SourceExpression, derivations ...Expression) *Plan {
	return &Plan{source: source, derivations: slices.Clone(derivations)}
}

func (p *Plan) Source() SourceExpression {
	return p.source
}

func (p *Plan) Derivations() []Expression {
	return slices.Clone(p.derivations)
}

func (p *Plan) WithDerivation(e Expression) IPlan {
	return NewPlan(p.source, append(p.Derivations(), e)...)
}

// Optimize lets the source rewrite the plan. Sources shipped with this module
// return an equivalent copy; operator fusion would hook in here.
func (p *Plan) Optimize() IPlan {
	return p.source.Optimize(p, option.Nothing[*HopPlan]())
}

func (p *Plan) Iterator(ctx context.Context) (chunk.Iterator[any], error) {
	it, err := p.source.Iterator(ctx)
	if err != nil {
		return nil, err
	}
	return chainDerivations(it, p.derivations), nil
}

func (p *Plan) ImplicatedDatasets() []string {
	return []string{p.source.ImplicatedDataset()}
}

func (p *Plan) Explain() string {
	var b strings.Builder
	b.WriteString("Plan(" + p.source.ImplicatedDataset() + ")\n")
	explainDerivations(&b, p.derivations)
	return b.String()
}

// HopPlan continues a prior plan across a hop; the hop boundary is the only
// place where cardinality becomes one-to-many.
type HopPlan struct {
	prior       IPlan
	hop         HopExpression
	derivations []Expression
}

func NewHopPlan(prior IPlan, hop HopExpression, derivations ...Expression) *HopPlan {
	return &HopPlan{prior: prior, hop: hop, derivations: slices.Clone(derivations)}
}

func (p *HopPlan) Prior() IPlan {
	return p.prior
}

func (p *HopPlan) Hop() HopExpression {
	return p.hop
}

func (p *HopPlan) Derivations() []Expression {
	return slices.Clone(p.derivations)
}

func (p *HopPlan) WithDerivation(e Expression) IPlan {
	return NewHopPlan(p.prior, p.hop, append(p.Derivations(), e)...)
}

// Optimize works from the innermost hop outwards: once the prior is
// optimized, a prior HopPlan absorbs this one, so directly chained hops end
// up as a single HopPlan with one combined derivation list.
func (p *HopPlan) Optimize() IPlan {
	prior := p.prior.Optimize()
	if priorHop, ok := prior.(*HopPlan); ok {
		return priorHop.hop.Optimize(priorHop.prior, priorHop, option.Some(p))
	}
	return p.hop.Optimize(prior, p, option.Nothing[*HopPlan]())
}

func (p *HopPlan) Iterator(ctx context.Context) (chunk.Iterator[any], error) {
	it, err := p.prior.Iterator(ctx)
	if err != nil {
		return nil, err
	}
	return chainDerivations(p.hop.ChainAfter(it), p.derivations), nil
}

func (p *HopPlan) ImplicatedDatasets() []string {
	datasets := p.prior.ImplicatedDatasets()
	if dataset, ok := p.hop.ImplicatedDataset().Get(); ok && !slices.Contains(datasets, dataset) {
		datasets = append(datasets, dataset)
	}
	for _, d := range p.derivations {
		if hop, ok := d.(HopExpression); ok {
			if dataset, ok := hop.ImplicatedDataset().Get(); ok && !slices.Contains(datasets, dataset) {
				datasets = append(datasets, dataset)
			}
		}
	}
	return datasets
}

func (p *HopPlan) Explain() string {
	var b strings.Builder
	b.WriteString(p.prior.Explain())
	b.WriteString("HopPlan(" + p.hop.Name() + ")\n")
	explainDerivations(&b, p.derivations)
	return b.String()
}

// Stages counts execution boundaries: one per Plan or HopPlan in the chain.
func Stages(p IPlan) int {
	if hop, ok := p.(*HopPlan); ok {
		return 1 + Stages(hop.prior)
	}
	return 1
}
