package plan

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/chunk"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/deferred"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/errs"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/fieldpath"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/option"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/predicate"
)

type visit struct {
	Vet  string
	Cost int
}

type pet struct {
	Name   string
	Weight int
	Visits []visit
}

type owner struct {
	Name string
	Pets []pet
}

var owners = []any{
	owner{Name: "Brown", Pets: []pet{
		{Name: "Rex", Weight: 40, Visits: []visit{{"Smith", 100}, {"Jones", 300}, {"Lee", 50}}},
		{Name: "Tiny", Weight: 5, Visits: []visit{{"Smith", 999}}},
		{Name: "Max", Weight: 35, Visits: []visit{{"Lee", 200}}},
	}},
	owner{Name: "Billy", Pets: []pet{
		{Name: "Ally", Weight: 250, Visits: []visit{{"Smith", 1000}}},
	}},
	owner{Name: "Bob"},
}

type sliceSource struct {
	name  string
	items []any
	size  int
}

func (s sliceSource) Iterator(ctx context.Context) (chunk.Iterator[any], error) {
	return chunk.FromSlice(s.items, s.size), nil
}

func (s sliceSource) ImplicatedDataset() string {
	return s.name
}

func (s sliceSource) Optimize(p *Plan, _ option.Option[*HopPlan]) *Plan {
	return NewPlan(s, p.Derivations()...)
}

func farmers() sliceSource {
	return sliceSource{name: "farmers", items: owners, size: 2}
}

func path(dotted string) fieldpath.Path {
	return fieldpath.Parse(dotted)
}

// visitsOfHeavyPets is farmers(Brown) -> Pets(Weight > 30) -> Visits, most
// expensive two first.
func visitsOfHeavyPets() *HopPlan {
	p := NewPlan(farmers(), Filter(option.Some(path("Name")), predicate.Equals("Brown")))
	pets := NewHopPlan(p, FieldHop(path("Pets")), Filter(option.Some(path("Weight")), predicate.GreaterThan(30)))
	return NewHopPlan(pets, FieldHop(path("Visits")), OrderBy(path("Cost"), Desc), Take(2))
}

func drain(t *testing.T, p IPlan) []any {
	t.Helper()
	it, err := p.Iterator(context.Background())
	require.NoError(t, err)
	result, err := chunk.Drain(context.Background(), it)
	require.NoError(t, err)
	return result
}

func TestHopPlanOptimizeFoldsChainedHops(t *testing.T) {
	unoptimized := visitsOfHeavyPets()
	optimized := unoptimized.Optimize()

	assert.Equal(t, 3, Stages(unoptimized))
	assert.Equal(t, 2, Stages(optimized))

	folded, ok := optimized.(*HopPlan)
	require.True(t, ok)
	assert.Equal(t, "Pets", folded.Hop().Name())
	expected := []Expression{
		Filter(option.Some(path("Weight")), predicate.GreaterThan(30)),
		FieldHop(path("Visits")),
		OrderBy(path("Cost"), Desc),
		Take(2),
	}
	derivations := folded.Derivations()
	require.Len(t, derivations, len(expected))
	for i := range expected {
		assert.True(t, expected[i].Equal(derivations[i]), "derivation %d: %s", i, derivations[i])
	}
}

func TestHopPlanOptimizeFoldsLongChains(t *testing.T) {
	var p IPlan = NewPlan(farmers())
	for i := 0; i < 5; i++ {
		p = NewHopPlan(p, FieldHop(path("Pets")), Take(10))
	}
	require.Equal(t, 6, Stages(p))

	optimized := p.Optimize()
	assert.Equal(t, 2, Stages(optimized))
	assert.Len(t, optimized.Derivations(), 1+4*2)
}

func TestHopPlanOptimizeLeavesSingleHop(t *testing.T) {
	p := NewHopPlan(NewPlan(farmers()), FieldHop(path("Pets")), Take(1))
	optimized := p.Optimize()
	assert.NotSame(t, p, optimized)
	assert.Equal(t, p.Explain(), optimized.Explain())
}

func TestOptimizePreservesResults(t *testing.T) {
	unoptimized := visitsOfHeavyPets()
	expected := []any{visit{"Jones", 300}, visit{"Lee", 200}}
	assert.Equal(t, expected, drain(t, unoptimized))
	assert.Equal(t, expected, drain(t, unoptimized.Optimize()))
}

func TestOptimizeDoesNotMutateInput(t *testing.T) {
	p := visitsOfHeavyPets()
	before := p.Explain()
	_ = p.Optimize()
	assert.Equal(t, before, p.Explain())
}

func TestExplainGolden(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	p := visitsOfHeavyPets()
	g.Assert(t, "hop_chain", []byte(p.Explain()))
	g.Assert(t, "hop_chain_optimized", []byte(p.Optimize().Explain()))
}

func TestDiff(t *testing.T) {
	p := visitsOfHeavyPets()
	diff := Diff(p, p.Optimize())
	assert.Contains(t, diff, "-HopPlan(Visits)\n")
	assert.Contains(t, diff, "+  hop Visits\n")
	assert.Contains(t, diff, " HopPlan(Pets)\n")
	assert.Equal(t, 8, strings.Count(diff, "\n"))
}

func TestPlanWithDerivationIsImmutable(t *testing.T) {
	p := NewPlan(farmers())
	q := p.WithDerivation(Take(1))
	assert.Empty(t, p.Derivations())
	assert.Len(t, q.Derivations(), 1)

	h := NewHopPlan(p, FieldHop(path("Pets")))
	h2 := h.WithDerivation(Count())
	assert.Empty(t, h.Derivations())
	assert.Len(t, h2.Derivations(), 1)
}

func TestImplicatedDatasets(t *testing.T) {
	vets := FuncHop("vets", option.Some("vets"), func(any) ([]any, error) { return nil, nil })
	clinics := FuncHop("clinics", option.Some("clinics"), func(any) ([]any, error) { return nil, nil })
	p := NewHopPlan(NewHopPlan(NewPlan(farmers()), FieldHop(path("Pets"))), vets)
	p = NewHopPlan(p, clinics)

	expected := []string{"farmers", "vets", "clinics"}
	assert.Equal(t, expected, p.ImplicatedDatasets())
	assert.Equal(t, expected, p.Optimize().ImplicatedDatasets())
}

func TestPlanCount(t *testing.T) {
	p := NewHopPlan(NewPlan(farmers()), FieldHop(path("Pets")), Count())
	assert.Equal(t, []any{4}, drain(t, p))
}

func TestOrderByIncomparableValues(t *testing.T) {
	src := sliceSource{name: "mixed", items: []any{
		map[string]any{"v": 1},
		map[string]any{"v": "one"},
	}}
	it, err := NewPlan(src, OrderBy(path("v"), Asc)).Iterator(context.Background())
	require.NoError(t, err)
	_, err = chunk.Drain(context.Background(), it)
	var cmpErr *errs.ComparisonError
	assert.ErrorAs(t, err, &cmpErr)
}

func TestFilterAbsentIntermediate(t *testing.T) {
	p := NewPlan(farmers(), Filter(option.Some(path("Partner.Name")), predicate.Equals("Alice")))
	it, err := p.Iterator(context.Background())
	require.NoError(t, err)
	_, err = chunk.Drain(context.Background(), it)
	var accessErr *errs.FieldAccessError
	require.ErrorAs(t, err, &accessErr)
	assert.Equal(t, "Partner", accessErr.Segment)
}

func TestExpressionEqual(t *testing.T) {
	fn := func(v any) (any, error) { return v, nil }
	m := Map(fn)

	cases := []struct {
		name  string
		left  Expression
		right Expression
		equal bool
	}{
		{"take same", Take(2), Take(2), true},
		{"take other", Take(2), Take(3), false},
		{"take vs count", Take(1), Count(), false},
		{"count", Count(), Count(), true},
		{"orderBy same", OrderBy(path("a.b"), Asc), OrderBy(path("a.b"), Asc), true},
		{"orderBy direction", OrderBy(path("a"), Asc), OrderBy(path("a"), Desc), false},
		{"filter payload", Filter(option.Some(path("a")), predicate.Equals(1)), Filter(option.Some(path("a")), predicate.Equals(1)), true},
		{"filter operand", Filter(option.Some(path("a")), predicate.Equals(1)), Filter(option.Some(path("a")), predicate.Equals(2)), false},
		{"filter getter", Filter(option.Some(path("a")), predicate.Equals(1)), Filter(option.Nothing[fieldpath.Path](), predicate.Equals(1)), false},
		{"map identity", m, m, true},
		{"map same function", m, Map(fn), false},
		{"field hop", FieldHop(path("Pets")), FieldHop(path("Pets")), true},
		{"field hop path", FieldHop(path("Pets")), FieldHop(path("Visits")), false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.equal, c.left.Equal(c.right))
		})
	}
}

func TestExpressionString(t *testing.T) {
	assert.Equal(t, "take 3", Take(3).String())
	assert.Equal(t, "filter @ lambda", Filter(option.Nothing[fieldpath.Path](), predicate.Lambda(func(any) bool { return true })).String())
	assert.Equal(t, `filter name = "Brown"`, Filter(option.Some(path("name")), predicate.Equals("Brown")).String())
	assert.Equal(t, "orderBy weight desc", OrderBy(path("weight"), Desc).String())
	assert.Equal(t, "map", Map(func(v any) (any, error) { return v, nil }).String())
	assert.Equal(t, "count", Count().String())
	assert.Equal(t, "hop animals", FieldHop(path("animals")).String())
}

func TestFieldHopRelated(t *testing.T) {
	hop := FieldHop(path("animals"))

	related, err := hop.Related(map[string]any{"animals": []string{"pig", "cow"}})
	require.NoError(t, err)
	assert.Equal(t, []any{"pig", "cow"}, related)

	related, err = hop.Related(map[string]any{"name": "Bob"})
	require.NoError(t, err)
	assert.Empty(t, related)

	related, err = hop.Related(map[string]any{"animals": nil})
	require.NoError(t, err)
	assert.Empty(t, related)

	_, err = hop.Related(map[string]any{"animals": 3})
	var traversalErr *errs.TraversalError
	require.ErrorAs(t, err, &traversalErr)
	assert.Equal(t, "animals", traversalErr.Hop)
}

func TestFieldHopAbsentIntermediate(t *testing.T) {
	parent := map[string]any{"name": "Bob"}
	_, err := FieldHop(path("partner.animals")).Related(parent)

	var traversalErr *errs.TraversalError
	require.ErrorAs(t, err, &traversalErr)
	assert.Equal(t, parent, traversalErr.Parent)
	var accessErr *errs.FieldAccessError
	require.ErrorAs(t, err, &accessErr)
	assert.Equal(t, "partner", accessErr.Segment)
}

func TestFieldHopAbsentIntermediateSharingLastName(t *testing.T) {
	parent := map[string]any{"x": 1}
	related, err := FieldHop(path("a.a")).Related(parent)

	assert.Nil(t, related)
	var traversalErr *errs.TraversalError
	require.ErrorAs(t, err, &traversalErr)
	var accessErr *errs.FieldAccessError
	require.ErrorAs(t, err, &accessErr)
	assert.Equal(t, 0, accessErr.Index)
}

func TestFuncHopFailureAbortsDrain(t *testing.T) {
	boom := errors.New("boom")
	hop := FuncHop("broken", option.Nothing[string](), func(parent any) ([]any, error) {
		if parent.(owner).Name == "Billy" {
			return nil, boom
		}
		return []any{parent}, nil
	})
	it, err := NewHopPlan(NewPlan(farmers()), hop).Iterator(context.Background())
	require.NoError(t, err)

	result, err := chunk.Drain(context.Background(), it)
	assert.Nil(t, result)
	require.ErrorIs(t, err, boom)
	var traversalErr *errs.TraversalError
	require.ErrorAs(t, err, &traversalErr)
	assert.Equal(t, "Billy", traversalErr.Parent.(owner).Name)
}

func petNames(o owner) []any {
	names := make([]any, len(o.Pets))
	for i, p := range o.Pets {
		names[i] = p.Name
	}
	return names
}

func TestDeferredHopStartsChunkLookupsBeforeAwaiting(t *testing.T) {
	var pending []*deferred.DeferredImp[[]any]
	var started []owner
	hop := DeferredHop("pets", option.Some("pets"), func(ctx context.Context, parent any) deferred.Deferred[[]any] {
		d := &deferred.DeferredImp[[]any]{}
		pending = append(pending, d)
		started = append(started, parent.(owner))
		if len(pending) == len(owners) {
			// settle in reverse; output order must still follow parents
			go func() {
				for i := len(pending) - 1; i >= 0; i-- {
					pending[i].Resolve(petNames(started[i]))
				}
			}()
		}
		return d
	})

	src := sliceSource{name: "farmers", items: owners, size: 0}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	it, err := NewHopPlan(NewPlan(src), hop).Iterator(ctx)
	require.NoError(t, err)
	result, err := chunk.Drain(ctx, it)
	require.NoError(t, err)
	assert.Equal(t, []any{"Rex", "Tiny", "Max", "Ally"}, result)
}

func TestDeferredHopOrderAndFailure(t *testing.T) {
	boom := errors.New("lookup failed")
	hop := DeferredHop("pets", option.Nothing[string](), func(ctx context.Context, parent any) deferred.Deferred[[]any] {
		o := parent.(owner)
		if o.Name == "Bob" {
			return deferred.Rejected[[]any](boom)
		}
		return deferred.Resolved(petNames(o))
	})

	p := NewHopPlan(NewPlan(farmers()), hop, Take(4))
	assert.Equal(t, []any{"Rex", "Tiny", "Max", "Ally"}, drain(t, p))

	it, err := NewHopPlan(NewPlan(farmers()), hop).Iterator(context.Background())
	require.NoError(t, err)
	_, err = chunk.Drain(context.Background(), it)
	require.ErrorIs(t, err, boom)
	var traversalErr *errs.TraversalError
	require.ErrorAs(t, err, &traversalErr)
	assert.Equal(t, "pets", traversalErr.Hop)
}

func TestBatchHopCallsOncePerChunk(t *testing.T) {
	var calls [][]string
	hop := BatchHop("pets", option.Some("pets"), func(ctx context.Context, parents []any) ([][]any, error) {
		names := make([]string, len(parents))
		groups := make([][]any, len(parents))
		for i, p := range parents {
			names[i] = p.(owner).Name
			groups[i] = petNames(p.(owner))
		}
		calls = append(calls, names)
		return groups, nil
	})

	p := NewHopPlan(NewPlan(farmers()), hop, Filter(option.Nothing[fieldpath.Path](), predicate.NotEquals("Tiny")))
	assert.Equal(t, []any{"Rex", "Max", "Ally"}, drain(t, p))
	assert.Equal(t, [][]string{{"Brown", "Billy"}, {"Bob"}}, calls)
	assert.Equal(t, "hop pets", hop.String())
}

func TestBatchHopGroupMismatch(t *testing.T) {
	hop := BatchHop("pets", option.Nothing[string](), func(ctx context.Context, parents []any) ([][]any, error) {
		return [][]any{{"Rex"}}, nil
	})
	it, err := NewHopPlan(NewPlan(farmers()), hop).Iterator(context.Background())
	require.NoError(t, err)
	_, err = chunk.Drain(context.Background(), it)
	var traversalErr *errs.TraversalError
	require.ErrorAs(t, err, &traversalErr)
	assert.Len(t, traversalErr.Parent, 2)
	assert.Contains(t, err.Error(), "got 1 related collections for 2 parents")
}
