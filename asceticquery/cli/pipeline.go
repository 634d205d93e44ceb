package cli

import (
	"strings"
)

// Pipeline collects steps from several flags in the order they appear on the
// command line.
type Pipeline struct {
	steps []Step
	raw   []string
}

func (p *Pipeline) Steps() []Step {
	return append([]Step(nil), p.steps...)
}

func (p *Pipeline) Add(kind StepKind, raw string) error {
	step, err := ParseStep(kind, raw)
	if err != nil {
		return err
	}
	p.steps = append(p.steps, step)
	p.raw = append(p.raw, string(kind)+" "+raw)
	return nil
}

// Flag returns a flag value feeding kind steps into p. It satisfies
// pflag.Value.
func (p *Pipeline) Flag(kind StepKind) *StepFlag {
	return &StepFlag{pipeline: p, kind: kind}
}

func (p *Pipeline) String() string {
	return strings.Join(p.raw, " | ")
}

type StepFlag struct {
	pipeline *Pipeline
	kind     StepKind
}

func (f *StepFlag) String() string {
	return ""
}

func (f *StepFlag) Set(raw string) error {
	return f.pipeline.Add(f.kind, raw)
}

func (f *StepFlag) Type() string {
	switch f.kind {
	case Take:
		return "int"
	case Count:
		return "bool"
	}
	return "string"
}
