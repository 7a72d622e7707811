package pipeline

import (
	"github.com/specialistvlad/stepgrid/internal/graph"
	"github.com/specialistvlad/stepgrid/internal/step"
)

// Builder assembles a pipeline step by step.
//
//	p, err := pipeline.NewBuilder("etl").
//		AddStep("load", load, step.WithOutputs("x")).
//		AddStep("square", square, step.WithInputs("x"), step.WithOutputs("y")).
//		Build()
type Builder struct {
	name  string
	steps []*step.Step
	names map[string]bool
	err   error
}

// NewBuilder starts a pipeline called name.
func NewBuilder(name string) *Builder {
	return &Builder{name: name, names: make(map[string]bool)}
}

// AddStep constructs a step and adds it. The first error is kept and
// returned by Build; later calls are ignored.
func (b *Builder) AddStep(name string, fn step.Func, opts ...step.Option) *Builder {
	if b.err != nil {
		return b
	}
	s, err := step.New(name, fn, opts...)
	if err != nil {
		b.err = err
		return b
	}
	b.err = b.Add(s)
	return b
}

// Add adds an already constructed step. A nil step or a duplicate name fails
// immediately.
func (b *Builder) Add(s *step.Step) error {
	if s == nil {
		return ErrNilStep
	}
	if b.names[s.Name()] {
		return &graph.DuplicateStepError{Name: s.Name()}
	}
	b.names[s.Name()] = true
	b.steps = append(b.steps, s)
	return nil
}

// Err returns the first error recorded by AddStep.
func (b *Builder) Err() error { return b.err }

// Build returns the pipeline. Graph errors such as cycles surface when the
// pipeline runs or through Pipeline.Graph.
func (b *Builder) Build(opts ...Option) (*Pipeline, error) {
	if b.err != nil {
		return nil, b.err
	}
	return New(b.name, b.steps, opts...)
}
