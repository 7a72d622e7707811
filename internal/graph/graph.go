package graph

import (
	"context"
	"fmt"
	"slices"

	"github.com/specialistvlad/stepgrid/internal/ctxlog"
	"github.com/specialistvlad/stepgrid/internal/step"
)

// Graph is the immutable dependency graph of a set of steps.
type Graph struct {
	steps     []*step.Step
	index     map[string]int
	producers map[string]string
	consumers map[string][]string
	external  []string
	order     []*step.Step
	dag       *dag
}

// Build indexes producers and consumers, derives the edges and validates
// that the result is a DAG.
func Build(ctx context.Context, steps []*step.Step) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Build: Starting graph construction.", "steps", len(steps))

	g := &Graph{
		steps:     slices.Clone(steps),
		index:     make(map[string]int, len(steps)),
		producers: make(map[string]string),
		consumers: make(map[string][]string),
		dag:       newDAG(),
	}

	for i, s := range g.steps {
		if s == nil {
			return nil, fmt.Errorf("step at position %d is nil", i)
		}
		if _, exists := g.index[s.Name()]; exists {
			return nil, &DuplicateStepError{Name: s.Name()}
		}
		g.index[s.Name()] = i
		g.dag.addNode(s.Name())

		for _, out := range s.Outputs() {
			if other, exists := g.producers[out]; exists {
				return nil, &DuplicateProducerError{Asset: out, Producers: []string{other, s.Name()}}
			}
			g.producers[out] = s.Name()
		}
	}
	logger.Debug("Build: Indexed producers.", "assets", len(g.producers))

	seenExternal := make(map[string]bool)
	for _, s := range g.steps {
		for _, in := range s.Inputs() {
			g.consumers[in] = append(g.consumers[in], s.Name())
			producer, ok := g.producers[in]
			if !ok {
				if !seenExternal[in] {
					seenExternal[in] = true
					g.external = append(g.external, in)
				}
				continue
			}
			if err := g.dag.addEdge(producer, s.Name()); err != nil {
				return nil, err
			}
		}
	}
	logger.Debug("Build: Linked consumers.", "external_inputs", len(g.external))

	if cycle := g.dag.detectCycle(); cycle != nil {
		logger.Debug("Build: Cycle detected.", "cycle", cycle)
		return nil, &CyclicGraphError{Cycle: cycle}
	}

	for _, name := range g.dag.topoOrder() {
		g.order = append(g.order, g.steps[g.index[name]])
	}

	logger.Debug("Build: Graph construction complete.")
	return g, nil
}

// Len returns the number of steps.
func (g *Graph) Len() int { return len(g.steps) }

// Steps returns the steps in declaration order.
func (g *Graph) Steps() []*step.Step { return slices.Clone(g.steps) }

// Step returns the step with the given name.
func (g *Graph) Step(name string) (*step.Step, bool) {
	i, ok := g.index[name]
	if !ok {
		return nil, false
	}
	return g.steps[i], true
}

// TopologicalOrder returns every step after all of its producers. Among
// steps that are free to go next, the one declared first wins.
func (g *Graph) TopologicalOrder() []*step.Step {
	return slices.Clone(g.order)
}

// ReadySet returns the steps not yet in completed whose producers are all in
// completed, in declaration order.
func (g *Graph) ReadySet(completed map[string]bool) []*step.Step {
	var ready []*step.Step
	for _, s := range g.steps {
		if completed[s.Name()] {
			continue
		}
		ok := true
		for _, dep := range g.dag.nodes[s.Name()].deps {
			if !completed[dep.id] {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, s)
		}
	}
	return ready
}

// Dependencies returns the direct producers name consumes from.
func (g *Graph) Dependencies(name string) []string {
	v, ok := g.dag.nodes[name]
	if !ok {
		return nil
	}
	return ids(v.deps)
}

// Dependents returns the direct consumers of name's outputs.
func (g *Graph) Dependents(name string) []string {
	v, ok := g.dag.nodes[name]
	if !ok {
		return nil
	}
	return ids(v.dependents)
}

// Ancestors returns every step name transitively depends on.
func (g *Graph) Ancestors(name string) []string {
	return g.dag.closure(name, true)
}

// Descendants returns every step that transitively depends on name.
func (g *Graph) Descendants(name string) []string {
	return g.dag.closure(name, false)
}

// Producer returns the step producing asset.
func (g *Graph) Producer(asset string) (string, bool) {
	p, ok := g.producers[asset]
	return p, ok
}

// Consumers returns the steps consuming asset, in declaration order.
func (g *Graph) Consumers(asset string) []string {
	return slices.Clone(g.consumers[asset])
}

// ExternalInputs returns the inputs no step produces, in the order they were
// first consumed.
func (g *Graph) ExternalInputs() []string {
	return slices.Clone(g.external)
}

// IsExternal reports whether asset has to come from the parameter context.
func (g *Graph) IsExternal(asset string) bool {
	_, produced := g.producers[asset]
	return !produced
}

// Roots returns the steps without producers, in declaration order.
func (g *Graph) Roots() []*step.Step {
	return g.ReadySet(nil)
}
