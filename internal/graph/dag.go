package graph

import (
	"fmt"
	"slices"
)

// dag is the index-ordered adjacency structure behind Graph. Node order is
// insertion order, which Build uses for declaration order.
type dag struct {
	order []string
	nodes map[string]*vertex
}

type vertex struct {
	id         string
	index      int
	deps       []*vertex
	dependents []*vertex
}

func newDAG() *dag {
	return &dag{nodes: make(map[string]*vertex)}
}

// addNode adds a node with the given ID. Adding an existing ID does nothing.
func (g *dag) addNode(id string) {
	if _, ok := g.nodes[id]; ok {
		return
	}
	g.nodes[id] = &vertex{id: id, index: len(g.order)}
	g.order = append(g.order, id)
}

// addEdge records that toID depends on fromID. Repeated edges are ignored.
func (g *dag) addEdge(fromID, toID string) error {
	if fromID == toID {
		return fmt.Errorf("self-referential edge not allowed: %s -> %s", fromID, fromID)
	}
	from, ok := g.nodes[fromID]
	if !ok {
		return fmt.Errorf("source node not found: %s", fromID)
	}
	to, ok := g.nodes[toID]
	if !ok {
		return fmt.Errorf("destination node not found: %s", toID)
	}
	if slices.Contains(to.deps, from) {
		return nil
	}
	to.deps = insertSorted(to.deps, from)
	from.dependents = insertSorted(from.dependents, to)
	return nil
}

func insertSorted(vs []*vertex, v *vertex) []*vertex {
	i, _ := slices.BinarySearchFunc(vs, v.index, func(e *vertex, idx int) int {
		return e.index - idx
	})
	return slices.Insert(vs, i, v)
}

// detectCycle runs a three-color DFS in declaration order and returns the
// IDs on the first cycle found, starting at the node the search re-entered.
func (g *dag) detectCycle() []string {
	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int, len(g.nodes))
	var stack []string

	var visit func(v *vertex) []string
	visit = func(v *vertex) []string {
		color[v.id] = gray
		stack = append(stack, v.id)
		for _, next := range v.dependents {
			switch color[next.id] {
			case gray:
				start := slices.Index(stack, next.id)
				return slices.Clone(stack[start:])
			case white:
				if cycle := visit(next); cycle != nil {
					return cycle
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[v.id] = black
		return nil
	}

	for _, id := range g.order {
		if color[id] == white {
			if cycle := visit(g.nodes[id]); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// topoOrder is Kahn's algorithm always taking the lowest declaration index
// among the nodes whose dependencies are satisfied.
func (g *dag) topoOrder() []string {
	indegree := make([]int, len(g.order))
	var ready []int
	for i, id := range g.order {
		indegree[i] = len(g.nodes[id].deps)
		if indegree[i] == 0 {
			ready = append(ready, i)
		}
	}

	out := make([]string, 0, len(g.order))
	for len(ready) > 0 {
		cur := ready[0]
		ready = ready[1:]
		v := g.nodes[g.order[cur]]
		out = append(out, v.id)
		for _, d := range v.dependents {
			indegree[d.index]--
			if indegree[d.index] == 0 {
				i, _ := slices.BinarySearch(ready, d.index)
				ready = slices.Insert(ready, i, d.index)
			}
		}
	}
	return out
}

// closure walks deps (up) or dependents (down) transitively from id and
// returns the reached IDs in declaration order, excluding id itself.
func (g *dag) closure(id string, up bool) []string {
	start, ok := g.nodes[id]
	if !ok {
		return nil
	}
	seen := make(map[int]bool)
	queue := []*vertex{start}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		next := v.dependents
		if up {
			next = v.deps
		}
		for _, n := range next {
			if !seen[n.index] {
				seen[n.index] = true
				queue = append(queue, n)
			}
		}
	}
	idx := make([]int, 0, len(seen))
	for i := range seen {
		idx = append(idx, i)
	}
	slices.Sort(idx)
	out := make([]string, len(idx))
	for i, n := range idx {
		out[i] = g.order[n]
	}
	return out
}

func ids(vs []*vertex) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.id
	}
	return out
}
