package workflow

import (
	"fmt"

	"github.com/vietddude/triage/internal/core/domain"
)

// End is the terminal pseudo-node. An edge pointing at End finishes the
// workflow.
const End = "end"

// Predicate evaluates a conditional edge against the current record.
type Predicate func(domain.Record) bool

// Edge is one outgoing transition of a node. A nil When matches always.
// An edge whose target equals its source is a loop edge: instead of
// re-executing immediately, the engine suspends the workflow and schedules a
// re-entry through the delay queue.
type Edge struct {
	To     string
	When   Predicate
	Reason string // audit label explaining why this edge was taken
}

// Graph is the directed graph of steps with conditional edges. Edges of a
// node are evaluated in insertion order; the first match wins, so the last
// edge of a node usually carries a nil predicate as the default route.
type Graph struct {
	start string
	steps map[string]Step
	edges map[string][]Edge
}

// NewGraph creates a graph that starts at the named node.
func NewGraph(start string) *Graph {
	return &Graph{
		start: start,
		steps: make(map[string]Step),
		edges: make(map[string][]Edge),
	}
}

// Start returns the entry node name.
func (g *Graph) Start() string { return g.start }

// AddStep registers a step under its own name.
func (g *Graph) AddStep(s Step) {
	g.steps[s.Name()] = s
}

// AddEdge appends an outgoing edge to a node.
func (g *Graph) AddEdge(from string, e Edge) {
	g.edges[from] = append(g.edges[from], e)
}

// Step looks up a registered step.
func (g *Graph) Step(name string) (Step, bool) {
	s, ok := g.steps[name]
	return s, ok
}

// Next evaluates the outgoing edges of a node against the record and returns
// the first matching edge. No match means the workflow ends.
func (g *Graph) Next(from string, rec domain.Record) (Edge, bool) {
	for _, e := range g.edges[from] {
		if e.When == nil || e.When(rec) {
			return e, true
		}
	}
	return Edge{}, false
}

// Validate checks that the start node and every edge target exist and that
// the only cycles are single-node loop edges.
func (g *Graph) Validate() error {
	if _, ok := g.steps[g.start]; !ok {
		return fmt.Errorf("start node %q not registered", g.start)
	}
	for from, edges := range g.edges {
		if _, ok := g.steps[from]; !ok {
			return fmt.Errorf("edges defined for unregistered node %q", from)
		}
		for _, e := range edges {
			if e.To == End || e.To == from {
				continue
			}
			if _, ok := g.steps[e.To]; !ok {
				return fmt.Errorf("edge %s -> %s targets unregistered node", from, e.To)
			}
		}
	}
	return nil
}
