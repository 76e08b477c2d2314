// Package graph orders flows by their depends_on relation.
package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/BDNK1/flowtest/runtime"
)

// Graph represents the depends_on relation between flows
type Graph struct {
	nodes map[string]*runtime.Flow

	// edges maps a flow to the flows it depends on
	edges map[string][]string

	// reverseEdges maps a flow to the flows that depend on it
	reverseEdges map[string][]string
}

// BuildGraph constructs the dependency graph of flows. Every depends_on must
// name a known flow and the graph must be acyclic.
func BuildGraph(flows []*runtime.Flow) (*Graph, error) {
	g := &Graph{
		nodes:        make(map[string]*runtime.Flow, len(flows)),
		edges:        make(map[string][]string, len(flows)),
		reverseEdges: make(map[string][]string, len(flows)),
	}

	for _, f := range flows {
		g.nodes[f.ID] = f
		g.edges[f.ID] = []string{}
		g.reverseEdges[f.ID] = []string{}
	}

	for _, id := range g.Nodes() {
		dep := g.nodes[id].DependsOn
		if dep == "" {
			continue
		}
		if _, exists := g.nodes[dep]; !exists {
			return nil, &GraphError{
				Type:    ErrorMissingDependency,
				FlowID:  id,
				Message: fmt.Sprintf("flow %s depends on %s, which is not defined", id, dep),
				Details: map[string]string{"dependency": dep},
			}
		}
		g.edges[id] = append(g.edges[id], dep)
		g.reverseEdges[dep] = append(g.reverseEdges[dep], id)
	}

	if cycle := g.findCycle(); cycle != nil {
		return nil, &GraphError{
			Type:    ErrorCircularDependency,
			FlowID:  cycle[0],
			Message: fmt.Sprintf("circular dependency detected: %s", strings.Join(cycle, " → ")),
			Details: map[string]string{"cycle": strings.Join(cycle, " → ")},
		}
	}

	return g, nil
}

// Levels groups flows so that every flow comes after all of its
// dependencies. Flows within a level are independent of each other and
// sorted by id. Uses Kahn's algorithm.
func (g *Graph) Levels() [][]string {
	inDegree := make(map[string]int, len(g.nodes))
	var current []string
	for _, node := range g.Nodes() {
		inDegree[node] = len(g.edges[node])
		if inDegree[node] == 0 {
			current = append(current, node)
		}
	}

	var levels [][]string
	for len(current) > 0 {
		levels = append(levels, current)
		var next []string
		for _, node := range current {
			for _, dependent := range g.reverseEdges[node] {
				inDegree[dependent]--
				if inDegree[dependent] == 0 {
					next = append(next, dependent)
				}
			}
		}
		sort.Strings(next)
		current = next
	}
	return levels
}

// TopologicalSort returns flow ids in dependency order (dependencies first)
func (g *Graph) TopologicalSort() []string {
	var out []string
	for _, level := range g.Levels() {
		out = append(out, level...)
	}
	return out
}

// Subgraph returns the graph restricted to ids and, transitively, everything
// they depend on.
func (g *Graph) Subgraph(ids []string) (*Graph, error) {
	keep := map[string]bool{}
	var visit func(id string) error
	visit = func(id string) error {
		if keep[id] {
			return nil
		}
		if _, ok := g.nodes[id]; !ok {
			return &GraphError{Type: ErrorInvalidGraph, FlowID: id, Message: fmt.Sprintf("flow %s is not defined", id)}
		}
		keep[id] = true
		for _, dep := range g.edges[id] {
			if err := visit(dep); err != nil {
				return err
			}
		}
		return nil
	}
	for _, id := range ids {
		if err := visit(id); err != nil {
			return nil, err
		}
	}

	flows := make([]*runtime.Flow, 0, len(keep))
	for id := range keep {
		flows = append(flows, g.nodes[id])
	}
	return BuildGraph(flows)
}

// findCycle returns a cycle in the graph, or nil if there is none.
// Uses DFS with recursion stack tracking
func (g *Graph) findCycle() []string {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)
	parent := make(map[string]string)

	var dfs func(node string) []string
	dfs = func(node string) []string {
		visited[node] = true
		recStack[node] = true

		for _, dep := range g.edges[node] {
			if !visited[dep] {
				parent[dep] = node
				if cycle := dfs(dep); cycle != nil {
					return cycle
				}
			} else if recStack[dep] {
				cycle := []string{dep}
				for current := node; current != dep; current = parent[current] {
					cycle = append([]string{current}, cycle...)
				}
				return append(cycle, dep)
			}
		}

		recStack[node] = false
		return nil
	}

	for _, node := range g.Nodes() {
		if !visited[node] {
			if cycle := dfs(node); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// GetDependencies returns the flows the given flow depends on
func (g *Graph) GetDependencies(id string) []string {
	return g.edges[id]
}

// GetDependents returns the flows that depend on the given flow
func (g *Graph) GetDependents(id string) []string {
	return g.reverseEdges[id]
}

// Nodes returns all flow ids in sorted order
func (g *Graph) Nodes() []string {
	nodes := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		nodes = append(nodes, id)
	}
	sort.Strings(nodes)
	return nodes
}

func (g *Graph) Flow(id string) *runtime.Flow {
	return g.nodes[id]
}

// GraphError represents errors that occur during graph operations
type GraphError struct {
	Type    ErrorType
	FlowID  string
	Message string
	Details map[string]string
}

func (e *GraphError) Error() string {
	return e.Message
}

// ErrorType represents different types of graph errors
type ErrorType int

const (
	ErrorMissingDependency ErrorType = iota
	ErrorCircularDependency
	ErrorInvalidGraph
)

func (t ErrorType) String() string {
	switch t {
	case ErrorMissingDependency:
		return "MissingDependency"
	case ErrorCircularDependency:
		return "CircularDependency"
	case ErrorInvalidGraph:
		return "InvalidGraph"
	default:
		return "Unknown"
	}
}
