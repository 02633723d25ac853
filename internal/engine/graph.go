package engine

import (
	"github.com/stackpilot-io/stackpilot/internal/ir"
)

// Graph is the directed acyclic dependency graph over resource specs.
type Graph struct {
	nodes    map[string]*graphNode
	names    []string // input order, for deterministic tie-breaking
	order    []string // topological order (creation order)
	revOrder []string // reverse topological order (deletion order)
}

type graphNode struct {
	spec     *ir.ResourceSpec
	edges    []string // resources this node depends on
	revEdges []string // resources that depend on this node
}

// BuildGraph constructs the dependency graph from desired specs. Every
// dependency name must resolve to a defined spec and the result must be
// acyclic; violations abort before any provider call. Ordering ties among
// independent resources follow input order so plans are reproducible.
func BuildGraph(specs []*ir.ResourceSpec) (*Graph, error) {
	g := &Graph{
		nodes: make(map[string]*graphNode, len(specs)),
	}

	for _, spec := range specs {
		g.nodes[spec.Name] = &graphNode{spec: spec}
		g.names = append(g.names, spec.Name)
	}

	for _, spec := range specs {
		node := g.nodes[spec.Name]
		for _, dep := range spec.DependsOn {
			if _, ok := g.nodes[dep]; !ok {
				return nil, &DependencyError{Resource: spec.Name, Missing: dep}
			}
			node.edges = append(node.edges, dep)
			g.nodes[dep].revEdges = append(g.nodes[dep].revEdges, spec.Name)
		}
	}

	order, err := g.topoSort()
	if err != nil {
		return nil, err
	}
	g.order = order

	g.revOrder = make([]string, len(order))
	for i, name := range order {
		g.revOrder[len(order)-1-i] = name
	}

	return g, nil
}

// CreationOrder returns logical names in dependency-respecting creation order.
func (g *Graph) CreationOrder() []string {
	return g.order
}

// DeletionOrder returns logical names in reverse dependency order, safe for
// teardown (dependents before their dependencies).
func (g *Graph) DeletionOrder() []string {
	return g.revOrder
}

// Spec returns the spec for a logical name, or nil if unknown.
func (g *Graph) Spec(name string) *ir.ResourceSpec {
	if node, ok := g.nodes[name]; ok {
		return node.spec
	}
	return nil
}

// Dependencies returns the direct dependencies of a logical name.
func (g *Graph) Dependencies(name string) []string {
	if node, ok := g.nodes[name]; ok {
		return node.edges
	}
	return nil
}

// Dependents returns the resources that directly depend on a logical name.
func (g *Graph) Dependents(name string) []string {
	if node, ok := g.nodes[name]; ok {
		return node.revEdges
	}
	return nil
}

// TransitiveDependents returns every resource that directly or transitively
// depends on name.
func (g *Graph) TransitiveDependents(name string) []string {
	seen := make(map[string]bool)
	var out []string
	var walk func(string)
	walk = func(n string) {
		for _, dep := range g.Dependents(n) {
			if !seen[dep] {
				seen[dep] = true
				out = append(out, dep)
				walk(dep)
			}
		}
	}
	walk(name)
	return out
}

// topoSort performs Kahn's algorithm. The ready queue is seeded and consumed
// in input order so independent resources keep a stable relative order.
func (g *Graph) topoSort() ([]string, error) {
	inDegree := make(map[string]int, len(g.nodes))
	for _, name := range g.names {
		inDegree[name] = len(g.nodes[name].edges)
	}

	var queue []string
	for _, name := range g.names {
		if inDegree[name] == 0 {
			queue = append(queue, name)
		}
	}

	sorted := make([]string, 0, len(g.nodes))
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		sorted = append(sorted, name)

		for _, dependent := range g.nodes[name].revEdges {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(sorted) != len(g.nodes) {
		return nil, &CycleError{Path: g.findCycle(inDegree)}
	}

	return sorted, nil
}

// findCycle walks the unsorted remainder left by Kahn's algorithm to name
// the resources on one cycle, for the error message.
func (g *Graph) findCycle(inDegree map[string]int) []string {
	// Any node with remaining in-degree sits on or downstream of a cycle;
	// following dependency edges from it must eventually loop.
	var start string
	for _, name := range g.names {
		if inDegree[name] > 0 {
			start = name
			break
		}
	}

	visited := make(map[string]int) // name -> position in path
	var path []string
	current := start
	for {
		if pos, seen := visited[current]; seen {
			cycle := append([]string{}, path[pos:]...)
			return append(cycle, current)
		}
		visited[current] = len(path)
		path = append(path, current)

		next := ""
		for _, dep := range g.nodes[current].edges {
			if inDegree[dep] > 0 {
				next = dep
				break
			}
		}
		if next == "" {
			// Shouldn't happen: a stuck node always has a stuck dependency.
			return path
		}
		current = next
	}
}
