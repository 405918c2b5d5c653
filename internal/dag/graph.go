package dag

import (
	"github.com/vk/pipegrid/internal/config"
)

// Graph is the dependency graph over a pipeline's stages. It is immutable
// once built; all queries are read-only and therefore safe for concurrent
// use without locking.
type Graph struct {
	names      []string
	index      map[string]int
	deps       [][]int // direct dependencies (upstream), per stage index
	dependents [][]int // direct dependents (downstream), per stage index
}

// Build constructs the graph from the pipeline's stages, in declaration
// order. It fails with *UnknownDependencyError when a depends entry names a
// stage that is not part of the pipeline. Cycle detection is a separate
// concern; see Validate.
func Build(stages []*config.Stage) (*Graph, error) {
	g := &Graph{
		names:      make([]string, len(stages)),
		index:      make(map[string]int, len(stages)),
		deps:       make([][]int, len(stages)),
		dependents: make([][]int, len(stages)),
	}
	for i, s := range stages {
		g.names[i] = s.Name
		g.index[s.Name] = i
	}
	for i, s := range stages {
		for _, dep := range s.DependsOn {
			j, ok := g.index[dep]
			if !ok {
				return nil, &UnknownDependencyError{Stage: s.Name, Dependency: dep}
			}
			g.deps[i] = append(g.deps[i], j)
			g.dependents[j] = append(g.dependents[j], i)
		}
	}
	return g, nil
}

// Validate checks that the graph is acyclic using a depth-first search with
// the classic three-color marking. A self-dependency counts as a cycle of
// length one. The returned *CyclicDependencyError names a stage on the
// cycle.
func (g *Graph) Validate() error {
	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	state := make([]int, len(g.names))

	var visit func(i int) error
	visit = func(i int) error {
		switch state[i] {
		case done:
			return nil
		case inStack:
			return &CyclicDependencyError{Stage: g.names[i]}
		}
		state[i] = inStack
		for _, j := range g.dependents[i] {
			if err := visit(j); err != nil {
				return err
			}
		}
		state[i] = done
		return nil
	}

	for i := range g.names {
		if state[i] == unvisited {
			if err := visit(i); err != nil {
				return err
			}
		}
	}
	return nil
}

// TopoOrder returns a topological ordering of all stages. Among stages that
// are ready at the same time, the earliest-declared one comes first, so the
// order is stable across runs of the same definition. The graph must have
// passed Validate.
func (g *Graph) TopoOrder() []string {
	n := len(g.names)
	indegree := make([]int, n)
	for i := range g.deps {
		indegree[i] = len(g.deps[i])
	}

	emitted := make([]bool, n)
	order := make([]string, 0, n)
	// Pipelines are small (tens of stages), so a linear scan per emission
	// beats the bookkeeping of a priority queue.
	for len(order) < n {
		next := -1
		for i := 0; i < n; i++ {
			if !emitted[i] && indegree[i] == 0 {
				next = i
				break
			}
		}
		if next == -1 {
			// Unreachable on a validated graph.
			break
		}
		emitted[next] = true
		order = append(order, g.names[next])
		for _, j := range g.dependents[next] {
			indegree[j]--
		}
	}
	return order
}

// Len returns the number of stages in the graph.
func (g *Graph) Len() int { return len(g.names) }

// Names returns all stage names in declaration order.
func (g *Graph) Names() []string {
	out := make([]string, len(g.names))
	copy(out, g.names)
	return out
}

// Contains reports whether the graph holds a stage with the given name.
func (g *Graph) Contains(name string) bool {
	_, ok := g.index[name]
	return ok
}

// Dependencies returns the direct upstream dependencies of a stage, in
// declaration order. Unknown names yield an empty slice.
func (g *Graph) Dependencies(name string) []string {
	return g.collect(name, g.deps, false)
}

// Dependents returns the direct downstream dependents of a stage.
func (g *Graph) Dependents(name string) []string {
	return g.collect(name, g.dependents, false)
}

// TransitiveDependencies returns every stage reachable by following
// dependency edges backward from the given stage, excluding the stage
// itself. This is the set a single-stage run selection must include.
func (g *Graph) TransitiveDependencies(name string) []string {
	return g.collect(name, g.deps, true)
}

// TransitiveDependents returns every stage reachable by following
// dependency edges forward from the given stage, excluding the stage
// itself. When a stage fails, this is the set to mark skipped.
func (g *Graph) TransitiveDependents(name string) []string {
	return g.collect(name, g.dependents, true)
}

// collect gathers direct or transitive neighbors along adj, returning names
// in declaration order.
func (g *Graph) collect(name string, adj [][]int, transitive bool) []string {
	start, ok := g.index[name]
	if !ok {
		return nil
	}
	seen := make([]bool, len(g.names))
	queue := append([]int(nil), adj[start]...)
	for _, i := range queue {
		seen[i] = true
	}
	if transitive {
		for len(queue) > 0 {
			i := queue[0]
			queue = queue[1:]
			for _, j := range adj[i] {
				if !seen[j] {
					seen[j] = true
					queue = append(queue, j)
				}
			}
		}
	}
	var out []string
	for i, s := range seen {
		if s {
			out = append(out, g.names[i])
		}
	}
	return out
}
