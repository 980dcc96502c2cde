package dag

import (
	"context"
	"fmt"

	"github.com/vk/fabr/internal/ctxlog"
	"github.com/vk/fabr/internal/model"
	"github.com/vk/fabr/internal/qname"
	"github.com/vk/fabr/internal/registry"
)

// Build constructs the validated dependency graph from a complete
// registry. It resolves every dependency reference, then runs cycle
// detection; any failure here aborts the session before a single build
// action runs.
func Build(ctx context.Context, reg *registry.Registry) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)
	graph := &Graph{nodes: make(map[qname.Name]*Node, reg.Len())}

	// First pass: one node per registered target.
	for i, t := range reg.Targets() {
		n := &Node{Target: t, seq: i}
		graph.nodes[t.Name] = n
		graph.order = append(graph.order, n)
	}
	logger.Debug("graph nodes created", "count", len(graph.order))

	// Second pass: resolve dependency references through the registry.
	for _, n := range graph.order {
		for _, depName := range n.Target.Dependencies {
			depTarget, err := reg.Lookup(depName)
			if err != nil {
				return nil, &registry.UnknownTargetError{Name: depName, WantedBy: n.Name()}
			}
			if depTarget.Kind != model.Library {
				return nil, &registry.InvalidRuleError{
					Name:   n.Name(),
					Reason: fmt.Sprintf("dependency %q is not a library", depName),
				}
			}
			dep := graph.nodes[depName]
			n.Deps = append(n.Deps, dep)
			dep.Dependents = append(dep.Dependents, n)
		}
	}
	logger.Debug("graph edges linked")

	if cycle := graph.findCycle(); cycle != nil {
		return nil, &CyclicDependencyError{Cycle: cycle}
	}

	graph.computePlan()
	logger.Debug("build plan computed", "targets", len(graph.plan))
	return graph, nil
}

// findCycle runs a depth-first traversal over dependency edges with an
// explicit in-progress stack. The first back-edge found yields the full
// cycle as an ordered qualified-name sequence.
func (g *Graph) findCycle() []qname.Name {
	const (
		unvisited = iota
		inProgress
		done
	)
	state := make(map[*Node]int, len(g.order))
	var stack []*Node

	var visit func(n *Node) []qname.Name
	visit = func(n *Node) []qname.Name {
		state[n] = inProgress
		stack = append(stack, n)

		for _, dep := range n.Deps {
			switch state[dep] {
			case inProgress:
				return cycleFromStack(stack, dep)
			case unvisited:
				if cycle := visit(dep); cycle != nil {
					return cycle
				}
			}
		}

		stack = stack[:len(stack)-1]
		state[n] = done
		return nil
	}

	for _, n := range g.order {
		if state[n] == unvisited {
			if cycle := visit(n); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// cycleFromStack slices the traversal stack from the first occurrence
// of the revisited node and closes the loop by repeating it at the end.
func cycleFromStack(stack []*Node, entry *Node) []qname.Name {
	start := 0
	for i, n := range stack {
		if n == entry {
			start = i
			break
		}
	}
	cycle := make([]qname.Name, 0, len(stack)-start+1)
	for _, n := range stack[start:] {
		cycle = append(cycle, n.Name())
	}
	cycle = append(cycle, entry.Name())
	if len(cycle) < 2 {
		panic(fmt.Sprintf("malformed cycle through %s", entry.Name()))
	}
	return cycle
}
