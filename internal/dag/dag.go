package dag

import (
	"github.com/vk/fabr/internal/model"
	"github.com/vk/fabr/internal/qname"
)

// Node is one target inside the dependency graph.
type Node struct {
	Target *model.Target
	// Deps are the resolved direct dependencies, in declaration order.
	Deps []*Node
	// Dependents are the nodes that depend on this one, in the order
	// they were registered.
	Dependents []*Node

	// seq is the registration sequence number, the tie-breaker for the
	// execution plan.
	seq int
	// planIndex is the node's position in the computed plan.
	planIndex int
}

// Name returns the node's qualified name.
func (n *Node) Name() qname.Name {
	return n.Target.Name
}

// PlanIndex returns the node's position in the session's build plan.
func (n *Node) PlanIndex() int {
	return n.planIndex
}

// Graph is the immutable dependency graph of one build session. Edges
// point from a target to each of its dependencies.
type Graph struct {
	nodes map[qname.Name]*Node
	order []*Node
	plan  []*Node
}

// Node returns the graph node for the given name, or nil.
func (g *Graph) Node(name qname.Name) *Node {
	return g.nodes[name]
}

// Nodes returns all nodes in declaration order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, len(g.order))
	copy(out, g.order)
	return out
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.order)
}

// Plan returns the session's build plan: a topological ordering in
// which every target's dependencies precede it, ties broken by
// declaration order.
func (g *Graph) Plan() []*Node {
	out := make([]*Node, len(g.plan))
	copy(out, g.plan)
	return out
}

// TransitiveDeps returns the full dependency closure of the node, in
// plan order (dependencies before dependents). The node itself is not
// included.
func (g *Graph) TransitiveDeps(n *Node) []*Node {
	seen := make(map[*Node]bool)
	var walk func(*Node)
	walk = func(cur *Node) {
		for _, dep := range cur.Deps {
			if !seen[dep] {
				seen[dep] = true
				walk(dep)
			}
		}
	}
	walk(n)

	out := make([]*Node, 0, len(seen))
	for _, candidate := range g.plan {
		if seen[candidate] {
			out = append(out, candidate)
		}
	}
	return out
}

// computePlan runs Kahn's algorithm over an already acyclic graph.
// Among simultaneously ready nodes the lowest registration sequence
// wins, making the plan deterministic.
func (g *Graph) computePlan() {
	pending := make(map[*Node]int, len(g.order))
	var ready []*Node
	for _, n := range g.order {
		pending[n] = len(n.Deps)
		if len(n.Deps) == 0 {
			ready = append(ready, n)
		}
	}

	g.plan = make([]*Node, 0, len(g.order))
	for len(ready) > 0 {
		best := 0
		for i, n := range ready {
			if n.seq < ready[best].seq {
				best = i
			}
		}
		n := ready[best]
		ready = append(ready[:best], ready[best+1:]...)

		n.planIndex = len(g.plan)
		g.plan = append(g.plan, n)

		for _, dependent := range n.Dependents {
			pending[dependent]--
			if pending[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}
}
