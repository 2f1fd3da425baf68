package graph

// Component is a maximal set of mutually reachable nodes, in discovery order.
type Component []string

// Components partitions the graph into connected components. Nodes are
// visited in insertion order and each component lists its members in
// depth-first preorder. The traversal keeps an explicit stack, so depth is
// bounded by memory rather than by the goroutine stack.
func (g *Graph) Components() []Component {
	visited := make(map[string]bool, len(g.nodes))
	var comps []Component

	for _, start := range g.nodes {
		if visited[start] {
			continue
		}
		comps = append(comps, g.explore(start, visited))
	}
	return comps
}

// explore collects the component containing start.
func (g *Graph) explore(start string, visited map[string]bool) Component {
	var comp Component
	stack := []string{start}

	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[v] {
			continue
		}
		visited[v] = true
		comp = append(comp, v)

		// Push in reverse so neighbours are popped in adjacency order,
		// matching a recursive preorder walk.
		nbrs := g.adj[v].order
		for i := len(nbrs) - 1; i >= 0; i-- {
			if !visited[nbrs[i]] {
				stack = append(stack, nbrs[i])
			}
		}
	}
	return comp
}

// Largest returns the component with the strictly greatest node count. On a
// tie the earliest in comps wins. It returns nil when comps is empty.
func Largest(comps []Component) Component {
	var best Component
	for _, c := range comps {
		if len(c) > len(best) {
			best = c
		}
	}
	return best
}

// LargestComponent is Largest(g.Components()).
func (g *Graph) LargestComponent() Component {
	return Largest(g.Components())
}

// Set returns the component's members as a set.
func (c Component) Set() map[string]struct{} {
	s := make(map[string]struct{}, len(c))
	for _, n := range c {
		s[n] = struct{}{}
	}
	return s
}
