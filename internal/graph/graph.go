// Package graph builds the product co-occurrence graph, extracts its connected
// components and weights its edges.
package graph

import (
	"fmt"

	"github.com/matsen/cobuy/internal/basket"
)

// EdgeKey identifies an unordered product pair. A < B always holds.
type EdgeKey struct {
	A string
	B string
}

// NewEdgeKey canonicalizes a pair. It returns false for a self-pair.
func NewEdgeKey(x, y string) (EdgeKey, bool) {
	switch {
	case x < y:
		return EdgeKey{A: x, B: y}, true
	case x > y:
		return EdgeKey{A: y, B: x}, true
	default:
		return EdgeKey{}, false
	}
}

// String renders the key as "A-B".
func (k EdgeKey) String() string {
	return k.A + "-" + k.B
}

// adjacency is an insertion-ordered neighbour set.
type adjacency struct {
	order []string
	set   map[string]struct{}
}

// Graph is an undirected product graph. Nodes and edges are only ever added.
type Graph struct {
	nodes []string
	adj   map[string]*adjacency

	counts map[EdgeKey]int
	edges  []EdgeKey // first-seen order
}

// New returns a graph containing nodes and no edges. Duplicate ids are ignored.
func New(nodes []string) *Graph {
	g := &Graph{
		adj:    make(map[string]*adjacency, len(nodes)),
		counts: make(map[EdgeKey]int),
	}
	for _, n := range nodes {
		g.AddNode(n)
	}
	return g
}

// AddNode adds an isolated node if it is not already present.
func (g *Graph) AddNode(id string) {
	if _, ok := g.adj[id]; ok {
		return
	}
	g.adj[id] = &adjacency{set: make(map[string]struct{})}
	g.nodes = append(g.nodes, id)
}

// AddBasket counts every unordered pair of distinct products in products
// once. products is expected to hold distinct ids; repeats are harmless
// apart from the extra pairs they generate.
func (g *Graph) AddBasket(products []string) {
	for i := 0; i < len(products); i++ {
		for j := i + 1; j < len(products); j++ {
			g.addPair(products[i], products[j])
		}
	}
}

// addPair increments the pair's count and links the endpoints the first time.
func (g *Graph) addPair(x, y string) {
	key, ok := NewEdgeKey(x, y)
	if !ok {
		return
	}
	if _, seen := g.counts[key]; !seen {
		g.AddNode(x)
		g.AddNode(y)
		g.link(x, y)
		g.link(y, x)
		g.edges = append(g.edges, key)
	}
	g.counts[key]++
}

func (g *Graph) link(from, to string) {
	a := g.adj[from]
	a.set[to] = struct{}{}
	a.order = append(a.order, to)
}

// Build creates a graph over nodes and adds every basket in store.
// onBasket, if non-nil, is called after each customer.
func Build(store basket.Store, nodes []string, onBasket func()) (*Graph, error) {
	g := New(nodes)
	err := store.Each(func(user string, products []string) error {
		g.AddBasket(products)
		if onBasket != nil {
			onBasket()
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("building co-occurrence graph: %w", err)
	}
	return g, nil
}

// Nodes returns every node in insertion order.
func (g *Graph) Nodes() []string {
	return g.nodes
}

// HasNode reports whether id is in the graph.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.adj[id]
	return ok
}

// Neighbors returns id's neighbours in the order they were linked.
func (g *Graph) Neighbors(id string) []string {
	a, ok := g.adj[id]
	if !ok {
		return nil
	}
	return a.order
}

// Degree returns the number of neighbours of id.
func (g *Graph) Degree(id string) int {
	a, ok := g.adj[id]
	if !ok {
		return 0
	}
	return len(a.order)
}

// Adjacent reports whether x and y share an edge.
func (g *Graph) Adjacent(x, y string) bool {
	a, ok := g.adj[x]
	if !ok {
		return false
	}
	_, ok = a.set[y]
	return ok
}

// Count returns the number of customers whose basket held both endpoints of k.
func (g *Graph) Count(k EdgeKey) int {
	return g.counts[k]
}

// Edges returns every edge key in first-seen order.
func (g *Graph) Edges() []EdgeKey {
	return g.edges
}

// NumNodes returns the node count.
func (g *Graph) NumNodes() int {
	return len(g.nodes)
}

// NumEdges returns the edge count.
func (g *Graph) NumEdges() int {
	return len(g.edges)
}
