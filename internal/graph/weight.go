package graph

import (
	"fmt"

	"github.com/matsen/cobuy/internal/config"
)

// Mode selects how edge weights are computed.
type Mode int

const (
	// Jaccard weights an edge by the overlap of its endpoints' other neighbours, as a percentage.
	Jaccard Mode = iota
	// RawCount weights an edge by its co-occurrence count.
	RawCount
)

// ParseMode converts a configured weighting name into a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case config.WeightingJaccard, "":
		return Jaccard, nil
	case config.WeightingCount:
		return RawCount, nil
	default:
		return 0, fmt.Errorf("unknown weighting mode %q", s)
	}
}

func (m Mode) String() string {
	if m == RawCount {
		return config.WeightingCount
	}
	return config.WeightingJaccard
}

// Edge is a weighted co-occurrence edge.
type Edge struct {
	Key    EdgeKey
	Count  int
	Weight float64
}

// Similarity returns the 1-hop neighbourhood overlap of a and b:
//
//	shared(a, b) / ((deg(a) - 1) + (deg(b) - 1)) * 100
//
// The -1 terms discount each endpoint's link to the other. When a and b are
// each other's only neighbour the denominator is zero and the weight is 0.
func (g *Graph) Similarity(a, b string) float64 {
	denom := g.Degree(a) - 1 + g.Degree(b) - 1
	if denom <= 0 {
		return 0
	}
	return float64(g.sharedNeighbors(a, b)) / float64(denom) * 100
}

// sharedNeighbors counts nodes adjacent to both a and b.
func (g *Graph) sharedNeighbors(a, b string) int {
	small, large := g.adj[a], g.adj[b]
	if small == nil || large == nil {
		return 0
	}
	if len(small.order) > len(large.order) {
		small, large = large, small
	}
	shared := 0
	for _, n := range small.order {
		if _, ok := large.set[n]; ok {
			shared++
		}
	}
	return shared
}

// Weigh returns the weighted edges internal to comp, in first-seen order.
// Checking the lower endpoint is enough: components are closed under adjacency.
func (g *Graph) Weigh(comp Component, mode Mode) []Edge {
	members := comp.Set()
	var out []Edge
	for _, k := range g.edges {
		if _, ok := members[k.A]; !ok {
			continue
		}
		e := Edge{Key: k, Count: g.counts[k]}
		switch mode {
		case RawCount:
			e.Weight = float64(e.Count)
		default:
			e.Weight = g.Similarity(k.A, k.B)
		}
		out = append(out, e)
	}
	return out
}
