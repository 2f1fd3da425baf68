// Package viz projects the co-occurrence graph into the node-link document
// consumed by the force-directed renderer.
package viz

import "github.com/matsen/cobuy/internal/config"

// Document is the exported graph. It is built once and never modified.
type Document struct {
	Nodes    []Node          `json:"nodes"`
	Links    []Link          `json:"links"`
	Settings config.Settings `json:"settings"`
}

// Node is a product in the largest component.
type Node struct {
	ID    string `json:"id"`
	Group string `json:"group"` // Brand
}

// Link is an edge internal to the largest component. Source < Target.
type Link struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Value  float64 `json:"value"`
}

// IsEmpty returns true if the document has no nodes.
func (d *Document) IsEmpty() bool {
	return len(d.Nodes) == 0
}
