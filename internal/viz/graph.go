package viz

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/matsen/cobuy/internal/config"
	"github.com/matsen/cobuy/internal/graph"
)

// BrandFunc returns the brand recorded for a product.
type BrandFunc func(productID string) string

// BuildDocument assembles the export from the chosen component and its
// weighted edges. No computation happens here beyond projection.
func BuildDocument(comp graph.Component, edges []graph.Edge, brand BrandFunc, settings config.Settings) *Document {
	return &Document{
		Nodes:    buildNodes(comp, brand),
		Links:    buildLinks(edges),
		Settings: settings,
	}
}

// buildNodes emits one node per component member, in discovery order.
func buildNodes(comp graph.Component, brand BrandFunc) []Node {
	nodes := make([]Node, 0, len(comp))
	for _, id := range comp {
		nodes = append(nodes, Node{ID: id, Group: brand(id)})
	}
	return nodes
}

// buildLinks emits one link per weighted edge.
func buildLinks(edges []graph.Edge) []Link {
	links := make([]Link, 0, len(edges))
	for _, e := range edges {
		links = append(links, Link{
			Source: e.Key.A,
			Target: e.Key.B,
			Value:  e.Weight,
		})
	}
	return links
}

// WriteJSON writes the document as indented JSON.
func WriteJSON(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding graph document: %w", err)
	}
	return nil
}

// ReadJSON decodes a document previously written by WriteJSON.
func ReadJSON(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding graph document: %w", err)
	}
	return &doc, nil
}

// EdgeKeys returns the canonical edge keys of the document's links.
func (d *Document) EdgeKeys() []graph.EdgeKey {
	keys := make([]graph.EdgeKey, 0, len(d.Links))
	for _, l := range d.Links {
		if k, ok := graph.NewEdgeKey(l.Source, l.Target); ok {
			keys = append(keys, k)
		}
	}
	return keys
}

// NodeIDs returns the ids of the document's nodes.
func (d *Document) NodeIDs() []string {
	ids := make([]string, 0, len(d.Nodes))
	for _, n := range d.Nodes {
		ids = append(ids, n.ID)
	}
	return ids
}
