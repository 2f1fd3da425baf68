package viz

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/matsen/cobuy/internal/config"
	"github.com/matsen/cobuy/internal/graph"
)

func brands(m map[string]string) BrandFunc {
	return func(id string) string { return m[id] }
}

func sampleDocument() *Document {
	comp := graph.Component{"P1", "P2", "P3"}
	edges := []graph.Edge{
		{Key: graph.EdgeKey{A: "P1", B: "P2"}, Count: 2, Weight: 50},
		{Key: graph.EdgeKey{A: "P1", B: "P3"}, Count: 1, Weight: 25},
		{Key: graph.EdgeKey{A: "P2", B: "P3"}, Count: 1, Weight: 25},
	}
	return BuildDocument(comp, edges, brands(map[string]string{
		"P1": "apple", "P2": "apple", "P3": "samsung",
	}), config.DefaultSettings())
}

func TestBuildDocument(t *testing.T) {
	doc := sampleDocument()

	wantNodes := []Node{{"P1", "apple"}, {"P2", "apple"}, {"P3", "samsung"}}
	if !reflect.DeepEqual(doc.Nodes, wantNodes) {
		t.Errorf("Nodes = %v, want %v", doc.Nodes, wantNodes)
	}
	if len(doc.Links) != 3 {
		t.Fatalf("Links = %v, want 3", doc.Links)
	}
	if doc.Links[0] != (Link{Source: "P1", Target: "P2", Value: 50}) {
		t.Errorf("Links[0] = %+v", doc.Links[0])
	}
	if doc.Settings != config.DefaultSettings() {
		t.Errorf("Settings = %+v", doc.Settings)
	}
	if !reflect.DeepEqual(doc.NodeIDs(), []string{"P1", "P2", "P3"}) {
		t.Errorf("NodeIDs() = %v", doc.NodeIDs())
	}
	if len(doc.EdgeKeys()) != 3 {
		t.Errorf("EdgeKeys() = %v", doc.EdgeKeys())
	}
}

func TestBuildDocument_EmptyComponent(t *testing.T) {
	doc := BuildDocument(nil, nil, brands(nil), config.DefaultSettings())
	if !doc.IsEmpty() {
		t.Error("IsEmpty() = false")
	}

	var buf bytes.Buffer
	if err := WriteJSON(&buf, doc); err != nil {
		t.Fatal(err)
	}
	// Empty lists, not null
	if !strings.Contains(buf.String(), `"nodes": []`) || !strings.Contains(buf.String(), `"links": []`) {
		t.Errorf("empty document encoded as:\n%s", buf.String())
	}
}

func TestWriteJSON_Shape(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleDocument()); err != nil {
		t.Fatal(err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(buf.Bytes(), &raw); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	for _, key := range []string{"nodes", "links", "settings"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("missing top-level key %q", key)
		}
	}

	var settings map[string]float64
	if err := json.Unmarshal(raw["settings"], &settings); err != nil {
		t.Fatal(err)
	}
	want := map[string]float64{
		"attraction_strength":      0.7,
		"attraction_strength_weak": 0.01,
		"repulsion_strength":       -300,
		"repulsion_strength_weak":  -30,
		"link_opacity":             0.1,
		"node_radius":              5,
	}
	if !reflect.DeepEqual(settings, want) {
		t.Errorf("settings = %v, want %v", settings, want)
	}

	if !strings.Contains(buf.String(), "\n  \"nodes\"") {
		t.Error("output not indented by two spaces")
	}
}

func TestReadJSON_RoundTrip(t *testing.T) {
	doc := sampleDocument()
	var buf bytes.Buffer
	if err := WriteJSON(&buf, doc); err != nil {
		t.Fatal(err)
	}

	got, err := ReadJSON(&buf)
	if err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if !reflect.DeepEqual(got, doc) {
		t.Errorf("round trip changed document:\n got %+v\nwant %+v", got, doc)
	}

	if _, err := ReadJSON(strings.NewReader("{nope")); err == nil {
		t.Error("ReadJSON() accepted invalid JSON")
	}
}

func encode(t *testing.T, doc *Document) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := WriteJSON(&buf, doc); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestCompare_Identical(t *testing.T) {
	a := encode(t, sampleDocument())

	// Reordered copy is still equivalent
	doc := sampleDocument()
	doc.Nodes[0], doc.Nodes[2] = doc.Nodes[2], doc.Nodes[0]
	doc.Links[0], doc.Links[1] = doc.Links[1], doc.Links[0]
	b := encode(t, doc)

	diff, err := Compare(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if !diff.IsEmpty() {
		t.Errorf("Compare() = %+v, want empty", diff)
	}
}

func TestCompare_Differences(t *testing.T) {
	a := encode(t, sampleDocument())

	doc := sampleDocument()
	doc.Nodes = append(doc.Nodes[:2], Node{ID: "P4", Group: "lg"})
	doc.Links = []Link{
		{Source: "P1", Target: "P2", Value: 40},
		{Source: "P1", Target: "P4", Value: 10},
	}
	b := encode(t, doc)

	diff, err := Compare(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if diff.IsEmpty() {
		t.Fatal("Compare() reported no differences")
	}
	if !reflect.DeepEqual(diff.NodesOnlyInA, []string{"P3"}) || !reflect.DeepEqual(diff.NodesOnlyInB, []string{"P4"}) {
		t.Errorf("node diff = %v / %v", diff.NodesOnlyInA, diff.NodesOnlyInB)
	}
	if !reflect.DeepEqual(diff.LinksOnlyInA, []string{"P1-P3", "P2-P3"}) {
		t.Errorf("LinksOnlyInA = %v", diff.LinksOnlyInA)
	}
	if !reflect.DeepEqual(diff.LinksOnlyInB, []string{"P1-P4"}) {
		t.Errorf("LinksOnlyInB = %v", diff.LinksOnlyInB)
	}
	want := []ValueMismatch{{Link: "P1-P2", A: 50, B: 40}}
	if !reflect.DeepEqual(diff.ValueMismatches, want) {
		t.Errorf("ValueMismatches = %v, want %v", diff.ValueMismatches, want)
	}
}

func TestCompare_InvalidInput(t *testing.T) {
	if _, err := Compare([]byte("{"), []byte("{}")); !errors.Is(err, ErrInvalidDocument) {
		t.Errorf("Compare() error = %v, want ErrInvalidDocument", err)
	}
}

func TestGenerateHTML(t *testing.T) {
	html, err := GenerateHTML(sampleDocument(), DefaultOptions())
	if err != nil {
		t.Fatalf("GenerateHTML() error = %v", err)
	}
	for _, want := range []string{"d3.forceSimulation", `"attraction_strength":0.7`, `"group":"samsung"`, "<title>Co-purchase graph</title>"} {
		if !strings.Contains(html, want) {
			t.Errorf("HTML missing %q", want)
		}
	}
}

func TestGenerateHTML_Empty(t *testing.T) {
	html, err := GenerateHTML(&Document{}, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(html, "No graph data") {
		t.Error("empty document did not render the empty state")
	}
}

func TestGenerateHTML_Errors(t *testing.T) {
	if _, err := GenerateHTML(nil, DefaultOptions()); err == nil {
		t.Error("GenerateHTML(nil) succeeded")
	}
	if _, err := GenerateHTML(sampleDocument(), HTMLOptions{Distance: "spiral"}); err == nil {
		t.Error("GenerateHTML() accepted an invalid distance")
	}
}

func TestGenerateHTML_EscapesTitle(t *testing.T) {
	html, err := GenerateHTML(sampleDocument(), HTMLOptions{Title: "<script>x</script>"})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(html, "<title><script>") {
		t.Error("title was not escaped")
	}
}
