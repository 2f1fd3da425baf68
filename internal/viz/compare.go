package viz

import (
	"errors"
	"math"
	"sort"

	"github.com/tidwall/gjson"
)

// ValueTolerance is the largest link value difference treated as equal.
const ValueTolerance = 1e-9

// ErrInvalidDocument is returned when input is not a JSON graph document.
var ErrInvalidDocument = errors.New("not a valid graph document")

// Diff lists the differences between two exported documents.
type Diff struct {
	NodesOnlyInA    []string        `json:"nodes_only_in_a"`
	NodesOnlyInB    []string        `json:"nodes_only_in_b"`
	LinksOnlyInA    []string        `json:"links_only_in_a"`
	LinksOnlyInB    []string        `json:"links_only_in_b"`
	ValueMismatches []ValueMismatch `json:"value_mismatches"`
}

// ValueMismatch is a link present in both documents with different values.
type ValueMismatch struct {
	Link string  `json:"link"`
	A    float64 `json:"a"`
	B    float64 `json:"b"`
}

// IsEmpty reports whether the documents were equivalent.
func (d *Diff) IsEmpty() bool {
	return len(d.NodesOnlyInA) == 0 && len(d.NodesOnlyInB) == 0 &&
		len(d.LinksOnlyInA) == 0 && len(d.LinksOnlyInB) == 0 &&
		len(d.ValueMismatches) == 0
}

// Compare diffs two raw documents. Node and link order are ignored; links
// are keyed "source-target".
func Compare(a, b []byte) (*Diff, error) {
	if !gjson.ValidBytes(a) || !gjson.ValidBytes(b) {
		return nil, ErrInvalidDocument
	}

	nodesA, nodesB := nodeSet(a), nodeSet(b)
	linksA, linksB := linkValues(a), linkValues(b)

	diff := &Diff{
		NodesOnlyInA:    []string{},
		NodesOnlyInB:    []string{},
		LinksOnlyInA:    []string{},
		LinksOnlyInB:    []string{},
		ValueMismatches: []ValueMismatch{},
	}

	for id := range nodesA {
		if _, ok := nodesB[id]; !ok {
			diff.NodesOnlyInA = append(diff.NodesOnlyInA, id)
		}
	}
	for id := range nodesB {
		if _, ok := nodesA[id]; !ok {
			diff.NodesOnlyInB = append(diff.NodesOnlyInB, id)
		}
	}

	for key, va := range linksA {
		vb, ok := linksB[key]
		if !ok {
			diff.LinksOnlyInA = append(diff.LinksOnlyInA, key)
			continue
		}
		if math.Abs(va-vb) > ValueTolerance {
			diff.ValueMismatches = append(diff.ValueMismatches, ValueMismatch{Link: key, A: va, B: vb})
		}
	}
	for key := range linksB {
		if _, ok := linksA[key]; !ok {
			diff.LinksOnlyInB = append(diff.LinksOnlyInB, key)
		}
	}

	// Sort for deterministic output
	sort.Strings(diff.NodesOnlyInA)
	sort.Strings(diff.NodesOnlyInB)
	sort.Strings(diff.LinksOnlyInA)
	sort.Strings(diff.LinksOnlyInB)
	sort.Slice(diff.ValueMismatches, func(i, j int) bool {
		return diff.ValueMismatches[i].Link < diff.ValueMismatches[j].Link
	})

	return diff, nil
}

func nodeSet(data []byte) map[string]struct{} {
	ids := gjson.GetBytes(data, "nodes.#.id").Array()
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id.String()] = struct{}{}
	}
	return set
}

func linkValues(data []byte) map[string]float64 {
	values := make(map[string]float64)
	gjson.GetBytes(data, "links").ForEach(func(_, link gjson.Result) bool {
		key := link.Get("source").String() + "-" + link.Get("target").String()
		values[key] = link.Get("value").Float()
		return true
	})
	return values
}
