// Package integration provides integration tests for cobuy commands.
package integration

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
)

var (
	cobuyBinary     string
	cobuyBinaryOnce sync.Once
	cobuyBinaryErr  error
)

// getCobuyBinary builds the cobuy binary once and returns its path.
func getCobuyBinary(t *testing.T) string {
	t.Helper()
	cobuyBinaryOnce.Do(func() {
		// Get module root directory
		_, filename, _, ok := runtime.Caller(0)
		if !ok {
			cobuyBinaryErr = os.ErrInvalid
			return
		}
		moduleRoot := filepath.Dir(filepath.Dir(filepath.Dir(filename)))

		tmpDir, err := os.MkdirTemp("", "cobuy-test-*")
		if err != nil {
			cobuyBinaryErr = err
			return
		}
		cobuyBinary = filepath.Join(tmpDir, "cobuy")

		cmd := exec.Command("go", "build", "-o", cobuyBinary, "./cmd/cobuy")
		cmd.Dir = moduleRoot
		if output, err := cmd.CombinedOutput(); err != nil {
			cobuyBinaryErr = &buildError{output: string(output), err: err}
			return
		}
	})
	if cobuyBinaryErr != nil {
		t.Fatalf("failed to build cobuy: %v", cobuyBinaryErr)
	}
	return cobuyBinary
}

type buildError struct {
	output string
	err    error
}

func (e *buildError) Error() string {
	return e.err.Error() + ": " + e.output
}

type result struct {
	stdout string
	stderr string
	code   int
}

// runCobuy executes cobuy in dir. XDG_CONFIG_HOME points inside dir so no
// user config leaks in.
func runCobuy(t *testing.T, dir string, args ...string) result {
	t.Helper()
	cmd := exec.Command(getCobuyBinary(t), args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "XDG_CONFIG_HOME="+filepath.Join(dir, "config"))
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	res := result{}
	err := cmd.Run()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		res.code = exitErr.ExitCode()
	default:
		t.Fatalf("running cobuy: %v", err)
	}
	res.stdout = stdout.String()
	res.stderr = stderr.String()
	return res
}

const header = "event_time,event_type,product_id,category_id,category_code,brand,price,user_id,user_session\n"

func line(product, category, brand, user string) string {
	return "2019-10-01 00:00:00 UTC,purchase," + product + ",1," + category + "," + brand + ",1.00," + user + ",s\n"
}

// setupData writes a raw month log with two categories.
func setupData(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	raw := header
	// Phones: u1 and u2 are heavy buyers, u3 buys once
	raw += line("P1", "electronics.smartphone", "apple", "u1")
	raw += line("P2", "electronics.smartphone", "apple", "u1")
	raw += line("P3", "electronics.smartphone", "samsung", "u1")
	raw += line("P1", "electronics.smartphone", "apple", "u2")
	raw += line("P2", "electronics.smartphone", "apple", "u2")
	raw += line("P9", "electronics.smartphone", "", "u2")
	raw += line("P4", "electronics.smartphone", "xiaomi", "u3")
	raw += line("S1", "furniture.living_room.sofa", "ikea", "u1")
	raw += line("S2", "furniture.living_room.sofa", "ikea", "u1")
	if err := os.WriteFile(filepath.Join(dir, "2019-Oct.csv"), []byte(raw), 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

type document struct {
	Nodes []struct {
		ID    string `json:"id"`
		Group string `json:"group"`
	} `json:"nodes"`
	Links []struct {
		Source string  `json:"source"`
		Target string  `json:"target"`
		Value  float64 `json:"value"`
	} `json:"links"`
	Settings map[string]float64 `json:"settings"`
}

func readDocument(t *testing.T, path string) document {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("document is not JSON: %v\n%s", err, data)
	}
	return doc
}

func TestFilterSampleBuild(t *testing.T) {
	dir := setupData(t)
	cat := "electronics.smartphone"

	res := runCobuy(t, dir, "filter", "--category", cat)
	if res.code != 0 {
		t.Fatalf("filter failed (%d): %s %s", res.code, res.stdout, res.stderr)
	}
	var filter struct {
		Kept   int    `json:"kept"`
		Output string `json:"output"`
	}
	if err := json.Unmarshal([]byte(res.stdout), &filter); err != nil {
		t.Fatalf("filter output not JSON: %v\n%s", err, res.stdout)
	}
	if filter.Kept != 7 {
		t.Errorf("filter kept %d, want 7", filter.Kept)
	}

	res = runCobuy(t, dir, "sample", "--category", cat, "--min", "2")
	if res.code != 0 {
		t.Fatalf("sample failed (%d): %s %s", res.code, res.stdout, res.stderr)
	}
	var sample struct {
		Selected int `json:"selected"`
		Kept     int `json:"kept"`
	}
	if err := json.Unmarshal([]byte(res.stdout), &sample); err != nil {
		t.Fatalf("sample output not JSON: %v\n%s", err, res.stdout)
	}
	if sample.Selected != 2 || sample.Kept != 6 {
		t.Errorf("sample = %+v, want 2 customers and 6 records", sample)
	}

	res = runCobuy(t, dir, "build", "--category", cat)
	if res.code != 0 {
		t.Fatalf("build failed (%d): %s %s", res.code, res.stdout, res.stderr)
	}
	var build struct {
		Customers   int    `json:"customers"`
		EmptyBrand  int    `json:"empty_brand"`
		LargestSize int    `json:"largest_component"`
		Output      string `json:"output"`
		RunID       string `json:"run_id"`
	}
	if err := json.Unmarshal([]byte(res.stdout), &build); err != nil {
		t.Fatalf("build output not JSON: %v\n%s", err, res.stdout)
	}
	if build.Customers != 2 || build.EmptyBrand != 1 || build.LargestSize != 3 || build.RunID == "" {
		t.Errorf("build summary = %+v", build)
	}

	doc := readDocument(t, filepath.Join(dir, "electronics-smartphone.json"))
	if len(doc.Nodes) != 3 || len(doc.Links) != 3 {
		t.Fatalf("document has %d nodes and %d links, want 3 and 3", len(doc.Nodes), len(doc.Links))
	}
	for _, l := range doc.Links {
		if l.Source == "P1" && l.Target == "P2" && l.Value != 50 {
			t.Errorf("P1-P2 value = %v, want 50", l.Value)
		}
		if l.Source >= l.Target {
			t.Errorf("link %s-%s not ordered", l.Source, l.Target)
		}
	}
	if doc.Settings["node_radius"] != 5 {
		t.Errorf("settings = %v", doc.Settings)
	}
}

func TestBuild_Variants(t *testing.T) {
	dir := setupData(t)
	input := filepath.Join(dir, "2019-Oct.csv")

	res := runCobuy(t, dir, "build", "-i", input, "-o", "memory.json")
	if res.code != 0 {
		t.Fatalf("build failed: %s %s", res.stdout, res.stderr)
	}
	res = runCobuy(t, dir, "build", "-i", input, "-o", "spilled.json", "--spill-dir", filepath.Join(dir, "spill"), "--shards", "3")
	if res.code != 0 {
		t.Fatalf("spilled build failed: %s %s", res.stdout, res.stderr)
	}

	res = runCobuy(t, dir, "diff", "memory.json", "spilled.json")
	if res.code != 0 {
		t.Errorf("diff exit = %d, want 0\n%s", res.code, res.stdout)
	}
	if !strings.Contains(res.stdout, `"equal": true`) {
		t.Errorf("diff output = %s", res.stdout)
	}
}

func TestDiff_Differences(t *testing.T) {
	dir := setupData(t)
	input := filepath.Join(dir, "2019-Oct.csv")

	runCobuy(t, dir, "build", "-i", input, "-o", "jaccard.json")
	runCobuy(t, dir, "build", "-i", input, "-o", "count.json", "--weighting", "count")

	res := runCobuy(t, dir, "diff", "jaccard.json", "count.json")
	if res.code != 3 {
		t.Errorf("diff exit = %d, want 3", res.code)
	}
	if !strings.Contains(res.stdout, "value_mismatches") {
		t.Errorf("diff output = %s", res.stdout)
	}

	res = runCobuy(t, dir, "diff", "jaccard.json", "count.json", "--human")
	if !strings.Contains(res.stdout, "Value mismatches") {
		t.Errorf("human diff output = %s", res.stdout)
	}
}

func TestBuild_Errors(t *testing.T) {
	dir := setupData(t)

	res := runCobuy(t, dir, "build", "-i", filepath.Join(dir, "missing.csv"))
	if res.code != 2 {
		t.Errorf("missing input exit = %d, want 2", res.code)
	}
	if !strings.Contains(res.stdout, `"error"`) {
		t.Errorf("error not reported as JSON: %s", res.stdout)
	}

	empty := filepath.Join(dir, "empty.csv")
	if err := os.WriteFile(empty, []byte(header), 0644); err != nil {
		t.Fatal(err)
	}
	if res := runCobuy(t, dir, "build", "-i", empty); res.code != 3 {
		t.Errorf("empty input exit = %d, want 3", res.code)
	}

	broken := filepath.Join(dir, "broken.csv")
	if err := os.WriteFile(broken, []byte(line("P1", "c", "a", "u1")+"short,row\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if res := runCobuy(t, dir, "build", "-i", broken, "-o", "broken.json"); res.code != 0 {
		t.Errorf("lenient build exit = %d, want 0: %s", res.code, res.stdout)
	}
	if res := runCobuy(t, dir, "build", "-i", broken, "--strict"); res.code != 3 {
		t.Errorf("strict build exit = %d, want 3", res.code)
	}

	if res := runCobuy(t, dir, "build", "--weighting", "cosine"); res.code != 2 {
		t.Errorf("bad weighting exit = %d, want 2", res.code)
	}
}

func TestConfigFile(t *testing.T) {
	dir := setupData(t)
	cfg := "category: furniture.living_room.sofa\nweighting: count\n"
	if err := os.WriteFile(filepath.Join(dir, "cobuy.yml"), []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}

	res := runCobuy(t, dir, "config")
	if res.code != 0 {
		t.Fatalf("config failed: %s %s", res.stdout, res.stderr)
	}
	var resp struct {
		Source string `json:"source"`
		Paths  struct {
			Output string `json:"output"`
		} `json:"paths"`
	}
	if err := json.Unmarshal([]byte(res.stdout), &resp); err != nil {
		t.Fatalf("config output not JSON: %v\n%s", err, res.stdout)
	}
	if resp.Source != "file" || resp.Paths.Output != "furniture-living_room-sofa.json" {
		t.Errorf("config = %+v", resp)
	}

	res = runCobuy(t, dir, "build", "-i", "2019-Oct.csv")
	if res.code != 0 {
		t.Fatalf("build failed: %s %s", res.stdout, res.stderr)
	}
	doc := readDocument(t, filepath.Join(dir, "furniture-living_room-sofa.json"))
	if len(doc.Nodes) == 0 {
		t.Error("build with config file wrote an empty document")
	}
}

func TestViz(t *testing.T) {
	dir := setupData(t)
	runCobuy(t, dir, "build", "-i", "2019-Oct.csv", "-o", "graph.json")

	res := runCobuy(t, dir, "viz", "-i", "graph.json", "-o", "graph.html")
	if res.code != 0 {
		t.Fatalf("viz failed: %s %s", res.stdout, res.stderr)
	}
	html, err := os.ReadFile(filepath.Join(dir, "graph.html"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(html), "d3.forceSimulation") {
		t.Error("page does not run a force simulation")
	}

	res = runCobuy(t, dir, "viz", "-i", "graph.json")
	if !strings.HasPrefix(res.stdout, "<!DOCTYPE html>") {
		t.Errorf("viz to stdout = %.60q", res.stdout)
	}
}

func TestRunsHistory(t *testing.T) {
	dir := setupData(t)
	first := runCobuy(t, dir, "build", "-i", "2019-Oct.csv", "-o", "a.json")
	runCobuy(t, dir, "build", "-i", "2019-Oct.csv", "-o", "b.json")
	runCobuy(t, dir, "build", "-i", "2019-Oct.csv", "-o", "c.json", "--no-history")

	res := runCobuy(t, dir, "runs")
	if res.code != 0 {
		t.Fatalf("runs failed: %s %s", res.stdout, res.stderr)
	}
	var runs []struct {
		RunID  string `json:"run_id"`
		Output string `json:"output"`
	}
	if err := json.Unmarshal([]byte(res.stdout), &runs); err != nil {
		t.Fatalf("runs output not JSON: %v\n%s", err, res.stdout)
	}
	if len(runs) != 2 || runs[0].Output != "a.json" || runs[1].Output != "b.json" {
		t.Fatalf("runs = %+v", runs)
	}

	var build struct {
		RunID string `json:"run_id"`
	}
	if err := json.Unmarshal([]byte(first.stdout), &build); err != nil {
		t.Fatal(err)
	}
	res = runCobuy(t, dir, "runs", build.RunID)
	if res.code != 0 || !strings.Contains(res.stdout, `"output": "a.json"`) {
		t.Errorf("runs %s = %d %s", build.RunID, res.code, res.stdout)
	}
	if res := runCobuy(t, dir, "runs", "nope"); res.code != 1 {
		t.Errorf("unknown run exit = %d, want 1", res.code)
	}
}
