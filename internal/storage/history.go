package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// MaxJSONLLineCapacity is the maximum buffer size for reading history lines (1MB per line).
const MaxJSONLLineCapacity = 1024 * 1024

// HistoryFile is the default run history file name.
const HistoryFile = "cobuy-runs.jsonl"

// RunRecord is one line of the run history.
type RunRecord struct {
	RunID     string          `json:"run_id"`
	StartedAt time.Time       `json:"started_at"`
	Duration  string          `json:"duration"`
	Category  string          `json:"category"`
	Input     string          `json:"input"`
	Output    string          `json:"output"`
	Stats     json.RawMessage `json:"stats,omitempty"`
}

// ReadHistory reads every run from a JSONL history file.
func ReadHistory(path string) ([]RunRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // No history yet
		}
		return nil, fmt.Errorf("opening history file: %w", err)
	}
	defer f.Close()

	var runs []RunRecord
	scanner := bufio.NewScanner(f)

	// Increase buffer size for long lines
	buf := make([]byte, MaxJSONLLineCapacity)
	scanner.Buffer(buf, MaxJSONLLineCapacity)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue // Skip empty lines
		}

		var run RunRecord
		if err := json.Unmarshal(line, &run); err != nil {
			return nil, fmt.Errorf("parsing line %d: %w", lineNum, err)
		}
		runs = append(runs, run)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading history file: %w", err)
	}

	return runs, nil
}

// AppendHistory adds a run to the end of a JSONL history file.
func AppendHistory(path string, run RunRecord) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating history directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening history file for append: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encoding run: %w", err)
	}

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing run: %w", err)
	}
	return nil
}

// FindRun searches for a run by id.
func FindRun(runs []RunRecord, id string) (int, bool) {
	for i, run := range runs {
		if run.RunID == id {
			return i, true
		}
	}
	return -1, false
}
