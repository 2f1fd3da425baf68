package record

import (
	"encoding/csv"
	"fmt"
	"io"
)

// Writer writes raw records back out as CSV, unchanged.
type Writer struct {
	csv     *csv.Writer
	written int
}

// NewWriter returns a Writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w)}
}

// Write appends one record.
func (w *Writer) Write(fields []string) error {
	if err := w.csv.Write(fields); err != nil {
		return fmt.Errorf("writing record: %w", err)
	}
	w.written++
	return nil
}

// Written returns how many records were written.
func (w *Writer) Written() int {
	return w.written
}

// Flush writes buffered data to the underlying writer.
func (w *Writer) Flush() error {
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return fmt.Errorf("flushing records: %w", err)
	}
	return nil
}
