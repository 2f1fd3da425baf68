package record

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

// Stats counts what the reader saw.
type Stats struct {
	Records    int `json:"records"`     // Lines decoded by the CSV layer, header included
	Rows       int `json:"rows"`        // Rows handed to the caller
	Malformed  int `json:"malformed"`   // Skipped: short, empty key fields, or unparsable
	EmptyBrand int `json:"empty_brand"` // Skipped: brand missing
	Headers    int `json:"headers"`     // Skipped: header lines
}

// ReaderOptions configures a Reader.
type ReaderOptions struct {
	Layout Layout

	// Strict makes the first malformed record a fatal error instead of a skip.
	Strict bool

	// KeepEmptyBrand yields rows whose brand is empty. The graph build drops
	// them; the prep filters pass them through.
	KeepEmptyBrand bool
}

// Reader streams Rows from delimited text. Memory use is independent of input size.
type Reader struct {
	csv    *csv.Reader
	opts   ReaderOptions
	min    int
	line   int
	fields []string
	stats  Stats
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader, opts ReaderOptions) *Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return &Reader{
		csv:  cr,
		opts: opts,
		min:  opts.Layout.MinFields(),
	}
}

// Next returns the next usable Row. It returns io.EOF when the input is exhausted.
// Malformed records are skipped and counted unless Strict is set, in which case
// a *MalformedError is returned.
func (r *Reader) Next() (Row, error) {
	for {
		fields, err := r.csv.Read()
		if err == io.EOF {
			return Row{}, io.EOF
		}
		r.line++

		if err != nil {
			var perr *csv.ParseError
			if !errors.As(err, &perr) {
				return Row{}, fmt.Errorf("reading records: %w", err)
			}
			if err := r.malformed(perr.Err.Error()); err != nil {
				return Row{}, err
			}
			continue
		}
		r.stats.Records++

		if len(fields) < r.min {
			if err := r.malformed(fmt.Sprintf("%d fields, need at least %d", len(fields), r.min)); err != nil {
				return Row{}, err
			}
			continue
		}

		if r.line == 1 && r.opts.Layout.isHeader(fields) {
			r.stats.Headers++
			continue
		}

		row := r.opts.Layout.decode(fields)
		if row.ProductID == "" || row.UserID == "" {
			if err := r.malformed("empty product_id or user_id"); err != nil {
				return Row{}, err
			}
			continue
		}

		if row.Brand == "" && !r.opts.KeepEmptyBrand {
			r.stats.EmptyBrand++
			continue
		}

		r.fields = fields
		r.stats.Rows++
		return row, nil
	}
}

// malformed counts a bad record, or returns it as an error in strict mode.
func (r *Reader) malformed(reason string) error {
	if r.opts.Strict {
		return &MalformedError{Line: r.line, Reason: reason}
	}
	r.stats.Malformed++
	return nil
}

// Fields returns the raw fields of the row most recently returned by Next.
func (r *Reader) Fields() []string {
	return r.fields
}

// Line returns the number of the line most recently read.
func (r *Reader) Line() int {
	return r.line
}

// Stats returns the counters accumulated so far.
func (r *Reader) Stats() Stats {
	return r.stats
}

// Each calls fn for every row until the input is exhausted or fn returns an error.
func (r *Reader) Each(fn func(Row) error) error {
	for {
		row, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(row); err != nil {
			return err
		}
	}
}
