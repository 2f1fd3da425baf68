// Package record decodes delimited transaction records into typed rows.
package record

import (
	"errors"
	"fmt"

	"github.com/matsen/cobuy/internal/config"
)

// Row is a single purchase event. Only the fields the pipeline needs are kept.
type Row struct {
	ProductID    string
	CategoryCode string
	Brand        string
	UserID       string
}

// Layout maps named fields to zero-based CSV positions.
type Layout struct {
	ProductID    int
	CategoryCode int
	Brand        int
	UserID       int
}

// DefaultLayout matches the monthly eCommerce behaviour export.
func DefaultLayout() Layout {
	return LayoutFromConfig(config.DefaultColumns())
}

// LayoutFromConfig converts configured column positions into a Layout.
func LayoutFromConfig(c config.Columns) Layout {
	return Layout{
		ProductID:    c.ProductID,
		CategoryCode: c.CategoryCode,
		Brand:        c.Brand,
		UserID:       c.UserID,
	}
}

// MinFields is the number of fields a record needs to cover every column.
func (l Layout) MinFields() int {
	m := l.ProductID
	for _, idx := range []int{l.CategoryCode, l.Brand, l.UserID} {
		if idx > m {
			m = idx
		}
	}
	return m + 1
}

// decode builds a Row from fields. Callers must check MinFields first.
func (l Layout) decode(fields []string) Row {
	return Row{
		ProductID:    fields[l.ProductID],
		CategoryCode: fields[l.CategoryCode],
		Brand:        fields[l.Brand],
		UserID:       fields[l.UserID],
	}
}

// isHeader reports whether fields look like the export's header line.
func (l Layout) isHeader(fields []string) bool {
	return fields[l.ProductID] == "product_id" && fields[l.UserID] == "user_id"
}

// ErrMalformed is wrapped by every MalformedError.
var ErrMalformed = errors.New("malformed record")

// MalformedError describes a record that could not be decoded.
type MalformedError struct {
	Line   int
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("line %d: %s: %s", e.Line, ErrMalformed, e.Reason)
}

func (e *MalformedError) Unwrap() error {
	return ErrMalformed
}
