// Package prep shrinks a raw transaction log before the graph build: a
// category prefix filter and a customer frequency sample.
package prep

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/matsen/cobuy/internal/logger"
	"github.com/matsen/cobuy/internal/record"
)

// checkEvery is how many rows pass between context checks.
const checkEvery = 1 << 16

// FilterStats reports what a filter pass did.
type FilterStats struct {
	Read      int `json:"read"`
	Kept      int `json:"kept"`
	Malformed int `json:"malformed"`
}

// FilterCategory copies the records of r whose category_code starts with
// prefix to w, unchanged.
func FilterCategory(ctx context.Context, r io.Reader, w io.Writer, prefix string, opts record.ReaderOptions) (FilterStats, error) {
	opts.KeepEmptyBrand = true
	reader := record.NewReader(r, opts)
	writer := record.NewWriter(w)
	progress := logger.NewProgress("filter rows", logger.DefaultProgressEvery, 0)

	var stats FilterStats
	err := reader.Each(func(row record.Row) error {
		progress.Add()
		if progress.Count()%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if !strings.HasPrefix(row.CategoryCode, prefix) {
			return nil
		}
		return writer.Write(reader.Fields())
	})
	stats.Read = reader.Stats().Records
	stats.Malformed = reader.Stats().Malformed
	stats.Kept = writer.Written()
	if err != nil {
		return stats, fmt.Errorf("filtering %q: %w", prefix, err)
	}
	if err := writer.Flush(); err != nil {
		return stats, err
	}

	progress.Done()
	logger.Info("category filter", "prefix", prefix, "read", stats.Read, "kept", stats.Kept)
	return stats, nil
}
