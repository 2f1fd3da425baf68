package prep

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/matsen/cobuy/internal/logger"
	"github.com/matsen/cobuy/internal/record"
)

// Opener returns a fresh reader over the same input. Sampling reads its
// input twice.
type Opener func() (io.ReadCloser, error)

// Customer is a selected user with its record count.
type Customer struct {
	UserID  string `json:"user_id"`
	Records int    `json:"records"`
}

// SampleStats reports what a sampling run did.
type SampleStats struct {
	Read      int        `json:"read"`
	Customers int        `json:"customers"` // Distinct users seen
	Selected  []Customer `json:"selected"`  // Count descending
	Kept      int        `json:"kept"`
}

// SampleCustomers writes to w the records of every user with at least
// threshold records in the input.
func SampleCustomers(ctx context.Context, open Opener, w io.Writer, threshold int, opts record.ReaderOptions) (*SampleStats, error) {
	opts.KeepEmptyBrand = true

	counts, order, read, err := countCustomers(ctx, open, opts)
	if err != nil {
		return nil, err
	}

	stats := &SampleStats{Read: read, Customers: len(order), Selected: []Customer{}}
	selected := make(map[string]struct{})
	for _, user := range order {
		if counts[user] >= threshold {
			selected[user] = struct{}{}
			stats.Selected = append(stats.Selected, Customer{UserID: user, Records: counts[user]})
		}
	}
	sort.SliceStable(stats.Selected, func(i, j int) bool {
		return stats.Selected[i].Records > stats.Selected[j].Records
	})
	logger.Info("customers counted", "customers", len(order), "selected", len(selected), "threshold", threshold)

	kept, err := writeSelected(ctx, open, w, selected, opts)
	stats.Kept = kept
	if err != nil {
		return stats, err
	}
	return stats, nil
}

// countCustomers is the first pass: records per user, users in first-seen order.
func countCustomers(ctx context.Context, open Opener, opts record.ReaderOptions) (map[string]int, []string, int, error) {
	rc, err := open()
	if err != nil {
		return nil, nil, 0, fmt.Errorf("opening input for counting: %w", err)
	}
	defer rc.Close()

	reader := record.NewReader(rc, opts)
	progress := logger.NewProgress("sample count rows", logger.DefaultProgressEvery, 0)
	counts := make(map[string]int)
	var order []string
	err = reader.Each(func(row record.Row) error {
		progress.Add()
		if progress.Count()%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if _, ok := counts[row.UserID]; !ok {
			order = append(order, row.UserID)
		}
		counts[row.UserID]++
		return nil
	})
	if err != nil {
		return nil, nil, 0, fmt.Errorf("counting customers: %w", err)
	}
	progress.Done()
	return counts, order, reader.Stats().Records, nil
}

// writeSelected is the second pass.
func writeSelected(ctx context.Context, open Opener, w io.Writer, selected map[string]struct{}, opts record.ReaderOptions) (int, error) {
	rc, err := open()
	if err != nil {
		return 0, fmt.Errorf("opening input for writing: %w", err)
	}
	defer rc.Close()

	reader := record.NewReader(rc, opts)
	writer := record.NewWriter(w)
	progress := logger.NewProgress("sample write rows", logger.DefaultProgressEvery, 0)
	err = reader.Each(func(row record.Row) error {
		progress.Add()
		if progress.Count()%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if _, ok := selected[row.UserID]; !ok {
			return nil
		}
		return writer.Write(reader.Fields())
	})
	if err != nil {
		return writer.Written(), fmt.Errorf("writing sample: %w", err)
	}
	if err := writer.Flush(); err != nil {
		return writer.Written(), err
	}
	progress.Done()
	return writer.Written(), nil
}
