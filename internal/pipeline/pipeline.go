// Package pipeline runs the co-purchase graph build end to end: records,
// baskets, co-occurrence graph, largest component, edge weights, document.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	nanoid "github.com/matoous/go-nanoid/v2"

	"github.com/matsen/cobuy/internal/basket"
	"github.com/matsen/cobuy/internal/config"
	"github.com/matsen/cobuy/internal/graph"
	"github.com/matsen/cobuy/internal/logger"
	"github.com/matsen/cobuy/internal/record"
	"github.com/matsen/cobuy/internal/storage"
	"github.com/matsen/cobuy/internal/viz"
)

// ErrNoNodes is returned when no record survives filtering, so there is no
// component to export.
var ErrNoNodes = errors.New("no products in input after filtering")

// runIDAlphabet keeps run ids safe in file names.
const runIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

const runIDLength = 10

var _ basket.Store = (*storage.BasketDB)(nil)

// Stats summarises a run.
type Stats struct {
	RunID       string `json:"run_id"`
	Records     int    `json:"records"`
	Rows        int    `json:"rows"`
	Malformed   int    `json:"malformed"`
	EmptyBrand  int    `json:"empty_brand"`
	Customers   int    `json:"customers"`
	Products    int    `json:"products"`
	Edges       int    `json:"edges"`
	Components  int    `json:"components"`
	LargestSize int    `json:"largest_component"`
	Links       int    `json:"links"`
	Weighting   string `json:"weighting"`
	Shards      int    `json:"shards"`
	Spilled     bool   `json:"spilled"`
}

// Result is the output of a run.
type Result struct {
	Document *viz.Document
	Stats    Stats
}

// Pipeline holds a validated configuration. A Pipeline may be run more than
// once; each run gets a fresh id.
type Pipeline struct {
	cfg  *config.Config
	mode graph.Mode
}

// New validates cfg and returns a Pipeline for it.
func New(cfg *config.Config) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", config.ErrInvalid)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	mode, err := graph.ParseMode(cfg.Weighting)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}
	return &Pipeline{cfg: cfg, mode: mode}, nil
}

// NewRunID returns an identifier for tagging logs and naming spill files.
func NewRunID() (string, error) {
	id, err := nanoid.Generate(runIDAlphabet, runIDLength)
	if err != nil {
		return "", fmt.Errorf("generating run id: %w", err)
	}
	return id, nil
}

// Run reads records from input and builds the graph document. Stages run
// strictly in order; only aggregation is parallel.
func (p *Pipeline) Run(ctx context.Context, input io.Reader) (*Result, error) {
	runID, err := NewRunID()
	if err != nil {
		return nil, err
	}
	lg := logger.With("run", runID)
	stats := Stats{
		RunID:     runID,
		Weighting: p.mode.String(),
		Shards:    p.cfg.Shards,
		Spilled:   p.cfg.Spill.Enabled,
	}

	reader := record.NewReader(input, record.ReaderOptions{
		Layout: record.LayoutFromConfig(p.cfg.Columns),
		Strict: p.cfg.Strict,
	})
	rows := logger.NewProgress("rows read", logger.DefaultProgressEvery, 0)

	agg, err := basket.Aggregate(ctx, reader, basket.Options{
		Shards:   p.cfg.Shards,
		NewStore: p.storeFactory(runID, lg),
		OnRow:    rows.Add,
	})
	readerStats := reader.Stats()
	stats.Records = readerStats.Records
	stats.Rows = readerStats.Rows
	stats.Malformed = readerStats.Malformed
	stats.EmptyBrand = readerStats.EmptyBrand
	if err != nil {
		return nil, fmt.Errorf("aggregating baskets: %w", err)
	}
	defer func() {
		if err := agg.Close(); err != nil {
			lg.Warn("closing basket store", "err", err)
		}
	}()
	rows.Done()

	if readerStats.Malformed > 0 {
		lg.Warn("skipped malformed records", "count", readerStats.Malformed)
	}
	stats.Customers = agg.Customers()
	stats.Products = len(agg.ProductIDs())
	lg.Info("baskets aggregated", "customers", stats.Customers, "products", stats.Products, "empty_brand", stats.EmptyBrand)

	if stats.Products == 0 {
		return nil, ErrNoNodes
	}

	baskets := logger.NewProgress("baskets paired", 100_000, 0)
	g, err := graph.Build(agg.Store(), agg.ProductIDs(), baskets.Add)
	if err != nil {
		return nil, err
	}
	stats.Edges = g.NumEdges()
	lg.Info("co-occurrence graph built", "nodes", g.NumNodes(), "edges", stats.Edges)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	comps := g.Components()
	largest := graph.Largest(comps)
	stats.Components = len(comps)
	stats.LargestSize = len(largest)
	lg.Info("components extracted", "components", stats.Components, "largest", stats.LargestSize)

	edges := g.Weigh(largest, p.mode)
	doc := viz.BuildDocument(largest, edges, agg.Brand, p.cfg.Settings)
	stats.Links = len(doc.Links)
	lg.Debug("document built", "nodes", len(doc.Nodes), "links", stats.Links, "weighting", stats.Weighting)

	return &Result{Document: doc, Stats: stats}, nil
}

// storeFactory returns the per-shard store constructor: memory by default,
// SQLite files in the spill directory when spilling.
func (p *Pipeline) storeFactory(runID string, lg *log.Logger) func(int) (basket.Store, error) {
	if !p.cfg.Spill.Enabled {
		return nil
	}
	dir := p.cfg.Spill.Dir
	if dir == "" {
		dir = os.TempDir()
	}
	dir = config.ExpandPath(dir)
	return func(shard int) (basket.Store, error) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating spill directory: %w", err)
		}
		path := filepath.Join(dir, SpillFileName(runID, shard))
		lg.Debug("spilling baskets", "shard", shard, "path", path)
		db, err := storage.OpenBasketDB(path, storage.BasketDBOptions{Keep: p.cfg.Spill.Keep})
		if err != nil {
			return nil, err
		}
		return db, nil
	}
}

// SpillFileName names the basket database for one shard of a run.
func SpillFileName(runID string, shard int) string {
	return fmt.Sprintf("cobuy-%s-shard%d.db", runID, shard)
}
