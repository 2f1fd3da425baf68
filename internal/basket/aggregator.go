package basket

import (
	"fmt"

	"github.com/matsen/cobuy/internal/record"
)

// Product is a graph node: a product with its purchase count and brand.
type Product struct {
	ID    string
	Count int
	Brand string
}

// Aggregator consumes rows and grows three mappings monotonically: baskets
// (in its Store), per-product purchase counts, and first-seen brands.
type Aggregator struct {
	store Store

	counts   map[string]int
	brands   map[string]string
	products []string // first-seen order

	// First sequence number at which each product and customer appeared.
	// Used to merge shards back into single-pass order.
	productSeq map[string]int64
	userSeq    map[string]int64
	next       int64

	dropped int
}

// NewAggregator returns an Aggregator that keeps baskets in store.
func NewAggregator(store Store) *Aggregator {
	return &Aggregator{
		store:      store,
		counts:     make(map[string]int),
		brands:     make(map[string]string),
		productSeq: make(map[string]int64),
		userSeq:    make(map[string]int64),
	}
}

// Add folds one row into the aggregation. Rows without a brand are dropped
// entirely: no basket entry, no count, no brand.
func (a *Aggregator) Add(row record.Row) error {
	err := a.addAt(row, a.next)
	a.next++
	return err
}

// addAt is Add with an explicit input position.
func (a *Aggregator) addAt(row record.Row, seq int64) error {
	if row.Brand == "" {
		a.dropped++
		return nil
	}

	if err := a.store.Add(row.UserID, row.ProductID); err != nil {
		return fmt.Errorf("adding %s to basket of %s: %w", row.ProductID, row.UserID, err)
	}
	if _, ok := a.userSeq[row.UserID]; !ok {
		a.userSeq[row.UserID] = seq
	}

	if _, ok := a.counts[row.ProductID]; !ok {
		a.products = append(a.products, row.ProductID)
		a.productSeq[row.ProductID] = seq
		a.brands[row.ProductID] = row.Brand
	}
	a.counts[row.ProductID]++
	return nil
}

// Store returns the basket store.
func (a *Aggregator) Store() Store {
	return a.store
}

// ProductIDs returns every product in first-seen order.
func (a *Aggregator) ProductIDs() []string {
	return a.products
}

// Product returns the aggregated attributes of id.
func (a *Aggregator) Product(id string) (Product, bool) {
	count, ok := a.counts[id]
	if !ok {
		return Product{}, false
	}
	return Product{ID: id, Count: count, Brand: a.brands[id]}, true
}

// Brand returns the first brand seen for id.
func (a *Aggregator) Brand(id string) string {
	return a.brands[id]
}

// Count returns how many purchases of id were observed.
func (a *Aggregator) Count(id string) int {
	return a.counts[id]
}

// Customers returns the number of distinct customers with a basket.
func (a *Aggregator) Customers() int {
	return a.store.Customers()
}

// Dropped returns how many rows were discarded for lacking a brand.
func (a *Aggregator) Dropped() int {
	return a.dropped
}

// Close releases the basket store.
func (a *Aggregator) Close() error {
	return a.store.Close()
}
