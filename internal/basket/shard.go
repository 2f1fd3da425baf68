package basket

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/matsen/cobuy/internal/record"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/errgroup"
)

// RowSource yields rows until io.EOF.
type RowSource interface {
	Next() (record.Row, error)
}

// Options configures Aggregate.
type Options struct {
	// Shards is the number of parallel workers. Customers are partitioned
	// by a hash of user_id so each basket is built by exactly one worker.
	Shards int

	// NewStore creates the basket store for a shard. Defaults to NewMemoryStore.
	NewStore func(shard int) (Store, error)

	// OnRow is called once per row read, from the reading goroutine.
	OnRow func()
}

// shardBuffer is the channel depth between the reader and each worker.
const shardBuffer = 4096

// ctxCheckEvery is how often the single-worker loop polls for cancellation.
const ctxCheckEvery = 65536

type seqRow struct {
	row record.Row
	seq int64
}

// Aggregate consumes src and returns the finished aggregation. With more than
// one shard, rows are routed to workers by customer and the partial results
// are merged with an explicit reduction step. The result is identical to a
// single-worker run over the same input.
func Aggregate(ctx context.Context, src RowSource, opts Options) (*Aggregator, error) {
	if opts.Shards < 1 {
		opts.Shards = 1
	}
	if opts.NewStore == nil {
		opts.NewStore = func(int) (Store, error) { return NewMemoryStore(), nil }
	}
	if opts.OnRow == nil {
		opts.OnRow = func() {}
	}

	if opts.Shards == 1 {
		return aggregateSingle(ctx, src, opts)
	}

	parts := make([]*Aggregator, 0, opts.Shards)
	closeParts := func() {
		for _, p := range parts {
			p.Close()
		}
	}
	for i := 0; i < opts.Shards; i++ {
		store, err := opts.NewStore(i)
		if err != nil {
			closeParts()
			return nil, fmt.Errorf("creating store for shard %d: %w", i, err)
		}
		parts = append(parts, NewAggregator(store))
	}

	chans := make([]chan seqRow, opts.Shards)
	for i := range chans {
		chans[i] = make(chan seqRow, shardBuffer)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer func() {
			for _, ch := range chans {
				close(ch)
			}
		}()
		var seq int64
		for {
			row, err := src.Next()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}
			opts.OnRow()
			select {
			case chans[ShardFor(row.UserID, opts.Shards)] <- seqRow{row: row, seq: seq}:
			case <-gctx.Done():
				return gctx.Err()
			}
			seq++
		}
	})

	for i := range parts {
		part, ch := parts[i], chans[i]
		g.Go(func() error {
			for sr := range ch {
				if err := part.addAt(sr.row, sr.seq); err != nil {
					return err
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		closeParts()
		return nil, err
	}
	return merge(parts), nil
}

func aggregateSingle(ctx context.Context, src RowSource, opts Options) (*Aggregator, error) {
	store, err := opts.NewStore(0)
	if err != nil {
		return nil, fmt.Errorf("creating basket store: %w", err)
	}
	agg := NewAggregator(store)

	for n := 0; ; n++ {
		if n%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				agg.Close()
				return nil, err
			}
		}
		row, err := src.Next()
		if err == io.EOF {
			return agg, nil
		}
		if err != nil {
			agg.Close()
			return nil, err
		}
		opts.OnRow()
		if err := agg.Add(row); err != nil {
			agg.Close()
			return nil, err
		}
	}
}

// ShardFor maps a customer to a shard in [0, shards).
func ShardFor(user string, shards int) int {
	if shards <= 1 {
		return 0
	}
	sum := blake2b.Sum256([]byte(user))
	return int(binary.BigEndian.Uint64(sum[:8]) % uint64(shards))
}

// merge reduces per-shard aggregations into one. Counts are summed; the
// brand and position of each product come from its earliest row overall.
func merge(parts []*Aggregator) *Aggregator {
	out := &Aggregator{
		counts:     make(map[string]int),
		brands:     make(map[string]string),
		productSeq: make(map[string]int64),
		userSeq:    make(map[string]int64),
	}

	for _, p := range parts {
		out.dropped += p.dropped
		for _, id := range p.products {
			out.counts[id] += p.counts[id]
			seq := p.productSeq[id]
			if prev, ok := out.productSeq[id]; !ok || seq < prev {
				out.productSeq[id] = seq
				out.brands[id] = p.brands[id]
			}
		}
	}

	out.products = make([]string, 0, len(out.counts))
	for id := range out.counts {
		out.products = append(out.products, id)
	}
	sort.Slice(out.products, func(i, j int) bool {
		return out.productSeq[out.products[i]] < out.productSeq[out.products[j]]
	})

	ms := &mergedStore{}
	for i, p := range parts {
		ms.parts = append(ms.parts, p.store)
		for user, seq := range p.userSeq {
			ms.order = append(ms.order, shardUser{user: user, part: i, seq: seq})
			out.userSeq[user] = seq
		}
	}
	sort.Slice(ms.order, func(i, j int) bool { return ms.order[i].seq < ms.order[j].seq })
	out.store = ms
	out.next = int64(len(ms.order))

	return out
}

type shardUser struct {
	user string
	part int
	seq  int64
}

// mergedStore presents disjoint shard stores as one, in single-pass order.
type mergedStore struct {
	parts []Store
	order []shardUser
}

// errMergedReadOnly is returned when adding to a merged store.
var errMergedReadOnly = errors.New("merged basket store is read-only")

func (m *mergedStore) Add(user, product string) error {
	return errMergedReadOnly
}

func (m *mergedStore) Basket(user string) ([]string, error) {
	for _, p := range m.parts {
		b, err := p.Basket(user)
		if err != nil {
			return nil, err
		}
		if b != nil {
			return b, nil
		}
	}
	return nil, nil
}

func (m *mergedStore) Each(fn func(user string, products []string) error) error {
	for _, su := range m.order {
		b, err := m.parts[su.part].Basket(su.user)
		if err != nil {
			return fmt.Errorf("reading basket of %s: %w", su.user, err)
		}
		if err := fn(su.user, b); err != nil {
			return err
		}
	}
	return nil
}

func (m *mergedStore) Customers() int {
	return len(m.order)
}

func (m *mergedStore) Close() error {
	var errs []error
	for _, p := range m.parts {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
