// Package storage provides the on-disk basket store used when baskets do not
// fit in memory, and the JSONL run history.
package storage

import (
	"database/sql"
	"fmt"
	"os"

	_ "modernc.org/sqlite"
)

// DefaultBatchSize is the number of inserts grouped into one transaction.
const DefaultBatchSize = 10000

// BasketDB is a SQLite-backed basket store. Only the customer → position
// index stays in memory; products live on disk.
type BasketDB struct {
	db   *sql.DB
	path string
	keep bool

	tx        *sql.Tx
	userStmt  *sql.Stmt
	itemStmt  *sql.Stmt
	pending   int
	batchSize int

	users map[string]int64
}

// BasketDBOptions configures OpenBasketDB.
type BasketDBOptions struct {
	Keep      bool // Leave the database file in place on Close
	BatchSize int
}

// OpenBasketDB creates a basket database at path. An existing file is replaced.
func OpenBasketDB(path string, opts BasketDBOptions) (*BasketDB, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("removing stale database: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}

	return &BasketDB{
		db:        db,
		path:      path,
		keep:      opts.Keep,
		batchSize: opts.BatchSize,
		users:     make(map[string]int64),
	}, nil
}

// createSchema creates the basket tables. The data is scratch, so durability is off.
func createSchema(db *sql.DB) error {
	schema := `
		PRAGMA journal_mode = OFF;
		PRAGMA synchronous = OFF;

		-- Customers in first-seen order
		CREATE TABLE IF NOT EXISTS customers (
			seq INTEGER PRIMARY KEY,
			user_id TEXT NOT NULL UNIQUE
		);

		-- Distinct products per customer; rowid preserves first-seen order
		CREATE TABLE IF NOT EXISTS basket_items (
			customer_seq INTEGER NOT NULL,
			product_id TEXT NOT NULL,
			UNIQUE (customer_seq, product_id)
		);

		CREATE INDEX IF NOT EXISTS idx_basket_items_customer ON basket_items(customer_seq);
	`

	_, err := db.Exec(schema)
	return err
}

// Path returns the database file location.
func (d *BasketDB) Path() string {
	return d.path
}

// begin opens a write transaction with prepared statements.
func (d *BasketDB) begin() error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	userStmt, err := tx.Prepare(`INSERT INTO customers (seq, user_id) VALUES (?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing customer insert: %w", err)
	}
	itemStmt, err := tx.Prepare(`INSERT OR IGNORE INTO basket_items (customer_seq, product_id) VALUES (?, ?)`)
	if err != nil {
		userStmt.Close()
		tx.Rollback()
		return fmt.Errorf("preparing item insert: %w", err)
	}
	d.tx, d.userStmt, d.itemStmt = tx, userStmt, itemStmt
	return nil
}

// flush commits the open transaction, if any.
func (d *BasketDB) flush() error {
	if d.tx == nil {
		return nil
	}
	d.userStmt.Close()
	d.itemStmt.Close()
	err := d.tx.Commit()
	d.tx, d.userStmt, d.itemStmt = nil, nil, nil
	d.pending = 0
	if err != nil {
		return fmt.Errorf("committing baskets: %w", err)
	}
	return nil
}

// Add records that user bought product.
func (d *BasketDB) Add(user, product string) error {
	if d.tx == nil {
		if err := d.begin(); err != nil {
			return err
		}
	}

	seq, ok := d.users[user]
	if !ok {
		seq = int64(len(d.users))
		if _, err := d.userStmt.Exec(seq, user); err != nil {
			return fmt.Errorf("inserting customer %s: %w", user, err)
		}
		d.users[user] = seq
	}

	if _, err := d.itemStmt.Exec(seq, product); err != nil {
		return fmt.Errorf("inserting basket item: %w", err)
	}

	d.pending++
	if d.pending >= d.batchSize {
		return d.flush()
	}
	return nil
}

// Basket returns the products bought by user, or nil if user is unknown.
func (d *BasketDB) Basket(user string) ([]string, error) {
	seq, ok := d.users[user]
	if !ok {
		return nil, nil
	}
	if err := d.flush(); err != nil {
		return nil, err
	}

	rows, err := d.db.Query(`SELECT product_id FROM basket_items WHERE customer_seq = ? ORDER BY rowid`, seq)
	if err != nil {
		return nil, fmt.Errorf("querying basket: %w", err)
	}
	defer rows.Close()

	var products []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scanning basket item: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// Each calls fn once per customer in first-seen order. fn must not call
// back into the store.
func (d *BasketDB) Each(fn func(user string, products []string) error) error {
	if err := d.flush(); err != nil {
		return err
	}

	rows, err := d.db.Query(`
		SELECT c.user_id, b.product_id
		FROM basket_items b
		JOIN customers c ON c.seq = b.customer_seq
		ORDER BY b.customer_seq, b.rowid
	`)
	if err != nil {
		return fmt.Errorf("querying baskets: %w", err)
	}
	defer rows.Close()

	var current string
	var products []string
	started := false
	for rows.Next() {
		var user, product string
		if err := rows.Scan(&user, &product); err != nil {
			return fmt.Errorf("scanning basket item: %w", err)
		}
		if started && user != current {
			if err := fn(current, products); err != nil {
				return err
			}
			products = nil
		}
		current, started = user, true
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating baskets: %w", err)
	}
	if started {
		return fn(current, products)
	}
	return nil
}

// Customers returns the number of distinct customers.
func (d *BasketDB) Customers() int {
	return len(d.users)
}

// Close commits pending writes, closes the database and removes the file
// unless Keep was set.
func (d *BasketDB) Close() error {
	flushErr := d.flush()
	if err := d.db.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	if flushErr != nil {
		return flushErr
	}
	if !d.keep {
		if err := os.Remove(d.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing database: %w", err)
		}
	}
	return nil
}
