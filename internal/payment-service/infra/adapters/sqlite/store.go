// Package sqlite is the durable ledger and payment event log, backed by the
// pure-Go modernc SQLite driver.
//
// The orders table is keyed by order_id and written only through an upsert
// whose update branch is guarded so that a row leaves "pending" at most once.
// payment_events is append-only.
package sqlite

import (
	"database/sql"
	"fmt"

	// modernc.org/sqlite needs no CGO, so the service builds on Alpine as-is.
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS orders (
    order_id               TEXT PRIMARY KEY,

    -- JSON snapshots taken at order time; never rewritten.
    customer_snapshot      TEXT NOT NULL,
    cart_snapshot          TEXT NOT NULL,

    -- Decimal amounts stored as TEXT to keep exact paise.
    sub_total              TEXT NOT NULL,
    taxes                  TEXT NOT NULL,
    total_amount           TEXT NOT NULL,

    payment_method         TEXT NOT NULL,
    payment_status         TEXT NOT NULL CHECK (payment_status IN ('pending', 'completed', 'failed')),
    gateway_transaction_id TEXT NOT NULL DEFAULT '',

    created_at             TEXT NOT NULL,
    updated_at             TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(payment_status, updated_at);

CREATE TABLE IF NOT EXISTS payment_events (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    order_id    TEXT NOT NULL,
    kind        TEXT NOT NULL,
    status      TEXT NOT NULL DEFAULT '',
    detail      TEXT NOT NULL DEFAULT '',
    trace_id    TEXT NOT NULL DEFAULT '',
    span_id     TEXT NOT NULL DEFAULT '',
    created_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_payment_events_order ON payment_events(order_id, id);
CREATE INDEX IF NOT EXISTS idx_payment_events_trace ON payment_events(trace_id);
`

// Store implements ports.Ledger and paymentlog.Repository over one database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
//
//	store, err := sqlite.Open("./data/ledger.db")
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}

	// One writer connection serialises upserts, so a terminal status written by
	// one request is visible to the next read.
	db.SetMaxOpenConns(1)

	if err := applySchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping is used by the health check.
func (s *Store) Ping() error {
	return s.db.Ping()
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return nil
}
