// Package sqlite provides a SQLite-backed nonce ledger, for single-node
// deployments where Redis is not available but nonces must survive restarts.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/whosthedumbass/sealer/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS nonces (
	id         TEXT PRIMARY KEY,
	expires_at INTEGER NOT NULL,
	purge_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS nonces_purge_at ON nonces (purge_at);
`

// Ledger is a SQLite-based nonce ledger implementing the store.NonceLedger
// interface. Timestamps are stored as millisecond Unix values. Rows past
// their store-level retention deadline are purged lazily on Put.
type Ledger struct {
	// Clock can be overridden in tests.
	Clock func() time.Time
	db    *sql.DB
}

// New returns a new Ledger backed by the provided database, creating the
// nonces table if it does not exist.
func New(db *sql.DB) (*Ledger, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to initialize nonce schema: %w", err)
	}
	return &Ledger{
		Clock: func() time.Time { return time.Now() },
		db:    db,
	}, nil
}

// Put records the nonce, returning store.ErrNonceExists if an entry is
// already live for this ID. Entries past their retention deadline are purged
// first, so a reissued ID is only a conflict while the old row is live.
func (sl *Ledger) Put(ctx context.Context, id string, expiresAt time.Time, ttl time.Duration) error {
	now := sl.Clock()
	if _, err := sl.db.ExecContext(ctx, `DELETE FROM nonces WHERE purge_at <= ?`, now.UnixMilli()); err != nil {
		return fmt.Errorf("failed to purge expired nonces: %w", err)
	}
	_, err := sl.db.ExecContext(ctx, `INSERT INTO nonces (id, expires_at, purge_at) VALUES (?, ?, ?)`,
		id, expiresAt.UnixMilli(), now.Add(ttl).UnixMilli())
	var serr sqlite3.Error
	if errors.As(err, &serr) && serr.Code == sqlite3.ErrConstraint {
		return store.ErrNonceExists
	}
	if err != nil {
		return fmt.Errorf("failed to store nonce: %w", err)
	}
	return nil
}

// Take removes the nonce and returns its recorded logical expiry. The
// delete-returning statement is a single atomic operation, so concurrent
// redeemers of the same ID cannot both observe the row.
func (sl *Ledger) Take(ctx context.Context, id string) (time.Time, error) {
	var ms int64
	err := sl.db.QueryRowContext(ctx,
		`DELETE FROM nonces WHERE id = ? AND purge_at > ? RETURNING expires_at`,
		id, sl.Clock().UnixMilli()).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, store.ErrNonceNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to take nonce: %w", err)
	}
	return time.UnixMilli(ms), nil
}
