// Package store and its subpackages provide nonce ledger storage for use by
// the sealing service.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNonceNotFound indicates that the provided nonce ID does not map to
	// any live ledger entry (never issued, already redeemed, or expired out
	// of the store).
	ErrNonceNotFound = errors.New("nonce not found")
	// ErrNonceExists indicates that the provided nonce ID already maps to a
	// live ledger entry.
	ErrNonceExists = errors.New("nonce exists")
	// ErrInvalidStoredNonce indicates that the ledger entry fetched from
	// storage is malformed and cannot be used (e.g., a corrupt expiry value).
	ErrInvalidStoredNonce = errors.New("invalid stored nonce")
)

// NonceLedger represents an abstract single-use nonce store. See the redis,
// memory, and sqlite subpackages for concrete implementations thereof.
//
// The store-level TTL passed to Put is deliberately looser than the logical
// validity window recorded in expiresAt: the store bounds retention, while
// callers enforce the tighter logical window against the value returned by
// Take.
type NonceLedger interface {
	// Put records a new nonce with its logical expiry, retained for at most
	// ttl. Returns ErrNonceExists if the ID is already live.
	Put(ctx context.Context, id string, expiresAt time.Time, ttl time.Duration) error
	// Take atomically removes the nonce and returns its recorded logical
	// expiry. At most one concurrent caller can observe success for a given
	// ID. Returns ErrNonceNotFound if the ID is not live.
	Take(ctx context.Context, id string) (time.Time, error)
}
