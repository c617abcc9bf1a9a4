// Package redis provides a Redis-backed nonce ledger.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/whosthedumbass/sealer/store"
)

// ErrRedisClient indicates an underlying Redis client error.
var ErrRedisClient = errors.New("redis client error")

// Ledger is a Redis-based nonce ledger implementing the store.NonceLedger
// interface. Entries are stored as the millisecond Unix timestamp of their
// logical expiry, with Redis key expiration providing the store-level TTL.
type Ledger struct {
	rc     *goredis.Client
	prefix string
}

// New returns a new Ledger using the provided Redis client. Keys will be
// stored with the provided prefix.
func New(rc *goredis.Client, prefix string) *Ledger {
	return &Ledger{rc: rc, prefix: prefix}
}

func (rl *Ledger) nonceKey(id string) string {
	return fmt.Sprintf("%s:%s", rl.prefix, id)
}

// Put records the nonce via SETNX, returning store.ErrNonceExists if an
// entry is already live for this ID.
func (rl *Ledger) Put(ctx context.Context, id string, expiresAt time.Time, ttl time.Duration) error {
	val := strconv.FormatInt(expiresAt.UnixMilli(), 10)
	set, err := rl.rc.SetNX(ctx, rl.nonceKey(id), val, ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to store nonce to Redis (error: %v): %w", err, ErrRedisClient)
	}
	if !set {
		return store.ErrNonceExists
	}
	return nil
}

// Take removes the nonce via GETDEL and returns its recorded logical expiry.
// GETDEL is atomic, so concurrent redeemers of the same ID cannot both
// observe the entry.
func (rl *Ledger) Take(ctx context.Context, id string) (time.Time, error) {
	val, err := rl.rc.GetDel(ctx, rl.nonceKey(id)).Result()
	if err == goredis.Nil {
		return time.Time{}, store.ErrNonceNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to fetch nonce from Redis (error: %v): %w", err, ErrRedisClient)
	}
	ms, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse stored expiry %q (error: %v): %w", val, err, store.ErrInvalidStoredNonce)
	}
	return time.UnixMilli(ms), nil
}
