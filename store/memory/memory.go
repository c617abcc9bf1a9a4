// Package memory provides an in-memory nonce ledger.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/whosthedumbass/sealer/store"
)

// Ledger is a simple in-memory nonce ledger, for use in tests or single
// process deployments where an external store is not available.
//
// Eviction: Entries past their store-level retention deadline are garbage
// collected on entry to any Ledger method.
type Ledger struct {
	// Clock can be overridden in tests (e.g., to test eviction logic).
	Clock     func() time.Time
	mu        sync.Mutex
	items     map[string]time.Time
	evictions *evictionQueue
}

// New returns a new Ledger instance.
func New() *Ledger {
	return &Ledger{
		Clock:     func() time.Time { return time.Now() },
		items:     make(map[string]time.Time),
		evictions: newEvictionQueue(),
	}
}

func (ml *Ledger) evict(t time.Time) {
	for ml.evictions.Len() > 0 && ml.evictions.Peek().deadline.Before(t) {
		delete(ml.items, ml.evictions.Pop().id)
	}
}

// Put records the nonce with its logical expiry, retained for at most ttl,
// returning store.ErrNonceExists if an entry is already live for this ID.
func (ml *Ledger) Put(ctx context.Context, id string, expiresAt time.Time, ttl time.Duration) error {
	ml.mu.Lock()
	defer ml.mu.Unlock()
	t := ml.Clock()
	ml.evict(t)
	if _, ok := ml.items[id]; ok {
		return store.ErrNonceExists
	}
	ml.items[id] = expiresAt
	ml.evictions.Push(id, t.Add(ttl))
	return nil
}

// Take removes the nonce and returns its recorded logical expiry, returning
// store.ErrNonceNotFound if no live entry exists. The ledger mutex serializes
// concurrent redeemers, so at most one observes the entry.
func (ml *Ledger) Take(ctx context.Context, id string) (time.Time, error) {
	ml.mu.Lock()
	defer ml.mu.Unlock()
	ml.evict(ml.Clock())
	expiresAt, ok := ml.items[id]
	if !ok {
		return time.Time{}, store.ErrNonceNotFound
	}
	// Note: We let the evictions entry get cleaned up lazily.
	delete(ml.items, id)
	return expiresAt, nil
}
