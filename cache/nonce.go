// Package cache implements the nonce and gas-price caches sitting in front
// of the transaction pipeline: short-lived, at-most-one-inflight-loader
// values keyed by account (nonce) or upstream node (gas price).
package cache

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ethgate/gateway/chainutil"
	"github.com/ethgate/gateway/log"
)

// NonceMaxAge is how long a cached nonce remains valid without use before a
// fresh lookup is forced.
const NonceMaxAge = 127 * time.Second

const nonceLoadRetries = 3
const nonceLoadBackoffUnit = 127 * time.Millisecond

// NonceLoader fetches the current transaction count for addr from the
// upstream node (eth_getTransactionCount at the "latest" tag).
type NonceLoader func(ctx context.Context, addr common.Address) (*big.Int, error)

type nonceEntry struct {
	mu      sync.Mutex
	lastUse time.Time
	current *big.Int

	loading  bool
	loadErr  error
	loadDone chan struct{}
}

// NonceCache caches the next usable nonce per account, with at most one
// loader inflight per account at a time.
type NonceCache struct {
	loader  NonceLoader
	entries *lru.Cache[common.Address, *nonceEntry]
}

// NewNonceCache builds a cache that tracks up to capacity distinct accounts.
func NewNonceCache(loader NonceLoader, capacity int) (*NonceCache, error) {
	entries, err := lru.New[common.Address, *nonceEntry](capacity)
	if err != nil {
		return nil, fmt.Errorf("create nonce cache: %w", err)
	}
	return &NonceCache{loader: loader, entries: entries}, nil
}

func (c *NonceCache) entryFor(addr common.Address) *nonceEntry {
	if e, ok := c.entries.Get(addr); ok {
		return e
	}
	e := &nonceEntry{}
	c.entries.Add(addr, e)
	return e
}

// Poll returns the account's current cached nonce, loading it from the
// upstream node if the cache has expired or was never populated. Concurrent
// callers for the same account share a single inflight load.
func (c *NonceCache) Poll(ctx context.Context, addr common.Address) (*big.Int, error) {
	e := c.entryFor(addr)

	e.mu.Lock()
	if nonce, ok := e.cachedLocked(); ok {
		e.mu.Unlock()
		return nonce, nil
	}

	if e.loading {
		done := e.loadDone
		e.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.loadErr != nil {
			return nil, e.loadErr
		}
		if nonce, ok := e.cachedLocked(); ok {
			return nonce, nil
		}
		return nil, fmt.Errorf("nonce load completed with no value")
	}

	e.loading = true
	e.loadDone = make(chan struct{})
	e.mu.Unlock()

	nonce, err := chainutil.Retry(ctx, nonceLoadRetries, nonceLoadBackoffUnit, func(ctx context.Context) (*big.Int, error) {
		return c.loader(ctx, addr)
	})

	e.mu.Lock()
	e.loading = false
	if err != nil {
		log.Warnw("failed to load nonce", "address", addr.Hex(), "error", err)
		e.loadErr = err
		done := e.loadDone
		e.mu.Unlock()
		close(done)
		return nil, err
	}
	e.loadErr = nil
	e.setCurrentLocked(nonce)
	done := e.loadDone
	e.mu.Unlock()
	close(done)
	return nonce, nil
}

// Increment advances the cached nonce by one after a transaction using it
// has been broadcast successfully. It is a no-op if no value is cached.
func (c *NonceCache) Increment(addr common.Address) {
	e := c.entryFor(addr)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return
	}
	e.current = chainutil.Increment256(e.current)
	e.lastUse = time.Now()
}

// Cancel drops any inflight load and the cached nonce for addr, forcing the
// next Poll to start a fresh one. It must be called whenever a caller
// abandons a Poll it no longer cares about, so a later Poll does not observe
// a stale in-flight result.
func (c *NonceCache) Cancel(addr common.Address) {
	e := c.entryFor(addr)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.loading {
		e.loading = false
	}
	e.current = nil
}

func (e *nonceEntry) cachedLocked() (*big.Int, bool) {
	if e.current == nil {
		return nil, false
	}
	if time.Since(e.lastUse) > NonceMaxAge {
		e.current = nil
		return nil, false
	}
	return e.current, true
}

func (e *nonceEntry) setCurrentLocked(nonce *big.Int) {
	if e.current != nil && e.current.Cmp(nonce) > 0 {
		log.Warnw("overwriting current nonce with lower value", "previous", e.current.String(), "new", nonce.String())
	}
	e.lastUse = time.Now()
	e.current = nonce
}
