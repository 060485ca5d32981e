package cache

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ethgate/gateway/chainutil"
	"github.com/ethgate/gateway/log"
)

// PriceMaxAge is how long a cached gas price remains valid before a fresh
// lookup is forced.
const PriceMaxAge = 41 * time.Second

const priceLoadRetries = 3
const priceLoadBackoffUnit = 127 * time.Millisecond

// PriceLoader fetches the current suggested gas price from an upstream
// node, identified by key (e.g. its endpoint URL).
type PriceLoader func(ctx context.Context, key string) (*big.Int, error)

type priceEntry struct {
	mu         sync.Mutex
	lastUpdate time.Time
	current    *big.Int

	loading  bool
	loadErr  error
	loadDone chan struct{}
}

// PriceCache caches a slightly-padded gas price per upstream node, with at
// most one loader inflight per node at a time. Every freshly loaded price is
// bumped by one wei above the node's quote, to outbid a price that might
// have risen between the quote and the broadcast.
type PriceCache struct {
	loader  PriceLoader
	entries *lru.Cache[string, *priceEntry]
}

// NewPriceCache builds a cache that tracks up to capacity distinct nodes.
func NewPriceCache(loader PriceLoader, capacity int) (*PriceCache, error) {
	entries, err := lru.New[string, *priceEntry](capacity)
	if err != nil {
		return nil, fmt.Errorf("create price cache: %w", err)
	}
	return &PriceCache{loader: loader, entries: entries}, nil
}

func (c *PriceCache) entryFor(key string) *priceEntry {
	if e, ok := c.entries.Get(key); ok {
		return e
	}
	e := &priceEntry{}
	c.entries.Add(key, e)
	return e
}

// Poll returns the node's current cached price, loading and bumping a fresh
// quote if the cache has expired or was never populated. Concurrent callers
// for the same node share a single inflight load.
func (c *PriceCache) Poll(ctx context.Context, key string) (*big.Int, error) {
	e := c.entryFor(key)

	e.mu.Lock()
	if price, ok := e.cachedLocked(); ok {
		e.mu.Unlock()
		return price, nil
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
		if price, ok := e.cachedLocked(); ok {
			return price, nil
		}
		return nil, fmt.Errorf("price load completed with no value")
	}

	e.loading = true
	e.loadDone = make(chan struct{})
	e.mu.Unlock()

	price, err := chainutil.Retry(ctx, priceLoadRetries, priceLoadBackoffUnit, func(ctx context.Context) (*big.Int, error) {
		return c.loader(ctx, key)
	})

	e.mu.Lock()
	e.loading = false
	if err != nil {
		log.Warnw("failed to load price", "node", key, "error", err)
		e.loadErr = err
		done := e.loadDone
		e.mu.Unlock()
		close(done)
		return nil, err
	}
	e.loadErr = nil
	bumped := chainutil.Increment256(price)
	e.lastUpdate = time.Now()
	e.current = bumped
	done := e.loadDone
	e.mu.Unlock()
	close(done)
	return bumped, nil
}

// Cancel drops any inflight load and the cached price for key, forcing the
// next Poll to start a fresh one.
func (c *PriceCache) Cancel(key string) {
	e := c.entryFor(key)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.loading {
		e.loading = false
	}
	e.current = nil
}

func (e *priceEntry) cachedLocked() (*big.Int, bool) {
	if e.current == nil {
		return nil, false
	}
	if time.Since(e.lastUpdate) > PriceMaxAge {
		e.current = nil
		return nil, false
	}
	return e.current, true
}
