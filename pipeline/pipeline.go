// Package pipeline serializes transaction-generating signer requests into
// a single in-flight job at a time: seed nonce & gas price concurrently,
// sign, broadcast, then advance the nonce cache on success.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ethgate/gateway/cache"
	"github.com/ethgate/gateway/chainutil"
	"github.com/ethgate/gateway/log"
	"github.com/ethgate/gateway/signer"
)

// TxSender broadcasts a raw signed transaction and returns its hash, as
// reported by the upstream node (e.g. eth_sendRawTransaction).
type TxSender func(ctx context.Context, raw []byte) (common.Hash, error)

// job is one queued signing request awaiting a result.
type job struct {
	ctx  context.Context
	kind signer.RequestKind
	tx   signer.Transaction
	resp chan result
}

type result struct {
	hash common.Hash
	raw  []byte
	err  error
}

// Pipeline is a FIFO, single-consumer transaction signing/broadcast queue.
// Only one job is ever "in flight" (seeding, signing, or sending) at a time;
// queued jobs wait their turn.
type Pipeline struct {
	signer     *signer.Signer
	from       common.Address
	nodeKey    string
	nonceCache *cache.NonceCache
	priceCache *cache.PriceCache
	send       TxSender

	jobs   chan job
	closed chan struct{}
	once   sync.Once
}

// New builds a Pipeline and starts its consumer goroutine; the returned
// Pipeline is immediately usable.
func New(s *signer.Signer, nodeKey string, nonceCache *cache.NonceCache, priceCache *cache.PriceCache, send TxSender) *Pipeline {
	p := &Pipeline{
		signer:     s,
		from:       s.Address(),
		nodeKey:    nodeKey,
		nonceCache: nonceCache,
		priceCache: priceCache,
		send:       send,
		jobs:       make(chan job, 64),
		closed:     make(chan struct{}),
	}
	go p.run()
	return p
}

// Close stops the consumer goroutine; queued and future Submit calls fail
// with ErrClosed.
func (p *Pipeline) Close() {
	p.once.Do(func() { close(p.closed) })
}

// ErrClosed is returned by Submit once the pipeline has been closed.
var ErrClosed = errors.New("pipeline closed")

// Submit enqueues a signing request and blocks until it is seeded, signed
// and broadcast, or ctx is canceled. Requests are served strictly in
// submission order.
func (p *Pipeline) Submit(ctx context.Context, kind signer.RequestKind, tx signer.Transaction) (raw []byte, hash common.Hash, err error) {
	j := job{ctx: ctx, kind: kind, tx: tx, resp: make(chan result, 1)}
	select {
	case p.jobs <- j:
	case <-p.closed:
		return nil, common.Hash{}, ErrClosed
	case <-ctx.Done():
		return nil, common.Hash{}, ctx.Err()
	}

	select {
	case r := <-j.resp:
		return r.raw, r.hash, r.err
	case <-p.closed:
		return nil, common.Hash{}, ErrClosed
	case <-ctx.Done():
		return nil, common.Hash{}, ctx.Err()
	}
}

func (p *Pipeline) run() {
	for {
		select {
		case j := <-p.jobs:
			r := p.process(j)
			j.resp <- r
		case <-p.closed:
			return
		}
	}
}

// process drives one job through Seed -> Sign -> Send, retrying the
// broadcast up to three more times with linear backoff, and canceling both
// caches (inflight loaders and cached values) on any failure so a later job
// does not observe a stale nonce or price.
func (p *Pipeline) process(j job) result {
	ctx := j.ctx

	nonce, price, err := p.seed(ctx)
	if err != nil {
		p.nonceCache.Cancel(p.from)
		p.priceCache.Cancel(p.nodeKey)
		return result{err: fmt.Errorf("seed transaction: %w", err)}
	}

	resp, err := p.signer.SeedAndSign(j.kind, j.tx, nonce.Uint64(), price)
	if err != nil {
		p.nonceCache.Cancel(p.from)
		p.priceCache.Cancel(p.nodeKey)
		return result{err: fmt.Errorf("sign transaction: %w", err)}
	}

	hash, err := chainutil.Retry(ctx, 3, 127*time.Millisecond, func(ctx context.Context) (common.Hash, error) {
		return p.send(ctx, resp.RawTx)
	})
	if err != nil {
		p.nonceCache.Cancel(p.from)
		p.priceCache.Cancel(p.nodeKey)
		return result{err: fmt.Errorf("broadcast transaction: %w", err)}
	}

	p.nonceCache.Increment(p.from)
	log.Debugw("broadcast transaction", "hash", hash.Hex(), "nonce", nonce.String())
	return result{raw: resp.RawTx, hash: hash}
}

// seed polls the nonce and gas-price caches concurrently and waits for both.
func (p *Pipeline) seed(ctx context.Context) (*big.Int, *big.Int, error) {
	var nonce, price *big.Int
	var nonceErr, priceErr error

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		nonce, nonceErr = p.nonceCache.Poll(ctx, p.from)
	}()
	go func() {
		defer wg.Done()
		price, priceErr = p.priceCache.Poll(ctx, p.nodeKey)
	}()
	wg.Wait()

	if nonceErr != nil {
		return nil, nil, nonceErr
	}
	if priceErr != nil {
		return nil, nil, priceErr
	}
	return nonce, price, nil
}
