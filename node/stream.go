package node

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethgate/gateway/chainutil"
	"github.com/ethgate/gateway/rpc"
)

// AwaitBlockNumber polls eth_blockNumber every poll until the reported
// height is at least n.
func (c *Client) AwaitBlockNumber(ctx context.Context, n *big.Int, poll time.Duration) error {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		current, err := c.BlockNumber(ctx)
		if err != nil {
			return err
		}
		if current.Cmp(n) >= 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// AwaitBlock polls eth_getBlockByNumber(id) every poll until the block is
// non-null.
func (c *Client) AwaitBlock(ctx context.Context, id rpc.BlockID, poll time.Duration) (*rpc.Block, error) {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		block, err := c.GetBlockByNumber(ctx, id)
		if err != nil {
			return nil, err
		}
		if block != nil {
			return block, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// BlockStream yields blocks start, start+1, ... in strict order: block k is
// not requested until the chain height reaches at least k+lag. Each item is
// fully delivered before the next is started. The returned channel is
// closed when ctx is canceled or the stream hits an unrecoverable error,
// which is then sent on errCh.
func (c *Client) BlockStream(ctx context.Context, start *big.Int, poll time.Duration, lag uint8) (<-chan *rpc.Block, <-chan error) {
	out := make(chan *rpc.Block)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		block := new(big.Int).Set(start)
		for {
			notBefore := new(big.Int).Add(block, big.NewInt(int64(lag)))
			if err := c.AwaitBlockNumber(ctx, notBefore, poll); err != nil {
				errCh <- err
				return
			}
			b, err := c.AwaitBlock(ctx, rpc.AtBigNumber(block), poll)
			if err != nil {
				errCh <- err
				return
			}
			select {
			case out <- b:
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
			block = chainutil.Increment256(block)
		}
	}()
	return out, errCh
}

// LogBatch is one block's worth of logs, as delivered by LogStream.
type LogBatch struct {
	Block *big.Int
	Logs  []rpc.Log
}

// LogStream yields (block, logs) pairs in strict block order, applying the
// same lag sequencing as BlockStream. filter's FromBlock/ToBlock are
// overwritten per-block; its Topics and Origin are preserved.
func (c *Client) LogStream(ctx context.Context, start *big.Int, poll time.Duration, filter rpc.Filter, lag uint8) (<-chan LogBatch, <-chan error) {
	out := make(chan LogBatch)
	errCh := make(chan error, 1)
	base := rpc.Filter{Topics: filter.Topics, Origin: filter.Origin}
	go func() {
		defer close(out)
		block := new(big.Int).Set(start)
		for {
			notBefore := new(big.Int).Add(block, big.NewInt(int64(lag)))
			if err := c.AwaitBlockNumber(ctx, notBefore, poll); err != nil {
				errCh <- err
				return
			}

			target := rpc.AtBigNumber(block)
			perBlock := base
			perBlock.FromBlock = &target
			perBlock.ToBlock = &target
			logs, err := c.GetLogs(ctx, perBlock)
			if err != nil {
				errCh <- err
				return
			}
			assertLogsAtBlock(logs, block)

			select {
			case out <- LogBatch{Block: new(big.Int).Set(block), Logs: logs}:
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
			block = chainutil.Increment256(block)
		}
	}()
	return out, errCh
}

// assertLogsAtBlock is the debug-build invariant check from the source
// implementation: every log eth_getLogs returns for a from=to=k filter
// must itself report block number k.
func assertLogsAtBlock(logs []rpc.Log, block *big.Int) {
	for _, l := range logs {
		if l.BlockNumber == nil {
			continue
		}
		if (*big.Int)(l.BlockNumber).Cmp(block) != 0 {
			panic(fmt.Sprintf("log_stream: log at block %s returned for block %s query", (*big.Int)(l.BlockNumber).String(), block.String()))
		}
	}
}

// LatestLogs bundles the logs included in "latest" for a given block height
// alongside a single poll of the "pending" queue, taken once per block to
// reduce (but not eliminate) duplication/loss inherent in watching pending.
type LatestLogs struct {
	BlockNumber *big.Int
	Included    []rpc.Log
	Pending     []rpc.Log
}

// All iterates included logs followed by pending logs.
func (l LatestLogs) All() []rpc.Log {
	out := make([]rpc.Log, 0, len(l.Included)+len(l.Pending))
	out = append(out, l.Included...)
	out = append(out, l.Pending...)
	return out
}

// StreamLogsLatest starts at the current chain head and, per block, fetches
// both latest and pending logs concurrently. It takes no lag: block k is
// fetched as soon as the chain height reaches k, and neither the latest nor
// the pending fetch is lag-gated.
func (c *Client) StreamLogsLatest(ctx context.Context, poll time.Duration, filter rpc.Filter) (<-chan LatestLogs, <-chan error) {
	out := make(chan LatestLogs)
	errCh := make(chan error, 1)
	base := rpc.Filter{Topics: filter.Topics, Origin: filter.Origin}
	go func() {
		defer close(out)
		start, err := c.BlockNumber(ctx)
		if err != nil {
			errCh <- err
			return
		}
		block := start
		pendingTag := rpc.Pending()
		pendingFilter := base
		pendingFilter.FromBlock = &pendingTag
		pendingFilter.ToBlock = &pendingTag

		for {
			if err := c.AwaitBlockNumber(ctx, block, poll); err != nil {
				errCh <- err
				return
			}

			target := rpc.AtBigNumber(block)
			latestFilter := base
			latestFilter.FromBlock = &target
			latestFilter.ToBlock = &target

			type latestResult struct {
				logs []rpc.Log
				err  error
			}
			type pendingResult struct {
				logs []rpc.Log
				err  error
			}
			latestCh := make(chan latestResult, 1)
			pendingCh := make(chan pendingResult, 1)
			go func() {
				logs, err := c.GetLogs(ctx, latestFilter)
				latestCh <- latestResult{logs, err}
			}()
			go func() {
				logs, err := c.GetLogs(ctx, pendingFilter)
				pendingCh <- pendingResult{logs, err}
			}()
			lr := <-latestCh
			pr := <-pendingCh
			if lr.err != nil {
				errCh <- lr.err
				return
			}
			if pr.err != nil {
				errCh <- pr.err
				return
			}
			assertLogsAtBlock(lr.logs, block)

			item := LatestLogs{BlockNumber: new(big.Int).Set(block), Included: lr.logs, Pending: pr.logs}
			select {
			case out <- item:
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
			block = chainutil.Increment256(block)
		}
	}()
	return out, errCh
}
