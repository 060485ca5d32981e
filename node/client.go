// Package node wraps the multiplexed JSON-RPC transport in a typed
// eth_* method surface, plus the in-order block/log stream helpers that
// the signer-proxy's caches and the event-log callback engine build on.
package node

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/ethgate/gateway/rpc"
)

// Client is the typed eth_* surface over a multiplexed rpc.Transport.
type Client struct {
	t *rpc.Transport
}

// NewClient wraps an already-dialed transport.
func NewClient(t *rpc.Transport) *Client {
	return &Client{t: t}
}

// GetLogs issues eth_getLogs for filter.
func (c *Client) GetLogs(ctx context.Context, filter rpc.Filter) ([]rpc.Log, error) {
	raw, err := c.t.Call(ctx, rpc.MethodGetLogs, filter)
	if err != nil {
		return nil, err
	}
	return rpc.ExpectLogs(raw)
}

// GetBlockByNumber issues eth_getBlockByNumber with full=false: transactions
// are reported as hashes only.
func (c *Client) GetBlockByNumber(ctx context.Context, id rpc.BlockID) (*rpc.Block, error) {
	raw, err := c.t.Call(ctx, rpc.MethodGetBlockByNumber, []any{id, false})
	if err != nil {
		return nil, err
	}
	return rpc.ExpectBlock(raw)
}

// GetTransactionByHash issues eth_getTransactionByHash.
func (c *Client) GetTransactionByHash(ctx context.Context, hash common.Hash) (*rpc.TxInfo, error) {
	raw, err := c.t.Call(ctx, rpc.MethodGetTransactionByHash, hash)
	if err != nil {
		return nil, err
	}
	return rpc.ExpectTxInfo(raw)
}

// GetTransactionReceipt issues eth_getTransactionReceipt.
func (c *Client) GetTransactionReceipt(ctx context.Context, hash common.Hash) (*rpc.Receipt, error) {
	raw, err := c.t.Call(ctx, rpc.MethodGetTransactionReceipt, hash)
	if err != nil {
		return nil, err
	}
	return rpc.ExpectReceipt(raw)
}

// GetBalance issues eth_getBalance at the given block.
func (c *Client) GetBalance(ctx context.Context, addr common.Address, block rpc.BlockID) (*big.Int, error) {
	raw, err := c.t.Call(ctx, rpc.MethodGetBalance, []any{addr, block})
	if err != nil {
		return nil, err
	}
	return rpc.ExpectUint(raw)
}

// GetTransactionCount issues eth_getTransactionCount at the given block,
// the source of a fresh nonce for the nonce cache.
func (c *Client) GetTransactionCount(ctx context.Context, addr common.Address, block rpc.BlockID) (*big.Int, error) {
	raw, err := c.t.Call(ctx, rpc.MethodGetTransactionCount, []any{addr, block})
	if err != nil {
		return nil, err
	}
	return rpc.ExpectUint(raw)
}

// CallArgs is the eth_call / eth_estimateGas transaction-like argument
// object: unlike a signed transaction body, fields are all optional.
type CallArgs struct {
	From     *common.Address `json:"from,omitempty"`
	To       *common.Address `json:"to,omitempty"`
	Gas      *hexutil.Uint64 `json:"gas,omitempty"`
	GasPrice *hexutil.Big    `json:"gasPrice,omitempty"`
	Value    *hexutil.Big    `json:"value,omitempty"`
	Data     hexutil.Bytes   `json:"data,omitempty"`
}

// EstimateGas issues eth_estimateGas.
func (c *Client) EstimateGas(ctx context.Context, args CallArgs) (*big.Int, error) {
	raw, err := c.t.Call(ctx, rpc.MethodEstimateGas, args)
	if err != nil {
		return nil, err
	}
	return rpc.ExpectUint(raw)
}

// Call issues eth_call at the given block.
func (c *Client) Call(ctx context.Context, args CallArgs, block rpc.BlockID) (hexutil.Bytes, error) {
	raw, err := c.t.Call(ctx, rpc.MethodCall, []any{args, block})
	if err != nil {
		return nil, err
	}
	return rpc.ExpectBytes(raw)
}

// SendRawTransaction issues eth_sendRawTransaction and returns the resulting
// transaction hash.
func (c *Client) SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error) {
	res, err := c.t.Call(ctx, rpc.MethodSendRawTransaction, hexutil.Bytes(raw))
	if err != nil {
		return common.Hash{}, err
	}
	return rpc.ExpectHash(res)
}

// BlockNumber issues eth_blockNumber.
func (c *Client) BlockNumber(ctx context.Context) (*big.Int, error) {
	raw, err := c.t.Call(ctx, rpc.MethodBlockNumber, nil)
	if err != nil {
		return nil, err
	}
	return rpc.ExpectUint(raw)
}

// GasPrice issues eth_gasPrice.
func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	raw, err := c.t.Call(ctx, rpc.MethodGasPrice, nil)
	if err != nil {
		return nil, err
	}
	return rpc.ExpectUint(raw)
}

// Accounts issues eth_accounts.
func (c *Client) Accounts(ctx context.Context) ([]common.Address, error) {
	raw, err := c.t.Call(ctx, rpc.MethodAccounts, nil)
	if err != nil {
		return nil, err
	}
	return rpc.ExpectAddresses(raw)
}
