package rpc

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Block is the non-full-transaction shape of an eth_getBlockByNumber
// result: transactions are reported as their hashes only, matching the
// `full:false` argument this gateway always sends.
type Block struct {
	Number     *hexutil.Big  `json:"number"`
	Hash       common.Hash   `json:"hash"`
	ParentHash common.Hash   `json:"parentHash"`
	Timestamp  *hexutil.Big  `json:"timestamp"`
	Txs        []common.Hash `json:"transactions"`
}

// ExpectBlock decodes an eth_getBlockByNumber result, or nil if the result
// is null (the requested block does not exist yet).
func ExpectBlock(raw json.RawMessage) (*Block, error) {
	if isNull(raw) {
		return nil, nil
	}
	var b Block
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, &UnexpectedError{Expecting: "block", Got: raw}
	}
	return &b, nil
}
