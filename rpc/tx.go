package rpc

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// TxInfo is the subset of an eth_getTransactionByHash result this gateway
// needs: enough to tell a transaction the node has never seen (result is
// null) from one sitting in the mempool (result is non-null, BlockHash
// nil) from one already included in a block.
type TxInfo struct {
	Hash      common.Hash  `json:"hash"`
	BlockHash *common.Hash `json:"blockHash"`
	BlockNum  *hexutil.Big `json:"blockNumber"`
}

// ExpectTxInfo decodes an eth_getTransactionByHash result, or nil if the
// node has never seen this transaction hash.
func ExpectTxInfo(raw json.RawMessage) (*TxInfo, error) {
	if isNull(raw) {
		return nil, nil
	}
	var t TxInfo
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, &UnexpectedError{Expecting: "transaction", Got: raw}
	}
	return &t, nil
}
