package rpc

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/ethgate/gateway/abi"
)

// Log mirrors the shape of an Ethereum log entry.
type Log struct {
	Address     common.Address `json:"address"`
	Topics      []common.Hash  `json:"topics"`
	Data        hexutil.Bytes  `json:"data"`
	BlockHash   *common.Hash   `json:"blockHash,omitempty"`
	BlockNumber *hexutil.Big   `json:"blockNumber,omitempty"`
	TxHash      *common.Hash   `json:"transactionHash,omitempty"`
	TxIndex     *hexutil.Uint  `json:"transactionIndex,omitempty"`
	LogIndex    *hexutil.Uint  `json:"logIndex,omitempty"`
	Removed     bool           `json:"removed,omitempty"`
}

// Filter describes an eth_getLogs query. Topic is a single hash or an
// ordered set of hashes (disjunction at that position); Origin is a single
// address or a list.
type Filter struct {
	FromBlock *BlockID
	ToBlock   *BlockID
	Topics    []abi.Topic
	Origin    []common.Address
	BlockHash *common.Hash
}

type wireFilter struct {
	FromBlock string            `json:"fromBlock,omitempty"`
	ToBlock   string            `json:"toBlock,omitempty"`
	Address   json.RawMessage   `json:"address,omitempty"`
	Topics    []json.RawMessage `json:"topics,omitempty"`
	BlockHash *common.Hash      `json:"blockhash,omitempty"`
}

// MarshalJSON implements json.Marshaler for the eth_getLogs filter object.
func (f Filter) MarshalJSON() ([]byte, error) {
	w := wireFilter{BlockHash: f.BlockHash}
	if f.FromBlock != nil {
		w.FromBlock = f.FromBlock.String()
	}
	if f.ToBlock != nil {
		w.ToBlock = f.ToBlock.String()
	}
	switch len(f.Origin) {
	case 0:
	case 1:
		addr, err := json.Marshal(f.Origin[0])
		if err != nil {
			return nil, err
		}
		w.Address = addr
	default:
		addrs, err := json.Marshal(f.Origin)
		if err != nil {
			return nil, err
		}
		w.Address = addrs
	}
	for _, topic := range f.Topics {
		raw, err := marshalTopic(topic)
		if err != nil {
			return nil, err
		}
		w.Topics = append(w.Topics, raw)
	}
	return json.Marshal(w)
}

func marshalTopic(t abi.Topic) (json.RawMessage, error) {
	switch len(t.Hashes) {
	case 0:
		return json.Marshal(nil)
	case 1:
		return json.Marshal(t.Hashes[0])
	default:
		return json.Marshal(t.Hashes)
	}
}
