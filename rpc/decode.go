package rpc

import (
	"bytes"
	"encoding/json"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// response decoding is polymorphic: callers declare the expected shape and
// get UnexpectedError on mismatch.

var nullLiteral = []byte("null")

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, nullLiteral)
}

// ExpectUint decodes a hex-encoded unsigned integer. It also accepts a
// result shaped like an address or hash, reading it via its word
// representation.
func ExpectUint(raw json.RawMessage) (*big.Int, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, &UnexpectedError{Expecting: "uint", Got: raw}
	}
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		s = "0"
	}
	n, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, &UnexpectedError{Expecting: "uint", Got: raw}
	}
	return n, nil
}

// ExpectAddress decodes a single 20-byte address.
func ExpectAddress(raw json.RawMessage) (common.Address, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || !common.IsHexAddress(s) {
		return common.Address{}, &UnexpectedError{Expecting: "address", Got: raw}
	}
	return common.HexToAddress(s), nil
}

// ExpectAddresses decodes a list of addresses.
func ExpectAddresses(raw json.RawMessage) ([]common.Address, error) {
	if isNull(raw) {
		return nil, nil
	}
	var strs []string
	if err := json.Unmarshal(raw, &strs); err != nil {
		return nil, &UnexpectedError{Expecting: "address array", Got: raw}
	}
	out := make([]common.Address, 0, len(strs))
	for _, s := range strs {
		if !common.IsHexAddress(s) {
			return nil, &UnexpectedError{Expecting: "address array", Got: raw}
		}
		out = append(out, common.HexToAddress(s))
	}
	return out, nil
}

// ExpectHash decodes a single 32-byte hash.
func ExpectHash(raw json.RawMessage) (common.Hash, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return common.Hash{}, &UnexpectedError{Expecting: "hash", Got: raw}
	}
	if len(strings.TrimPrefix(s, "0x")) != 64 {
		return common.Hash{}, &UnexpectedError{Expecting: "hash", Got: raw}
	}
	return common.HexToHash(s), nil
}

// ExpectBytes decodes an arbitrary-length hex byte string.
func ExpectBytes(raw json.RawMessage) (hexutil.Bytes, error) {
	var b hexutil.Bytes
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, &UnexpectedError{Expecting: "bytes", Got: raw}
	}
	return b, nil
}

// ExpectLogs decodes an array of logs (empty array or null both decode to a
// nil/empty slice).
func ExpectLogs(raw json.RawMessage) ([]Log, error) {
	if isNull(raw) {
		return nil, nil
	}
	var logs []Log
	if err := json.Unmarshal(raw, &logs); err != nil {
		return nil, &UnexpectedError{Expecting: "log array", Got: raw}
	}
	return logs, nil
}

// ExpectNonNull reports whether the result is present (not null).
func ExpectNonNull(raw json.RawMessage) bool {
	return !isNull(raw)
}

// Receipt is the subset of an eth_getTransactionReceipt result this gateway
// needs to report transaction status.
type Receipt struct {
	BlockNumber *hexutil.Big `json:"blockNumber"`
	BlockHash   common.Hash  `json:"blockHash"`
	Status      *hexutil.Big `json:"status"`
	TxHash      common.Hash  `json:"transactionHash"`
}

// ExpectReceipt decodes a transaction receipt, or nil if the result is null
// (transaction not yet mined).
func ExpectReceipt(raw json.RawMessage) (*Receipt, error) {
	if isNull(raw) {
		return nil, nil
	}
	var r Receipt
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, &UnexpectedError{Expecting: "receipt", Got: raw}
	}
	return &r, nil
}

// Execution reports the receipt's execution result as "success", "failure"
// or "" when the status field is absent (pre-Byzantium nodes).
func (r *Receipt) Execution() string {
	if r == nil || r.Status == nil {
		return ""
	}
	if (*big.Int)(r.Status).Sign() == 0 {
		return "failure"
	}
	return "success"
}
