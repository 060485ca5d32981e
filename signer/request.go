package signer

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/ethgate/gateway/abi"
	gwtypes "github.com/ethgate/gateway/types"
)

// RequestKind tags which variant of the request union a Request carries.
type RequestKind string

const (
	KindSignRawTx    RequestKind = "sign-raw-tx"
	KindSignTxCall   RequestKind = "sign-tx-call"
	KindEncodeCall   RequestKind = "encode-call"
	KindSignToken    RequestKind = "sign-token"
	KindEncodeToken  RequestKind = "encode-token"
	KindGetContracts RequestKind = "get-contracts"
	KindGetAddress   RequestKind = "get-address"
	// KindGetTxStatus is recognized by the request union but is not served
	// by Signer itself: the HTTP front resolves it by querying the node for
	// the transaction's receipt and body, without calling Serve.
	KindGetTxStatus RequestKind = "get-tx-status"
)

// Request is the tagged union of everything a caller may ask the signer to
// do. Only the fields relevant to Kind are read.
type Request struct {
	Kind RequestKind

	// sign-raw-tx / sign-tx-call / encode-call / sign-token / encode-token
	To       *common.Address
	Value    *gwtypes.BigInt
	GasLimit uint64
	Data     []byte // sign-raw-tx only

	// CreateContract opts into signing a contract-creation transaction
	// (To left nil with no default substituted in). sign-raw-tx only.
	CreateContract bool

	// sign-tx-call / encode-call
	Function string
	Args     []abi.Value

	// sign-token / encode-token
	Token  string
	Values map[string]abi.Value

	// get-tx-status
	TxHash common.Hash
}
