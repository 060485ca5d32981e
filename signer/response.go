package signer

import (
	"github.com/ethereum/go-ethereum/common"
)

// Response is the tagged union of Signer.Serve's results.
type Response struct {
	Kind RequestKind

	// sign-raw-tx / sign-tx-call
	RawTx []byte
	Hash  common.Hash

	// sign-token: the 65-byte packed ECDSA signature over the token's
	// word-packed digest.
	Signature []byte

	// encode-call / encode-token
	Encoded []byte

	// get-contracts
	Contracts []common.Address

	// get-address
	Address common.Address
}

// AsBytes projects whichever of address, hash, signature or raw/encoded
// bytes this response carries down to a single byte slice, in that
// preference order, for callers that only need the wire-relevant payload
// regardless of which request variant produced it.
func (r Response) AsBytes() []byte {
	switch {
	case r.Address != (common.Address{}):
		return r.Address.Bytes()
	case r.Hash != (common.Hash{}):
		return r.Hash.Bytes()
	case len(r.Signature) > 0:
		return r.Signature
	case len(r.RawTx) > 0:
		return r.RawTx
	default:
		return r.Encoded
	}
}
