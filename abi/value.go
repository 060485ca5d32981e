// Package abi implements the event-signature, function-selector and
// calldata/topic encoding conventions used by the target smart-contract
// platform: 32-byte word packing, keccak256 signatures and indexed event
// topics.
package abi

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// TokenType is one of the four value encodings this codec understands.
type TokenType string

const (
	TypeAddress TokenType = "address"
	TypeUint8   TokenType = "uint8"
	TypeUint256 TokenType = "uint256"
	TypeBytes32 TokenType = "bytes32"
)

// Word is the canonical 32-byte big-endian packed representation of a value.
type Word [32]byte

// Value carries one of the four token encodings alongside its canonical
// 32-byte word.
type Value struct {
	Type TokenType
	Word Word
}

// NewAddress builds a Value carrying an address, zero-left-padded to 32 bytes.
func NewAddress(addr common.Address) Value {
	var w Word
	copy(w[12:], addr.Bytes())
	return Value{Type: TypeAddress, Word: w}
}

// NewUint8 builds a Value carrying a uint8, zero-left-padded to 32 bytes.
func NewUint8(v uint8) Value {
	var w Word
	w[31] = v
	return Value{Type: TypeUint8, Word: w}
}

// NewUint256 builds a Value carrying a 256-bit unsigned integer. It errors if
// n is negative or does not fit in 256 bits.
func NewUint256(n *big.Int) (Value, error) {
	if n.Sign() < 0 {
		return Value{}, fmt.Errorf("uint256 value must not be negative: %s", n.String())
	}
	if n.BitLen() > 256 {
		return Value{}, fmt.Errorf("uint256 value overflows 256 bits: %s", n.String())
	}
	var w Word
	n.FillBytes(w[:])
	return Value{Type: TypeUint256, Word: w}, nil
}

// NewBytes32 builds a Value carrying a 32-byte hash, stored in natural order.
func NewBytes32(h common.Hash) Value {
	return Value{Type: TypeBytes32, Word: Word(h)}
}

// Address reads the value's word as an address, regardless of the value's
// declared type: address and hash are always readable as uint256 via the
// word representation, so any 32-byte word can be reinterpreted as an
// address by taking its low 20 bytes.
func (v Value) Address() common.Address {
	return common.BytesToAddress(v.Word[12:])
}

// Uint256 reads the value's word as a 256-bit unsigned integer.
func (v Value) Uint256() *big.Int {
	return new(big.Int).SetBytes(v.Word[:])
}

// Hash reads the value's word as a 32-byte hash.
func (v Value) Hash() common.Hash {
	return common.Hash(v.Word)
}

// Hex renders v in its canonical lower-case, 0x-prefixed hex form: address
// and bytes32 keep their natural fixed width, uint8/uint256 trim leading
// zero nibbles (but never to an empty string).
func (v Value) Hex() string {
	switch v.Type {
	case TypeAddress:
		return strings.ToLower(v.Address().Hex())
	case TypeBytes32:
		return v.Hash().Hex()
	default:
		return hexutil.EncodeBig(v.Uint256())
	}
}

// String implements fmt.Stringer so a Value renders as its canonical hex
// form wherever it is interpolated, notably inside event templates.
func (v Value) String() string {
	return v.Hex()
}

// Cast reinterprets v as the target token type. The cast succeeds only if
// v's bit pattern fits the target: a word with any of its top 31 bytes set
// cannot be cast down to uint8, and a word with its top 12 bytes set cannot
// be cast down to address. uint256 and bytes32 always accept any word.
func (v Value) Cast(t TokenType) (Value, error) {
	switch t {
	case TypeUint256, TypeBytes32:
		return Value{Type: t, Word: v.Word}, nil
	case TypeAddress:
		for _, b := range v.Word[:12] {
			if b != 0 {
				return Value{}, fmt.Errorf("value does not fit in address: %x", v.Word)
			}
		}
		return Value{Type: TypeAddress, Word: v.Word}, nil
	case TypeUint8:
		for _, b := range v.Word[:31] {
			if b != 0 {
				return Value{}, fmt.Errorf("value does not fit in uint8: %x", v.Word)
			}
		}
		return Value{Type: TypeUint8, Word: v.Word}, nil
	default:
		return Value{}, fmt.Errorf("unknown token type %q", t)
	}
}
