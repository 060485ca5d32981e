package abi

import (
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Selector is the first four bytes of a function's canonical signature hash.
type Selector [4]byte

// Function is a function specification: a name, ordered typed inputs and
// whether it accepts a nonzero value.
type Function struct {
	Name    string
	Inputs  []Param
	Payable bool
}

// Selector computes the function selector: the first 4 bytes of
// keccak256(sig_string).
func (f Function) Selector() Selector {
	hash := ethcrypto.Keccak256([]byte(canonicalSignature(f.Name, f.Inputs)))
	var sel Selector
	copy(sel[:], hash[:4])
	return sel
}
