package abi

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Param describes one input of an event or function.
type Param struct {
	Name    string
	Type    TokenType
	Indexed bool
}

// Event is an event specification: a name and an ordered list of typed,
// possibly-indexed inputs.
type Event struct {
	Name   string
	Inputs []Param
}

// canonicalSignature builds the "name(type,type,...)" string whose keccak256
// is the event signature / function selector source.
func canonicalSignature(name string, inputs []Param) string {
	types := make([]string, len(inputs))
	for i, p := range inputs {
		types[i] = string(p.Type)
	}
	return name + "(" + strings.Join(types, ",") + ")"
}

// Signature returns keccak256(name + "(" + join(",", types) + ")"), the
// first topic of any log emitted by this event.
func (e Event) Signature() common.Hash {
	return ethcrypto.Keccak256Hash([]byte(canonicalSignature(e.Name, e.Inputs)))
}

// IndexedInputs returns the event's inputs marked indexed, in declaration
// order.
func (e Event) IndexedInputs() []Param {
	var out []Param
	for _, p := range e.Inputs {
		if p.Indexed {
			out = append(out, p)
		}
	}
	return out
}
