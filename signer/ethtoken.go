package signer

import (
	"fmt"

	"github.com/ethgate/gateway/abi"
)

// EthToken is a named, selector-less packed value tuple: a lightweight
// alternative to a full Function call, used for contracts that expect raw
// word-packed arguments with no 4-byte method discriminator.
type EthToken struct {
	Name   string
	Fields []abi.Param
}

// NoSuchTokenError is returned when a request names a token the signer
// does not know about.
type NoSuchTokenError struct {
	Name string
}

func (e *NoSuchTokenError) Error() string {
	return fmt.Sprintf("no such token %q", e.Name)
}

// MissingValError is returned when a named field has no supplied value.
type MissingValError struct {
	Name string
	Type abi.TokenType
}

func (e *MissingValError) Error() string {
	return fmt.Sprintf("missing required field %q of type %s", e.Name, e.Type)
}

// UnknownValError is returned when a supplied value names a field the token
// does not define.
type UnknownValError struct {
	Name string
}

func (e *UnknownValError) Error() string {
	return fmt.Sprintf("unknown field %q for token", e.Name)
}

// EthTokens is an immutable name -> EthToken registry.
type EthTokens struct {
	byName map[string]EthToken
}

// NewEthTokens builds a registry from the given tokens, keyed by name.
func NewEthTokens(tokens []EthToken) *EthTokens {
	m := make(map[string]EthToken, len(tokens))
	for _, t := range tokens {
		m[t.Name] = t
	}
	return &EthTokens{byName: m}
}

// Lookup returns the named token, or NoSuchTokenError.
func (t *EthTokens) Lookup(name string) (EthToken, error) {
	tok, ok := t.byName[name]
	if !ok {
		return EthToken{}, &NoSuchTokenError{Name: name}
	}
	return tok, nil
}

// Encode packs named values according to the token's declared field order.
// Every field must have a value, cast-compatible with its declared type;
// values naming a field the token does not define are rejected.
func (t EthToken) Encode(values map[string]abi.Value) ([]byte, error) {
	for name := range values {
		if !t.hasField(name) {
			return nil, &UnknownValError{Name: name}
		}
	}

	packed := make([]abi.Value, len(t.Fields))
	for i, field := range t.Fields {
		v, ok := values[field.Name]
		if !ok {
			return nil, &MissingValError{Name: field.Name, Type: field.Type}
		}
		cast, err := v.Cast(field.Type)
		if err != nil {
			return nil, &abi.ArgTypeError{Expecting: field.Type, Got: v.Type, Position: i}
		}
		packed[i] = cast
	}
	return abi.Pack(packed), nil
}

func (t EthToken) hasField(name string) bool {
	for _, f := range t.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}
