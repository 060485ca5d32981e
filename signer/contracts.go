// Package signer holds a secp256k1 private key and signs whitelisted raw
// transactions, contract calls and packed "ethtoken" payloads. All
// configuration (whitelist, function specs, ethtoken specs, policy flags) is
// immutable for the lifetime of a Signer instance.
package signer

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Contracts is the target-address whitelist. An empty whitelist allows every
// address and carries no default; a non-empty whitelist requires its
// default, if any, to itself be whitelisted.
type Contracts struct {
	whitelist map[common.Address]struct{}
	ordered   []common.Address
	def       *common.Address
}

// NewContracts builds a whitelist from addrs. If addrs has exactly one
// member it becomes the implicit default, matching the convention that a
// single-contract signer needs no explicit default configuration.
func NewContracts(addrs []common.Address) *Contracts {
	c := &Contracts{whitelist: make(map[common.Address]struct{}, len(addrs))}
	for _, a := range addrs {
		if _, ok := c.whitelist[a]; ok {
			continue
		}
		c.whitelist[a] = struct{}{}
		c.ordered = append(c.ordered, a)
	}
	if len(c.ordered) == 1 {
		def := c.ordered[0]
		c.def = &def
	}
	return c
}

// SetDefault overrides the default contract, failing if addr is not itself
// whitelisted.
func (c *Contracts) SetDefault(addr common.Address) error {
	if !c.Contains(addr) {
		return fmt.Errorf("cannot set default address (not whitelisted)")
	}
	c.def = &addr
	return nil
}

// IsEmpty reports whether the whitelist has no entries, in which case every
// address is allowed.
func (c *Contracts) IsEmpty() bool { return len(c.whitelist) == 0 }

// Contains reports whether addr is an explicit whitelist entry.
func (c *Contracts) Contains(addr common.Address) bool {
	_, ok := c.whitelist[addr]
	return ok
}

// IsAllowed reports whether addr may be used as a signing target: either the
// whitelist is empty (everything allowed) or addr is an explicit entry.
func (c *Contracts) IsAllowed(addr common.Address) bool {
	return c.IsEmpty() || c.Contains(addr)
}

// Default returns the configured default contract, if any.
func (c *Contracts) Default() *common.Address {
	return c.def
}

// List returns the whitelist in insertion order.
func (c *Contracts) List() []common.Address {
	out := make([]common.Address, len(c.ordered))
	copy(out, c.ordered)
	return out
}
