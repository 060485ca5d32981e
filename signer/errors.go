package signer

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ErrRawSigningDisabled is returned by Serve for sign-raw-tx requests when
// the signer was configured with AllowRawSigning=false.
var ErrRawSigningDisabled = fmt.Errorf("raw tx signing disabled")

// ErrCreationDisabled is returned for a sign-raw-tx request that sets
// CreateContract with no To when the signer was configured with
// AllowContractCreation=false.
var ErrCreationDisabled = fmt.Errorf("contract-creation signing disabled")

// ErrMissingTo is returned when a request requires an explicit or default
// target contract and neither is available.
var ErrMissingTo = fmt.Errorf("missing required field `to` and no default contract configured")

// NotWhitelistedError is returned when a request's target contract is not
// in the signer's whitelist.
type NotWhitelistedError struct {
	Address common.Address
}

func (e *NotWhitelistedError) Error() string {
	return fmt.Sprintf("address %s not in contract whitelist", e.Address.Hex())
}

// NonpayableValueError is returned when a call to a non-payable function
// carries a nonzero value.
type NonpayableValueError struct {
	Function string
}

func (e *NonpayableValueError) Error() string {
	return fmt.Sprintf("nonzero value in call to non-payable function %q", e.Function)
}

// UnknownFunctionError is returned when a sign-tx-call/encode-call request
// names a function the signer does not know about.
type UnknownFunctionError struct {
	Name string
}

func (e *UnknownFunctionError) Error() string {
	return fmt.Sprintf("unknown function %q", e.Name)
}

// UnknownRequestKindError is returned by Serve for a Kind it does not
// recognize.
type UnknownRequestKindError struct {
	Kind RequestKind
}

func (e *UnknownRequestKindError) Error() string {
	return fmt.Sprintf("unknown request kind %q", e.Kind)
}
