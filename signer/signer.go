package signer

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ethgate/gateway/abi"
	"github.com/ethgate/gateway/crypto/signatures/ethereum"
	gwtypes "github.com/ethgate/gateway/types"
)

// Config wires together the static policy a Signer enforces: the key it
// signs with, the contract whitelist, and the function/token specs it knows
// how to encode.
type Config struct {
	Key       *ethereum.Signer
	Contracts *Contracts
	Functions map[string]abi.Function
	Tokens    *EthTokens

	// AllowRawSigning permits sign-raw-tx requests with caller-supplied
	// calldata. Disabled by default: without it, only whitelisted
	// function/token calls may be signed.
	AllowRawSigning bool

	// AllowContractCreation permits raw transactions with no target
	// address (CreateContract requested explicitly).
	AllowContractCreation bool
}

// Signer holds a secp256k1 key and serves signing/encoding requests against
// a fixed whitelist of contracts, functions and tokens.
type Signer struct {
	cfg Config
}

// New builds a Signer from cfg. Functions and Tokens may be nil, in which
// case sign-tx-call/encode-call and sign-token/encode-token requests always
// fail with UnknownFunctionError/NoSuchTokenError.
func New(cfg Config) *Signer {
	if cfg.Functions == nil {
		cfg.Functions = map[string]abi.Function{}
	}
	if cfg.Tokens == nil {
		cfg.Tokens = NewEthTokens(nil)
	}
	if cfg.Contracts == nil {
		cfg.Contracts = NewContracts(nil)
	}
	return &Signer{cfg: cfg}
}

// Address returns the signer's Ethereum address.
func (s *Signer) Address() common.Address {
	return s.cfg.Key.Address()
}

// Serve dispatches req to the matching handler and returns its Response.
func (s *Signer) Serve(req Request) (Response, error) {
	switch req.Kind {
	case KindGetAddress:
		return Response{Kind: req.Kind, Address: s.Address()}, nil

	case KindGetContracts:
		return Response{Kind: req.Kind, Contracts: s.cfg.Contracts.List()}, nil

	case KindGetTxStatus:
		return Response{}, fmt.Errorf("get-tx-status must be resolved via the transaction pipeline")

	case KindSignRawTx:
		tx, err := s.Prepare(req)
		if err != nil {
			return Response{}, err
		}
		return s.signAndRespond(req.Kind, tx)

	case KindEncodeCall:
		fn, err := s.lookupFunction(req.Function)
		if err != nil {
			return Response{}, err
		}
		if err := checkPayable(fn, req.Value, req.Function); err != nil {
			return Response{}, err
		}
		data, err := abi.EncodeCall(fn, req.Args)
		if err != nil {
			return Response{}, err
		}
		return Response{Kind: req.Kind, Encoded: data}, nil

	case KindSignTxCall:
		tx, err := s.Prepare(req)
		if err != nil {
			return Response{}, err
		}
		return s.signAndRespond(req.Kind, tx)

	case KindSignToken, KindEncodeToken:
		tok, err := s.cfg.Tokens.Lookup(req.Token)
		if err != nil {
			return Response{}, err
		}
		data, err := tok.Encode(req.Values)
		if err != nil {
			return Response{}, err
		}
		if req.Kind == KindEncodeToken {
			return Response{Kind: req.Kind, Encoded: data}, nil
		}
		digest := ethereum.HashRaw(data)
		sig, err := s.cfg.Key.SignDigest(digest)
		if err != nil {
			return Response{}, fmt.Errorf("sign token: %w", err)
		}
		return Response{Kind: req.Kind, Signature: sig.Bytes()}, nil

	default:
		return Response{}, &UnknownRequestKindError{Kind: req.Kind}
	}
}

// Prepare validates and encodes req into an unsigned Transaction, applying
// the same whitelist/payable policy Serve enforces, but without signing it.
// It is the entry point the transaction pipeline uses: the pipeline seeds
// the returned Transaction's nonce and gas price from its caches before
// handing it to SeedAndSign, so signing never races a stale policy check.
// Only KindSignRawTx and KindSignTxCall produce a Transaction; any other
// kind is rejected.
func (s *Signer) Prepare(req Request) (Transaction, error) {
	switch req.Kind {
	case KindSignRawTx:
		if !s.cfg.AllowRawSigning {
			return Transaction{}, ErrRawSigningDisabled
		}
		to, err := s.resolveRawTarget(req.To, req.CreateContract)
		if err != nil {
			return Transaction{}, err
		}
		return Transaction{To: to, Value: req.Value, GasLimit: req.GasLimit, Data: req.Data}, nil

	case KindSignTxCall:
		fn, err := s.lookupFunction(req.Function)
		if err != nil {
			return Transaction{}, err
		}
		if err := checkPayable(fn, req.Value, req.Function); err != nil {
			return Transaction{}, err
		}
		data, err := abi.EncodeCall(fn, req.Args)
		if err != nil {
			return Transaction{}, err
		}
		to, err := s.resolveTarget(req.To)
		if err != nil {
			return Transaction{}, err
		}
		return Transaction{To: to, Value: req.Value, GasLimit: req.GasLimit, Data: data}, nil

	default:
		return Transaction{}, fmt.Errorf("prepare: request kind %q does not produce a transaction", req.Kind)
	}
}

// SeedAndSign signs tx after the transaction pipeline has seeded its nonce
// and gas price. It is the entry point used by the pipeline rather than by
// Serve, since Serve's callers never supply a nonce.
func (s *Signer) SeedAndSign(kind RequestKind, tx Transaction, nonce uint64, gasPrice *big.Int) (Response, error) {
	var price *gwtypes.BigInt
	if gasPrice != nil {
		price = new(gwtypes.BigInt).SetBigInt(gasPrice)
	}
	seeded := tx.Seed(nonce, price)
	return s.signAndRespond(kind, seeded)
}

func (s *Signer) signAndRespond(kind RequestKind, tx Transaction) (Response, error) {
	raw, hash, err := tx.Sign((*ecdsa.PrivateKey)(s.cfg.Key))
	if err != nil {
		return Response{}, err
	}
	return Response{Kind: kind, RawTx: raw, Hash: hash}, nil
}

// resolveTarget resolves the destination for a sign-tx-call, whose `to` may
// fall back to the whitelist's default contract when absent.
func (s *Signer) resolveTarget(to *common.Address) (*common.Address, error) {
	if to != nil {
		if !s.cfg.Contracts.IsAllowed(*to) {
			return nil, &NotWhitelistedError{Address: *to}
		}
		return to, nil
	}
	if def := s.cfg.Contracts.Default(); def != nil {
		return def, nil
	}
	return nil, ErrMissingTo
}

// resolveRawTarget resolves the destination for a raw transaction. Unlike
// resolveTarget, it never substitutes the whitelist's default contract: a
// raw transaction's `to` is either present (and must be whitelisted) or
// absent, in which case the caller is requesting contract creation — gated
// by AllowContractCreation — and the transaction signs with an empty `to`.
func (s *Signer) resolveRawTarget(to *common.Address, createContract bool) (*common.Address, error) {
	if to != nil {
		if !s.cfg.Contracts.IsAllowed(*to) {
			return nil, &NotWhitelistedError{Address: *to}
		}
		return to, nil
	}
	if createContract {
		if !s.cfg.AllowContractCreation {
			return nil, ErrCreationDisabled
		}
		return nil, nil
	}
	return nil, ErrMissingTo
}

func (s *Signer) lookupFunction(name string) (abi.Function, error) {
	fn, ok := s.cfg.Functions[name]
	if !ok {
		return abi.Function{}, &UnknownFunctionError{Name: name}
	}
	return fn, nil
}

func checkPayable(fn abi.Function, value *gwtypes.BigInt, name string) error {
	if fn.Payable || value == nil {
		return nil
	}
	if value.MathBigInt().Sign() != 0 {
		return &NonpayableValueError{Function: name}
	}
	return nil
}
