package api

import (
	"encoding/json"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/ethgate/gateway/abi"
	"github.com/ethgate/gateway/query"
	"github.com/ethgate/gateway/rpc"
	"github.com/ethgate/gateway/signer"
	gwtypes "github.com/ethgate/gateway/types"
)

// valueFromHex decodes a 0x-prefixed hex string into a generic word-carrying
// abi.Value. The value's declared Type is always uint256: every call site
// immediately re-casts it to the parameter's real declared type via
// abi.Value.Cast, which is where the actual type-fit check happens.
func valueFromHex(s string) (abi.Value, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return abi.Value{}, ErrMalformedHex.WithErr(err)
	}
	if len(b) > 32 {
		return abi.Value{}, ErrMalformedHex.Withf("value %q overflows 32 bytes", s)
	}
	n := new(gwtypes.BigInt).SetBytes(b)
	v, err := abi.NewUint256(n.MathBigInt())
	if err != nil {
		return abi.Value{}, ErrMalformedHex.WithErr(err)
	}
	return v, nil
}

// valuesFromHex decodes a name -> hex string map into a name -> abi.Value
// map, preserving the same key set.
func valuesFromHex(in map[string]string) (map[string]abi.Value, error) {
	out := make(map[string]abi.Value, len(in))
	for k, s := range in {
		v, err := valueFromHex(s)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

// callWire is the wire shape of a function call: a name and a mapping from
// parameter name to hex-encoded value, mirroring the upstream gateway's
// name-keyed call encoding rather than this codec's positional one.
type callWire struct {
	Name   string            `json:"name"`
	Inputs map[string]string `json:"inputs"`
}

// orderedArgs maps a callWire's named inputs onto fn's declared input order,
// the same reordering the upstream gateway performs before handing a call to
// its positional codec.
func orderedArgs(fn abi.Function, inputs map[string]string) ([]abi.Value, error) {
	remaining := make(map[string]string, len(inputs))
	for k, v := range inputs {
		remaining[k] = v
	}
	args := make([]abi.Value, len(fn.Inputs))
	for i, p := range fn.Inputs {
		s, ok := remaining[p.Name]
		if !ok {
			return nil, ErrArgCount.Withf("missing argument %q", p.Name)
		}
		v, err := valueFromHex(s)
		if err != nil {
			return nil, err
		}
		args[i] = v
		delete(remaining, p.Name)
	}
	for name := range remaining {
		return nil, ErrArgCount.Withf("unknown argument %q", name)
	}
	return args, nil
}

// txWire is the wire shape shared by sign-raw-tx requests: an optional
// destination (nil means "sign a contract-creation transaction" when
// createContract is set, and is rejected otherwise; the signer's default
// contract is never substituted), a value in wei, a gas limit and arbitrary
// calldata.
type txWire struct {
	To             *common.Address `json:"to"`
	Value          *gwtypes.BigInt `json:"value"`
	GasLimit       uint64          `json:"gas"`
	Data           hexutil.Bytes   `json:"data"`
	CreateContract bool            `json:"createContract"`
}

// txCallWire is the wire shape of sign-tx-call: the same destination/value
// envelope as txWire, wrapping a named function call instead of raw data.
type txCallWire struct {
	To    *common.Address `json:"to"`
	Value *gwtypes.BigInt `json:"value"`
	Gas   uint64          `json:"gas"`
	Call  callWire        `json:"call"`
}

// tokenWire is the wire shape shared by sign-token and encode-token: a
// token name and its named field values.
type tokenWire struct {
	Name   string            `json:"name"`
	Values map[string]string `json:"values"`
}

// requestEnvelope is the tagged union every POST to the signer endpoint
// carries: exactly one field is set, naming the request variant.
type requestEnvelope struct {
	SignRawTx    *txWire      `json:"sign-raw-tx,omitempty"`
	SignTxCall   *txCallWire  `json:"sign-tx-call,omitempty"`
	EncodeCall   *callWire    `json:"encode-call,omitempty"`
	SignToken    *tokenWire   `json:"sign-token,omitempty"`
	EncodeToken  *tokenWire   `json:"encode-token,omitempty"`
	GetContracts *struct{}    `json:"get-contracts,omitempty"`
	GetAddress   *struct{}    `json:"get-address,omitempty"`
	GetTxStatus  *txStatusReq `json:"get-tx-status,omitempty"`
}

type txStatusReq struct {
	Hash common.Hash `json:"hash"`
}

// decodeRequest converts the wire envelope into the signer package's
// internal Request union, resolving named call/token arguments against
// functions/tokens so abi.EncodeCall's positional codec sees them in
// declaration order.
func (s *Server) decodeRequest(env requestEnvelope) (signer.Request, error) {
	switch {
	case env.GetAddress != nil:
		return signer.Request{Kind: signer.KindGetAddress}, nil

	case env.GetContracts != nil:
		return signer.Request{Kind: signer.KindGetContracts}, nil

	case env.GetTxStatus != nil:
		return signer.Request{Kind: signer.KindGetTxStatus, TxHash: env.GetTxStatus.Hash}, nil

	case env.SignRawTx != nil:
		w := env.SignRawTx
		return signer.Request{
			Kind:           signer.KindSignRawTx,
			To:             w.To,
			Value:          w.Value,
			GasLimit:       w.GasLimit,
			Data:           []byte(w.Data),
			CreateContract: w.CreateContract,
		}, nil

	case env.SignTxCall != nil:
		w := env.SignTxCall
		fn, ok := s.functions[w.Call.Name]
		if !ok {
			return signer.Request{}, ErrUnknownFunction.Withf("%q", w.Call.Name)
		}
		args, err := orderedArgs(fn, w.Call.Inputs)
		if err != nil {
			return signer.Request{}, err
		}
		return signer.Request{
			Kind:     signer.KindSignTxCall,
			To:       w.To,
			Value:    w.Value,
			GasLimit: w.Gas,
			Function: w.Call.Name,
			Args:     args,
		}, nil

	case env.EncodeCall != nil:
		w := env.EncodeCall
		fn, ok := s.functions[w.Name]
		if !ok {
			return signer.Request{}, ErrUnknownFunction.Withf("%q", w.Name)
		}
		args, err := orderedArgs(fn, w.Inputs)
		if err != nil {
			return signer.Request{}, err
		}
		return signer.Request{Kind: signer.KindEncodeCall, Function: w.Name, Args: args}, nil

	case env.SignToken != nil:
		values, err := valuesFromHex(env.SignToken.Values)
		if err != nil {
			return signer.Request{}, err
		}
		return signer.Request{Kind: signer.KindSignToken, Token: env.SignToken.Name, Values: values}, nil

	case env.EncodeToken != nil:
		values, err := valuesFromHex(env.EncodeToken.Values)
		if err != nil {
			return signer.Request{}, err
		}
		return signer.Request{Kind: signer.KindEncodeToken, Token: env.EncodeToken.Name, Values: values}, nil

	default:
		return signer.Request{}, ErrUnknownRequestKind
	}
}

// responseWire renders a signer.Response (or a pipeline broadcast result)
// back to its JSON wire shape.
type responseWire struct {
	Kind      signer.RequestKind `json:"kind"`
	RawTx     hexutil.Bytes      `json:"rawTx,omitempty"`
	Hash      *common.Hash       `json:"hash,omitempty"`
	Signature hexutil.Bytes      `json:"signature,omitempty"`
	Encoded   hexutil.Bytes      `json:"encoded,omitempty"`
	Contracts []common.Address   `json:"contracts,omitempty"`
	Address   *common.Address    `json:"address,omitempty"`
}

func toResponseWire(r signer.Response) responseWire {
	out := responseWire{
		Kind:      r.Kind,
		RawTx:     r.RawTx,
		Signature: r.Signature,
		Encoded:   r.Encoded,
		Contracts: r.Contracts,
	}
	if r.Hash != (common.Hash{}) {
		h := r.Hash
		out.Hash = &h
	}
	if r.Address != (common.Address{}) {
		a := r.Address
		out.Address = &a
	}
	return out
}

// eventsRequest is the wire shape of a get-events query: one or more named
// matchers plus an optional block range.
type eventsRequest struct {
	Matchers  []matcherWire `json:"matchers"`
	FromBlock *string       `json:"fromBlock"`
	ToBlock   *string       `json:"toBlock"`
}

type matcherWire struct {
	Name   string              `json:"name"`
	Inputs map[string][]string `json:"inputs"`
}

// decodeMatchers converts the wire matchers into query.Matcher values.
func decodeMatchers(in []matcherWire) ([]query.Matcher, error) {
	out := make([]query.Matcher, len(in))
	for i, m := range in {
		inputs := make(map[string][]abi.Value, len(m.Inputs))
		for name, vals := range m.Inputs {
			group := make([]abi.Value, len(vals))
			for j, s := range vals {
				v, err := valueFromHex(s)
				if err != nil {
					return nil, err
				}
				group[j] = v
			}
			inputs[name] = group
		}
		out[i] = query.Matcher{Name: m.Name, Inputs: inputs}
	}
	return out, nil
}

// parseBlockID parses "earliest", "latest", "pending" or an 0x-prefixed hex
// block number. A nil s means "unbounded" and is returned as a nil BlockID.
func parseBlockID(s *string) (*rpc.BlockID, error) {
	if s == nil {
		return nil, nil
	}
	switch strings.ToLower(*s) {
	case "earliest":
		b := rpc.Earliest()
		return &b, nil
	case "latest", "":
		b := rpc.Latest()
		return &b, nil
	case "pending":
		b := rpc.Pending()
		return &b, nil
	}
	n, ok := new(big.Int).SetString(strings.TrimPrefix(*s, "0x"), 16)
	if !ok {
		return nil, ErrMalformedHex.Withf("malformed block identifier %q", *s)
	}
	b := rpc.AtBigNumber(n)
	return &b, nil
}

func decodeJSON(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return ErrMalformedBody.WithErr(err)
	}
	return nil
}
