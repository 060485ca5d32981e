package signer

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	qt "github.com/frankban/quicktest"

	"github.com/ethgate/gateway/abi"
	"github.com/ethgate/gateway/crypto/signatures/ethereum"
	gwtypes "github.com/ethgate/gateway/types"
)

func TestContractsAutoDefault(t *testing.T) {
	c := qt.New(t)

	addr := common.HexToAddress("0x00000000000000000000000000000000deadbeef")
	contracts := NewContracts([]common.Address{addr})
	c.Assert(contracts.Default(), qt.Not(qt.IsNil))
	c.Assert(*contracts.Default(), qt.Equals, addr)
	c.Assert(contracts.IsAllowed(addr), qt.IsTrue)

	other := common.HexToAddress("0x1111111111111111111111111111111111111111")
	c.Assert(contracts.IsAllowed(other), qt.IsFalse)
}

func TestContractsEmptyAllowsEverything(t *testing.T) {
	c := qt.New(t)

	contracts := NewContracts(nil)
	c.Assert(contracts.IsEmpty(), qt.IsTrue)
	c.Assert(contracts.Default(), qt.IsNil)

	other := common.HexToAddress("0x2222222222222222222222222222222222222222")
	c.Assert(contracts.IsAllowed(other), qt.IsTrue)
}

func TestContractsMultipleNoAutoDefault(t *testing.T) {
	c := qt.New(t)

	a := common.HexToAddress("0x1111111111111111111111111111111111111111")
	b := common.HexToAddress("0x2222222222222222222222222222222222222222")
	contracts := NewContracts([]common.Address{a, b})
	c.Assert(contracts.Default(), qt.IsNil)

	c.Assert(contracts.SetDefault(a), qt.IsNil)
	c.Assert(*contracts.Default(), qt.Equals, a)

	bogus := common.HexToAddress("0x3333333333333333333333333333333333333333")
	c.Assert(contracts.SetDefault(bogus), qt.Not(qt.IsNil))
}

func TestSignerGetAddress(t *testing.T) {
	c := qt.New(t)

	key, err := ethereum.NewSigner()
	c.Assert(err, qt.IsNil)

	s := New(Config{Key: key})
	resp, err := s.Serve(Request{Kind: KindGetAddress})
	c.Assert(err, qt.IsNil)
	c.Assert(resp.Address, qt.Equals, key.Address())
}

func TestSignerRawTxDisabledByDefault(t *testing.T) {
	c := qt.New(t)

	key, err := ethereum.NewSigner()
	c.Assert(err, qt.IsNil)

	s := New(Config{Key: key})
	_, err = s.Serve(Request{Kind: KindSignRawTx})
	c.Assert(err, qt.Equals, ErrRawSigningDisabled)
}

func TestSignerRawTxRoundTrip(t *testing.T) {
	c := qt.New(t)

	key, err := ethereum.NewSigner()
	c.Assert(err, qt.IsNil)

	to := common.HexToAddress("0x00000000000000000000000000000000deadbeef")
	s := New(Config{Key: key, AllowRawSigning: true})

	resp, err := s.Serve(Request{
		Kind:     KindSignRawTx,
		To:       &to,
		GasLimit: 0xdeadbeef,
		Value:    gwtypes.NewInt(0),
	})
	c.Assert(err, qt.IsNil)
	c.Assert(len(resp.RawTx) > 0, qt.IsTrue)
	c.Assert(resp.Hash, qt.Not(qt.Equals), common.Hash{})
}

func TestSignerRawTxRequiresWhitelist(t *testing.T) {
	c := qt.New(t)

	key, err := ethereum.NewSigner()
	c.Assert(err, qt.IsNil)

	whitelisted := common.HexToAddress("0x1111111111111111111111111111111111111111")
	other := common.HexToAddress("0x2222222222222222222222222222222222222222")

	s := New(Config{
		Key:             key,
		AllowRawSigning: true,
		Contracts:       NewContracts([]common.Address{whitelisted, common.HexToAddress("0x3333333333333333333333333333333333333333")}),
	})

	_, err = s.Serve(Request{Kind: KindSignRawTx, To: &other})
	c.Assert(err, qt.ErrorAs, new(*NotWhitelistedError))
}

func TestSignerEncodeCallNonpayableRejectsValue(t *testing.T) {
	c := qt.New(t)

	key, err := ethereum.NewSigner()
	c.Assert(err, qt.IsNil)

	fn := abi.Function{
		Name:    "transfer",
		Inputs:  []abi.Param{{Name: "to", Type: abi.TypeAddress}, {Name: "amount", Type: abi.TypeUint256}},
		Payable: false,
	}
	s := New(Config{Key: key, Functions: map[string]abi.Function{"transfer": fn}})

	amount, err := abi.NewUint256(big.NewInt(1))
	c.Assert(err, qt.IsNil)

	_, err = s.Serve(Request{
		Kind:     KindEncodeCall,
		Function: "transfer",
		Args:     []abi.Value{abi.NewAddress(common.HexToAddress("0x1111111111111111111111111111111111111111")), amount},
		Value:    gwtypes.NewInt(1),
	})
	c.Assert(err, qt.ErrorAs, new(*NonpayableValueError))
}

func TestSignerEncodeCall(t *testing.T) {
	c := qt.New(t)

	key, err := ethereum.NewSigner()
	c.Assert(err, qt.IsNil)

	fn := abi.Function{
		Name:   "transfer",
		Inputs: []abi.Param{{Name: "to", Type: abi.TypeAddress}, {Name: "amount", Type: abi.TypeUint256}},
	}
	s := New(Config{Key: key, Functions: map[string]abi.Function{"transfer": fn}})

	amount, err := abi.NewUint256(big.NewInt(42))
	c.Assert(err, qt.IsNil)

	resp, err := s.Serve(Request{
		Kind:     KindEncodeCall,
		Function: "transfer",
		Args:     []abi.Value{abi.NewAddress(common.HexToAddress("0x1111111111111111111111111111111111111111")), amount},
	})
	c.Assert(err, qt.IsNil)
	c.Assert(len(resp.Encoded), qt.Equals, 4+32*2)
}

func TestSignerUnknownFunction(t *testing.T) {
	c := qt.New(t)

	key, err := ethereum.NewSigner()
	c.Assert(err, qt.IsNil)

	s := New(Config{Key: key})
	_, err = s.Serve(Request{Kind: KindEncodeCall, Function: "nope"})
	c.Assert(err, qt.ErrorAs, new(*UnknownFunctionError))
}

func TestSignerEncodeToken(t *testing.T) {
	c := qt.New(t)

	key, err := ethereum.NewSigner()
	c.Assert(err, qt.IsNil)

	tok := EthToken{
		Name:   "mint",
		Fields: []abi.Param{{Name: "to", Type: abi.TypeAddress}, {Name: "amount", Type: abi.TypeUint256}},
	}
	s := New(Config{Key: key, Tokens: NewEthTokens([]EthToken{tok})})

	amount, err := abi.NewUint256(big.NewInt(100))
	c.Assert(err, qt.IsNil)

	resp, err := s.Serve(Request{
		Kind:  KindEncodeToken,
		Token: "mint",
		Values: map[string]abi.Value{
			"to":     abi.NewAddress(common.HexToAddress("0x1111111111111111111111111111111111111111")),
			"amount": amount,
		},
	})
	c.Assert(err, qt.IsNil)
	c.Assert(len(resp.Encoded), qt.Equals, 32*2)
}

func TestSignerSignToken(t *testing.T) {
	c := qt.New(t)

	key, err := ethereum.NewSigner()
	c.Assert(err, qt.IsNil)

	tok := EthToken{
		Name:   "mint",
		Fields: []abi.Param{{Name: "to", Type: abi.TypeAddress}, {Name: "amount", Type: abi.TypeUint256}},
	}
	s := New(Config{Key: key, Tokens: NewEthTokens([]EthToken{tok})})

	amount, err := abi.NewUint256(big.NewInt(100))
	c.Assert(err, qt.IsNil)
	values := map[string]abi.Value{
		"to":     abi.NewAddress(common.HexToAddress("0x1111111111111111111111111111111111111111")),
		"amount": amount,
	}

	resp, err := s.Serve(Request{Kind: KindSignToken, Token: "mint", Values: values})
	c.Assert(err, qt.IsNil)
	c.Assert(len(resp.Signature), qt.Equals, 65)

	// The signature must recover to the signer's own address over the
	// packed token bytes, the same digest sign-token commits to.
	encoded, err := tok.Encode(values)
	c.Assert(err, qt.IsNil)
	digest := ethereum.HashRaw(encoded)

	pub, err := ethcrypto.SigToPub(digest, resp.Signature)
	c.Assert(err, qt.IsNil)
	c.Assert(ethcrypto.PubkeyToAddress(*pub), qt.Equals, key.Address())
}

func TestSignerEncodeTokenMissingField(t *testing.T) {
	c := qt.New(t)

	key, err := ethereum.NewSigner()
	c.Assert(err, qt.IsNil)

	tok := EthToken{
		Name:   "mint",
		Fields: []abi.Param{{Name: "to", Type: abi.TypeAddress}, {Name: "amount", Type: abi.TypeUint256}},
	}
	s := New(Config{Key: key, Tokens: NewEthTokens([]EthToken{tok})})

	_, err = s.Serve(Request{
		Kind:   KindEncodeToken,
		Token:  "mint",
		Values: map[string]abi.Value{"to": abi.NewAddress(common.HexToAddress("0x1111111111111111111111111111111111111111"))},
	})
	c.Assert(err, qt.ErrorAs, new(*MissingValError))
}

func TestSignerEncodeTokenUnknownField(t *testing.T) {
	c := qt.New(t)

	key, err := ethereum.NewSigner()
	c.Assert(err, qt.IsNil)

	tok := EthToken{Name: "mint", Fields: []abi.Param{{Name: "to", Type: abi.TypeAddress}}}
	s := New(Config{Key: key, Tokens: NewEthTokens([]EthToken{tok})})

	_, err = s.Serve(Request{
		Kind:  KindEncodeToken,
		Token: "mint",
		Values: map[string]abi.Value{
			"to":      abi.NewAddress(common.HexToAddress("0x1111111111111111111111111111111111111111")),
			"bogus":   abi.NewUint8(1),
			"another": abi.NewUint8(2),
		},
	})
	c.Assert(err, qt.ErrorAs, new(*UnknownValError))
}

func TestSignerMissingToWithNoDefault(t *testing.T) {
	c := qt.New(t)

	key, err := ethereum.NewSigner()
	c.Assert(err, qt.IsNil)

	s := New(Config{Key: key, AllowRawSigning: true})
	_, err = s.Serve(Request{Kind: KindSignRawTx})
	c.Assert(err, qt.Equals, ErrMissingTo)
}

func TestSignerContractCreationDisabledByDefault(t *testing.T) {
	c := qt.New(t)

	key, err := ethereum.NewSigner()
	c.Assert(err, qt.IsNil)

	s := New(Config{Key: key, AllowRawSigning: true})
	_, err = s.Serve(Request{Kind: KindSignRawTx, CreateContract: true})
	c.Assert(err, qt.Equals, ErrCreationDisabled)
}

func TestSignerContractCreationAllowed(t *testing.T) {
	c := qt.New(t)

	key, err := ethereum.NewSigner()
	c.Assert(err, qt.IsNil)

	s := New(Config{Key: key, AllowRawSigning: true, AllowContractCreation: true})
	resp, err := s.Serve(Request{Kind: KindSignRawTx, CreateContract: true, Data: []byte{0x60, 0x00}})
	c.Assert(err, qt.IsNil)
	c.Assert(len(resp.RawTx) > 0, qt.IsTrue)
}

func TestSignerRawTxCreationNeverUsesDefault(t *testing.T) {
	c := qt.New(t)

	key, err := ethereum.NewSigner()
	c.Assert(err, qt.IsNil)

	def := common.HexToAddress("0x1111111111111111111111111111111111111111")
	contracts := NewContracts([]common.Address{def})

	s := New(Config{Key: key, Contracts: contracts, AllowRawSigning: true, AllowContractCreation: true})
	resp, err := s.Serve(Request{Kind: KindSignRawTx, CreateContract: true, Data: []byte{0x60, 0x00}})
	c.Assert(err, qt.IsNil)
	c.Assert(len(resp.RawTx) > 0, qt.IsTrue)

	tx, err := s.Prepare(Request{Kind: KindSignRawTx, CreateContract: true, Data: []byte{0x60, 0x00}})
	c.Assert(err, qt.IsNil)
	c.Assert(tx.To, qt.IsNil)
}

func TestSignerRawTxMissingToWithDefaultIsRejected(t *testing.T) {
	c := qt.New(t)

	key, err := ethereum.NewSigner()
	c.Assert(err, qt.IsNil)

	def := common.HexToAddress("0x1111111111111111111111111111111111111111")
	contracts := NewContracts([]common.Address{def})

	s := New(Config{Key: key, Contracts: contracts, AllowRawSigning: true})
	_, err = s.Serve(Request{Kind: KindSignRawTx})
	c.Assert(err, qt.Equals, ErrMissingTo)
}

func TestSignerGetContracts(t *testing.T) {
	c := qt.New(t)

	key, err := ethereum.NewSigner()
	c.Assert(err, qt.IsNil)

	a := common.HexToAddress("0x1111111111111111111111111111111111111111")
	b := common.HexToAddress("0x2222222222222222222222222222222222222222")
	s := New(Config{Key: key, Contracts: NewContracts([]common.Address{a, b})})

	resp, err := s.Serve(Request{Kind: KindGetContracts})
	c.Assert(err, qt.IsNil)
	c.Assert(resp.Contracts, qt.DeepEquals, []common.Address{a, b})
}

func TestSignerGetTxStatusNotServed(t *testing.T) {
	c := qt.New(t)

	key, err := ethereum.NewSigner()
	c.Assert(err, qt.IsNil)

	s := New(Config{Key: key})
	_, err = s.Serve(Request{Kind: KindGetTxStatus})
	c.Assert(err, qt.Not(qt.IsNil))
}

func TestSeedAndSign(t *testing.T) {
	c := qt.New(t)

	key, err := ethereum.NewSigner()
	c.Assert(err, qt.IsNil)

	to := common.HexToAddress("0x00000000000000000000000000000000deadbeef")
	s := New(Config{Key: key})

	tx := Transaction{To: &to, GasLimit: 21000}
	resp, err := s.SeedAndSign(KindSignRawTx, tx, 7, big.NewInt(1000))
	c.Assert(err, qt.IsNil)
	c.Assert(len(resp.RawTx) > 0, qt.IsTrue)
}
