package abi

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	qt "github.com/frankban/quicktest"
)

func myEvent() Event {
	return Event{
		Name: "MyEvent",
		Inputs: []Param{
			{Name: "a", Type: TypeAddress, Indexed: true},
			{Name: "b", Type: TypeUint256, Indexed: true},
			{Name: "c", Type: TypeUint8, Indexed: true},
		},
	}
}

func TestEventSignature(t *testing.T) {
	c := qt.New(t)

	want := ethcrypto.Keccak256Hash([]byte("MyEvent(address,uint256,uint8)"))
	c.Assert(myEvent().Signature(), qt.Equals, want)
}

func TestFunctionSelector(t *testing.T) {
	c := qt.New(t)

	fn := Function{Name: "add", Inputs: []Param{
		{Name: "x", Type: TypeUint256},
		{Name: "y", Type: TypeUint256},
	}}
	sigHash := ethcrypto.Keccak256([]byte("add(uint256,uint256)"))
	var want Selector
	copy(want[:], sigHash[:4])
	c.Assert(fn.Selector(), qt.Equals, want)
}

func TestEncodeTopics(t *testing.T) {
	c := qt.New(t)

	event := myEvent()
	abc, _ := NewUint256(big.NewInt(0xabc))
	v123, _ := NewUint256(big.NewInt(0x123))
	topics, err := EncodeTopics(event, [][]Value{
		{},
		{abc, v123},
		{},
	})
	c.Assert(err, qt.IsNil)
	c.Assert(len(topics), qt.Equals, 4)
	c.Assert(topics[0].Hashes, qt.DeepEquals, []common.Hash{event.Signature()})
	c.Assert(topics[1].Hashes, qt.HasLen, 0)
	c.Assert(topics[2].Hashes, qt.DeepEquals, []common.Hash{abc.Hash(), v123.Hash()})
	c.Assert(topics[3].Hashes, qt.HasLen, 0)
}

func TestEncodeTopicsWrongCount(t *testing.T) {
	c := qt.New(t)

	_, err := EncodeTopics(myEvent(), [][]Value{{}})
	c.Assert(err, qt.Not(qt.IsNil))
	var countErr *TopicCountError
	c.Assert(err, qt.ErrorAs, &countErr)
}

func TestDecodeTruncates(t *testing.T) {
	c := qt.New(t)

	event := myEvent()
	addr := NewAddress(common.HexToAddress("0xaa00000000000000000000000000000000000000"))
	decoded := Decode(event, []common.Hash{addr.Hash()})
	c.Assert(decoded, qt.HasLen, 1)
	c.Assert(decoded[0].Name, qt.Equals, "a")
}

func TestDecodeAllKeepsMissingAsNil(t *testing.T) {
	c := qt.New(t)

	event := myEvent()
	addr := NewAddress(common.HexToAddress("0xaa00000000000000000000000000000000000000"))
	decoded := DecodeAll(event, []common.Hash{addr.Hash()})
	c.Assert(decoded, qt.HasLen, 3)
	c.Assert(decoded[0], qt.Not(qt.IsNil))
	c.Assert(decoded[1], qt.IsNil)
	c.Assert(decoded[2], qt.IsNil)
}

func TestEncodeCall(t *testing.T) {
	c := qt.New(t)

	fn := Function{Name: "add", Inputs: []Param{
		{Name: "x", Type: TypeUint256},
		{Name: "y", Type: TypeUint256},
	}}
	x, _ := NewUint256(big.NewInt(1))
	y, _ := NewUint256(big.NewInt(2))
	data, err := EncodeCall(fn, []Value{x, y})
	c.Assert(err, qt.IsNil)
	c.Assert(len(data), qt.Equals, 4+32*2)

	_, err = EncodeCall(fn, []Value{x})
	c.Assert(err, qt.Not(qt.IsNil))
	var countErr *ArgCountError
	c.Assert(err, qt.ErrorAs, &countErr)
}

func TestValueCast(t *testing.T) {
	c := qt.New(t)

	addr := NewAddress(common.HexToAddress("0xdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef"))
	asUint, err := addr.Cast(TypeUint256)
	c.Assert(err, qt.IsNil)
	c.Assert(asUint.Uint256().Cmp(addr.Uint256()), qt.Equals, 0)

	big256, _ := NewUint256(new(big.Int).Lsh(big.NewInt(1), 200))
	_, err = big256.Cast(TypeAddress)
	c.Assert(err, qt.Not(qt.IsNil))
}
