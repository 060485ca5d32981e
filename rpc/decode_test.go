package rpc

import (
	"encoding/json"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestExpectUint(t *testing.T) {
	c := qt.New(t)
	n, err := ExpectUint(json.RawMessage(`"0x2a"`))
	c.Assert(err, qt.IsNil)
	c.Assert(n.Uint64(), qt.Equals, uint64(42))

	n, err = ExpectUint(json.RawMessage(`"0x0"`))
	c.Assert(err, qt.IsNil)
	c.Assert(n.Uint64(), qt.Equals, uint64(0))

	_, err = ExpectUint(json.RawMessage(`42`))
	c.Assert(err, qt.Not(qt.IsNil))
	var ue *UnexpectedError
	c.Assert(err, qt.ErrorAs, &ue)
}

func TestExpectUintAcceptsAddressWord(t *testing.T) {
	c := qt.New(t)
	n, err := ExpectUint(json.RawMessage(`"0x000000000000000000000000202641bd948c8ce5aad491420e6cc02ebb179b"`))
	c.Assert(err, qt.IsNil)
	c.Assert(n.Sign() > 0, qt.IsTrue)
}

func TestExpectAddress(t *testing.T) {
	c := qt.New(t)
	addr, err := ExpectAddress(json.RawMessage(`"0x202641bd948c8ce5aad491420e6cc02ebb179b73"`))
	c.Assert(err, qt.IsNil)
	c.Assert(addr.Hex(), qt.Equals, "0x202641Bd948C8ce5AAd491420e6cc02EBb179B73")

	_, err = ExpectAddress(json.RawMessage(`"0xnot-an-address"`))
	c.Assert(err, qt.Not(qt.IsNil))
}

func TestExpectLogsNullIsEmpty(t *testing.T) {
	c := qt.New(t)
	logs, err := ExpectLogs(json.RawMessage(`null`))
	c.Assert(err, qt.IsNil)
	c.Assert(logs, qt.HasLen, 0)
}

func TestExpectReceiptExecution(t *testing.T) {
	c := qt.New(t)
	success, err := ExpectReceipt(json.RawMessage(`{"blockNumber":"0x1","blockHash":"0x` + zeroHash + `","status":"0x1","transactionHash":"0x` + zeroHash + `"}`))
	c.Assert(err, qt.IsNil)
	c.Assert(success.Execution(), qt.Equals, "success")

	failed, err := ExpectReceipt(json.RawMessage(`{"blockNumber":"0x1","blockHash":"0x` + zeroHash + `","status":"0x0","transactionHash":"0x` + zeroHash + `"}`))
	c.Assert(err, qt.IsNil)
	c.Assert(failed.Execution(), qt.Equals, "failure")

	pending, err := ExpectReceipt(json.RawMessage(`null`))
	c.Assert(err, qt.IsNil)
	c.Assert(pending, qt.IsNil)
	c.Assert(pending.Execution(), qt.Equals, "")
}

const zeroHash = "0000000000000000000000000000000000000000000000000000000000000000"[:64]
