package query

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"

	"github.com/ethgate/gateway/abi"
)

var transferEvent = abi.Event{
	Name: "Transfer",
	Inputs: []abi.Param{
		{Name: "from", Type: abi.TypeAddress, Indexed: true},
		{Name: "to", Type: abi.TypeAddress, Indexed: true},
		{Name: "value", Type: abi.TypeUint256, Indexed: false},
	},
}

var approvalEvent = abi.Event{
	Name: "Approval",
	Inputs: []abi.Param{
		{Name: "owner", Type: abi.TypeAddress, Indexed: true},
		{Name: "spender", Type: abi.TypeAddress, Indexed: true},
	},
}

func addrValue(t *testing.T, hex string) abi.Value {
	t.Helper()
	return abi.NewAddress(common.HexToAddress(hex))
}

func TestEncoderEncodeTopicsWildcardAndConstrained(t *testing.T) {
	c := qt.New(t)
	enc := NewEncoder([]abi.Event{transferEvent})

	topics, err := enc.EncodeTopics("Transfer", map[string][]abi.Value{
		"from": {addrValue(t, "0x0000000000000000000000000000000000000a")},
	})
	c.Assert(err, qt.IsNil)
	c.Assert(topics, qt.HasLen, 3) // signature + from + to
	c.Assert(topics[0].Hashes, qt.HasLen, 1)
	c.Assert(topics[0].Hashes[0], qt.Equals, transferEvent.Signature())
	c.Assert(topics[1].Hashes, qt.HasLen, 1)
	c.Assert(topics[2].Hashes, qt.HasLen, 0) // wildcard: "to" unconstrained
}

func TestEncoderEncodeTopicsUnknownEvent(t *testing.T) {
	c := qt.New(t)
	enc := NewEncoder([]abi.Event{transferEvent})

	_, err := enc.EncodeTopics("Burn", nil)
	c.Assert(err, qt.ErrorMatches, `unable to locate event "Burn"`)
	var nse *NoSuchEventError
	c.Assert(err, qt.ErrorAs, &nse)
}

func TestEncoderEncodeTopicsUnknownInput(t *testing.T) {
	c := qt.New(t)
	enc := NewEncoder([]abi.Event{transferEvent})

	_, err := enc.EncodeTopics("Transfer", map[string][]abi.Value{
		"value": {}, // "value" is not indexed, so naming it is an unknown topic
	})
	var ute *UnknownTopicError
	c.Assert(err, qt.ErrorAs, &ute)
	c.Assert(ute.Name, qt.Equals, "value")
}

func TestEncoderEncodeMatchersMergesAndDedupes(t *testing.T) {
	c := qt.New(t)
	enc := NewEncoder([]abi.Event{transferEvent, approvalEvent})

	addrA := addrValue(t, "0x0000000000000000000000000000000000000a")

	topics, err := enc.EncodeMatchers([]Matcher{
		{Name: "Transfer", Inputs: map[string][]abi.Value{"from": {addrA}}},
		{Name: "Approval", Inputs: map[string][]abi.Value{"owner": {addrA}}},
	})
	c.Assert(err, qt.IsNil)

	// Both matchers encode sig plus two indexed slots (Transfer: from, to;
	// Approval: owner, spender), so the merged length is 3, and position 2 is
	// unconstrained in both, leaving it a wildcard.
	c.Assert(topics, qt.HasLen, 3)
	// Position 0 combines both event signatures; they are distinct events so
	// no consecutive-duplicate collapse applies.
	c.Assert(topics[0].Hashes, qt.HasLen, 2)
	// Position 1 combines "from" and "owner", both constrained to addrA, and
	// consecutive-duplicate collapses the repeated hash down to one.
	c.Assert(topics[1].Hashes, qt.HasLen, 1)
	c.Assert(topics[2].Hashes, qt.HasLen, 0)
}

func TestEncoderEncodeMatchersPropagatesError(t *testing.T) {
	c := qt.New(t)
	enc := NewEncoder([]abi.Event{transferEvent})

	_, err := enc.EncodeMatchers([]Matcher{{Name: "DoesNotExist"}})
	c.Assert(err, qt.ErrorMatches, `unable to locate event "DoesNotExist"`)
}
