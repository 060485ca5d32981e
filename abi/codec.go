package abi

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// TopicCountError is returned by EncodeTopics when the number of supplied
// value groups does not match the event's indexed parameter count.
type TopicCountError struct {
	Expecting int
	Got       int
}

func (e *TopicCountError) Error() string {
	return fmt.Sprintf("expected %d indexed value groups, got %d", e.Expecting, e.Got)
}

// TopicTypeError is returned by EncodeTopics when a value in a group cannot
// be cast to its parameter's declared token type.
type TopicTypeError struct {
	Expecting TokenType
	Got       TokenType
	Topic     int
	Value     Value
}

func (e *TopicTypeError) Error() string {
	return fmt.Sprintf("topic %d: expecting %s, got %s", e.Topic, e.Expecting, e.Got)
}

// ArgCountError is returned by EncodeCall when the argument count differs
// from the function's declared input count.
type ArgCountError struct {
	Expecting int
	Got       int
}

func (e *ArgCountError) Error() string {
	return fmt.Sprintf("expected %d arguments, got %d", e.Expecting, e.Got)
}

// ArgTypeError is returned by EncodeCall when an argument cannot be cast to
// its parameter's declared token type.
type ArgTypeError struct {
	Expecting TokenType
	Got       TokenType
	Position  int
}

func (e *ArgTypeError) Error() string {
	return fmt.Sprintf("argument %d: expecting %s, got %s", e.Position, e.Expecting, e.Got)
}

// Topic is a single position in a log's topics filter: nil/empty Hashes is a
// wildcard, one hash is an exact match, more than one is a disjunction
// (match any of the set) at that position.
type Topic struct {
	Hashes []common.Hash
}

// dedupeHashes collapses duplicate hashes, preserving first-seen order.
func dedupeHashes(hashes []common.Hash) []common.Hash {
	seen := make(map[common.Hash]struct{}, len(hashes))
	out := make([]common.Hash, 0, len(hashes))
	for _, h := range hashes {
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	return out
}

// EncodeTopics builds the topics filter for an event given one value group
// per indexed parameter. Topic 0 is always the event signature. Each group's
// duplicate values collapse to one hash; an empty group produces a wildcard
// at that position.
func EncodeTopics(event Event, groups [][]Value) ([]Topic, error) {
	indexed := event.IndexedInputs()
	if len(groups) != len(indexed) {
		return nil, &TopicCountError{Expecting: len(indexed), Got: len(groups)}
	}

	topics := make([]Topic, len(indexed)+1)
	topics[0] = Topic{Hashes: []common.Hash{event.Signature()}}

	for i, group := range groups {
		param := indexed[i]
		if len(group) == 0 {
			continue // wildcard
		}
		hashes := make([]common.Hash, len(group))
		for j, v := range group {
			cast, err := v.Cast(param.Type)
			if err != nil {
				return nil, &TopicTypeError{Expecting: param.Type, Got: v.Type, Topic: i + 1, Value: v}
			}
			hashes[j] = cast.Hash()
		}
		topics[i+1] = Topic{Hashes: dedupeHashes(hashes)}
	}
	return topics, nil
}

// NamedValue pairs a decoded indexed parameter's name with its value.
type NamedValue struct {
	Name  string
	Value Value
}

// castWord reinterprets a raw topic word as t's declared token type, without
// validating that the bit pattern fits (a topic always carries exactly 32
// bytes, so every cast here is lossless by construction).
func castWord(t TokenType, topic common.Hash) Value {
	return Value{Type: t, Word: Word(topic)}
}

// Decode decodes indexed parameters in declaration order from the topics
// that follow the event signature (topics must NOT include position 0),
// typing each decoded value as its declared token so it renders in that
// token's canonical form (an address trims to 20 bytes, a uint256 trims
// leading zero nibbles). If fewer topics are supplied than indexed
// parameters, decoding simply stops: the result is shorter than the full
// parameter list.
func Decode(event Event, topics []common.Hash) []NamedValue {
	indexed := event.IndexedInputs()
	n := len(topics)
	if n > len(indexed) {
		n = len(indexed)
	}
	out := make([]NamedValue, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, NamedValue{Name: indexed[i].Name, Value: castWord(indexed[i].Type, topics[i])})
	}
	return out
}

// DecodeAll behaves like Decode but always returns one entry per indexed
// parameter; missing trailing topics decode to a nil Value.
func DecodeAll(event Event, topics []common.Hash) []*NamedValue {
	indexed := event.IndexedInputs()
	out := make([]*NamedValue, len(indexed))
	for i, param := range indexed {
		if i >= len(topics) {
			continue
		}
		out[i] = &NamedValue{Name: param.Name, Value: castWord(param.Type, topics[i])}
	}
	return out
}

// EncodeCall builds calldata: selector || word(arg0) || word(arg1) || ….
// The calldata length is exactly 4 + 32*n.
func EncodeCall(fn Function, args []Value) ([]byte, error) {
	if len(args) != len(fn.Inputs) {
		return nil, &ArgCountError{Expecting: len(fn.Inputs), Got: len(args)}
	}
	casted := make([]Value, len(args))
	for i, param := range fn.Inputs {
		cast, err := args[i].Cast(param.Type)
		if err != nil {
			return nil, &ArgTypeError{Expecting: param.Type, Got: args[i].Type, Position: i}
		}
		casted[i] = cast
	}
	sel := fn.Selector()
	out := make([]byte, 0, 4+32*len(casted))
	out = append(out, sel[:]...)
	out = append(out, Pack(casted)...)
	return out, nil
}

// Pack concatenates each value's 32-byte word-packed form, with no selector.
func Pack(values []Value) []byte {
	out := make([]byte, 0, 32*len(values))
	for _, v := range values {
		out = append(out, v.Word[:]...)
	}
	return out
}
