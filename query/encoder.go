// Package query implements the on-demand event query service: merging
// named event matchers into a single eth_getLogs topic filter and rendering
// the resulting logs through the shared templater.
package query

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ethgate/gateway/abi"
)

// UnknownTopicError is returned when a matcher names an input the event
// does not declare as an indexed parameter.
type UnknownTopicError struct {
	Name  string
	Value []abi.Value
}

func (e *UnknownTopicError) Error() string {
	return fmt.Sprintf("unexpected topic %q", e.Name)
}

// NoSuchEventError is returned when a matcher names an event the encoder
// does not know about.
type NoSuchEventError struct {
	Name string
}

func (e *NoSuchEventError) Error() string {
	return fmt.Sprintf("unable to locate event %q", e.Name)
}

// Matcher selects logs for one named event, optionally constraining its
// indexed parameters to one-or-more values (empty/absent means wildcard).
type Matcher struct {
	Name   string
	Inputs map[string][]abi.Value
}

// Encoder merges one or more Matchers into a single []abi.Topic filter,
// keyed by the events it knows about.
type Encoder struct {
	events map[string]abi.Event
}

// NewEncoder builds an Encoder from a name -> event registry.
func NewEncoder(events []abi.Event) *Encoder {
	m := make(map[string]abi.Event, len(events))
	for _, e := range events {
		m[e.Name] = e
	}
	return &Encoder{events: m}
}

// Lookup returns the named event, or NoSuchEventError.
func (e *Encoder) Lookup(name string) (abi.Event, error) {
	ev, ok := e.events[name]
	if !ok {
		return abi.Event{}, &NoSuchEventError{Name: name}
	}
	return ev, nil
}

// EncodeTopics builds the topic filter for a single matcher: one group of
// values per indexed parameter, in declaration order, wildcard for any
// parameter the matcher's Inputs does not mention. Any input naming a
// parameter the event does not declare as indexed is an UnknownTopicError.
func (e *Encoder) EncodeTopics(name string, inputs map[string][]abi.Value) ([]abi.Topic, error) {
	event, err := e.Lookup(name)
	if err != nil {
		return nil, err
	}

	indexed := event.IndexedInputs()
	groups := make([][]abi.Value, len(indexed))
	remaining := make(map[string][]abi.Value, len(inputs))
	for k, v := range inputs {
		remaining[k] = v
	}
	for i, param := range indexed {
		if v, ok := remaining[param.Name]; ok {
			groups[i] = v
			delete(remaining, param.Name)
		}
	}
	for name, value := range remaining {
		return nil, &UnknownTopicError{Name: name, Value: value}
	}

	return abi.EncodeTopics(event, groups)
}

// EncodeMatchers merges the topic filters of all matchers: for each topic
// position, the hashes contributed by every matcher are concatenated, then
// consecutive duplicates collapse, yielding a single combined []abi.Topic.
// Matchers whose own topic list is shorter than the combined length
// contribute nothing at the missing positions, so those positions carry
// only the other matchers' hashes.
func (e *Encoder) EncodeMatchers(matchers []Matcher) ([]abi.Topic, error) {
	perMatcher := make([][]abi.Topic, len(matchers))
	maxLen := 0
	for i, m := range matchers {
		topics, err := e.EncodeTopics(m.Name, m.Inputs)
		if err != nil {
			return nil, err
		}
		perMatcher[i] = topics
		if len(topics) > maxLen {
			maxLen = len(topics)
		}
	}

	merged := make([]abi.Topic, maxLen)
	for pos := 0; pos < maxLen; pos++ {
		var hashes []common.Hash
		for _, topics := range perMatcher {
			if pos >= len(topics) {
				continue
			}
			hashes = append(hashes, topics[pos].Hashes...)
		}
		merged[pos] = abi.Topic{Hashes: dedupeConsecutive(hashes)}
	}
	return merged, nil
}

// dedupeConsecutive collapses only consecutive duplicate hashes, matching
// the original implementation's Vec::dedup semantics.
func dedupeConsecutive(hashes []common.Hash) []common.Hash {
	out := make([]common.Hash, 0, len(hashes))
	for i, h := range hashes {
		if i > 0 && hashes[i-1] == h {
			continue
		}
		out = append(out, h)
	}
	return out
}
