// Package templating renders decoded event logs through a named
// text/template collection, the same context shape the callback engine and
// the event query service both need: the decoded indexed parameters, the
// raw log, and a small metadata block.
package templating

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ethgate/gateway/abi"
	"github.com/ethgate/gateway/rpc"
)

// UnknownTopicError is returned when a log's first topic does not match any
// registered event.
type UnknownTopicError struct {
	Topic common.Hash
}

func (e *UnknownTopicError) Error() string {
	return fmt.Sprintf("no event found for topic %s", e.Topic.Hex())
}

// ErrEmptyLog is returned when a log carries zero topics, so no event
// signature can be recovered.
var ErrEmptyLog = fmt.Errorf("got log with zero topics")

// EventSpec pairs an event definition with the name of the template used to
// render logs matching it.
type EventSpec struct {
	Event    abi.Event
	Template string
}

// meta mirrors the {{.Meta.EventName}} field available to templates.
type meta struct {
	EventName string
}

// data is the top-level template context: {{.Event.<name>}}, {{.Log...}}
// and {{.Meta.EventName}}.
type data struct {
	Event map[string]any
	Log   rpc.Log
	Meta  meta
}

// Templater renders logs into strings using per-event-signature template
// names, looked up in a shared template set.
type Templater struct {
	events map[common.Hash]EventSpec
	tmpl   *template.Template
}

// New builds a Templater. tmpl must already have every EventSpec's Template
// name defined (via ParseFiles/ParseGlob/New(..).Parse).
func New(specs []EventSpec, tmpl *template.Template) *Templater {
	byTopic := make(map[common.Hash]EventSpec, len(specs))
	for _, s := range specs {
		byTopic[s.Event.Signature()] = s
	}
	return &Templater{events: byTopic, tmpl: tmpl}
}

// TemplateLog decodes log's indexed parameters against the event matching
// its first topic and renders the configured template for that event.
func (t *Templater) TemplateLog(log rpc.Log) (string, error) {
	if len(log.Topics) == 0 {
		return "", ErrEmptyLog
	}
	eventTopic := log.Topics[0]
	spec, ok := t.events[eventTopic]
	if !ok {
		return "", &UnknownTopicError{Topic: eventTopic}
	}

	decoded := abi.Decode(spec.Event, log.Topics[1:])
	eventValues := make(map[string]any, len(decoded))
	for _, nv := range decoded {
		eventValues[nv.Name] = nv.Value
	}

	d := data{
		Event: eventValues,
		Log:   log,
		Meta:  meta{EventName: spec.Event.Name},
	}

	var buf bytes.Buffer
	if err := t.tmpl.ExecuteTemplate(&buf, spec.Template, d); err != nil {
		return "", fmt.Errorf("render template %q: %w", spec.Template, err)
	}
	return buf.String(), nil
}
