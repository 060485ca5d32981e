package callback

import (
	"bytes"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"text/template"
	"time"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"github.com/google/uuid"

	"github.com/ethgate/gateway/abi"
	"github.com/ethgate/gateway/rpc"
	"github.com/ethgate/gateway/templating"
)

// transferEvent is a Transfer(address,address,uint256) event with every
// field indexed, matching spec.md's worked callback example.
var transferEvent = abi.Event{
	Name: "Transfer",
	Inputs: []abi.Param{
		{Name: "from", Type: abi.TypeAddress, Indexed: true},
		{Name: "to", Type: abi.TypeAddress, Indexed: true},
		{Name: "value", Type: abi.TypeUint256, Indexed: true},
	},
}

func transferLog(t *testing.T, from, to common.Address, value int64) rpc.Log {
	t.Helper()
	valueVal, err := abi.NewUint256(big.NewInt(value))
	qt.New(t).Assert(err, qt.IsNil)

	return rpc.Log{
		Address: common.HexToAddress("0x00000000000000000000000000000000000ca5"),
		Topics: []common.Hash{
			transferEvent.Signature(),
			abi.NewAddress(from).Hash(),
			abi.NewAddress(to).Hash(),
			valueVal.Hash(),
		},
		Data: []byte{},
	}
}

func newTestTemplater(t *testing.T) *templating.Templater {
	t.Helper()
	tmpl, err := template.New("transfer").Parse("{{.Event.from}}->{{.Event.to}}:{{.Event.value}}")
	qt.New(t).Assert(err, qt.IsNil)
	return templating.New([]templating.EventSpec{{Event: transferEvent, Template: "transfer"}}, tmpl)
}

// signalingWriter wakes up a channel every time it is written to, so a test
// can wait for the Stdout background goroutine to flush a pushed line
// instead of sleeping blindly.
type signalingWriter struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	notify chan struct{}
}

func newSignalingWriter() *signalingWriter {
	return &signalingWriter{notify: make(chan struct{}, 8)}
}

func (w *signalingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	n, err := w.buf.Write(p)
	w.mu.Unlock()
	select {
	case w.notify <- struct{}{}:
	default:
	}
	return n, err
}

func (w *signalingWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

func waitForLine(t *testing.T, w *signalingWriter) string {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if s := w.String(); s != "" {
			return s
		}
		select {
		case <-w.notify:
		case <-deadline:
			t.Fatal("timed out waiting for stdout callback line")
		}
	}
}

func TestEngineHandleLogRendersToStdout(t *testing.T) {
	c := qt.New(t)

	from := common.HexToAddress("0x00000000000000000000000000000000000001")
	to := common.HexToAddress("0x00000000000000000000000000000000000002")
	l := transferLog(t, from, to, 42)

	w := newSignalingWriter()
	stdout := NewStdout(w)
	defer stdout.Close()

	engine := New(nil, newTestTemplater(t), nil, stdout)
	engine.handleLog(uuid.New(), Endpoint{Kind: EndpointStdout}, l)

	line := waitForLine(t, w)
	// Decode() casts each indexed topic to its declared token type, so an
	// address renders in its 20-byte form and the uint256 value trims to
	// its shortest hex form.
	wantFrom := strings.ToLower(from.Hex())
	wantTo := strings.ToLower(to.Hex())
	wantValue, err := abi.NewUint256(big.NewInt(42))
	c.Assert(err, qt.IsNil)

	c.Assert(strings.TrimSpace(line), qt.Equals, wantFrom+"->"+wantTo+":"+wantValue.Hex())
}

func TestEngineHandleLogUnknownTopicIsDropped(t *testing.T) {
	w := newSignalingWriter()
	stdout := NewStdout(w)
	defer stdout.Close()

	engine := New(nil, newTestTemplater(t), nil, stdout)

	unrelated := rpc.Log{Topics: []common.Hash{common.HexToHash("0xdead")}}
	engine.handleLog(uuid.New(), Endpoint{Kind: EndpointStdout}, unrelated)

	select {
	case <-w.notify:
		t.Fatal("expected no line to be written for an unrecognized event topic")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEngineDispatchHTTP(t *testing.T) {
	c := qt.New(t)

	var gotBody string
	var gotJobHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		gotJobHeader = r.Header.Get("X-Callback-Job")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	from := common.HexToAddress("0x00000000000000000000000000000000000003")
	to := common.HexToAddress("0x00000000000000000000000000000000000004")
	l := transferLog(t, from, to, 7)

	jobID := uuid.New()
	engine := New(nil, newTestTemplater(t), srv.Client(), nil)
	err := engine.dispatch(jobID, Endpoint{Kind: EndpointURI, URI: srv.URL}, mustRender(t, engine, l))
	c.Assert(err, qt.IsNil)

	c.Assert(gotJobHeader, qt.Equals, jobID.String())
	wantFrom := strings.ToLower(from.Hex())
	wantTo := strings.ToLower(to.Hex())
	wantValue, err := abi.NewUint256(big.NewInt(7))
	c.Assert(err, qt.IsNil)
	c.Assert(gotBody, qt.Equals, wantFrom+"->"+wantTo+":"+wantValue.Hex())
}

func TestEngineDispatchHTTPNonSuccessStatus(t *testing.T) {
	c := qt.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	engine := New(nil, newTestTemplater(t), srv.Client(), nil)
	err := engine.dispatch(uuid.New(), Endpoint{Kind: EndpointURI, URI: srv.URL}, "body")
	c.Assert(err, qt.ErrorMatches, "non-success status code 500.*")
}

func mustRender(t *testing.T, engine *Engine, l rpc.Log) string {
	t.Helper()
	rendered, err := engine.templater.TemplateLog(l)
	qt.New(t).Assert(err, qt.IsNil)
	return rendered
}
