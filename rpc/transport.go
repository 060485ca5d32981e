package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ethgate/gateway/log"
)

const (
	// DefaultCallTimeout bounds how long a single request waits for its
	// response before the caller gets ErrTimeout.
	DefaultCallTimeout = 37 * time.Second
	// clientPingInterval is how often the transport pings the node to
	// detect a dead socket.
	clientPingInterval = 60 * time.Second
	writeWait          = 10 * time.Second
)

// ErrTimeout is returned when a call does not receive a response within its
// deadline.
var ErrTimeout = errors.New("rpc: call timed out")

// ErrTransportClosed is surfaced to every outstanding and future caller once
// the underlying socket is lost or the transport is shut down.
var ErrTransportClosed = errors.New("rpc: transport closed")

// pendingCall is the one-shot completion handle for an in-flight request.
type pendingCall struct {
	resultCh chan rawResponse
	errCh    chan error
}

// Transport multiplexes many concurrent JSON-RPC callers over a single
// WebSocket connection to an upstream node. It owns the connection
// exclusively: all writes go through a single goroutine, and all reads are
// demultiplexed by request id.
type Transport struct {
	conn *websocket.Conn

	mu      sync.Mutex
	pending map[uint64]*pendingCall
	nextID  uint64
	closed  bool
	closeCh chan struct{}

	writeCh chan []byte
	done    chan struct{}
}

// Dial establishes a multiplexed transport over a WebSocket connection to
// url.
func Dial(ctx context.Context, url string) (*Transport, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("rpc: dial %s: %w", url, err)
	}
	return newTransport(conn), nil
}

func newTransport(conn *websocket.Conn) *Transport {
	t := &Transport{
		conn:    conn,
		pending: make(map[uint64]*pendingCall),
		closeCh: make(chan struct{}),
		writeCh: make(chan []byte, 64),
		done:    make(chan struct{}),
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(clientPingInterval + 10*time.Second))
	})
	go t.writeLoop()
	go t.readLoop()
	return t
}

// reserveID returns the next request id, skipping over ids that would
// collide with a still-pending call (a hole left by a long-running
// request), and wrapping around at the uint64 boundary.
func (t *Transport) reserveID() uint64 {
	for {
		t.nextID++
		if _, taken := t.pending[t.nextID]; !taken {
			return t.nextID
		}
	}
}

// Call issues one JSON-RPC request and waits for its matching response, a
// context cancellation, the transport's default timeout, or transport
// failure, whichever comes first.
func (t *Transport) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	call := &pendingCall{resultCh: make(chan rawResponse, 1), errCh: make(chan error, 1)}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrTransportClosed
	}
	id := t.reserveID()
	t.pending[id] = call
	t.mu.Unlock()

	req := &Request{Method: method, Params: params, id: id}
	frame, err := req.MarshalFrame()
	if err != nil {
		t.dropPending(id)
		return nil, fmt.Errorf("rpc: encode request: %w", err)
	}

	select {
	case t.writeCh <- frame:
	case <-t.closeCh:
		t.dropPending(id)
		return nil, ErrTransportClosed
	}

	timeout := DefaultCallTimeout
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-call.resultCh:
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	case err := <-call.errCh:
		return nil, err
	case <-timer.C:
		t.dropPending(id)
		return nil, ErrTimeout
	case <-ctx.Done():
		t.dropPending(id)
		return nil, ctx.Err()
	case <-t.closeCh:
		return nil, ErrTransportClosed
	}
}

func (t *Transport) dropPending(id uint64) {
	t.mu.Lock()
	delete(t.pending, id)
	t.mu.Unlock()
}

func (t *Transport) writeLoop() {
	ticker := time.NewTicker(clientPingInterval)
	defer ticker.Stop()
	for {
		select {
		case frame, ok := <-t.writeCh:
			if !ok {
				return
			}
			_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := t.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				t.fail(fmt.Errorf("rpc: write: %w", err))
				return
			}
		case <-ticker.C:
			_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := t.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				t.fail(fmt.Errorf("rpc: ping: %w", err))
				return
			}
		case <-t.done:
			return
		}
	}
}

func (t *Transport) readLoop() {
	_ = t.conn.SetReadDeadline(time.Now().Add(clientPingInterval + 10*time.Second))
	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			t.fail(fmt.Errorf("rpc: read: %w", err))
			return
		}
		var resp rawResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			log.Warnw("dropping unparseable rpc frame", "error", err.Error())
			continue
		}
		t.mu.Lock()
		call, ok := t.pending[resp.ID]
		if ok {
			delete(t.pending, resp.ID)
		}
		t.mu.Unlock()
		if !ok {
			log.Warnw("dropping response for unknown request id", "id", resp.ID)
			continue
		}
		call.resultCh <- resp
	}
}

// fail aborts the transport: every pending call and every call still in
// flight receives ErrTransportClosed.
func (t *Transport) fail(err error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	pending := t.pending
	t.pending = nil
	t.mu.Unlock()

	log.Warnw("rpc transport failed", "error", err.Error())
	for _, call := range pending {
		call.errCh <- ErrTransportClosed
	}
	close(t.closeCh)
	close(t.done)
}

// Close drains no further writes and closes the underlying connection,
// failing every outstanding call.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()
	err := t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	t.fail(ErrTransportClosed)
	_ = t.conn.Close()
	return err
}
