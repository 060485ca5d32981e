package node

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/gorilla/websocket"

	"github.com/ethgate/gateway/rpc"
)

// fakeUpstream answers eth_blockNumber with a height that advances by one on
// every poll (simulating a chain producing one block per tick), and answers
// eth_getBlockByNumber / eth_getLogs for whatever block number is requested,
// always non-null.
func fakeUpstream(t *testing.T) *httptest.Server {
	upgrader := websocket.Upgrader{}
	var height int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req struct {
				ID     uint64          `json:"id"`
				Method string          `json:"method"`
				Params json.RawMessage `json:"params"`
			}
			if err := json.Unmarshal(data, &req); err != nil {
				return
			}

			var result any
			switch req.Method {
			case rpc.MethodBlockNumber:
				h := atomic.AddInt64(&height, 1)
				result = "0x" + strconv.FormatInt(h, 16)
			case rpc.MethodGetBlockByNumber:
				var params []json.RawMessage
				json.Unmarshal(req.Params, &params)
				numHex := strings.Trim(string(params[0]), `"`)
				result = map[string]any{
					"number":       numHex,
					"hash":         "0x" + strings.Repeat("11", 32),
					"parentHash":   "0x" + strings.Repeat("22", 32),
					"timestamp":    "0x1",
					"transactions": []string{},
				}
			case rpc.MethodGetLogs:
				var filters []struct {
					FromBlock string `json:"fromBlock"`
				}
				json.Unmarshal(req.Params, &filters)
				var fromBlock string
				if len(filters) > 0 {
					fromBlock = filters[0].FromBlock
				}
				entry := map[string]any{
					"address": "0x" + strings.Repeat("33", 20),
					"topics":  []string{"0x" + strings.Repeat("44", 32)},
					"data":    "0x",
				}
				if fromBlock != "pending" {
					entry["blockNumber"] = fromBlock
				}
				result = []map[string]any{entry}
			default:
				result = nil
			}

			resp := map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": result}
			frame, _ := json.Marshal(resp)
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func dialClient(t *testing.T, url string) *Client {
	transport, err := rpc.Dial(context.Background(), url)
	qt.New(t).Assert(err, qt.IsNil)
	t.Cleanup(func() { transport.Close() })
	return NewClient(transport)
}

func TestBlockStreamSequential(t *testing.T) {
	c := qt.New(t)
	srv := fakeUpstream(t)
	client := dialClient(t, wsURL(srv.URL))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, errCh := client.BlockStream(ctx, big.NewInt(1), 2*time.Millisecond, 0)

	var got []uint64
	for len(got) < 3 {
		select {
		case b := <-out:
			got = append(got, (*big.Int)(b.Number).Uint64())
		case err := <-errCh:
			c.Fatalf("unexpected stream error: %v", err)
		case <-ctx.Done():
			c.Fatalf("timed out waiting for blocks")
		}
	}
	c.Assert(got, qt.DeepEquals, []uint64{1, 2, 3})
}

func TestLogStreamOrderAndBlockNumbers(t *testing.T) {
	c := qt.New(t)
	srv := fakeUpstream(t)
	client := dialClient(t, wsURL(srv.URL))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, errCh := client.LogStream(ctx, big.NewInt(1), 2*time.Millisecond, rpc.Filter{}, 0)

	var got []uint64
	for len(got) < 3 {
		select {
		case batch := <-out:
			got = append(got, batch.Block.Uint64())
			c.Assert(len(batch.Logs), qt.Equals, 1)
			c.Assert((*big.Int)(batch.Logs[0].BlockNumber).Uint64(), qt.Equals, batch.Block.Uint64())
		case err := <-errCh:
			c.Fatalf("unexpected stream error: %v", err)
		case <-ctx.Done():
			c.Fatalf("timed out waiting for log batches")
		}
	}
	c.Assert(got, qt.DeepEquals, []uint64{1, 2, 3})
}

func TestStreamLogsLatestIncludesPending(t *testing.T) {
	c := qt.New(t)
	srv := fakeUpstream(t)
	client := dialClient(t, wsURL(srv.URL))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, errCh := client.StreamLogsLatest(ctx, 2*time.Millisecond, rpc.Filter{})

	select {
	case item := <-out:
		c.Assert(len(item.Included), qt.Equals, 1)
		c.Assert(len(item.Pending), qt.Equals, 1)
		c.Assert(len(item.All()), qt.Equals, 2)
	case err := <-errCh:
		c.Fatalf("unexpected stream error: %v", err)
	case <-ctx.Done():
		c.Fatalf("timed out waiting for latest logs")
	}
}
