package query

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"text/template"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/gorilla/websocket"

	"github.com/ethgate/gateway/abi"
	"github.com/ethgate/gateway/node"
	"github.com/ethgate/gateway/rpc"
	"github.com/ethgate/gateway/templating"
)

// fakeLogsUpstream answers every eth_getLogs call with a single fixed
// Transfer log, regardless of the filter it was sent.
func fakeLogsUpstream(t *testing.T) *httptest.Server {
	upgrader := websocket.Upgrader{}
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
				ID     uint64 `json:"id"`
				Method string `json:"method"`
			}
			if err := json.Unmarshal(data, &req); err != nil {
				return
			}

			var result any
			if req.Method == rpc.MethodGetLogs {
				result = []map[string]any{{
					"address": "0x" + strings.Repeat("ab", 20),
					"topics": []string{
						transferEvent.Signature().Hex(),
						addrValue(t, "0x0000000000000000000000000000000000000a").Hash().Hex(),
						addrValue(t, "0x0000000000000000000000000000000000000b").Hash().Hex(),
					},
					"data":        "0x",
					"blockNumber": "0x1",
				}}
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

func TestServiceQueryRendersMatchingLogs(t *testing.T) {
	c := qt.New(t)
	srv := fakeLogsUpstream(t)

	transport, err := rpc.Dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"))
	c.Assert(err, qt.IsNil)
	t.Cleanup(func() { transport.Close() })
	client := node.NewClient(transport)

	tmpl, err := template.New("transfer").Parse("{{.Event.from}}->{{.Event.to}}")
	c.Assert(err, qt.IsNil)
	templater := templating.New([]templating.EventSpec{{Event: transferEvent, Template: "transfer"}}, tmpl)

	enc := NewEncoder([]abi.Event{transferEvent})
	svc := NewService(enc, client, templater, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	matchers := []Matcher{{Name: "Transfer"}}
	rendered, err := svc.Query(ctx, matchers, nil, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(rendered, qt.HasLen, 1)
	c.Assert(strings.Contains(rendered[0], "->"), qt.IsTrue)
}
