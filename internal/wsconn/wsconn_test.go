package wsconn

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
)

// mockWSServer creates a test WebSocket server driven by handler.
func mockWSServer(t *testing.T, handler func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Logf("websocket accept error: %v", err)
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")

		if handler != nil {
			handler(conn)
		}
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

// echoHandler echoes messages back to the client.
func echoHandler(conn *websocket.Conn) {
	ctx := context.Background()
	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if err := conn.Write(ctx, msgType, data); err != nil {
			return
		}
	}
}

// substrateNode answers a handful of JSON-RPC methods the way a Substrate
// node does, including extrinsic status notifications.
func substrateNode(conn *websocket.Conn) {
	ctx := context.Background()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var req struct {
			ID     uint64            `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		if err := json.Unmarshal(data, &req); err != nil {
			return
		}

		reply := func(v map[string]any) {
			v["jsonrpc"] = "2.0"
			out, _ := json.Marshal(v)
			conn.Write(ctx, websocket.MessageText, out)
		}

		switch req.Method {
		case "system_chain":
			reply(map[string]any{"id": req.ID, "result": "Torus"})
		case "system_accountNextIndex":
			reply(map[string]any{"id": req.ID, "result": 7})
		case "author_submitAndWatchExtrinsic":
			reply(map[string]any{"id": req.ID, "result": "sub-1"})
			for _, status := range []any{"ready", map[string]string{"inBlock": "0xabc"}, map[string]string{"finalized": "0xdef"}} {
				reply(map[string]any{
					"method": "author_extrinsicUpdate",
					"params": map[string]any{"subscription": "sub-1", "result": status},
				})
			}
		case "author_unwatchExtrinsic":
			reply(map[string]any{"id": req.ID, "result": true})
		default:
			reply(map[string]any{"id": req.ID, "error": map[string]any{"code": -32601, "message": "Method not found"}})
		}
	}
}

func TestClient_Connect_Success(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		time.Sleep(100 * time.Millisecond)
	})
	defer server.Close()

	cfg := DefaultConfig(wsURL(server), "torus")
	cfg.PingInterval = 0

	client, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if !client.IsConnected() {
		t.Errorf("expected state %v, got %v", StateConnected, client.State())
	}
}

func TestClient_Connect_Failure(t *testing.T) {
	cfg := DefaultConfig("ws://localhost:59999", "torus")
	cfg.PingInterval = 0

	client, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Connect(ctx); err == nil {
		t.Fatal("expected connection error")
	}
	if client.State() != StateDisconnected {
		t.Errorf("expected state %v, got %v", StateDisconnected, client.State())
	}
}

func TestNew_EmptyURL(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error for empty url")
	}
}

func TestClient_MessageHandling(t *testing.T) {
	server := mockWSServer(t, echoHandler)
	defer server.Close()

	cfg := DefaultConfig(wsURL(server), "torus")
	cfg.PingInterval = 0

	client, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	defer client.Close()

	received := make(chan []byte, 1)
	client.OnMessage(func(ctx context.Context, msg []byte) {
		received <- msg
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	payload := map[string]any{"jsonrpc": "2.0", "id": 1, "method": "system_health"}
	if err := client.SendJSON(ctx, payload); err != nil {
		t.Fatalf("SendJSON failed: %v", err)
	}

	select {
	case msg := <-received:
		var parsed map[string]any
		if err := json.Unmarshal(msg, &parsed); err != nil {
			t.Fatalf("echo is not valid JSON: %v", err)
		}
		if parsed["method"] != "system_health" {
			t.Errorf("expected method=system_health, got %v", parsed["method"])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestClient_StateChangeHandler(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		time.Sleep(100 * time.Millisecond)
	})
	defer server.Close()

	cfg := DefaultConfig(wsURL(server), "torus")
	cfg.PingInterval = 0

	client, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	defer client.Close()

	var states []State
	var mu sync.Mutex
	client.OnStateChange(func(state State, err error) {
		mu.Lock()
		states = append(states, state)
		mu.Unlock()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(states) < 2 || states[0] != StateConnecting || states[1] != StateConnected {
		t.Fatalf("expected [connecting connected ...], got %v", states)
	}
}

func TestClient_GracefulClose(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		ctx := context.Background()
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	})
	defer server.Close()

	cfg := DefaultConfig(wsURL(server), "torus")
	cfg.PingInterval = 0

	client, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if client.State() != StateClosed {
		t.Errorf("expected state %v, got %v", StateClosed, client.State())
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close returned %v", err)
	}
	if err := client.Send(ctx, []byte("{}")); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after close, got %v", err)
	}
}

func TestClient_MaxMessageSize(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		// runtime metadata larger than the configured limit
		large := make([]byte, 1024*1024)
		for i := range large {
			large[i] = 'A'
		}
		conn.Write(context.Background(), websocket.MessageText, large)
		time.Sleep(100 * time.Millisecond)
	})
	defer server.Close()

	cfg := DefaultConfig(wsURL(server), "torus")
	cfg.PingInterval = 0
	cfg.MaxMessageSize = 100

	client, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	time.Sleep(300 * time.Millisecond)

	if client.State() == StateConnected {
		t.Error("expected client to drop the connection after an oversized message")
	}
}

func TestRPC_Call(t *testing.T) {
	server := mockWSServer(t, substrateNode)
	defer server.Close()

	cfg := DefaultConfig(wsURL(server), "torus")
	cfg.PingInterval = 0

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rpc, err := Dial(ctx, cfg)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer rpc.Close()

	var chain string
	if err := rpc.Call(ctx, &chain, "system_chain"); err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if chain != "Torus" {
		t.Errorf("expected Torus, got %s", chain)
	}

	var nonce uint64
	if err := rpc.Call(ctx, &nonce, "system_accountNextIndex", "5Grw"); err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if nonce != 7 {
		t.Errorf("expected nonce 7, got %d", nonce)
	}
}

func TestRPC_CallError(t *testing.T) {
	server := mockWSServer(t, substrateNode)
	defer server.Close()

	cfg := DefaultConfig(wsURL(server), "torus")
	cfg.PingInterval = 0

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rpc, err := Dial(ctx, cfg)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer rpc.Close()

	err = rpc.Call(ctx, nil, "unknown_method")
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected *RPCError, got %v", err)
	}
	if rpcErr.ErrorCode() != -32601 {
		t.Errorf("expected code -32601, got %d", rpcErr.ErrorCode())
	}
}

func TestRPC_Subscribe(t *testing.T) {
	server := mockWSServer(t, substrateNode)
	defer server.Close()

	cfg := DefaultConfig(wsURL(server), "torus")
	cfg.PingInterval = 0

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rpc, err := Dial(ctx, cfg)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer rpc.Close()

	sub, err := rpc.Subscribe(ctx, "author_submitAndWatchExtrinsic", "author_unwatchExtrinsic", "0x00")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if sub.ID() != "sub-1" {
		t.Errorf("expected id sub-1, got %s", sub.ID())
	}

	var got []string
	for len(got) < 3 {
		select {
		case n, ok := <-sub.Notifications():
			if !ok {
				t.Fatalf("subscription closed early after %v", got)
			}
			got = append(got, string(n))
		case <-ctx.Done():
			t.Fatalf("timeout, got %v", got)
		}
	}

	if got[0] != `"ready"` {
		t.Errorf("expected ready first, got %s", got[0])
	}
	if !strings.Contains(got[2], "finalized") {
		t.Errorf("expected finalized last, got %s", got[2])
	}

	if err := sub.Unsubscribe(ctx); err != nil {
		t.Errorf("Unsubscribe failed: %v", err)
	}
	select {
	case <-sub.Done():
	default:
		t.Error("expected Done to be closed after unsubscribe")
	}
}

func TestRPC_CloseFailsPending(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		// never answer
		ctx := context.Background()
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	})
	defer server.Close()

	cfg := DefaultConfig(wsURL(server), "torus")
	cfg.PingInterval = 0

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rpc, err := Dial(ctx, cfg)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}

	errc := make(chan error, 1)
	go func() {
		errc <- rpc.Call(ctx, nil, "system_health")
	}()

	time.Sleep(50 * time.Millisecond)
	rpc.Close()

	select {
	case err := <-errc:
		if err == nil {
			t.Error("expected pending call to fail on close")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pending call did not return after close")
	}
}
