package wsconn

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrSubscriptionClosed is returned when a subscription ended because the
// connection dropped.
var ErrSubscriptionClosed = errors.New("wsconn: subscription closed")

const (
	notificationBuffer = 32
	maxOrphans         = 16
)

// RPCError is a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("rpc error %d: %s: %s", e.Code, e.Message, string(e.Data))
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// ErrorCode returns the JSON-RPC error code.
func (e *RPCError) ErrorCode() int { return e.Code }

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type envelope struct {
	ID     *uint64         `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params *notification   `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *RPCError       `json:"error,omitempty"`
}

type notification struct {
	Subscription json.RawMessage `json:"subscription"`
	Result       json.RawMessage `json:"result"`
}

type response struct {
	result json.RawMessage
	err    error
}

// RPC is a JSON-RPC 2.0 client with pub/sub support over a Client.
type RPC struct {
	client *Client
	nextID atomic.Uint64

	mu      sync.Mutex
	pending map[uint64]chan response
	subs    map[string]*Subscription
	orphans map[string][]json.RawMessage
}

// NewRPC wires a JSON-RPC layer onto client. It takes over the client's
// message and state handlers.
func NewRPC(client *Client) *RPC {
	r := &RPC{
		client:  client,
		pending: make(map[uint64]chan response),
		subs:    make(map[string]*Subscription),
		orphans: make(map[string][]json.RawMessage),
	}
	client.OnMessage(r.handle)
	client.OnStateChange(r.onState)
	return r
}

// Dial creates a client, attaches the RPC layer and connects.
func Dial(ctx context.Context, cfg Config) (*RPC, error) {
	client, err := New(cfg)
	if err != nil {
		return nil, err
	}
	r := NewRPC(client)
	if err := client.Connect(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return r, nil
}

// Client returns the underlying websocket client.
func (r *RPC) Client() *Client { return r.client }

// Call invokes method and decodes the result into result (may be nil).
func (r *RPC) Call(ctx context.Context, result any, method string, params ...any) error {
	raw, err := r.call(ctx, method, params)
	if err != nil {
		return err
	}
	if result == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return fmt.Errorf("wsconn: decode %s result: %w", method, err)
	}
	return nil
}

func (r *RPC) call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	if params == nil {
		params = []any{}
	}
	id := r.nextID.Add(1)
	ch := make(chan response, 1)

	r.mu.Lock()
	r.pending[id] = ch
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.pending, id)
		r.mu.Unlock()
	}()

	req := request{JSONRPC: "2.0", ID: id, Method: method, Params: params}
	if err := r.client.SendJSON(ctx, req); err != nil {
		return nil, fmt.Errorf("wsconn: send %s: %w", method, err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case resp := <-ch:
		return resp.result, resp.err
	}
}

// Subscribe issues a subscription call and returns the stream of
// notification payloads.
func (r *RPC) Subscribe(ctx context.Context, method, unsubscribeMethod string, params ...any) (*Subscription, error) {
	raw, err := r.call(ctx, method, params)
	if err != nil {
		return nil, err
	}

	sub := &Subscription{
		id:    subscriptionKey(raw),
		rawID: raw,
		rpc:   r,
		unsub: unsubscribeMethod,
		ch:    make(chan json.RawMessage, notificationBuffer),
		done:  make(chan struct{}),
	}

	r.mu.Lock()
	r.subs[sub.id] = sub
	early := r.orphans[sub.id]
	delete(r.orphans, sub.id)
	r.mu.Unlock()

	for _, n := range early {
		sub.deliver(n)
	}
	return sub, nil
}

// Close closes the underlying connection and ends all subscriptions.
func (r *RPC) Close() error {
	err := r.client.Close()
	r.failAll(ErrClosed)
	return err
}

func (r *RPC) handle(_ context.Context, msg []byte) {
	var env envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		return
	}

	if env.ID == nil && env.Params != nil {
		key := subscriptionKey(env.Params.Subscription)
		r.mu.Lock()
		sub, ok := r.subs[key]
		if !ok {
			if len(r.orphans[key]) < maxOrphans {
				r.orphans[key] = append(r.orphans[key], env.Params.Result)
			}
			r.mu.Unlock()
			return
		}
		r.mu.Unlock()
		sub.deliver(env.Params.Result)
		return
	}

	if env.ID == nil {
		return
	}

	r.mu.Lock()
	ch, ok := r.pending[*env.ID]
	r.mu.Unlock()
	if !ok {
		return
	}

	resp := response{result: env.Result}
	if env.Error != nil {
		resp = response{err: env.Error}
	}
	select {
	case ch <- resp:
	default:
	}
}

func (r *RPC) onState(state State, _ error) {
	switch state {
	case StateReconnecting, StateDisconnected:
		r.failAll(ErrNotConnected)
	}
}

func (r *RPC) failAll(err error) {
	r.mu.Lock()
	pending := r.pending
	subs := r.subs
	r.pending = make(map[uint64]chan response)
	r.subs = make(map[string]*Subscription)
	r.orphans = make(map[string][]json.RawMessage)
	r.mu.Unlock()

	for _, ch := range pending {
		select {
		case ch <- response{err: err}:
		default:
		}
	}
	for _, sub := range subs {
		sub.end()
	}
}

func subscriptionKey(raw json.RawMessage) string {
	return string(bytes.Trim(bytes.TrimSpace(raw), `"`))
}

// Subscription is a server-push stream.
type Subscription struct {
	id    string
	rawID json.RawMessage
	unsub string
	rpc   *RPC

	ch   chan json.RawMessage
	mu   sync.Mutex
	done chan struct{}
	once sync.Once
}

// ID returns the server-assigned subscription id.
func (s *Subscription) ID() string { return s.id }

// Notifications returns the payload stream. It is closed when the
// subscription ends.
func (s *Subscription) Notifications() <-chan json.RawMessage { return s.ch }

// Done is closed when the subscription ends.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Unsubscribe ends the subscription on the server and locally.
func (s *Subscription) Unsubscribe(ctx context.Context) error {
	s.rpc.mu.Lock()
	delete(s.rpc.subs, s.id)
	s.rpc.mu.Unlock()

	s.end()
	if s.unsub == "" {
		return nil
	}
	var ok bool
	var id any = s.id
	if err := json.Unmarshal(s.rawID, &id); err != nil {
		id = s.id
	}
	return s.rpc.Call(ctx, &ok, s.unsub, id)
}

func (s *Subscription) deliver(payload json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case s.ch <- payload:
	default:
		// slow consumer, drop
	}
}

func (s *Subscription) end() {
	s.once.Do(func() {
		s.mu.Lock()
		close(s.done)
		close(s.ch)
		s.mu.Unlock()
	})
}
