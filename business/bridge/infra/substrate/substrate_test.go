package substrate

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"

	"github.com/fd1az/torus-bridge/business/bridge/app"
	"github.com/fd1az/torus-bridge/internal/apperror"
	"github.com/fd1az/torus-bridge/internal/logger"
)

const (
	aliceSS58 = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"
	aliceHex  = "d43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d"
)

type mockLogger struct{}

var _ logger.LoggerInterface = (*mockLogger)(nil)

func (m *mockLogger) Debug(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Info(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Warn(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Error(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Debugc(ctx context.Context, caller int, msg string, args ...any) {}
func (m *mockLogger) Infoc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Warnc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Errorc(ctx context.Context, caller int, msg string, args ...any) {}

func TestSS58(t *testing.T) {
	pub, err := DecodeSS58(aliceSS58)
	if err != nil {
		t.Fatalf("DecodeSS58() error = %v", err)
	}
	if hex.EncodeToString(pub) != aliceHex {
		t.Errorf("pub = %x", pub)
	}
	if got := EncodeSS58(pub, 42); got != aliceSS58 {
		t.Errorf("EncodeSS58() = %s", got)
	}

	for _, bad := range []string{"", "not-an-address", "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQZ"} {
		if _, err := DecodeSS58(bad); !apperror.HasCode(err, apperror.CodeInvalidAddress) {
			t.Errorf("DecodeSS58(%q) err = %v", bad, err)
		}
	}
}

func TestMapper_EVMToNative(t *testing.T) {
	m := NewMapper(0)

	got, err := m.EVMToNative("0x1111111111111111111111111111111111111111")
	if err != nil {
		t.Fatalf("EVMToNative() error = %v", err)
	}
	if got != "5DDYKUgyHe2Sx8a9oTZPAXrgFaTiGnYZXrecNdeC9bG7TbtX" {
		t.Errorf("EVMToNative() = %s", got)
	}

	if _, err := m.EVMToNative("0x123"); !apperror.HasCode(err, apperror.CodeInvalidAddress) {
		t.Errorf("bad address err = %v", err)
	}
}

func TestAccountKey(t *testing.T) {
	pub, _ := hex.DecodeString(aliceHex)
	key, err := accountKey(pub)
	if err != nil {
		t.Fatal(err)
	}
	want := "0x26aa394eea5630e07c48ae0c9558cef7b99d880ec681799c0cf30e8886371da9de1e86a9a8c739864cf3cc5ec2bea59f" + aliceHex
	if key != want {
		t.Errorf("accountKey() = %s\nwant %s", key, want)
	}
}

// fakeRPC answers calls from a method table.
type fakeRPC struct {
	mu      sync.Mutex
	results map[string]any
	errs    map[string]error
	calls   []string
	sub     *fakeSub
}

func (f *fakeRPC) Call(ctx context.Context, result any, method string, params ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, method)
	if err := f.errs[method]; err != nil {
		return err
	}
	raw, err := json.Marshal(f.results[method])
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, result)
}

func (f *fakeRPC) Subscribe(ctx context.Context, method, unsub string, params ...any) (Subscription, error) {
	return f.sub, nil
}

func (f *fakeRPC) Close() error { return nil }

func TestClient_FreeBalance(t *testing.T) {
	ctx := context.Background()
	zero := types.NewU128(*big.NewInt(0))
	encoded, err := codec.EncodeToHex(accountInfo{
		Nonce:    3,
		Free:     types.NewU128(*big.NewInt(123_456)),
		Reserved: zero,
		Frozen:   zero,
		Flags:    zero,
	})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		result  any
		rpcErr  error
		want    int64
		wantErr apperror.Code
	}{
		{name: "funded", result: encoded, want: 123_456},
		{name: "missing account", result: nil, want: 0},
		{name: "rpc failure", rpcErr: errors.New("socket closed"), wantErr: apperror.CodeSubstrateRPCError},
		{name: "garbage", result: "0x01", wantErr: apperror.CodeSubstrateEncodingFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rpc := &fakeRPC{
				results: map[string]any{"state_getStorage": tt.result},
				errs:    map[string]error{"state_getStorage": tt.rpcErr},
			}
			c, err := NewClientWithRPC(Config{}, "", rpc, &mockLogger{}, nil)
			if err != nil {
				t.Fatal(err)
			}
			got, err := c.FreeBalance(ctx, aliceSS58)
			if tt.wantErr != "" {
				if !apperror.HasCode(err, tt.wantErr) {
					t.Errorf("err = %v, want %s", err, tt.wantErr)
				}
				return
			}
			if err != nil || got.Int64() != tt.want {
				t.Errorf("FreeBalance() = %v, %v; want %d", got, err, tt.want)
			}
		})
	}
}

func TestClient_TransferGuards(t *testing.T) {
	ctx := context.Background()

	readOnly, _ := NewClientWithRPC(Config{}, "", &fakeRPC{}, &mockLogger{}, nil)
	if _, err := readOnly.Transfer(ctx, aliceSS58, big.NewInt(1)); !apperror.HasCode(err, apperror.CodeWalletNotConnected) {
		t.Errorf("read-only err = %v", err)
	}

	signer, err := NewClientWithRPC(Config{}, "//Alice", &fakeRPC{}, &mockLogger{}, nil)
	if err != nil {
		t.Fatalf("NewClientWithRPC() error = %v", err)
	}
	if signer.Address() != aliceSS58 {
		t.Errorf("Address() = %s", signer.Address())
	}
	if _, err := signer.Transfer(ctx, "bogus", big.NewInt(1)); !apperror.HasCode(err, apperror.CodeInvalidAddress) {
		t.Errorf("bad destination err = %v", err)
	}
}

func TestClient_NotConnected(t *testing.T) {
	c, _ := NewClient(Config{}, "", &mockLogger{}, nil)
	if _, err := c.FreeBalance(context.Background(), aliceSS58); !apperror.HasCode(err, apperror.CodeSubstrateConnection) {
		t.Errorf("err = %v", err)
	}
}

type fakeSub struct {
	ch           chan json.RawMessage
	done         chan struct{}
	mu           sync.Mutex
	unsubscribed int
}

func newFakeSub() *fakeSub {
	return &fakeSub{ch: make(chan json.RawMessage, 8), done: make(chan struct{})}
}

func (s *fakeSub) Notifications() <-chan json.RawMessage { return s.ch }
func (s *fakeSub) Done() <-chan struct{}                 { return s.done }
func (s *fakeSub) Unsubscribe(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsubscribed++
	return nil
}

func collect(t *testing.T, tr app.Tracker) []app.TrackerEvent {
	t.Helper()
	var out []app.TrackerEvent
	timeout := time.After(time.Second)
	for {
		select {
		case ev, ok := <-tr.Events():
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("tracker did not close")
		}
	}
}

func TestTracker(t *testing.T) {
	tests := []struct {
		name  string
		msgs  []string
		drop  bool
		kinds []app.TrackerEventKind
	}{
		{
			name:  "finalized",
			msgs:  []string{`"ready"`, `{"broadcast":["peer"]}`, `{"inBlock":"0xb1"}`, `{"finalized":"0xb1"}`},
			kinds: []app.TrackerEventKind{app.TrackerSubmitted, app.TrackerInBlock, app.TrackerFinalized},
		},
		{
			name:  "dropped",
			msgs:  []string{`"ready"`, `"dropped"`},
			kinds: []app.TrackerEventKind{app.TrackerSubmitted, app.TrackerError},
		},
		{
			name:  "usurped",
			msgs:  []string{`{"usurped":"0xaa"}`},
			kinds: []app.TrackerEventKind{app.TrackerSubmitted, app.TrackerError},
		},
		{
			name:  "connection lost",
			drop:  true,
			kinds: []app.TrackerEventKind{app.TrackerSubmitted, app.TrackerError},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := newFakeSub()
			for _, m := range tt.msgs {
				sub.ch <- json.RawMessage(m)
			}
			if tt.drop {
				close(sub.done)
			}

			tr := newTracker("0xhash", sub, &mockLogger{})
			events := collect(t, tr)
			tr.Stop()
			tr.Stop()

			if len(events) != len(tt.kinds) {
				t.Fatalf("events = %+v", events)
			}
			for i, ev := range events {
				if ev.Kind != tt.kinds[i] || ev.TxHash != "0xhash" {
					t.Errorf("event %d = %+v, want %s", i, ev, tt.kinds[i])
				}
			}
			if last := events[len(events)-1]; last.Kind == app.TrackerFinalized && last.BlockHash != "0xb1" {
				t.Errorf("block hash = %q", last.BlockHash)
			}
			if sub.unsubscribed != 1 {
				t.Errorf("unsubscribed = %d, want 1", sub.unsubscribed)
			}
		})
	}
}

func TestTracker_StopBeforeFinal(t *testing.T) {
	sub := newFakeSub()
	tr := newTracker("0xhash", sub, &mockLogger{})
	tr.Stop()

	if ev := <-tr.Events(); ev.Kind != app.TrackerSubmitted {
		t.Errorf("first event = %+v", ev)
	}
	if _, ok := <-tr.Events(); ok {
		t.Error("events still open after Stop")
	}
}
