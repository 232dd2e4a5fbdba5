package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/fd1az/torus-bridge/business/bridge/app"
	"github.com/fd1az/torus-bridge/business/bridge/domain"
	"github.com/fd1az/torus-bridge/internal/logger"
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

func testEvent() app.Event {
	return app.Event{
		Type:          app.EventStepConfirming,
		TransactionID: "tx-1",
		Direction:     domain.BaseToNative,
		Step:          domain.Step1Confirming,
		Amount:        "10",
		TxHash:        "0xabc",
		Timestamp:     time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

type fakeConn struct {
	msgs        []*nats.Msg
	publishErr  error
	hadDeadline bool
	drained     bool
}

func (f *fakeConn) PublishMsg(msg *nats.Msg) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakeConn) FlushWithContext(ctx context.Context) error {
	_, f.hadDeadline = ctx.Deadline()
	return nil
}

func (f *fakeConn) Drain() error {
	f.drained = true
	return nil
}

func TestNATSPublisher(t *testing.T) {
	conn := &fakeConn{}
	p := NewNATSPublisher(conn, "torus.bridge", &mockLogger{})

	if err := p.Publish(context.Background(), testEvent()); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if len(conn.msgs) != 1 {
		t.Fatalf("published %d messages", len(conn.msgs))
	}
	msg := conn.msgs[0]
	if msg.Subject != "torus.bridge.transfer.step_confirming" {
		t.Errorf("subject = %s", msg.Subject)
	}
	if msg.Header.Get(nats.MsgIdHdr) == "" {
		t.Error("missing dedup header")
	}
	if !conn.hadDeadline {
		t.Error("flush called without a deadline")
	}

	var got app.Event
	if err := json.Unmarshal(msg.Data, &got); err != nil {
		t.Fatal(err)
	}
	if got.TransactionID != "tx-1" || got.TxHash != "0xabc" || got.Direction != domain.BaseToNative {
		t.Errorf("payload = %+v", got)
	}

	if err := p.Close(); err != nil || !conn.drained {
		t.Errorf("Close() = %v, drained = %v", err, conn.drained)
	}
}

func TestNATSPublisher_Error(t *testing.T) {
	p := NewNATSPublisher(&fakeConn{publishErr: nats.ErrConnectionClosed}, "s", &mockLogger{})
	if err := p.Publish(context.Background(), testEvent()); !errors.Is(err, nats.ErrConnectionClosed) {
		t.Errorf("err = %v", err)
	}
}

func TestWebhook(t *testing.T) {
	tests := []struct {
		name      string
		failFirst int
		status    int
		wantCalls int32
		wantErr   bool
	}{
		{name: "delivered", status: http.StatusNoContent, wantCalls: 1},
		{name: "retried then delivered", failFirst: 2, status: http.StatusOK, wantCalls: 3},
		{name: "client error is not retried", status: http.StatusBadRequest, wantCalls: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			var got app.Event
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := atomic.AddInt32(&calls, 1)
				if int(n) <= tt.failFirst {
					w.WriteHeader(http.StatusServiceUnavailable)
					return
				}
				if r.Header.Get("X-Bridge") != "torus" {
					w.WriteHeader(http.StatusUnauthorized)
					return
				}
				_ = json.NewDecoder(r.Body).Decode(&got)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			wh, err := NewWebhook(WebhookConfig{
				URL:     srv.URL,
				Timeout: time.Second,
				Retries: 3,
				Backoff: time.Millisecond,
				Headers: map[string]string{"X-Bridge": "torus"},
			}, &mockLogger{})
			if err != nil {
				t.Fatal(err)
			}

			err = wh.Publish(context.Background(), testEvent())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Publish() error = %v, wantErr %v", err, tt.wantErr)
			}
			if c := atomic.LoadInt32(&calls); c != tt.wantCalls {
				t.Errorf("calls = %d, want %d", c, tt.wantCalls)
			}
			if !tt.wantErr && got.Type != app.EventStepConfirming {
				t.Errorf("payload = %+v", got)
			}
		})
	}
}

type stubPublisher struct {
	err   error
	count int
}

func (s *stubPublisher) Publish(ctx context.Context, event app.Event) error {
	s.count++
	return s.err
}

func TestMulti(t *testing.T) {
	ok := &stubPublisher{}
	bad := &stubPublisher{err: errors.New("down")}
	last := &stubPublisher{}

	m := NewMulti(&mockLogger{}, ok, nil, bad, last)
	if m.Len() != 3 {
		t.Fatalf("Len() = %d", m.Len())
	}

	err := m.Publish(context.Background(), testEvent())
	if err == nil || !errors.Is(err, bad.err) {
		t.Errorf("err = %v", err)
	}
	if ok.count != 1 || bad.count != 1 || last.count != 1 {
		t.Errorf("counts = %d %d %d", ok.count, bad.count, last.count)
	}

	if err := NewMulti(&mockLogger{}).Publish(context.Background(), testEvent()); err != nil {
		t.Errorf("empty Multi err = %v", err)
	}
}
