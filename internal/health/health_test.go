package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

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

type fakeChain struct {
	block uint64
	err   error
}

func (f fakeChain) BlockNumber(ctx context.Context) (uint64, error) {
	return f.block, f.err
}

func TestHealth_AllHealthy(t *testing.T) {
	s := NewServer(0, "test", &mockLogger{})
	s.RegisterCheck("base", EVMCheck(fakeChain{block: 42}))
	s.RegisterCheck("torus-native", PingCheck(func(ctx context.Context) (string, error) {
		return "Torus", nil
	}))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var status Status
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if status.Checks["base"].Message != "block 42" {
		t.Errorf("base message = %q", status.Checks["base"].Message)
	}
}

func TestHealth_Degraded(t *testing.T) {
	s := NewServer(0, "test", &mockLogger{})
	s.RegisterCheck("base", EVMCheck(fakeChain{err: errors.New("connection refused")}))

	tests := []struct {
		path string
		want int
	}{
		{"/health", http.StatusServiceUnavailable},
		{"/ready", http.StatusServiceUnavailable},
		{"/live", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
