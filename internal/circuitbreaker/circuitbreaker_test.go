package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/fd1az/torus-bridge/internal/apperror"
)

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cfg := DefaultConfig("test-rpc")
	cfg.FailureThreshold = 2
	cfg.Timeout = time.Hour
	cb := New[int](cfg)

	boom := errors.New("rpc down")
	for i := 0; i < 2; i++ {
		if _, err := cb.Execute(func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
			t.Fatalf("attempt %d: expected underlying error, got %v", i, err)
		}
	}

	_, err := cb.Execute(func() (int, error) { return 1, nil })
	if apperror.GetCode(err) != apperror.CodeCircuitOpen {
		t.Errorf("expected CIRCUIT_OPEN, got %v", err)
	}
	if cb.State() != "open" {
		t.Errorf("expected open state, got %s", cb.State())
	}
}

func TestCircuitBreaker_PassesResults(t *testing.T) {
	cb := New[string](DefaultConfig("ok"))

	got, err := cb.Execute(func() (string, error) { return "0x1", nil })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "0x1" {
		t.Errorf("expected 0x1, got %s", got)
	}
}
