package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLimiter_Burst(t *testing.T) {
	l := New("base", 1, 2)

	if !l.Allow() || !l.Allow() {
		t.Fatal("expected burst of 2 to be allowed")
	}
	if l.Allow() {
		t.Error("expected third immediate request to be throttled")
	}
}

func TestLimiter_Unlimited(t *testing.T) {
	l := New("torus", 0, 0)
	for i := 0; i < 100; i++ {
		if !l.Allow() {
			t.Fatalf("request %d throttled on an unlimited limiter", i)
		}
	}
}

func TestLimiter_NilNeverBlocks(t *testing.T) {
	var l *Limiter
	if err := l.Wait(context.Background()); err != nil {
		t.Errorf("nil limiter Wait() = %v", err)
	}
	if !l.Allow() {
		t.Error("nil limiter should allow")
	}
}

func TestDo_ContextCancelled(t *testing.T) {
	l := New("base", 0.001, 1)
	l.Allow() // drain the only token

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	called := false
	_, err := Do(ctx, l, func(ctx context.Context) (int, error) {
		called = true
		return 1, nil
	})
	if err == nil {
		t.Fatal("expected error when the context expires before a token")
	}
	if called {
		t.Error("fn must not run without a token")
	}
}

func TestDo_PassesResult(t *testing.T) {
	l := New("base", 100, 1)
	sentinel := errors.New("rpc down")

	got, err := Do(context.Background(), l, func(ctx context.Context) (string, error) {
		return "0x1", sentinel
	})
	if got != "0x1" || !errors.Is(err, sentinel) {
		t.Errorf("Do() = %q, %v", got, err)
	}
}
