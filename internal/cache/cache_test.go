package cache

import (
	"context"
	"testing"
	"time"
)

func TestCache_SetGet(t *testing.T) {
	c := New[string, int](0)
	defer c.Close()
	ctx := context.Background()

	c.Set(ctx, "a", 1, time.Minute)

	v, ok := c.Get(ctx, "a")
	if !ok || v != 1 {
		t.Errorf("expected (1, true), got (%d, %v)", v, ok)
	}

	if _, ok := c.Get(ctx, "b"); ok {
		t.Error("expected miss for unknown key")
	}
}

func TestCache_Expiry(t *testing.T) {
	c := New[string, int](0)
	defer c.Close()
	ctx := context.Background()

	now := time.Now()
	c.now = func() time.Time { return now }
	c.Set(ctx, "a", 1, time.Second)

	c.now = func() time.Time { return now.Add(2 * time.Second) }
	if _, ok := c.Get(ctx, "a"); ok {
		t.Error("expected expired entry to miss")
	}

	c.evictExpired()
	if c.Len() != 0 {
		t.Errorf("expected sweep to remove entry, len=%d", c.Len())
	}
}

func TestCache_Delete(t *testing.T) {
	c := New[int, string](time.Hour)
	defer c.Close()
	ctx := context.Background()

	c.Set(ctx, 1, "x", time.Minute)
	c.Delete(ctx, 1)

	if _, ok := c.Get(ctx, 1); ok {
		t.Error("expected deleted key to miss")
	}
}

func TestCache_CloseIdempotent(t *testing.T) {
	c := New[int, int](time.Millisecond)
	c.Close()
	c.Close()
}
