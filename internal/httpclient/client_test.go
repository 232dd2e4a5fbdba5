package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestPostJSON_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
		}
		if r.Header.Get("X-Bridge-Token") != "secret" {
			t.Errorf("missing default header")
		}
		var in map[string]string
		json.NewDecoder(r.Body).Decode(&in)
		json.NewEncoder(w).Encode(map[string]string{"echo": in["type"]})
	}))
	defer server.Close()

	c, err := New(WithProviderName("webhook"), WithHeaders(map[string]string{"X-Bridge-Token": "secret"}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	var out map[string]string
	resp, err := c.PostJSON(context.Background(), server.URL, map[string]string{"type": "transfer.completed"}, &out)
	if err != nil {
		t.Fatalf("PostJSON() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK || out["echo"] != "transfer.completed" {
		t.Errorf("unexpected response %d %v", resp.StatusCode, out)
	}
}

func TestPostJSON_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c, err := New(WithRetries(3, time.Millisecond))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := c.PostJSON(context.Background(), server.URL, map[string]int{"n": 1}, nil); err != nil {
		t.Fatalf("PostJSON() error = %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestPostJSON_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad payload", http.StatusBadRequest)
	}))
	defer server.Close()

	c, err := New(WithRetries(3, time.Millisecond))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = c.PostJSON(context.Background(), server.URL, map[string]int{"n": 1}, nil)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 StatusError, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}
