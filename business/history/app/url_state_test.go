package app

import (
	"context"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
)

// recordingNavigator remembers every Replace target.
type recordingNavigator struct {
	current  *url.URL
	replaced []string
}

func newRecordingNavigator(rawQuery string) *recordingNavigator {
	return &recordingNavigator{current: &url.URL{Scheme: "http", Host: "localhost", Path: "/fast", RawQuery: rawQuery}}
}

func (n *recordingNavigator) Current() *url.URL { return n.current }

func (n *recordingNavigator) Replace(target string) error {
	n.replaced = append(n.replaced, target)
	next, err := n.current.Parse(target)
	if err != nil {
		return err
	}
	n.current = next
	return nil
}

func (n *recordingNavigator) last() string {
	if len(n.replaced) == 0 {
		return ""
	}
	return n.replaced[len(n.replaced)-1]
}

func TestURLState_SetTransactionInURL(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		id        string
		contains  []string
		forbidden []string
	}{
		{"adds id", "", "tx-123", []string{"txId=tx-123"}, nil},
		{"keeps other params", "param1=value1", "tx-123", []string{"txId=tx-123", "param1=value1"}, nil},
		{"replaces old id", "txId=old-tx", "new-tx", []string{"txId=new-tx"}, []string{"old-tx"}},
		{"special characters", "", "tx-123-abc_def", []string{"txId=tx-123-abc_def"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nav := newRecordingNavigator(tt.query)
			NewURLState(nav, &mockLogger{}).SetTransactionInURL(context.Background(), tt.id)

			got := nav.last()
			if !strings.HasPrefix(got, "/fast") {
				t.Errorf("target %q does not route to /fast", got)
			}
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("target %q missing %q", got, want)
				}
			}
			for _, bad := range tt.forbidden {
				if strings.Contains(got, bad) {
					t.Errorf("target %q still contains %q", got, bad)
				}
			}
		})
	}
}

func TestURLState_GetTransactionFromURL(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		want   string
		wantOK bool
	}{
		{"present", "txId=tx-123", "tx-123", true},
		{"absent", "", "", false},
		{"among others", "param1=value1&txId=tx-456&param2=value2", "tx-456", true},
		{"empty value", "txId=", "", true},
		{"encoded", "txId=tx%2D123%2Dabc", "tx-123-abc", true},
		{"malformed query", "txId=tx-1&bad=%zz", "tx-1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := NewURLState(newRecordingNavigator(tt.query), &mockLogger{})
			got, ok := u.GetTransactionFromURL()
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("GetTransactionFromURL() = %q, %v; want %q, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestURLState_ClearTransactionFromURL(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"only id", "txId=tx-123", "/fast"},
		{"keeps others", "param1=value1&txId=tx-123&param2=value2", "/fast?param1=value1&param2=value2"},
		{"no id", "param1=value1", "/fast?param1=value1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nav := newRecordingNavigator(tt.query)
			NewURLState(nav, &mockLogger{}).ClearTransactionFromURL(context.Background())
			if got := nav.last(); got != tt.want {
				t.Errorf("target = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestURLState_KeepsOtherPairsVerbatim(t *testing.T) {
	tests := []struct {
		name  string
		query string
		set   string
		want  string
	}{
		{"order kept on replace", "z=1&txId=old&a=2", "new", "/fast?z=1&txId=new&a=2"},
		{"malformed pair kept", "bad=%zz&txId=old", "new", "/fast?bad=%zz&txId=new"},
		{"duplicate ids collapse", "txId=a&x=1&txId=b", "c", "/fast?txId=c&x=1"},
		{"encoding kept", "q=a+b&r=%41", "tx-1", "/fast?q=a+b&r=%41&txId=tx-1"},
		{"id escaped", "", "a b&c", "/fast?txId=a+b%26c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nav := newRecordingNavigator(tt.query)
			u := NewURLState(nav, &mockLogger{})
			u.SetTransactionInURL(context.Background(), tt.set)
			if got := nav.last(); got != tt.want {
				t.Errorf("target = %q, want %q", got, tt.want)
			}
			if id, ok := u.GetTransactionFromURL(); !ok || id != tt.set {
				t.Errorf("GetTransactionFromURL() = %q, %v", id, ok)
			}
		})
	}

	nav := newRecordingNavigator("bad=%zz&txId=tx-1&z=1")
	NewURLState(nav, &mockLogger{}).ClearTransactionFromURL(context.Background())
	if got := nav.last(); got != "/fast?bad=%zz&z=1" {
		t.Errorf("clear target = %q", got)
	}
}

func TestURLState_RecoveryRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "recovery.url")

	nav, err := NewFileNavigator(path, "http://localhost/fast")
	if err != nil {
		t.Fatalf("NewFileNavigator() error = %v", err)
	}
	NewURLState(nav, &mockLogger{}).SetTransactionInURL(ctx, "tx-recovery-123")

	// A new process reads the same file.
	restarted, err := NewFileNavigator(path, "http://localhost/fast")
	if err != nil {
		t.Fatalf("NewFileNavigator() error = %v", err)
	}
	u := NewURLState(restarted, &mockLogger{})
	if id, ok := u.GetTransactionFromURL(); !ok || id != "tx-recovery-123" {
		t.Fatalf("after restart got %q, %v", id, ok)
	}

	u.ClearTransactionFromURL(ctx)
	if _, ok := u.GetTransactionFromURL(); ok {
		t.Error("id still present after clear")
	}
}

func TestMemoryNavigator(t *testing.T) {
	nav := NewMemoryNavigator("http://localhost/fast?param1=value1")
	u := NewURLState(nav, &mockLogger{})
	u.SetTransactionInURL(context.Background(), "tx-1")

	cur := nav.Current()
	if cur.Host != "localhost" || cur.Query().Get("param1") != "value1" || cur.Query().Get("txId") != "tx-1" {
		t.Errorf("current = %s", cur)
	}
}
