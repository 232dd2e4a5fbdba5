package app

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fd1az/torus-bridge/internal/logger"
)

const (
	// RecoveryPath is the page a recovery URL points at.
	RecoveryPath = "/fast"
	// TxIDParam is the query parameter carrying the history id.
	TxIDParam = "txId"
)

// Navigator reads and replaces the current location without adding a
// history entry.
type Navigator interface {
	Current() *url.URL
	Replace(target string) error
}

// URLState keeps the id of the running transfer in the recovery URL.
type URLState struct {
	nav Navigator
	log logger.LoggerInterface
}

// NewURLState returns a URLState over nav.
func NewURLState(nav Navigator, log logger.LoggerInterface) *URLState {
	return &URLState{nav: nav, log: log}
}

// SetTransactionInURL points the recovery URL at id. Other query pairs
// keep their order and encoding; the first txId pair is replaced in place.
func (u *URLState) SetTransactionInURL(ctx context.Context, id string) {
	entry := TxIDParam + "=" + url.QueryEscape(id)
	pairs := u.queryPairs()
	out := make([]string, 0, len(pairs)+1)
	set := false
	for _, p := range pairs {
		if pairKey(p) != TxIDParam {
			out = append(out, p)
			continue
		}
		if !set {
			out = append(out, entry)
			set = true
		}
	}
	if !set {
		out = append(out, entry)
	}
	u.replace(ctx, out)
}

// GetTransactionFromURL returns the id in the recovery URL. ok is false
// when the parameter is absent; an empty value is returned as present.
// A value that does not unescape is returned raw.
func (u *URLState) GetTransactionFromURL() (id string, ok bool) {
	for _, p := range u.queryPairs() {
		if pairKey(p) != TxIDParam {
			continue
		}
		_, v, _ := strings.Cut(p, "=")
		if uv, err := url.QueryUnescape(v); err == nil {
			return uv, true
		}
		return v, true
	}
	return "", false
}

// ClearTransactionFromURL removes the id and keeps other pairs verbatim.
func (u *URLState) ClearTransactionFromURL(ctx context.Context) {
	pairs := u.queryPairs()
	out := pairs[:0]
	for _, p := range pairs {
		if pairKey(p) != TxIDParam {
			out = append(out, p)
		}
	}
	u.replace(ctx, out)
}

// queryPairs splits the current raw query into its "k=v" pairs without
// decoding them, so malformed pairs survive a rewrite.
func (u *URLState) queryPairs() []string {
	cur := u.nav.Current()
	if cur == nil || cur.RawQuery == "" {
		return nil
	}
	var pairs []string
	for _, p := range strings.Split(cur.RawQuery, "&") {
		if p != "" {
			pairs = append(pairs, p)
		}
	}
	return pairs
}

// pairKey returns the unescaped key of a raw pair, or the raw key when it
// does not unescape.
func pairKey(pair string) string {
	k, _, _ := strings.Cut(pair, "=")
	if uk, err := url.QueryUnescape(k); err == nil {
		return uk
	}
	return k
}

func (u *URLState) replace(ctx context.Context, pairs []string) {
	target := RecoveryPath
	if len(pairs) > 0 {
		target += "?" + strings.Join(pairs, "&")
	}
	if err := u.nav.Replace(target); err != nil {
		u.log.Warn(ctx, "failed to update recovery url", "target", target, "error", err)
	}
}

// MemoryNavigator is an in-process location.
type MemoryNavigator struct {
	mu  sync.Mutex
	cur *url.URL
}

// NewMemoryNavigator starts at base. An unparsable base starts empty.
func NewMemoryNavigator(base string) *MemoryNavigator {
	cur, err := url.Parse(base)
	if err != nil {
		cur = &url.URL{Path: RecoveryPath}
	}
	return &MemoryNavigator{cur: cur}
}

// Current implements Navigator.
func (m *MemoryNavigator) Current() *url.URL {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *m.cur
	return &c
}

// Replace implements Navigator.
func (m *MemoryNavigator) Replace(target string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next, err := m.cur.Parse(target)
	if err != nil {
		return err
	}
	m.cur = next
	return nil
}

// FileNavigator keeps the location in a file so it survives a restart.
type FileNavigator struct {
	mu   sync.Mutex
	path string
	base *url.URL
}

// NewFileNavigator stores the location at path, resolving relative
// targets against base.
func NewFileNavigator(path, base string) (*FileNavigator, error) {
	b, err := url.Parse(base)
	if err != nil {
		return nil, err
	}
	return &FileNavigator{path: path, base: b}, nil
}

// Current implements Navigator. A missing or corrupt file reads as base.
func (f *FileNavigator) Current() *url.URL {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := os.ReadFile(f.path)
	if err != nil {
		c := *f.base
		return &c
	}
	cur, err := f.base.Parse(strings.TrimSpace(string(data)))
	if err != nil {
		c := *f.base
		return &c
	}
	return cur
}

// Replace implements Navigator.
func (f *FileNavigator) Replace(target string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	next, err := f.base.Parse(target)
	if err != nil {
		return err
	}
	if f.path == "" {
		return errors.New("file navigator: no path")
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(next.String()+"\n"), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}
