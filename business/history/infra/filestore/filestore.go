// Package filestore persists the transfer history as a versioned JSON file.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fd1az/torus-bridge/business/history/app"
	"github.com/fd1az/torus-bridge/business/history/domain"
	"github.com/fd1az/torus-bridge/internal/logger"
)

// DefaultName is the file name used when the configured path is a directory.
const DefaultName = "torus-bridge-transaction-history.json"

// Store reads and writes one history file. Writes go to a temporary file in
// the same directory and are renamed over the target.
type Store struct {
	path string
	log  logger.LoggerInterface
	mu   sync.Mutex
}

var _ app.Store = (*Store)(nil)

// New returns a store at path. A path ending in a separator, or naming an
// existing directory, gets DefaultName appended.
func New(path string, log logger.LoggerInterface) *Store {
	if path == "" {
		path = DefaultName
	}
	if info, err := os.Stat(path); (err == nil && info.IsDir()) || os.IsPathSeparator(path[len(path)-1]) {
		path = filepath.Join(path, DefaultName)
	}
	return &Store{path: path, log: log}
}

// Path returns the file the store writes.
func (s *Store) Path() string { return s.path }

// Load implements app.Store. A missing file is an empty history; a corrupt
// file is reported and treated as empty so the bridge can still run.
func (s *Store) Load(ctx context.Context) (app.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return app.Snapshot{Version: app.SnapshotVersion}, nil
	}
	if err != nil {
		return app.Snapshot{}, fmt.Errorf("read %s: %w", s.path, err)
	}

	var snap app.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.log.Warn(ctx, "history file is corrupt, starting empty", "path", s.path, "error", err)
		return app.Snapshot{Version: app.SnapshotVersion}, nil
	}
	if snap.Version == 0 {
		snap.Version = app.SnapshotVersion
	}
	return snap, nil
}

// Save implements app.Store.
func (s *Store) Save(ctx context.Context, snap app.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if snap.Items == nil {
		snap.Items = []domain.Item{}
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".history-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}

	s.log.Debug(ctx, "history saved", "path", s.path, "items", len(snap.Items))
	return nil
}
