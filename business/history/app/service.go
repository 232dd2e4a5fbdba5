// Package app implements the transfer history store and the recovery URL
// state built on top of it.
package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fd1az/torus-bridge/business/history/domain"
	"github.com/fd1az/torus-bridge/internal/apperror"
	"github.com/fd1az/torus-bridge/internal/logger"
)

// SnapshotVersion is the current layout of a persisted snapshot.
const SnapshotVersion = 1

// Snapshot is the whole history as persisted by a Store.
type Snapshot struct {
	Version int           `json:"version"`
	Items   []domain.Item `json:"transactions"`
}

// Store persists history snapshots.
type Store interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
}

// Service is the transfer history. Items are kept newest first in memory
// and written through to the store after every mutation.
type Service struct {
	store Store
	log   logger.LoggerInterface
	now   func() time.Time

	mu     sync.Mutex
	items  []domain.Item
	loaded bool
}

// NewService returns a service over store. Nothing is read until the first
// call.
func NewService(store Store, log logger.LoggerInterface) *Service {
	return &Service{store: store, log: log, now: time.Now}
}

func (s *Service) ensureLoaded(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	snap, err := s.store.Load(ctx)
	if err != nil {
		return apperror.New(apperror.CodeHistoryLoadFailed, apperror.WithCause(err))
	}
	if snap.Version > SnapshotVersion {
		return apperror.New(apperror.CodeHistoryVersion, apperror.WithContext("unsupported history version"))
	}
	s.items = snap.Items
	s.loaded = true
	return nil
}

// commit saves items and makes them current. The in-memory list is left
// untouched when the store rejects the write.
func (s *Service) commit(ctx context.Context, items []domain.Item) error {
	snap := Snapshot{Version: SnapshotVersion, Items: cloneItems(items)}
	if err := s.store.Save(ctx, snap); err != nil {
		return apperror.New(apperror.CodeHistoryPersistFailed, apperror.WithCause(err))
	}
	s.items = items
	return nil
}

// AddTransaction stores item under a fresh id and timestamp and returns
// the id.
func (s *Service) AddTransaction(ctx context.Context, item domain.Item) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return "", err
	}

	item.ID = uuid.NewString()
	if item.Timestamp.IsZero() {
		item.Timestamp = s.now()
	}
	if item.Status == "" {
		item.Status = domain.StatusPending
	}

	if item.Status.IsResumable() {
		for _, existing := range s.items {
			if existing.Status.IsResumable() {
				s.log.Warn(ctx, "another transfer is still pending", "pending_id", existing.ID)
				break
			}
		}
	}

	if err := s.commit(ctx, append([]domain.Item{item}, s.items...)); err != nil {
		return "", err
	}
	s.log.Debug(ctx, "history entry added", "id", item.ID, "direction", item.Direction, "status", item.Status)
	return item.ID, nil
}

// UpdateTransaction applies patch to the item with id.
func (s *Service) UpdateTransaction(ctx context.Context, id string, patch domain.Patch) error {
	return s.mutate(ctx, id, patch.Apply)
}

// MarkAsRetried puts an item back to pending and disables further retries
// from the history view.
func (s *Service) MarkAsRetried(ctx context.Context, id string) error {
	return s.mutate(ctx, id, func(it domain.Item) domain.Item {
		it.Status = domain.StatusPending
		it.CanRetry = false
		return it
	})
}

// MarkFailedAsRecoveredViaEvmRecover closes every failed item after funds
// stranded on Torus EVM were sent on. It returns how many were changed.
func (s *Service) MarkFailedAsRecoveredViaEvmRecover(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return 0, err
	}

	next := cloneItems(s.items)
	n := 0
	for i, it := range next {
		if it.Status != domain.StatusError {
			continue
		}
		it.Status = domain.StatusCompleted
		it.RecoveredViaEvmRecover = true
		it.CanRetry = false
		it.ErrorMessage = ""
		it.ErrorStep = 0
		next[i] = it
		n++
	}
	if n == 0 {
		return 0, nil
	}
	if err := s.commit(ctx, next); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Service) mutate(ctx context.Context, id string, fn func(domain.Item) domain.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}
	for i := range s.items {
		if s.items[i].ID == id {
			next := cloneItems(s.items)
			next[i] = fn(next[i])
			return s.commit(ctx, next)
		}
	}
	return apperror.New(apperror.CodeHistoryNotFound, apperror.WithContext(id))
}

// GetTransactions returns all items, newest first.
func (s *Service) GetTransactions(ctx context.Context) ([]domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	out := cloneItems(s.items)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

// GetTransactionByID returns the item with id.
func (s *Service) GetTransactionByID(ctx context.Context, id string) (domain.Item, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return domain.Item{}, false, err
	}
	for _, it := range s.items {
		if it.ID == id {
			return it, true, nil
		}
	}
	return domain.Item{}, false, nil
}

// GetPendingTransaction returns the newest item that is pending or has
// only completed step 1.
func (s *Service) GetPendingTransaction(ctx context.Context) (domain.Item, bool, error) {
	items, err := s.GetTransactions(ctx)
	if err != nil {
		return domain.Item{}, false, err
	}
	for _, it := range items {
		if it.Status.IsResumable() {
			return it, true, nil
		}
	}
	return domain.Item{}, false, nil
}

// DeleteTransaction removes the item with id. Unknown ids are ignored.
func (s *Service) DeleteTransaction(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}
	kept := make([]domain.Item, 0, len(s.items))
	for _, it := range s.items {
		if it.ID != id {
			kept = append(kept, it)
		}
	}
	if len(kept) == len(s.items) {
		return nil
	}
	return s.commit(ctx, kept)
}

// ClearHistory removes every item.
func (s *Service) ClearHistory(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}
	return s.commit(ctx, nil)
}

func cloneItems(items []domain.Item) []domain.Item {
	if items == nil {
		return nil
	}
	out := make([]domain.Item, len(items))
	copy(out, items)
	return out
}

// MemoryStore keeps the snapshot in memory.
type MemoryStore struct {
	mu   sync.Mutex
	snap Snapshot
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snap: Snapshot{Version: SnapshotVersion}}
}

// Load implements Store.
func (m *MemoryStore) Load(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{Version: m.snap.Version, Items: cloneItems(m.snap.Items)}, nil
}

// Save implements Store.
func (m *MemoryStore) Save(ctx context.Context, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = Snapshot{Version: snap.Version, Items: cloneItems(snap.Items)}
	return nil
}
