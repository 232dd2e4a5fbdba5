package app

import (
	"sync"

	"github.com/fd1az/torus-bridge/business/bridge/domain"
)

// StateListener observes every change of the shared state.
type StateListener func(state domain.TransferState, records []domain.TransactionRecord)

// SharedState holds the current transfer and its per-step records. It is
// safe for concurrent use; listeners are called synchronously after each
// mutation with a private copy.
type SharedState struct {
	mu        sync.RWMutex
	state     domain.TransferState
	records   []domain.TransactionRecord
	listeners map[int]StateListener
	nextID    int
}

// NewSharedState returns an idle state.
func NewSharedState() *SharedState {
	return &SharedState{
		state:     domain.IdleState(),
		listeners: make(map[int]StateListener),
	}
}

// Update shallow-merges u into the state.
func (s *SharedState) Update(u domain.StateUpdate) {
	s.mu.Lock()
	s.state = u.Apply(s.state)
	s.mu.Unlock()
	s.notify()
}

// AddTransaction inserts r, replacing any record with the same step.
func (s *SharedState) AddTransaction(r domain.TransactionRecord) {
	s.mu.Lock()
	s.records = upsertRecord(s.records, r.Clone())
	s.mu.Unlock()
	s.notify()
}

// SetTransactions replaces all records. Duplicated steps collapse to the
// last occurrence.
func (s *SharedState) SetTransactions(records []domain.TransactionRecord) {
	var next []domain.TransactionRecord
	for _, r := range records {
		next = upsertRecord(next, r.Clone())
	}
	s.mu.Lock()
	s.records = next
	s.mu.Unlock()
	s.notify()
}

// MapTransactions rewrites every record through fn.
func (s *SharedState) MapTransactions(fn func(domain.TransactionRecord) domain.TransactionRecord) {
	s.mu.Lock()
	for i := range s.records {
		s.records[i] = fn(s.records[i].Clone())
	}
	s.mu.Unlock()
	s.notify()
}

// ClearErrorDetails strips errorDetails from all records. Status and the
// state's error message are left alone.
func (s *SharedState) ClearErrorDetails() {
	s.MapTransactions(func(r domain.TransactionRecord) domain.TransactionRecord {
		r.ErrorDetails = ""
		return r
	})
}

// Reset returns to idle and drops all records.
func (s *SharedState) Reset() {
	s.mu.Lock()
	s.state = domain.IdleState()
	s.records = nil
	s.mu.Unlock()
	s.notify()
}

// Restore puts back a previously taken snapshot.
func (s *SharedState) Restore(state domain.TransferState, records []domain.TransactionRecord) {
	s.mu.Lock()
	s.state = state
	s.records = cloneRecords(records)
	s.mu.Unlock()
	s.notify()
}

// State returns the current transfer state.
func (s *SharedState) State() domain.TransferState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Transactions returns a copy of the records, ordered by step.
func (s *SharedState) Transactions() []domain.TransactionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneRecords(s.records)
}

// Transaction returns the record for step, if any.
func (s *SharedState) Transaction(step int) (domain.TransactionRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.records {
		if r.Step == step {
			return r.Clone(), true
		}
	}
	return domain.TransactionRecord{}, false
}

// Snapshot returns state and records read under the same lock.
func (s *SharedState) Snapshot() (domain.TransferState, []domain.TransactionRecord) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, cloneRecords(s.records)
}

// Subscribe registers l and returns a function that removes it.
func (s *SharedState) Subscribe(l StateListener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *SharedState) notify() {
	s.mu.RLock()
	if len(s.listeners) == 0 {
		s.mu.RUnlock()
		return
	}
	state := s.state
	listeners := make([]StateListener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	records := cloneRecords(s.records)
	s.mu.RUnlock()

	for _, l := range listeners {
		l(state, cloneRecords(records))
	}
}

func upsertRecord(records []domain.TransactionRecord, r domain.TransactionRecord) []domain.TransactionRecord {
	for i := range records {
		if records[i].Step == r.Step {
			out := make([]domain.TransactionRecord, len(records))
			copy(out, records)
			out[i] = r
			return out
		}
	}
	out := make([]domain.TransactionRecord, 0, len(records)+1)
	inserted := false
	for _, existing := range records {
		if !inserted && r.Step < existing.Step {
			out = append(out, r)
			inserted = true
		}
		out = append(out, existing)
	}
	if !inserted {
		out = append(out, r)
	}
	return out
}

func cloneRecords(records []domain.TransactionRecord) []domain.TransactionRecord {
	if records == nil {
		return nil
	}
	out := make([]domain.TransactionRecord, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}
