package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
	nextRev uint64
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string]Record{}}
}

func (s *MemoryStore) Get(_ context.Context, key string) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[key]
	return r, ok, nil
}

func (s *MemoryStore) CompareAndSwap(_ context.Context, key string, expected uint64, next Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.records[key].Revision != expected {
		return Record{}, ErrConflict
	}
	s.nextRev++
	next.Key = key
	next.Revision = s.nextRev
	s.records[key] = next
	return next, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string, expected uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.records[key]
	if !ok || cur.Revision != expected {
		return ErrConflict
	}
	delete(s.records, key)
	return nil
}

func (s *MemoryStore) Prune(_ context.Context, resolvedBefore, pendingBefore time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, r := range s.records {
		if expired(r, resolvedBefore, pendingBefore) {
			delete(s.records, k)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Close() error { return nil }
