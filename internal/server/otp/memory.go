package otp

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local Store. It does not start goroutines; expired
// entries are removed when they are looked up.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
	now     Clock
}

// NewMemoryStore creates an empty store. A nil clock means time.Now.
func NewMemoryStore(now Clock) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{entries: make(map[string]Entry), now: now}
}

func (s *MemoryStore) Put(_ context.Context, email, code string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[email] = Entry{Code: code, ExpiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Take(_ context.Context, email string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[email]
	if !ok {
		return Entry{}, ErrNotFound
	}
	if e.Expired(s.now()) {
		delete(s.entries, email)
		return Entry{}, ErrExpired
	}
	return e, nil
}

func (s *MemoryStore) Consume(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, email)
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
