package memory

import (
	"context"
	"sync"
	"time"
)

type idempotencyEntry struct {
	paymentID int64
	expiresAt time.Time
}

// IdempotencyStore in-memory вариант для запуска без Redis (REDIS_ADDR пустой) и для тестов
type IdempotencyStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]idempotencyEntry
	now     func() time.Time
}

func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{
		ttl:     ttl,
		entries: make(map[string]idempotencyEntry),
		now:     time.Now,
	}
}

func (s *IdempotencyStore) Lookup(ctx context.Context, key string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictExpiredLocked()
	e, ok := s.entries[key]
	if !ok {
		return 0, false, nil
	}
	return e.paymentID, true, nil
}

// Remember как SET NX: существующую непротухшую запись не перезаписывает
func (s *IdempotencyStore) Remember(ctx context.Context, key string, paymentID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictExpiredLocked()
	if _, ok := s.entries[key]; ok {
		return nil
	}
	s.entries[key] = idempotencyEntry{paymentID: paymentID, expiresAt: s.now().Add(s.ttl)}
	return nil
}

// ленивая очистка, вызывается под lock
func (s *IdempotencyStore) evictExpiredLocked() {
	now := s.now()
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, k)
		}
	}
}
