package payment

import (
	"context"
	"sync"
	"time"
)

// DefaultGuardTTL is the deduplication window for identical submissions.
const DefaultGuardTTL = 30 * time.Second

// MemoryStore is the in-process guard store: cached results with TTL and
// in-flight claims signalled over channels. Suitable for single-instance
// deployments; use RedisStore when several instances share one identity.
type MemoryStore struct {
	mu       sync.Mutex
	results  map[string]*Result
	expiry   map[string]time.Time
	inFlight map[string]chan struct{}
	ttl      time.Duration
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultGuardTTL
	}
	return &MemoryStore{
		results:  make(map[string]*Result),
		expiry:   make(map[string]time.Time),
		inFlight: make(map[string]chan struct{}),
		ttl:      ttl,
	}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Begin(_ context.Context, key string) (Status, *Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if expiry, ok := s.expiry[key]; ok {
		if time.Now().Before(expiry) {
			if result, ok := s.results[key]; ok {
				return StatusCached, result, nil
			}
		}
		delete(s.results, key)
		delete(s.expiry, key)
	}

	if _, ok := s.inFlight[key]; ok {
		return StatusInFlight, nil, nil
	}

	s.inFlight[key] = make(chan struct{})
	return StatusNotFound, nil, nil
}

func (s *MemoryStore) Wait(ctx context.Context, key string) (*Result, error) {
	s.mu.Lock()
	done, ok := s.inFlight[key]
	s.mu.Unlock()

	if !ok {
		// Claimant already finished between Begin and Wait.
		return s.get(key), nil
	}

	select {
	case <-done:
		return s.get(key), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *MemoryStore) Complete(_ context.Context, key string, result *Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results[key] = result
	s.expiry[key] = time.Now().Add(s.ttl)

	if done, ok := s.inFlight[key]; ok {
		delete(s.inFlight, key)
		close(done)
	}

	s.cleanupExpiredLocked()
	return nil
}

func (s *MemoryStore) Fail(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if done, ok := s.inFlight[key]; ok {
		delete(s.inFlight, key)
		close(done)
	}
	return nil
}

func (s *MemoryStore) get(key string) *Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, ok := s.expiry[key]
	if !ok {
		return nil
	}
	if time.Now().After(expiry) {
		delete(s.results, key)
		delete(s.expiry, key)
		return nil
	}
	return s.results[key]
}

// cleanupExpiredLocked drops stale cached results. Caller holds the lock.
func (s *MemoryStore) cleanupExpiredLocked() {
	now := time.Now()
	for key, expiry := range s.expiry {
		if now.After(expiry) {
			delete(s.results, key)
			delete(s.expiry, key)
		}
	}
}
