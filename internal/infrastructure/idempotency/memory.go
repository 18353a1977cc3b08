package idempotency

import (
	"context"
	"sync"
	"time"

	"sheetstock/internal/core/apperror"
)

type record struct {
	req       Request
	status    Status
	resp      Replay
	updatedAt time.Time
	expiresAt time.Time
}

// MemoryStore keeps keys in process memory. It backs the memory storage
// driver.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	records map[string]*record
	now     func() time.Time
}

// NewMemoryStore creates a store remembering keys for ttl.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{ttl: ttl, records: make(map[string]*record), now: time.Now}
}

// SetClock overrides the time source.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.now = now
}

func (s *MemoryStore) Acquire(_ context.Context, req Request) (*Replay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	r, ok := s.records[req.Key]
	if !ok || now.After(r.expiresAt) {
		s.records[req.Key] = &record{
			req:       req,
			status:    StatusPending,
			updatedAt: now,
			expiresAt: now.Add(s.ttl),
		}
		return nil, nil
	}

	if r.req != req {
		return nil, apperror.NewIdempotencyMismatch(req.Key).
			WithDetail("stored_operation", r.req.Operation).
			WithDetail("request_operation", req.Operation)
	}

	switch r.status {
	case StatusSuccess, StatusFailed:
		out := r.resp
		out.Body = append([]byte(nil), r.resp.Body...)
		return out.Normalize(), nil
	default:
		if now.Sub(r.updatedAt) > StaleAfter {
			r.updatedAt = now
			return nil, nil
		}
		return nil, apperror.NewIdempotencyConflict(req.Key)
	}
}

func (s *MemoryStore) Complete(_ context.Context, key string, resp Replay) error {
	s.finish(key, StatusSuccess, resp)
	return nil
}

func (s *MemoryStore) Fail(_ context.Context, key string, resp Replay) error {
	s.finish(key, StatusFailed, resp)
	return nil
}

func (s *MemoryStore) finish(key string, status Status, resp Replay) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[key]; ok {
		r.status = status
		r.resp = resp
		r.updatedAt = s.now()
	}
}

func (s *MemoryStore) CleanupExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var n int64
	for k, r := range s.records {
		if now.After(r.expiresAt) {
			delete(s.records, k)
			n++
		}
	}
	return n, nil
}
