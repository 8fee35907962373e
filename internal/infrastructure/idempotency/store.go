// Package idempotency remembers the response of a mutating request so that a
// retried POST /sales (same X-Idempotency-Key) replays it instead of consuming
// stock twice.
package idempotency

import (
	"context"
	"sync"
	"time"

	"pantry/internal/core/apperror"
)

// Status of a key.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// StaleAfter is how long a pending key may stay unfinished before another
// request may reclaim it (the first one most likely crashed).
const StaleAfter = time.Minute

// Replay is a stored HTTP response.
type Replay struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Store keeps idempotency keys.
type Store interface {
	// Acquire claims key for operation. It returns (nil, nil) when the caller
	// should execute the request, a Replay when it already ran, and a CONFLICT
	// error when the key is in flight or was used for a different request.
	Acquire(ctx context.Context, key, operation, requestHash string) (*Replay, error)

	// Complete stores the response for key.
	Complete(ctx context.Context, key string, statusCode int, contentType string, body []byte) error
}

// NewMismatch reports reuse of a key for another request.
func NewMismatch(key string) *apperror.AppError {
	return apperror.NewConflict("idempotency key was used for a different request").
		WithDetail("idempotency_key", key)
}

// NewInFlight reports a key whose first request has not finished.
func NewInFlight(key string) *apperror.AppError {
	return apperror.NewConflict("request with this idempotency key is still being processed").
		WithDetail("idempotency_key", key)
}

type record struct {
	operation   string
	requestHash string
	status      Status
	replay      Replay
	updatedAt   time.Time
	expiresAt   time.Time
}

// MemoryStore is a Store for single-instance deployments.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	records map[string]*record
}

// NewMemoryStore creates a store whose keys expire after ttl.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, now: time.Now, records: make(map[string]*record)}
}

func (s *MemoryStore) Acquire(ctx context.Context, key, operation, requestHash string) (*Replay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.evict(now)

	rec, ok := s.records[key]
	if !ok {
		s.records[key] = &record{
			operation:   operation,
			requestHash: requestHash,
			status:      StatusPending,
			updatedAt:   now,
			expiresAt:   now.Add(s.ttl),
		}
		return nil, nil
	}

	if rec.operation != operation || rec.requestHash != requestHash {
		return nil, NewMismatch(key).
			WithDetail("stored_operation", rec.operation).
			WithDetail("request_operation", operation)
	}

	switch rec.status {
	case StatusCompleted:
		r := rec.replay
		return &r, nil
	default:
		if now.Sub(rec.updatedAt) > StaleAfter {
			rec.updatedAt = now
			return nil, nil
		}
		return nil, NewInFlight(key)
	}
}

func (s *MemoryStore) Complete(ctx context.Context, key string, statusCode int, contentType string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		return apperror.NewNotFound("idempotency key", key)
	}
	rec.status = StatusCompleted
	rec.replay = Replay{StatusCode: statusCode, ContentType: contentType, Body: append([]byte(nil), body...)}
	rec.updatedAt = s.now()
	return nil
}

func (s *MemoryStore) evict(now time.Time) {
	for k, rec := range s.records {
		if now.After(rec.expiresAt) {
			delete(s.records, k)
		}
	}
}

var _ Store = (*MemoryStore)(nil)
