package postgres

import (
	"context"
	"fmt"
	"time"

	"pantry/internal/core/apperror"
	"pantry/internal/infrastructure/idempotency"
)

// IdempotencyStore keeps idempotency keys in sys_idempotency so replays work
// across instances sharing the database.
type IdempotencyStore struct {
	txManager *TxManager
	ttl       time.Duration
}

// NewIdempotencyStore creates a new idempotency store.
func NewIdempotencyStore(txManager *TxManager, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{txManager: txManager, ttl: ttl}
}

var _ idempotency.Store = (*IdempotencyStore)(nil)

type idempotencyRecord struct {
	Key         string             `db:"idempotency_key"`
	Operation   string             `db:"operation"`
	Status      idempotency.Status `db:"status"`
	RequestHash string             `db:"request_hash"`
	Response    []byte             `db:"response"`
	StatusCode  int                `db:"response_status"`
	ContentType string             `db:"response_content_type"`
	CreatedAt   time.Time          `db:"created_at"`
	UpdatedAt   time.Time          `db:"updated_at"`
}

// Acquire inserts the key or reads the existing one in a single statement.
func (s *IdempotencyStore) Acquire(ctx context.Context, key, operation, requestHash string) (*idempotency.Replay, error) {
	// Postgres keeps microseconds; truncate so our own insert compares equal.
	now := time.Now().UTC().Truncate(time.Microsecond)
	q := s.txManager.GetQuerier(ctx)

	if _, err := q.Exec(ctx, "DELETE FROM sys_idempotency WHERE expires_at < $1", now); err != nil {
		return nil, apperror.NewDatabase("expire idempotency keys", err)
	}

	var rec idempotencyRecord
	err := q.QueryRow(ctx, `
		INSERT INTO sys_idempotency (idempotency_key, operation, status, request_hash, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $5, $6)
		ON CONFLICT (idempotency_key) DO UPDATE SET expires_at = sys_idempotency.expires_at
		RETURNING idempotency_key, operation, status, request_hash,
		          COALESCE(response, ''::bytea), response_status, response_content_type, created_at, updated_at
	`, key, operation, idempotency.StatusPending, requestHash, now, now.Add(s.ttl)).Scan(
		&rec.Key, &rec.Operation, &rec.Status, &rec.RequestHash,
		&rec.Response, &rec.StatusCode, &rec.ContentType, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, apperror.NewDatabase("acquire idempotency key", err)
	}

	// Our own insert.
	if rec.CreatedAt.Equal(now) {
		return nil, nil
	}

	if rec.Operation != operation || rec.RequestHash != requestHash {
		return nil, idempotency.NewMismatch(key).
			WithDetail("stored_operation", rec.Operation).
			WithDetail("request_operation", operation)
	}

	switch rec.Status {
	case idempotency.StatusCompleted:
		return &idempotency.Replay{
			StatusCode:  rec.StatusCode,
			ContentType: rec.ContentType,
			Body:        rec.Response,
		}, nil
	default:
		if time.Since(rec.UpdatedAt) <= idempotency.StaleAfter {
			return nil, idempotency.NewInFlight(key)
		}
		tag, err := q.Exec(ctx, `
			UPDATE sys_idempotency SET updated_at = $1
			WHERE idempotency_key = $2 AND status = $3 AND updated_at = $4
		`, now, key, idempotency.StatusPending, rec.UpdatedAt)
		if err != nil {
			return nil, apperror.NewDatabase("reclaim idempotency key", err)
		}
		if tag.RowsAffected() == 0 {
			return nil, idempotency.NewInFlight(key)
		}
		return nil, nil
	}
}

// Complete stores the response for key.
func (s *IdempotencyStore) Complete(ctx context.Context, key string, statusCode int, contentType string, body []byte) error {
	tag, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE sys_idempotency
		SET status = $1,
		    response = $2,
		    response_status = $3,
		    response_content_type = $4,
		    updated_at = $5
		WHERE idempotency_key = $6
	`, idempotency.StatusCompleted, body, statusCode, contentType, time.Now().UTC(), key)
	if err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("idempotency key", key)
	}
	return nil
}
