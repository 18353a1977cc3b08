package postgres

import (
	"context"
	"fmt"
	"time"

	"sheetstock/internal/core/apperror"
	"sheetstock/internal/infrastructure/idempotency"
)

var _ idempotency.Store = (*IdempotencyStore)(nil)

// idempotencyRecord is one sys_idempotency row.
type idempotencyRecord struct {
	Key         string             `db:"idempotency_key"`
	UserID      string             `db:"user_id"`
	Operation   string             `db:"operation"`
	Status      idempotency.Status `db:"status"`
	RequestHash string             `db:"request_hash"`
	Response    []byte             `db:"response"`
	StatusCode  int                `db:"response_status"`
	ContentType string             `db:"response_content_type"`
	UpdatedAt   time.Time          `db:"updated_at"`
	Inserted    bool               `db:"inserted"`
}

// IdempotencyStore keeps idempotency keys in sys_idempotency.
type IdempotencyStore struct {
	txManager *TxManager
	ttl       time.Duration
}

// NewIdempotencyStore creates a store remembering keys for ttl.
func NewIdempotencyStore(txManager *TxManager, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = idempotency.DefaultTTL
	}
	return &IdempotencyStore{txManager: txManager, ttl: ttl}
}

const acquireIdempotencySQL = `
INSERT INTO sys_idempotency (idempotency_key, user_id, operation, status, request_hash, created_at, updated_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $6, $7)
ON CONFLICT (idempotency_key) DO UPDATE SET
	expires_at = GREATEST(sys_idempotency.expires_at, EXCLUDED.expires_at)
RETURNING idempotency_key, user_id, operation, status, request_hash,
	COALESCE(response, ''::bytea) AS response, response_status, response_content_type,
	updated_at, (xmax = 0) AS inserted`

// Acquire inserts the key or reports what the earlier request left behind.
func (s *IdempotencyStore) Acquire(ctx context.Context, req idempotency.Request) (*idempotency.Replay, error) {
	now := time.Now().UTC()

	var rec idempotencyRecord
	err := s.txManager.GetQuerier(ctx).QueryRow(ctx, acquireIdempotencySQL,
		req.Key, req.UserID, req.Operation, idempotency.StatusPending, req.Hash, now, now.Add(s.ttl),
	).Scan(
		&rec.Key, &rec.UserID, &rec.Operation, &rec.Status, &rec.RequestHash,
		&rec.Response, &rec.StatusCode, &rec.ContentType, &rec.UpdatedAt, &rec.Inserted,
	)
	if err != nil {
		return nil, fmt.Errorf("acquire idempotency key: %w", err)
	}
	if rec.Inserted {
		return nil, nil
	}

	if rec.UserID != req.UserID || rec.Operation != req.Operation || rec.RequestHash != req.Hash {
		return nil, apperror.NewIdempotencyMismatch(req.Key).
			WithDetail("stored_operation", rec.Operation).
			WithDetail("request_operation", req.Operation)
	}

	switch rec.Status {
	case idempotency.StatusSuccess, idempotency.StatusFailed:
		replay := &idempotency.Replay{
			StatusCode:  rec.StatusCode,
			ContentType: rec.ContentType,
			Body:        rec.Response,
		}
		return replay.Normalize(), nil
	}

	if time.Since(rec.UpdatedAt) <= idempotency.StaleAfter {
		return nil, apperror.NewIdempotencyConflict(req.Key)
	}

	// Reclaim a pending key whose request most likely crashed.
	tag, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE sys_idempotency SET updated_at = $1
		WHERE idempotency_key = $2 AND status = $3 AND updated_at = $4`,
		now, req.Key, idempotency.StatusPending, rec.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("reclaim stale idempotency key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, apperror.NewIdempotencyConflict(req.Key)
	}
	return nil, nil
}

// Complete stores a successful response for replay.
func (s *IdempotencyStore) Complete(ctx context.Context, key string, resp idempotency.Replay) error {
	return s.finish(ctx, key, idempotency.StatusSuccess, resp)
}

// Fail stores an error response for replay.
func (s *IdempotencyStore) Fail(ctx context.Context, key string, resp idempotency.Replay) error {
	return s.finish(ctx, key, idempotency.StatusFailed, resp)
}

func (s *IdempotencyStore) finish(ctx context.Context, key string, status idempotency.Status, resp idempotency.Replay) error {
	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE sys_idempotency
		SET status = $1,
		    response = $2,
		    response_status = $3,
		    response_content_type = $4,
		    updated_at = $5
		WHERE idempotency_key = $6`,
		status, resp.Body, resp.StatusCode, resp.ContentType, time.Now().UTC(), key)
	if err != nil {
		return fmt.Errorf("finish idempotency key: %w", err)
	}
	return nil
}

// CleanupExpired removes expired keys.
func (s *IdempotencyStore) CleanupExpired(ctx context.Context) (int64, error) {
	tag, err := s.txManager.GetQuerier(ctx).Exec(ctx,
		`DELETE FROM sys_idempotency WHERE expires_at < $1`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("cleanup idempotency keys: %w", err)
	}
	return tag.RowsAffected(), nil
}
