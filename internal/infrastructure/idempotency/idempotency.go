// Package idempotency deduplicates retried mutating HTTP requests carrying
// an X-Idempotency-Key header. The first request with a key is executed;
// later requests with the same key and body replay the stored response.
package idempotency

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// DefaultTTL is how long a completed key is remembered.
const DefaultTTL = 10 * time.Minute

// StaleAfter is the age at which a pending key is assumed abandoned and may
// be reclaimed by a new request.
const StaleAfter = time.Minute

// Status is the state of a key.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Request identifies one keyed request.
type Request struct {
	Key       string
	UserID    string
	Operation string
	// Hash is the hex SHA-256 of the request body.
	Hash string
}

// Replay is a stored HTTP response.
type Replay struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Store persists keys and their responses.
type Store interface {
	// Acquire claims the key. It returns (nil, nil) when the caller should
	// execute the request, a Replay when the key already finished, and an
	// IDEMPOTENCY_IN_PROGRESS or IDEMPOTENCY_KEY_REUSED error otherwise.
	Acquire(ctx context.Context, req Request) (*Replay, error)
	Complete(ctx context.Context, key string, resp Replay) error
	Fail(ctx context.Context, key string, resp Replay) error
	// CleanupExpired drops keys past their TTL and returns how many.
	CleanupExpired(ctx context.Context) (int64, error)
}

// JSONReplay encodes body as the stored response.
func JSONReplay(status int, body any) Replay {
	if body == nil {
		return Replay{StatusCode: status}
	}
	b, err := json.Marshal(body)
	if err != nil {
		b, _ = json.Marshal(map[string]string{"error": err.Error()})
	}
	return Replay{StatusCode: status, ContentType: "application/json", Body: b}
}

// Normalize fills defaults on a replay loaded from storage.
func (r *Replay) Normalize() *Replay {
	if r.StatusCode == 0 {
		r.StatusCode = http.StatusOK
	}
	if r.ContentType == "" && len(r.Body) > 0 {
		r.ContentType = "application/json"
	}
	return r
}
