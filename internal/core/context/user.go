// Package context provides request-scoped values extraction.
package context

import (
	"context"
)

// Session identifies who performs a mutation. Every mutating call receives it
// through ctx; there is no process-global "current user".
type Session struct {
	UserID      string
	DisplayName string
	Terminal    string
}

type sessionKey struct{}

// WithSession adds Session to context.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// GetSession returns Session from context.
func GetSession(ctx context.Context) *Session {
	if v, ok := ctx.Value(sessionKey{}).(*Session); ok {
		return v
	}
	return nil
}

// GetUserID returns user ID from context or "system".
func GetUserID(ctx context.Context) string {
	if s := GetSession(ctx); s != nil && s.UserID != "" {
		return s.UserID
	}
	return "system"
}
