package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSession(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, GetSession(ctx))
	assert.Equal(t, "system", GetUserID(ctx))

	ctx = WithSession(ctx, &Session{UserID: "clerk-1"})
	assert.Equal(t, "clerk-1", GetUserID(ctx))
}

func TestTrace(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetRequestID(ctx))

	tr := TraceFromSpan(ctx, "req-1", "trace-1")
	assert.Equal(t, "trace-1", tr.TraceID, "no active span keeps the fallback id")
	assert.Empty(t, tr.SpanID)

	ctx = WithTrace(ctx, tr)
	assert.Equal(t, "req-1", GetRequestID(ctx))
	assert.Same(t, tr, GetTrace(ctx))
}
