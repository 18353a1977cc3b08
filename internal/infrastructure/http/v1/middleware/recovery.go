// Package middleware provides HTTP middleware components.
package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"sheetstock/internal/core/apperror"
	"sheetstock/pkg/logger"
)

// Recovery turns a panic in a handler into a 500 INTERNAL_ERROR response.
// The stack is logged, never sent to the client.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			p := recover()
			if p == nil {
				return
			}
			ctx := c.Request.Context()
			err := fmt.Errorf("panic: %v", p)

			logger.Error(ctx, "panic recovered",
				"error", err,
				"route", c.FullPath(),
				"stack", string(debug.Stack()),
			)
			span := trace.SpanFromContext(ctx)
			span.RecordError(err)
			span.SetStatus(codes.Error, "panic")

			_ = c.Error(apperror.NewInternal(err).
				WithDetail("request_id", c.GetString("request_id")))
			c.Abort()
		}()
		c.Next()
	}
}
