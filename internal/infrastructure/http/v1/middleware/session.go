package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	appctx "sheetstock/internal/core/context"
)

const (
	HeaderUserID   = "X-User-ID"
	HeaderTerminal = "X-Terminal"
)

// Session puts the calling operator into the request context so mutations
// record who performed them. Authentication is done in front of the
// service; the headers are trusted as given.
func Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if userID != "" {
			ctx := appctx.WithSession(c.Request.Context(), &appctx.Session{
				UserID:   userID,
				Terminal: strings.TrimSpace(c.GetHeader(HeaderTerminal)),
			})
			c.Request = c.Request.WithContext(ctx)
			c.Set("user_id", userID)
		}
		c.Next()
	}
}
