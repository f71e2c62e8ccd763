package middleware

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/stockquote-service/internal/adapters/http/dto"
)

// Timeout bounds the request context to d. Handlers are expected to observe
// the deadline themselves; when one returns without writing after the
// deadline passed, the middleware answers 504 TIMEOUT on its behalf.
// Paths under any of skipPrefixes keep the inbound context. d <= 0 disables it.
func Timeout(d time.Duration, skipPrefixes ...string) gin.HandlerFunc {
	if d <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		for _, prefix := range skipPrefixes {
			if strings.HasPrefix(c.Request.URL.Path, prefix) {
				c.Next()
				return
			}
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		if !c.Writer.Written() && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			dto.AbortWithErrorCode(c, dto.ErrorCodeTimeout, "request exceeded "+d.String())
		}
	}
}
