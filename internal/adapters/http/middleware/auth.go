package middleware

import (
	"cmp"
	"log/slog"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/stockquote-service/internal/adapters/http/dto"
	"github.com/jsamuelsen/stockquote-service/internal/platform/config"
	"github.com/jsamuelsen/stockquote-service/internal/platform/logging"
)

// ContextKeyCaller is the gin.Context key holding the authenticated Caller.
const ContextKeyCaller = "caller"

const (
	defaultSubjectHeader = "X-User-ID"
	defaultScopesHeader  = "X-User-Scopes"
)

// Caller is the identity the API gateway forwards after verifying the
// token. The service never sees or parses credentials.
type Caller struct {
	Subject string
	Scopes  []string
}

// HasScopes reports whether every scope was granted.
func (c Caller) HasScopes(scopes ...string) bool {
	for _, s := range scopes {
		if !slices.Contains(c.Scopes, s) {
			return false
		}
	}

	return true
}

// CallerFromHeaders reads the gateway headers named by cfg. Scopes are
// space separated, as in an OAuth2 scope claim.
func CallerFromHeaders(h interface{ Get(string) string }, cfg *config.AuthConfig) Caller {
	subjectHeader, scopesHeader := defaultSubjectHeader, defaultScopesHeader

	if cfg != nil {
		subjectHeader = cmp.Or(cfg.SubjectHeader, subjectHeader)
		scopesHeader = cmp.Or(cfg.ScopesHeader, scopesHeader)
	}

	return Caller{
		Subject: strings.TrimSpace(h.Get(subjectHeader)),
		Scopes:  strings.Fields(h.Get(scopesHeader)),
	}
}

// CallerFrom returns the Caller stored by GatewayAuth.
func CallerFrom(c *gin.Context) (Caller, bool) {
	v, ok := c.Get(ContextKeyCaller)
	if !ok {
		return Caller{}, false
	}

	caller, ok := v.(Caller)

	return caller, ok
}

// GatewayAuth rejects requests the gateway did not authenticate with 401,
// and requests lacking any of scopes with 403. The caller's subject is added
// to the request logger so quote lookups can be attributed.
func GatewayAuth(cfg *config.AuthConfig, scopes ...string) gin.HandlerFunc {
	scopes = slices.DeleteFunc(slices.Clone(scopes), func(s string) bool { return s == "" })

	return func(c *gin.Context) {
		caller := CallerFromHeaders(c.Request.Header, cfg)

		if caller.Subject == "" {
			dto.AbortWithErrorCode(c, dto.ErrorCodeUnauthorized, "authentication required")
			return
		}

		if !caller.HasScopes(scopes...) {
			dto.AbortWithErrorCode(c, dto.ErrorCodeForbidden,
				"insufficient permissions: scopes ["+strings.Join(scopes, ", ")+"] required")

			return
		}

		c.Set(ContextKeyCaller, caller)

		ctx := c.Request.Context()
		logger := logging.FromContext(ctx).With(slog.String("caller", caller.Subject))
		c.Request = c.Request.WithContext(logging.WithContext(ctx, logger))

		c.Next()
	}
}
