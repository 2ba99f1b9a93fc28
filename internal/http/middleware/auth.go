// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements request authentication. Two credential channels are
// accepted:
//
//   - a session JWT carried in an HTTP-only cookie (browser clients)
//   - a long-lived API token carried as "Authorization: Bearer <token>"
//     (integrations and scripted clients)
//
// Both channels resolve to the same caller identity; downstream handlers read
// it from the Gin context and never inspect credentials themselves. Resolution
// is injected as callbacks so the middleware stays decoupled from the auth
// service implementation.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// CtxKeyUserID is the Gin context key holding the authenticated user id.
	CtxKeyUserID = "userID"
	// CtxKeyOrgID is the Gin context key holding the caller's organization id.
	CtxKeyOrgID = "orgID"
)

// SessionParser validates a session JWT and returns the caller identity.
type SessionParser func(token string) (userID, orgID string, err error)

// TokenResolver maps a bearer API token to the caller identity. Revoked and
// unknown tokens must return an error.
type TokenResolver func(ctx context.Context, raw string) (userID, orgID string, err error)

// AuthOptions configures the Auth middleware.
type AuthOptions struct {
	// CookieName is the session cookie to read; defaults to "session".
	CookieName string
	// ParseSession validates session JWTs.
	ParseSession SessionParser
	// ResolveToken validates bearer API tokens.
	ResolveToken TokenResolver
}

// Auth returns a middleware that authenticates every request it guards.
//
// Resolution order: a Bearer token wins when present, otherwise the session
// cookie is tried. Requests with no usable credential, or whose credential
// fails resolution, are rejected with:
//
//	HTTP/1.1 401 Unauthorized
//	{
//	  "request_id": "<uuid>",
//	  "code":       "unauthorized",
//	  "message":    "authentication required"
//	}
//
// On success the identity is stored under CtxKeyUserID / CtxKeyOrgID, which
// also keys the per-user rate limiter (see KeyByPrincipalOrIP).
func Auth(opts AuthOptions) gin.HandlerFunc {
	cookieName := opts.CookieName
	if cookieName == "" {
		cookieName = "session"
	}

	return func(c *gin.Context) {
		if raw, ok := bearerToken(c); ok {
			if opts.ResolveToken != nil {
				uid, org, err := opts.ResolveToken(c.Request.Context(), raw)
				if err == nil && uid != "" {
					c.Set(CtxKeyUserID, uid)
					c.Set(CtxKeyOrgID, org)
					c.Next()
					return
				}
			}
			reject(c)
			return
		}

		if tok, err := c.Cookie(cookieName); err == nil && tok != "" && opts.ParseSession != nil {
			uid, org, perr := opts.ParseSession(tok)
			if perr == nil && uid != "" {
				c.Set(CtxKeyUserID, uid)
				c.Set(CtxKeyOrgID, org)
				c.Next()
				return
			}
		}

		reject(c)
	}
}

// bearerToken extracts a non-empty Bearer credential from the Authorization
// header. The scheme comparison is case-insensitive per RFC 7235.
func bearerToken(c *gin.Context) (string, bool) {
	h := strings.TrimSpace(c.GetHeader("Authorization"))
	if h == "" {
		return "", false
	}
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	tok := strings.TrimSpace(h[len(prefix):])
	return tok, tok != ""
}

func reject(c *gin.Context) {
	c.Header("WWW-Authenticate", `Bearer realm="api"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"request_id": c.Writer.Header().Get("X-Request-ID"),
		"code":       "unauthorized",
		"message":    "authentication required",
	})
}
