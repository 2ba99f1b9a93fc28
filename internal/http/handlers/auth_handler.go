// Auth HTTP handlers.
//
// This file exposes the authentication endpoints:
//   - POST /auth/login           (password login -> session cookie + JWT)
//   - POST /auth/tokens          (mint a long-lived API token)
//   - DELETE /auth/tokens/:token (revoke an API token)
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/skillgate/go-interview-backend/internal/services"
)

// LoginRequest is the JSON payload for password login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse returns the session JWT; the same value is also set as an
// HTTP-only cookie for browser clients.
type LoginResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
	OrgID  string `json:"org_id"`
}

// Login verifies credentials and establishes a session.
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "email and password are required")
		return
	}

	token, user, err := h.authSvc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	// HTTP-only session cookie for browsers; the JSON token serves API tests
	// and non-browser clients.
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.SessionCookieName, token, 0, "/", "", false, true)
	ok(c, http.StatusOK, LoginResponse{Token: token, UserID: user.ID, OrgID: user.OrgID})
}

// IssueToken mints a long-lived API token for the authenticated user.
func (h *Handlers) IssueToken(c *gin.Context) {
	uid, _ := principal(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}
	tok, err := h.authSvc.IssueAPIToken(c.Request.Context(), uid)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	// The raw value is only revealed once, at mint time.
	ok(c, http.StatusCreated, gin.H{"id": tok.ID, "token": tok.Token})
}

// RevokeToken deactivates an API token.
func (h *Handlers) RevokeToken(c *gin.Context) {
	if err := h.authSvc.RevokeAPIToken(c.Request.Context(), c.Param("token")); err != nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "token not found")
		return
	}
	noContent(c)
}
