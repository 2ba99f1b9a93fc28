package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/skillgate/go-interview-backend/internal/domain"
	"github.com/skillgate/go-interview-backend/internal/services"
)

func TestLogin_SetsCookieAndReturnsToken(t *testing.T) {
	h := New(stubInterviewSvc{}, stubCandidateSvc{}, stubSessionSvc{}, stubAuthSvc{
		login: func(_ context.Context, email, password string) (string, *domain.User, error) {
			if email != "ada@example.com" || password != "s3cret" {
				return "", nil, services.ErrInvalidCredentials
			}
			return "signed-jwt", &domain.User{ID: "u1", OrgID: "org1"}, nil
		},
	})
	r := newTestRouter(h)

	w := doJSON(t, r, http.MethodPost, "/auth/login", `{"email":"ada@example.com","password":"s3cret"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"signed-jwt"`) {
		t.Fatalf("body missing token: %s", w.Body.String())
	}

	// Session cookie set, HTTP-only.
	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "session" {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value != "signed-jwt" || !cookie.HttpOnly {
		t.Fatalf("bad session cookie: %+v", cookie)
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	h := New(stubInterviewSvc{}, stubCandidateSvc{}, stubSessionSvc{}, stubAuthSvc{
		login: func(context.Context, string, string) (string, *domain.User, error) {
			return "", nil, services.ErrInvalidCredentials
		},
	})
	r := newTestRouter(h)

	w := doJSON(t, r, http.MethodPost, "/auth/login", `{"email":"ada@example.com","password":"wrong"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestLogin_MissingFields(t *testing.T) {
	r := newTestRouter(newStubHandlers())
	if w := doJSON(t, r, http.MethodPost, "/auth/login", `{"email":"ada@example.com"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestIssueToken_RevealsRawValueOnce(t *testing.T) {
	h := New(stubInterviewSvc{}, stubCandidateSvc{}, stubSessionSvc{}, stubAuthSvc{
		issue: func(_ context.Context, userID string) (*domain.Token, error) {
			if userID != "u1" {
				t.Fatalf("userID = %q", userID)
			}
			return &domain.Token{ID: "tok-1", Token: "raw-value", UserID: userID, Active: true}, nil
		},
	})
	r := newTestRouter(h)

	w := doJSON(t, r, http.MethodPost, "/auth/tokens", "")
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"raw-value"`) {
		t.Fatalf("raw token missing from mint response: %s", w.Body.String())
	}
}

func TestIssueToken_RequiresPrincipal(t *testing.T) {
	r := newTestRouter(newStubHandlers())

	// No identity headers at all.
	req := httptest.NewRequest(http.MethodPost, "/auth/tokens", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestRevokeToken(t *testing.T) {
	t.Run("revoked", func(t *testing.T) {
		var revoked string
		h := New(stubInterviewSvc{}, stubCandidateSvc{}, stubSessionSvc{}, stubAuthSvc{
			revoke: func(_ context.Context, raw string) error {
				revoked = raw
				return nil
			},
		})
		r := newTestRouter(h)
		w := doJSON(t, r, http.MethodDelete, "/auth/tokens/raw-value", "")
		if w.Code != http.StatusNoContent {
			t.Fatalf("status = %d, want 204", w.Code)
		}
		if revoked != "raw-value" {
			t.Fatalf("revoked = %q", revoked)
		}
	})

	t.Run("unknown token", func(t *testing.T) {
		h := New(stubInterviewSvc{}, stubCandidateSvc{}, stubSessionSvc{}, stubAuthSvc{
			revoke: func(context.Context, string) error { return errors.New("no row") },
		})
		r := newTestRouter(h)
		if w := doJSON(t, r, http.MethodDelete, "/auth/tokens/nope", ""); w.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", w.Code)
		}
	})
}
