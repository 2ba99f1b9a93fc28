// Interview HTTP handlers.
//
// This file exposes REST endpoints for interview definitions:
//   - POST   /interviews             (create)
//   - GET    /interviews             (list, paginated, ETag support)
//   - GET    /interviews/:id         (fetch)
//   - PATCH  /interviews/:id         (update, bumps version)
//   - POST   /interviews/clone/:id   (deep copy)
//   - GET    /interviews/stats       (org dashboard)
//
// Handlers are transport-thin: they validate input, call application
// services, and translate results into HTTP responses.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/skillgate/go-interview-backend/internal/domain"
	"github.com/skillgate/go-interview-backend/internal/llm"
	"github.com/skillgate/go-interview-backend/internal/repo"
	"github.com/skillgate/go-interview-backend/internal/services"
	"github.com/skillgate/go-interview-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// InterviewService defines interview definition operations consumed by HTTP
// handlers. Implementations must be safe for concurrent use and honor the
// provided context.
type InterviewService interface {
	Create(ctx context.Context, orgID, creatorID string, in services.InterviewInput) (*domain.Interview, error)
	Get(ctx context.Context, orgID, id string) (*domain.Interview, error)
	List(ctx context.Context, orgID string, offset, limit int) ([]domain.Interview, int64, error)
	Update(ctx context.Context, orgID, id string, in services.InterviewInput) (*domain.Interview, error)
	Clone(ctx context.Context, orgID, sourceID, creatorID, title string) (*domain.Interview, error)
	Stats(ctx context.Context, orgID string) (*repo.DashboardStats, error)
}

// CandidateService defines invitation and attempt operations consumed by HTTP
// handlers.
type CandidateService interface {
	Invite(ctx context.Context, orgID string, in services.InviteInput) (*domain.Candidate, error)
	Get(ctx context.Context, orgID, id string) (*domain.Candidate, error)
	List(ctx context.Context, orgID, interviewID string, offset, limit int) ([]domain.Candidate, int64, error)
	RequestRevaluation(ctx context.Context, orgID, id, reason string) error
}

// SessionService defines the live-session operations consumed by HTTP
// handlers.
type SessionService interface {
	History(ctx context.Context, candidateID string) ([]domain.Turn, error)
	PostMessage(ctx context.Context, candidateID, text string) (*llm.Reply, error)
	Complete(ctx context.Context, candidateID string) error
}

// AuthService defines the authentication operations consumed by HTTP
// handlers.
type AuthService interface {
	Login(ctx context.Context, email, password string) (string, *domain.User, error)
	IssueAPIToken(ctx context.Context, userID string) (*domain.Token, error)
	RevokeAPIToken(ctx context.Context, raw string) error
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for interviews, candidates, sessions, and
// auth. It depends on abstract service interfaces to keep transport concerns
// separate from business logic.
type Handlers struct {
	ivSvc   InterviewService
	candSvc CandidateService
	sessSvc SessionService
	authSvc AuthService

	// SessionCookieName is the cookie carrying the session JWT.
	SessionCookieName string
}

// New constructs a Handlers instance bound to the given services.
func New(iv InterviewService, cand CandidateService, sess SessionService, auth AuthService) *Handlers {
	return &Handlers{
		ivSvc:             iv,
		candSvc:           cand,
		sessSvc:           sess,
		authSvc:           auth,
		SessionCookieName: "session",
	}
}

// principal extracts the authenticated caller from the Gin context, as stored
// by the auth middleware. Request headers are never consulted: identity comes
// from verified credentials only.
func principal(c *gin.Context) (userID, orgID string) {
	return c.GetString("userID"), c.GetString("orgID")
}

//
// DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListInterviewsResponse wraps a page of interviews.
type ListInterviewsResponse struct {
	Interviews []domain.Interview `json:"interviews"`
	Pagination Pagination         `json:"pagination"`
}

// CloneInterviewRequest is the JSON payload for cloning an interview.
type CloneInterviewRequest struct {
	// Title optionally names the copy; defaults to the source title plus
	// a " (copy)" suffix.
	Title string `json:"title"`
}

// pageQuery parses and clamps the page and page_size query params.
func pageQuery(c *gin.Context) utils.Page {
	return utils.ParsePage(c.Query("page"), c.Query("page_size"))
}

func paginationMeta(pg utils.Page, total int64) Pagination {
	return Pagination{
		Page:       pg.Number,
		PageSize:   pg.Size,
		Total:      total,
		TotalPages: pg.TotalPages(total),
		HasNext:    pg.HasNext(total),
	}
}

//
// Handlers
//

// CreateInterview creates an interview definition for the caller's
// organization. Invalid duration or weight invariants return 400 and write
// nothing.
func (h *Handlers) CreateInterview(c *gin.Context) {
	var req services.InterviewInput
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	uid, org := principal(c)

	iv, err := h.ivSvc.Create(c.Request.Context(), org, uid, req)
	if err != nil {
		if isValidationErr(err) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		return
	}
	ok(c, http.StatusCreated, iv)
}

// ListInterviews returns a page of the organization's interviews. Supports a
// weak ETag via If-None-Match and may return 304.
func (h *Handlers) ListInterviews(c *gin.Context) {
	ctx := c.Request.Context()
	_, org := principal(c)
	pg := pageQuery(c)

	// ETag pre-check (best effort).
	var db *gorm.DB
	if svc, isConcrete := h.ivSvc.(*services.InterviewService); isConcrete {
		db = svc.DB
	}
	if db != nil {
		count, maxTS, err := repo.InterviewsStats(ctx, db, org)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"interviews:%s:%d:%d"`, org, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.ivSvc.List(ctx, org, pg.Offset(), pg.Size)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListInterviewsResponse{
		Interviews: items,
		Pagination: paginationMeta(pg, total),
	})
}

// GetInterview fetches one interview with its topics.
func (h *Handlers) GetInterview(c *gin.Context) {
	_, org := principal(c)
	iv, err := h.ivSvc.Get(c.Request.Context(), org, c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrInterviewNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, iv)
}

// UpdateInterview replaces the definition and bumps its version. The same
// invariants as creation apply.
func (h *Handlers) UpdateInterview(c *gin.Context) {
	var req services.InterviewInput
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	_, org := principal(c)

	iv, err := h.ivSvc.Update(c.Request.Context(), org, c.Param("id"), req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInterviewNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
		case isValidationErr(err):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, iv)
}

// CloneInterview deep-copies an interview under a new title.
func (h *Handlers) CloneInterview(c *gin.Context) {
	var req CloneInterviewRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	uid, org := principal(c)

	clone, err := h.ivSvc.Clone(c.Request.Context(), org, c.Param("id"), uid, req.Title)
	if err != nil {
		if errors.Is(err, services.ErrInterviewNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		return
	}
	ok(c, http.StatusCreated, clone)
}

// InterviewStats returns the organization dashboard aggregates.
func (h *Handlers) InterviewStats(c *gin.Context) {
	_, org := principal(c)
	stats, err := h.ivSvc.Stats(c.Request.Context(), org)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, stats)
}

// isValidationErr reports whether err is one of the payload invariant errors.
func isValidationErr(err error) bool {
	return errors.Is(err, services.ErrInvalidDuration) ||
		errors.Is(err, services.ErrDurationExceeded) ||
		errors.Is(err, services.ErrInvalidWeights) ||
		errors.Is(err, services.ErrInvalidDifficulty) ||
		errors.Is(err, services.ErrNoTopics)
}
