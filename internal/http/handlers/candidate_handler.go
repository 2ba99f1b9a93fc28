// Candidate HTTP handlers.
//
// This file exposes REST endpoints for candidate invitations and attempts:
//   - POST /interviews/:id/candidates              (invite; Idempotency-Key aware)
//   - GET  /interviews/:id/candidates              (list, paginated)
//   - GET  /candidates/:id                         (fetch attempt + reports)
//   - POST /candidates/:id/revaluation             (flag report for review)
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/skillgate/go-interview-backend/internal/domain"
	"github.com/skillgate/go-interview-backend/internal/http/middleware"
	"github.com/skillgate/go-interview-backend/internal/repo"
	"github.com/skillgate/go-interview-backend/internal/services"
)

// ListCandidatesResponse wraps a page of attempts.
type ListCandidatesResponse struct {
	Candidates []domain.Candidate `json:"candidates"`
	Pagination Pagination         `json:"pagination"`
}

// RevaluationRequest is the JSON payload for flagging a report.
type RevaluationRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=2000"`
}

// InviteCandidate creates an attempt and queues the background invite job.
// When an Idempotency-Key header is supplied, a replayed request returns the
// original attempt instead of creating a second one.
func (h *Handlers) InviteCandidate(c *gin.Context) {
	var req services.InviteInput
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	req.InterviewID = c.Param("id")
	uid, org := principal(c)
	ctx := c.Request.Context()

	// Idempotent replay: return the attempt created by the first request.
	key := c.GetHeader(middleware.HeaderIdempotencyKey)
	var db *gorm.DB
	if svc, isConcrete := h.candSvc.(*services.CandidateService); isConcrete {
		db = svc.DB
	}
	if key != "" && db != nil {
		if rec, err := repo.GetIdempotency(ctx, db, uid, req.InterviewID, key, time.Now()); err == nil {
			if cand, err := h.candSvc.Get(ctx, org, rec.CandidateID); err == nil {
				c.Header("Idempotency-Replayed", "true")
				ok(c, rec.Status, cand)
				return
			}
		}
	}

	cand, err := h.candSvc.Invite(ctx, org, req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInterviewNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
		case errors.Is(err, services.ErrInvalidWindow):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		case errors.Is(err, services.ErrDuplicateCandidate):
			fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInviteFailed, err.Error())
		}
		return
	}

	if key != "" && db != nil {
		// Best effort: a failed record only disables replay for this key.
		_, _ = repo.CreateIdempotency(ctx, db, uid, req.InterviewID, key, cand.ID, http.StatusCreated, 24*time.Hour)
	}
	ok(c, http.StatusCreated, cand)
}

// ListCandidates returns a page of an interview's attempts.
func (h *Handlers) ListCandidates(c *gin.Context) {
	_, org := principal(c)
	pg := pageQuery(c)

	items, total, err := h.candSvc.List(c.Request.Context(), org, c.Param("id"), pg.Offset(), pg.Size)
	if err != nil {
		if errors.Is(err, services.ErrInterviewNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListCandidatesResponse{
		Candidates: items,
		Pagination: paginationMeta(pg, total),
	})
}

// GetCandidate fetches one attempt with attachments and report rows.
func (h *Handlers) GetCandidate(c *gin.Context) {
	_, org := principal(c)
	cand, err := h.candSvc.Get(c.Request.Context(), org, c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrCandidateNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, cand)
}

// RequestRevaluation flags a completed attempt's report for manual review.
func (h *Handlers) RequestRevaluation(c *gin.Context) {
	var req RevaluationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "reason is required")
		return
	}
	_, org := principal(c)

	err := h.candSvc.RequestRevaluation(c.Request.Context(), org, c.Param("id"), req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrCandidateNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
		case errors.Is(err, services.ErrNotCompleted):
			fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	noContent(c)
}
