// Session HTTP handlers.
//
// This file exposes the live-interview endpoints used by candidates:
//   - GET  /sessions/:id/messages   (conversation so far, cache-rehydrated)
//   - POST /sessions/:id/messages   (candidate turn -> interviewer reply)
//   - POST /sessions/:id/complete   (end the attempt, flush the transcript)
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/skillgate/go-interview-backend/internal/domain"
	"github.com/skillgate/go-interview-backend/internal/llm"
	"github.com/skillgate/go-interview-backend/internal/services"
)

// PostMessageRequest is the JSON payload for a candidate turn.
type PostMessageRequest struct {
	Message string `json:"message" binding:"required"`
}

// SessionMessagesResponse wraps the conversation history.
type SessionMessagesResponse struct {
	Messages []domain.Turn `json:"messages"`
}

// ListSessionMessages returns the attempt's conversation so far.
func (h *Handlers) ListSessionMessages(c *gin.Context) {
	turns, err := h.sessSvc.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, SessionMessagesResponse{Messages: turns})
}

// PostSessionMessage appends a candidate turn and returns the interviewer's
// structured reply. Concluding replies also carry the final report.
func (h *Handlers) PostSessionMessage(c *gin.Context) {
	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message is required")
		return
	}

	reply, err := h.sessSvc.PostMessage(c.Request.Context(), c.Param("id"), req.Message)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrCandidateNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
		case errors.Is(err, services.ErrEmptyMessage), errors.Is(err, services.ErrMessageTooLong):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		case errors.Is(err, services.ErrOutsideWindow), errors.Is(err, services.ErrSessionCompleted):
			fail(c, http.StatusConflict, ErrCodeSessionClosed, err.Error())
		case errors.Is(err, llm.ErrMalformedReply):
			fail(c, http.StatusBadGateway, ErrCodeModelFailed, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, reply)
}

// CompleteSession ends an attempt explicitly and flushes the transcript.
func (h *Handlers) CompleteSession(c *gin.Context) {
	err := h.sessSvc.Complete(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrCandidateNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	noContent(c)
}
