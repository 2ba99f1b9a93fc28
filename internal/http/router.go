// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, idempotency, authentication, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/skillgate/go-interview-backend/internal/cache"
	"github.com/skillgate/go-interview-backend/internal/config"
	"github.com/skillgate/go-interview-backend/internal/domain"
	"github.com/skillgate/go-interview-backend/internal/http/handlers"
	"github.com/skillgate/go-interview-backend/internal/http/middleware"
	"github.com/skillgate/go-interview-backend/internal/llm"
	"github.com/skillgate/go-interview-backend/internal/queue"
	"github.com/skillgate/go-interview-backend/internal/repo"
	"github.com/skillgate/go-interview-backend/internal/services"
)

// interviewRepoShim adapts the repository free functions to the
// services.InterviewRepo interface expected by the InterviewService. This
// keeps services decoupled from the concrete repo package while reusing
// existing functions.
type interviewRepoShim struct{}

// CreateInterview proxies repo.CreateInterview.
func (interviewRepoShim) CreateInterview(ctx context.Context, db *gorm.DB, iv *domain.Interview) error {
	return repo.CreateInterview(ctx, db, iv)
}

// GetInterview proxies repo.GetInterview.
func (interviewRepoShim) GetInterview(ctx context.Context, db *gorm.DB, id string) (*domain.Interview, error) {
	return repo.GetInterview(ctx, db, id)
}

// CountInterviews proxies repo.CountInterviews (pagination support).
func (interviewRepoShim) CountInterviews(ctx context.Context, db *gorm.DB, orgID string) (int64, error) {
	return repo.CountInterviews(ctx, db, orgID)
}

// ListInterviewsPage proxies repo.ListInterviewsPage (pagination support).
func (interviewRepoShim) ListInterviewsPage(ctx context.Context, db *gorm.DB, orgID string, offset, limit int) ([]domain.Interview, error) {
	return repo.ListInterviewsPage(ctx, db, orgID, offset, limit)
}

// UpdateInterview proxies repo.UpdateInterview.
func (interviewRepoShim) UpdateInterview(ctx context.Context, db *gorm.DB, iv *domain.Interview) error {
	return repo.UpdateInterview(ctx, db, iv)
}

// CloneInterview proxies repo.CloneInterview.
func (interviewRepoShim) CloneInterview(ctx context.Context, db *gorm.DB, sourceID, creatorID, title string) (*domain.Interview, error) {
	return repo.CloneInterview(ctx, db, sourceID, creatorID, title)
}

// candidateRepoShim adapts the repository free functions to the
// services.CandidateRepo interface expected by the CandidateService.
type candidateRepoShim struct{}

// CreateCandidate proxies repo.CreateCandidate.
func (candidateRepoShim) CreateCandidate(ctx context.Context, db *gorm.DB, c *domain.Candidate) error {
	return repo.CreateCandidate(ctx, db, c)
}

// GetCandidate proxies repo.GetCandidate.
func (candidateRepoShim) GetCandidate(ctx context.Context, db *gorm.DB, id string) (*domain.Candidate, error) {
	return repo.GetCandidate(ctx, db, id)
}

// FindCandidateByUserAndInterview proxies repo.FindCandidateByUserAndInterview.
func (candidateRepoShim) FindCandidateByUserAndInterview(ctx context.Context, db *gorm.DB, userID, interviewID string) (*domain.Candidate, error) {
	return repo.FindCandidateByUserAndInterview(ctx, db, userID, interviewID)
}

// CountCandidates proxies repo.CountCandidates (pagination support).
func (candidateRepoShim) CountCandidates(ctx context.Context, db *gorm.DB, interviewID string) (int64, error) {
	return repo.CountCandidates(ctx, db, interviewID)
}

// ListCandidatesPage proxies repo.ListCandidatesPage (pagination support).
func (candidateRepoShim) ListCandidatesPage(ctx context.Context, db *gorm.DB, interviewID string, offset, limit int) ([]domain.Candidate, error) {
	return repo.ListCandidatesPage(ctx, db, interviewID, offset, limit)
}

// RequestRevaluation proxies repo.RequestRevaluation.
func (candidateRepoShim) RequestRevaluation(ctx context.Context, db *gorm.DB, id, reason string) error {
	return repo.RequestRevaluation(ctx, db, id, reason)
}

// DeleteCandidate proxies repo.DeleteCandidate.
func (candidateRepoShim) DeleteCandidate(ctx context.Context, db *gorm.DB, id string) error {
	return repo.DeleteCandidate(ctx, db, id)
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), idempotency and rate
// limiting, CORS and security headers, health and metrics endpoints, and then
// mounts the versioned public API under /api/v*.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. CORS and Security headers
//
// Authentication is per-group rather than global: the organization API sits
// behind session/token auth, while login and the candidate session endpoints
// stay public. Session endpoints are addressed by the unguessable attempt id
// delivered in the invite email, which is the candidate's sole credential.
//
// Idempotency and rate limiting are mounted per group rather than globally.
// The organization group runs auth → idempotency → rate limiter, so the
// idempotency lookup keys on the verified principal and a detected replay can
// still bypass the limiter. The public group carries the rate limiter only.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, store *cache.ConversationCache, chat *llm.Client, pub queue.Publisher, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{
			"X-API-Key", // project-specific sensitive header example
		},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Dependency injection: services ← repo/db/cache/llm/queue
	ivSvc := services.NewInterviewService(db, interviewRepoShim{})
	candSvc := services.NewCandidateService(db, candidateRepoShim{}, pub)
	sessSvc := services.NewSessionService(db, store, chat)
	authSvc := services.NewAuthService(db, cfg.Auth.JWTSecret, cfg.Auth.SessionTTL)
	h := handlers.New(ivSvc, candSvc, sessSvc, authSvc)

	requireAuth := middleware.Auth(middleware.AuthOptions{
		CookieName: h.SessionCookieName,
		ParseSession: func(token string) (string, string, error) {
			p, err := authSvc.ParseSession(token)
			if err != nil {
				return "", "", err
			}
			return p.UserID, p.OrgID, nil
		},
		ResolveToken: func(ctx context.Context, raw string) (string, string, error) {
			p, err := authSvc.ResolveAPIToken(ctx, raw)
			if err != nil {
				return "", "", err
			}
			return p.UserID, p.OrgID, nil
		},
	})

	// Token-bucket rate limiter shared by both API groups.
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByPrincipalOrIP())

	// Public API
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	api := groupWithPrefix(r, apiBase)
	api.Use(rl.Handler())
	{
		// Auth (public entry point)
		api.POST("/auth/login", h.Login)

		// Candidate-facing session endpoints
		api.GET("/sessions/:id/messages", h.ListSessionMessages)
		api.POST("/sessions/:id/messages", h.PostSessionMessage)
		api.POST("/sessions/:id/complete", h.CompleteSession)
	}

	// Organization API (session cookie or Bearer API token required).
	// Mounted as a sibling of the public group so its chain is exactly
	// auth → idempotency → rate limiter: the idempotency lookup sees the
	// verified principal, and a replay hit bypasses the limiter.
	org := groupWithPrefix(r, apiBase).Group("", requireAuth)
	org.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
		},
		func(ctx context.Context, userID, interviewID, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, userID, interviewID, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))
	org.Use(rl.Handler())
	{
		// API tokens
		org.POST("/auth/tokens", h.IssueToken)
		org.DELETE("/auth/tokens/:token", h.RevokeToken)

		// Interviews
		org.POST("/interviews", h.CreateInterview)
		org.GET("/interviews", h.ListInterviews)
		org.GET("/interviews/stats", h.InterviewStats)
		org.GET("/interviews/:id", h.GetInterview)
		org.PATCH("/interviews/:id", h.UpdateInterview)
		org.POST("/interviews/clone/:id", h.CloneInterview)

		// Candidates
		org.POST("/interviews/:id/candidates", h.InviteCandidate)
		org.GET("/interviews/:id/candidates", h.ListCandidates)
		org.GET("/candidates/:id", h.GetCandidate)
		org.POST("/candidates/:id/revaluation", h.RequestRevaluation)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
