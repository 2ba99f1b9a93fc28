// Package services – CandidateService
//
// This file implements the CandidateService, which manages candidate
// invitations: creating an attempt (with the one-attempt-per-user rule),
// queuing the background invite job, listing attempts, and the revaluation
// workflow for issued reports.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/skillgate/go-interview-backend/internal/domain"
	"github.com/skillgate/go-interview-backend/internal/queue"
	"github.com/skillgate/go-interview-backend/internal/repo"
)

// CandidateRepo defines the repository contract required by CandidateService.
type CandidateRepo interface {
	// CreateCandidate inserts an attempt with its attachments.
	CreateCandidate(ctx context.Context, db *gorm.DB, c *domain.Candidate) error

	// GetCandidate fetches an attempt with attachments and report rows.
	GetCandidate(ctx context.Context, db *gorm.DB, id string) (*domain.Candidate, error)

	// FindCandidateByUserAndInterview returns the non-external attempt for the
	// (user, interview) pair.
	FindCandidateByUserAndInterview(ctx context.Context, db *gorm.DB, userID, interviewID string) (*domain.Candidate, error)

	// CountCandidates returns the number of attempts for pagination.
	CountCandidates(ctx context.Context, db *gorm.DB, interviewID string) (int64, error)

	// ListCandidatesPage returns a page of an interview's attempts.
	ListCandidatesPage(ctx context.Context, db *gorm.DB, interviewID string, offset, limit int) ([]domain.Candidate, error)

	// RequestRevaluation flags an issued report for manual review.
	RequestRevaluation(ctx context.Context, db *gorm.DB, id, reason string) error

	// DeleteCandidate permanently removes an attempt and its child rows.
	DeleteCandidate(ctx context.Context, db *gorm.DB, id string) error
}

// InviteInput is the payload for inviting a candidate to an interview.
type InviteInput struct {
	InterviewID string    `json:"interview_id"`
	UserID      string    `json:"user_id,omitempty"`
	Email       string    `json:"email"`
	External    bool      `json:"external,omitempty"`
	ExternalKey string    `json:"external_key,omitempty"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	Attachments []string  `json:"attachments,omitempty"`
}

// CandidateService provides invitation and attempt operations.
type CandidateService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the candidate repository used by this service.
	Repo CandidateRepo
	// Queue publishes invite jobs for the background worker.
	Queue queue.Publisher
}

// NewCandidateService constructs a CandidateService.
func NewCandidateService(db *gorm.DB, r CandidateRepo, q queue.Publisher) *CandidateService {
	return &CandidateService{DB: db, Repo: r, Queue: q}
}

// Invite creates an attempt in status pending and enqueues the invite job.
// Registered users get at most one attempt per interview; external candidates
// are deduplicated by their external key.
func (s *CandidateService) Invite(ctx context.Context, orgID string, in InviteInput) (*domain.Candidate, error) {
	if !in.WindowEnd.After(in.WindowStart) {
		return nil, ErrInvalidWindow
	}
	iv, err := repo.GetInterview(ctx, s.DB, in.InterviewID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInterviewNotFound
		}
		return nil, err
	}
	if iv.OrgID != orgID {
		return nil, ErrInterviewNotFound
	}

	if !in.External {
		if _, err := s.Repo.FindCandidateByUserAndInterview(ctx, s.DB, in.UserID, in.InterviewID); err == nil {
			return nil, ErrDuplicateCandidate
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	cand := &domain.Candidate{
		InterviewID:      iv.ID,
		InterviewVersion: iv.Version,
		UserID:           in.UserID,
		External:         in.External,
		WindowStart:      in.WindowStart.UTC(),
		WindowEnd:        in.WindowEnd.UTC(),
		InviteStatus:     domain.InviteStatusPending,
	}
	if in.External {
		if key := strings.TrimSpace(in.ExternalKey); key != "" {
			cand.ExternalKey = &key
		}
	}
	for _, url := range in.Attachments {
		if url = strings.TrimSpace(url); url != "" {
			cand.Attachments = append(cand.Attachments, domain.Attachment{URL: url})
		}
	}

	if err := s.Repo.CreateCandidate(ctx, s.DB, cand); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateCandidate
		}
		return nil, err
	}

	urls := make([]string, 0, len(cand.Attachments))
	for _, a := range cand.Attachments {
		urls = append(urls, a.URL)
	}
	if err := queue.EnqueueInvite(ctx, s.Queue, queue.InviteJob{
		CandidateID:    cand.ID,
		InterviewID:    cand.InterviewID,
		Email:          in.Email,
		AttachmentURLs: urls,
	}); err != nil {
		// Undo the insert so a retry does not trip the one-attempt rule with
		// no invite job ever queued.
		if derr := s.Repo.DeleteCandidate(ctx, s.DB, cand.ID); derr != nil {
			return nil, errors.Join(err, derr)
		}
		return nil, err
	}
	return cand, nil
}

// Get fetches an attempt, verifying it belongs to an interview of orgID.
func (s *CandidateService) Get(ctx context.Context, orgID, id string) (*domain.Candidate, error) {
	cand, err := s.Repo.GetCandidate(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCandidateNotFound
		}
		return nil, err
	}
	iv, err := repo.GetInterview(ctx, s.DB, cand.InterviewID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCandidateNotFound
		}
		return nil, err
	}
	if iv.OrgID != orgID {
		return nil, ErrCandidateNotFound
	}
	return cand, nil
}

// List returns one page of an interview's attempts plus the total count.
func (s *CandidateService) List(ctx context.Context, orgID, interviewID string, offset, limit int) ([]domain.Candidate, int64, error) {
	iv, err := repo.GetInterview(ctx, s.DB, interviewID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, ErrInterviewNotFound
		}
		return nil, 0, err
	}
	if iv.OrgID != orgID {
		return nil, 0, ErrInterviewNotFound
	}
	total, err := s.Repo.CountCandidates(ctx, s.DB, interviewID)
	if err != nil {
		return nil, 0, err
	}
	items, err := s.Repo.ListCandidatesPage(ctx, s.DB, interviewID, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// RequestRevaluation flags a completed attempt's report for manual review.
func (s *CandidateService) RequestRevaluation(ctx context.Context, orgID, id, reason string) error {
	cand, err := s.Get(ctx, orgID, id)
	if err != nil {
		return err
	}
	if cand.CompletedAt == nil {
		return ErrNotCompleted
	}
	return s.Repo.RequestRevaluation(ctx, s.DB, id, strings.TrimSpace(reason))
}

// isUniqueViolation recognizes SQLite unique-constraint failures, which the
// pure-Go driver reports as plain-text errors.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}
