// Package services – InterviewService
//
// This file implements the InterviewService, which manages interview
// definitions: creation, listing with pagination, updates (with version
// bumps), cloning, and dashboard statistics. All payload invariants are
// enforced here, on create and update alike, so no invalid definition ever
// reaches the database.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/skillgate/go-interview-backend/internal/domain"
	"github.com/skillgate/go-interview-backend/internal/repo"
)

// weightTolerance allows rounding slack when topic weights are divided
// unevenly (e.g. three topics at 33+33+34 or 33+33+33).
const weightTolerance = 1

// InterviewRepo defines the repository contract required by InterviewService.
type InterviewRepo interface {
	// CreateInterview inserts an interview with its topics.
	CreateInterview(ctx context.Context, db *gorm.DB, iv *domain.Interview) error

	// GetInterview fetches an interview with topics preloaded in order.
	GetInterview(ctx context.Context, db *gorm.DB, id string) (*domain.Interview, error)

	// CountInterviews returns the number of interviews for pagination.
	CountInterviews(ctx context.Context, db *gorm.DB, orgID string) (int64, error)

	// ListInterviewsPage returns a page of an organization's interviews.
	ListInterviewsPage(ctx context.Context, db *gorm.DB, orgID string, offset, limit int) ([]domain.Interview, error)

	// UpdateInterview replaces mutable fields and topics, bumping Version.
	UpdateInterview(ctx context.Context, db *gorm.DB, iv *domain.Interview) error

	// CloneInterview deep-copies an interview under a new title.
	CloneInterview(ctx context.Context, db *gorm.DB, sourceID, creatorID, title string) (*domain.Interview, error)
}

// TopicInput is one topic block of an interview payload.
type TopicInput struct {
	Skill       string   `json:"skill"`
	Difficulty  int      `json:"difficulty"`
	WeightPct   int      `json:"weight_pct"`
	DurationMin int      `json:"duration_min"`
	Questions   []string `json:"questions,omitempty"`
}

// InterviewInput is the payload for creating or updating an interview.
type InterviewInput struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	DurationMin int          `json:"duration_min"`
	Keywords    []string     `json:"keywords,omitempty"`
	Topics      []TopicInput `json:"topics"`
}

// InterviewService provides interview definition operations and enforces the
// duration and weight invariants.
type InterviewService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the interview repository used by this service.
	Repo InterviewRepo

	// skillCaser normalizes skill names to title case for display and prompts.
	skillCaser cases.Caser
}

// NewInterviewService constructs an InterviewService.
func NewInterviewService(db *gorm.DB, r InterviewRepo) *InterviewService {
	return &InterviewService{
		DB:         db,
		Repo:       r,
		skillCaser: cases.Title(language.English),
	}
}

// Create validates the payload and inserts a new interview owned by orgID.
// No row is written when validation fails.
func (s *InterviewService) Create(ctx context.Context, orgID, creatorID string, in InterviewInput) (*domain.Interview, error) {
	iv, err := s.build(orgID, creatorID, in)
	if err != nil {
		return nil, err
	}
	if err := s.Repo.CreateInterview(ctx, s.DB, iv); err != nil {
		return nil, err
	}
	return iv, nil
}

// Get fetches an interview scoped to the caller's organization.
func (s *InterviewService) Get(ctx context.Context, orgID, id string) (*domain.Interview, error) {
	iv, err := s.Repo.GetInterview(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInterviewNotFound
		}
		return nil, err
	}
	if iv.OrgID != orgID {
		return nil, ErrInterviewNotFound
	}
	return iv, nil
}

// List returns one page of the organization's interviews plus the total count.
func (s *InterviewService) List(ctx context.Context, orgID string, offset, limit int) ([]domain.Interview, int64, error) {
	total, err := s.Repo.CountInterviews(ctx, s.DB, orgID)
	if err != nil {
		return nil, 0, err
	}
	items, err := s.Repo.ListInterviewsPage(ctx, s.DB, orgID, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Update validates the payload and replaces the interview definition,
// bumping its version. Topics are replaced wholesale.
func (s *InterviewService) Update(ctx context.Context, orgID, id string, in InterviewInput) (*domain.Interview, error) {
	if _, err := s.Get(ctx, orgID, id); err != nil {
		return nil, err
	}
	iv, err := s.build(orgID, "", in)
	if err != nil {
		return nil, err
	}
	iv.ID = id
	if err := s.Repo.UpdateInterview(ctx, s.DB, iv); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrInterviewNotFound
		}
		return nil, err
	}
	return s.Get(ctx, orgID, id)
}

// Clone deep-copies an interview under a new title, owned by creatorID.
func (s *InterviewService) Clone(ctx context.Context, orgID, sourceID, creatorID, title string) (*domain.Interview, error) {
	src, err := s.Get(ctx, orgID, sourceID)
	if err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = src.Title + " (copy)"
	}
	cloned, err := s.Repo.CloneInterview(ctx, s.DB, sourceID, creatorID, title)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrInterviewNotFound
		}
		return nil, err
	}
	return cloned, nil
}

// Stats computes the organization dashboard aggregates.
func (s *InterviewService) Stats(ctx context.Context, orgID string) (*repo.DashboardStats, error) {
	return repo.OrgDashboardStats(ctx, s.DB, orgID)
}

// build validates the payload and assembles the domain aggregate.
func (s *InterviewService) build(orgID, creatorID string, in InterviewInput) (*domain.Interview, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = "Untitled interview"
	}
	if in.DurationMin <= 0 {
		return nil, ErrInvalidDuration
	}
	if len(in.Topics) == 0 {
		return nil, ErrNoTopics
	}

	sumDuration, sumWeight := 0, 0
	topics := make([]domain.InterviewTopic, 0, len(in.Topics))
	for i, t := range in.Topics {
		if t.Difficulty < 1 || t.Difficulty > 3 {
			return nil, ErrInvalidDifficulty
		}
		if t.DurationMin <= 0 {
			return nil, ErrInvalidDuration
		}
		sumDuration += t.DurationMin
		sumWeight += t.WeightPct

		questions := ""
		if len(t.Questions) > 0 {
			b, err := json.Marshal(t.Questions)
			if err != nil {
				return nil, err
			}
			questions = string(b)
		}
		topics = append(topics, domain.InterviewTopic{
			Skill:       s.skillCaser.String(strings.TrimSpace(t.Skill)),
			Difficulty:  t.Difficulty,
			WeightPct:   t.WeightPct,
			DurationMin: t.DurationMin,
			Questions:   questions,
			Position:    i,
		})
	}
	if sumDuration > in.DurationMin {
		return nil, ErrDurationExceeded
	}
	if sumWeight < 100-weightTolerance || sumWeight > 100+weightTolerance {
		return nil, ErrInvalidWeights
	}

	return &domain.Interview{
		OrgID:       orgID,
		CreatorID:   creatorID,
		Title:       title,
		DurationMin: in.DurationMin,
		Description: strings.TrimSpace(in.Description),
		Keywords:    strings.Join(in.Keywords, ","),
		Topics:      topics,
	}, nil
}
