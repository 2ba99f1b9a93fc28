// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Candidate
// aggregate (attempt + attachments + report rows).
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/skillgate/go-interview-backend/internal/domain"
)

// CreateCandidate inserts a candidate attempt with its attachments.
// IDs are assigned here when blank.
func CreateCandidate(ctx context.Context, db *gorm.DB, c *domain.Candidate) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.InviteStatus == "" {
		c.InviteStatus = domain.InviteStatusPending
	}
	c.CreatedAt = time.Now().UTC()
	for i := range c.Attachments {
		if c.Attachments[i].ID == "" {
			c.Attachments[i].ID = uuid.NewString()
		}
		c.Attachments[i].CandidateID = c.ID
	}
	return db.WithContext(ctx).Create(c).Error
}

// GetCandidate fetches a candidate by ID with attachments and report rows
// preloaded. Returns ErrNotFound when missing.
func GetCandidate(ctx context.Context, db *gorm.DB, id string) (*domain.Candidate, error) {
	var c domain.Candidate
	err := db.WithContext(ctx).
		Preload("Attachments").
		Preload("TopicScores").
		Where("id = ?", id).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// FindCandidateByUserAndInterview returns the non-external attempt for
// (userID, interviewID), or ErrNotFound. Used to enforce the one-attempt rule.
func FindCandidateByUserAndInterview(ctx context.Context, db *gorm.DB, userID, interviewID string) (*domain.Candidate, error) {
	var c domain.Candidate
	err := db.WithContext(ctx).
		Where("user_id = ? AND interview_id = ? AND external = ?", userID, interviewID, false).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CountCandidates returns the number of attempts for interviewID.
func CountCandidates(ctx context.Context, db *gorm.DB, interviewID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Candidate{}).
		Where("interview_id = ?", interviewID).
		Count(&total).Error
	return total, err
}

// ListCandidatesPage returns a paginated slice of attempts for interviewID,
// ordered by creation time descending.
func ListCandidatesPage(ctx context.Context, db *gorm.DB, interviewID string, offset, limit int) ([]domain.Candidate, error) {
	var out []domain.Candidate
	err := db.WithContext(ctx).
		Preload("Attachments").
		Where("interview_id = ?", interviewID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// UpdateInviteStatus sets the invite status for a candidate. Returns
// ErrNotFound when no row was affected.
func UpdateInviteStatus(ctx context.Context, db *gorm.DB, id, status string) error {
	res := db.WithContext(ctx).
		Model(&domain.Candidate{}).
		Where("id = ?", id).
		Update("invite_status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MergeAttachmentContent writes extracted text back onto the candidate's
// attachment rows, matching by URL. Attachments with no extracted content are
// left untouched.
func MergeAttachmentContent(ctx context.Context, db *gorm.DB, candidateID string, contentByURL map[string]string) error {
	if len(contentByURL) == 0 {
		return nil
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for url, content := range contentByURL {
			if content == "" {
				continue
			}
			if err := tx.Model(&domain.Attachment{}).
				Where("candidate_id = ? AND url = ?", candidateID, url).
				Update("content", content).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// CompleteCandidate stores the final reports for an attempt: summary text and
// per-topic score rows, plus the completion timestamp, in one transaction.
func CompleteCandidate(ctx context.Context, db *gorm.DB, id, summary string, scores []domain.TopicScore) error {
	now := time.Now().UTC()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Candidate{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"summary_report": summary,
				"completed_at":   now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		for i := range scores {
			scores[i].ID = uuid.NewString()
			scores[i].CandidateID = id
			scores[i].CreatedAt = now
		}
		if len(scores) > 0 {
			if err := tx.Create(&scores).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteCandidate permanently removes an attempt with its attachments and
// report rows. Hard delete on purpose: the row must stop occupying the
// (user, interview) uniqueness slot so a later invite can insert a fresh
// attempt, e.g. after the invite job failed to enqueue.
func DeleteCandidate(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("candidate_id = ?", id).Delete(&domain.Attachment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("candidate_id = ?", id).Delete(&domain.TopicScore{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Where("id = ?", id).Delete(&domain.Candidate{}).Error
	})
}

// RequestRevaluation flags an attempt's report for revaluation with a reason.
// Returns ErrNotFound when no row was affected.
func RequestRevaluation(ctx context.Context, db *gorm.DB, id, reason string) error {
	res := db.WithContext(ctx).
		Model(&domain.Candidate{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"revaluation_requested": true,
			"revaluation_reason":    reason,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
