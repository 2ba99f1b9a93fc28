// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Interview
// aggregate (interview + ordered topics).
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When an interview is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/skillgate/go-interview-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateInterview inserts a new interview with its topics in one transaction.
// IDs are assigned here when blank; topic Position follows slice order.
func CreateInterview(ctx context.Context, db *gorm.DB, iv *domain.Interview) error {
	if iv.ID == "" {
		iv.ID = uuid.NewString()
	}
	iv.Version = 1
	iv.CreatedAt = time.Now().UTC()
	for i := range iv.Topics {
		if iv.Topics[i].ID == "" {
			iv.Topics[i].ID = uuid.NewString()
		}
		iv.Topics[i].InterviewID = iv.ID
		iv.Topics[i].Position = i
	}
	return db.WithContext(ctx).Create(iv).Error
}

// GetInterview fetches an interview by ID with its topics preloaded in
// position order. Returns ErrNotFound when missing.
func GetInterview(ctx context.Context, db *gorm.DB, id string) (*domain.Interview, error) {
	var iv domain.Interview
	err := db.WithContext(ctx).
		Preload("Topics", func(tx *gorm.DB) *gorm.DB { return tx.Order("position ASC") }).
		Where("id = ?", id).
		First(&iv).Error
	if err != nil {
		return nil, err
	}
	return &iv, nil
}

// CountInterviews returns the total number of interviews for orgID.
func CountInterviews(ctx context.Context, db *gorm.DB, orgID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Interview{}).
		Where("org_id = ?", orgID).
		Count(&total).Error
	return total, err
}

// ListInterviewsPage returns a paginated slice of interviews for orgID,
// ordered by creation time descending, topics preloaded.
//
// The caller is responsible for computing offset and limit (e.g., (page-1)*pageSize).
func ListInterviewsPage(ctx context.Context, db *gorm.DB, orgID string, offset, limit int) ([]domain.Interview, error) {
	var out []domain.Interview
	err := db.WithContext(ctx).
		Preload("Topics", func(tx *gorm.DB) *gorm.DB { return tx.Order("position ASC") }).
		Where("org_id = ?", orgID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// UpdateInterview replaces the mutable fields of an interview and its full
// topic list, bumping the version, all in one transaction. Returns ErrNotFound
// when the row is missing.
func UpdateInterview(ctx context.Context, db *gorm.DB, iv *domain.Interview) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Interview{}).
			Where("id = ?", iv.ID).
			Updates(map[string]any{
				"title":        iv.Title,
				"duration_min": iv.DurationMin,
				"description":  iv.Description,
				"keywords":     iv.Keywords,
				"version":      gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		// Topic lists are small; replace wholesale to keep positions exact.
		if err := tx.Where("interview_id = ?", iv.ID).Delete(&domain.InterviewTopic{}).Error; err != nil {
			return err
		}
		for i := range iv.Topics {
			iv.Topics[i].ID = uuid.NewString()
			iv.Topics[i].InterviewID = iv.ID
			iv.Topics[i].Position = i
		}
		if len(iv.Topics) > 0 {
			if err := tx.Create(&iv.Topics).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// CloneInterview deep-copies an interview (including topics) under a new ID
// for the given creator, returning the new aggregate. The clone starts at
// version 1 regardless of the source version.
func CloneInterview(ctx context.Context, db *gorm.DB, sourceID, creatorID, title string) (*domain.Interview, error) {
	src, err := GetInterview(ctx, db, sourceID)
	if err != nil {
		return nil, err
	}

	clone := &domain.Interview{
		ID:          uuid.NewString(),
		OrgID:       src.OrgID,
		CreatorID:   creatorID,
		Title:       title,
		DurationMin: src.DurationMin,
		Description: src.Description,
		Keywords:    src.Keywords,
		Version:     1,
		CreatedAt:   time.Now().UTC(),
	}
	for _, t := range src.Topics {
		clone.Topics = append(clone.Topics, domain.InterviewTopic{
			ID:          uuid.NewString(),
			InterviewID: clone.ID,
			Skill:       t.Skill,
			Difficulty:  t.Difficulty,
			WeightPct:   t.WeightPct,
			DurationMin: t.DurationMin,
			Questions:   t.Questions,
			Position:    t.Position,
		})
	}
	if err := db.WithContext(ctx).Create(clone).Error; err != nil {
		return nil, err
	}
	return clone, nil
}
