// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Transcript
// model, the durable side of the conversation cache.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/skillgate/go-interview-backend/internal/domain"
)

// GetTranscript fetches the persisted transcript for a candidate attempt.
// Returns ErrNotFound when nothing has been flushed yet.
func GetTranscript(ctx context.Context, db *gorm.DB, candidateID string) (*domain.Transcript, error) {
	var t domain.Transcript
	err := db.WithContext(ctx).
		Where("candidate_id = ?", candidateID).
		First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// UpsertTranscript replaces the stored message list for a candidate attempt.
// The write is a blind overwrite: the cache list is the source of truth while
// a session is hot, so the flush never merges.
func UpsertTranscript(ctx context.Context, db *gorm.DB, candidateID, messages string) error {
	now := time.Now().UTC()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Transcript{}).
			Where("candidate_id = ?", candidateID).
			Updates(map[string]any{
				"messages":   messages,
				"flushed_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		return tx.Create(&domain.Transcript{
			ID:          uuid.NewString(),
			CandidateID: candidateID,
			Messages:    messages,
			FlushedAt:   now,
			CreatedAt:   now,
		}).Error
	})
}
