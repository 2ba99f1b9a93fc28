// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Token model
// used by the Bearer auth channel.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/skillgate/go-interview-backend/internal/domain"
)

// GetActiveToken resolves a bearer token value to its row, requiring the
// active flag. Returns ErrNotFound for unknown or deactivated tokens.
func GetActiveToken(ctx context.Context, db *gorm.DB, token string) (*domain.Token, error) {
	var t domain.Token
	err := db.WithContext(ctx).
		Where("token = ? AND active = ?", token, true).
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateToken mints a token row for userID.
func CreateToken(ctx context.Context, db *gorm.DB, userID, token string) (*domain.Token, error) {
	t := &domain.Token{
		ID:        uuid.NewString(),
		Token:     token,
		UserID:    userID,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(t).Error; err != nil {
		return nil, err
	}
	return t, nil
}

// DeactivateToken marks a token inactive. Returns ErrNotFound when no row was
// affected.
func DeactivateToken(ctx context.Context, db *gorm.DB, token string) error {
	res := db.WithContext(ctx).
		Model(&domain.Token{}).
		Where("token = ?", token).
		Update("active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
