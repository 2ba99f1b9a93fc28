// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides aggregate queries: dashboard statistics
// for the interview overview and lightweight metadata used for conditional
// responses (ETag generation) in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/skillgate/go-interview-backend/internal/domain"
)

// DashboardStats summarizes an organization's interviews and attempts.
type DashboardStats struct {
	Interviews     int64            `json:"interviews"`
	Candidates     int64            `json:"candidates"`
	Completed      int64            `json:"completed"`
	ByInviteStatus map[string]int64 `json:"by_invite_status"`
	AverageScore   float64          `json:"average_score"`
}

// OrgDashboardStats computes the dashboard aggregates for orgID: interview
// and attempt counts, attempts grouped by invite status, completed sessions,
// and the mean weighted score across all report rows.
func OrgDashboardStats(ctx context.Context, db *gorm.DB, orgID string) (*DashboardStats, error) {
	stats := &DashboardStats{ByInviteStatus: map[string]int64{}}

	if err := db.WithContext(ctx).
		Model(&domain.Interview{}).
		Where("org_id = ?", orgID).
		Count(&stats.Interviews).Error; err != nil {
		return nil, err
	}

	// Attempts are scoped to the org through their interview.
	attemptScope := db.WithContext(ctx).
		Model(&domain.Candidate{}).
		Joins("JOIN interviews ON interviews.id = candidates.interview_id").
		Where("interviews.org_id = ?", orgID)

	if err := attemptScope.Session(&gorm.Session{}).Count(&stats.Candidates).Error; err != nil {
		return nil, err
	}
	if err := attemptScope.Session(&gorm.Session{}).
		Where("candidates.completed_at IS NOT NULL").
		Count(&stats.Completed).Error; err != nil {
		return nil, err
	}

	var rows []struct {
		InviteStatus string
		N            int64
	}
	if err := db.WithContext(ctx).
		Model(&domain.Candidate{}).
		Select("candidates.invite_status, COUNT(*) as n").
		Joins("JOIN interviews ON interviews.id = candidates.interview_id").
		Where("interviews.org_id = ?", orgID).
		Group("candidates.invite_status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		stats.ByInviteStatus[r.InviteStatus] = r.N
	}

	var avg struct {
		Avg *float64
	}
	if err := db.WithContext(ctx).
		Model(&domain.TopicScore{}).
		Select("AVG(CASE WHEN topic_scores.max_score > 0 THEN topic_scores.score / topic_scores.max_score END) as avg").
		Joins("JOIN candidates ON candidates.id = topic_scores.candidate_id").
		Joins("JOIN interviews ON interviews.id = candidates.interview_id").
		Where("interviews.org_id = ?", orgID).
		Scan(&avg).Error; err != nil {
		return nil, err
	}
	if avg.Avg != nil {
		stats.AverageScore = *avg.Avg
	}
	return stats, nil
}

// InterviewsStats returns aggregate metadata for an org's interviews: the
// total number of rows and the maximum UpdatedAt timestamp among those rows.
// Used for weak ETags on the interview list.
//
// Return values:
//   - count:        total interviews for orgID
//   - maxUpdatedAt: pointer to the greatest UpdatedAt, or nil if no rows
//   - err:          database error, if any
func InterviewsStats(ctx context.Context, db *gorm.DB, orgID string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Interview{}).Where("org_id = ?", orgID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
