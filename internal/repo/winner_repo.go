package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/izikdepth/MemeBot/internal/domain"
)

var winnerKey = []clause.Column{{Name: "date"}, {Name: "user_id"}}

// UpsertWinner adds delta to the user's earnings for date, creating the row on
// first use, and returns the accumulated amount. Concurrent upserts are
// additive; a row is never overwritten with a smaller value.
func UpsertWinner(ctx context.Context, db *gorm.DB, date, userID string, delta int64) (int64, error) {
	if delta < 0 {
		return 0, ErrNegativeDelta
	}
	now := time.Now().UTC()
	w := domain.Winner{
		Date:         date,
		UserID:       userID,
		PointsEarned: delta,
		Status:       domain.ClaimPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: winnerKey,
		DoUpdates: clause.Assignments(map[string]any{
			"points_earned": gorm.Expr("winners.points_earned + ?", delta),
			"updated_at":    now,
		}),
	}).Create(&w).Error
	if err != nil {
		return 0, err
	}
	got, err := GetWinner(ctx, db, date, userID)
	if err != nil {
		return 0, err
	}
	return got.PointsEarned, nil
}

// GetWinner loads the (date, user) row or returns ErrNotFound.
func GetWinner(ctx context.Context, db *gorm.DB, date, userID string) (*domain.Winner, error) {
	var w domain.Winner
	err := db.WithContext(ctx).
		Where("date = ? AND user_id = ?", date, userID).
		First(&w).Error
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// IsWinner reports whether the user appears in the winners table on any date.
func IsWinner(ctx context.Context, db *gorm.DB, userID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Winner{}).
		Where("user_id = ?", userID).
		Count(&n).Error
	return n > 0, err
}

// MarkPromoted flags the user as promoted for date, creating the row when
// needed. It reports false when the user was already promoted, which makes
// repeated promotion within one date a no-op.
func MarkPromoted(ctx context.Context, db *gorm.DB, date, userID string, at time.Time) (bool, error) {
	w := domain.Winner{
		Date:       date,
		UserID:     userID,
		Status:     domain.ClaimPending,
		Promoted:   true,
		PromotedAt: &at,
		CreatedAt:  at,
		UpdatedAt:  at,
	}
	res := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: winnerKey,
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "winners.promoted = ?", Vars: []any{false}},
		}},
		DoUpdates: clause.Assignments(map[string]any{
			"promoted":    true,
			"promoted_at": at,
			"updated_at":  at,
		}),
	}).Create(&w)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkSubmitted moves every pending row of the user to submitted and stamps
// the claim address. Returns the number of rows changed.
func MarkSubmitted(ctx context.Context, db *gorm.DB, userID, address string, at time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Winner{}).
		Where("user_id = ? AND status = ?", userID, domain.ClaimPending).
		Updates(map[string]any{
			"status":        domain.ClaimSubmitted,
			"claim_address": address,
			"submitted_at":  at,
			"updated_at":    at,
		})
	return res.RowsAffected, res.Error
}

// ListWinners returns the rows for date ordered by earnings.
func ListWinners(ctx context.Context, db *gorm.DB, date string, limit int) ([]domain.Winner, error) {
	q := db.WithContext(ctx).
		Where("date = ?", date).
		Order("points_earned desc").
		Order("user_id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []domain.Winner
	err := q.Find(&out).Error
	return out, err
}
