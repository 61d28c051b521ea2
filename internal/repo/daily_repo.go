package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/izikdepth/MemeBot/internal/domain"
)

// ErrCapExceeded is returned when an increment would push a daily total past
// its limit. The row is left untouched.
var ErrCapExceeded = errors.New("daily distribution cap exceeded")

// GetDailyTotal returns the points distributed by source on date, or 0 when
// nothing has been distributed yet.
func GetDailyTotal(ctx context.Context, db *gorm.DB, date, source string) (int64, error) {
	var dt domain.DailyTotal
	err := db.WithContext(ctx).
		Where("date = ? AND source = ?", date, source).
		First(&dt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return dt.TotalDistributed, nil
}

// IncrementDailyTotal adds delta to the (date, source) total. When limit > 0
// the update is conditional on the new total staying within limit, so the cap
// holds even for writers outside this process. Returns the new total.
func IncrementDailyTotal(ctx context.Context, db *gorm.DB, date, source string, delta, limit int64) (int64, error) {
	if delta < 0 {
		return 0, ErrNegativeDelta
	}
	if limit > 0 && delta > limit {
		return 0, ErrCapExceeded
	}
	now := time.Now().UTC()
	seed := domain.DailyTotal{Date: date, Source: source, UpdatedAt: now}
	if err := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return 0, err
	}

	q := db.WithContext(ctx).
		Model(&domain.DailyTotal{}).
		Where("date = ? AND source = ?", date, source)
	if limit > 0 {
		q = q.Where("total_distributed + ? <= ?", delta, limit)
	}
	res := q.Updates(map[string]any{
		"total_distributed": gorm.Expr("total_distributed + ?", delta),
		"updated_at":        now,
	})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, ErrCapExceeded
	}
	return GetDailyTotal(ctx, db, date, source)
}

// ListDailyTotals returns every source's total for date.
func ListDailyTotals(ctx context.Context, db *gorm.DB, date string) ([]domain.DailyTotal, error) {
	var out []domain.DailyTotal
	err := db.WithContext(ctx).
		Where("date = ?", date).
		Order("source").
		Find(&out).Error
	return out, err
}
