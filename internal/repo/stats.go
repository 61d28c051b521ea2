// Package repo implements the data persistence layer for the activity ledger.
// This file provides small aggregate queries used by the HTTP layer for the
// daily summary endpoint.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/izikdepth/MemeBot/internal/domain"
)

// DaySummary aggregates one date of ledger activity.
type DaySummary struct {
	Date      string           `json:"date"`
	Totals    map[string]int64 `json:"totals"`
	Earners   int64            `json:"earners"`
	Promoted  int64            `json:"promoted"`
	Submitted int64            `json:"submitted"`
	Earned    int64            `json:"points_earned"`
}

// DailySummary returns per-source totals and winner counts for date.
func DailySummary(ctx context.Context, db *gorm.DB, date string) (*DaySummary, error) {
	out := &DaySummary{Date: date, Totals: map[string]int64{}}

	totals, err := ListDailyTotals(ctx, db, date)
	if err != nil {
		return nil, err
	}
	for _, t := range totals {
		out.Totals[t.Source] = t.TotalDistributed
	}

	q := db.WithContext(ctx).Model(&domain.Winner{}).Where("date = ?", date)
	if err := q.Count(&out.Earners).Error; err != nil {
		return nil, err
	}
	if out.Earners == 0 {
		return out, nil
	}

	var row struct {
		Promoted  int64
		Submitted int64
		Earned    int64
	}
	err = db.WithContext(ctx).
		Model(&domain.Winner{}).
		Select(
			"COALESCE(SUM(CASE WHEN promoted THEN 1 ELSE 0 END), 0) AS promoted, "+
				"COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS submitted, "+
				"COALESCE(SUM(points_earned), 0) AS earned",
			domain.ClaimSubmitted,
		).
		Where("date = ?", date).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	out.Promoted = row.Promoted
	out.Submitted = row.Submitted
	out.Earned = row.Earned
	return out, nil
}
