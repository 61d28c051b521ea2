// Package repo implements the data persistence layer for the activity ledger.
// This file provides repository helpers for ProcessedEvent, which keeps
// replayed inbound events from crediting the ledger twice.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/izikdepth/MemeBot/internal/domain"
)

// ErrDuplicate indicates that an event with the same (source, key) has already
// been processed and has not yet expired.
var ErrDuplicate = errors.New("duplicate")

// GetProcessedEvent returns a non-expired record or ErrNotFound.
func GetProcessedEvent(ctx context.Context, db *gorm.DB, source, key string, now time.Time) (*domain.ProcessedEvent, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrNotFound
	}
	var rec domain.ProcessedEvent
	err := db.WithContext(ctx).
		Where("source = ? AND key = ? AND expires_at > ?", source, key, now).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &rec, err
}

// RecordEvent inserts a record and returns ErrDuplicate on unique violation.
// An expired record with the same key is replaced.
func RecordEvent(ctx context.Context, db *gorm.DB, source, key, userID string, ttl time.Duration) (*domain.ProcessedEvent, error) {
	now := time.Now().UTC()
	if err := db.WithContext(ctx).
		Where("source = ? AND key = ? AND expires_at <= ?", source, key, now).
		Delete(&domain.ProcessedEvent{}).Error; err != nil {
		return nil, err
	}
	rec := &domain.ProcessedEvent{
		ID:        uuid.NewString(),
		Source:    source,
		Key:       key,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// PurgeExpiredEvents deletes records whose TTL has passed.
func PurgeExpiredEvents(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&domain.ProcessedEvent{})
	return res.RowsAffected, res.Error
}
