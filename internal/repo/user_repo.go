// Package repo implements the data persistence layer for the activity ledger.
// This file provides repository functions for the User model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They follow the "thin repository"
// approach: no quota rules, only persistence and query composition. Quota
// decisions belong to services.LedgerService.
//
// Error semantics:
//   - Missing rows return ErrNotFound (an alias of gorm.ErrRecordNotFound).
//   - Negative deltas return ErrNegativeDelta; balances only grow here.
//   - Claim-address conflicts return ErrAddressTaken or ErrAddressLocked.
//
// Usage:
//
//	total, err := repo.RecordActivity(ctx, tx, userID, 500, time.Now().UTC())
//	if err != nil {
//	    return err // rolls back the surrounding transaction
//	}
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/izikdepth/MemeBot/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

var (
	// ErrNegativeDelta rejects attempts to shrink a ledger value.
	ErrNegativeDelta = errors.New("negative ledger delta")
	// ErrAddressTaken means the claim address is bound to another user.
	ErrAddressTaken = errors.New("claim address bound to another user")
	// ErrAddressLocked means the user already has a different address and
	// overwriting is not allowed.
	ErrAddressLocked = errors.New("claim address already set")
)

// GetUser loads a user by id or returns ErrNotFound.
func GetUser(ctx context.Context, db *gorm.DB, userID string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("user_id = ?", userID).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// EnsureUser inserts the user with a zero balance when absent and returns the
// current row.
func EnsureUser(ctx context.Context, db *gorm.DB, userID string, at time.Time) (*domain.User, error) {
	u := domain.User{ID: userID, CreatedAt: at, UpdatedAt: at}
	if err := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&u).Error; err != nil {
		return nil, err
	}
	return GetUser(ctx, db, userID)
}

// RecordActivity credits delta points to the user (creating the row if
// needed), stamps last_activity, and returns the new balance.
func RecordActivity(ctx context.Context, db *gorm.DB, userID string, delta int64, at time.Time) (int64, error) {
	if delta < 0 {
		return 0, ErrNegativeDelta
	}
	if _, err := EnsureUser(ctx, db, userID, at); err != nil {
		return 0, err
	}
	err := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"points":        gorm.Expr("points + ?", delta),
			"last_activity": at,
			"updated_at":    at,
		}).Error
	if err != nil {
		return 0, err
	}
	u, err := GetUser(ctx, db, userID)
	if err != nil {
		return 0, err
	}
	return u.Points, nil
}

// AddressOwner returns the id of the user holding address, or ErrNotFound.
func AddressOwner(ctx context.Context, db *gorm.DB, address string) (string, error) {
	var u domain.User
	err := db.WithContext(ctx).
		Select("user_id").
		Where("claim_address = ?", address).
		First(&u).Error
	if err != nil {
		return "", err
	}
	return u.ID, nil
}

// SetClaimAddress binds address to the user.
//
// Re-submitting the address the user already holds is a no-op. An address
// held by someone else yields ErrAddressTaken. Replacing a different address
// requires allowOverwrite, otherwise ErrAddressLocked.
func SetClaimAddress(ctx context.Context, db *gorm.DB, userID, address string, allowOverwrite bool) error {
	owner, err := AddressOwner(ctx, db, address)
	switch {
	case err == nil && owner == userID:
		return nil
	case err == nil:
		return ErrAddressTaken
	case !errors.Is(err, ErrNotFound):
		return err
	}

	u, err := GetUser(ctx, db, userID)
	if err != nil {
		return err
	}
	if u.ClaimAddress != nil && *u.ClaimAddress != "" && !allowOverwrite {
		return ErrAddressLocked
	}

	err = db.WithContext(ctx).
		Model(&domain.User{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{"claim_address": address, "updated_at": time.Now().UTC()}).Error
	if isUniqueViolation(err) {
		return ErrAddressTaken
	}
	return err
}

// WinnersMissingClaimAddress lists users that appear in the winners table on
// any date but have no claim address on file, in one query.
func WinnersMissingClaimAddress(ctx context.Context, db *gorm.DB) ([]string, error) {
	db = db.WithContext(ctx)
	var ids []string
	err := db.
		Model(&domain.User{}).
		Where("claim_address IS NULL OR claim_address = ''").
		Where("user_id IN (?)", db.Model(&domain.Winner{}).Select("user_id")).
		Order("user_id").
		Pluck("user_id", &ids).Error
	return ids, err
}

// TopUsers returns users ordered by lifetime balance.
func TopUsers(ctx context.Context, db *gorm.DB, limit int) ([]domain.User, error) {
	if limit <= 0 {
		limit = 10
	}
	var out []domain.User
	err := db.WithContext(ctx).
		Order("points desc").
		Order("user_id").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// isUniqueViolation recognizes unique-constraint failures across drivers.
// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key value")
}
