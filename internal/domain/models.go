// Package domain defines the persistence models for the activity ledger:
// user balances, per-day distribution totals, and per-day winner records.
// These types are mapped with GORM and form the core data layer of the bot.
package domain

import "time"

// Claim statuses stored on Winner rows.
const (
	ClaimPending   = "pending"
	ClaimSubmitted = "submitted"
)

// Ledger sources. Each source enforces its own global daily cap while all of
// them credit the same users and winners tables.
const (
	SourceChat      = "chat"
	SourceConnect4  = "connect4"
	SourceTicTacToe = "tictactoe"
)

// DateLayout is the UTC calendar-date key used by daily_totals and winners.
const DateLayout = "2006-01-02"

// DateKey returns the UTC date bucket for t.
func DateKey(t time.Time) string { return t.UTC().Format(DateLayout) }

// User is a community member's lifetime balance and claim address.
//
// Fields:
//   - ID: opaque platform user id (primary key).
//   - Points: lifetime balance, never above the configured per-user cap.
//   - ClaimAddress: payout address; unique across users when set.
//   - LastActivity: time of the last credited action.
type User struct {
	ID           string     `json:"user_id"                 gorm:"column:user_id;type:varchar(64);primaryKey"`
	Points       int64      `json:"points"                  gorm:"not null;default:0;check:points >= 0"`
	ClaimAddress *string    `json:"claim_address,omitempty" gorm:"column:claim_address;type:varchar(128);uniqueIndex:ux_users_claim_address"`
	LastActivity *time.Time `json:"last_activity,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// DailyTotal tracks how many points a source has distributed on a date.
type DailyTotal struct {
	Date             string    `json:"date"              gorm:"type:char(10);primaryKey"`
	Source           string    `json:"source"            gorm:"type:varchar(32);primaryKey"`
	TotalDistributed int64     `json:"total_distributed" gorm:"not null;default:0;check:total_distributed >= 0"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TableName returns the database table name for DailyTotal.
func (DailyTotal) TableName() string { return "daily_totals" }

// Winner accumulates what a user earned on a date and tracks the claim
// workflow for that date. Rows are created by the first award of the day and
// promoted by the refresh cycle.
type Winner struct {
	Date         string     `json:"date"                    gorm:"type:char(10);primaryKey"`
	UserID       string     `json:"user_id"                 gorm:"type:varchar(64);primaryKey;index:idx_winners_user"`
	PointsEarned int64      `json:"points_earned"           gorm:"not null;default:0;check:points_earned >= 0"`
	Status       string     `json:"status"                  gorm:"type:varchar(16);not null;default:'pending';check:status IN ('pending','submitted')"`
	ClaimAddress *string    `json:"claim_address,omitempty" gorm:"type:varchar(128)"`
	Promoted     bool       `json:"promoted"                gorm:"not null;default:false"`
	PromotedAt   *time.Time `json:"promoted_at,omitempty"`
	SubmittedAt  *time.Time `json:"submitted_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Winner.
func (Winner) TableName() string { return "winners" }
