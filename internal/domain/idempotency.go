package domain

import "time"

// ProcessedEvent records an inbound event id that has already been applied to
// the ledger, keyed by (source, key). Replays of the same id are acknowledged
// without crediting points twice. Rows expire after the idempotency TTL.
type ProcessedEvent struct {
	ID        string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	Source    string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_event_source_key,priority:1"`
	Key       string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_event_source_key,priority:2"`
	UserID    string    `gorm:"type:TEXT NOT NULL"`
	CreatedAt time.Time `gorm:"type:TIMESTAMP NOT NULL;autoCreateTime"`
	ExpiresAt time.Time `gorm:"type:TIMESTAMP NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (ProcessedEvent) TableName() string { return "processed_events" }
