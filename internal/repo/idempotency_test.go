package repo

import (
	"errors"
	"testing"
	"time"

	"github.com/izikdepth/MemeBot/internal/domain"
)

func TestRecordEvent_DuplicateAndLookup(t *testing.T) {
	db := newLedgerDB(t, &domain.ProcessedEvent{})

	rec, err := RecordEvent(ctxBG, db, domain.SourceChat, "msg-1", "u1", time.Hour)
	if err != nil || rec.ID == "" {
		t.Fatalf("RecordEvent = %+v, %v", rec, err)
	}
	if _, err := RecordEvent(ctxBG, db, domain.SourceChat, "msg-1", "u1", time.Hour); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	// Same key under another source is independent.
	if _, err := RecordEvent(ctxBG, db, domain.SourceConnect4, "msg-1", "u1", time.Hour); err != nil {
		t.Fatalf("other source: %v", err)
	}

	got, err := GetProcessedEvent(ctxBG, db, domain.SourceChat, "msg-1", time.Now().UTC())
	if err != nil || got.UserID != "u1" {
		t.Fatalf("GetProcessedEvent = %+v, %v", got, err)
	}
	if _, err := GetProcessedEvent(ctxBG, db, domain.SourceChat, "msg-1", time.Now().Add(2*time.Hour)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired lookup should be ErrNotFound, got %v", err)
	}
	if _, err := GetProcessedEvent(ctxBG, db, domain.SourceChat, "  ", time.Now()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("blank key should be ErrNotFound, got %v", err)
	}
}

func TestPurgeExpiredEvents(t *testing.T) {
	db := newLedgerDB(t, &domain.ProcessedEvent{})
	_, _ = RecordEvent(ctxBG, db, domain.SourceChat, "old", "u1", time.Minute)
	_, _ = RecordEvent(ctxBG, db, domain.SourceChat, "new", "u1", 48*time.Hour)

	n, err := PurgeExpiredEvents(ctxBG, db, time.Now().UTC().Add(time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("PurgeExpiredEvents = %d, %v; want 1", n, err)
	}
}
