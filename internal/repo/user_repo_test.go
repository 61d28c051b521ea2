package repo

import (
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/izikdepth/MemeBot/internal/domain"
)

const (
	addrA = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"
	addrB = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
)

func TestRecordActivity_CreatesAndAccumulates(t *testing.T) {
	db := newLedgerDB(t, &domain.User{})
	at := time.Now().UTC()

	total, err := RecordActivity(ctxBG, db, "u1", 500, at)
	if err != nil || total != 500 {
		t.Fatalf("first RecordActivity = %d, %v", total, err)
	}
	total, err = RecordActivity(ctxBG, db, "u1", 250, at.Add(time.Minute))
	if err != nil || total != 750 {
		t.Fatalf("second RecordActivity = %d, %v", total, err)
	}

	u, err := GetUser(ctxBG, db, "u1")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if u.LastActivity == nil || !u.LastActivity.Equal(at.Add(time.Minute)) {
		t.Fatalf("last_activity not stamped: %+v", u.LastActivity)
	}
}

func TestRecordActivity_RejectsNegativeDelta(t *testing.T) {
	db := newLedgerDB(t, &domain.User{})
	if _, err := RecordActivity(ctxBG, db, "u1", -1, time.Now()); !errors.Is(err, ErrNegativeDelta) {
		t.Fatalf("expected ErrNegativeDelta, got %v", err)
	}
}

func TestEnsureUser_IsIdempotent(t *testing.T) {
	db := newLedgerDB(t, &domain.User{})
	if _, err := RecordActivity(ctxBG, db, "u1", 10, time.Now()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	u, err := EnsureUser(ctxBG, db, "u1", time.Now())
	if err != nil || u.Points != 10 {
		t.Fatalf("EnsureUser must not reset balance: %+v, %v", u, err)
	}
}

func TestGetUser_NotFound(t *testing.T) {
	db := newLedgerDB(t, &domain.User{})
	if _, err := GetUser(ctxBG, db, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetClaimAddress_Rules(t *testing.T) {
	db := newLedgerDB(t, &domain.User{})
	for _, id := range []string{"u1", "u2"} {
		if _, err := EnsureUser(ctxBG, db, id, time.Now()); err != nil {
			t.Fatalf("EnsureUser %s: %v", id, err)
		}
	}

	if err := SetClaimAddress(ctxBG, db, "u1", addrA, false); err != nil {
		t.Fatalf("first bind: %v", err)
	}
	// Same user, same address: no-op.
	if err := SetClaimAddress(ctxBG, db, "u1", addrA, false); err != nil {
		t.Fatalf("rebind same address: %v", err)
	}
	// Another user cannot take it.
	if err := SetClaimAddress(ctxBG, db, "u2", addrA, true); !errors.Is(err, ErrAddressTaken) {
		t.Fatalf("expected ErrAddressTaken, got %v", err)
	}
	// Overwrite disabled.
	if err := SetClaimAddress(ctxBG, db, "u1", addrB, false); !errors.Is(err, ErrAddressLocked) {
		t.Fatalf("expected ErrAddressLocked, got %v", err)
	}
	// Overwrite enabled.
	if err := SetClaimAddress(ctxBG, db, "u1", addrB, true); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	owner, err := AddressOwner(ctxBG, db, addrB)
	if err != nil || owner != "u1" {
		t.Fatalf("AddressOwner = %q, %v", owner, err)
	}
	// The released address is free again.
	if err := SetClaimAddress(ctxBG, db, "u2", addrA, false); err != nil {
		t.Fatalf("bind released address: %v", err)
	}
}

func TestSetClaimAddress_UnknownUser(t *testing.T) {
	db := newLedgerDB(t, &domain.User{})
	if err := SetClaimAddress(ctxBG, db, "ghost", addrA, true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestWinnersMissingClaimAddress_AndTopUsers(t *testing.T) {
	db := newLedgerDB(t, &domain.User{}, &domain.Winner{})
	now := time.Now().UTC()
	for id, pts := range map[string]int64{"a": 30, "b": 10, "c": 20, "d": 5} {
		if _, err := RecordActivity(ctxBG, db, id, pts, now); err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}
	// a wins twice, b and c once; d never wins.
	for _, w := range []struct{ date, user string }{
		{"2025-03-13", "a"}, {"2025-03-14", "a"}, {"2025-03-14", "b"}, {"2025-03-14", "c"},
	} {
		if _, err := UpsertWinner(ctxBG, db, w.date, w.user, 10); err != nil {
			t.Fatalf("winner %s: %v", w.user, err)
		}
	}
	if err := SetClaimAddress(ctxBG, db, "b", addrA, true); err != nil {
		t.Fatalf("bind: %v", err)
	}

	missing, err := WinnersMissingClaimAddress(ctxBG, db)
	if err != nil {
		t.Fatalf("WinnersMissingClaimAddress: %v", err)
	}
	if len(missing) != 2 || missing[0] != "a" || missing[1] != "c" {
		t.Fatalf("missing = %v; want [a c]", missing)
	}

	top, err := TopUsers(ctxBG, db, 2)
	if err != nil {
		t.Fatalf("TopUsers: %v", err)
	}
	if len(top) != 2 || top[0].ID != "a" || top[1].ID != "c" {
		t.Fatalf("top = %+v", top)
	}
}

func TestWinnersMissingClaimAddress_IsOneQuery(t *testing.T) {
	db := newLedgerDB(t, &domain.User{}, &domain.Winner{})
	now := time.Now().UTC()
	for _, id := range []string{"a", "b", "c"} {
		if _, err := RecordActivity(ctxBG, db, id, 1, now); err != nil {
			t.Fatal(err)
		}
		if _, err := UpsertWinner(ctxBG, db, "2025-03-14", id, 1); err != nil {
			t.Fatal(err)
		}
	}

	var queries int
	if err := db.Callback().Query().After("gorm:query").Register("test:count_queries", func(*gorm.DB) { queries++ }); err != nil {
		t.Fatal(err)
	}
	missing, err := WinnersMissingClaimAddress(ctxBG, db)
	if err != nil {
		t.Fatal(err)
	}
	if len(missing) != 3 || queries != 1 {
		t.Fatalf("missing=%v queries=%d", missing, queries)
	}
}
