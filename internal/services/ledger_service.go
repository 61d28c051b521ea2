// Package services – LedgerService
//
// LedgerService is the only award path into the ledger. Chat activity and
// game wins both call Award with their own caps; each call runs in a single
// transaction behind one writer mutex, so per-user and per-day totals are
// updated atomically with respect to every other award.
package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/izikdepth/MemeBot/internal/domain"
	"github.com/izikdepth/MemeBot/internal/observability"
	"github.com/izikdepth/MemeBot/internal/repo"
)

// AwardRequest describes one credit. Zero caps are unlimited.
type AwardRequest struct {
	UserID string
	Source string
	Amount int64

	UserCap      int64 // lifetime balance cap
	DailyUserCap int64 // per user per day, across sources
	GlobalCap    int64 // per (date, source)

	// IdempotencyKey, when set, makes replays of the same event no-ops.
	IdempotencyKey string
}

// AwardResult reports what an award did.
type AwardResult struct {
	UserID      string `json:"user_id"`
	Date        string `json:"date"`
	Source      string `json:"source"`
	Granted     int64  `json:"granted"`
	UserTotal   int64  `json:"user_total"`
	DailyEarned int64  `json:"daily_earned"`
	DailyTotal  int64  `json:"daily_total"`
	Duplicate   bool   `json:"duplicate,omitempty"`
}

// LedgerService serializes ledger writes.
type LedgerService struct {
	DB    *gorm.DB
	Clock clockwork.Clock

	// EventTTL is how long idempotency keys are remembered.
	EventTTL time.Duration

	mu sync.Mutex
}

// NewLedgerService returns a service on the real clock.
func NewLedgerService(db *gorm.DB, eventTTL time.Duration) *LedgerService {
	return &LedgerService{DB: db, Clock: clockwork.NewRealClock(), EventTTL: eventTTL}
}

// Today is the current ledger date (UTC).
func (s *LedgerService) Today() string { return domain.DateKey(s.now()) }

func (s *LedgerService) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now().UTC()
}

// Award credits req.Amount to the user, clipped to the per-user caps.
//
// The award is rejected with a *QuotaError when the source's daily total
// already reached GlobalCap, when the user is at UserCap or DailyUserCap, or
// when the nominal amount would push the daily total past GlobalCap. Storage
// failures are wrapped in ErrLedger. A replayed IdempotencyKey returns a
// result with Duplicate set and changes nothing.
func (s *LedgerService) Award(ctx context.Context, req AwardRequest) (*AwardResult, error) {
	tr := otel.Tracer("services/LedgerService")
	ctx, span := tr.Start(ctx, "Award",
		trace.WithAttributes(
			attribute.String("user.id", req.UserID),
			attribute.String("award.source", req.Source),
			attribute.Int64("award.amount", req.Amount),
		),
	)
	defer span.End()

	if req.Amount <= 0 {
		return nil, repo.ErrNegativeDelta
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	at := s.now()
	out := &AwardResult{UserID: req.UserID, Date: domain.DateKey(at), Source: req.Source}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if req.IdempotencyKey != "" {
			_, err := repo.GetProcessedEvent(ctx, tx, req.Source, req.IdempotencyKey, at)
			if err == nil {
				out.Duplicate = true
				return nil
			}
			if !errors.Is(err, repo.ErrNotFound) {
				return ledgerErr("lookup event", err)
			}
			_, err = repo.RecordEvent(ctx, tx, req.Source, req.IdempotencyKey, req.UserID, s.eventTTL())
			if errors.Is(err, repo.ErrDuplicate) {
				out.Duplicate = true
				return nil
			}
			if err != nil {
				return ledgerErr("record event", err)
			}
		}

		total, err := repo.GetDailyTotal(ctx, tx, out.Date, req.Source)
		if err != nil {
			return ledgerErr("daily total", err)
		}
		if req.GlobalCap > 0 && total >= req.GlobalCap {
			return quota(ScopeGlobal)
		}

		u, err := repo.EnsureUser(ctx, tx, req.UserID, at)
		if err != nil {
			return ledgerErr("ensure user", err)
		}
		if req.UserCap > 0 && u.Points >= req.UserCap {
			return quota(ScopeUser)
		}
		if req.GlobalCap > 0 && total+req.Amount > req.GlobalCap {
			return quota(ScopeGlobal)
		}

		grant := req.Amount
		if req.UserCap > 0 {
			grant = min(grant, req.UserCap-u.Points)
		}
		if req.DailyUserCap > 0 {
			var earned int64
			w, err := repo.GetWinner(ctx, tx, out.Date, req.UserID)
			switch {
			case err == nil:
				earned = w.PointsEarned
			case !errors.Is(err, repo.ErrNotFound):
				return ledgerErr("winner row", err)
			}
			if earned >= req.DailyUserCap {
				return quota(ScopeUserDaily)
			}
			grant = min(grant, req.DailyUserCap-earned)
		}

		if out.UserTotal, err = repo.RecordActivity(ctx, tx, req.UserID, grant, at); err != nil {
			return ledgerErr("record activity", err)
		}
		if out.DailyEarned, err = repo.UpsertWinner(ctx, tx, out.Date, req.UserID, grant); err != nil {
			return ledgerErr("upsert winner", err)
		}
		out.DailyTotal, err = repo.IncrementDailyTotal(ctx, tx, out.Date, req.Source, grant, req.GlobalCap)
		if errors.Is(err, repo.ErrCapExceeded) {
			return quota(ScopeGlobal)
		}
		if err != nil {
			return ledgerErr("daily total", err)
		}
		out.Granted = grant
		return nil
	})

	var qe *QuotaError
	switch {
	case errors.As(err, &qe):
		observability.AwardsRejected.WithLabelValues(req.Source, qe.Scope).Inc()
		span.SetAttributes(attribute.String("award.rejected", qe.Scope))
		return nil, err
	case err != nil:
		span.RecordError(err)
		return nil, err
	}
	if out.Granted > 0 {
		observability.PointsAwarded.WithLabelValues(req.Source).Add(float64(out.Granted))
	}
	span.SetAttributes(attribute.Int64("award.granted", out.Granted))
	return out, nil
}

// Promote flags the user as promoted for today. It reports false when the
// user was already promoted on that date.
func (s *LedgerService) Promote(ctx context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok, err := repo.MarkPromoted(ctx, s.DB, s.Today(), userID, s.now())
	if err != nil {
		return false, ledgerErr("mark promoted", err)
	}
	return ok, nil
}

// AlreadyPromoted reports whether the user was promoted on date.
func (s *LedgerService) AlreadyPromoted(ctx context.Context, date, userID string) (bool, error) {
	w, err := repo.GetWinner(ctx, s.DB, date, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, ledgerErr("winner row", err)
	}
	return w.Promoted, nil
}

// BindAddress stores the claim address and marks the user's pending winner
// rows as submitted in one transaction.
func (s *LedgerService) BindAddress(ctx context.Context, userID, address string, allowOverwrite bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	at := s.now()
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.SetClaimAddress(ctx, tx, userID, address, allowOverwrite); err != nil {
			return err
		}
		_, err := repo.MarkSubmitted(ctx, tx, userID, address, at)
		return err
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repo.ErrAddressTaken):
		return ErrDuplicateAddress
	case errors.Is(err, repo.ErrAddressLocked):
		return ErrAddressLocked
	case errors.Is(err, repo.ErrNotFound):
		return ErrUnauthorized
	default:
		return ledgerErr("bind address", err)
	}
}

func (s *LedgerService) eventTTL() time.Duration {
	if s.EventTTL <= 0 {
		return 24 * time.Hour
	}
	return s.EventTTL
}
