package services

import (
	"context"
	"errors"
	"time"

	"github.com/izikdepth/MemeBot/internal/domain"
	"github.com/izikdepth/MemeBot/internal/repo"
)

// ErrUserNotFound is returned for unknown user ids.
var ErrUserNotFound = errors.New("user not found")

// ErrInvalidDate rejects dates not in YYYY-MM-DD form.
var ErrInvalidDate = errors.New("date must be YYYY-MM-DD")

// UserSummary is a user's ledger state.
type UserSummary struct {
	User   *domain.User `json:"user"`
	Today  int64        `json:"earned_today"`
	Winner bool         `json:"winner"`
}

// QueryService serves read-only ledger views.
type QueryService struct {
	Ledger *LedgerService
}

// User returns the account with today's earnings.
func (s *QueryService) User(ctx context.Context, userID string) (*UserSummary, error) {
	db := s.Ledger.DB
	u, err := repo.GetUser(ctx, db, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	out := &UserSummary{User: u}
	w, err := repo.GetWinner(ctx, db, s.Ledger.Today(), userID)
	switch {
	case err == nil:
		out.Today = w.PointsEarned
	case !errors.Is(err, repo.ErrNotFound):
		return nil, err
	}
	if out.Winner, err = repo.IsWinner(ctx, db, userID); err != nil {
		return nil, err
	}
	return out, nil
}

// Leaderboard lists the day's earners; an empty date means today.
func (s *QueryService) Leaderboard(ctx context.Context, date string, limit int) ([]domain.Winner, error) {
	date, err := s.date(date)
	if err != nil {
		return nil, err
	}
	return repo.ListWinners(ctx, s.Ledger.DB, date, limit)
}

// TopBalances ranks users by lifetime balance.
func (s *QueryService) TopBalances(ctx context.Context, limit int) ([]domain.User, error) {
	return repo.TopUsers(ctx, s.Ledger.DB, limit)
}

// Daily summarizes one date.
func (s *QueryService) Daily(ctx context.Context, date string) (*repo.DaySummary, error) {
	date, err := s.date(date)
	if err != nil {
		return nil, err
	}
	return repo.DailySummary(ctx, s.Ledger.DB, date)
}

func (s *QueryService) date(d string) (string, error) {
	if d == "" || d == "today" {
		return s.Ledger.Today(), nil
	}
	if _, err := time.Parse(domain.DateLayout, d); err != nil {
		return "", ErrInvalidDate
	}
	return d, nil
}
