package handlers

import (
	"context"

	"github.com/izikdepth/MemeBot/internal/domain"
	"github.com/izikdepth/MemeBot/internal/repo"
	"github.com/izikdepth/MemeBot/internal/services"
)

//
// Service contracts (context-aware)
//

// ActivityService credits chat events.
type ActivityService interface {
	HandleEvent(ctx context.Context, ev services.ActivityEvent) (*services.Outcome, error)
}

// ClaimService binds wallet addresses to winners.
type ClaimService interface {
	Submit(ctx context.Context, req services.ClaimRequest) (*services.ClaimResult, error)
}

// GameService runs Connect4 and TicTacToe sessions.
type GameService interface {
	StartConnect4(ctx context.Context, id, challenger, opponent string) (*services.SessionView, error)
	StartTicTacToe(ctx context.Context, id, challenger, opponent string) (*services.SessionView, error)
	MoveConnect4(ctx context.Context, id, userID string, column int) (*services.SessionView, error)
	MoveTicTacToe(ctx context.Context, id, userID string, row, col int) (*services.SessionView, error)
	Forfeit(ctx context.Context, id, userID string) (*services.SessionView, error)
	Get(id string) (*services.SessionView, error)
}

// QueryService serves read-only ledger views.
type QueryService interface {
	User(ctx context.Context, userID string) (*services.UserSummary, error)
	Leaderboard(ctx context.Context, date string, limit int) ([]domain.Winner, error)
	TopBalances(ctx context.Context, limit int) ([]domain.User, error)
	Daily(ctx context.Context, date string) (*repo.DaySummary, error)
}

// RefreshService runs a winner-selection cycle on demand.
type RefreshService interface {
	RunCycle(ctx context.Context) (*services.CycleReport, error)
}

// ReminderService nudges winners who have not submitted an address.
type ReminderService interface {
	Run(ctx context.Context) (int, error)
}

//
// Handler wiring
//

// Services groups the dependencies of Handlers. Any field may be nil when
// the corresponding routes are not registered.
type Services struct {
	Activity ActivityService
	Claims   ClaimService
	Games    GameService
	Query    QueryService
	Refresh  RefreshService
	Reminder ReminderService
}

// Handlers groups HTTP endpoints over abstract service interfaces.
type Handlers struct {
	activity ActivityService
	claims   ClaimService
	games    GameService
	query    QueryService
	refresh  RefreshService
	reminder ReminderService
}

// New constructs a Handlers bound to s.
func New(s Services) *Handlers {
	return &Handlers{
		activity: s.Activity,
		claims:   s.Claims,
		games:    s.Games,
		query:    s.Query,
		refresh:  s.Refresh,
		reminder: s.Reminder,
	}
}
