package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/izikdepth/MemeBot/internal/config"
	"github.com/izikdepth/MemeBot/internal/domain"
	"github.com/izikdepth/MemeBot/internal/games"
	"github.com/izikdepth/MemeBot/internal/games/connect4"
	"github.com/izikdepth/MemeBot/internal/games/tictactoe"
	"github.com/izikdepth/MemeBot/internal/observability"
	"github.com/izikdepth/MemeBot/internal/repo"
	"github.com/izikdepth/MemeBot/internal/transport"
)

// Game kinds. They double as ledger sources.
const (
	GameConnect4  = domain.SourceConnect4
	GameTicTacToe = domain.SourceTicTacToe
)

type board interface {
	Turn() games.Player
	Result() games.Result
	ForfeitBy(games.Player)
}

type session struct {
	id       string
	kind     string
	players  [2]string
	c4       *connect4.Game
	ttt      *tictactoe.Game
	lastMove time.Time
	timer    clockwork.Timer
	award    *AwardResult
	reminded bool
}

func (s *session) board() board {
	if s.c4 != nil {
		return s.c4
	}
	return s.ttt
}

func (s *session) seat(userID string) games.Player {
	switch userID {
	case s.players[0]:
		return games.PlayerOne
	case s.players[1]:
		return games.PlayerTwo
	}
	return games.NoPlayer
}

func (s *session) user(p games.Player) string {
	switch p {
	case games.PlayerOne:
		return s.players[0]
	case games.PlayerTwo:
		return s.players[1]
	}
	return ""
}

// SessionView is the public state of a game session.
type SessionView struct {
	ID        string       `json:"id"`
	Kind      string       `json:"kind"`
	Players   [2]string    `json:"players"`
	Turn      string       `json:"turn,omitempty"`
	State     string       `json:"state"`
	Winner    string       `json:"winner,omitempty"`
	Forfeiter string       `json:"forfeiter,omitempty"`
	Board     [][]int      `json:"board"`
	Award     *AwardResult `json:"award,omitempty"`
	Reminded  bool         `json:"address_reminder_sent,omitempty"`
}

// GameService hosts Connect4 and TicTacToe sessions and pays out wins.
type GameService struct {
	Ledger    *LedgerService
	Transport transport.Transport
	Clock     clockwork.Clock
	Cooldown  *Cooldown

	Connect4  config.GameConfig
	TicTacToe config.GameConfig
	// Timeout is the idle time after which the player to move forfeits.
	Timeout time.Duration

	mu       sync.Mutex
	sessions map[string]*session
}

// NewGameService returns a service on the real clock.
func NewGameService(l *LedgerService, t transport.Transport, c4, ttt config.GameConfig, timeout, cooldown time.Duration) *GameService {
	return &GameService{
		Ledger:    l,
		Transport: t,
		Clock:     clockwork.NewRealClock(),
		Cooldown:  NewCooldown(cooldown),
		Connect4:  c4,
		TicTacToe: ttt,
		Timeout:   timeout,
		sessions:  map[string]*session{},
	}
}

// StartConnect4 opens a Connect4 session; challenger moves first.
func (s *GameService) StartConnect4(ctx context.Context, id, challenger, opponent string) (*SessionView, error) {
	return s.start(ctx, GameConnect4, id, challenger, opponent)
}

// StartTicTacToe opens a TicTacToe session; challenger plays X.
func (s *GameService) StartTicTacToe(ctx context.Context, id, challenger, opponent string) (*SessionView, error) {
	return s.start(ctx, GameTicTacToe, id, challenger, opponent)
}

func (s *GameService) start(_ context.Context, kind, id, challenger, opponent string) (*SessionView, error) {
	if challenger == opponent {
		return nil, ErrSamePlayer
	}
	if id == "" {
		id = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions == nil {
		s.sessions = map[string]*session{}
	}
	// A finished session may be replaced; a live one may not.
	old, exists := s.sessions[id]
	if exists && !old.board().Result().Over() {
		return nil, ErrSessionExists
	}
	if !s.Cooldown.Allow(challenger) {
		return nil, ErrCooldown
	}
	if exists {
		old.timer.Stop()
	}

	sess := &session{id: id, kind: kind, players: [2]string{challenger, opponent}, lastMove: s.Clock.Now()}
	if kind == GameConnect4 {
		sess.c4 = connect4.New()
	} else {
		sess.ttt = tictactoe.New()
	}
	sess.timer = s.Clock.AfterFunc(s.timeout(), func() { s.idle(sess) })
	s.sessions[id] = sess

	log.Info().Str("component", "games").Str("game", kind).Str("session_id", id).Msg("game started")
	return s.view(sess), nil
}

// MoveConnect4 drops userID's piece into column.
func (s *GameService) MoveConnect4(ctx context.Context, id, userID string, column int) (*SessionView, error) {
	return s.move(ctx, GameConnect4, id, userID, func(sess *session) error { return sess.c4.Move(column) })
}

// MoveTicTacToe marks (row, col) for userID.
func (s *GameService) MoveTicTacToe(ctx context.Context, id, userID string, row, col int) (*SessionView, error) {
	return s.move(ctx, GameTicTacToe, id, userID, func(sess *session) error { return sess.ttt.Move(row, col) })
}

func (s *GameService) move(ctx context.Context, kind, id, userID string, apply func(*session) error) (*SessionView, error) {
	tr := otel.Tracer("services/GameService")
	ctx, span := tr.Start(ctx, "Move",
		trace.WithAttributes(
			attribute.String("game.kind", kind),
			attribute.String("game.session", id),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok || sess.kind != kind {
		s.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	seat := sess.seat(userID)
	if seat == games.NoPlayer {
		s.mu.Unlock()
		return nil, ErrNotAPlayer
	}
	b := sess.board()
	if b.Result().Over() {
		v := s.view(sess)
		s.mu.Unlock()
		return v, games.ErrGameOver
	}
	now := s.Clock.Now()
	if now.Sub(sess.lastMove) >= s.timeout() {
		b.ForfeitBy(b.Turn())
		s.finishLocked(sess)
		v := s.view(sess)
		s.mu.Unlock()
		return v, ErrGameTimedOut
	}
	if b.Turn() != seat {
		s.mu.Unlock()
		return nil, ErrNotYourTurn
	}
	if err := apply(sess); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	sess.lastMove = now
	sess.timer.Reset(s.timeout())

	res := b.Result()
	if res.Over() {
		s.finishLocked(sess)
	}
	s.mu.Unlock()

	if res.State == games.PlayerWin {
		s.payout(ctx, sess, sess.user(res.Winner))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view(sess), nil
}

// Forfeit concedes the game for userID.
func (s *GameService) Forfeit(_ context.Context, id, userID string) (*SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	seat := sess.seat(userID)
	if seat == games.NoPlayer {
		return nil, ErrNotAPlayer
	}
	b := sess.board()
	if b.Result().Over() {
		return s.view(sess), games.ErrGameOver
	}
	b.ForfeitBy(seat)
	s.finishLocked(sess)
	return s.view(sess), nil
}

// Get returns the session state.
func (s *GameService) Get(id string) (*SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s.view(sess), nil
}

// Close stops every idle timer.
func (s *GameService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		sess.timer.Stop()
		delete(s.sessions, id)
	}
}

// finishLocked records the terminal state. The session stays readable for
// one more timeout period before the idle timer drops it.
func (s *GameService) finishLocked(sess *session) {
	res := sess.board().Result()
	observability.GamesFinished.WithLabelValues(sess.kind, res.State.String()).Inc()
	sess.timer.Reset(s.timeout())
	log.Info().
		Str("component", "games").
		Str("game", sess.kind).
		Str("session_id", sess.id).
		Str("state", res.State.String()).
		Str("winner", sess.user(res.Winner)).
		Msg("game finished")
}

// idle forfeits an abandoned game or drops a finished one.
func (s *GameService) idle(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions[sess.id] != sess {
		return
	}
	b := sess.board()
	if !b.Result().Over() {
		b.ForfeitBy(b.Turn())
		s.finishLocked(sess)
		return
	}
	delete(s.sessions, sess.id)
}

func (s *GameService) payout(ctx context.Context, sess *session, winner string) {
	cfg := s.Connect4
	if sess.kind == GameTicTacToe {
		cfg = s.TicTacToe
	}
	l := log.With().Str("component", "games").Str("session_id", sess.id).Str("user_id", winner).Logger()

	res, err := s.Ledger.Award(ctx, AwardRequest{
		UserID:         winner,
		Source:         sess.kind,
		Amount:         cfg.PointsPerWin,
		UserCap:        cfg.MaxUserPoints,
		GlobalCap:      cfg.DailyLimit,
		IdempotencyKey: "session:" + sess.id,
	})
	var qe *QuotaError
	switch {
	case errors.As(err, &qe):
		l.Info().Str("scope", qe.Scope).Msg("game award blocked by quota")
		return
	case err != nil:
		l.Error().Err(err).Msg("game award failed")
		return
	case res.Duplicate:
		return
	}

	reminded := s.remindAddress(ctx, winner, res.Granted)
	s.mu.Lock()
	sess.award = res
	sess.reminded = reminded
	s.mu.Unlock()
}

// remindAddress DMs a winner without a claim address once per win.
func (s *GameService) remindAddress(ctx context.Context, userID string, granted int64) bool {
	if s.Transport == nil {
		return false
	}
	u, err := repo.GetUser(ctx, s.Ledger.DB, userID)
	if err != nil || (u.ClaimAddress != nil && *u.ClaimAddress != "") {
		return false
	}
	text := message.NewPrinter(language.English).Sprintf(
		"You won %d points! Send me your wallet address in this DM so you can claim them.", granted)
	if _, err := s.Transport.DeliverDirectMessage(ctx, userID, text); err != nil {
		log.Warn().Err(err).Str("component", "games").Str("user_id", userID).Msg("address reminder failed")
		return false
	}
	return true
}

func (s *GameService) timeout() time.Duration {
	if s.Timeout <= 0 {
		return 10 * time.Minute
	}
	return s.Timeout
}

func (s *GameService) view(sess *session) *SessionView {
	b := sess.board()
	res := b.Result()
	v := &SessionView{
		ID:        sess.id,
		Kind:      sess.kind,
		Players:   sess.players,
		State:     res.State.String(),
		Winner:    sess.user(res.Winner),
		Forfeiter: sess.user(res.Forfeiter),
		Award:     sess.award,
		Reminded:  sess.reminded,
	}
	if !res.Over() {
		v.Turn = sess.user(b.Turn())
	}
	if sess.c4 != nil {
		for _, row := range sess.c4.Rows() {
			r := make([]int, len(row))
			for i, p := range row {
				r[i] = int(p)
			}
			v.Board = append(v.Board, r)
		}
	} else {
		for _, row := range sess.ttt.Board() {
			v.Board = append(v.Board, append([]int(nil), row[:]...))
		}
	}
	return v
}
