package services

import (
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/izikdepth/MemeBot/internal/config"
	"github.com/izikdepth/MemeBot/internal/domain"
	"github.com/izikdepth/MemeBot/internal/games"
	"github.com/izikdepth/MemeBot/internal/repo"
)

func newGames(t *testing.T) (*GameService, *fakeTransport, *clockwork.FakeClock) {
	t.Helper()
	l, clock := newLedger(t)
	ft := newFakeTransport()
	s := NewGameService(l, ft,
		config.GameConfig{MaxUserPoints: 1000, DailyLimit: 5000, PointsPerWin: 100},
		config.GameConfig{MaxUserPoints: 1000, DailyLimit: 5000, PointsPerWin: 50},
		10*time.Minute, 0,
	)
	s.Clock = clock
	t.Cleanup(s.Close)
	return s, ft, clock
}

// playTicTacToe plays X to a top-row win.
func playTicTacToe(t *testing.T, s *GameService, id string) *SessionView {
	t.Helper()
	moves := []struct {
		user     string
		row, col int
	}{
		{"alice", 0, 0}, {"bob", 1, 0}, {"alice", 0, 1}, {"bob", 1, 1}, {"alice", 0, 2},
	}
	var v *SessionView
	var err error
	for _, m := range moves {
		v, err = s.MoveTicTacToe(ctxBG, id, m.user, m.row, m.col)
		require.NoError(t, err)
	}
	return v
}

func TestGame_TicTacToeWinAwardsPoints(t *testing.T) {
	s, ft, _ := newGames(t)
	_, err := s.StartTicTacToe(ctxBG, "i1", "alice", "bob")
	require.NoError(t, err)

	v := playTicTacToe(t, s, "i1")
	assert.Equal(t, games.PlayerWin.String(), v.State)
	assert.Equal(t, "alice", v.Winner)
	require.NotNil(t, v.Award)
	assert.Equal(t, int64(50), v.Award.Granted)
	assert.True(t, v.Reminded)
	assert.Len(t, ft.dmsTo("alice"), 1)

	total, err := repo.GetDailyTotal(ctxBG, s.Ledger.DB, s.Ledger.Today(), domain.SourceTicTacToe)
	require.NoError(t, err)
	assert.Equal(t, int64(50), total)
	chat, err := repo.GetDailyTotal(ctxBG, s.Ledger.DB, s.Ledger.Today(), domain.SourceChat)
	require.NoError(t, err)
	assert.Zero(t, chat)

	_, err = s.MoveTicTacToe(ctxBG, "i1", "bob", 2, 2)
	require.ErrorIs(t, err, games.ErrGameOver)
}

func TestGame_NoReminderWhenAddressOnFile(t *testing.T) {
	s, ft, _ := newGames(t)
	_, err := s.Ledger.Award(ctxBG, chatAward("alice", 1))
	require.NoError(t, err)
	require.NoError(t, s.Ledger.BindAddress(ctxBG, "alice", addrA, false))

	_, err = s.StartTicTacToe(ctxBG, "i1", "alice", "bob")
	require.NoError(t, err)
	v := playTicTacToe(t, s, "i1")
	assert.False(t, v.Reminded)
	assert.Empty(t, ft.dmsTo("alice"))
}

func TestGame_TurnAndMembership(t *testing.T) {
	s, _, _ := newGames(t)
	_, err := s.StartConnect4(ctxBG, "c1", "alice", "bob")
	require.NoError(t, err)

	_, err = s.MoveConnect4(ctxBG, "c1", "bob", 3)
	require.ErrorIs(t, err, ErrNotYourTurn)
	_, err = s.MoveConnect4(ctxBG, "c1", "carol", 3)
	require.ErrorIs(t, err, ErrNotAPlayer)
	_, err = s.MoveConnect4(ctxBG, "missing", "alice", 3)
	require.ErrorIs(t, err, ErrSessionNotFound)
	_, err = s.MoveTicTacToe(ctxBG, "c1", "alice", 0, 0)
	require.ErrorIs(t, err, ErrSessionNotFound, "kind must match")

	v, err := s.MoveConnect4(ctxBG, "c1", "alice", 3)
	require.NoError(t, err)
	assert.Equal(t, "bob", v.Turn)
	assert.Equal(t, 1, v.Board[5][3])
}

func TestGame_Connect4VerticalWin(t *testing.T) {
	s, _, _ := newGames(t)
	_, err := s.StartConnect4(ctxBG, "c1", "alice", "bob")
	require.NoError(t, err)

	var v *SessionView
	for i := 0; i < 4; i++ {
		v, err = s.MoveConnect4(ctxBG, "c1", "alice", 0)
		require.NoError(t, err)
		if i < 3 {
			_, err = s.MoveConnect4(ctxBG, "c1", "bob", 1)
			require.NoError(t, err)
		}
	}
	assert.Equal(t, "alice", v.Winner)
	require.NotNil(t, v.Award)
	assert.Equal(t, int64(100), v.Award.Granted)
}

func TestGame_ForfeitGivesNoAward(t *testing.T) {
	s, _, _ := newGames(t)
	_, err := s.StartConnect4(ctxBG, "c1", "alice", "bob")
	require.NoError(t, err)

	v, err := s.Forfeit(ctxBG, "c1", "alice")
	require.NoError(t, err)
	assert.Equal(t, games.Forfeit.String(), v.State)
	assert.Equal(t, "bob", v.Winner)
	assert.Equal(t, "alice", v.Forfeiter)
	assert.Nil(t, v.Award)

	_, err = repo.GetUser(ctxBG, s.Ledger.DB, "bob")
	require.ErrorIs(t, err, repo.ErrNotFound)
}

func TestGame_LateMoveForfeitsPlayerToMove(t *testing.T) {
	s, _, clock := newGames(t)
	s.Timeout = time.Minute
	_, err := s.StartTicTacToe(ctxBG, "i1", "alice", "bob")
	require.NoError(t, err)
	_, err = s.MoveTicTacToe(ctxBG, "i1", "alice", 1, 1)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	v, err := s.MoveTicTacToe(ctxBG, "i1", "bob", 0, 0)
	if err != nil && !errors.Is(err, games.ErrGameOver) {
		require.ErrorIs(t, err, ErrGameTimedOut)
	}
	// Either the late move or the idle timer forfeits bob.
	require.Eventually(t, func() bool {
		v, err = s.Get("i1")
		return err == nil && v.State == games.Forfeit.String()
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "bob", v.Forfeiter)
}

func TestGame_IdleSessionsAreDropped(t *testing.T) {
	s, _, clock := newGames(t)
	s.Timeout = time.Minute
	_, err := s.StartConnect4(ctxBG, "c1", "alice", "bob")
	require.NoError(t, err)

	clock.Advance(time.Minute)
	require.Eventually(t, func() bool {
		v, err := s.Get("c1")
		return err == nil && v.State == games.Forfeit.String()
	}, 2*time.Second, 5*time.Millisecond)

	clock.Advance(time.Minute)
	require.Eventually(t, func() bool {
		_, err := s.Get("c1")
		return err == ErrSessionNotFound
	}, 2*time.Second, 5*time.Millisecond)
}

func TestGame_StartRules(t *testing.T) {
	s, _, clock := newGames(t)
	s.Cooldown = &Cooldown{Period: 5 * time.Second, Clock: clock}

	_, err := s.StartTicTacToe(ctxBG, "", "alice", "alice")
	require.ErrorIs(t, err, ErrSamePlayer)

	v, err := s.StartTicTacToe(ctxBG, "", "alice", "bob")
	require.NoError(t, err)
	assert.NotEmpty(t, v.ID)
	assert.Equal(t, "alice", v.Turn)

	_, err = s.StartConnect4(ctxBG, "", "alice", "bob")
	require.ErrorIs(t, err, ErrCooldown)

	clock.Advance(5 * time.Second)
	_, err = s.StartConnect4(ctxBG, "", "alice", "bob")
	require.NoError(t, err)
}

func TestGame_StartRejectsLiveSessionID(t *testing.T) {
	s, _, _ := newGames(t)

	_, err := s.StartTicTacToe(ctxBG, "g1", "alice", "bob")
	require.NoError(t, err)
	_, err = s.MoveTicTacToe(ctxBG, "g1", "alice", 2, 2)
	require.NoError(t, err)

	_, err = s.StartConnect4(ctxBG, "g1", "carol", "dave")
	require.ErrorIs(t, err, ErrSessionExists)

	v, err := s.Get("g1")
	require.NoError(t, err)
	assert.Equal(t, [2]string{"alice", "bob"}, v.Players)
	assert.Equal(t, GameTicTacToe, v.Kind)
	assert.Equal(t, "bob", v.Turn)

	// Once the game is over the id can be reused.
	_, err = s.Forfeit(ctxBG, "g1", "bob")
	require.NoError(t, err)
	v, err = s.StartConnect4(ctxBG, "g1", "carol", "dave")
	require.NoError(t, err)
	assert.Equal(t, [2]string{"carol", "dave"}, v.Players)
}
