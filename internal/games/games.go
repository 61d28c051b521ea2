// Package games holds the result vocabulary shared by the two-player board
// games. Each game lives in its own subpackage as a pure state machine with
// no I/O; sessions, timeouts and awards are handled by services.GameService.
package games

import "errors"

// Player identifies a seat. PlayerOne always moves first.
type Player int

const (
	NoPlayer  Player = 0
	PlayerOne Player = 1
	PlayerTwo Player = 2
)

// Other returns the opposing seat.
func (p Player) Other() Player {
	switch p {
	case PlayerOne:
		return PlayerTwo
	case PlayerTwo:
		return PlayerOne
	}
	return NoPlayer
}

// State is the lifecycle position of a game.
type State int

const (
	InProgress State = iota
	PlayerWin
	Tie
	Forfeit
)

func (s State) String() string {
	switch s {
	case InProgress:
		return "in_progress"
	case PlayerWin:
		return "player_win"
	case Tie:
		return "tie"
	case Forfeit:
		return "forfeit"
	}
	return "unknown"
}

// Result describes the outcome so far. Winner is set for PlayerWin and
// Forfeit; Forfeiter only for Forfeit.
type Result struct {
	State     State
	Winner    Player
	Forfeiter Player
}

// Over reports whether no further moves are accepted.
func (r Result) Over() bool { return r.State != InProgress }

// ErrGameOver is returned for moves after a terminal state.
var ErrGameOver = errors.New("game is over")
