// Package connect4 implements the 7x6 drop-piece game. Pieces fall to the
// lowest empty cell of a column; four or more in a row on any axis wins.
package connect4

import (
	"errors"

	"github.com/izikdepth/MemeBot/internal/games"
)

const (
	Width  = 7
	Height = 6
	// WinLength is the run needed to win.
	WinLength = 4
)

var (
	ErrColumnFull    = errors.New("column full")
	ErrInvalidColumn = errors.New("column out of range")
)

// Game is a single Connect4 board. The zero value is not usable; call New.
type Game struct {
	// board[x][y]; y == 0 is the top row.
	board     [Width][Height]games.Player
	turns     int
	forfeiter games.Player
}

// New returns an empty board with PlayerOne to move.
func New() *Game { return &Game{} }

// Turn returns the player expected to move next.
func (g *Game) Turn() games.Player {
	return games.Player(g.turns%2 + 1)
}

// Turns returns the number of pieces played.
func (g *Game) Turns() int { return g.turns }

// Move drops the current player's piece into column x.
func (g *Game) Move(x int) error {
	if g.Result().Over() {
		return games.ErrGameOver
	}
	if x < 0 || x >= Width {
		return ErrInvalidColumn
	}
	y, err := g.landing(x)
	if err != nil {
		return err
	}
	g.board[x][y] = g.Turn()
	g.turns++
	return nil
}

// landing finds the lowest empty row in column x.
func (g *Game) landing(x int) (int, error) {
	for y := Height - 1; y >= 0; y-- {
		if g.board[x][y] == games.NoPlayer {
			return y, nil
		}
	}
	return 0, ErrColumnFull
}

// Forfeit concedes on behalf of the player to move.
func (g *Game) Forfeit() { g.ForfeitBy(g.Turn()) }

// ForfeitBy concedes on behalf of p. It has no effect on a finished game.
func (g *Game) ForfeitBy(p games.Player) {
	if g.Result().Over() {
		return
	}
	g.forfeiter = p
}

// Cell returns the piece at column x, row y (0 is the top row).
func (g *Game) Cell(x, y int) games.Player { return g.board[x][y] }

// Rows returns the board top row first, for rendering.
func (g *Game) Rows() [Height][Width]games.Player {
	var out [Height][Width]games.Player
	for x := 0; x < Width; x++ {
		for y := 0; y < Height; y++ {
			out[y][x] = g.board[x][y]
		}
	}
	return out
}

// Result evaluates the board.
func (g *Game) Result() games.Result {
	if g.forfeiter != games.NoPlayer {
		return games.Result{State: games.Forfeit, Winner: g.forfeiter.Other(), Forfeiter: g.forfeiter}
	}
	if p := g.winner(); p != games.NoPlayer {
		return games.Result{State: games.PlayerWin, Winner: p}
	}
	if g.turns >= Width*Height {
		return games.Result{State: games.Tie}
	}
	return games.Result{State: games.InProgress}
}

// winner scans every line on the board for a run of WinLength.
func (g *Game) winner() games.Player {
	for _, line := range lines() {
		if p := g.longestRun(line); p != games.NoPlayer {
			return p
		}
	}
	return games.NoPlayer
}

type cell struct{ x, y int }

// longestRun groups consecutive equal cells and returns the owner of the
// first group at least WinLength long.
func (g *Game) longestRun(line []cell) games.Player {
	run, owner := 0, games.NoPlayer
	for _, c := range line {
		p := g.board[c.x][c.y]
		if p == owner {
			run++
		} else {
			owner, run = p, 1
		}
		if owner != games.NoPlayer && run >= WinLength {
			return owner
		}
	}
	return games.NoPlayer
}

var allLines = buildLines()

func lines() [][]cell { return allLines }

// buildLines enumerates columns, rows, and both diagonal directions.
func buildLines() [][]cell {
	var out [][]cell
	for x := 0; x < Width; x++ {
		var l []cell
		for y := 0; y < Height; y++ {
			l = append(l, cell{x, y})
		}
		out = append(out, l)
	}
	for y := 0; y < Height; y++ {
		var l []cell
		for x := 0; x < Width; x++ {
			l = append(l, cell{x, y})
		}
		out = append(out, l)
	}
	// Down-right diagonals start on the top row or left column.
	for s := -(Height - 1); s < Width; s++ {
		var l []cell
		for y := 0; y < Height; y++ {
			if x := s + y; x >= 0 && x < Width {
				l = append(l, cell{x, y})
			}
		}
		if len(l) >= WinLength {
			out = append(out, l)
		}
	}
	// Down-left diagonals.
	for s := 0; s < Width+Height-1; s++ {
		var l []cell
		for y := 0; y < Height; y++ {
			if x := s - y; x >= 0 && x < Width {
				l = append(l, cell{x, y})
			}
		}
		if len(l) >= WinLength {
			out = append(out, l)
		}
	}
	return out
}
