// Package tictactoe implements 3x3 noughts and crosses. Cells hold -1 for X
// (player one, moves first) and +1 for O, so a completed line sums to -3 or +3.
package tictactoe

import (
	"errors"

	"github.com/izikdepth/MemeBot/internal/games"
)

const Size = 3

// Cell marks.
const (
	Empty = 0
	X     = -1
	O     = 1
)

var (
	ErrCellTaken   = errors.New("cell already taken")
	ErrInvalidCell = errors.New("cell out of range")
)

// Game is a single TicTacToe board.
type Game struct {
	board     [Size][Size]int
	turns     int
	forfeiter games.Player
}

// New returns an empty board with X to move.
func New() *Game { return &Game{} }

// Turn returns the player expected to move next.
func (g *Game) Turn() games.Player {
	if g.turns%2 == 0 {
		return games.PlayerOne
	}
	return games.PlayerTwo
}

// Mark returns the cell value used by p.
func Mark(p games.Player) int {
	if p == games.PlayerOne {
		return X
	}
	return O
}

// Move places the current player's mark at (row, col).
func (g *Game) Move(row, col int) error {
	if g.Result().Over() {
		return games.ErrGameOver
	}
	if row < 0 || row >= Size || col < 0 || col >= Size {
		return ErrInvalidCell
	}
	if g.board[row][col] != Empty {
		return ErrCellTaken
	}
	g.board[row][col] = Mark(g.Turn())
	g.turns++
	return nil
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

// Board returns a copy of the cells.
func (g *Game) Board() [Size][Size]int { return g.board }

// Result evaluates the board.
func (g *Game) Result() games.Result {
	if g.forfeiter != games.NoPlayer {
		return games.Result{State: games.Forfeit, Winner: g.forfeiter.Other(), Forfeiter: g.forfeiter}
	}
	for _, sum := range g.lineSums() {
		switch sum {
		case Size * X:
			return games.Result{State: games.PlayerWin, Winner: games.PlayerOne}
		case Size * O:
			return games.Result{State: games.PlayerWin, Winner: games.PlayerTwo}
		}
	}
	if g.turns >= Size*Size {
		return games.Result{State: games.Tie}
	}
	return games.Result{State: games.InProgress}
}

func (g *Game) lineSums() []int {
	sums := make([]int, 0, 2*Size+2)
	var diag, anti int
	for i := 0; i < Size; i++ {
		var row, col int
		for j := 0; j < Size; j++ {
			row += g.board[i][j]
			col += g.board[j][i]
		}
		sums = append(sums, row, col)
		diag += g.board[i][i]
		anti += g.board[i][Size-1-i]
	}
	return append(sums, diag, anti)
}
