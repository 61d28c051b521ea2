package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/izikdepth/MemeBot/internal/games"
	"github.com/izikdepth/MemeBot/internal/games/connect4"
	"github.com/izikdepth/MemeBot/internal/games/tictactoe"
	"github.com/izikdepth/MemeBot/internal/http/middleware"
	"github.com/izikdepth/MemeBot/internal/services"
)

//
// DTOs
//

// StartGameRequest opens a session. ID is optional; the chat surface may pass
// its thread id so moves can be routed without a lookup.
type StartGameRequest struct {
	ID         string `json:"id"`
	Challenger string `json:"challenger" binding:"required"`
	Opponent   string `json:"opponent" binding:"required"`
}

// Connect4MoveRequest drops a piece. Column is zero-based.
type Connect4MoveRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Column *int   `json:"column" binding:"required"`
}

// TicTacToeMoveRequest marks a cell. Row and Col are zero-based.
type TicTacToeMoveRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Row    *int   `json:"row" binding:"required"`
	Col    *int   `json:"col" binding:"required"`
}

// ForfeitRequest concedes a session.
type ForfeitRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

//
// Handlers
//

// StartConnect4 handles POST /games/connect4.
func (h *Handlers) StartConnect4(c *gin.Context) {
	h.startGame(c, h.games.StartConnect4)
}

// StartTicTacToe handles POST /games/tictactoe.
func (h *Handlers) StartTicTacToe(c *gin.Context) {
	h.startGame(c, h.games.StartTicTacToe)
}

type startFunc func(ctx context.Context, id, challenger, opponent string) (*services.SessionView, error)

func (h *Handlers) startGame(c *gin.Context, start startFunc) {
	var req StartGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "challenger and opponent are required")
		return
	}
	middleware.SetUserID(c, req.Challenger)

	v, err := start(c.Request.Context(), strings.TrimSpace(req.ID), req.Challenger, req.Opponent)
	if err != nil {
		gameFail(c, err)
		return
	}
	ok(c, http.StatusCreated, v)
}

// MoveConnect4 handles POST /games/connect4/:id/moves.
func (h *Handlers) MoveConnect4(c *gin.Context) {
	var req Connect4MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user_id and column are required")
		return
	}
	middleware.SetUserID(c, req.UserID)

	v, err := h.games.MoveConnect4(c.Request.Context(), c.Param("id"), req.UserID, *req.Column)
	if err != nil {
		gameFail(c, err)
		return
	}
	ok(c, http.StatusOK, v)
}

// MoveTicTacToe handles POST /games/tictactoe/:id/moves.
func (h *Handlers) MoveTicTacToe(c *gin.Context) {
	var req TicTacToeMoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user_id, row and col are required")
		return
	}
	middleware.SetUserID(c, req.UserID)

	v, err := h.games.MoveTicTacToe(c.Request.Context(), c.Param("id"), req.UserID, *req.Row, *req.Col)
	if err != nil {
		gameFail(c, err)
		return
	}
	ok(c, http.StatusOK, v)
}

// ForfeitGame handles POST /games/:id/forfeit.
func (h *Handlers) ForfeitGame(c *gin.Context) {
	var req ForfeitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user_id is required")
		return
	}
	middleware.SetUserID(c, req.UserID)

	v, err := h.games.Forfeit(c.Request.Context(), c.Param("id"), req.UserID)
	if err != nil {
		gameFail(c, err)
		return
	}
	ok(c, http.StatusOK, v)
}

// GetGame handles GET /games/:id.
func (h *Handlers) GetGame(c *gin.Context) {
	v, err := h.games.Get(c.Param("id"))
	if err != nil {
		gameFail(c, err)
		return
	}
	ok(c, http.StatusOK, v)
}

func gameFail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrSessionNotFound):
		fail(c, http.StatusNotFound, ErrCodeGameNotFound, "game not found")
	case errors.Is(err, services.ErrSessionExists):
		fail(c, http.StatusConflict, ErrCodeGameExists, "a game with this id is still in progress")
	case errors.Is(err, services.ErrNotAPlayer):
		fail(c, http.StatusForbidden, ErrCodeNotAPlayer, "you are not playing in this game")
	case errors.Is(err, services.ErrNotYourTurn):
		fail(c, http.StatusConflict, ErrCodeNotYourTurn, "it is not your turn")
	case errors.Is(err, services.ErrGameTimedOut):
		fail(c, http.StatusConflict, ErrCodeGameTimedOut, "the game timed out and was forfeited")
	case errors.Is(err, games.ErrGameOver):
		fail(c, http.StatusConflict, ErrCodeGameOver, "the game is already over")
	case errors.Is(err, services.ErrSamePlayer):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "you cannot play against yourself")
	case errors.Is(err, services.ErrCooldown):
		fail(c, http.StatusTooManyRequests, ErrCodeCooldown, "please wait before starting another game")
	case errors.Is(err, connect4.ErrColumnFull), errors.Is(err, tictactoe.ErrCellTaken):
		fail(c, http.StatusConflict, ErrCodeIllegalMove, err.Error())
	case errors.Is(err, connect4.ErrInvalidColumn), errors.Is(err, tictactoe.ErrInvalidCell):
		fail(c, http.StatusBadRequest, ErrCodeIllegalMove, err.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "game failure")
	}
}
