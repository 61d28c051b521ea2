package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/izikdepth/MemeBot/internal/services"
	"github.com/izikdepth/MemeBot/internal/utils"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
)

// GetUser handles GET /users/:id.
func (h *Handlers) GetUser(c *gin.Context) {
	sum, err := h.query.User(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, services.ErrUserNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "user not found")
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeLedger, "failed to load user")
		return
	}
	ok(c, http.StatusOK, sum)
}

// Leaderboard handles GET /leaderboard?date=&limit=&all_time=.
// Without all_time it ranks the day's earners; with it, lifetime balances.
func (h *Handlers) Leaderboard(c *gin.Context) {
	ctx := c.Request.Context()
	limit := utils.ClampLimit(c.Query("limit"), defaultLeaderboardLimit, maxLeaderboardLimit)

	if allTime, _ := strconv.ParseBool(c.Query("all_time")); allTime {
		users, err := h.query.TopBalances(ctx, limit)
		if err != nil {
			fail(c, http.StatusInternalServerError, ErrCodeLedger, "failed to load leaderboard")
			return
		}
		ok(c, http.StatusOK, gin.H{"all_time": true, "users": users})
		return
	}

	date := c.Query("date")
	rows, err := h.query.Leaderboard(ctx, date, limit)
	switch {
	case errors.Is(err, services.ErrInvalidDate):
		fail(c, http.StatusBadRequest, ErrCodeInvalidDate, "date must be YYYY-MM-DD")
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeLedger, "failed to load leaderboard")
		return
	}
	if date == "" {
		date = "today"
	}
	ok(c, http.StatusOK, gin.H{"date": date, "winners": rows})
}

// DailySummary handles GET /daily/:date; "today" is accepted.
func (h *Handlers) DailySummary(c *gin.Context) {
	sum, err := h.query.Daily(c.Request.Context(), c.Param("date"))
	switch {
	case errors.Is(err, services.ErrInvalidDate):
		fail(c, http.StatusBadRequest, ErrCodeInvalidDate, "date must be YYYY-MM-DD")
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeLedger, "failed to load daily summary")
		return
	}
	ok(c, http.StatusOK, sum)
}
