package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/izikdepth/MemeBot/internal/http/middleware"
	"github.com/izikdepth/MemeBot/internal/services"
)

// ReasonOutOfScope reports events from bots or other guilds.
const ReasonOutOfScope = "out_of_scope"

// RecordActivity handles POST /activity.
//
// Every accepted event answers 200 with an Outcome; quota rejections, gated
// rolls and replays are reported with awarded=false so relays never retry
// them. The Idempotency-Key header stands in for a missing event_id.
func (h *Handlers) RecordActivity(c *gin.Context) {
	var ev services.ActivityEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user_id and guild_id are required")
		return
	}
	middleware.SetUserID(c, ev.UserID)
	if ev.EventID == "" {
		if key, ok := middleware.GetIdempotencyKey(c); ok {
			ev.EventID = key
		}
	}

	out, err := h.activity.HandleEvent(c.Request.Context(), ev)
	switch {
	case errors.Is(err, services.ErrOutOfScope):
		ok(c, http.StatusOK, services.Outcome{Reason: ReasonOutOfScope})
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeLedger, "failed to record activity")
		return
	}
	ok(c, http.StatusOK, out)
}
