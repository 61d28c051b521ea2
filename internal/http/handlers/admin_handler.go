package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// RunRefresh handles POST /admin/refresh: one winner-selection cycle now.
// Cycles are serialized with the scheduled job, so this may wait for a
// running cycle to finish. A client that disconnects does not cut the cycle
// short.
func (h *Handlers) RunRefresh(c *gin.Context) {
	rep, err := h.refresh.RunCycle(context.WithoutCancel(c.Request.Context()))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "refresh cycle failed")
		return
	}
	ok(c, http.StatusOK, rep)
}

// RunReminder handles POST /admin/remind.
func (h *Handlers) RunReminder(c *gin.Context) {
	n, err := h.reminder.Run(context.WithoutCancel(c.Request.Context()))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "reminder failed")
		return
	}
	ok(c, http.StatusOK, gin.H{"reminded": n})
}
