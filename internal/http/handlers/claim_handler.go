package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/izikdepth/MemeBot/internal/http/middleware"
	"github.com/izikdepth/MemeBot/internal/services"
)

// SubmitClaim handles POST /claims.
//
//	400 invalid_address | bad_request
//	403 not_a_winner | resource_mismatch
//	409 duplicate_address | address_locked
//	410 claim_window_closed
func (h *Handlers) SubmitClaim(c *gin.Context) {
	var req services.ClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user_id, address and origin.kind (dm|channel) are required")
		return
	}
	req.Address = strings.TrimSpace(req.Address)
	middleware.SetUserID(c, req.UserID)

	res, err := h.claims.Submit(c.Request.Context(), req)
	if err != nil {
		status, code, msg := claimError(err)
		fail(c, status, code, msg)
		return
	}
	ok(c, http.StatusOK, res)
}

func claimError(err error) (int, string, string) {
	switch {
	case errors.Is(err, services.ErrInvalidAddress):
		return http.StatusBadRequest, ErrCodeInvalidAddress, "that does not look like a valid wallet address"
	case errors.Is(err, services.ErrUnauthorized):
		return http.StatusForbidden, ErrCodeNotAWinner, "only winners can submit a wallet address"
	case errors.Is(err, services.ErrResourceMismatch):
		return http.StatusForbidden, ErrCodeResourceMismatch, "submit your address in your DM or your private claim room"
	case errors.Is(err, services.ErrDuplicateAddress):
		return http.StatusConflict, ErrCodeDuplicateAddress, "this address is already registered by another user"
	case errors.Is(err, services.ErrAddressLocked):
		return http.StatusConflict, ErrCodeAddressLocked, "you have already submitted a wallet address"
	case errors.Is(err, services.ErrClaimWindowClosed):
		return http.StatusGone, ErrCodeClaimWindowClosed, "the claim window for this resource has closed"
	}
	return http.StatusInternalServerError, ErrCodeLedger, "failed to store claim"
}
