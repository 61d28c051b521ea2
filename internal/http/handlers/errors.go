// Package handlers exposes the ledger, claim, game and query services over
// HTTP. Every error response carries one of the codes below; clients branch
// on the code, not on the message.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "claim_window_closed",
//	  "message": "the claim window for this resource has closed"
//	}
package handlers

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Claims.
	ErrCodeInvalidAddress    = "invalid_address"
	ErrCodeNotAWinner        = "not_a_winner"
	ErrCodeDuplicateAddress  = "duplicate_address"
	ErrCodeAddressLocked     = "address_locked"
	ErrCodeResourceMismatch  = "resource_mismatch"
	ErrCodeClaimWindowClosed = "claim_window_closed"

	// Games.
	ErrCodeGameNotFound = "game_not_found"
	ErrCodeGameExists   = "game_exists"
	ErrCodeNotAPlayer   = "not_a_player"
	ErrCodeNotYourTurn  = "not_your_turn"
	ErrCodeGameOver     = "game_over"
	ErrCodeGameTimedOut = "game_timed_out"
	ErrCodeIllegalMove  = "illegal_move"
	ErrCodeCooldown     = "cooldown"

	// Ledger.
	ErrCodeLedger      = "ledger_failure"
	ErrCodeInvalidDate = "invalid_date"
)
