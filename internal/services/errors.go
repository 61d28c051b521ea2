// Package services defines the ledger, activity, refresh, claim and game
// logic. This file centralizes the service-level error values so that they
// can be consistently returned by service methods and checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import (
	"errors"
	"fmt"

	"github.com/izikdepth/MemeBot/internal/claims"
)

// Ledger errors.
var (
	// ErrQuotaExceeded is returned when a per-user or global cap blocks an
	// award. Callers drop it silently; use errors.As with *QuotaError to
	// learn which cap was hit.
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrLedger wraps storage failures on the award and claim paths. The
	// surrounding transaction has been rolled back.
	ErrLedger = errors.New("ledger storage failure")

	// ErrOutOfScope is returned for events from bots or from a guild other
	// than the configured one.
	ErrOutOfScope = errors.New("event out of scope")
)

// Claim errors.
var (
	// ErrUnauthorized means the user never appeared in the winners table.
	ErrUnauthorized = errors.New("not a winner")

	// ErrDuplicateAddress means the address is bound to another user.
	ErrDuplicateAddress = errors.New("address already bound to another user")

	// ErrAddressLocked means the user already submitted a different address
	// and overwriting is disabled.
	ErrAddressLocked = errors.New("claim address already set")

	// ErrInvalidAddress rejects malformed claim addresses.
	ErrInvalidAddress = errors.New("invalid claim address")

	// ErrResourceMismatch and ErrClaimWindowClosed come from the claim timer
	// table and are re-exported for handlers.
	ErrResourceMismatch  = claims.ErrResourceMismatch
	ErrClaimWindowClosed = claims.ErrClaimWindowClosed
)

// Game errors.
var (
	ErrSessionNotFound = errors.New("game session not found")
	ErrSessionExists   = errors.New("game session already in progress")
	ErrNotYourTurn     = errors.New("not your turn")
	ErrNotAPlayer      = errors.New("not a player in this game")
	ErrGameTimedOut    = errors.New("game timed out")
	ErrSamePlayer      = errors.New("cannot play against yourself")
	ErrCooldown        = errors.New("game start cooldown active")
)

// Quota scopes.
const (
	ScopeUser      = "user"       // lifetime per-user cap
	ScopeUserDaily = "user_daily" // per-user daily cap
	ScopeGlobal    = "global"     // per-source daily distribution limit
)

// QuotaError names the cap that blocked an award.
type QuotaError struct {
	Scope string
}

func (e *QuotaError) Error() string { return fmt.Sprintf("quota exceeded: %s cap", e.Scope) }

// Unwrap lets errors.Is(err, ErrQuotaExceeded) match.
func (e *QuotaError) Unwrap() error { return ErrQuotaExceeded }

func quota(scope string) error { return &QuotaError{Scope: scope} }

func ledgerErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrLedger, op, err)
}
