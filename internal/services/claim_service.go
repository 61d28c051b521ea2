package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/izikdepth/MemeBot/internal/claims"
	"github.com/izikdepth/MemeBot/internal/observability"
	"github.com/izikdepth/MemeBot/internal/repo"
	"github.com/izikdepth/MemeBot/internal/transport"
)

// Origin kinds of a claim submission.
const (
	OriginDM      = "dm"
	OriginChannel = "channel"
)

// base58 alphabet, Solana-style public key length.
var addressRe = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)

// ValidAddress reports whether s looks like a claim address.
func ValidAddress(s string) bool { return addressRe.MatchString(s) }

// Origin is where a claim was submitted from.
type Origin struct {
	Kind      string `json:"kind" binding:"required,oneof=dm channel"`
	ChannelID string `json:"channel_id"`
}

// ClaimRequest is a wallet address submission.
type ClaimRequest struct {
	UserID  string `json:"user_id" binding:"required"`
	Address string `json:"address" binding:"required"`
	Origin  Origin `json:"origin" binding:"required"`
}

// ClaimResult reports a successful submission.
type ClaimResult struct {
	UserID    string   `json:"user_id"`
	Address   string   `json:"address"`
	Resolved  []string `json:"resolved_resources"`
	Unchanged bool     `json:"unchanged,omitempty"`
}

// ClaimService closes the claim loop: it validates the submission, resolves
// the pending resource and stores the address.
type ClaimService struct {
	Ledger         *LedgerService
	Claims         *claims.Manager
	Transport      transport.Transport
	AdminUserID    string
	AllowOverwrite bool
}

// Submit handles one claim submission.
func (s *ClaimService) Submit(ctx context.Context, req ClaimRequest) (*ClaimResult, error) {
	tr := otel.Tracer("services/ClaimService")
	ctx, span := tr.Start(ctx, "Submit",
		trace.WithAttributes(
			attribute.String("user.id", req.UserID),
			attribute.String("origin.kind", req.Origin.Kind),
		),
	)
	defer span.End()

	res, err := s.submit(ctx, req)
	observability.Claims.WithLabelValues(claimOutcome(err)).Inc()
	if err != nil {
		span.RecordError(err)
	}
	return res, err
}

func (s *ClaimService) submit(ctx context.Context, req ClaimRequest) (*ClaimResult, error) {
	addr := strings.TrimSpace(req.Address)
	if !ValidAddress(addr) {
		return nil, ErrInvalidAddress
	}
	db := s.Ledger.DB

	ok, err := repo.IsWinner(ctx, db, req.UserID)
	if err != nil {
		return nil, ledgerErr("winner lookup", err)
	}
	if !ok {
		return nil, ErrUnauthorized
	}

	out := &ClaimResult{UserID: req.UserID, Address: addr}
	owner, err := repo.AddressOwner(ctx, db, addr)
	switch {
	case err == nil && owner != req.UserID:
		return nil, ErrDuplicateAddress
	case err == nil:
		out.Unchanged = true
	case !errors.Is(err, repo.ErrNotFound):
		return nil, ledgerErr("address lookup", err)
	}
	if !out.Unchanged && !s.AllowOverwrite {
		u, err := repo.GetUser(ctx, db, req.UserID)
		if err != nil {
			return nil, ledgerErr("load user", err)
		}
		if u.ClaimAddress != nil && *u.ClaimAddress != "" {
			return nil, ErrAddressLocked
		}
	}

	// The address is stored while the claim entry is still pending; the
	// resource is only torn down once the bind succeeded.
	bind := func() error {
		return s.Ledger.BindAddress(ctx, req.UserID, addr, s.AllowOverwrite)
	}
	switch req.Origin.Kind {
	case OriginDM:
		resolved, err := s.Claims.ResolveUser(ctx, req.UserID, bind)
		if err != nil {
			return nil, err
		}
		for _, r := range resolved {
			out.Resolved = append(out.Resolved, r.ID)
		}
	case OriginChannel:
		r, err := s.Claims.Resolve(ctx, req.Origin.ChannelID, req.UserID, bind)
		if err != nil {
			return nil, err
		}
		out.Resolved = append(out.Resolved, r.ID)
	default:
		return nil, ErrResourceMismatch
	}
	observability.PendingClaims.Set(float64(len(s.Claims.Pending())))

	log.Info().
		Str("component", "claims").
		Str("user_id", req.UserID).
		Str("origin", req.Origin.Kind).
		Bool("unchanged", out.Unchanged).
		Msg("claim address submitted")

	if s.AdminUserID != "" && !out.Unchanged && s.Transport != nil {
		text := fmt.Sprintf("User %s submitted claim address %s", req.UserID, addr)
		if _, err := s.Transport.DeliverDirectMessage(ctx, s.AdminUserID, text); err != nil {
			log.Warn().Err(err).Str("component", "claims").Msg("admin notification failed")
		}
	}
	return out, nil
}

func claimOutcome(err error) string {
	switch {
	case err == nil:
		return "submitted"
	case errors.Is(err, ErrInvalidAddress):
		return "invalid"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrDuplicateAddress), errors.Is(err, ErrAddressLocked):
		return "conflict"
	case errors.Is(err, ErrResourceMismatch):
		return "mismatch"
	case errors.Is(err, ErrClaimWindowClosed):
		return "window_closed"
	default:
		return "error"
	}
}
