package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/izikdepth/MemeBot/internal/claims"
	"github.com/izikdepth/MemeBot/internal/config"
	"github.com/izikdepth/MemeBot/internal/observability"
	"github.com/izikdepth/MemeBot/internal/repo"
	"github.com/izikdepth/MemeBot/internal/transport"
)

// RoomPrefix labels fallback claim rooms.
const RoomPrefix = "wallet"

// RefreshConfig controls winner selection.
type RefreshConfig struct {
	Mode              string // config.RefreshModeRanked or config.RefreshModeContinuous
	TopN              int
	MaxUserPoints     int64
	ClaimWindow       time.Duration
	PromotionReaction string
}

// CycleReport summarizes one refresh cycle.
type CycleReport struct {
	Date       string   `json:"date"`
	Candidates int      `json:"candidates"`
	Promoted   []string `json:"promoted"`
	Rooms      []string `json:"fallback_rooms"`
	Skipped    []string `json:"skipped"`
	Failed     []string `json:"failed"`
}

// RefreshService promotes active users into the claim workflow.
type RefreshService struct {
	Ledger    *LedgerService
	Transport transport.Transport
	Claims    *claims.Manager
	Acc       *Accumulator
	Cfg       RefreshConfig

	printer *message.Printer
	runMu   sync.Mutex
}

// NewRefreshService wires a refresh service with an English number printer.
func NewRefreshService(l *LedgerService, t transport.Transport, m *claims.Manager, acc *Accumulator, cfg RefreshConfig) *RefreshService {
	return &RefreshService{
		Ledger:    l,
		Transport: t,
		Claims:    m,
		Acc:       acc,
		Cfg:       cfg,
		printer:   message.NewPrinter(language.English),
	}
}

// RunCycle selects candidates from the accumulated activity, notifies each
// one (DM first, private room when the DM is refused), marks the promotion
// and registers the claim timer. The processed snapshot is then subtracted
// from the accumulator. When ctx ends mid-cycle, candidates that were never
// attempted keep their activity for the next cycle.
func (s *RefreshService) RunCycle(ctx context.Context) (*CycleReport, error) {
	tr := otel.Tracer("services/RefreshService")
	ctx, span := tr.Start(ctx, "RunCycle")
	defer span.End()

	s.runMu.Lock()
	defer s.runMu.Unlock()

	rep := &CycleReport{Date: s.Ledger.Today()}
	snap := s.Acc.Snapshot()
	if len(snap) == 0 {
		return rep, nil
	}

	candidates, err := s.candidates(ctx, snap)
	if err != nil {
		return nil, err
	}
	rep.Candidates = len(candidates)
	span.SetAttributes(attribute.Int("refresh.candidates", len(candidates)))

	var deferred []UserActivity
	for i, c := range candidates {
		if ctx.Err() != nil {
			deferred = append(deferred, candidates[i:]...)
			break
		}
		done, err := s.Ledger.AlreadyPromoted(ctx, rep.Date, c.UserID)
		if err != nil {
			if ctx.Err() != nil {
				deferred = append(deferred, c)
				continue
			}
			rep.Failed = append(rep.Failed, c.UserID)
			continue
		}
		if done {
			rep.Skipped = append(rep.Skipped, c.UserID)
			continue
		}
		res, err := s.promote(ctx, c)
		if err != nil {
			if ctx.Err() != nil {
				deferred = append(deferred, c)
				continue
			}
			log.Error().Err(err).Str("component", "refresh").Str("user_id", c.UserID).Msg("promotion failed")
			rep.Failed = append(rep.Failed, c.UserID)
			continue
		}
		rep.Promoted = append(rep.Promoted, c.UserID)
		if res.Kind == claims.KindRoom {
			rep.Rooms = append(rep.Rooms, res.ID)
		}
	}

	if len(deferred) > 0 {
		snap = withoutUsers(snap, deferred)
		log.Warn().Str("component", "refresh").Int("deferred", len(deferred)).Msg("refresh cycle interrupted")
	}
	s.Acc.Commit(snap)
	observability.PendingClaims.Set(float64(len(s.Claims.Pending())))

	log.Info().
		Str("component", "refresh").
		Str("date", rep.Date).
		Int("candidates", rep.Candidates).
		Int("promoted", len(rep.Promoted)).
		Int("rooms", len(rep.Rooms)).
		Int("skipped", len(rep.Skipped)).
		Int("failed", len(rep.Failed)).
		Msg("refresh cycle finished")
	return rep, nil
}

func withoutUsers(snap, drop []UserActivity) []UserActivity {
	skip := make(map[string]struct{}, len(drop))
	for _, d := range drop {
		skip[d.UserID] = struct{}{}
	}
	out := make([]UserActivity, 0, len(snap))
	for _, u := range snap {
		if _, ok := skip[u.UserID]; !ok {
			out = append(out, u)
		}
	}
	return out
}

func (s *RefreshService) candidates(ctx context.Context, snap []UserActivity) ([]UserActivity, error) {
	if s.Cfg.Mode == config.RefreshModeRanked {
		out := make([]UserActivity, 0, s.Cfg.TopN)
		for _, u := range snap {
			if len(out) == s.Cfg.TopN {
				break
			}
			if u.Events > 0 {
				out = append(out, u)
			}
		}
		return out, nil
	}

	var out []UserActivity
	for _, u := range snap {
		if u.Points <= 0 {
			continue
		}
		if s.Cfg.MaxUserPoints > 0 {
			acct, err := repo.GetUser(ctx, s.Ledger.DB, u.UserID)
			if err != nil && !errors.Is(err, repo.ErrNotFound) {
				return nil, ledgerErr("load user", err)
			}
			if acct != nil && acct.Points >= s.Cfg.MaxUserPoints {
				continue
			}
		}
		out = append(out, u)
	}
	return out, nil
}

func (s *RefreshService) promote(ctx context.Context, c UserActivity) (claims.Resource, error) {
	text := s.notice(c)

	res := claims.Resource{UserID: c.UserID, Kind: claims.KindDM}
	ref, err := s.Transport.DeliverDirectMessage(ctx, c.UserID, text)
	switch {
	case err == nil:
		res.ID = ref.ChannelID
		res.Message = ref
	case errors.Is(err, transport.ErrUnreachable):
		room, err := s.Transport.OpenPrivateResource(ctx, c.UserID, transport.RoomLabel(RoomPrefix, c.UserID))
		if err != nil {
			return res, fmt.Errorf("open claim room: %w", err)
		}
		res = claims.Resource{ID: room, UserID: c.UserID, Kind: claims.KindRoom}
		if res.Message, err = s.Transport.SendToChannel(ctx, room, text); err != nil {
			if derr := s.Transport.DeleteResource(ctx, room); derr != nil {
				log.Warn().Err(derr).Str("component", "refresh").Str("channel_id", room).Msg("room cleanup failed")
			}
			return res, fmt.Errorf("post claim notice: %w", err)
		}
	default:
		return res, fmt.Errorf("deliver dm: %w", err)
	}

	if _, err := s.Ledger.Promote(ctx, c.UserID); err != nil {
		// Nothing will ever resolve a notice the ledger does not know about.
		if derr := claims.TransportTeardown(s.Transport)(context.WithoutCancel(ctx), res); derr != nil {
			log.Warn().Err(derr).Str("component", "refresh").Str("resource_id", res.ID).Msg("notice cleanup failed")
		}
		return res, err
	}
	s.Claims.Register(res, s.Cfg.ClaimWindow)
	observability.Promotions.WithLabelValues(string(res.Kind)).Inc()

	if s.Cfg.PromotionReaction != "" && !c.LastMessage.IsZero() {
		if err := s.Transport.ReactToMessage(ctx, c.LastMessage, s.Cfg.PromotionReaction); err != nil {
			log.Warn().Err(err).Str("component", "refresh").Str("user_id", c.UserID).Msg("promotion reaction failed")
		}
	}
	return res, nil
}

func (s *RefreshService) notice(c UserActivity) string {
	p := s.printer
	if p == nil {
		p = message.NewPrinter(language.English)
	}
	return p.Sprintf(
		"Congratulations! You earned %d points this round. Reply with your wallet address within %s to claim them.",
		c.Points, windowText(s.Cfg.ClaimWindow),
	)
}

func windowText(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	case d >= time.Minute && d%time.Minute == 0:
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	default:
		return d.String()
	}
}
