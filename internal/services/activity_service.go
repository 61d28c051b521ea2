package services

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/izikdepth/MemeBot/internal/domain"
	"github.com/izikdepth/MemeBot/internal/transport"
)

// ActivityEvent is one chat message relayed by the gateway.
type ActivityEvent struct {
	UserID    string    `json:"user_id" binding:"required"`
	GuildID   string    `json:"guild_id" binding:"required"`
	ChannelID string    `json:"channel_id"`
	MessageID string    `json:"message_id"`
	EventID   string    `json:"event_id"`
	Timestamp time.Time `json:"timestamp"`
	Bot       bool      `json:"bot"`
}

func (e ActivityEvent) message() transport.MessageRef {
	return transport.MessageRef{ChannelID: e.ChannelID, MessageID: e.MessageID}
}

// Outcome reasons.
const (
	ReasonAwarded   = "awarded"
	ReasonGated     = "gated"
	ReasonQuota     = "quota_exceeded"
	ReasonDuplicate = "duplicate"
)

// Outcome is the result of one activity event.
type Outcome struct {
	Awarded    bool   `json:"awarded"`
	Duplicate  bool   `json:"duplicate,omitempty"`
	Reason     string `json:"reason"`
	QuotaScope string `json:"quota_scope,omitempty"`
	Granted    int64  `json:"granted"`
	UserTotal  int64  `json:"user_total,omitempty"`
	DailyTotal int64  `json:"daily_total,omitempty"`
}

// ActivityConfig holds the chat quota settings.
type ActivityConfig struct {
	GuildID          string
	PointsPerMessage int64
	MaxUserPoints    int64
	MaxDailyPoints   int64
	DailyLimit       int64
	OneInN           int
	Reaction         string
}

// ActivityService turns chat events into ledger credit.
type ActivityService struct {
	Ledger    *LedgerService
	Transport transport.Transport
	Acc       *Accumulator
	Cfg       ActivityConfig

	// Roll returns a value in [0, n). Defaults to math/rand/v2.
	Roll func(n int) int
}

// HandleEvent applies the chat quotas to ev. Quota rejections are reported
// in the Outcome, not as errors; ErrOutOfScope and ErrLedger are returned.
func (s *ActivityService) HandleEvent(ctx context.Context, ev ActivityEvent) (*Outcome, error) {
	tr := otel.Tracer("services/ActivityService")
	ctx, span := tr.Start(ctx, "HandleEvent",
		trace.WithAttributes(
			attribute.String("user.id", ev.UserID),
			attribute.String("event.id", ev.EventID),
		),
	)
	defer span.End()

	if ev.Bot || ev.UserID == "" || ev.GuildID != s.Cfg.GuildID {
		return nil, ErrOutOfScope
	}

	if s.Cfg.OneInN > 1 && s.roll(s.Cfg.OneInN) != 0 {
		s.Acc.Touch(ev.UserID, ev.message())
		return &Outcome{Reason: ReasonGated}, nil
	}

	res, err := s.Ledger.Award(ctx, AwardRequest{
		UserID:         ev.UserID,
		Source:         domain.SourceChat,
		Amount:         s.Cfg.PointsPerMessage,
		UserCap:        s.Cfg.MaxUserPoints,
		DailyUserCap:   s.Cfg.MaxDailyPoints,
		GlobalCap:      s.Cfg.DailyLimit,
		IdempotencyKey: ev.EventID,
	})
	var qe *QuotaError
	switch {
	case errors.As(err, &qe):
		s.Acc.Touch(ev.UserID, ev.message())
		return &Outcome{Reason: ReasonQuota, QuotaScope: qe.Scope}, nil
	case err != nil:
		return nil, err
	case res.Duplicate:
		return &Outcome{Duplicate: true, Reason: ReasonDuplicate}, nil
	}

	s.Acc.Touch(ev.UserID, ev.message())
	s.Acc.AddPoints(ev.UserID, res.Granted)

	if s.Transport != nil && s.Cfg.Reaction != "" && ev.MessageID != "" {
		if err := s.Transport.ReactToMessage(ctx, ev.message(), s.Cfg.Reaction); err != nil {
			log.Warn().Err(err).Str("component", "activity").Str("message_id", ev.MessageID).Msg("award reaction failed")
		}
	}

	return &Outcome{
		Awarded:    true,
		Reason:     ReasonAwarded,
		Granted:    res.Granted,
		UserTotal:  res.UserTotal,
		DailyTotal: res.DailyTotal,
	}, nil
}

func (s *ActivityService) roll(n int) int {
	if s.Roll != nil {
		return s.Roll(n)
	}
	return rand.IntN(n)
}
