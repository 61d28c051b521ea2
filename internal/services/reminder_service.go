package services

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/izikdepth/MemeBot/internal/repo"
	"github.com/izikdepth/MemeBot/internal/transport"
)

// maxMentions caps the names listed in one reminder post.
const maxMentions = 50

// ReminderService nags winners that never submitted a claim address.
type ReminderService struct {
	Ledger    *LedgerService
	Transport transport.Transport
	ChannelID string
}

// Run posts one reminder listing winners without an address and returns how
// many were found. Nothing is posted when everyone is set.
func (s *ReminderService) Run(ctx context.Context) (int, error) {
	pending, err := repo.WinnersMissingClaimAddress(ctx, s.Ledger.DB)
	if err != nil {
		return 0, ledgerErr("missing addresses", err)
	}
	if len(pending) == 0 || s.ChannelID == "" {
		return len(pending), nil
	}

	if _, err := s.Transport.SendToChannel(ctx, s.ChannelID, reminderText(pending)); err != nil {
		return len(pending), err
	}
	log.Info().Str("component", "reminder").Int("users", len(pending)).Msg("wallet reminder posted")
	return len(pending), nil
}

func reminderText(ids []string) string {
	p := message.NewPrinter(language.English)
	shown := ids
	if len(shown) > maxMentions {
		shown = shown[:maxMentions]
	}
	mentions := make([]string, len(shown))
	for i, id := range shown {
		mentions[i] = "<@" + id + ">"
	}
	var b strings.Builder
	b.WriteString(p.Sprintf("Reminder: %d winners still need to submit a wallet address. ", len(ids)))
	b.WriteString("DM me your address to claim your points. ")
	b.WriteString(strings.Join(mentions, " "))
	if extra := len(ids) - len(shown); extra > 0 {
		b.WriteString(p.Sprintf(" and %d more", extra))
	}
	return b.String()
}
