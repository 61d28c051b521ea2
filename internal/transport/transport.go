// Package transport defines the outbound chat surface the ledger relies on:
// direct messages, private rooms, channel posts and reactions. The concrete
// platform sits behind a gateway service reached over HTTP (see Gateway);
// LogTransport is a stand-in for local runs without a gateway.
package transport

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/gosimple/slug"
	"github.com/rs/zerolog/log"
)

// ErrUnreachable means the user cannot receive direct messages (privacy
// settings, blocked bot). Callers fall back to a private room.
var ErrUnreachable = errors.New("recipient unreachable by direct message")

// MessageRef locates a posted message.
type MessageRef struct {
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
}

// IsZero reports whether the ref points nowhere.
func (m MessageRef) IsZero() bool { return m.ChannelID == "" || m.MessageID == "" }

// Transport is the chat platform as seen by the ledger.
type Transport interface {
	// DeliverDirectMessage sends text to the user's DMs. Returns ErrUnreachable
	// when the platform refuses delivery.
	DeliverDirectMessage(ctx context.Context, userID, text string) (MessageRef, error)
	// OpenPrivateResource creates a room visible only to the user and staff
	// and returns its channel id.
	OpenPrivateResource(ctx context.Context, userID, label string) (string, error)
	// SendToChannel posts text into a channel or room.
	SendToChannel(ctx context.Context, channelID, text string) (MessageRef, error)
	// DeleteResource removes a private room. Deleting a missing room succeeds.
	DeleteResource(ctx context.Context, channelID string) error
	// ReactToMessage adds an emoji reaction.
	ReactToMessage(ctx context.Context, msg MessageRef, symbol string) error
	// DeleteMessage removes a message. Deleting a missing message succeeds.
	DeleteMessage(ctx context.Context, msg MessageRef) error
}

// RoomLabel builds a platform-safe room name such as "wallet-1234".
func RoomLabel(prefix, userID string) string {
	return slug.Make(prefix + "-" + userID)
}

// LogTransport records every call in the log and pretends it succeeded.
type LogTransport struct {
	seq atomic.Uint64
}

func (t *LogTransport) next() string { return fmt.Sprintf("local-%d", t.seq.Add(1)) }

func (t *LogTransport) DeliverDirectMessage(_ context.Context, userID, text string) (MessageRef, error) {
	ref := MessageRef{ChannelID: "dm-" + userID, MessageID: t.next()}
	log.Info().Str("component", "transport").Str("user_id", userID).Str("text", text).Msg("dm")
	return ref, nil
}

func (t *LogTransport) OpenPrivateResource(_ context.Context, userID, label string) (string, error) {
	id := label + "-" + t.next()
	log.Info().Str("component", "transport").Str("user_id", userID).Str("channel_id", id).Msg("room opened")
	return id, nil
}

func (t *LogTransport) SendToChannel(_ context.Context, channelID, text string) (MessageRef, error) {
	log.Info().Str("component", "transport").Str("channel_id", channelID).Str("text", text).Msg("post")
	return MessageRef{ChannelID: channelID, MessageID: t.next()}, nil
}

func (t *LogTransport) DeleteResource(_ context.Context, channelID string) error {
	log.Info().Str("component", "transport").Str("channel_id", channelID).Msg("room deleted")
	return nil
}

func (t *LogTransport) ReactToMessage(_ context.Context, msg MessageRef, symbol string) error {
	log.Debug().Str("component", "transport").Str("message_id", msg.MessageID).Str("symbol", symbol).Msg("react")
	return nil
}

func (t *LogTransport) DeleteMessage(_ context.Context, msg MessageRef) error {
	log.Info().Str("component", "transport").Str("message_id", msg.MessageID).Msg("message deleted")
	return nil
}
