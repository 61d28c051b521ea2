package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// StatusError is a non-2xx reply from the gateway.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gateway returned status %d: %s", e.Code, e.Body)
}

// Gateway talks to the chat gateway over JSON/HTTP. Transient failures
// (network errors, 429, 5xx) are retried with exponential backoff.
type Gateway struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	// MaxTries bounds attempts per call, including the first.
	MaxTries uint
	// RetryInitial is the first backoff interval.
	RetryInitial time.Duration
}

// NewGateway returns a client with the given base URL, service token and
// per-request timeout.
func NewGateway(baseURL, token string, timeout time.Duration) *Gateway {
	return &Gateway{
		BaseURL:      baseURL,
		Token:        token,
		HTTPClient:   &http.Client{Timeout: timeout},
		MaxTries:     3,
		RetryInitial: 250 * time.Millisecond,
	}
}

var _ Transport = (*Gateway)(nil)

func (g *Gateway) DeliverDirectMessage(ctx context.Context, userID, text string) (MessageRef, error) {
	var out MessageRef
	err := g.do(ctx, http.MethodPost, "/v1/dm", map[string]string{"user_id": userID, "text": text}, &out)
	var se *StatusError
	if errors.As(err, &se) && (se.Code == http.StatusForbidden || se.Code == http.StatusGone) {
		return MessageRef{}, fmt.Errorf("%w: %v", ErrUnreachable, se)
	}
	return out, err
}

func (g *Gateway) OpenPrivateResource(ctx context.Context, userID, label string) (string, error) {
	var out struct {
		ChannelID string `json:"channel_id"`
	}
	if err := g.do(ctx, http.MethodPost, "/v1/rooms", map[string]string{"user_id": userID, "label": label}, &out); err != nil {
		return "", err
	}
	if out.ChannelID == "" {
		return "", errors.New("gateway returned an empty room id")
	}
	return out.ChannelID, nil
}

func (g *Gateway) SendToChannel(ctx context.Context, channelID, text string) (MessageRef, error) {
	var out MessageRef
	err := g.do(ctx, http.MethodPost, "/v1/channels/"+url.PathEscape(channelID)+"/messages", map[string]string{"text": text}, &out)
	return out, err
}

func (g *Gateway) DeleteResource(ctx context.Context, channelID string) error {
	return ignoreNotFound(g.do(ctx, http.MethodDelete, "/v1/rooms/"+url.PathEscape(channelID), nil, nil))
}

func (g *Gateway) ReactToMessage(ctx context.Context, msg MessageRef, symbol string) error {
	return g.do(ctx, http.MethodPut, messagePath(msg)+"/reactions", map[string]string{"symbol": symbol}, nil)
}

func (g *Gateway) DeleteMessage(ctx context.Context, msg MessageRef) error {
	return ignoreNotFound(g.do(ctx, http.MethodDelete, messagePath(msg), nil, nil))
}

func messagePath(msg MessageRef) string {
	return "/v1/channels/" + url.PathEscape(msg.ChannelID) + "/messages/" + url.PathEscape(msg.MessageID)
}

func ignoreNotFound(err error) error {
	var se *StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		return nil
	}
	return err
}

func (g *Gateway) do(ctx context.Context, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode gateway request: %w", err)
		}
		payload = b
	}

	op := func() (struct{}, error) {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, g.BaseURL+path, body)
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("X-Service-Token", g.Token)

		resp, err := g.HTTPClient.Do(req)
		if err != nil {
			return struct{}{}, fmt.Errorf("call gateway: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			se := &StatusError{Code: resp.StatusCode, Body: string(bytes.TrimSpace(snippet))}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return struct{}{}, se
			}
			return struct{}{}, backoff.Permanent(se)
		}
		if out != nil && resp.StatusCode != http.StatusNoContent {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return struct{}{}, backoff.Permanent(fmt.Errorf("decode gateway response: %w", err))
			}
		}
		return struct{}{}, nil
	}

	b := backoff.NewExponentialBackOff()
	if g.RetryInitial > 0 {
		b.InitialInterval = g.RetryInitial
	}
	tries := g.MaxTries
	if tries == 0 {
		tries = 1
	}
	_, err := backoff.Retry(ctx, op, backoff.WithBackOff(b), backoff.WithMaxTries(tries))
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}
