// Package notify pushes trade and agent events to Telegram. A notifier with
// no token configured is a silent no-op, so callers never need nil checks.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

const telegramBaseURL = "https://api.telegram.org"

// Telegram sends messages through the bot API.
type Telegram struct {
	client  *resty.Client
	log     zerolog.Logger
	token   string
	chatID  string
	enabled bool
}

// NewTelegram builds a notifier. Empty token or chat ID disables sending.
func NewTelegram(token, chatID string, log zerolog.Logger) *Telegram {
	return &Telegram{
		client:  resty.New().SetBaseURL(telegramBaseURL).SetTimeout(10 * time.Second),
		log:     log.With().Str("component", "telegram").Logger(),
		token:   token,
		chatID:  chatID,
		enabled: token != "" && chatID != "",
	}
}

// Enabled reports whether messages will actually be sent.
func (t *Telegram) Enabled() bool { return t.enabled }

// Notify sends one plain-text message. Failures are returned but safe to
// ignore; notifications never gate trading.
func (t *Telegram) Notify(ctx context.Context, text string) error {
	if !t.enabled {
		return nil
	}
	resp, err := t.client.R().SetContext(ctx).
		SetFormData(map[string]string{
			"chat_id": t.chatID,
			"text":    text,
		}).
		Post(fmt.Sprintf("/bot%s/sendMessage", t.token))
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("send telegram message: status %d", resp.StatusCode())
	}
	return nil
}
