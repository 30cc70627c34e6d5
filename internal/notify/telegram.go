package notify

import (
	"context"
	"fmt"
	"net/http"
)

// TelegramSender posts through the Bot API sendMessage method.
type TelegramSender struct {
	apiBase string
	token   string
	chatID  string
	client  *http.Client
}

// NewTelegramSender creates a TelegramSender.
func NewTelegramSender(token, chatID string) *TelegramSender {
	return &TelegramSender{
		apiBase: "https://api.telegram.org",
		token:   token,
		chatID:  chatID,
		client:  webhookClient,
	}
}

// Send posts a Markdown message with a bold title.
func (t *TelegramSender) Send(ctx context.Context, title, message string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.token)
	err := postJSON(ctx, t.client, url, map[string]string{
		"chat_id":    t.chatID,
		"text":       fmt.Sprintf("*%s*\n%s", title, message),
		"parse_mode": "Markdown",
	})
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	return nil
}

// Name implements Sender.
func (t *TelegramSender) Name() string { return "telegram" }
