package notify

import (
	"context"
	"fmt"
	"net/http"
)

// DiscordSender posts to a channel webhook.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordSender creates a DiscordSender.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{webhookURL: webhookURL, client: webhookClient}
}

// Send posts the message with a bold title.
func (d *DiscordSender) Send(ctx context.Context, title, message string) error {
	err := postJSON(ctx, d.client, d.webhookURL, map[string]string{
		"content": fmt.Sprintf("**%s**\n%s", title, message),
	})
	if err != nil {
		return fmt.Errorf("discord: %w", err)
	}
	return nil
}

// Name implements Sender.
func (d *DiscordSender) Name() string { return "discord" }
