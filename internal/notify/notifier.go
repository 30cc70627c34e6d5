// Package notify pushes operator alerts about redemptions and audits to
// chat webhooks, filtered by event type.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/preyanshu/verdict/internal/config"
)

// Event types.
const (
	EventRedemptionDone   = "redemption_done"
	EventRedemptionFailed = "redemption_failed"
	EventAuditPassed      = "audit_passed"
	EventAuditFailed      = "audit_failed"
	EventAuditIncomplete  = "audit_incomplete"
)

// Sender delivers one message to one channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier fans a message out to every sender when its event is enabled.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier. An empty events list enables everything.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	enabled := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			enabled[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  enabled,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// FromConfig builds the senders that cfg has credentials for.
func FromConfig(cfg config.NotifyConfig, logger *slog.Logger) *Notifier {
	var senders []Sender
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		senders = append(senders, NewTelegramSender(cfg.TelegramToken, cfg.TelegramChatID))
	}
	if cfg.DiscordWebhookURL != "" {
		senders = append(senders, NewDiscordSender(cfg.DiscordWebhookURL))
	}
	return NewNotifier(senders, cfg.Events, logger)
}

// Enabled reports whether event would be delivered.
func (n *Notifier) Enabled(event string) bool {
	return len(n.senders) > 0 && (len(n.events) == 0 || n.events[event])
}

// Notify delivers title and message for event. Every sender is tried; the
// failures are joined.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if !n.Enabled(event) {
		return nil
	}
	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "notification failed",
				slog.String("sender", s.Name()),
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}
