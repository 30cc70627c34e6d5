package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/preyanshu/verdict/internal/domain"
)

// Notifier delivers operator alerts.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// publisher puts events on the bus and mirrors them into the channel's
// history stream. A nil bus makes it a no-op.
type publisher struct {
	bus    domain.SignalBus
	now    func() time.Time
	logger *slog.Logger
}

func (p publisher) publish(ctx context.Context, channel string, evt domain.Event) {
	if p.bus == nil {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = p.now().UTC()
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		p.logger.ErrorContext(ctx, "marshal event", slog.String("type", evt.Type), slog.String("error", err.Error()))
		return
	}
	if err := p.bus.Publish(ctx, channel, payload); err != nil {
		p.logger.WarnContext(ctx, "publish event failed",
			slog.String("channel", channel),
			slog.String("type", evt.Type),
			slog.String("error", err.Error()),
		)
	}
	if err := p.bus.StreamAppend(ctx, domain.HistoryStream(channel), payload); err != nil {
		p.logger.WarnContext(ctx, "append event history failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}
