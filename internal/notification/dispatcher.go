package notification

import (
	"context"
	"log/slog"

	"github.com/frahmantamala/creatorpay/internal/core/events"
)

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Dispatcher is fire-and-forget: a notification that cannot be stored or published is logged and dropped,
// never failing the operation that raised it.
type Dispatcher struct {
	repo   RepositoryAPI
	bus    EventPublisher
	logger *slog.Logger
}

func NewDispatcher(repo RepositoryAPI, bus EventPublisher, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{repo: repo, bus: bus, logger: logger}
}

func (d *Dispatcher) Notify(ctx context.Context, msgs ...Message) {
	for _, m := range msgs {
		if m.UserID == "" {
			d.logger.Warn("notification without recipient dropped", "type", m.Type)
			continue
		}

		row, err := toDataModel(m)
		if err != nil {
			d.logger.Error("failed to encode notification data", "type", m.Type, "user_id", m.UserID, "error", err)
			continue
		}
		if err := d.repo.Create(ctx, row); err != nil {
			d.logger.Error("failed to store notification", "type", m.Type, "user_id", m.UserID, "error", err)
			continue
		}

		event := events.NewNotificationCreatedEvent(row.ID, row.UserID, string(row.Type), row.Title, row.Message)
		if err := d.bus.Publish(ctx, event); err != nil {
			d.logger.Warn("failed to publish notification event", "notification_id", row.ID, "error", err)
		}
	}
}
