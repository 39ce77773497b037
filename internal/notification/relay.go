package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/creatorpay/internal/core/events"
	"github.com/frahmantamala/creatorpay/pkg/rabbitmq"
)

const DefaultExchange = "notifications"

// Relay forwards notification.created events to the broker for push and email delivery.
type Relay struct {
	publisher rabbitmq.Publisher
	exchange  string
	logger    *slog.Logger
}

func NewRelay(publisher rabbitmq.Publisher, exchange string, logger *slog.Logger) *Relay {
	if exchange == "" {
		exchange = DefaultExchange
	}
	return &Relay{publisher: publisher, exchange: exchange, logger: logger}
}

func RoutingKey(notificationType string) string {
	return "notification." + notificationType
}

func (r *Relay) HandleNotificationCreated(ctx context.Context, created *events.NotificationCreatedEvent) error {
	key := RoutingKey(created.NotificationType)
	if err := r.publisher.Publish(ctx, r.exchange, key, created); err != nil {
		return fmt.Errorf("relay notification %s: %w", created.NotificationID, err)
	}

	r.logger.Debug("notification relayed",
		"notification_id", created.NotificationID,
		"exchange", r.exchange,
		"routing_key", key)
	return nil
}

func (r *Relay) RegisterEventHandlers(bus *events.EventBus) {
	events.On(bus, events.EventTypeNotificationCreated, r.HandleNotificationCreated)

	r.logger.Info("notification relay registered",
		"exchange", r.exchange,
		"handlers", []string{events.EventTypeNotificationCreated})
}
