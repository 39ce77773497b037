package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/frahmantamala/creatorpay/internal/core/events"
	"github.com/frahmantamala/creatorpay/internal/notification"
	"github.com/frahmantamala/creatorpay/pkg/logger"
	"github.com/frahmantamala/creatorpay/pkg/rabbitmq"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event management commands",
	Long:  `Manage events: publish test notification events through the relay to the broker`,
}

var publishEventCmd = &cobra.Command{
	Use:   "publish [notification-type]",
	Short: "Publish a test notification event",
	Long:  `Publish a notification.created event on the bus; the relay forwards it to the notifications exchange`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return publishTestEvent(cmd.Context(), args[0])
	},
}

var (
	eventUserID  string
	eventTitle   string
	eventMessage string
)

func publishTestEvent(ctx context.Context, notificationType string) error {
	cfg := mustLoadConfig()
	lg := logger.LoggerWrapper()
	if ctx == nil {
		ctx = context.Background()
	}

	exchange := cfg.Notifications.Exchange
	if exchange == "" {
		exchange = notification.DefaultExchange
	}

	publisher := rabbitmq.NewPublisher(cfg.Notifications.AMQPURL, lg)
	defer publisher.Close()

	bus := events.NewEventBus(lg)
	notification.NewRelay(publisher, exchange, lg).RegisterEventHandlers(bus)

	event := events.NewNotificationCreatedEvent(uuid.NewString(), eventUserID, notificationType, eventTitle, eventMessage)
	lg.Info("publishing test event",
		"event_type", event.EventType(),
		"event_id", event.EventID(),
		"routing_key", notification.RoutingKey(notificationType))

	if err := bus.Publish(ctx, event); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	// the relay publishes on its own goroutine; wait for it before the process exits
	drainCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := bus.Drain(drainCtx); err != nil {
		return err
	}

	lg.Info("test event published successfully")
	return nil
}

func init() {
	publishEventCmd.Flags().StringVar(&eventUserID, "user", "00000000-0000-4000-8000-00000000a001", "Recipient user id")
	publishEventCmd.Flags().StringVar(&eventTitle, "title", "Test notification", "Notification title")
	publishEventCmd.Flags().StringVar(&eventMessage, "message", "test message", "Notification message")

	eventCmd.AddCommand(publishEventCmd)

	rootCmd.AddCommand(eventCmd)
}
