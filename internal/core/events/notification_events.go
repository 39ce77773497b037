package events

import (
	"time"

	"github.com/google/uuid"
)

const EventTypeNotificationCreated = "notification.created"

// NotificationCreatedEvent is published after a notification row is persisted.
type NotificationCreatedEvent struct {
	BaseEvent
	NotificationID   string `json:"notification_id"`
	UserID           string `json:"user_id"`
	NotificationType string `json:"notification_type"`
	Title            string `json:"title"`
	Message          string `json:"message"`
}

func NewNotificationCreatedEvent(notificationID, userID, notificationType, title, message string) *NotificationCreatedEvent {
	return &NotificationCreatedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeNotificationCreated,
			Timestamp: time.Now().UTC(),
		},
		NotificationID:   notificationID,
		UserID:           userID,
		NotificationType: notificationType,
		Title:            title,
		Message:          message,
	}
}
