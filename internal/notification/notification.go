// Package notification persists in-app notifications and fans them out to the event bus and the broker.
package notification

import (
	"context"
	"encoding/json"
	"time"

	notifdm "github.com/frahmantamala/creatorpay/internal/core/datamodel/notification"
)

type Notification struct {
	ID        string                 `json:"id"`
	UserID    string                 `json:"user_id"`
	Type      notifdm.Type           `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
	ReadAt    *time.Time             `json:"read_at,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

type ListFilter struct {
	UserID     string
	UnreadOnly bool
	Limit      int
	Offset     int
}

type RepositoryAPI interface {
	Create(ctx context.Context, n *notifdm.Notification) error
	List(ctx context.Context, filter ListFilter) ([]*notifdm.Notification, error)
	// MarkRead stamps read_at on the user's notification; already read notifications keep their timestamp.
	MarkRead(ctx context.Context, id, userID string, at time.Time) (*notifdm.Notification, error)
}

func FromDataModel(n *notifdm.Notification) *Notification {
	out := &Notification{
		ID:        n.ID,
		UserID:    n.UserID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		ReadAt:    n.ReadAt,
		CreatedAt: n.CreatedAt,
	}
	if len(n.Data) > 0 {
		_ = json.Unmarshal(n.Data, &out.Data)
	}
	return out
}

func toDataModel(m Message) (*notifdm.Notification, error) {
	n := &notifdm.Notification{
		UserID:  m.UserID,
		Type:    m.Type,
		Title:   m.Title,
		Message: m.Body,
	}
	if len(m.Data) > 0 {
		raw, err := json.Marshal(m.Data)
		if err != nil {
			return nil, err
		}
		n.Data = raw
	}
	return n, nil
}
