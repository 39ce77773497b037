package notification

import (
	notifdm "github.com/frahmantamala/creatorpay/internal/core/datamodel/notification"
)

// Message is a notification to be delivered to one user.
type Message struct {
	UserID string
	Type   notifdm.Type
	Title  string
	Body   string
	Data   map[string]interface{}
}
