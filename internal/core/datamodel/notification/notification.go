package notification

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Type string

const (
	TypeApplicationReceived  Type = "application_received"
	TypeApplicationInvited   Type = "application_invited"
	TypeApplicationAccepted  Type = "application_accepted"
	TypeApplicationRejected  Type = "application_rejected"
	TypeApplicationWithdrawn Type = "application_withdrawn"
	TypeApplicationCompleted Type = "application_completed"
	TypePaymentConfirmed     Type = "payment_confirmed"
	TypePaymentReceived      Type = "payment_received"
	TypePaymentFailed        Type = "payment_failed"
	TypePayoutSent           Type = "payout_sent"
	TypeRefundIssued         Type = "refund_issued"
	TypeAccountActivated     Type = "account_activated"
)

type Notification struct {
	ID        string         `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string         `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	Type      Type           `gorm:"column:type;not null" json:"type"`
	Title     string         `gorm:"column:title;not null" json:"title"`
	Message   string         `gorm:"column:message" json:"message"`
	Data      datatypes.JSON `gorm:"column:data" json:"data,omitempty"`
	ReadAt    *time.Time     `gorm:"column:read_at" json:"read_at,omitempty"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}
