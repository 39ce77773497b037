package transaction

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
)

// Transaction is one brand-to-influencer payment and its lifecycle at the processor.
type Transaction struct {
	ID                 string     `gorm:"primaryKey;type:uuid"`
	ApplicationID      string     `gorm:"column:application_id;type:uuid;not null;index;uniqueIndex:idx_transactions_pending_application,where:status = 'pending'"`
	CampaignID         string     `gorm:"column:campaign_id;type:uuid;not null"`
	BrandID            string     `gorm:"column:brand_id;type:uuid;not null;index"`
	InfluencerID       string     `gorm:"column:influencer_id;type:uuid;not null;index"`
	Amount             int64      `gorm:"column:amount;not null;check:chk_transactions_split,platform_fee + influencer_payout = amount"`
	PlatformFee        int64      `gorm:"column:platform_fee;not null"`
	InfluencerPayout   int64      `gorm:"column:influencer_payout;not null"`
	FeeRatePercent     string     `gorm:"column:fee_rate_percent;not null"`
	Currency           string     `gorm:"column:currency;not null"`
	ExternalIntentID   *string    `gorm:"column:external_intent_id;uniqueIndex"`
	ExternalChargeID   *string    `gorm:"column:external_charge_id;index"`
	Status             Status     `gorm:"column:status;not null;default:pending"`
	FailureReason      *string    `gorm:"column:failure_reason"`
	ProcessedAt        *time.Time `gorm:"column:processed_at"`
	PayoutDate         *time.Time `gorm:"column:payout_date"`
	ExternalTransferID *string    `gorm:"column:external_transfer_id"`
	RefundAmount       *int64     `gorm:"column:refund_amount"`
	RefundReason       *string    `gorm:"column:refund_reason"`
	ExternalRefundID   *string    `gorm:"column:external_refund_id"`
	// SettlementKey holds the row for an in-flight payout or refund; it doubles as that call's idempotency key.
	SettlementKey      *string    `gorm:"column:settlement_key;index"`
	CreatedAt          time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Transaction) TableName() string {
	return "transactions"
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// ProcessedWebhookEvent records every verified event id. It is an audit trail, not a dedupe key.
type ProcessedWebhookEvent struct {
	EventID    string    `gorm:"column:event_id;primaryKey"`
	Type       string    `gorm:"column:type;not null"`
	ReceivedAt time.Time `gorm:"column:received_at;not null"`
}

func (ProcessedWebhookEvent) TableName() string {
	return "processed_webhook_events"
}
