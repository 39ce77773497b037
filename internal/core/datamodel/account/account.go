package account

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Status string

const (
	StatusNotCreated Status = "not_created"
	StatusPending    Status = "pending"
	StatusActive     Status = "active"
)

// ConnectedAccount links an influencer to their payout account at the processor.
type ConnectedAccount struct {
	ID                string    `gorm:"primaryKey;type:uuid"`
	InfluencerID      string    `gorm:"column:influencer_id;type:uuid;not null;uniqueIndex"`
	ExternalAccountID string    `gorm:"column:external_account_id;not null;uniqueIndex"`
	Status            Status    `gorm:"column:status;not null;default:pending"`
	DetailsSubmitted  bool      `gorm:"column:details_submitted;not null;default:false"`
	ChargesEnabled    bool      `gorm:"column:charges_enabled;not null;default:false"`
	PayoutsEnabled    bool      `gorm:"column:payouts_enabled;not null;default:false"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (ConnectedAccount) TableName() string {
	return "connected_accounts"
}

func (a *ConnectedAccount) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// DeriveStatus is the single rule mapping processor capability flags to an account status.
func DeriveStatus(detailsSubmitted, chargesEnabled bool) Status {
	if detailsSubmitted && chargesEnabled {
		return StatusActive
	}
	return StatusPending
}
