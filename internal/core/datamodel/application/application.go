package application

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusInvited   Status = "invited"
	StatusPaid      Status = "paid"
	StatusCompleted Status = "completed"
	StatusWithdrawn Status = "withdrawn"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected, StatusInvited, StatusPaid, StatusCompleted, StatusWithdrawn:
		return true
	}
	return false
}

type Application struct {
	ID             string         `gorm:"primaryKey;type:uuid"`
	CampaignID     string         `gorm:"column:campaign_id;type:uuid;not null;uniqueIndex:idx_applications_active_pair,where:status <> 'withdrawn'"`
	InfluencerID   string         `gorm:"column:influencer_id;type:uuid;not null;uniqueIndex:idx_applications_active_pair;index"`
	ProposedRate   int64          `gorm:"column:proposed_rate;not null"`
	Message        string         `gorm:"column:message"`
	PortfolioLinks datatypes.JSON `gorm:"column:portfolio_links"`
	Status         Status         `gorm:"column:status;not null;default:pending"`
	AppliedAt      time.Time      `gorm:"column:applied_at"`
	RespondedAt    *time.Time     `gorm:"column:responded_at"`
	CreatedAt      time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (Application) TableName() string {
	return "campaign_applications"
}

func (a *Application) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.AppliedAt.IsZero() {
		a.AppliedAt = time.Now().UTC()
	}
	return nil
}
