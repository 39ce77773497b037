package campaign

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Campaign is owned by the campaign service; settlement only reads it.
type Campaign struct {
	ID                  string     `gorm:"primaryKey;type:uuid"`
	BrandID             string     `gorm:"column:brand_id;type:uuid;not null;index"`
	Title               string     `gorm:"column:title;not null"`
	Status              Status     `gorm:"column:status;not null;default:draft"`
	BudgetMin           int64      `gorm:"column:budget_min"`
	BudgetMax           int64      `gorm:"column:budget_max"`
	ApplicationDeadline *time.Time `gorm:"column:application_deadline"`
	CreatedAt           time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Campaign) TableName() string {
	return "campaigns"
}

func (c *Campaign) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// AcceptsApplications reports whether the campaign is active and its deadline has not passed at now.
func (c *Campaign) AcceptsApplications(now time.Time) bool {
	if c.Status != StatusActive {
		return false
	}
	return c.ApplicationDeadline == nil || !now.After(*c.ApplicationDeadline)
}
