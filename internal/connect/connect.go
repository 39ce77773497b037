// Package connect manages the influencer's connected account at the payment processor.
package connect

import (
	"time"

	accountdm "github.com/frahmantamala/creatorpay/internal/core/datamodel/account"
)

type Account struct {
	ID                string           `json:"id,omitempty"`
	InfluencerID      string           `json:"influencer_id"`
	ExternalAccountID string           `json:"external_account_id,omitempty"`
	Status            accountdm.Status `json:"status"`
	DetailsSubmitted  bool             `json:"details_submitted"`
	ChargesEnabled    bool             `json:"charges_enabled"`
	PayoutsEnabled    bool             `json:"payouts_enabled"`
	CreatedAt         time.Time        `json:"created_at,omitempty"`
	UpdatedAt         time.Time        `json:"updated_at,omitempty"`
}

// IsActive reports whether the account can be the destination of a split payment.
func (a *Account) IsActive() bool {
	return a != nil && a.Status == accountdm.StatusActive
}

// Capabilities are the processor-reported flags for an account.
type Capabilities struct {
	DetailsSubmitted bool
	ChargesEnabled   bool
	PayoutsEnabled   bool
}

func (c Capabilities) Status() accountdm.Status {
	return accountdm.DeriveStatus(c.DetailsSubmitted, c.ChargesEnabled)
}

func FromDataModel(a *accountdm.ConnectedAccount) *Account {
	return &Account{
		ID:                a.ID,
		InfluencerID:      a.InfluencerID,
		ExternalAccountID: a.ExternalAccountID,
		Status:            a.Status,
		DetailsSubmitted:  a.DetailsSubmitted,
		ChargesEnabled:    a.ChargesEnabled,
		PayoutsEnabled:    a.PayoutsEnabled,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}
}

type OnboardResponse struct {
	AccountID     string           `json:"account_id"`
	Status        accountdm.Status `json:"status"`
	OnboardingURL string           `json:"onboarding_url"`
}
