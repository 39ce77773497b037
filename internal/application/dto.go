package application

import (
	"github.com/frahmantamala/creatorpay/internal"
	"github.com/frahmantamala/creatorpay/internal/core/common/validation"
	appdm "github.com/frahmantamala/creatorpay/internal/core/datamodel/application"
)

const (
	maxMessageLength  = 2000
	maxPortfolioLinks = 10
)

type SubmitApplicationDTO struct {
	CampaignID     string   `json:"campaign_id"`
	ProposedRate   int64    `json:"proposed_rate"`
	Message        string   `json:"message,omitempty"`
	PortfolioLinks []string `json:"portfolio_links,omitempty"`
}

func (dto SubmitApplicationDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("campaign_id", dto.CampaignID).Required()
	v.Field("proposed_rate", dto.ProposedRate).Positive(internal.ErrCodeInvalidAmount)
	v.Field("message", dto.Message).MaxLength(maxMessageLength)
	v.Field("portfolio_links", dto.PortfolioLinks).MaxItems(maxPortfolioLinks)
	if len(dto.PortfolioLinks) > 0 {
		v.Field("portfolio_links", dto.PortfolioLinks).Tag("url", internal.ErrCodeValidationFailed)
	}
	return v.Validate()
}

type InviteInfluencerDTO struct {
	CampaignID   string `json:"campaign_id"`
	InfluencerID string `json:"influencer_id"`
	ProposedRate int64  `json:"proposed_rate"`
	Message      string `json:"message,omitempty"`
}

func (dto InviteInfluencerDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("campaign_id", dto.CampaignID).Required()
	v.Field("influencer_id", dto.InfluencerID).Required()
	v.Field("proposed_rate", dto.ProposedRate).Positive(internal.ErrCodeInvalidAmount)
	v.Field("message", dto.Message).MaxLength(maxMessageLength)
	return v.Validate()
}

type UpdateStatusDTO struct {
	Status appdm.Status `json:"status"`
}

type ListFilter struct {
	InfluencerID string
	BrandID      string
	CampaignID   string
	Status       appdm.Status
	Limit        int
	Offset       int
}
