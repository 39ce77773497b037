package application

import (
	"encoding/json"
	"time"

	appdm "github.com/frahmantamala/creatorpay/internal/core/datamodel/application"
)

type Application struct {
	ID             string       `json:"id"`
	CampaignID     string       `json:"campaign_id"`
	InfluencerID   string       `json:"influencer_id"`
	ProposedRate   int64        `json:"proposed_rate"`
	Message        string       `json:"message,omitempty"`
	PortfolioLinks []string     `json:"portfolio_links"`
	Status         appdm.Status `json:"status"`
	AppliedAt      time.Time    `json:"applied_at"`
	RespondedAt    *time.Time   `json:"responded_at,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

type party int

const (
	partyNone party = iota
	partyBrand
	partyInfluencer
)

// transitions lists every status edge reachable through UpdateStatus and which party may take it.
// Transitions into paid happen only in settlement; withdrawn goes through Withdraw.
var transitions = map[appdm.Status]map[appdm.Status]party{
	appdm.StatusPending: {
		appdm.StatusAccepted: partyBrand,
		appdm.StatusRejected: partyBrand,
	},
	appdm.StatusInvited: {
		appdm.StatusAccepted: partyInfluencer,
		appdm.StatusRejected: partyInfluencer,
	},
	appdm.StatusPaid: {
		appdm.StatusCompleted: partyBrand,
	},
}

func allowedParty(from, to appdm.Status) party {
	return transitions[from][to]
}

// CanBeWithdrawnBy reports whether p may withdraw the application in its current status.
func (a *Application) CanBeWithdrawnBy(p party) bool {
	switch p {
	case partyInfluencer:
		return a.Status == appdm.StatusPending || a.Status == appdm.StatusInvited
	case partyBrand:
		switch a.Status {
		case appdm.StatusPaid, appdm.StatusCompleted, appdm.StatusWithdrawn:
			return false
		}
		return true
	}
	return false
}

func NewApplication(campaignID, influencerID string, proposedRate int64, message string, links []string, status appdm.Status) *Application {
	now := time.Now().UTC()
	if links == nil {
		links = []string{}
	}
	return &Application{
		CampaignID:     campaignID,
		InfluencerID:   influencerID,
		ProposedRate:   proposedRate,
		Message:        message,
		PortfolioLinks: links,
		Status:         status,
		AppliedAt:      now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func ToDataModel(a *Application) (*appdm.Application, error) {
	links, err := json.Marshal(a.PortfolioLinks)
	if err != nil {
		return nil, err
	}
	return &appdm.Application{
		ID:             a.ID,
		CampaignID:     a.CampaignID,
		InfluencerID:   a.InfluencerID,
		ProposedRate:   a.ProposedRate,
		Message:        a.Message,
		PortfolioLinks: links,
		Status:         a.Status,
		AppliedAt:      a.AppliedAt,
		RespondedAt:    a.RespondedAt,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}, nil
}

func FromDataModel(a *appdm.Application) *Application {
	links := []string{}
	if len(a.PortfolioLinks) > 0 {
		_ = json.Unmarshal(a.PortfolioLinks, &links)
	}
	return &Application{
		ID:             a.ID,
		CampaignID:     a.CampaignID,
		InfluencerID:   a.InfluencerID,
		ProposedRate:   a.ProposedRate,
		Message:        a.Message,
		PortfolioLinks: links,
		Status:         a.Status,
		AppliedAt:      a.AppliedAt,
		RespondedAt:    a.RespondedAt,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

func FromDataModelSlice(apps []*appdm.Application) []*Application {
	result := make([]*Application, len(apps))
	for i, a := range apps {
		result[i] = FromDataModel(a)
	}
	return result
}
