package connect

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/creatorpay/internal"
	accountdm "github.com/frahmantamala/creatorpay/internal/core/datamodel/account"
	notifdm "github.com/frahmantamala/creatorpay/internal/core/datamodel/notification"
	"github.com/frahmantamala/creatorpay/internal/notification"
	"github.com/frahmantamala/creatorpay/internal/processor"
)

type RepositoryAPI interface {
	GetByInfluencerID(ctx context.Context, influencerID string) (*Account, error)
	// Create returns the stored row for the influencer, which may be an existing one if a concurrent call won.
	Create(ctx context.Context, influencerID, externalAccountID string) (*Account, error)
	// ApplyCapabilities persists the flags and derived status, returning the previous and current state.
	ApplyCapabilities(ctx context.Context, externalAccountID string, caps Capabilities) (before, after *Account, err error)
}

type Notifier interface {
	Notify(ctx context.Context, msgs ...notification.Message)
}

type Config struct {
	RefreshURL string
	ReturnURL  string
}

type Service struct {
	repo      RepositoryAPI
	processor processor.Client
	notifier  Notifier
	cfg       Config
	logger    *slog.Logger
}

func NewService(repo RepositoryAPI, client processor.Client, notifier Notifier, cfg Config, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		processor: client,
		notifier:  notifier,
		cfg:       cfg,
		logger:    logger,
	}
}

// Onboard creates the processor account on first use and returns a hosted onboarding link.
func (s *Service) Onboard(ctx context.Context, actor internal.Actor) (*OnboardResponse, error) {
	if !actor.IsInfluencer() {
		return nil, internal.NewForbiddenError("only influencers can onboard a payout account", internal.ErrCodeUnauthorizedAccess)
	}

	acct, err := s.repo.GetByInfluencerID(ctx, actor.ID)
	if err != nil && !internal.HasCode(err, internal.ErrCodeAccountNotFound) {
		return nil, err
	}

	if acct == nil {
		ext, err := s.processor.CreateAccount(ctx, processor.AccountParams{InfluencerID: actor.ID, Email: actor.Email})
		if err != nil {
			s.logger.Error("failed to create connected account", "influencer_id", actor.ID, "error", err)
			return nil, internal.NewUpstreamError(err)
		}
		acct, err = s.repo.Create(ctx, actor.ID, ext.ID)
		if err != nil {
			return nil, fmt.Errorf("store connected account: %w", err)
		}
		s.logger.Info("connected account created", "influencer_id", actor.ID, "external_account_id", acct.ExternalAccountID)
	}

	link, err := s.processor.CreateOnboardingLink(ctx, acct.ExternalAccountID, s.cfg.RefreshURL, s.cfg.ReturnURL)
	if err != nil {
		s.logger.Error("failed to create onboarding link", "external_account_id", acct.ExternalAccountID, "error", err)
		return nil, internal.NewUpstreamError(err)
	}

	return &OnboardResponse{
		AccountID:     acct.ExternalAccountID,
		Status:        acct.Status,
		OnboardingURL: link,
	}, nil
}

// Status refreshes the account from the processor. An influencer without an account gets not_created.
func (s *Service) Status(ctx context.Context, actor internal.Actor) (*Account, error) {
	if !actor.IsInfluencer() {
		return nil, internal.NewForbiddenError("only influencers have payout accounts", internal.ErrCodeUnauthorizedAccess)
	}

	acct, err := s.repo.GetByInfluencerID(ctx, actor.ID)
	if internal.HasCode(err, internal.ErrCodeAccountNotFound) {
		return &Account{InfluencerID: actor.ID, Status: accountdm.StatusNotCreated}, nil
	}
	if err != nil {
		return nil, err
	}

	ext, err := s.processor.GetAccount(ctx, acct.ExternalAccountID)
	if err != nil {
		// the stored view is still useful when the processor is unreachable
		s.logger.Warn("failed to refresh connected account", "external_account_id", acct.ExternalAccountID, "error", err)
		return acct, nil
	}

	return s.apply(ctx, acct.ExternalAccountID, Capabilities{
		DetailsSubmitted: ext.DetailsSubmitted,
		ChargesEnabled:   ext.ChargesEnabled,
		PayoutsEnabled:   ext.PayoutsEnabled,
	})
}

// ApplyAccountUpdate handles a verified account.updated event. Unknown accounts are acknowledged.
func (s *Service) ApplyAccountUpdate(ctx context.Context, ev processor.AccountUpdated) error {
	_, err := s.apply(ctx, ev.AccountID, Capabilities{
		DetailsSubmitted: ev.DetailsSubmitted,
		ChargesEnabled:   ev.ChargesEnabled,
		PayoutsEnabled:   ev.PayoutsEnabled,
	})
	if internal.HasCode(err, internal.ErrCodeAccountNotFound) {
		s.logger.Warn("account update for unknown account", "external_account_id", ev.AccountID, "event_id", ev.ID)
		return nil
	}
	return err
}

func (s *Service) apply(ctx context.Context, externalAccountID string, caps Capabilities) (*Account, error) {
	before, after, err := s.repo.ApplyCapabilities(ctx, externalAccountID, caps)
	if err != nil {
		return nil, err
	}

	if before.Status != after.Status {
		s.logger.Info("connected account status changed", "external_account_id", externalAccountID,
			"from", before.Status, "to", after.Status)
	}
	if !before.IsActive() && after.IsActive() {
		s.notifier.Notify(ctx, notification.Message{
			UserID: after.InfluencerID,
			Type:   notifdm.TypeAccountActivated,
			Title:  "Payout account active",
			Body:   "Your payout account is ready to receive payments",
			Data:   map[string]interface{}{"account_id": externalAccountID},
		})
	}
	return after, nil
}
