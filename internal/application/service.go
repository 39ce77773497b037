package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/creatorpay/internal"
	appdm "github.com/frahmantamala/creatorpay/internal/core/datamodel/application"
	campaigndm "github.com/frahmantamala/creatorpay/internal/core/datamodel/campaign"
	notifdm "github.com/frahmantamala/creatorpay/internal/core/datamodel/notification"
	"github.com/frahmantamala/creatorpay/internal/notification"
)

type RepositoryAPI interface {
	Create(ctx context.Context, app *Application) error
	GetByID(ctx context.Context, id string) (*Application, error)
	// FindActiveByPair returns nil, nil when the influencer has no non-withdrawn application on the campaign.
	FindActiveByPair(ctx context.Context, campaignID, influencerID string) (*Application, error)
	List(ctx context.Context, filter ListFilter) ([]*Application, error)
	// TransitionStatus moves the row from -> to only if it is still in from, and reports whether it did.
	// Moving to withdrawn fails while a pending payment exists for the application.
	TransitionStatus(ctx context.Context, id string, from, to appdm.Status, respondedAt *time.Time) (bool, error)
	HasPendingPayment(ctx context.Context, id string) (bool, error)
}

type CampaignReader interface {
	GetByID(ctx context.Context, id string) (*campaigndm.Campaign, error)
}

type Notifier interface {
	Notify(ctx context.Context, msgs ...notification.Message)
}

type Service struct {
	repo      RepositoryAPI
	campaigns CampaignReader
	notifier  Notifier
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(repo RepositoryAPI, campaigns CampaignReader, notifier Notifier, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		campaigns: campaigns,
		notifier:  notifier,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Submit(ctx context.Context, actor internal.Actor, dto SubmitApplicationDTO) (*Application, error) {
	if !actor.IsInfluencer() {
		return nil, internal.NewForbiddenError("only influencers can apply to campaigns", internal.ErrCodeUnauthorizedAccess)
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	camp, err := s.campaigns.GetByID(ctx, dto.CampaignID)
	if err != nil {
		return nil, err
	}
	if !camp.AcceptsApplications(s.now()) {
		s.logger.Warn("application to closed campaign", "campaign_id", camp.ID, "status", camp.Status)
		return nil, internal.ErrCampaignNotFound
	}

	if err := s.ensureNoActiveApplication(ctx, camp.ID, actor.ID); err != nil {
		return nil, err
	}

	app := NewApplication(camp.ID, actor.ID, dto.ProposedRate, dto.Message, dto.PortfolioLinks, appdm.StatusPending)
	if err := s.repo.Create(ctx, app); err != nil {
		return nil, err
	}

	s.logger.Info("application submitted", "application_id", app.ID, "campaign_id", camp.ID, "influencer_id", actor.ID)

	s.notifier.Notify(ctx, notification.Message{
		UserID: camp.BrandID,
		Type:   notifdm.TypeApplicationReceived,
		Title:  "New application received",
		Body:   fmt.Sprintf("An influencer applied to %q", camp.Title),
		Data:   map[string]interface{}{"application_id": app.ID, "campaign_id": camp.ID},
	})

	return app, nil
}

// Invite lets a brand offer an active campaign to an influencer directly.
func (s *Service) Invite(ctx context.Context, actor internal.Actor, dto InviteInfluencerDTO) (*Application, error) {
	if !actor.IsBrand() {
		return nil, internal.NewForbiddenError("only brands can invite influencers", internal.ErrCodeUnauthorizedAccess)
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	camp, err := s.campaigns.GetByID(ctx, dto.CampaignID)
	if err != nil {
		return nil, err
	}
	if camp.BrandID != actor.ID {
		return nil, internal.ErrUnauthorizedAccess
	}
	if camp.Status != campaigndm.StatusActive {
		return nil, internal.ErrCampaignNotFound
	}

	if err := s.ensureNoActiveApplication(ctx, camp.ID, dto.InfluencerID); err != nil {
		return nil, err
	}

	app := NewApplication(camp.ID, dto.InfluencerID, dto.ProposedRate, dto.Message, nil, appdm.StatusInvited)
	if err := s.repo.Create(ctx, app); err != nil {
		return nil, err
	}

	s.logger.Info("influencer invited", "application_id", app.ID, "campaign_id", camp.ID, "influencer_id", dto.InfluencerID)

	s.notifier.Notify(ctx, notification.Message{
		UserID: dto.InfluencerID,
		Type:   notifdm.TypeApplicationInvited,
		Title:  "You have been invited to a campaign",
		Body:   fmt.Sprintf("You were invited to %q", camp.Title),
		Data:   map[string]interface{}{"application_id": app.ID, "campaign_id": camp.ID},
	})

	return app, nil
}

func (s *Service) ensureNoActiveApplication(ctx context.Context, campaignID, influencerID string) error {
	existing, err := s.repo.FindActiveByPair(ctx, campaignID, influencerID)
	if err != nil {
		return err
	}
	if existing != nil {
		return internal.NewConflictError("an active application already exists for this campaign", internal.ErrCodeDuplicateApplication)
	}
	return nil
}

func (s *Service) UpdateStatus(ctx context.Context, actor internal.Actor, id string, newStatus appdm.Status) (*Application, error) {
	if !newStatus.Valid() {
		return nil, internal.NewValidationError(fmt.Sprintf("unknown status %q", newStatus), internal.ErrCodeInvalidStatus)
	}
	if newStatus == appdm.StatusWithdrawn {
		return s.Withdraw(ctx, actor, id)
	}

	app, camp, p, err := s.loadForActor(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	required := allowedParty(app.Status, newStatus)
	if required == partyNone {
		return nil, internal.NewValidationError(
			fmt.Sprintf("cannot move application from %s to %s", app.Status, newStatus), internal.ErrCodeInvalidStatus)
	}
	if required != p {
		return nil, internal.NewForbiddenError("this transition belongs to the other party", internal.ErrCodeUnauthorizedAccess)
	}

	now := s.now()
	if err := s.transition(ctx, app, newStatus, &now); err != nil {
		return nil, err
	}

	s.logger.Info("application status updated", "application_id", id, "status", newStatus, "actor_id", actor.ID)
	s.notifyStatusChange(ctx, app, camp, p)

	return app, nil
}

// Withdraw marks the application withdrawn. Paid and completed applications keep their financial history.
func (s *Service) Withdraw(ctx context.Context, actor internal.Actor, id string) (*Application, error) {
	app, camp, p, err := s.loadForActor(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if !app.CanBeWithdrawnBy(p) {
		return nil, internal.NewValidationError(
			fmt.Sprintf("application cannot be withdrawn while %s", app.Status), internal.ErrCodeInvalidStatus)
	}
	if app.Status == appdm.StatusAccepted {
		if err := s.refuseWhilePaying(ctx, app); err != nil {
			return nil, err
		}
	}

	if err := s.transition(ctx, app, appdm.StatusWithdrawn, app.RespondedAt); err != nil {
		if internal.HasCode(err, internal.ErrCodeStaleState) && app.Status == appdm.StatusAccepted {
			// the guarded update also loses to a payment started after the check above
			if payErr := s.refuseWhilePaying(ctx, app); payErr != nil {
				return nil, payErr
			}
		}
		return nil, err
	}

	s.logger.Info("application withdrawn", "application_id", id, "actor_id", actor.ID)
	s.notifyStatusChange(ctx, app, camp, p)

	return app, nil
}

func (s *Service) refuseWhilePaying(ctx context.Context, app *Application) error {
	paying, err := s.repo.HasPendingPayment(ctx, app.ID)
	if err != nil {
		return err
	}
	if paying {
		s.logger.Warn("withdraw refused while payment pending", "application_id", app.ID)
		return internal.NewConflictError("a payment for this application is in progress", internal.ErrCodePaymentInProgress)
	}
	return nil
}

func (s *Service) transition(ctx context.Context, app *Application, to appdm.Status, respondedAt *time.Time) error {
	ok, err := s.repo.TransitionStatus(ctx, app.ID, app.Status, to, respondedAt)
	if err != nil {
		return err
	}
	if !ok {
		s.logger.Warn("application changed concurrently", "application_id", app.ID, "expected_status", app.Status)
		return internal.NewConflictError("application was modified concurrently", internal.ErrCodeStaleState)
	}
	app.Status = to
	app.RespondedAt = respondedAt
	app.UpdatedAt = s.now()
	return nil
}

func (s *Service) Get(ctx context.Context, actor internal.Actor, id string) (*Application, error) {
	app, _, _, err := s.loadForActor(ctx, actor, id)
	return app, err
}

func (s *Service) List(ctx context.Context, actor internal.Actor, filter ListFilter) ([]*Application, error) {
	switch {
	case actor.IsInfluencer():
		filter.InfluencerID = actor.ID
	case actor.IsBrand():
		filter.BrandID = actor.ID
	case actor.IsAdmin():
	default:
		return nil, internal.ErrUnauthorizedAccess
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, internal.NewValidationError(fmt.Sprintf("unknown status %q", filter.Status), internal.ErrCodeInvalidStatus)
	}
	return s.repo.List(ctx, filter)
}

// loadForActor loads the application and its campaign and resolves which party the actor is.
// Admins are treated as neither party, so they can read but not transition.
func (s *Service) loadForActor(ctx context.Context, actor internal.Actor, id string) (*Application, *campaigndm.Campaign, party, error) {
	app, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, partyNone, err
	}
	camp, err := s.campaigns.GetByID(ctx, app.CampaignID)
	if err != nil {
		return nil, nil, partyNone, err
	}

	switch {
	case actor.IsBrand() && camp.BrandID == actor.ID:
		return app, camp, partyBrand, nil
	case actor.IsInfluencer() && app.InfluencerID == actor.ID:
		return app, camp, partyInfluencer, nil
	case actor.IsAdmin():
		return app, camp, partyNone, nil
	}

	s.logger.Warn("unauthorized access to application", "application_id", id, "actor_id", actor.ID)
	return nil, nil, partyNone, internal.ErrUnauthorizedAccess
}

func (s *Service) notifyStatusChange(ctx context.Context, app *Application, camp *campaigndm.Campaign, actorParty party) {
	recipient := app.InfluencerID
	if actorParty == partyInfluencer {
		recipient = camp.BrandID
	}

	var (
		kind  notifdm.Type
		title string
	)
	switch app.Status {
	case appdm.StatusAccepted:
		kind, title = notifdm.TypeApplicationAccepted, "Application accepted"
	case appdm.StatusRejected:
		kind, title = notifdm.TypeApplicationRejected, "Application rejected"
	case appdm.StatusCompleted:
		kind, title = notifdm.TypeApplicationCompleted, "Collaboration completed"
	case appdm.StatusWithdrawn:
		kind, title = notifdm.TypeApplicationWithdrawn, "Application withdrawn"
	default:
		return
	}

	s.notifier.Notify(ctx, notification.Message{
		UserID: recipient,
		Type:   kind,
		Title:  title,
		Body:   fmt.Sprintf("%s for %q", title, camp.Title),
		Data:   map[string]interface{}{"application_id": app.ID, "campaign_id": camp.ID, "status": string(app.Status)},
	})
}
