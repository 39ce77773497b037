package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/frahmantamala/creatorpay/internal"
	appdm "github.com/frahmantamala/creatorpay/internal/core/datamodel/application"
	txdm "github.com/frahmantamala/creatorpay/internal/core/datamodel/transaction"
	"github.com/frahmantamala/creatorpay/internal/processor"
)

// CreatePaymentIntent reserves a pending transaction for an accepted application and asks the processor
// for a split intent. Completion is only ever confirmed by a webhook or the reconciler.
func (s *Service) CreatePaymentIntent(ctx context.Context, actor internal.Actor, dto CreateIntentDTO) (*IntentResponse, error) {
	if !actor.IsBrand() {
		return nil, internal.NewForbiddenError("only brands can pay for applications", internal.ErrCodeUnauthorizedAccess)
	}
	if err := dto.Validate(s.cfg.DefaultCurrency); err != nil {
		return nil, err
	}

	app, err := s.applications.GetByID(ctx, dto.ApplicationID)
	if err != nil {
		return nil, err
	}
	camp, err := s.campaigns.GetByID(ctx, app.CampaignID)
	if err != nil {
		return nil, err
	}
	if camp.BrandID != actor.ID {
		s.logger.Warn("payment intent for foreign application", "application_id", app.ID, "actor_id", actor.ID)
		return nil, internal.ErrUnauthorizedAccess
	}
	if app.Status != appdm.StatusAccepted {
		return nil, internal.NewPreconditionFailedError(
			fmt.Sprintf("application must be accepted, is %s", app.Status), internal.ErrCodeApplicationNotAccepted)
	}

	acct, err := s.accounts.GetByInfluencerID(ctx, app.InfluencerID)
	if err != nil && !internal.HasCode(err, internal.ErrCodeAccountNotFound) {
		return nil, err
	}
	if !acct.IsActive() {
		return nil, internal.NewPreconditionFailedError("influencer payout account is not active", internal.ErrCodeAccountNotActive)
	}

	split, err := s.fees.Split(dto.Amount)
	if err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeInvalidAmount)
	}

	txn := &Transaction{
		ApplicationID:    app.ID,
		CampaignID:       camp.ID,
		BrandID:          camp.BrandID,
		InfluencerID:     app.InfluencerID,
		Amount:           split.Amount,
		PlatformFee:      split.PlatformFee,
		InfluencerPayout: split.InfluencerPayout,
		FeeRatePercent:   split.RatePercent.String(),
		Currency:         dto.Currency,
		Status:           txdm.StatusPending,
	}
	if err := s.repo.Reserve(ctx, txn); err != nil {
		return nil, err
	}

	callCtx, cancel := internal.WithTimeout(ctx, s.cfg.ProcessorTimeout)
	defer cancel()

	intent, err := s.processor.CreateSplitIntent(callCtx, intentParams(txn, acct.ExternalAccountID))
	if err != nil {
		return nil, s.handleIntentError(ctx, txn, err)
	}

	attached, err := s.repo.AttachIntent(ctx, txn.ID, intent.ID)
	if err != nil {
		return nil, fmt.Errorf("attach intent %s to transaction %s: %w", intent.ID, txn.ID, err)
	}
	if !attached {
		// a webhook settled the transaction first and stored the intent id itself
		s.logger.Info("intent already attached", "transaction_id", txn.ID, "intent_id", intent.ID)
	}

	s.logger.Info("payment intent created",
		"transaction_id", txn.ID,
		"intent_id", intent.ID,
		"application_id", app.ID,
		"amount", txn.Amount,
		"platform_fee", txn.PlatformFee)

	return &IntentResponse{
		TransactionID:    txn.ID,
		PaymentIntentID:  intent.ID,
		ClientSecret:     intent.ClientSecret,
		Amount:           txn.Amount,
		PlatformFee:      txn.PlatformFee,
		InfluencerPayout: txn.InfluencerPayout,
		Currency:         txn.Currency,
	}, nil
}

// handleIntentError fails the reserved transaction on a definite rejection. When the outcome is unknown
// the row stays pending and the reconciler replays the call with the same idempotency key.
func (s *Service) handleIntentError(ctx context.Context, txn *Transaction, callErr error) error {
	if processor.IsTemporary(callErr) {
		s.logger.Warn("payment intent outcome unknown, left for reconciliation",
			"transaction_id", txn.ID, "error", callErr)
		return internal.NewUpstreamError(callErr)
	}

	reason := "processor rejected the payment intent"
	var perr *processor.Error
	if errors.As(callErr, &perr) && perr.Message != "" {
		reason = perr.Message
	}

	if _, _, err := s.repo.FailPending(ctx, IntentRef{TransactionID: txn.ID}, reason); err != nil {
		s.logger.Error("failed to mark rejected transaction failed", "transaction_id", txn.ID, "error", err)
	}
	s.logger.Error("payment intent rejected", "transaction_id", txn.ID, "error", callErr)
	return internal.NewUpstreamError(callErr)
}

// intentParams builds the destination charge for txn. The transaction id doubles as the idempotency
// key so a replay can never create a second intent.
func intentParams(txn *Transaction, destination string) processor.IntentParams {
	return processor.IntentParams{
		Amount:         txn.Amount,
		Currency:       txn.Currency,
		ApplicationFee: txn.PlatformFee,
		Destination:    destination,
		IdempotencyKey: txn.ID,
		Metadata: map[string]string{
			"transaction_id": txn.ID,
			"application_id": txn.ApplicationID,
			"campaign_id":    txn.CampaignID,
			"brand_id":       txn.BrandID,
			"influencer_id":  txn.InfluencerID,
		},
	}
}
