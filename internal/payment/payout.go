package payment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/frahmantamala/creatorpay/internal"
	notifdm "github.com/frahmantamala/creatorpay/internal/core/datamodel/notification"
	"github.com/frahmantamala/creatorpay/internal/notification"
	"github.com/frahmantamala/creatorpay/internal/processor"
)

// PayoutKeyPrefix starts every payout hold and transfer idempotency key.
const PayoutKeyPrefix = "payout-"

// RequestPayout transfers the sum of the influencer's completed, not yet paid out earnings in one
// processor transfer. The batch is held before the transfer, so refunds and other payouts cannot touch
// it while money is moving. Transactions completing after the snapshot wait for the next payout.
func (s *Service) RequestPayout(ctx context.Context, actor internal.Actor) (*PayoutResponse, error) {
	if !actor.IsInfluencer() {
		return nil, internal.NewForbiddenError("only influencers can request payouts", internal.ErrCodeUnauthorizedAccess)
	}

	acct, err := s.accounts.GetByInfluencerID(ctx, actor.ID)
	if err != nil && !internal.HasCode(err, internal.ErrCodeAccountNotFound) {
		return nil, err
	}
	if acct == nil || !acct.PayoutsEnabled {
		return nil, internal.NewPreconditionFailedError("payouts are not enabled for this account", internal.ErrCodePayoutsDisabled)
	}

	batch, key, err := s.claimPayout(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	currency := batch[0].Currency
	var total int64
	for _, t := range batch {
		total += t.InfluencerPayout
	}

	callCtx, cancel := internal.WithTimeout(ctx, s.cfg.ProcessorTimeout)
	defer cancel()

	transfer, err := s.processor.CreateTransfer(callCtx, processor.TransferParams{
		Amount:         total,
		Currency:       currency,
		Destination:    acct.ExternalAccountID,
		IdempotencyKey: key,
		Metadata: map[string]string{
			"influencer_id":     actor.ID,
			"payout_batch":      key,
			"transaction_count": fmt.Sprintf("%d", len(batch)),
		},
	})
	if err != nil {
		if processor.IsTemporary(err) {
			// the hold stays; the next request resumes this batch with the same key
			s.logger.Warn("payout transfer outcome unknown, batch kept on hold",
				"influencer_id", actor.ID, "batch", key, "error", err)
			return nil, internal.NewUpstreamError(err)
		}
		if relErr := s.repo.ReleaseHold(ctx, key); relErr != nil {
			s.logger.Error("failed to release payout hold", "batch", key, "error", relErr)
		}
		s.logger.Error("payout transfer failed", "influencer_id", actor.ID, "amount", total, "error", err)
		return nil, internal.NewUpstreamError(err)
	}

	stamped, err := s.repo.StampPayout(ctx, key, transfer.ID, s.now())
	if err != nil {
		s.logger.Error("payout transfer made but batch not stamped",
			"influencer_id", actor.ID, "transfer_id", transfer.ID, "batch", key, "error", err)
		return nil, err
	}
	if stamped != int64(len(batch)) {
		s.logger.Warn("payout stamped fewer transactions than it transferred for",
			"transfer_id", transfer.ID, "batch", key, "held", len(batch), "stamped", stamped)
	}

	s.logger.Info("payout sent",
		"influencer_id", actor.ID,
		"transfer_id", transfer.ID,
		"amount", total,
		"transaction_count", len(batch))

	s.notifier.Notify(ctx, notification.Message{
		UserID: actor.ID,
		Type:   notifdm.TypePayoutSent,
		Title:  "Payout sent",
		Body:   fmt.Sprintf("%s from %d payments is on its way", formatAmount(total, currency), len(batch)),
		Data: map[string]interface{}{
			"transfer_id":       transfer.ID,
			"amount":            total,
			"currency":          currency,
			"transaction_count": len(batch),
		},
	})

	return &PayoutResponse{
		TransferID:       transfer.ID,
		Amount:           total,
		Currency:         currency,
		TransactionCount: len(batch),
	}, nil
}

// claimPayout returns the held batch to transfer and its key. A batch left on hold by an earlier request
// is resumed with its original key, so the processor answers with the transfer it may already have made.
func (s *Service) claimPayout(ctx context.Context, influencerID string) ([]*Transaction, string, error) {
	held, err := s.repo.ListHeldPayouts(ctx, influencerID)
	if err != nil {
		return nil, "", err
	}
	if len(held) > 0 {
		key := held[0].SettlementKey
		batch := make([]*Transaction, 0, len(held))
		for _, t := range held {
			if t.SettlementKey == key {
				batch = append(batch, t)
			}
		}
		s.logger.Info("resuming held payout", "influencer_id", influencerID, "batch", key, "transaction_count", len(batch))
		return batch, key, nil
	}

	eligible, err := s.repo.ListPayoutEligible(ctx, influencerID)
	if err != nil {
		return nil, "", err
	}
	batch := payoutBatch(eligible)
	if len(batch) == 0 {
		return nil, "", internal.NewPreconditionFailedError("no pending earnings to pay out", internal.ErrCodeNoPendingEarnings)
	}

	ids := make([]string, len(batch))
	for i, t := range batch {
		ids[i] = t.ID
	}
	key := payoutIdempotencyKey(ids)
	if err := s.repo.HoldPayout(ctx, ids, key); err != nil {
		return nil, "", err
	}
	return batch, key, nil
}

// payoutBatch keeps the transactions in the currency of the oldest one; a transfer carries one currency.
func payoutBatch(eligible []*Transaction) []*Transaction {
	if len(eligible) == 0 {
		return nil
	}
	currency := eligible[0].Currency
	batch := make([]*Transaction, 0, len(eligible))
	for _, t := range eligible {
		if t.Currency == currency {
			batch = append(batch, t)
		}
	}
	return batch
}

func payoutIdempotencyKey(ids []string) string {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, ",")))
	return PayoutKeyPrefix + hex.EncodeToString(sum[:])
}
