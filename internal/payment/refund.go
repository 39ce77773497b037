package payment

import (
	"context"
	"fmt"

	"github.com/frahmantamala/creatorpay/internal"
	notifdm "github.com/frahmantamala/creatorpay/internal/core/datamodel/notification"
	txdm "github.com/frahmantamala/creatorpay/internal/core/datamodel/transaction"
	"github.com/frahmantamala/creatorpay/internal/notification"
	"github.com/frahmantamala/creatorpay/internal/processor"
)

// Refund reverses a completed transaction at the processor, pulling back the influencer transfer and
// the application fee. The stored split is left as recorded. The row is held for the duration of the
// processor call so a payout cannot include it meanwhile.
func (s *Service) Refund(ctx context.Context, actor internal.Actor, dto RefundDTO) (*RefundResponse, error) {
	if !actor.IsBrand() {
		return nil, internal.NewForbiddenError("only brands can refund payments", internal.ErrCodeUnauthorizedAccess)
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	txn, err := s.repo.GetByID(ctx, dto.TransactionID)
	if err != nil {
		return nil, err
	}
	if txn.BrandID != actor.ID {
		s.logger.Warn("refund of foreign transaction", "transaction_id", txn.ID, "actor_id", actor.ID)
		return nil, internal.ErrUnauthorizedAccess
	}
	if txn.Status != txdm.StatusCompleted {
		return nil, internal.NewPreconditionFailedError(
			fmt.Sprintf("only completed transactions can be refunded, is %s", txn.Status), internal.ErrCodeTransactionNotComplete)
	}

	amount := txn.Amount
	if dto.Amount != nil {
		amount = *dto.Amount
	}
	if amount > txn.Amount {
		return nil, internal.NewValidationFieldError("amount",
			fmt.Sprintf("refund amount %d exceeds transaction amount %d", amount, txn.Amount), internal.ErrCodeRefundTooLarge)
	}

	key := fmt.Sprintf("refund-%s-%d", txn.ID, amount)
	held, err := s.repo.HoldForRefund(ctx, txn.ID, key)
	if err != nil {
		return nil, err
	}
	if !held {
		s.logger.Warn("refund blocked by settlement in progress", "transaction_id", txn.ID, "actor_id", actor.ID)
		return nil, internal.NewConflictError("a payout or refund for this transaction is in progress", internal.ErrCodeSettlementInProgress)
	}

	callCtx, cancel := internal.WithTimeout(ctx, s.cfg.ProcessorTimeout)
	defer cancel()

	refund, err := s.processor.CreateRefund(callCtx, processor.RefundParams{
		IntentID:       txn.ExternalIntentID,
		Amount:         amount,
		IdempotencyKey: key,
		Metadata: map[string]string{
			"transaction_id": txn.ID,
			"reason":         dto.Reason,
		},
	})
	if err != nil {
		if !processor.IsTemporary(err) {
			if relErr := s.repo.ReleaseHold(ctx, key); relErr != nil {
				s.logger.Error("failed to release refund hold", "transaction_id", txn.ID, "error", relErr)
			}
		}
		s.logger.Error("refund failed at processor", "transaction_id", txn.ID, "amount", amount, "error", err)
		return nil, internal.NewUpstreamError(err)
	}

	refunded, err := s.repo.MarkRefunded(ctx, txn.ID, RefundRecord{
		Key:      key,
		Amount:   amount,
		Reason:   dto.Reason,
		RefundID: refund.ID,
		At:       s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("record refund %s: %w", refund.ID, err)
	}
	if !refunded {
		// a concurrent request with the same key won; the processor returned the same refund
		s.logger.Warn("transaction already refunded", "transaction_id", txn.ID, "refund_id", refund.ID)
		return &RefundResponse{RefundID: refund.ID, TransactionID: txn.ID, Amount: refund.Amount}, nil
	}

	s.logger.Info("transaction refunded", "transaction_id", txn.ID, "refund_id", refund.ID, "amount", amount)

	data := map[string]interface{}{
		"transaction_id": txn.ID,
		"refund_id":      refund.ID,
		"amount":         amount,
		"currency":       txn.Currency,
		"reason":         dto.Reason,
	}
	s.notifier.Notify(ctx,
		notification.Message{
			UserID: txn.BrandID,
			Type:   notifdm.TypeRefundIssued,
			Title:  "Refund issued",
			Body:   fmt.Sprintf("%s was refunded", formatAmount(amount, txn.Currency)),
			Data:   data,
		},
		notification.Message{
			UserID: txn.InfluencerID,
			Type:   notifdm.TypeRefundIssued,
			Title:  "Payment refunded",
			Body:   fmt.Sprintf("A payment of %s was refunded by the brand", formatAmount(amount, txn.Currency)),
			Data:   data,
		},
	)

	return &RefundResponse{RefundID: refund.ID, TransactionID: txn.ID, Amount: amount}, nil
}
