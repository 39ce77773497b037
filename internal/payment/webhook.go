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

// HandleEvent applies one verified processor event. Redelivered events are no-ops because every write
// is guarded by the expected current state. A returned error asks the processor to redeliver.
func (s *Service) HandleEvent(ctx context.Context, ev processor.Event) error {
	if err := s.repo.RecordEvent(ctx, ev.EventID(), ev.EventType()); err != nil {
		s.logger.Warn("failed to record webhook event", "event_id", ev.EventID(), "error", err)
	}

	switch e := ev.(type) {
	case processor.IntentSucceeded:
		return s.onIntentSucceeded(ctx, e)
	case processor.IntentFailed:
		return s.onIntentFailed(ctx, e)
	case processor.AccountUpdated:
		return s.accountSync.ApplyAccountUpdate(ctx, e)
	case processor.TransferCreated:
		return s.onTransferCreated(ctx, e)
	case processor.Ignored:
		s.logger.Debug("webhook event ignored", "event_id", e.ID, "type", e.Type)
		return nil
	default:
		return fmt.Errorf("unhandled event variant %T", ev)
	}
}

func (s *Service) onIntentSucceeded(ctx context.Context, e processor.IntentSucceeded) error {
	ref := IntentRef{IntentID: e.IntentID, TransactionID: e.TransactionID}
	txn, transitioned, err := s.repo.CompletePending(ctx, ref, e.ChargeID, s.now())
	if internal.HasCode(err, internal.ErrCodeTransactionNotFound) {
		s.logger.Warn("succeeded intent matches no transaction", "event_id", e.ID, "intent_id", e.IntentID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("complete transaction for intent %s: %w", e.IntentID, err)
	}
	if !transitioned {
		if txn.Status == txdm.StatusFailed {
			return s.refundStrayCharge(ctx, e, txn)
		}
		s.logger.Info("intent success already applied", "event_id", e.ID, "transaction_id", txn.ID, "status", txn.Status)
		return nil
	}

	s.logger.Info("transaction completed", "event_id", e.ID, "transaction_id", txn.ID, "intent_id", e.IntentID)
	s.notifyCompleted(ctx, txn)
	return nil
}

// refundStrayCharge returns money captured on an intent whose transaction had already failed. Failed is
// final, so the charge is refunded in full rather than reviving the transaction.
func (s *Service) refundStrayCharge(ctx context.Context, e processor.IntentSucceeded, txn *Transaction) error {
	intentID := e.IntentID
	if intentID == "" {
		intentID = txn.ExternalIntentID
	}
	amount := e.Amount
	if amount <= 0 {
		amount = txn.Amount
	}
	s.logger.Error("payment captured for a failed transaction, refunding",
		"event_id", e.ID, "transaction_id", txn.ID, "intent_id", intentID, "amount", amount)

	callCtx, cancel := internal.WithTimeout(ctx, s.cfg.ProcessorTimeout)
	defer cancel()

	refund, err := s.processor.CreateRefund(callCtx, processor.RefundParams{
		IntentID:       intentID,
		Amount:         amount,
		IdempotencyKey: "stray-" + intentID,
		Metadata: map[string]string{
			"transaction_id": txn.ID,
			"reason":         "transaction already failed",
		},
	})
	if err != nil {
		return fmt.Errorf("refund stray charge on intent %s: %w", intentID, err)
	}

	s.logger.Warn("stray charge refunded", "transaction_id", txn.ID, "intent_id", intentID, "refund_id", refund.ID)
	s.notifier.Notify(ctx, notification.Message{
		UserID: txn.BrandID,
		Type:   notifdm.TypeRefundIssued,
		Title:  "Payment returned",
		Body:   fmt.Sprintf("A late payment of %s on a failed checkout was refunded", formatAmount(amount, txn.Currency)),
		Data: map[string]interface{}{
			"transaction_id": txn.ID,
			"refund_id":      refund.ID,
			"amount":         amount,
			"currency":       txn.Currency,
		},
	})
	return nil
}

func (s *Service) onIntentFailed(ctx context.Context, e processor.IntentFailed) error {
	ref := IntentRef{IntentID: e.IntentID, TransactionID: e.TransactionID}
	txn, transitioned, err := s.repo.FailPending(ctx, ref, e.Reason)
	if internal.HasCode(err, internal.ErrCodeTransactionNotFound) {
		s.logger.Warn("failed intent matches no transaction", "event_id", e.ID, "intent_id", e.IntentID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("fail transaction for intent %s: %w", e.IntentID, err)
	}
	if !transitioned {
		s.logger.Info("intent failure not applied", "event_id", e.ID, "transaction_id", txn.ID, "status", txn.Status)
		return nil
	}

	s.logger.Info("transaction failed", "event_id", e.ID, "transaction_id", txn.ID, "reason", e.Reason)
	s.notifyFailed(ctx, txn)
	return nil
}

func (s *Service) onTransferCreated(ctx context.Context, e processor.TransferCreated) error {
	if e.SourceTransaction == "" && e.PaymentIntentID == "" {
		s.logger.Debug("transfer without a charge reference", "event_id", e.ID, "transfer_id", e.TransferID)
		return nil
	}

	txn, stamped, err := s.repo.AttachTransfer(ctx, TransferRef{
		ChargeID:   e.SourceTransaction,
		IntentID:   e.PaymentIntentID,
		TransferID: e.TransferID,
		At:         s.now(),
	})
	if internal.HasCode(err, internal.ErrCodeTransactionNotFound) {
		s.logger.Warn("transfer matches no transaction", "event_id", e.ID, "transfer_id", e.TransferID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("attach transfer %s: %w", e.TransferID, err)
	}
	if stamped {
		s.logger.Info("transfer attached", "event_id", e.ID, "transaction_id", txn.ID, "transfer_id", e.TransferID)
	}
	return nil
}

func (s *Service) notifyCompleted(ctx context.Context, txn *Transaction) {
	data := map[string]interface{}{
		"transaction_id": txn.ID,
		"application_id": txn.ApplicationID,
		"amount":         txn.Amount,
		"currency":       txn.Currency,
	}
	s.notifier.Notify(ctx,
		notification.Message{
			UserID: txn.BrandID,
			Type:   notifdm.TypePaymentConfirmed,
			Title:  "Payment confirmed",
			Body:   fmt.Sprintf("Your payment of %s was confirmed", formatAmount(txn.Amount, txn.Currency)),
			Data:   data,
		},
		notification.Message{
			UserID: txn.InfluencerID,
			Type:   notifdm.TypePaymentReceived,
			Title:  "Payment received",
			Body:   fmt.Sprintf("You earned %s", formatAmount(txn.InfluencerPayout, txn.Currency)),
			Data:   data,
		},
	)
}

func (s *Service) notifyFailed(ctx context.Context, txn *Transaction) {
	s.notifier.Notify(ctx, notification.Message{
		UserID: txn.BrandID,
		Type:   notifdm.TypePaymentFailed,
		Title:  "Payment failed",
		Body:   fmt.Sprintf("Your payment of %s did not go through", formatAmount(txn.Amount, txn.Currency)),
		Data: map[string]interface{}{
			"transaction_id": txn.ID,
			"application_id": txn.ApplicationID,
			"reason":         txn.FailureReason,
		},
	})
}
