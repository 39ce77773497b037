package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/frahmantamala/creatorpay/internal"
	"github.com/frahmantamala/creatorpay/internal/processor"
)

// Reconcile brings stale pending transactions in line with the processor. It covers intent calls that
// timed out and webhooks that never arrived. Each transaction is settled through the same guarded
// writes the webhook uses, so running it next to webhook delivery is safe.
func (s *Service) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	now := s.now()
	stale, err := s.repo.ListStalePending(ctx, now.Add(-s.cfg.StaleAfter), s.cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("list stale transactions: %w", err)
	}

	report := &ReconcileReport{}
	for _, txn := range stale {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++
		if err := s.reconcileOne(ctx, txn, now, report); err != nil {
			report.Skipped++
			s.logger.Warn("reconcile skipped transaction", "transaction_id", txn.ID, "error", err)
		}
	}

	s.logger.Info("reconcile pass finished",
		"checked", report.Checked,
		"completed", report.Completed,
		"failed", report.Failed,
		"attached", report.Attached,
		"skipped", report.Skipped)
	return report, nil
}

func (s *Service) reconcileOne(ctx context.Context, txn *Transaction, now time.Time, report *ReconcileReport) error {
	abandoned := now.Sub(txn.CreatedAt) > s.cfg.AbandonAfter

	var (
		intent *processor.Intent
		err    error
	)
	if txn.ExternalIntentID == "" {
		intent, err = s.replayIntent(ctx, txn)
		if err != nil {
			if processor.IsTemporary(err) {
				return err
			}
			return s.failStale(ctx, txn, "processor rejected the payment intent", report)
		}
		attached, err := s.repo.AttachIntent(ctx, txn.ID, intent.ID)
		if err != nil {
			return err
		}
		if attached {
			report.Attached++
		}
	} else {
		callCtx, cancel := internal.WithTimeout(ctx, s.cfg.ProcessorTimeout)
		intent, err = s.processor.GetIntent(callCtx, txn.ExternalIntentID)
		cancel()
		if err != nil {
			return err
		}
	}

	switch intent.Status {
	case processor.IntentSucceededStatus:
		completed, transitioned, err := s.repo.CompletePending(ctx, IntentRef{IntentID: intent.ID, TransactionID: txn.ID}, intent.ChargeID, now)
		if err != nil {
			return err
		}
		if transitioned {
			report.Completed++
			s.logger.Info("reconcile completed transaction", "transaction_id", txn.ID, "intent_id", intent.ID)
			s.notifyCompleted(ctx, completed)
		}
	case processor.IntentCanceled:
		return s.failStale(ctx, txn, "payment intent was canceled", report)
	case processor.IntentRequiresPaymentMethod, processor.IntentRequiresConfirmation, processor.IntentRequiresAction:
		if abandoned {
			return s.abandon(ctx, txn, intent.ID, report)
		}
	}
	return nil
}

// abandon cancels the intent at the processor before failing the transaction, so the brand cannot
// confirm it after a new payment was started for the same application.
func (s *Service) abandon(ctx context.Context, txn *Transaction, intentID string, report *ReconcileReport) error {
	callCtx, cancel := internal.WithTimeout(ctx, s.cfg.ProcessorTimeout)
	intent, err := s.processor.CancelIntent(callCtx, intentID)
	cancel()
	if err != nil {
		// a payment may have landed since GetIntent; the next pass reads the status again
		return fmt.Errorf("cancel intent %s: %w", intentID, err)
	}
	if intent.Status != processor.IntentCanceled {
		return fmt.Errorf("intent %s is %s after cancel", intentID, intent.Status)
	}
	return s.failStale(ctx, txn, "payment was not completed in time", report)
}

// replayIntent repeats the original intent call; the processor returns the intent it may already have created.
func (s *Service) replayIntent(ctx context.Context, txn *Transaction) (*processor.Intent, error) {
	acct, err := s.accounts.GetByInfluencerID(ctx, txn.InfluencerID)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := internal.WithTimeout(ctx, s.cfg.ProcessorTimeout)
	defer cancel()

	return s.processor.CreateSplitIntent(callCtx, intentParams(txn, acct.ExternalAccountID))
}

func (s *Service) failStale(ctx context.Context, txn *Transaction, reason string, report *ReconcileReport) error {
	failed, transitioned, err := s.repo.FailPending(ctx, IntentRef{TransactionID: txn.ID}, reason)
	if err != nil {
		return err
	}
	if transitioned {
		report.Failed++
		s.logger.Info("reconcile failed transaction", "transaction_id", txn.ID, "reason", reason)
		s.notifyFailed(ctx, failed)
	}
	return nil
}
