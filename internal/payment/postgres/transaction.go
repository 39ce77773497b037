package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/frahmantamala/creatorpay/internal"
	appdm "github.com/frahmantamala/creatorpay/internal/core/datamodel/application"
	txdm "github.com/frahmantamala/creatorpay/internal/core/datamodel/transaction"
	"github.com/frahmantamala/creatorpay/internal/payment"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

var _ payment.RepositoryAPI = (*TransactionRepository)(nil)

func (r *TransactionRepository) Reserve(ctx context.Context, t *payment.Transaction) error {
	model := payment.ToDataModel(t)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// touching the application row makes a concurrent withdraw wait for this insert
		res := tx.Model(&appdm.Application{}).
			Where("id = ? AND status = ?", t.ApplicationID, appdm.StatusAccepted).
			Update("updated_at", time.Now().UTC())
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return internal.NewPreconditionFailedError("application is no longer accepted", internal.ErrCodeApplicationNotAccepted)
		}
		return tx.Create(model).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return internal.NewConflictError("a payment is already in progress for this application", internal.ErrCodeDuplicateIntent)
		}
		return err
	}
	*t = *payment.FromDataModel(model)
	return nil
}

func (r *TransactionRepository) AttachIntent(ctx context.Context, id, intentID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&txdm.Transaction{}).
		Where("id = ? AND external_intent_id IS NULL", id).
		Updates(map[string]interface{}{
			"external_intent_id": intentID,
			"updated_at":         time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*payment.Transaction, error) {
	var model txdm.Transaction
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrTransactionNotFound
		}
		return nil, err
	}
	return payment.FromDataModel(&model), nil
}

// matchIntent scopes q to the transaction behind ref. The metadata transaction id is only trusted while
// no intent id is stored, and only when it is a well-formed id.
func matchIntent(q *gorm.DB, ref payment.IntentRef) *gorm.DB {
	_, err := uuid.Parse(ref.TransactionID)
	validTxnID := ref.TransactionID != "" && err == nil

	switch {
	case ref.IntentID != "" && validTxnID:
		return q.Where("external_intent_id = ? OR (id = ? AND external_intent_id IS NULL)", ref.IntentID, ref.TransactionID)
	case ref.IntentID != "":
		return q.Where("external_intent_id = ?", ref.IntentID)
	case validTxnID:
		return q.Where("id = ?", ref.TransactionID)
	default:
		return q.Where("1 = 0")
	}
}

func findForIntent(tx *gorm.DB, ref payment.IntentRef) (*txdm.Transaction, error) {
	var row txdm.Transaction
	if err := matchIntent(tx.Model(&txdm.Transaction{}), ref).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrTransactionNotFound
		}
		return nil, err
	}
	return &row, nil
}

func (r *TransactionRepository) CompletePending(ctx context.Context, ref payment.IntentRef, chargeID string, at time.Time) (*payment.Transaction, bool, error) {
	var (
		result       *txdm.Transaction
		transitioned bool
	)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := findForIntent(tx, ref)
		if err != nil {
			return err
		}
		result = row
		if row.Status != txdm.StatusPending {
			return nil
		}

		updates := map[string]interface{}{
			"status":       txdm.StatusCompleted,
			"processed_at": at,
			"updated_at":   at,
		}
		if chargeID != "" {
			updates["external_charge_id"] = chargeID
		}
		if row.ExternalIntentID == nil && ref.IntentID != "" {
			updates["external_intent_id"] = ref.IntentID
		}

		res := tx.Model(&txdm.Transaction{}).
			Where("id = ? AND status = ?", row.ID, txdm.StatusPending).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return tx.Where("id = ?", row.ID).First(result).Error
		}
		transitioned = true

		err = tx.Model(&appdm.Application{}).
			Where("id = ? AND status = ?", row.ApplicationID, appdm.StatusAccepted).
			Updates(map[string]interface{}{
				"status":     appdm.StatusPaid,
				"updated_at": at,
			}).Error
		if err != nil {
			return err
		}

		return tx.Where("id = ?", row.ID).First(result).Error
	})
	if err != nil {
		return nil, false, err
	}
	return payment.FromDataModel(result), transitioned, nil
}

func (r *TransactionRepository) FailPending(ctx context.Context, ref payment.IntentRef, reason string) (*payment.Transaction, bool, error) {
	var (
		result       *txdm.Transaction
		transitioned bool
	)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := findForIntent(tx, ref)
		if err != nil {
			return err
		}
		result = row
		if row.Status != txdm.StatusPending {
			return nil
		}

		now := time.Now().UTC()
		updates := map[string]interface{}{
			"status":         txdm.StatusFailed,
			"failure_reason": reason,
			"processed_at":   now,
			"updated_at":     now,
		}
		if row.ExternalIntentID == nil && ref.IntentID != "" {
			updates["external_intent_id"] = ref.IntentID
		}

		res := tx.Model(&txdm.Transaction{}).
			Where("id = ? AND status = ?", row.ID, txdm.StatusPending).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		transitioned = res.RowsAffected == 1
		return tx.Where("id = ?", row.ID).First(result).Error
	})
	if err != nil {
		return nil, false, err
	}
	return payment.FromDataModel(result), transitioned, nil
}

func (r *TransactionRepository) AttachTransfer(ctx context.Context, ref payment.TransferRef) (*payment.Transaction, bool, error) {
	var (
		result  txdm.Transaction
		stamped bool
	)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&txdm.Transaction{})
		switch {
		case ref.ChargeID != "" && ref.IntentID != "":
			q = q.Where("external_charge_id = ? OR external_intent_id = ?", ref.ChargeID, ref.IntentID)
		case ref.ChargeID != "":
			q = q.Where("external_charge_id = ?", ref.ChargeID)
		case ref.IntentID != "":
			q = q.Where("external_intent_id = ?", ref.IntentID)
		default:
			return internal.ErrTransactionNotFound
		}
		if err := q.First(&result).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return internal.ErrTransactionNotFound
			}
			return err
		}

		res := tx.Model(&txdm.Transaction{}).
			Where("id = ? AND external_transfer_id IS NULL", result.ID).
			Updates(map[string]interface{}{
				"external_transfer_id": ref.TransferID,
				"payout_date":          ref.At,
				"updated_at":           ref.At,
			})
		if res.Error != nil {
			return res.Error
		}
		stamped = res.RowsAffected == 1
		return tx.Where("id = ?", result.ID).First(&result).Error
	})
	if err != nil {
		return nil, false, err
	}
	return payment.FromDataModel(&result), stamped, nil
}

func (r *TransactionRepository) ListPayoutEligible(ctx context.Context, influencerID string) ([]*payment.Transaction, error) {
	var rows []*txdm.Transaction
	err := r.db.WithContext(ctx).
		Where("influencer_id = ? AND status = ? AND payout_date IS NULL AND settlement_key IS NULL", influencerID, txdm.StatusCompleted).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return payment.FromDataModelSlice(rows), nil
}

func (r *TransactionRepository) ListHeldPayouts(ctx context.Context, influencerID string) ([]*payment.Transaction, error) {
	var rows []*txdm.Transaction
	err := r.db.WithContext(ctx).
		Where("influencer_id = ? AND status = ? AND payout_date IS NULL AND settlement_key LIKE ?",
			influencerID, txdm.StatusCompleted, payment.PayoutKeyPrefix+"%").
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return payment.FromDataModelSlice(rows), nil
}

func (r *TransactionRepository) HoldPayout(ctx context.Context, ids []string, key string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&txdm.Transaction{}).
			Where("id IN ? AND status = ? AND payout_date IS NULL AND settlement_key IS NULL", ids, txdm.StatusCompleted).
			Updates(map[string]interface{}{
				"settlement_key": key,
				"updated_at":     time.Now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != int64(len(ids)) {
			return internal.NewConflictError("payout batch changed while it was being claimed", internal.ErrCodeStaleState)
		}
		return nil
	})
}

func (r *TransactionRepository) StampPayout(ctx context.Context, key, transferID string, at time.Time) (int64, error) {
	var stamped int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&txdm.Transaction{}).
			Where("settlement_key = ? AND payout_date IS NULL", key).
			Updates(map[string]interface{}{
				"payout_date":          at,
				"external_transfer_id": transferID,
				"updated_at":           at,
			})
		if res.Error != nil {
			return res.Error
		}
		stamped = res.RowsAffected

		return tx.Model(&txdm.Transaction{}).
			Where("settlement_key = ?", key).
			Update("settlement_key", nil).Error
	})
	if err != nil {
		return 0, err
	}
	return stamped, nil
}

func (r *TransactionRepository) HoldForRefund(ctx context.Context, id, key string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&txdm.Transaction{}).
		Where("id = ? AND status = ? AND (settlement_key IS NULL OR settlement_key = ?)", id, txdm.StatusCompleted, key).
		Updates(map[string]interface{}{
			"settlement_key": key,
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *TransactionRepository) ReleaseHold(ctx context.Context, key string) error {
	return r.db.WithContext(ctx).
		Model(&txdm.Transaction{}).
		Where("settlement_key = ?", key).
		Update("settlement_key", nil).Error
}

func (r *TransactionRepository) MarkRefunded(ctx context.Context, id string, rec payment.RefundRecord) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&txdm.Transaction{}).
		Where("id = ? AND status = ? AND settlement_key = ?", id, txdm.StatusCompleted, rec.Key).
		Updates(map[string]interface{}{
			"status":             txdm.StatusRefunded,
			"refund_amount":      rec.Amount,
			"refund_reason":      rec.Reason,
			"external_refund_id": rec.RefundID,
			"settlement_key":     nil,
			"updated_at":         rec.At,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *TransactionRepository) List(ctx context.Context, filter payment.TransactionFilter) ([]*payment.Transaction, error) {
	q := r.db.WithContext(ctx).Model(&txdm.Transaction{})
	if filter.BrandID != "" {
		q = q.Where("brand_id = ?", filter.BrandID)
	}
	if filter.InfluencerID != "" {
		q = q.Where("influencer_id = ?", filter.InfluencerID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var rows []*txdm.Transaction
	if err := q.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return payment.FromDataModelSlice(rows), nil
}

func (r *TransactionRepository) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]*payment.Transaction, error) {
	var rows []*txdm.Transaction
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", txdm.StatusPending, createdBefore).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return payment.FromDataModelSlice(rows), nil
}

// RecordEvent appends to the webhook audit log; redeliveries of a known event id are ignored.
func (r *TransactionRepository) RecordEvent(ctx context.Context, eventID, eventType string) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&txdm.ProcessedWebhookEvent{
			EventID:    eventID,
			Type:       eventType,
			ReceivedAt: time.Now().UTC(),
		}).Error
}
