// Package payment settles brand-to-influencer payments: split intents, processor webhooks,
// payout batches, refunds and reconciliation of stale intents.
package payment

import (
	"time"

	txdm "github.com/frahmantamala/creatorpay/internal/core/datamodel/transaction"
)

type Transaction struct {
	ID                 string      `json:"id"`
	ApplicationID      string      `json:"application_id"`
	CampaignID         string      `json:"campaign_id"`
	BrandID            string      `json:"brand_id"`
	InfluencerID       string      `json:"influencer_id"`
	Amount             int64       `json:"amount"`
	PlatformFee        int64       `json:"platform_fee"`
	InfluencerPayout   int64       `json:"influencer_payout"`
	FeeRatePercent     string      `json:"fee_rate_percent"`
	Currency           string      `json:"currency"`
	ExternalIntentID   string      `json:"payment_intent_id,omitempty"`
	ExternalChargeID   string      `json:"charge_id,omitempty"`
	Status             txdm.Status `json:"status"`
	FailureReason      string      `json:"failure_reason,omitempty"`
	ProcessedAt        *time.Time  `json:"processed_at,omitempty"`
	PayoutDate         *time.Time  `json:"payout_date,omitempty"`
	ExternalTransferID string      `json:"transfer_id,omitempty"`
	RefundAmount       *int64      `json:"refund_amount,omitempty"`
	RefundReason       string      `json:"refund_reason,omitempty"`
	ExternalRefundID   string      `json:"refund_id,omitempty"`
	SettlementKey      string      `json:"-"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// IntentRef identifies the transaction behind a processor intent. TransactionID comes from intent
// metadata and matches only while the intent id has not been stored yet.
type IntentRef struct {
	IntentID      string
	TransactionID string
}

// TransferRef identifies the transaction behind a processor transfer.
type TransferRef struct {
	ChargeID   string
	IntentID   string
	TransferID string
	At         time.Time
}

// RefundRecord is a processor refund to store. Key is the hold taken before the processor call.
type RefundRecord struct {
	Key      string
	Amount   int64
	Reason   string
	RefundID string
	At       time.Time
}

type IntentResponse struct {
	TransactionID    string `json:"transaction_id"`
	PaymentIntentID  string `json:"payment_intent_id"`
	ClientSecret     string `json:"client_secret"`
	Amount           int64  `json:"amount"`
	PlatformFee      int64  `json:"platform_fee"`
	InfluencerPayout int64  `json:"influencer_payout"`
	Currency         string `json:"currency"`
}

type PayoutResponse struct {
	TransferID       string `json:"transfer_id"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	TransactionCount int    `json:"transaction_count"`
}

type RefundResponse struct {
	RefundID      string `json:"refund_id"`
	TransactionID string `json:"transaction_id"`
	Amount        int64  `json:"amount"`
}

// Earnings is one currency's line of an influencer's earnings summary.
type Earnings struct {
	Currency         string `json:"currency" db:"currency"`
	PendingPayout    int64  `json:"pending_payout" db:"pending_payout"`
	PaidOut          int64  `json:"paid_out" db:"paid_out"`
	InFlight         int64  `json:"in_flight" db:"in_flight"`
	Refunded         int64  `json:"refunded" db:"refunded"`
	CompletedCount   int64  `json:"completed_count" db:"completed_count"`
	TransactionCount int64  `json:"transaction_count" db:"transaction_count"`
}

type EarningsSummary struct {
	InfluencerID string     `json:"influencer_id"`
	Earnings     []Earnings `json:"earnings"`
}

// ReconcileReport counts what one reconciliation pass did.
type ReconcileReport struct {
	Checked   int `json:"checked"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Attached  int `json:"attached"`
	Skipped   int `json:"skipped"`
}

func FromDataModel(t *txdm.Transaction) *Transaction {
	return &Transaction{
		ID:                 t.ID,
		ApplicationID:      t.ApplicationID,
		CampaignID:         t.CampaignID,
		BrandID:            t.BrandID,
		InfluencerID:       t.InfluencerID,
		Amount:             t.Amount,
		PlatformFee:        t.PlatformFee,
		InfluencerPayout:   t.InfluencerPayout,
		FeeRatePercent:     t.FeeRatePercent,
		Currency:           t.Currency,
		ExternalIntentID:   deref(t.ExternalIntentID),
		ExternalChargeID:   deref(t.ExternalChargeID),
		Status:             t.Status,
		FailureReason:      deref(t.FailureReason),
		ProcessedAt:        t.ProcessedAt,
		PayoutDate:         t.PayoutDate,
		ExternalTransferID: deref(t.ExternalTransferID),
		RefundAmount:       t.RefundAmount,
		RefundReason:       deref(t.RefundReason),
		ExternalRefundID:   deref(t.ExternalRefundID),
		SettlementKey:      deref(t.SettlementKey),
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
	}
}

// ToDataModel maps a new transaction for insertion; optional processor references stay NULL when empty.
func ToDataModel(t *Transaction) *txdm.Transaction {
	return &txdm.Transaction{
		ID:                 t.ID,
		ApplicationID:      t.ApplicationID,
		CampaignID:         t.CampaignID,
		BrandID:            t.BrandID,
		InfluencerID:       t.InfluencerID,
		Amount:             t.Amount,
		PlatformFee:        t.PlatformFee,
		InfluencerPayout:   t.InfluencerPayout,
		FeeRatePercent:     t.FeeRatePercent,
		Currency:           t.Currency,
		ExternalIntentID:   ref(t.ExternalIntentID),
		ExternalChargeID:   ref(t.ExternalChargeID),
		Status:             t.Status,
		FailureReason:      ref(t.FailureReason),
		ProcessedAt:        t.ProcessedAt,
		PayoutDate:         t.PayoutDate,
		ExternalTransferID: ref(t.ExternalTransferID),
		RefundAmount:       t.RefundAmount,
		RefundReason:       ref(t.RefundReason),
		ExternalRefundID:   ref(t.ExternalRefundID),
		SettlementKey:      ref(t.SettlementKey),
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
	}
}

func FromDataModelSlice(rows []*txdm.Transaction) []*Transaction {
	out := make([]*Transaction, len(rows))
	for i, row := range rows {
		out[i] = FromDataModel(row)
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func ref(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
