package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/frahmantamala/creatorpay/internal/payment"
)

const earningsQuery = `
SELECT
	currency,
	COALESCE(SUM(CASE WHEN status = 'completed' AND payout_date IS NULL THEN influencer_payout ELSE 0 END), 0) AS pending_payout,
	COALESCE(SUM(CASE WHEN status = 'completed' AND payout_date IS NOT NULL THEN influencer_payout ELSE 0 END), 0) AS paid_out,
	COALESCE(SUM(CASE WHEN status = 'pending' THEN influencer_payout ELSE 0 END), 0) AS in_flight,
	COALESCE(SUM(CASE WHEN status = 'refunded' THEN COALESCE(refund_amount, 0) ELSE 0 END), 0) AS refunded,
	COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0) AS completed_count,
	COUNT(*) AS transaction_count
FROM transactions
WHERE influencer_id = ?
GROUP BY currency
ORDER BY currency`

// EarningsReader is the dashboard read model over transactions, queried through sqlx so it stays
// independent of the gorm models.
type EarningsReader struct {
	db *sqlx.DB
}

func NewEarningsReader(db *sqlx.DB) *EarningsReader {
	return &EarningsReader{db: db}
}

var _ payment.EarningsReader = (*EarningsReader)(nil)

func (r *EarningsReader) Earnings(ctx context.Context, influencerID string) ([]payment.Earnings, error) {
	var lines []payment.Earnings
	if err := r.db.SelectContext(ctx, &lines, r.db.Rebind(earningsQuery), influencerID); err != nil {
		return nil, err
	}
	return lines, nil
}
