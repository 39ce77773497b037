// Package fee computes the platform/influencer split of a payment amount.
package fee

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// DefaultRatePercent is the platform fee applied when no rate is configured.
var DefaultRatePercent = decimal.NewFromFloat(5.0)

type Split struct {
	Amount           int64
	PlatformFee      int64
	InfluencerPayout int64
	RatePercent      decimal.Decimal
}

// ComputeSplit rounds the platform fee half-up to the nearest minor unit; the payout takes the remainder
// so PlatformFee + InfluencerPayout == Amount always holds.
func ComputeSplit(amount int64, ratePercent decimal.Decimal) (Split, error) {
	if amount < 0 {
		return Split{}, fmt.Errorf("amount must not be negative, got %d", amount)
	}
	if ratePercent.IsNegative() || ratePercent.GreaterThan(hundred) {
		return Split{}, fmt.Errorf("fee rate must be between 0 and 100, got %s", ratePercent)
	}

	platformFee := decimal.NewFromInt(amount).Mul(ratePercent).Div(hundred).Round(0).IntPart()

	return Split{
		Amount:           amount,
		PlatformFee:      platformFee,
		InfluencerPayout: amount - platformFee,
		RatePercent:      ratePercent,
	}, nil
}

// Calculator binds a configured rate so callers cannot pass a different one per request.
type Calculator struct {
	rate decimal.Decimal
}

func NewCalculator(ratePercent decimal.Decimal) (*Calculator, error) {
	if ratePercent.IsNegative() || ratePercent.GreaterThan(hundred) {
		return nil, fmt.Errorf("fee rate must be between 0 and 100, got %s", ratePercent)
	}
	return &Calculator{rate: ratePercent}, nil
}

func (c *Calculator) Rate() decimal.Decimal {
	return c.rate
}

func (c *Calculator) Split(amount int64) (Split, error) {
	return ComputeSplit(amount, c.rate)
}
