package payment

import (
	"github.com/frahmantamala/creatorpay/internal"
	"github.com/frahmantamala/creatorpay/internal/core/common/validation"
	txdm "github.com/frahmantamala/creatorpay/internal/core/datamodel/transaction"
)

const maxReasonLength = 500

type CreateIntentDTO struct {
	ApplicationID string `json:"application_id"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
}

// Validate normalizes Currency in place, falling back to defaultCurrency when empty.
func (dto *CreateIntentDTO) Validate(defaultCurrency string) *internal.AppError {
	v := validation.NewValidator()
	v.Field("application_id", dto.ApplicationID).Required()
	v.Field("amount", dto.Amount).Positive(internal.ErrCodeInvalidAmount)
	if err := v.Validate(); err != nil {
		return err
	}

	if dto.Currency == "" {
		dto.Currency = defaultCurrency
	}
	currency, ok := validation.NormalizeCurrency(dto.Currency)
	if !ok {
		return internal.NewValidationFieldError("currency", "currency must be a 3-letter ISO code", internal.ErrCodeInvalidCurrency)
	}
	dto.Currency = currency
	return nil
}

type RefundDTO struct {
	TransactionID string `json:"transaction_id"`
	Reason        string `json:"reason"`
	Amount        *int64 `json:"amount,omitempty"`
}

func (dto RefundDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("transaction_id", dto.TransactionID).Required()
	v.Field("reason", dto.Reason).MaxLength(maxReasonLength)
	if dto.Amount != nil {
		v.Field("amount", *dto.Amount).Positive(internal.ErrCodeInvalidAmount)
	}
	return v.Validate()
}

type TransactionFilter struct {
	BrandID      string
	InfluencerID string
	Status       txdm.Status
	Limit        int
	Offset       int
}
