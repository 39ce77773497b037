package stripe

import (
	"encoding/json"
	"errors"
	"fmt"

	stripeapi "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/frahmantamala/creatorpay/internal/processor"
)

// ParseSignedEvent verifies the Stripe-Signature header and decodes the event into a processor variant.
func ParseSignedEvent(payload []byte, signatureHeader, secret string) (processor.Event, error) {
	evt, err := webhook.ConstructEventWithOptions(payload, signatureHeader, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", processor.ErrInvalidSignature, err)
	}
	return DecodeEvent(evt)
}

// DecodeEvent is the only place processor event type strings are mapped to variants.
func DecodeEvent(evt stripeapi.Event) (processor.Event, error) {
	meta := processor.Meta{ID: evt.ID, Type: string(evt.Type)}

	switch evt.Type {
	case stripeapi.EventTypePaymentIntentSucceeded:
		pi, err := decodeObject[stripeapi.PaymentIntent](evt)
		if err != nil {
			return nil, err
		}
		out := processor.IntentSucceeded{
			Meta:          meta,
			IntentID:      pi.ID,
			TransactionID: pi.Metadata["transaction_id"],
			Amount:        pi.Amount,
		}
		if pi.LatestCharge != nil {
			out.ChargeID = pi.LatestCharge.ID
		}
		return out, nil

	case stripeapi.EventTypePaymentIntentPaymentFailed, stripeapi.EventTypePaymentIntentCanceled:
		pi, err := decodeObject[stripeapi.PaymentIntent](evt)
		if err != nil {
			return nil, err
		}
		return processor.IntentFailed{
			Meta:          meta,
			IntentID:      pi.ID,
			TransactionID: pi.Metadata["transaction_id"],
			Reason:        failureReason(pi),
		}, nil

	case stripeapi.EventTypeAccountUpdated:
		acct, err := decodeObject[stripeapi.Account](evt)
		if err != nil {
			return nil, err
		}
		return processor.AccountUpdated{
			Meta:             meta,
			AccountID:        acct.ID,
			DetailsSubmitted: acct.DetailsSubmitted,
			ChargesEnabled:   acct.ChargesEnabled,
			PayoutsEnabled:   acct.PayoutsEnabled,
		}, nil

	case stripeapi.EventTypeTransferCreated:
		t, err := decodeObject[stripeapi.Transfer](evt)
		if err != nil {
			return nil, err
		}
		out := processor.TransferCreated{
			Meta:            meta,
			TransferID:      t.ID,
			Amount:          t.Amount,
			PaymentIntentID: t.Metadata["payment_intent_id"],
		}
		if t.Destination != nil {
			out.Destination = t.Destination.ID
		}
		if t.SourceTransaction != nil {
			out.SourceTransaction = t.SourceTransaction.ID
		}
		return out, nil

	default:
		return processor.Ignored{Meta: meta}, nil
	}
}

func decodeObject[T any](evt stripeapi.Event) (*T, error) {
	if evt.Data == nil || len(evt.Data.Raw) == 0 {
		return nil, errors.New("event has no data object")
	}
	var obj T
	if err := json.Unmarshal(evt.Data.Raw, &obj); err != nil {
		return nil, fmt.Errorf("decode %s object: %w", evt.Type, err)
	}
	return &obj, nil
}

func failureReason(pi *stripeapi.PaymentIntent) string {
	if pi.LastPaymentError != nil && pi.LastPaymentError.Msg != "" {
		return pi.LastPaymentError.Msg
	}
	if pi.CancellationReason != "" {
		return "canceled: " + string(pi.CancellationReason)
	}
	if pi.Status == stripeapi.PaymentIntentStatusCanceled {
		return "canceled"
	}
	return "payment failed"
}
