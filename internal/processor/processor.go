// Package processor defines the boundary to the external payment processor.
package processor

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrInvalidSignature is returned by ParseEvent when the payload is not authentic.
var ErrInvalidSignature = errors.New("invalid webhook signature")

type Client interface {
	CreateAccount(ctx context.Context, params AccountParams) (*Account, error)
	GetAccount(ctx context.Context, accountID string) (*Account, error)
	CreateOnboardingLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error)
	CreateSplitIntent(ctx context.Context, params IntentParams) (*Intent, error)
	GetIntent(ctx context.Context, intentID string) (*Intent, error)
	// CancelIntent voids an unpaid intent so its client secret can no longer be confirmed.
	CancelIntent(ctx context.Context, intentID string) (*Intent, error)
	CreateTransfer(ctx context.Context, params TransferParams) (*Transfer, error)
	CreateRefund(ctx context.Context, params RefundParams) (*Refund, error)
	ParseEvent(payload []byte, signatureHeader string) (Event, error)
}

type AccountParams struct {
	InfluencerID string
	Email        string
	Country      string
}

type Account struct {
	ID               string
	DetailsSubmitted bool
	ChargesEnabled   bool
	PayoutsEnabled   bool
}

// IntentParams describes a destination charge: the processor keeps ApplicationFee and routes
// the remainder to Destination.
type IntentParams struct {
	Amount         int64
	Currency       string
	ApplicationFee int64
	Destination    string
	IdempotencyKey string
	Metadata       map[string]string
}

type IntentStatus string

const (
	IntentRequiresPaymentMethod IntentStatus = "requires_payment_method"
	IntentRequiresConfirmation  IntentStatus = "requires_confirmation"
	IntentRequiresAction        IntentStatus = "requires_action"
	IntentProcessing            IntentStatus = "processing"
	IntentRequiresCapture       IntentStatus = "requires_capture"
	IntentSucceededStatus       IntentStatus = "succeeded"
	IntentCanceled              IntentStatus = "canceled"
)

type Intent struct {
	ID           string
	ClientSecret string
	Status       IntentStatus
	Amount       int64
	ChargeID     string
	FailureMsg   string
}

type TransferParams struct {
	Amount         int64
	Currency       string
	Destination    string
	IdempotencyKey string
	Metadata       map[string]string
}

type Transfer struct {
	ID     string
	Amount int64
}

type RefundParams struct {
	IntentID       string
	Amount         int64
	IdempotencyKey string
	Metadata       map[string]string
}

type Refund struct {
	ID     string
	Amount int64
	Status string
}

// Error is a processor rejection. Temporary errors may succeed on retry with the same idempotency key.
type Error struct {
	Code       string
	Message    string
	StatusCode int
	Temporary  bool
	Err        error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("processor error %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("processor error: %s", e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsTemporary reports whether err leaves the outcome of a processor call unknown.
func IsTemporary(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Temporary
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return false
}
