// Package stripe adapts stripe-go to the processor.Client boundary.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	stripeapi "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/account"
	"github.com/stripe/stripe-go/v82/accountlink"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/refund"
	"github.com/stripe/stripe-go/v82/transfer"

	"github.com/frahmantamala/creatorpay/internal/processor"
)

type Config struct {
	SecretKey     string
	WebhookSecret string
	Timeout       time.Duration
	// BackendURL overrides the API base URL. Used against local fakes.
	BackendURL string
	Logger     *slog.Logger
}

type Client struct {
	intents       paymentintent.Client
	transfers     transfer.Client
	refunds       refund.Client
	accounts      account.Client
	links         accountlink.Client
	webhookSecret string
}

var _ processor.Client = (*Client)(nil)

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	backendConfig := &stripeapi.BackendConfig{
		HTTPClient:        &http.Client{Timeout: timeout},
		MaxNetworkRetries: stripeapi.Int64(2),
		LeveledLogger:     &leveledLogger{logger: logger.With("component", "stripe")},
	}
	if cfg.BackendURL != "" {
		backendConfig.URL = stripeapi.String(cfg.BackendURL)
		backendConfig.MaxNetworkRetries = stripeapi.Int64(0)
	}
	backend := stripeapi.GetBackendWithConfig(stripeapi.APIBackend, backendConfig)

	return &Client{
		intents:       paymentintent.Client{B: backend, Key: cfg.SecretKey},
		transfers:     transfer.Client{B: backend, Key: cfg.SecretKey},
		refunds:       refund.Client{B: backend, Key: cfg.SecretKey},
		accounts:      account.Client{B: backend, Key: cfg.SecretKey},
		links:         accountlink.Client{B: backend, Key: cfg.SecretKey},
		webhookSecret: cfg.WebhookSecret,
	}
}

func (c *Client) CreateAccount(ctx context.Context, p processor.AccountParams) (*processor.Account, error) {
	params := &stripeapi.AccountParams{
		Type: stripeapi.String(string(stripeapi.AccountTypeExpress)),
		Capabilities: &stripeapi.AccountCapabilitiesParams{
			CardPayments: &stripeapi.AccountCapabilitiesCardPaymentsParams{Requested: stripeapi.Bool(true)},
			Transfers:    &stripeapi.AccountCapabilitiesTransfersParams{Requested: stripeapi.Bool(true)},
		},
		Metadata: map[string]string{"influencer_id": p.InfluencerID},
	}
	if p.Email != "" {
		params.Email = stripeapi.String(p.Email)
	}
	if p.Country != "" {
		params.Country = stripeapi.String(p.Country)
	}
	params.Context = ctx
	params.SetIdempotencyKey("account-" + p.InfluencerID)

	acct, err := c.accounts.New(params)
	if err != nil {
		return nil, mapError(err)
	}
	return toAccount(acct), nil
}

func (c *Client) GetAccount(ctx context.Context, accountID string) (*processor.Account, error) {
	params := &stripeapi.AccountParams{}
	params.Context = ctx

	acct, err := c.accounts.GetByID(accountID, params)
	if err != nil {
		return nil, mapError(err)
	}
	return toAccount(acct), nil
}

func (c *Client) CreateOnboardingLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error) {
	params := &stripeapi.AccountLinkParams{
		Account:    stripeapi.String(accountID),
		RefreshURL: stripeapi.String(refreshURL),
		ReturnURL:  stripeapi.String(returnURL),
		Type:       stripeapi.String("account_onboarding"),
	}
	params.Context = ctx

	link, err := c.links.New(params)
	if err != nil {
		return "", mapError(err)
	}
	return link.URL, nil
}

func (c *Client) CreateSplitIntent(ctx context.Context, p processor.IntentParams) (*processor.Intent, error) {
	params := &stripeapi.PaymentIntentParams{
		Amount:               stripeapi.Int64(p.Amount),
		Currency:             stripeapi.String(p.Currency),
		ApplicationFeeAmount: stripeapi.Int64(p.ApplicationFee),
		TransferData: &stripeapi.PaymentIntentTransferDataParams{
			Destination: stripeapi.String(p.Destination),
		},
		AutomaticPaymentMethods: &stripeapi.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripeapi.Bool(true),
		},
		Metadata: p.Metadata,
	}
	params.Context = ctx
	params.SetIdempotencyKey(p.IdempotencyKey)

	pi, err := c.intents.New(params)
	if err != nil {
		return nil, mapError(err)
	}
	return toIntent(pi), nil
}

func (c *Client) GetIntent(ctx context.Context, intentID string) (*processor.Intent, error) {
	params := &stripeapi.PaymentIntentParams{}
	params.Context = ctx

	pi, err := c.intents.Get(intentID, params)
	if err != nil {
		return nil, mapError(err)
	}
	return toIntent(pi), nil
}

func (c *Client) CancelIntent(ctx context.Context, intentID string) (*processor.Intent, error) {
	params := &stripeapi.PaymentIntentCancelParams{
		CancellationReason: stripeapi.String(string(stripeapi.PaymentIntentCancellationReasonAbandoned)),
	}
	params.Context = ctx

	pi, err := c.intents.Cancel(intentID, params)
	if err != nil {
		return nil, mapError(err)
	}
	return toIntent(pi), nil
}

func (c *Client) CreateTransfer(ctx context.Context, p processor.TransferParams) (*processor.Transfer, error) {
	params := &stripeapi.TransferParams{
		Amount:      stripeapi.Int64(p.Amount),
		Currency:    stripeapi.String(p.Currency),
		Destination: stripeapi.String(p.Destination),
		Metadata:    p.Metadata,
	}
	params.Context = ctx
	params.SetIdempotencyKey(p.IdempotencyKey)

	t, err := c.transfers.New(params)
	if err != nil {
		return nil, mapError(err)
	}
	return &processor.Transfer{ID: t.ID, Amount: t.Amount}, nil
}

// CreateRefund reverses the destination transfer and the application fee so the split unwinds proportionally.
func (c *Client) CreateRefund(ctx context.Context, p processor.RefundParams) (*processor.Refund, error) {
	params := &stripeapi.RefundParams{
		PaymentIntent:        stripeapi.String(p.IntentID),
		Amount:               stripeapi.Int64(p.Amount),
		ReverseTransfer:      stripeapi.Bool(true),
		RefundApplicationFee: stripeapi.Bool(true),
		Reason:               stripeapi.String(string(stripeapi.RefundReasonRequestedByCustomer)),
		Metadata:             p.Metadata,
	}
	params.Context = ctx
	params.SetIdempotencyKey(p.IdempotencyKey)

	r, err := c.refunds.New(params)
	if err != nil {
		return nil, mapError(err)
	}
	return &processor.Refund{ID: r.ID, Amount: r.Amount, Status: string(r.Status)}, nil
}

func (c *Client) ParseEvent(payload []byte, signatureHeader string) (processor.Event, error) {
	return ParseSignedEvent(payload, signatureHeader, c.webhookSecret)
}

func toAccount(acct *stripeapi.Account) *processor.Account {
	return &processor.Account{
		ID:               acct.ID,
		DetailsSubmitted: acct.DetailsSubmitted,
		ChargesEnabled:   acct.ChargesEnabled,
		PayoutsEnabled:   acct.PayoutsEnabled,
	}
}

func toIntent(pi *stripeapi.PaymentIntent) *processor.Intent {
	intent := &processor.Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       processor.IntentStatus(pi.Status),
		Amount:       pi.Amount,
	}
	if pi.LatestCharge != nil {
		intent.ChargeID = pi.LatestCharge.ID
	}
	if pi.LastPaymentError != nil {
		intent.FailureMsg = pi.LastPaymentError.Msg
	}
	return intent
}

func mapError(err error) error {
	var se *stripeapi.Error
	if errors.As(err, &se) {
		return &processor.Error{
			Code:       string(se.Code),
			Message:    se.Msg,
			StatusCode: se.HTTPStatusCode,
			Temporary:  se.HTTPStatusCode == http.StatusTooManyRequests || se.HTTPStatusCode >= 500,
			Err:        err,
		}
	}
	return &processor.Error{Message: err.Error(), Temporary: true, Err: err}
}

type leveledLogger struct {
	logger *slog.Logger
}

func (l *leveledLogger) Debugf(format string, v ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, v...))
}

func (l *leveledLogger) Infof(format string, v ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, v...))
}

func (l *leveledLogger) Warnf(format string, v ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, v...))
}

func (l *leveledLogger) Errorf(format string, v ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, v...))
}
