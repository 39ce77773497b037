// Package sandbox is an in-process payment processor for development. It keeps state in memory,
// settles intents on a worker pool and delivers Stripe-format signed webhooks.
package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/frahmantamala/creatorpay/internal/processor"
	stripeprocessor "github.com/frahmantamala/creatorpay/internal/processor/stripe"
)

const apiVersion = "2025-03-31.basil"

type Config struct {
	WebhookURL    string
	WebhookSecret string
	OnboardingURL string
	MaxWorkers    int
	JobQueueSize  int
	// SuccessRate is the probability an intent settles as succeeded.
	SuccessRate float64
	// MaxDelay bounds the simulated settlement latency. Zero settles immediately.
	MaxDelay time.Duration
}

type intentState struct {
	intent      processor.Intent
	destination string
	fee         int64
	currency    string
	metadata    map[string]string
	refunded    int64
}

type Client struct {
	cfg    Config
	logger *slog.Logger
	http   *http.Client

	mu         sync.Mutex
	accounts   map[string]*processor.Account
	byOwner    map[string]string
	intents    map[string]*intentState
	idempotent map[string]string
	transfers  map[string]*processor.Transfer
	refunds    map[string]*processor.Refund

	jobQueue   chan Job
	workerPool chan chan Job
	maxWorkers int
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	once       sync.Once
}

var _ processor.Client = (*Client)(nil)

func NewClient(cfg Config, logger *slog.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	maxWorkers := cfg.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	queueSize := cfg.JobQueueSize
	if queueSize <= 0 {
		queueSize = 100
	}
	if cfg.OnboardingURL == "" {
		cfg.OnboardingURL = "https://sandbox.invalid/onboarding"
	}

	c := &Client{
		cfg:        cfg,
		logger:     logger.With("component", "sandbox_processor"),
		http:       &http.Client{Timeout: 10 * time.Second},
		accounts:   make(map[string]*processor.Account),
		byOwner:    make(map[string]string),
		intents:    make(map[string]*intentState),
		idempotent: make(map[string]string),
		transfers:  make(map[string]*processor.Transfer),
		refunds:    make(map[string]*processor.Refund),
		jobQueue:   make(chan Job, queueSize),
		workerPool: make(chan chan Job, maxWorkers),
		maxWorkers: maxWorkers,
		ctx:        ctx,
		cancel:     cancel,
	}
	c.startWorkerPool()
	return c
}

func (c *Client) startWorkerPool() {
	c.once.Do(func() {
		for i := 0; i < c.maxWorkers; i++ {
			NewWorker(i, c.workerPool, c.logger).Start(c.ctx, &c.wg, c.process)
		}

		c.wg.Add(1)
		go c.dispatch()

		c.logger.Info("sandbox worker pool started", "max_workers", c.maxWorkers, "queue_size", cap(c.jobQueue))
	})
}

func (c *Client) dispatch() {
	defer c.wg.Done()

	for {
		select {
		case job := <-c.jobQueue:
			select {
			case jobChannel := <-c.workerPool:
				select {
				case jobChannel <- job:
				case <-c.ctx.Done():
					return
				}
			case <-c.ctx.Done():
				return
			}
		case <-c.ctx.Done():
			c.logger.Info("sandbox dispatcher shutting down")
			return
		}
	}
}

func (c *Client) Shutdown() {
	c.cancel()
	c.wg.Wait()
	c.logger.Info("sandbox processor shutdown complete")
}

func (c *Client) enqueue(job Job) error {
	select {
	case c.jobQueue <- job:
		return nil
	default:
		return &processor.Error{Code: "rate_limit", Message: "sandbox queue full", StatusCode: http.StatusTooManyRequests, Temporary: true}
	}
}

func (c *Client) CreateAccount(ctx context.Context, p processor.AccountParams) (*processor.Account, error) {
	c.mu.Lock()
	if id, ok := c.byOwner[p.InfluencerID]; ok {
		acct := *c.accounts[id]
		c.mu.Unlock()
		return &acct, nil
	}
	acct := &processor.Account{ID: "acct_" + shortID()}
	c.accounts[acct.ID] = acct
	c.byOwner[p.InfluencerID] = acct.ID
	out := *acct
	c.mu.Unlock()

	return &out, nil
}

func (c *Client) GetAccount(ctx context.Context, accountID string) (*processor.Account, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	acct, ok := c.accounts[accountID]
	if !ok {
		return nil, notFound("account", accountID)
	}
	out := *acct
	return &out, nil
}

// CreateOnboardingLink schedules the account to finish onboarding, as if the influencer completed the hosted form.
func (c *Client) CreateOnboardingLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error) {
	if _, err := c.GetAccount(ctx, accountID); err != nil {
		return "", err
	}
	if err := c.enqueue(Job{Kind: jobCompleteOnboarding, Account: accountID}); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s?return_url=%s", c.cfg.OnboardingURL, accountID, returnURL), nil
}

func (c *Client) CreateSplitIntent(ctx context.Context, p processor.IntentParams) (*processor.Intent, error) {
	if p.Amount <= 0 {
		return nil, &processor.Error{Code: "parameter_invalid_integer", Message: "amount must be positive", StatusCode: http.StatusBadRequest}
	}
	if p.ApplicationFee > p.Amount {
		return nil, &processor.Error{Code: "parameter_invalid_integer", Message: "application_fee_amount exceeds amount", StatusCode: http.StatusBadRequest}
	}

	c.mu.Lock()
	if id, ok := c.idempotent[p.IdempotencyKey]; ok && p.IdempotencyKey != "" {
		out := c.intents[id].intent
		c.mu.Unlock()
		return &out, nil
	}
	if _, ok := c.accounts[p.Destination]; !ok {
		c.mu.Unlock()
		return nil, notFound("account", p.Destination)
	}

	id := "pi_" + shortID()
	state := &intentState{
		intent: processor.Intent{
			ID:           id,
			ClientSecret: id + "_secret_" + shortID(),
			Status:       processor.IntentRequiresPaymentMethod,
			Amount:       p.Amount,
		},
		destination: p.Destination,
		fee:         p.ApplicationFee,
		currency:    p.Currency,
		metadata:    p.Metadata,
	}
	c.intents[id] = state
	if p.IdempotencyKey != "" {
		c.idempotent[p.IdempotencyKey] = id
	}
	out := state.intent
	c.mu.Unlock()

	if err := c.enqueue(Job{Kind: jobSettleIntent, IntentID: id}); err != nil {
		c.logger.Warn("sandbox intent will not settle", "intent_id", id, "error", err)
	}

	c.logger.Info("sandbox intent created", "intent_id", id, "amount", p.Amount, "application_fee", p.ApplicationFee)
	return &out, nil
}

func (c *Client) GetIntent(ctx context.Context, intentID string) (*processor.Intent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, ok := c.intents[intentID]
	if !ok {
		return nil, notFound("payment_intent", intentID)
	}
	out := state.intent
	return &out, nil
}

func (c *Client) CancelIntent(ctx context.Context, intentID string) (*processor.Intent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, ok := c.intents[intentID]
	if !ok {
		return nil, notFound("payment_intent", intentID)
	}
	switch state.intent.Status {
	case processor.IntentSucceededStatus, processor.IntentProcessing:
		return nil, &processor.Error{
			Code:       "payment_intent_unexpected_state",
			Message:    fmt.Sprintf("intent cannot be canceled while %s", state.intent.Status),
			StatusCode: http.StatusBadRequest,
		}
	}
	state.intent.Status = processor.IntentCanceled
	out := state.intent
	c.logger.Info("sandbox intent canceled", "intent_id", intentID)
	return &out, nil
}

func (c *Client) CreateTransfer(ctx context.Context, p processor.TransferParams) (*processor.Transfer, error) {
	c.mu.Lock()
	if id, ok := c.idempotent[p.IdempotencyKey]; ok && p.IdempotencyKey != "" {
		out := *c.transfers[id]
		c.mu.Unlock()
		return &out, nil
	}
	acct, ok := c.accounts[p.Destination]
	if !ok {
		c.mu.Unlock()
		return nil, notFound("account", p.Destination)
	}
	if !acct.PayoutsEnabled {
		c.mu.Unlock()
		return nil, &processor.Error{Code: "payouts_not_allowed", Message: "destination cannot receive payouts", StatusCode: http.StatusBadRequest}
	}
	t := &processor.Transfer{ID: "tr_" + shortID(), Amount: p.Amount}
	c.transfers[t.ID] = t
	if p.IdempotencyKey != "" {
		c.idempotent[p.IdempotencyKey] = t.ID
	}
	out := *t
	c.mu.Unlock()

	go c.deliver("transfer.created", map[string]interface{}{
		"id":          t.ID,
		"object":      "transfer",
		"amount":      t.Amount,
		"currency":    p.Currency,
		"destination": p.Destination,
		"metadata":    p.Metadata,
	})
	return &out, nil
}

func (c *Client) CreateRefund(ctx context.Context, p processor.RefundParams) (*processor.Refund, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id, ok := c.idempotent[p.IdempotencyKey]; ok && p.IdempotencyKey != "" {
		out := *c.refunds[id]
		return &out, nil
	}
	state, ok := c.intents[p.IntentID]
	if !ok {
		return nil, notFound("payment_intent", p.IntentID)
	}
	if state.intent.Status != processor.IntentSucceededStatus {
		return nil, &processor.Error{Code: "charge_not_refundable", Message: "intent has not succeeded", StatusCode: http.StatusBadRequest}
	}
	if p.Amount <= 0 || state.refunded+p.Amount > state.intent.Amount {
		return nil, &processor.Error{Code: "amount_too_large", Message: "refund exceeds captured amount", StatusCode: http.StatusBadRequest}
	}

	state.refunded += p.Amount
	r := &processor.Refund{ID: "re_" + shortID(), Amount: p.Amount, Status: "succeeded"}
	c.refunds[r.ID] = r
	if p.IdempotencyKey != "" {
		c.idempotent[p.IdempotencyKey] = r.ID
	}
	out := *r
	return &out, nil
}

func (c *Client) ParseEvent(payload []byte, signatureHeader string) (processor.Event, error) {
	return stripeprocessor.ParseSignedEvent(payload, signatureHeader, c.cfg.WebhookSecret)
}

func (c *Client) process(job Job) {
	if c.cfg.MaxDelay > 0 {
		delay := time.Duration(rand.Int63n(int64(c.cfg.MaxDelay)) + 1)
		select {
		case <-time.After(delay):
		case <-c.ctx.Done():
			return
		}
	}

	switch job.Kind {
	case jobSettleIntent:
		c.settleIntent(job.IntentID)
	case jobCompleteOnboarding:
		c.completeOnboarding(job.Account)
	}
}

func (c *Client) settleIntent(intentID string) {
	c.mu.Lock()
	state, ok := c.intents[intentID]
	if !ok || state.intent.Status != processor.IntentRequiresPaymentMethod {
		c.mu.Unlock()
		return
	}

	succeeded := rand.Float64() < c.cfg.SuccessRate
	if succeeded {
		state.intent.Status = processor.IntentSucceededStatus
		state.intent.ChargeID = "ch_" + shortID()
	} else {
		state.intent.FailureMsg = "Insufficient funds"
	}
	intent := state.intent
	destination := state.destination
	payout := intent.Amount - state.fee
	currency := state.currency
	metadata := state.metadata
	c.mu.Unlock()

	object := map[string]interface{}{
		"id":            intent.ID,
		"object":        "payment_intent",
		"amount":        intent.Amount,
		"currency":      currency,
		"status":        string(intent.Status),
		"client_secret": intent.ClientSecret,
		"metadata":      metadata,
	}

	if !succeeded {
		object["last_payment_error"] = map[string]interface{}{"message": intent.FailureMsg, "type": "card_error"}
		c.deliver("payment_intent.payment_failed", object)
		return
	}

	object["latest_charge"] = intent.ChargeID
	c.deliver("payment_intent.succeeded", object)

	c.deliver("transfer.created", map[string]interface{}{
		"id":                 "tr_" + shortID(),
		"object":             "transfer",
		"amount":             payout,
		"currency":           currency,
		"destination":        destination,
		"source_transaction": intent.ChargeID,
		"metadata":           map[string]string{"payment_intent_id": intent.ID},
	})
}

func (c *Client) completeOnboarding(accountID string) {
	c.mu.Lock()
	acct, ok := c.accounts[accountID]
	if !ok {
		c.mu.Unlock()
		return
	}
	acct.DetailsSubmitted = true
	acct.ChargesEnabled = true
	acct.PayoutsEnabled = true
	snapshot := *acct
	c.mu.Unlock()

	c.deliver("account.updated", map[string]interface{}{
		"id":                snapshot.ID,
		"object":            "account",
		"details_submitted": snapshot.DetailsSubmitted,
		"charges_enabled":   snapshot.ChargesEnabled,
		"payouts_enabled":   snapshot.PayoutsEnabled,
	})
}

// Trigger delivers an arbitrary signed event, the way `stripe trigger` does against a real account.
func (c *Client) Trigger(ctx context.Context, eventType string, object map[string]interface{}) error {
	return c.send(ctx, eventType, object)
}

func (c *Client) deliver(eventType string, object map[string]interface{}) {
	ctx, cancel := context.WithTimeout(c.ctx, 10*time.Second)
	defer cancel()

	if err := c.send(ctx, eventType, object); err != nil {
		c.logger.Error("sandbox webhook delivery failed", "event_type", eventType, "error", err)
	}
}

func (c *Client) send(ctx context.Context, eventType string, object map[string]interface{}) error {
	if c.cfg.WebhookURL == "" {
		c.logger.Debug("sandbox webhook url not configured, dropping event", "event_type", eventType)
		return nil
	}

	body, err := json.Marshal(map[string]interface{}{
		"id":          "evt_" + shortID(),
		"object":      "event",
		"api_version": apiVersion,
		"created":     time.Now().Unix(),
		"type":        eventType,
		"data":        map[string]interface{}{"object": object},
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   body,
		Secret:    c.cfg.WebhookSecret,
		Timestamp: time.Now(),
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.WebhookURL, bytes.NewReader(signed.Payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", signed.Header)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("webhook endpoint returned status %d", resp.StatusCode)
	}

	c.logger.Info("sandbox webhook delivered", "event_type", eventType)
	return nil
}

func notFound(resource, id string) error {
	return &processor.Error{
		Code:       "resource_missing",
		Message:    fmt.Sprintf("no such %s: %s", resource, id),
		StatusCode: http.StatusNotFound,
	}
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}
