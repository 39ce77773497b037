// Package processortest provides an in-memory processor.Client for tests.
package processortest

import (
	"context"
	"fmt"
	"sync"

	"github.com/frahmantamala/creatorpay/internal/processor"
)

// Fake records every call. Setting one of the *Err fields makes the matching call fail.
type Fake struct {
	mu sync.Mutex

	Accounts map[string]*processor.Account
	Intents  map[string]*processor.Intent

	AccountErr  error
	LinkErr     error
	IntentErr   error
	GetErr      error
	CancelErr   error
	TransferErr error
	RefundErr   error

	// ParseFunc backs ParseEvent. Nil means every payload is rejected.
	ParseFunc func(payload []byte, signatureHeader string) (processor.Event, error)

	IntentCalls   []processor.IntentParams
	CancelCalls   []string
	TransferCalls []processor.TransferParams
	RefundCalls   []processor.RefundParams

	byKey map[string]string
	seq   int
}

var _ processor.Client = (*Fake)(nil)

func New() *Fake {
	return &Fake{
		Accounts: make(map[string]*processor.Account),
		Intents:  make(map[string]*processor.Intent),
		byKey:    make(map[string]string),
	}
}

func (f *Fake) next(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s_%d", prefix, f.seq)
}

func (f *Fake) CreateAccount(ctx context.Context, p processor.AccountParams) (*processor.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.AccountErr != nil {
		return nil, f.AccountErr
	}
	acct := &processor.Account{ID: f.next("acct")}
	f.Accounts[acct.ID] = acct
	out := *acct
	return &out, nil
}

func (f *Fake) GetAccount(ctx context.Context, accountID string) (*processor.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.AccountErr != nil {
		return nil, f.AccountErr
	}
	acct, ok := f.Accounts[accountID]
	if !ok {
		return nil, &processor.Error{Code: "resource_missing", Message: "no such account", StatusCode: 404}
	}
	out := *acct
	return &out, nil
}

func (f *Fake) CreateOnboardingLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.LinkErr != nil {
		return "", f.LinkErr
	}
	return "https://connect.example.test/" + accountID, nil
}

func (f *Fake) CreateSplitIntent(ctx context.Context, p processor.IntentParams) (*processor.Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.IntentCalls = append(f.IntentCalls, p)
	if f.IntentErr != nil {
		return nil, f.IntentErr
	}
	if id, ok := f.byKey[p.IdempotencyKey]; ok && p.IdempotencyKey != "" {
		out := *f.Intents[id]
		return &out, nil
	}
	id := f.next("pi")
	intent := &processor.Intent{
		ID:           id,
		ClientSecret: id + "_secret",
		Status:       processor.IntentRequiresPaymentMethod,
		Amount:       p.Amount,
	}
	f.Intents[id] = intent
	f.byKey[p.IdempotencyKey] = id
	out := *intent
	return &out, nil
}

func (f *Fake) GetIntent(ctx context.Context, intentID string) (*processor.Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.GetErr != nil {
		return nil, f.GetErr
	}
	intent, ok := f.Intents[intentID]
	if !ok {
		return nil, &processor.Error{Code: "resource_missing", Message: "no such payment_intent", StatusCode: 404}
	}
	out := *intent
	return &out, nil
}

// CancelIntent refuses intents that already succeeded, like the real processor.
func (f *Fake) CancelIntent(ctx context.Context, intentID string) (*processor.Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CancelCalls = append(f.CancelCalls, intentID)
	if f.CancelErr != nil {
		return nil, f.CancelErr
	}
	intent, ok := f.Intents[intentID]
	if !ok {
		return nil, &processor.Error{Code: "resource_missing", Message: "no such payment_intent", StatusCode: 404}
	}
	if intent.Status == processor.IntentSucceededStatus {
		return nil, &processor.Error{Code: "payment_intent_unexpected_state", Message: "intent already succeeded", StatusCode: 400}
	}
	intent.Status = processor.IntentCanceled
	out := *intent
	return &out, nil
}

// SetIntentStatus changes what GetIntent reports for intentID.
func (f *Fake) SetIntentStatus(intentID string, status processor.IntentStatus, chargeID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if intent, ok := f.Intents[intentID]; ok {
		intent.Status = status
		intent.ChargeID = chargeID
	}
}

func (f *Fake) CreateTransfer(ctx context.Context, p processor.TransferParams) (*processor.Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.TransferCalls = append(f.TransferCalls, p)
	if f.TransferErr != nil {
		return nil, f.TransferErr
	}
	return &processor.Transfer{ID: f.next("tr"), Amount: p.Amount}, nil
}

func (f *Fake) CreateRefund(ctx context.Context, p processor.RefundParams) (*processor.Refund, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.RefundCalls = append(f.RefundCalls, p)
	if f.RefundErr != nil {
		return nil, f.RefundErr
	}
	return &processor.Refund{ID: f.next("re"), Amount: p.Amount, Status: "succeeded"}, nil
}

func (f *Fake) ParseEvent(payload []byte, signatureHeader string) (processor.Event, error) {
	if f.ParseFunc == nil {
		return nil, processor.ErrInvalidSignature
	}
	return f.ParseFunc(payload, signatureHeader)
}

func (f *Fake) IntentCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.IntentCalls)
}

func (f *Fake) TransferCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.TransferCalls)
}

func (f *Fake) RefundCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.RefundCalls)
}
