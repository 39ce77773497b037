package payment

import (
	"context"
	"log/slog"
	"time"

	"github.com/frahmantamala/creatorpay/internal"
	"github.com/frahmantamala/creatorpay/internal/application"
	"github.com/frahmantamala/creatorpay/internal/connect"
	campaigndm "github.com/frahmantamala/creatorpay/internal/core/datamodel/campaign"
	"github.com/frahmantamala/creatorpay/internal/fee"
	"github.com/frahmantamala/creatorpay/internal/notification"
	"github.com/frahmantamala/creatorpay/internal/processor"
)

// RepositoryAPI is the transaction store. Every state change is guarded by the expected current
// status, and the returned bool reports whether this call performed the transition.
type RepositoryAPI interface {
	// Reserve inserts a pending transaction while the application is still accepted. A second pending row
	// for the same application is a Conflict.
	Reserve(ctx context.Context, t *Transaction) error
	AttachIntent(ctx context.Context, id, intentID string) (bool, error)
	GetByID(ctx context.Context, id string) (*Transaction, error)
	// CompletePending moves the matched transaction pending -> completed and, in the same DB
	// transaction, its application accepted -> paid.
	CompletePending(ctx context.Context, ref IntentRef, chargeID string, at time.Time) (*Transaction, bool, error)
	FailPending(ctx context.Context, ref IntentRef, reason string) (*Transaction, bool, error)
	// AttachTransfer stamps the transfer only when the transaction has none yet.
	AttachTransfer(ctx context.Context, ref TransferRef) (*Transaction, bool, error)
	// ListPayoutEligible returns completed, unpaid transactions that nothing holds.
	ListPayoutEligible(ctx context.Context, influencerID string) ([]*Transaction, error)
	// ListHeldPayouts returns unpaid transactions held by an earlier payout whose transfer never got stamped.
	ListHeldPayouts(ctx context.Context, influencerID string) ([]*Transaction, error)
	// HoldPayout holds every id under key or none. It fails with Conflict when any row stopped being eligible.
	HoldPayout(ctx context.Context, ids []string, key string) error
	// StampPayout records the transfer on the unpaid rows held under key, releases the hold and returns
	// how many rows it stamped.
	StampPayout(ctx context.Context, key, transferID string, at time.Time) (int64, error)
	// HoldForRefund holds a completed transaction under key unless another key holds it.
	HoldForRefund(ctx context.Context, id, key string) (bool, error)
	// ReleaseHold drops the hold after a definite processor rejection.
	ReleaseHold(ctx context.Context, key string) error
	// MarkRefunded moves completed -> refunded only while r.Key holds the row.
	MarkRefunded(ctx context.Context, id string, r RefundRecord) (bool, error)
	List(ctx context.Context, filter TransactionFilter) ([]*Transaction, error)
	ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]*Transaction, error)
	RecordEvent(ctx context.Context, eventID, eventType string) error
}

type ApplicationReader interface {
	GetByID(ctx context.Context, id string) (*application.Application, error)
}

type CampaignReader interface {
	GetByID(ctx context.Context, id string) (*campaigndm.Campaign, error)
}

type AccountReader interface {
	GetByInfluencerID(ctx context.Context, influencerID string) (*connect.Account, error)
}

// AccountSync applies account.updated events; implemented by the connect service.
type AccountSync interface {
	ApplyAccountUpdate(ctx context.Context, ev processor.AccountUpdated) error
}

type EarningsReader interface {
	Earnings(ctx context.Context, influencerID string) ([]Earnings, error)
}

type Notifier interface {
	Notify(ctx context.Context, msgs ...notification.Message)
}

type Config struct {
	DefaultCurrency  string
	ProcessorTimeout time.Duration
	// StaleAfter is how long a pending transaction waits before reconciliation looks at it.
	StaleAfter time.Duration
	// AbandonAfter is when an intent nobody paid is given up and the transaction failed.
	AbandonAfter time.Duration
	BatchSize    int
}

type Deps struct {
	Repo         RepositoryAPI
	Applications ApplicationReader
	Campaigns    CampaignReader
	Accounts     AccountReader
	AccountSync  AccountSync
	Earnings     EarningsReader
	Processor    processor.Client
	Fees         *fee.Calculator
	Notifier     Notifier
	Logger       *slog.Logger
}

type Service struct {
	repo         RepositoryAPI
	applications ApplicationReader
	campaigns    CampaignReader
	accounts     AccountReader
	accountSync  AccountSync
	earnings     EarningsReader
	processor    processor.Client
	fees         *fee.Calculator
	notifier     Notifier
	cfg          Config
	logger       *slog.Logger
	now          func() time.Time
}

func NewService(deps Deps, cfg Config) *Service {
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "usd"
	}
	if cfg.ProcessorTimeout <= 0 {
		cfg.ProcessorTimeout = 10 * time.Second
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 15 * time.Minute
	}
	if cfg.AbandonAfter <= 0 {
		cfg.AbandonAfter = 24 * time.Hour
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		repo:         deps.Repo,
		applications: deps.Applications,
		campaigns:    deps.Campaigns,
		accounts:     deps.Accounts,
		accountSync:  deps.AccountSync,
		earnings:     deps.Earnings,
		processor:    deps.Processor,
		fees:         deps.Fees,
		notifier:     deps.Notifier,
		cfg:          cfg,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the clock used for timestamps and staleness checks.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) ListTransactions(ctx context.Context, actor internal.Actor, filter TransactionFilter) ([]*Transaction, error) {
	switch {
	case actor.IsBrand():
		filter.BrandID = actor.ID
	case actor.IsInfluencer():
		filter.InfluencerID = actor.ID
	case actor.IsAdmin():
	default:
		return nil, internal.ErrUnauthorizedAccess
	}
	return s.repo.List(ctx, filter)
}

func (s *Service) Earnings(ctx context.Context, actor internal.Actor) (*EarningsSummary, error) {
	if !actor.IsInfluencer() {
		return nil, internal.NewForbiddenError("only influencers have earnings", internal.ErrCodeUnauthorizedAccess)
	}
	lines, err := s.earnings.Earnings(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if lines == nil {
		lines = []Earnings{}
	}
	return &EarningsSummary{InfluencerID: actor.ID, Earnings: lines}, nil
}
