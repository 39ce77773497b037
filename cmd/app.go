package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/frahmantamala/creatorpay/internal"
	"github.com/frahmantamala/creatorpay/internal/application"
	apppg "github.com/frahmantamala/creatorpay/internal/application/postgres"
	campaignpg "github.com/frahmantamala/creatorpay/internal/campaign/postgres"
	"github.com/frahmantamala/creatorpay/internal/connect"
	connectpg "github.com/frahmantamala/creatorpay/internal/connect/postgres"
	"github.com/frahmantamala/creatorpay/internal/core/events"
	"github.com/frahmantamala/creatorpay/internal/fee"
	"github.com/frahmantamala/creatorpay/internal/notification"
	notificationpg "github.com/frahmantamala/creatorpay/internal/notification/postgres"
	"github.com/frahmantamala/creatorpay/internal/payment"
	paymentpg "github.com/frahmantamala/creatorpay/internal/payment/postgres"
	"github.com/frahmantamala/creatorpay/internal/processor"
	"github.com/frahmantamala/creatorpay/internal/processor/sandbox"
	"github.com/frahmantamala/creatorpay/internal/processor/stripe"
	"github.com/frahmantamala/creatorpay/pkg/logger"
	"github.com/frahmantamala/creatorpay/pkg/rabbitmq"
)

// App holds the wired services shared by the server and the workers.
type App struct {
	Config    *internal.Config
	Logger    *slog.Logger
	DB        *gorm.DB
	SQLX      *sqlx.DB
	Processor processor.Client
	Bus       *events.EventBus
	Publisher rabbitmq.Publisher

	Applications  *application.Service
	Connect       *connect.Service
	Payments      *payment.Service
	Notifications *notification.Service

	shutdown []func()
}

func newApp(cfg *internal.Config) (*App, error) {
	lg := logger.LoggerWrapper()

	db, err := initDB(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql db: %w", err)
	}

	app := &App{
		Config: cfg,
		Logger: lg,
		DB:     db,
		// the earnings read model shares the gorm pool
		SQLX: sqlx.NewDb(sqlDB, "pgx"),
	}
	app.onShutdown(func() {
		if err := sqlDB.Close(); err != nil {
			lg.Error("database close error", "error", err)
		}
	})

	app.Processor = newProcessor(cfg, lg)
	if sb, ok := app.Processor.(*sandbox.Client); ok {
		app.onShutdown(sb.Shutdown)
	}

	exchange := cfg.Notifications.Exchange
	if exchange == "" {
		exchange = notification.DefaultExchange
	}
	app.Bus = events.NewEventBus(lg)
	app.Publisher = rabbitmq.NewPublisher(cfg.Notifications.AMQPURL, lg)
	app.onShutdown(app.Publisher.Close)
	app.onShutdown(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := app.Bus.Drain(ctx); err != nil {
			lg.Warn("event deliveries still running at shutdown", "error", err)
		}
	})
	notification.NewRelay(app.Publisher, exchange, lg).RegisterEventHandlers(app.Bus)

	notificationRepo := notificationpg.NewNotificationRepository(db)
	dispatcher := notification.NewDispatcher(notificationRepo, app.Bus, lg)
	app.Notifications = notification.NewService(notificationRepo)

	rate, err := cfg.Fees.Rate()
	if err != nil {
		return nil, err
	}
	fees, err := fee.NewCalculator(rate)
	if err != nil {
		return nil, fmt.Errorf("failed to build fee calculator: %w", err)
	}

	applicationRepo := apppg.NewApplicationRepository(db)
	campaignRepo := campaignpg.NewCampaignRepository(db)
	accountRepo := connectpg.NewAccountRepository(db)

	app.Applications = application.NewService(applicationRepo, campaignRepo, dispatcher, lg)
	app.Connect = connect.NewService(accountRepo, app.Processor, dispatcher, connect.Config{
		RefreshURL: cfg.Processor.OnboardingRefresh,
		ReturnURL:  cfg.Processor.OnboardingReturn,
	}, lg)
	app.Payments = payment.NewService(payment.Deps{
		Repo:         paymentpg.NewTransactionRepository(db),
		Applications: applicationRepo,
		Campaigns:    campaignRepo,
		Accounts:     accountRepo,
		AccountSync:  app.Connect,
		Earnings:     paymentpg.NewEarningsReader(app.SQLX),
		Processor:    app.Processor,
		Fees:         fees,
		Notifier:     dispatcher,
		Logger:       lg,
	}, payment.Config{
		DefaultCurrency:  cfg.Processor.DefaultCurrency,
		ProcessorTimeout: cfg.Processor.Timeout,
		StaleAfter:       cfg.Reconcile.StaleAfter,
		AbandonAfter:     cfg.Reconcile.AbandonAfter,
		BatchSize:        cfg.Reconcile.BatchSize,
	})

	return app, nil
}

func (a *App) onShutdown(fn func()) {
	a.shutdown = append(a.shutdown, fn)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.shutdown) - 1; i >= 0; i-- {
		a.shutdown[i]()
	}
}

func newProcessor(cfg *internal.Config, lg *slog.Logger) processor.Client {
	if cfg.Processor.Provider == "sandbox" {
		return newSandbox(cfg, lg)
	}
	return stripe.NewClient(stripe.Config{
		SecretKey:     cfg.Processor.SecretKey,
		WebhookSecret: cfg.Processor.WebhookSecret,
		Timeout:       cfg.Processor.Timeout,
		Logger:        lg,
	})
}

func newSandbox(cfg *internal.Config, lg *slog.Logger) *sandbox.Client {
	return sandbox.NewClient(sandbox.Config{
		WebhookURL:    cfg.Processor.SandboxWebhookURL,
		WebhookSecret: cfg.Processor.WebhookSecret,
		MaxWorkers:    cfg.Processor.SandboxMaxWorkers,
		JobQueueSize:  cfg.Processor.SandboxQueueSize,
		SuccessRate:   cfg.Processor.SandboxSuccessRate,
		MaxDelay:      cfg.Processor.SandboxMaxDelay,
	}, lg)
}

// initDB opens the gorm pool over the pgx driver.
func initDB(cfg internal.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.GetDSN()), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql db: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// verify connection; close underlying *sql.DB on failure
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
