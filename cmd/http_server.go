package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/spf13/cobra"

	"github.com/frahmantamala/creatorpay/internal/application"
	"github.com/frahmantamala/creatorpay/internal/auth"
	"github.com/frahmantamala/creatorpay/internal/connect"
	"github.com/frahmantamala/creatorpay/internal/notification"
	"github.com/frahmantamala/creatorpay/internal/payment"
	"github.com/frahmantamala/creatorpay/internal/transport/middleware"
	"github.com/frahmantamala/creatorpay/internal/transport/rest"
	"github.com/frahmantamala/creatorpay/internal/transport/swagger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests and processor webhooks`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

func startHTTPServer() {
	cfg := mustLoadConfig()

	app, err := newApp(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	router, stopBackground, err := setupRoutes(app)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up routes: %v\n", err)
		os.Exit(1)
	}
	defer stopBackground()

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	app.Logger.Info("starting HTTP server", "address", addr, "processor", cfg.Processor.Provider)

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		app.Logger.Info("received signal, shutting down", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			app.Logger.Error("server shutdown error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			app.Logger.Error("server failed to start", "error", err)
			return
		}
	}

	app.Logger.Info("server stopped")
}

func setupRoutes(app *App) (*chi.Mux, func(), error) {
	verifier, err := auth.NewJWTVerifier(app.Config.Security)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build token verifier: %w", err)
	}

	docs, err := swagger.Load(context.Background(), swagger.DocumentPath)
	if err != nil {
		// docs are optional at runtime; the API still serves without them
		app.Logger.Warn("openapi document not loaded", "error", err)
	}

	var limiter *middleware.RateLimiter
	stop := func() {}
	if app.Config.RateLimit.Enabled {
		limiter = middleware.NewRateLimiter(app.Config.RateLimit.RequestsPerSecond, app.Config.RateLimit.Burst, app.Logger)
		stop = startLimiterCleanup(limiter)
	}

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, rest.Handlers{
		Health:       rest.NewHealthHandler(app.SQLX, nil),
		Auth:         auth.NewHandler(verifier),
		Application:  application.NewHandler(app.Applications),
		Payment:      payment.NewHandler(app.Payments),
		Webhook:      payment.NewWebhookHandler(app.Processor, app.Payments),
		Connect:      connect.NewHandler(app.Connect),
		Notification: notification.NewHandler(app.Notifications),
		Docs:         docs,
	}, rest.Options{
		AllowedOrigins: app.Config.Server.Origins(),
		RateLimiter:    limiter,
		Logger:         app.Logger,
	})

	return router, stop, nil
}

func startLimiterCleanup(limiter *middleware.RateLimiter) func() {
	ticker := time.NewTicker(time.Minute)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case now := <-ticker.C:
				limiter.Cleanup(now)
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()
	return func() { close(done) }
}

