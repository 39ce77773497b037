package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/creatorpay/internal/payment"
	"github.com/frahmantamala/creatorpay/pkg/logger"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start background workers such as the reconciliation scheduler and the sandbox processor trigger.`,
}

var reconcileWorkerCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile stale pending transactions with the processor",
	Long:  `Run reconciliation on the configured cron schedule, or a single pass with --once.`,
	Run: func(cmd *cobra.Command, args []string) {
		startReconcileWorker()
	},
}

var sandboxWorkerCmd = &cobra.Command{
	Use:   "sandbox [event-type]",
	Short: "Deliver a signed sandbox processor event to the webhook",
	Long:  `Sign an event the way the processor does and post it to processor.sandbox_webhook_url, like "stripe trigger".`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return triggerSandboxEvent(cmd.Context(), args[0])
	},
}

const defaultReconcileSchedule = "@every 5m"

var (
	reconcileOnce   bool
	reconcileEvery  string
	sandboxObject   string
	sandboxDeadline time.Duration
)

func startReconcileWorker() {
	cfg := mustLoadConfig()

	app, err := newApp(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	logger := app.Logger
	schedule := getStringFlag(reconcileEvery, cfg.Reconcile.Schedule)
	if schedule == "" {
		schedule = defaultReconcileSchedule
	}
	scheduler := payment.NewScheduler(app.Payments, schedule, 5*time.Minute, logger)

	if reconcileOnce {
		report, err := scheduler.RunOnce(context.Background())
		if err != nil {
			logger.Error("reconcile pass failed", "error", err)
			return
		}
		logger.Info("reconcile pass complete", "report", report)
		return
	}

	if err := scheduler.Start(); err != nil {
		logger.Error("failed to start reconcile worker", "error", err)
		return
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("reconcile worker is running. Press Ctrl+C to stop.", "schedule", schedule)

	// wait for shutdown signal
	sig := <-sigChan
	logger.Info("received signal, shutting down reconcile worker", "signal", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	select {
	case <-scheduler.Stop().Done():
		logger.Info("reconcile worker shutdown complete")
	case <-ctx.Done():
		logger.Warn("shutdown timeout reached, forcing exit")
	}
}

func triggerSandboxEvent(ctx context.Context, eventType string) error {
	cfg := mustLoadConfig()
	if cfg.Processor.SandboxWebhookURL == "" {
		return fmt.Errorf("processor.sandbox_webhook_url is not configured")
	}

	var object map[string]interface{}
	if err := json.Unmarshal([]byte(sandboxObject), &object); err != nil {
		return fmt.Errorf("invalid --object: %w", err)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, sandboxDeadline)
	defer cancel()

	client := newSandbox(cfg, logger.LoggerWrapper())
	defer client.Shutdown()

	if err := client.Trigger(ctx, eventType, object); err != nil {
		return fmt.Errorf("trigger %s: %w", eventType, err)
	}
	fmt.Println("delivered", eventType, "to", cfg.Processor.SandboxWebhookURL)
	return nil
}

func getStringFlag(flagValue, configValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return configValue
}

func init() {
	reconcileWorkerCmd.Flags().BoolVar(&reconcileOnce, "once", false, "Run a single reconciliation pass and exit")
	reconcileWorkerCmd.Flags().StringVar(&reconcileEvery, "schedule", "", "Cron schedule (overrides config)")

	sandboxWorkerCmd.Flags().StringVar(&sandboxObject, "object", "{}", "JSON object placed in data.object")
	sandboxWorkerCmd.Flags().DurationVar(&sandboxDeadline, "timeout", 10*time.Second, "Delivery timeout")

	workerCmd.AddCommand(reconcileWorkerCmd)
	workerCmd.AddCommand(sandboxWorkerCmd)

	rootCmd.AddCommand(workerCmd)
}
