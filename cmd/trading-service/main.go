package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang-stock-trader/internal/trading/config"
	delivery "golang-stock-trader/internal/trading/delivery/http"
	"golang-stock-trader/internal/trading/delivery/scheduler"
	"golang-stock-trader/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the trading service on its cron schedule",
	Run:   runServe,
}

var runOnceCmd = &cobra.Command{
	Use:   "run-once",
	Short: "Runs a single trading cycle and exits",
	Run:   runOnce,
}

func setup() (*config.Config, *logger.Logger) {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.Logger.Level, cfg.Logger.Encoding)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	return cfg, appLogger
}

func runServe(cmd *cobra.Command, args []string) {
	// Create a context that is canceled on interrupt signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, appLogger := setup()
	defer func() { _ = appLogger.Sync() }()

	appLogger.Info("Starting Trading Service",
		logger.Field("name", cfg.App.Name),
		logger.Field("tickers", cfg.Trading.Tickers),
		logger.StringField("schedule", cfg.Trading.Schedule),
	)

	app, err := newApplication(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize trading service", logger.ErrorField(err))
	}
	defer app.Close()

	sched := scheduler.NewScheduler(cfg, app.engine, appLogger)
	if err := sched.Start(ctx); err != nil {
		appLogger.Fatal("Failed to start scheduler", logger.ErrorField(err))
	}

	// Initialize Echo server
	e := echo.New()
	e.HideBanner = true

	healthHandler := delivery.NewHealthHandler(map[string]delivery.Pinger{
		"postgres": delivery.PingFunc(app.db.Ping),
		"redis": delivery.PingFunc(func(ctx context.Context) error {
			return app.redis.Ping(ctx).Err()
		}),
	}, appLogger)
	healthHandler.RegisterRoutes(e)

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.API.Port)
		appLogger.Info("HTTP server starting", logger.Field("address", addr))
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			appLogger.Error("HTTP server failed to start", logger.ErrorField(err))
			stop() // trigger shutdown
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	appLogger.Info("Shutting down trading service...")

	// A running cycle sees the canceled context at its next blocking call.
	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", logger.ErrorField(err))
	}

	appLogger.Info("Trading service exiting")
}

func runOnce(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, appLogger := setup()
	defer func() { _ = appLogger.Sync() }()

	app, err := newApplication(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize trading service", logger.ErrorField(err))
	}
	defer app.Close()

	result, err := app.engine.RunCycle(ctx)
	if err != nil {
		appLogger.Error("Trading cycle failed", logger.ErrorField(err))
		return
	}
	if result.Skipped {
		appLogger.Info("Trading cycle skipped", logger.StringField("reason", result.SkipReason))
		return
	}
	for _, p := range result.Pipelines {
		fields := []zap.Field{
			logger.StringField("ticker", p.Ticker),
			logger.StringField("last_state", string(p.LastState)),
			logger.StringField("proposal_status", p.ProposalStatus),
			logger.Int64Field("executed_trade_id", p.ExecutedTradeID),
		}
		if p.Err != nil {
			fields = append(fields, logger.ErrorField(p.Err))
		}
		appLogger.Info("Pipeline finished", fields...)
	}
}

func main() {
	rootCmd := &cobra.Command{Use: "trading-service"}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config-trading.yaml", "Path to the configuration file")

	rootCmd.AddCommand(serveCmd, runOnceCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing trading-service CLI: %s\n", err)
		os.Exit(1)
	}
}
