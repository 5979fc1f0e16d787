package main

import (
	"context"
	"fmt"

	"golang-stock-trader/internal/trading/config"
	"golang-stock-trader/internal/trading/repository"
	"golang-stock-trader/internal/trading/service"
	"golang-stock-trader/pkg/lock"
	"golang-stock-trader/pkg/logger"
	"golang-stock-trader/pkg/postgres"
	"golang-stock-trader/pkg/ratelimit"
	"golang-stock-trader/pkg/redis"
	"golang-stock-trader/pkg/retry"
	"golang-stock-trader/pkg/telegram"
	"golang-stock-trader/pkg/utils"

	"google.golang.org/genai"
)

// application holds the wired trading service.
type application struct {
	db     *postgres.DB
	redis  *redis.Client
	engine service.WorkflowEngine
}

func (a *application) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

func toPolicy(p config.RetryPolicy) retry.Policy {
	return retry.Policy{
		MaxAttempts:     p.MaxAttempts,
		InitialInterval: p.InitialInterval,
		MaxInterval:     p.MaxInterval,
		Multiplier:      p.Multiplier,
	}
}

func newApplication(ctx context.Context, cfg *config.Config, appLogger *logger.Logger) (*application, error) {
	app := &application{}

	db, err := postgres.NewDB(postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		TimeZone:        cfg.Database.TimeZone,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		LogLevel:        cfg.Database.LogLevel,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	redisClient, err := redis.NewClient(redis.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}
	app.redis = redisClient

	oracle, err := newOracle(ctx, cfg, appLogger)
	if err != nil {
		app.Close()
		return nil, err
	}

	var marketData repository.MarketDataGateway
	switch cfg.MarketData.Provider {
	case "yahoo":
		marketData = repository.NewYahooFinanceRepository(toPolicy(cfg.Retry.MarketData), appLogger)
	default:
		marketData = repository.NewFinnhubRepository(cfg, toPolicy(cfg.Retry.MarketData), appLogger)
	}
	broker := repository.NewAlpacaRepository(cfg, toPolicy(cfg.Retry.Broker), appLogger)

	lockOpts := lock.Options{RetryInterval: cfg.Lock.RetryInterval, Timeout: cfg.Lock.Timeout}
	var locker lock.Locker
	switch cfg.Lock.Backend {
	case "redis":
		locker = lock.NewRedisLocker(redisClient.Client, lockOpts, cfg.Lock.TTL, appLogger)
	default:
		locker = lock.NewPostgresLocker(db.DB, lockOpts, appLogger)
	}

	var notifier telegram.Notifier = telegram.NewNoopNotifier()
	if cfg.Telegram.Enabled {
		notifier, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to initialize telegram notifier: %w", err)
		}
	}

	// Initialize repositories
	loc := utils.MarketLocation(cfg.Trading.TimeZone)
	snapshotRepo := repository.NewStockSnapshotRepository(db.DB)
	articleRepo := repository.NewArticleRepository(db.DB)
	eventRepo := repository.NewAnalysisEventRepository(db.DB)
	debateRepo := repository.NewDebateRepository(db.DB)
	proposalRepo := repository.NewTradeProposalRepository(db.DB)
	tradeRepo := repository.NewExecutedTradeRepository(db.DB, loc)
	publisher := repository.NewRedisTradeEventPublisher(redisClient.Client, cfg.Redis.StreamMaxLen)

	// Initialize services
	snapshots := service.NewSnapshotService(snapshotRepo, marketData, appLogger)
	riskGate := service.NewRiskGateService(cfg, oracle, broker, tradeRepo, articleRepo, snapshots, appLogger)
	stages := service.Stages{
		Screening: service.NewScreeningService(cfg, oracle, articleRepo, eventRepo, snapshots, appLogger),
		Debate:    service.NewDebateService(cfg, oracle, articleRepo, snapshotRepo, tradeRepo, debateRepo, appLogger),
		Proposal:  service.NewProposalService(oracle, proposalRepo, snapshots, appLogger),
		RiskGate:  riskGate,
		Execution: service.NewExecutionService(cfg, broker, proposalRepo, tradeRepo, riskGate, snapshots, publisher, notifier, appLogger),
	}
	app.engine = service.NewWorkflowEngine(cfg, locker, marketData, tradeRepo, snapshots, stages, notifier, appLogger)

	return app, nil
}

// newOracle builds the configured provider behind the shared rate limiter
// and retry policy.
func newOracle(ctx context.Context, cfg *config.Config, appLogger *logger.Logger) (repository.ReasoningOracle, error) {
	var provider repository.ReasoningOracle
	switch cfg.AI.Provider {
	case "gemini":
		genAiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey: cfg.Gemini.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Gemini AI client: %w", err)
		}
		provider, err = repository.NewGeminiOracleRepository(cfg, appLogger, genAiClient)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Gemini oracle: %w", err)
		}
	default:
		var err error
		provider, err = repository.NewOpenAIOracleRepository(ctx, cfg, appLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize OpenAI oracle: %w", err)
		}
	}

	limiter, err := ratelimit.NewLimiter(cfg.OracleRateLimit.MaxCalls, cfg.OracleRateLimit.Period)
	if err != nil {
		return nil, err
	}
	return repository.NewGuardedOracle(provider, limiter, toPolicy(cfg.Retry.Oracle), appLogger), nil
}
