package scheduler

import (
	"context"
	"fmt"

	"golang-stock-trader/internal/trading/config"
	"golang-stock-trader/internal/trading/service"
	"golang-stock-trader/pkg/logger"
	"golang-stock-trader/pkg/utils"

	"github.com/robfig/cron/v3"
)

// Scheduler triggers trading cycles on the configured cron schedule.
type Scheduler struct {
	cfg    *config.Config
	engine service.WorkflowEngine
	logger *logger.Logger
	cron   *cron.Cron
}

// NewScheduler creates a new Scheduler. Overlapping ticks are skipped while a
// cycle is still running.
func NewScheduler(cfg *config.Config, engine service.WorkflowEngine, log *logger.Logger) *Scheduler {
	cronLog := cronLogger{logger: log}
	c := cron.New(
		cron.WithLocation(utils.MarketLocation(cfg.Trading.TimeZone)),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog)),
	)
	return &Scheduler{
		cfg:    cfg,
		engine: engine,
		logger: log,
		cron:   c,
	}
}

// Start registers the cycle job, runs one cycle immediately and starts the
// cron loop. Cycles use ctx, so cancelling it stops a running cycle between
// stages.
func (s *Scheduler) Start(ctx context.Context) error {
	job := cron.NewChain(cron.SkipIfStillRunning(cronLogger{logger: s.logger})).Then(cron.FuncJob(func() {
		s.runCycle(ctx)
	}))
	if _, err := s.cron.AddJob(s.cfg.Trading.Schedule, job); err != nil {
		return fmt.Errorf("invalid trading schedule %q: %w", s.cfg.Trading.Schedule, err)
	}

	s.logger.Info("Starting trading scheduler",
		logger.StringField("schedule", s.cfg.Trading.Schedule),
		logger.Field("tickers", s.cfg.Trading.Tickers),
	)
	utils.GoSafe(job.Run)
	s.cron.Start()
	return nil
}

// Stop stops the cron loop and waits for a running cycle to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Trading scheduler stopped")
}

func (s *Scheduler) runCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	result, err := s.engine.RunCycle(ctx)
	if err != nil {
		s.logger.Error("Scheduled trading cycle failed", logger.ErrorField(err))
		return
	}
	traded := 0
	for _, p := range result.Pipelines {
		if p.Traded() {
			traded++
		}
	}
	s.logger.Info("Scheduled trading cycle completed",
		logger.Field("skipped", result.Skipped),
		logger.IntField("tickers_run", len(result.Pipelines)),
		logger.IntField("trades", traded),
	)
}

// cronLogger adapts the application logger to cron.Logger.
type cronLogger struct {
	logger *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
