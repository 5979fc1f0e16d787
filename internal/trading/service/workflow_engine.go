package service

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"golang-stock-trader/internal/entity"
	"golang-stock-trader/internal/trading/config"
	"golang-stock-trader/internal/trading/dto"
	"golang-stock-trader/internal/trading/repository"
	"golang-stock-trader/pkg/apperr"
	"golang-stock-trader/pkg/logger"
	"golang-stock-trader/pkg/lock"
	"golang-stock-trader/pkg/telegram"
	"golang-stock-trader/pkg/utils"
)

const (
	SkipReasonMarketClosed = "market closed"
	SkipReasonDailyCap     = "daily trade cap reached"
)

// WorkflowEngine drives tickers through screening, debate, proposal, risk
// review and execution.
type WorkflowEngine interface {
	// RunCycle checks the market and the daily cap, then runs every
	// configured ticker, all while holding the cycle lock.
	RunCycle(ctx context.Context) (*dto.CycleResult, error)
	// RunPipeline runs one ticker to completion. Failures are reported on
	// the result and never escape as panics.
	RunPipeline(ctx context.Context, ticker string) dto.PipelineResult
}

// Stages groups the pipeline stages used by the engine.
type Stages struct {
	Screening ScreeningService
	Debate    DebateService
	Proposal  ProposalService
	RiskGate  RiskGateService
	Execution ExecutionService
}

// NewWorkflowEngine creates a new WorkflowEngine.
func NewWorkflowEngine(
	cfg *config.Config,
	locker lock.Locker,
	marketData repository.MarketDataGateway,
	tradeRepo repository.ExecutedTradeRepository,
	snapshots SnapshotService,
	stages Stages,
	notifier telegram.Notifier,
	log *logger.Logger,
) WorkflowEngine {
	return &workflowEngine{
		cfg:        cfg,
		locker:     locker,
		marketData: marketData,
		tradeRepo:  tradeRepo,
		snapshots:  snapshots,
		stages:     stages,
		notifier:   notifier,
		logger:     log,
		now:        time.Now,
		sleep:      sleepContext,
	}
}

type workflowEngine struct {
	cfg        *config.Config
	locker     lock.Locker
	marketData repository.MarketDataGateway
	tradeRepo  repository.ExecutedTradeRepository
	snapshots  SnapshotService
	stages     Stages
	notifier   telegram.Notifier
	logger     *logger.Logger
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
}

func (e *workflowEngine) RunCycle(ctx context.Context) (*dto.CycleResult, error) {
	result := &dto.CycleResult{}
	started := e.now()

	err := e.locker.WithLock(ctx, e.cfg.Lock.Name, func(ctx context.Context) error {
		return e.runLocked(ctx, result)
	})
	if err != nil {
		if apperr.Is(err, apperr.KindLockTimeout) {
			e.logger.Warn("Could not acquire trading cycle lock, aborting cycle", logger.ErrorField(err))
		} else {
			e.logger.Error("Trading cycle failed", logger.ErrorField(err))
		}
		if sendErr := e.notifier.SendMessage(telegram.FormatErrorAlertMessage(e.now(), "trading_cycle", err.Error(), "")); sendErr != nil {
			e.logger.Warn("Failed to send telegram notification", logger.ErrorField(sendErr))
		}
		return result, err
	}

	e.logger.Info("Trading cycle finished",
		logger.Field("skipped", result.Skipped),
		logger.StringField("skip_reason", result.SkipReason),
		logger.IntField("pipelines", len(result.Pipelines)),
		logger.Field("duration", e.now().Sub(started).String()),
	)
	return result, nil
}

func (e *workflowEngine) runLocked(ctx context.Context, result *dto.CycleResult) error {
	if !e.marketData.IsMarketOpen(ctx, e.cfg.Trading.Exchange) {
		result.Skipped, result.SkipReason = true, SkipReasonMarketClosed
		e.logger.Info("Market is closed, skipping trading cycle")
		return nil
	}

	now := e.now()
	settled, err := e.stages.Execution.Reconcile(ctx, utils.StartOfDay(now, utils.MarketLocation(e.cfg.Trading.TimeZone)))
	if err != nil {
		return fmt.Errorf("failed to reconcile pending proposals: %w", err)
	}
	if settled > 0 {
		e.logger.Warn("Recorded trades left over from an earlier cycle", logger.IntField("settled", settled))
	}

	traded, err := e.tradeRepo.HasTradedToday(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to check daily trade cap: %w", err)
	}
	if traded {
		result.Skipped, result.SkipReason = true, SkipReasonDailyCap
		e.logger.Info("Daily trade cap reached, skipping trading cycle")
		return nil
	}

	for _, ticker := range e.cfg.Trading.Tickers {
		if _, err := e.snapshots.Refresh(logger.WithTicker(ctx, ticker), ticker); err != nil {
			e.logger.WarnContext(logger.WithTicker(ctx, ticker), "Failed to refresh snapshot", logger.ErrorField(err))
		}
	}

	for i, ticker := range e.cfg.Trading.Tickers {
		if i > 0 {
			if err := e.sleep(ctx, e.cfg.Trading.TickerDelay); err != nil {
				return err
			}
		}

		pipeline := e.RunPipeline(ctx, ticker)
		result.Pipelines = append(result.Pipelines, pipeline)
		if pipeline.Traded() {
			e.logger.Info("Order placed, skipping remaining tickers for today",
				logger.StringField("ticker", ticker),
				logger.Int64Field("trade_id", pipeline.ExecutedTradeID),
				logger.Field("recorded", pipeline.ExecutedTradeID != 0),
			)
			break
		}
	}
	return nil
}

func (e *workflowEngine) RunPipeline(ctx context.Context, ticker string) (result dto.PipelineResult) {
	ctx = logger.WithTicker(ctx, ticker)
	result = dto.PipelineResult{Ticker: ticker, LastState: dto.StateScreening}
	started := e.now()

	defer func() {
		if r := recover(); r != nil {
			result.Err = fmt.Errorf("panic in %s: %v", result.LastState, r)
			e.logger.ErrorContext(ctx, "Recovered from pipeline panic",
				logger.Field("panic", r),
				logger.StringField("stack", string(debug.Stack())),
			)
		}
	}()

	var (
		screening *dto.ScreeningResult
		debate    *entity.Debate
		proposal  *entity.TradeProposal
		decision  *dto.RiskDecision
		err       error
	)

	state := dto.StateScreening
	for state != dto.StateDone {
		result.LastState = state
		next := dto.StateDone
		stageStarted := e.now()

		switch state {
		case dto.StateScreening:
			screening, err = e.stages.Screening.Screen(ctx, ticker)
			if screening != nil {
				result.ScreeningID = screening.EventID
			}
			if err == nil && screening.Interesting {
				next = dto.StateDebating
			}

		case dto.StateDebating:
			debate, err = e.stages.Debate.Debate(ctx, ticker, screening.EventID)
			if err == nil {
				result.DebateID = debate.ID
				next = dto.StateProposing
			}

		case dto.StateProposing:
			proposal, err = e.stages.Proposal.Propose(ctx, ticker, debate, screening.EventID)
			if err != nil {
				break
			}
			result.ProposalID = proposal.ID
			if proposal.Action != entity.ActionBuy {
				err = e.stages.Execution.Reject(ctx, proposal, fmt.Sprintf("%s proposals are not traded", proposal.Action))
				break
			}
			next = dto.StateRiskReview

		case dto.StateRiskReview:
			decision, err = e.stages.RiskGate.Review(ctx, proposal)
			if err != nil || !decision.Approved() {
				reason := "risk review rejected the proposal"
				if decision != nil {
					reason = decision.Reasoning
				}
				if rejectErr := e.stages.Execution.Reject(ctx, proposal, reason); rejectErr != nil && err == nil {
					err = rejectErr
				}
				break
			}
			next = dto.StateExecuting

		case dto.StateExecuting:
			var trade *entity.ExecutedTrade
			trade, err = e.stages.Execution.Execute(ctx, proposal, decision)
			if err == nil && trade != nil {
				result.ExecutedTradeID = trade.ID
			}
			result.OrderPlaced = apperr.Is(err, apperr.KindOrderUnrecorded)
		}

		e.logger.DebugContext(ctx, "Pipeline stage finished",
			logger.StringField("state", string(state)),
			logger.Field("duration", e.now().Sub(stageStarted).String()),
		)
		if err != nil {
			result.Err = fmt.Errorf("%s: %w", state, err)
			e.logger.ErrorContext(ctx, "Pipeline stage failed",
				logger.StringField("state", string(state)),
				logger.ErrorField(err),
			)
			next = dto.StateDone
		}
		state = next
	}

	if proposal != nil {
		result.ProposalStatus = proposal.Status
	}
	e.logger.InfoContext(ctx, "Pipeline finished",
		logger.StringField("last_state", string(result.LastState)),
		logger.StringField("proposal_status", result.ProposalStatus),
		logger.Field("traded", result.Traded()),
		logger.Field("duration", e.now().Sub(started).String()),
	)
	return result
}
