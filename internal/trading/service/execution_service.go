package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang-stock-trader/internal/entity"
	"golang-stock-trader/internal/trading/config"
	"golang-stock-trader/internal/trading/dto"
	"golang-stock-trader/internal/trading/repository"
	"golang-stock-trader/pkg/apperr"
	"golang-stock-trader/pkg/common"
	"golang-stock-trader/pkg/logger"
	"golang-stock-trader/pkg/retry"
	"golang-stock-trader/pkg/telegram"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrProposalNotPending is returned when execution is attempted on a proposal
// that has already been resolved.
var ErrProposalNotPending = errors.New("trade proposal is not pending")

// ExecutionService places approved trades with the broker and resolves proposals.
type ExecutionService interface {
	Execute(ctx context.Context, proposal *entity.TradeProposal, decision *dto.RiskDecision) (*entity.ExecutedTrade, error)
	// Reject closes a PENDING proposal as REJECTED. Resolved proposals are
	// left untouched.
	Reject(ctx context.Context, proposal *entity.TradeProposal, reason string) error
	// Reconcile settles PENDING proposals created at or after since whose buy
	// already reached the broker, recording the missing trade and marking
	// them EXECUTED. It returns how many proposals were settled.
	Reconcile(ctx context.Context, since time.Time) (int, error)
}

// NewExecutionService creates a new ExecutionService.
func NewExecutionService(
	cfg *config.Config,
	broker repository.BrokerGateway,
	proposalRepo repository.TradeProposalRepository,
	tradeRepo repository.ExecutedTradeRepository,
	riskGate RiskGateService,
	snapshots SnapshotService,
	publisher repository.TradeEventPublisher,
	notifier telegram.Notifier,
	log *logger.Logger,
) ExecutionService {
	return &executionService{
		cfg:          cfg,
		broker:       broker,
		proposalRepo: proposalRepo,
		tradeRepo:    tradeRepo,
		riskGate:     riskGate,
		snapshots:    snapshots,
		publisher:    publisher,
		notifier:     notifier,
		logger:       log,
		ledgerRetry:  defaultLedgerRetry,
		now:          time.Now,
		sleep:        sleepContext,
	}
}

// defaultLedgerRetry covers the writes that follow a placed order.
var defaultLedgerRetry = retry.Policy{
	MaxAttempts:     3,
	InitialInterval: 500 * time.Millisecond,
	MaxInterval:     2 * time.Second,
	Multiplier:      2,
}

type executionService struct {
	cfg          *config.Config
	broker       repository.BrokerGateway
	proposalRepo repository.TradeProposalRepository
	tradeRepo    repository.ExecutedTradeRepository
	riskGate     RiskGateService
	snapshots    SnapshotService
	publisher    repository.TradeEventPublisher
	notifier     telegram.Notifier
	logger       *logger.Logger
	ledgerRetry  retry.Policy
	now          func() time.Time
	sleep        func(ctx context.Context, d time.Duration) error
}

// ClientOrderID derives a deterministic broker client order id for one leg
// of a proposal, so a retried submission can never place a second order.
func ClientOrderID(proposalID int64, leg string) string {
	name := fmt.Sprintf("trade-proposal:%d", proposalID)
	if leg != "" {
		name += ":" + leg
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

func (s *executionService) Execute(ctx context.Context, proposal *entity.TradeProposal, decision *dto.RiskDecision) (*entity.ExecutedTrade, error) {
	current, err := s.proposalRepo.GetByID(ctx, proposal.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload proposal: %w", err)
	}
	if current == nil {
		return nil, apperr.Errorf(apperr.KindNotFound, "execute", "trade proposal %d not found", proposal.ID)
	}
	if current.Status != entity.ProposalStatusPending {
		s.logger.WarnContext(ctx, "Refusing to execute resolved proposal",
			logger.Int64Field("proposal_id", current.ID),
			logger.StringField("status", current.Status),
		)
		return nil, fmt.Errorf("proposal %d is %s: %w", current.ID, current.Status, ErrProposalNotPending)
	}
	defer func() { proposal.Status = current.Status }()

	if !decision.Approved() {
		return nil, s.Reject(ctx, current, decision.Reasoning)
	}
	if err := checkExecutable(current); err != nil {
		if rejectErr := s.Reject(ctx, current, err.Error()); rejectErr != nil {
			s.logger.ErrorContext(ctx, "Failed to reject proposal", logger.ErrorField(rejectErr))
		}
		return nil, err
	}

	trade, err := s.execute(ctx, current, decision)
	if apperr.Is(err, apperr.KindOrderUnrecorded) {
		// The order is live at the broker, so the proposal stays PENDING for
		// Reconcile to settle.
		s.logger.ErrorContext(ctx, "Order placed but not recorded",
			logger.Int64Field("proposal_id", current.ID),
			logger.ErrorField(err),
		)
		s.notify(ctx, telegram.FormatErrorAlertMessage(s.now(), "order_unrecorded", err.Error(), current.Ticker))
		return nil, err
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Trade execution failed",
			logger.Int64Field("proposal_id", current.ID),
			logger.ErrorField(err),
			logger.StringField("error_kind", apperr.KindOf(err).String()),
		)
		if rejectErr := s.Reject(ctx, current, fmt.Sprintf("Execution failed: %v", err)); rejectErr != nil {
			s.logger.ErrorContext(ctx, "Failed to reject proposal", logger.ErrorField(rejectErr))
		}
		s.notify(ctx, telegram.FormatErrorAlertMessage(s.now(), "trade_execution", err.Error(), current.Ticker))
		return nil, err
	}
	return trade, nil
}

// checkExecutable re-asserts the trading floor at the last point before an
// order leaves the process.
func checkExecutable(p *entity.TradeProposal) error {
	if p.Action != entity.ActionBuy {
		return apperr.Errorf(apperr.KindInvariant, "execute", "proposal %d has non-tradable action %s", p.ID, p.Action)
	}
	if p.Confidence < common.MinTradeConfidence {
		return apperr.Errorf(apperr.KindInvariant, "execute", "proposal %d confidence %d is below %d", p.ID, p.Confidence, common.MinTradeConfidence)
	}
	return nil
}

func (s *executionService) execute(ctx context.Context, proposal *entity.TradeProposal, decision *dto.RiskDecision) (*entity.ExecutedTrade, error) {
	quantity := proposal.Quantity
	if decision.AdjustedQuantity != nil {
		quantity = *decision.AdjustedQuantity
	}
	if quantity <= 0 {
		return nil, apperr.Errorf(apperr.KindInvalidInput, "execute", "quantity %d is not tradable", quantity)
	}

	if decision.HasRebalance() {
		if err := s.rebalance(ctx, proposal, decision, quantity); err != nil {
			return nil, fmt.Errorf("rebalance aborted: %w", err)
		}
	}

	order, err := s.broker.SubmitOrder(ctx, dto.OrderRequest{
		Symbol:        proposal.Ticker,
		Qty:           quantity,
		Side:          dto.OrderSideBuy,
		Type:          dto.OrderTypeMarket,
		TimeInForce:   dto.TimeInForceDay,
		ClientOrderID: ClientOrderID(proposal.ID, ""),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to submit order: %w", err)
	}
	status := mapOrderStatus(order.Status)
	if status == entity.TradeStatusRejected || status == entity.TradeStatusCancelled {
		return nil, apperr.Errorf(apperr.KindInvalidInput, "execute", "broker order %s ended as %s", order.ID, order.Status)
	}

	trade := &entity.ExecutedTrade{
		TradeProposalID: proposal.ID,
		Ticker:          proposal.Ticker,
		Action:          proposal.Action,
		Quantity:        quantity,
		ExecutionPrice:  executionPrice(order, proposal),
		BrokerOrderID:   order.ID,
		Reasoning:       decision.Reasoning,
		Status:          status,
		ExecutedAt:      s.now(),
	}
	if err := s.recordTrade(ctx, trade); err != nil {
		return nil, apperr.New(apperr.KindOrderUnrecorded, "execute",
			fmt.Errorf("broker order %s for %s was placed but not recorded: %w", order.ID, proposal.Ticker, err))
	}
	s.markExecuted(ctx, proposal)

	s.logger.InfoContext(ctx, "Trade executed",
		logger.Int64Field("trade_id", trade.ID),
		logger.StringField("order_id", order.ID),
		logger.IntField("quantity", quantity),
		logger.StringField("price", trade.ExecutionPrice.String()),
		logger.StringField("status", status),
	)

	if err := s.publisher.PublishTradeExecuted(ctx, trade); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish trade event", logger.ErrorField(err))
	}
	s.notify(ctx, telegram.FormatExecutedTradeMessage(trade, proposal.Confidence))
	return trade, nil
}

func (s *executionService) recordTrade(ctx context.Context, trade *entity.ExecutedTrade) error {
	return s.ledgerRetry.Do(ctx, func(ctx context.Context) error {
		if err := s.tradeRepo.Create(ctx, trade); err != nil {
			return apperr.New(apperr.KindTransient, "record_trade", err)
		}
		return nil
	})
}

// markExecuted resolves the proposal once its trade is recorded. A failure
// is alerted and left for Reconcile, which finds the trade row next cycle.
func (s *executionService) markExecuted(ctx context.Context, proposal *entity.TradeProposal) {
	var resolved bool
	err := s.ledgerRetry.Do(ctx, func(ctx context.Context) error {
		var err error
		resolved, err = s.proposalRepo.Resolve(ctx, proposal.ID, entity.ProposalStatusExecuted)
		if err != nil {
			return apperr.New(apperr.KindTransient, "resolve_proposal", err)
		}
		return nil
	})
	switch {
	case err != nil:
		s.logger.ErrorContext(ctx, "Failed to mark proposal executed",
			logger.Int64Field("proposal_id", proposal.ID), logger.ErrorField(err))
		s.notify(ctx, telegram.FormatErrorAlertMessage(s.now(), "proposal_unresolved", err.Error(), proposal.Ticker))
		return
	case !resolved:
		s.logger.WarnContext(ctx, "Proposal was resolved concurrently", logger.Int64Field("proposal_id", proposal.ID))
	}
	proposal.Status = entity.ProposalStatusExecuted
}

func (s *executionService) Reconcile(ctx context.Context, since time.Time) (int, error) {
	pending, err := s.proposalRepo.ListPending(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending proposals: %w", err)
	}

	settled := 0
	for i := range pending {
		proposal := &pending[i]
		if proposal.Action != entity.ActionBuy {
			continue
		}
		ok, err := s.reconcile(logger.WithTicker(ctx, proposal.Ticker), proposal)
		if err != nil {
			return settled, fmt.Errorf("failed to reconcile proposal %d: %w", proposal.ID, err)
		}
		if ok {
			settled++
		}
	}
	return settled, nil
}

func (s *executionService) reconcile(ctx context.Context, proposal *entity.TradeProposal) (bool, error) {
	trade, err := s.tradeRepo.GetByProposalID(ctx, proposal.ID)
	if err != nil {
		return false, err
	}
	if trade == nil {
		order, err := s.broker.GetOrderByClientID(ctx, ClientOrderID(proposal.ID, ""))
		if apperr.Is(err, apperr.KindNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}

		status := mapOrderStatus(order.Status)
		if status == entity.TradeStatusRejected || status == entity.TradeStatusCancelled {
			return false, s.Reject(ctx, proposal, fmt.Sprintf("Broker order %s ended as %s", order.ID, order.Status))
		}

		quantity := proposal.Quantity
		if filled := int(order.FilledQty.IntPart()); filled > 0 {
			quantity = filled
		}
		trade = &entity.ExecutedTrade{
			TradeProposalID: proposal.ID,
			Ticker:          proposal.Ticker,
			Action:          proposal.Action,
			Quantity:        quantity,
			ExecutionPrice:  executionPrice(order, proposal),
			BrokerOrderID:   order.ID,
			Reasoning:       fmt.Sprintf("Recovered from broker order %s", order.ID),
			Status:          status,
			ExecutedAt:      s.now(),
		}
		if err := s.recordTrade(ctx, trade); err != nil {
			return false, err
		}
	}

	resolved, err := s.proposalRepo.Resolve(ctx, proposal.ID, entity.ProposalStatusExecuted)
	if err != nil {
		return false, err
	}
	if resolved {
		proposal.Status = entity.ProposalStatusExecuted
	}
	s.logger.WarnContext(ctx, "Settled proposal with an unrecorded broker order",
		logger.Int64Field("proposal_id", proposal.ID),
		logger.Int64Field("trade_id", trade.ID),
		logger.StringField("order_id", trade.BrokerOrderID),
	)
	return true, nil
}

// rebalance sells the confirmed holding before the buy. The account and the
// confirmation are checked again because both may have changed since review.
func (s *executionService) rebalance(ctx context.Context, proposal *entity.TradeProposal, decision *dto.RiskDecision, quantity int) error {
	account, err := s.broker.GetAccount(ctx)
	if err != nil {
		return fmt.Errorf("failed to get account: %w", err)
	}
	price, err := s.priceOf(ctx, proposal)
	if err != nil {
		return err
	}
	required := price.Mul(decimal.NewFromInt(int64(quantity)))
	if !required.GreaterThan(account.BuyingPower) {
		s.logger.InfoContext(ctx, "Buying power now sufficient, skipping rebalance",
			logger.StringField("required_cash", required.String()),
			logger.StringField("buying_power", account.BuyingPower.String()),
		)
		return nil
	}

	positions, err := s.broker.ListPositions(ctx)
	if err != nil {
		return fmt.Errorf("failed to list positions: %w", err)
	}
	held := dto.FindPosition(positions, decision.RebalanceTarget)
	if held == nil {
		return apperr.Errorf(apperr.KindNotFound, "rebalance", "position %s is no longer held", decision.RebalanceTarget)
	}

	outcome, err := s.riskGate.ConfirmRebalance(ctx, proposal, positions, required)
	if err != nil {
		return fmt.Errorf("rebalance confirmation failed: %w", err)
	}
	if outcome.Kind == dto.RebalanceDeclined {
		return apperr.Errorf(apperr.KindInvariant, "rebalance", "confirmation declined to sell %s: %s", decision.RebalanceTarget, outcome.Reasoning)
	}
	if !outcome.Agrees(decision.RebalanceTarget) {
		return apperr.Errorf(apperr.KindInvariant, "rebalance", "confirmation named %s instead of %s", outcome.Target, decision.RebalanceTarget)
	}

	sellQty := decision.RebalanceQuantity
	if heldQty := int(held.Qty.IntPart()); sellQty > heldQty {
		sellQty = heldQty
	}
	if sellQty <= 0 {
		return apperr.Errorf(apperr.KindInvalidInput, "rebalance", "no whole shares of %s to sell", held.Symbol)
	}

	order, err := s.broker.SubmitOrder(ctx, dto.OrderRequest{
		Symbol:        held.Symbol,
		Qty:           sellQty,
		Side:          dto.OrderSideSell,
		Type:          dto.OrderTypeMarket,
		TimeInForce:   dto.TimeInForceDay,
		ClientOrderID: ClientOrderID(proposal.ID, "rebalance"),
	})
	if err != nil {
		return fmt.Errorf("failed to submit rebalance sell: %w", err)
	}
	status := mapOrderStatus(order.Status)
	if status == entity.TradeStatusRejected || status == entity.TradeStatusCancelled {
		return apperr.Errorf(apperr.KindInvalidInput, "rebalance", "sell order %s ended as %s", order.ID, order.Status)
	}

	sellPrice := held.CurrentPrice
	if order.FilledAvgPrice != nil {
		sellPrice = *order.FilledAvgPrice
	}
	sell := &entity.RebalanceTrade{
		TradeProposalID: proposal.ID,
		Ticker:          held.Symbol,
		Quantity:        sellQty,
		ExecutionPrice:  sellPrice,
		BrokerOrderID:   order.ID,
		Reasoning:       outcome.Reasoning,
		Status:          status,
		ExecutedAt:      s.now(),
	}
	// The sell already happened at the broker, so the buy goes ahead even
	// when the ledger write fails.
	if err := s.tradeRepo.CreateRebalance(ctx, sell); err != nil {
		s.logger.ErrorContext(ctx, "Failed to record rebalance sell",
			logger.StringField("order_id", order.ID), logger.ErrorField(err))
	}
	s.logger.InfoContext(ctx, "Rebalance sell submitted",
		logger.StringField("sold_ticker", held.Symbol),
		logger.IntField("quantity", sellQty),
		logger.StringField("order_id", order.ID),
	)
	s.notify(ctx, telegram.FormatRebalanceMessage(sell, proposal.Ticker))

	return s.sleep(ctx, s.cfg.Trading.SettlementDelay)
}

func (s *executionService) priceOf(ctx context.Context, proposal *entity.TradeProposal) (decimal.Decimal, error) {
	if proposal.ProposedPrice != nil && proposal.ProposedPrice.IsPositive() {
		return *proposal.ProposedPrice, nil
	}
	snapshot, err := s.snapshots.Latest(ctx, proposal.Ticker)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to resolve price: %w", err)
	}
	return snapshot.Price, nil
}

func (s *executionService) Reject(ctx context.Context, proposal *entity.TradeProposal, reason string) error {
	resolved, err := s.proposalRepo.Resolve(ctx, proposal.ID, entity.ProposalStatusRejected)
	if err != nil {
		return fmt.Errorf("failed to reject proposal %d: %w", proposal.ID, err)
	}
	if resolved {
		proposal.Status = entity.ProposalStatusRejected
	}
	s.logger.InfoContext(ctx, "Trade proposal rejected",
		logger.Int64Field("proposal_id", proposal.ID),
		logger.StringField("reason", reason),
		logger.Field("resolved", resolved),
	)
	return nil
}

func (s *executionService) notify(ctx context.Context, text string) {
	if err := s.notifier.SendMessage(text); err != nil {
		s.logger.WarnContext(ctx, "Failed to send telegram notification", logger.ErrorField(err))
	}
}

// mapOrderStatus maps broker order states onto the ledger's trade status.
// Accepted but unfilled market orders count as filled.
func mapOrderStatus(status string) string {
	switch strings.ToLower(status) {
	case "partially_filled":
		return entity.TradeStatusPartial
	case "canceled", "cancelled", "expired", "done_for_day":
		return entity.TradeStatusCancelled
	case "rejected", "suspended":
		return entity.TradeStatusRejected
	default:
		return entity.TradeStatusFilled
	}
}

func executionPrice(order *dto.OrderResult, proposal *entity.TradeProposal) decimal.Decimal {
	if order.FilledAvgPrice != nil && order.FilledAvgPrice.IsPositive() {
		return *order.FilledAvgPrice
	}
	if proposal.ProposedPrice != nil {
		return *proposal.ProposedPrice
	}
	return decimal.Zero
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
