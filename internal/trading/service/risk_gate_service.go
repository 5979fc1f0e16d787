package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang-stock-trader/internal/entity"
	"golang-stock-trader/internal/trading/config"
	"golang-stock-trader/internal/trading/dto"
	"golang-stock-trader/internal/trading/repository"
	"golang-stock-trader/pkg/common"
	"golang-stock-trader/pkg/logger"

	"github.com/shopspring/decimal"
)

const (
	riskTradeWindow      = 7 * 24 * time.Hour
	rebalanceNewsWindow  = 24 * time.Hour
	riskTemperature      = 0.5
	rebalanceTemperature = 0.5
)

// RiskGateService reviews PENDING proposals against the brokerage account.
type RiskGateService interface {
	// Review returns a decision even when it also returns an error; a failed
	// review is always a REJECT.
	Review(ctx context.Context, proposal *entity.TradeProposal) (*dto.RiskDecision, error)
	// ConfirmRebalance asks, with a narrow context, whether a position should
	// be sold to fund proposal. Any failure is a decline.
	ConfirmRebalance(ctx context.Context, proposal *entity.TradeProposal, positions []dto.Position, requiredCash decimal.Decimal) (dto.RebalanceOutcome, error)
}

// NewRiskGateService creates a new RiskGateService.
func NewRiskGateService(
	cfg *config.Config,
	oracle repository.ReasoningOracle,
	broker repository.BrokerGateway,
	tradeRepo repository.ExecutedTradeRepository,
	articleRepo repository.ArticleRepository,
	snapshots SnapshotService,
	log *logger.Logger,
) RiskGateService {
	return &riskGateService{
		cfg:         cfg,
		oracle:      oracle,
		broker:      broker,
		tradeRepo:   tradeRepo,
		articleRepo: articleRepo,
		snapshots:   snapshots,
		logger:      log,
		now:         time.Now,
	}
}

type riskGateService struct {
	cfg         *config.Config
	oracle      repository.ReasoningOracle
	broker      repository.BrokerGateway
	tradeRepo   repository.ExecutedTradeRepository
	articleRepo repository.ArticleRepository
	snapshots   SnapshotService
	logger      *logger.Logger
	now         func() time.Time
}

func rejectDecision(reasoning string) *dto.RiskDecision {
	return &dto.RiskDecision{Verdict: dto.VerdictReject, Reasoning: reasoning}
}

func (s *riskGateService) Review(ctx context.Context, proposal *entity.TradeProposal) (*dto.RiskDecision, error) {
	if proposal.Action != entity.ActionBuy {
		return rejectDecision(fmt.Sprintf("Only BUY proposals are tradable, got %s", proposal.Action)), nil
	}

	decision, err := s.review(ctx, proposal)
	if err != nil {
		s.logger.WarnContext(ctx, "Risk review failed, rejecting proposal",
			logger.Int64Field("proposal_id", proposal.ID), logger.ErrorField(err))
		return rejectDecision(fmt.Sprintf("Review failed: %v", err)), err
	}

	// The floor holds no matter what the oracle said.
	if proposal.Confidence < common.MinTradeConfidence {
		decision.Verdict = dto.VerdictReject
		decision.Reasoning += fmt.Sprintf(" [Rejected: Confidence %d < %d required]", proposal.Confidence, common.MinTradeConfidence)
	}
	if !decision.Approved() {
		decision.RebalanceTarget = ""
		decision.RebalanceQuantity = 0
	}

	s.logger.InfoContext(ctx, "Risk review completed",
		logger.Int64Field("proposal_id", proposal.ID),
		logger.StringField("verdict", decision.Verdict),
		logger.StringField("rebalance_target", decision.RebalanceTarget),
	)
	return decision, nil
}

func (s *riskGateService) review(ctx context.Context, proposal *entity.TradeProposal) (*dto.RiskDecision, error) {
	account, err := s.broker.GetAccount(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	positions, err := s.broker.ListPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}
	trades, err := s.tradeRepo.FindRecent(ctx, "", s.now().Add(-riskTradeWindow), s.cfg.Trading.MaxReviewTrades)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent trades: %w", err)
	}

	current := dto.FindPosition(positions, proposal.Ticker)
	price, err := s.resolvePrice(ctx, proposal, current)
	if err != nil {
		return nil, err
	}
	requiredCash := price.Mul(decimal.NewFromInt(int64(proposal.Quantity)))
	needsBuyingPower := requiredCash.GreaterThan(account.BuyingPower)

	userCtx, err := repository.BuildUserContext(
		fmt.Sprintf("Review this %s proposal for %s.", proposal.Action, proposal.Ticker),
		dto.RiskContext{
			Proposal:         toProposalView(proposal),
			Account:          *account,
			CurrentPosition:  current,
			Positions:        positions,
			RecentTrades:     toTradeViews(trades),
			NeedsBuyingPower: needsBuyingPower,
			RequiredCash:     requiredCash,
		},
	)
	if err != nil {
		return nil, err
	}

	raw, err := s.oracle.Complete(ctx, repository.RiskReviewSystemPrompt, userCtx, riskTemperature, true)
	if err != nil {
		return nil, fmt.Errorf("risk oracle call failed: %w", err)
	}
	var review dto.RiskReviewDecision
	if err := decodeDecision("risk_review", raw, &review); err != nil {
		return nil, err
	}

	decision := &dto.RiskDecision{
		Verdict:          dto.VerdictReject,
		Reasoning:        review.Reasoning,
		NeedsBuyingPower: needsBuyingPower,
		RequiredCash:     requiredCash,
	}
	if strings.EqualFold(strings.TrimSpace(review.VerdictValue()), dto.VerdictApprove) {
		decision.Verdict = dto.VerdictApprove
	}
	if !decision.Approved() {
		return decision, nil
	}

	quantity := proposal.Quantity
	if review.AdjustedQuantity != nil {
		adjusted := toQuantity(review.AdjustedQuantity)
		if adjusted == 0 {
			decision.Verdict = dto.VerdictReject
			decision.Reasoning += " [Rejected: adjusted quantity is zero]"
			return decision, nil
		}
		// The gate may shrink a trade but never grow it.
		if adjusted < quantity {
			quantity = adjusted
			decision.AdjustedQuantity = &adjusted
		}
	}
	requiredCash = price.Mul(decimal.NewFromInt(int64(quantity)))
	decision.RequiredCash = requiredCash
	decision.NeedsBuyingPower = requiredCash.GreaterThan(account.BuyingPower)

	var target string
	if review.PositionToSell != nil {
		target = normalizeTicker(*review.PositionToSell)
	}
	sellQty := toQuantity(review.SellQuantity)

	switch {
	case !decision.NeedsBuyingPower:
		if target != "" {
			s.logger.InfoContext(ctx, "Rebalance suggested but buying power is sufficient, ignoring it",
				logger.StringField("position_to_sell", target))
		}
	case target == "" || sellQty == 0:
		decision.Verdict = dto.VerdictReject
		decision.Reasoning += fmt.Sprintf(" [Rejected: required cash %s exceeds buying power %s]",
			requiredCash.StringFixed(2), account.BuyingPower.StringFixed(2))
	default:
		s.confirmRebalance(ctx, proposal, positions, decision, target, sellQty)
	}
	return decision, nil
}

// confirmRebalance attaches the sell to decision when the narrow
// confirmation agrees on the same holding, and rejects decision otherwise.
func (s *riskGateService) confirmRebalance(ctx context.Context, proposal *entity.TradeProposal, positions []dto.Position, decision *dto.RiskDecision, target string, sellQty int) {
	held := dto.FindPosition(positions, target)
	if held == nil || target == proposal.Ticker {
		decision.Verdict = dto.VerdictReject
		decision.Reasoning += fmt.Sprintf(" [Rejected: %s is not a holding that can fund the trade]", target)
		return
	}

	outcome, err := s.ConfirmRebalance(ctx, proposal, positions, decision.RequiredCash)
	if err != nil {
		s.logger.WarnContext(ctx, "Rebalance confirmation failed", logger.ErrorField(err))
	}
	switch {
	case outcome.Agrees(target):
		if heldQty := int(held.Qty.IntPart()); sellQty > heldQty {
			sellQty = heldQty
		}
		decision.RebalanceTarget = target
		decision.RebalanceQuantity = sellQty
	case outcome.Kind == dto.RebalanceDeclined:
		decision.Verdict = dto.VerdictReject
		decision.Reasoning += fmt.Sprintf(" [Rejected: rebalance of %s not confirmed]", target)
	default:
		decision.Verdict = dto.VerdictReject
		decision.Reasoning += fmt.Sprintf(" [Rejected: rebalance confirmation named %s instead of %s]", outcome.Target, target)
	}
}

// resolvePrice prefers the proposed price, then the held position's current
// price, then the latest snapshot.
func (s *riskGateService) resolvePrice(ctx context.Context, proposal *entity.TradeProposal, current *dto.Position) (decimal.Decimal, error) {
	if proposal.ProposedPrice != nil && proposal.ProposedPrice.IsPositive() {
		return *proposal.ProposedPrice, nil
	}
	if current != nil && current.CurrentPrice.IsPositive() {
		return current.CurrentPrice, nil
	}
	snapshot, err := s.snapshots.Latest(ctx, proposal.Ticker)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to resolve price: %w", err)
	}
	return snapshot.Price, nil
}

func (s *riskGateService) ConfirmRebalance(ctx context.Context, proposal *entity.TradeProposal, positions []dto.Position, requiredCash decimal.Decimal) (dto.RebalanceOutcome, error) {
	declined := dto.RebalanceOutcome{Kind: dto.RebalanceDeclined}

	since := s.now().Add(-rebalanceNewsWindow)
	candidates := make([]dto.RebalancePosition, 0, len(positions))
	for _, p := range positions {
		if p.Symbol == proposal.Ticker {
			continue
		}
		count, err := s.articleRepo.CountRecent(ctx, p.Symbol, since)
		if err != nil {
			return declined, fmt.Errorf("failed to count articles for %s: %w", p.Symbol, err)
		}
		articles, err := s.articleRepo.FindRecent(ctx, p.Symbol, since, s.cfg.Trading.MaxRebalanceTitles, false)
		if err != nil {
			return declined, fmt.Errorf("failed to load headlines for %s: %w", p.Symbol, err)
		}
		headlines := make([]string, 0, len(articles))
		for _, a := range articles {
			headlines = append(headlines, a.Title)
		}
		candidates = append(candidates, dto.RebalancePosition{
			Symbol:              p.Symbol,
			Qty:                 p.Qty,
			CurrentPrice:        p.CurrentPrice,
			MarketValue:         p.MarketValue,
			UnrealizedPL:        p.UnrealizedPL,
			AvgEntryPrice:       p.AvgEntryPrice,
			RecentArticlesCount: int(count),
			Headlines:           headlines,
		})
	}
	if len(candidates) == 0 {
		declined.Reasoning = "no other positions to sell"
		return declined, nil
	}

	userCtx, err := repository.BuildUserContext(
		fmt.Sprintf("Decide whether to sell a position to fund the %s purchase.", proposal.Ticker),
		dto.RebalanceContext{
			ProposedTrade:    toProposalView(proposal),
			RequiredCash:     requiredCash,
			CurrentPositions: candidates,
		},
	)
	if err != nil {
		return declined, err
	}

	raw, err := s.oracle.Complete(ctx, repository.RebalanceSystemPrompt, userCtx, rebalanceTemperature, true)
	if err != nil {
		return declined, fmt.Errorf("rebalance oracle call failed: %w", err)
	}
	var answer dto.RebalanceDecision
	if err := decodeDecision("rebalance", raw, &answer); err != nil {
		return declined, err
	}

	target := normalizeTicker(answer.PositionToSell)
	if !answer.ShouldRebalance || target == "" {
		declined.Reasoning = answer.Reasoning
		return declined, nil
	}
	return dto.RebalanceOutcome{
		Kind:      dto.RebalanceConfirmed,
		Target:    target,
		Quantity:  toQuantity(answer.SellQuantity),
		Reasoning: answer.Reasoning,
	}, nil
}
