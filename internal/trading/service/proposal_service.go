package service

import (
	"context"
	"fmt"
	"strings"

	"golang-stock-trader/internal/entity"
	"golang-stock-trader/internal/trading/dto"
	"golang-stock-trader/internal/trading/repository"
	"golang-stock-trader/pkg/common"
	"golang-stock-trader/pkg/logger"
)

const proposalTemperature = 0.7

// ProposalService turns a debate into a PENDING trade proposal.
type ProposalService interface {
	Propose(ctx context.Context, ticker string, debate *entity.Debate, analysisEventID int64) (*entity.TradeProposal, error)
}

// NewProposalService creates a new ProposalService.
func NewProposalService(
	oracle repository.ReasoningOracle,
	proposalRepo repository.TradeProposalRepository,
	snapshots SnapshotService,
	log *logger.Logger,
) ProposalService {
	return &proposalService{
		oracle:       oracle,
		proposalRepo: proposalRepo,
		snapshots:    snapshots,
		logger:       log,
	}
}

type proposalService struct {
	oracle       repository.ReasoningOracle
	proposalRepo repository.TradeProposalRepository
	snapshots    SnapshotService
	logger       *logger.Logger
}

func (s *proposalService) Propose(ctx context.Context, ticker string, debate *entity.Debate, analysisEventID int64) (*entity.TradeProposal, error) {
	userCtx, err := repository.BuildUserContext(
		fmt.Sprintf("Propose a trade for %s based on this debate.", ticker),
		dto.ProposalContext{
			Ticker:       ticker,
			BullArgument: debate.BullArgument,
			BearArgument: debate.BearArgument,
			Consensus:    debate.Consensus,
		},
	)
	if err != nil {
		return nil, err
	}

	raw, err := s.oracle.Complete(ctx, repository.ProposalSystemPrompt, userCtx, proposalTemperature, true)
	if err != nil {
		return nil, fmt.Errorf("proposal oracle call failed: %w", err)
	}

	var decision dto.ProposalDecision
	if err := decodeDecision("proposal", raw, &decision); err != nil {
		return nil, err
	}

	action, quantity, confidence, reasoning := interpretProposal(decision)
	if action != entity.ActionHold && confidence < common.MinTradeConfidence {
		s.logger.WarnContext(ctx, "Proposal confidence below trading floor, forcing HOLD",
			logger.StringField("proposed_action", action),
			logger.IntField("confidence", confidence),
		)
		reasoning += fmt.Sprintf(" [Rejected: Confidence %d < %d required for trading]", confidence, common.MinTradeConfidence)
		action = entity.ActionHold
		quantity = 0
	}

	snapshot, err := s.snapshots.Latest(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve proposal price: %w", err)
	}

	debateID := debate.ID
	proposal := &entity.TradeProposal{
		Ticker:          ticker,
		Action:          action,
		Quantity:        quantity,
		ProposedPrice:   &snapshot.Price,
		Reasoning:       reasoning,
		Confidence:      confidence,
		AnalysisEventID: analysisEventID,
		DebateID:        &debateID,
		Status:          entity.ProposalStatusPending,
	}
	if err := s.proposalRepo.Create(ctx, proposal); err != nil {
		return nil, fmt.Errorf("failed to store trade proposal: %w", err)
	}

	s.logger.InfoContext(ctx, "Trade proposal created",
		logger.Int64Field("proposal_id", proposal.ID),
		logger.StringField("action", proposal.Action),
		logger.IntField("quantity", proposal.Quantity),
		logger.IntField("confidence", proposal.Confidence),
	)
	return proposal, nil
}

// interpretProposal normalizes the oracle decision. Unknown or missing
// actions become HOLD and HOLD never carries a quantity.
func interpretProposal(d dto.ProposalDecision) (action string, quantity, confidence int, reasoning string) {
	action = entity.ActionHold
	if d.Action != nil {
		switch a := strings.ToUpper(strings.TrimSpace(*d.Action)); a {
		case entity.ActionBuy, entity.ActionSell:
			action = a
		}
	}
	confidence = toConfidence(d.ConfidenceValue())
	quantity = toQuantity(d.Quantity)
	if action == entity.ActionHold || quantity == 0 {
		action = entity.ActionHold
		quantity = 0
	}
	return action, quantity, confidence, d.Reasoning
}
