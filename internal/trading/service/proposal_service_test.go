package service

import (
	"context"
	"math"
	"testing"

	"golang-stock-trader/internal/entity"
	"golang-stock-trader/internal/trading/repository"
	"golang-stock-trader/pkg/apperr"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPropose(t *testing.T) {
	debate := &entity.Debate{ID: 3, Ticker: "ACME", BullArgument: "bull case", BearArgument: "bear case", Consensus: "balanced"}

	tests := []struct {
		name          string
		reply         string
		wantAction    string
		wantQuantity  int
		wantConf      int
		wantReasoning string
	}{
		{
			name:          "confident buy",
			reply:         `{"action": "BUY", "quantity": 10, "reasoning": "strong", "confidence": 80}`,
			wantAction:    entity.ActionBuy,
			wantQuantity:  10,
			wantConf:      80,
			wantReasoning: "strong",
		},
		{
			name:          "low confidence buy is forced to hold",
			reply:         `{"action": "BUY", "quantity": 10, "reasoning": "maybe", "confidence": 65}`,
			wantAction:    entity.ActionHold,
			wantQuantity:  0,
			wantConf:      65,
			wantReasoning: "maybe [Rejected: Confidence 65 < 70 required for trading]",
		},
		{
			name:          "confidence_score key",
			reply:         `{"action": "sell", "quantity": 4.7, "reasoning": "exit", "confidence_score": 71}`,
			wantAction:    entity.ActionSell,
			wantQuantity:  4,
			wantConf:      71,
			wantReasoning: "exit",
		},
		{
			name:          "missing action defaults to hold",
			reply:         `{"quantity": 5, "reasoning": "?", "confidence": 90}`,
			wantAction:    entity.ActionHold,
			wantQuantity:  0,
			wantConf:      90,
			wantReasoning: "?",
		},
		{
			name:          "hold keeps no quantity",
			reply:         `{"action": "HOLD", "quantity": 3, "reasoning": "wait", "confidence": 30}`,
			wantAction:    entity.ActionHold,
			wantQuantity:  0,
			wantConf:      30,
			wantReasoning: "wait",
		},
		{
			name:          "huge quantity is capped",
			reply:         `{"action": "BUY", "quantity": 1e19, "reasoning": "all in", "confidence": 1e19}`,
			wantAction:    entity.ActionBuy,
			wantQuantity:  math.MaxInt32,
			wantConf:      100,
			wantReasoning: "all in",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oracle := newFakeOracle().on(repository.ProposalSystemPrompt, tt.reply)
			proposals := newLedger()
			svc := NewProposalService(oracle, proposals, &fakeSnapshots{prices: map[string]string{"ACME": "120.50"}}, nopLogger())

			proposal, err := svc.Propose(context.Background(), "ACME", debate, 9)
			require.NoError(t, err)

			assert.Equal(t, tt.wantAction, proposal.Action)
			assert.Equal(t, tt.wantQuantity, proposal.Quantity)
			assert.Equal(t, tt.wantConf, proposal.Confidence)
			assert.Equal(t, tt.wantReasoning, proposal.Reasoning)
			assert.Equal(t, entity.ProposalStatusPending, proposal.Status)
			assert.Equal(t, int64(9), proposal.AnalysisEventID)
			require.NotNil(t, proposal.DebateID)
			assert.Equal(t, int64(3), *proposal.DebateID)
			require.NotNil(t, proposal.ProposedPrice)
			assert.True(t, decimal.RequireFromString("120.50").Equal(*proposal.ProposedPrice))

			stored, err := proposals.GetByID(context.Background(), proposal.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantAction, stored.Action)

			calls := oracle.callsTo(repository.ProposalSystemPrompt)
			require.Len(t, calls, 1)
			assert.InDelta(t, 0.7, calls[0].Temperature, 0.001)
			assert.Contains(t, calls[0].User, "bull case")
		})
	}
}

func TestProposeFailuresCreateNothing(t *testing.T) {
	debate := &entity.Debate{ID: 3, Ticker: "ACME"}

	tests := []struct {
		name      string
		oracle    *fakeOracle
		snapshots *fakeSnapshots
		wantKind  apperr.Kind
	}{
		{
			name:      "malformed output",
			oracle:    newFakeOracle().on(repository.ProposalSystemPrompt, "BUY 10 shares"),
			snapshots: &fakeSnapshots{prices: map[string]string{"ACME": "1"}},
			wantKind:  apperr.KindMalformedOutput,
		},
		{
			name:      "oracle rate limited",
			oracle:    newFakeOracle().fail(repository.ProposalSystemPrompt, apperr.Errorf(apperr.KindRateLimited, "oracle", "slow down")),
			snapshots: &fakeSnapshots{prices: map[string]string{"ACME": "1"}},
			wantKind:  apperr.KindRateLimited,
		},
		{
			name:      "no price",
			oracle:    newFakeOracle().on(repository.ProposalSystemPrompt, `{"action": "BUY", "quantity": 1, "confidence": 90}`),
			snapshots: &fakeSnapshots{},
			wantKind:  apperr.KindUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proposals := newLedger()
			svc := NewProposalService(tt.oracle, proposals, tt.snapshots, nopLogger())

			proposal, err := svc.Propose(context.Background(), "ACME", debate, 1)
			require.Error(t, err)
			assert.Nil(t, proposal)
			assert.Equal(t, tt.wantKind, apperr.KindOf(err))
			assert.Empty(t, proposals.proposals)
		})
	}
}
