package dto

import (
	"github.com/shopspring/decimal"
)

const (
	VerdictApprove = "APPROVE"
	VerdictReject  = "REJECT"
)

// ScreeningResult is what the screening stage hands to the engine.
type ScreeningResult struct {
	Interesting bool
	EventID     int64
	Confidence  int
	Reasoning   string
}

// RiskDecision is the outcome of the risk gate.
type RiskDecision struct {
	Verdict           string
	Reasoning         string
	AdjustedQuantity  *int
	RebalanceTarget   string
	RebalanceQuantity int
	NeedsBuyingPower  bool
	RequiredCash      decimal.Decimal
}

func (d *RiskDecision) Approved() bool {
	return d != nil && d.Verdict == VerdictApprove
}

// HasRebalance reports whether a funding sell was approved with the decision.
func (d *RiskDecision) HasRebalance() bool {
	return d != nil && d.RebalanceTarget != "" && d.RebalanceQuantity > 0
}

type RebalanceOutcomeKind int

const (
	// RebalanceDeclined means no position should be sold, or the oracle gave
	// no usable answer.
	RebalanceDeclined RebalanceOutcomeKind = iota
	// RebalanceConfirmed means the oracle named a position to sell.
	RebalanceConfirmed
)

// RebalanceOutcome is the answer of the narrow rebalance confirmation.
type RebalanceOutcome struct {
	Kind      RebalanceOutcomeKind
	Target    string
	Quantity  int
	Reasoning string
}

// Agrees reports whether the outcome confirms selling exactly target.
func (o RebalanceOutcome) Agrees(target string) bool {
	return o.Kind == RebalanceConfirmed && o.Target == target
}

// CycleState names a state of the per-ticker pipeline.
type CycleState string

const (
	StateScreening  CycleState = "SCREENING"
	StateDebating   CycleState = "DEBATING"
	StateProposing  CycleState = "PROPOSING"
	StateRiskReview CycleState = "RISK_REVIEW"
	StateExecuting  CycleState = "EXECUTING"
	StateDone       CycleState = "DONE"
)

// PipelineResult summarizes one ticker's run through the pipeline.
type PipelineResult struct {
	Ticker          string
	LastState       CycleState
	ScreeningID     int64
	DebateID        int64
	ProposalID      int64
	ProposalStatus  string
	ExecutedTradeID int64
	// OrderPlaced is set when a buy reached the broker but its trade could
	// not be recorded.
	OrderPlaced bool
	Err         error
}

// Traded reports whether the pipeline placed a buy, recorded or not. Either
// way it counts against the daily cap.
func (r PipelineResult) Traded() bool {
	return r.ExecutedTradeID != 0 || r.OrderPlaced
}

// CycleResult summarizes one guarded cycle.
type CycleResult struct {
	Skipped    bool
	SkipReason string
	Pipelines  []PipelineResult
}
