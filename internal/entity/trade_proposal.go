package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	ActionBuy  = "BUY"
	ActionSell = "SELL"
	ActionHold = "HOLD"

	ProposalStatusPending  = "PENDING"
	ProposalStatusExecuted = "EXECUTED"
	ProposalStatusRejected = "REJECTED"
)

// TradeProposal is a candidate order. Status moves from PENDING to EXECUTED
// or REJECTED exactly once.
type TradeProposal struct {
	ID              int64            `json:"id" gorm:"primaryKey"`
	Ticker          string           `json:"ticker" gorm:"index"`
	Action          string           `json:"action"`
	Quantity        int              `json:"quantity"`
	ProposedPrice   *decimal.Decimal `json:"proposed_price,omitempty" gorm:"type:numeric(18,4)"`
	Reasoning       string           `json:"reasoning"`
	Confidence      int              `json:"confidence" gorm:"column:confidence_score"`
	AnalysisEventID int64            `json:"analysis_event_id"`
	DebateID        *int64           `json:"debate_id,omitempty"`
	Status          string           `json:"status"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

func (TradeProposal) TableName() string {
	return "trade_proposals"
}

// IsTerminal reports whether the proposal can no longer change status.
func (p *TradeProposal) IsTerminal() bool {
	return p.Status == ProposalStatusExecuted || p.Status == ProposalStatusRejected
}
