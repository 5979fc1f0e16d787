package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TradeStatusFilled    = "FILLED"
	TradeStatusPartial   = "PARTIAL"
	TradeStatusCancelled = "CANCELLED"
	TradeStatusRejected  = "REJECTED"
)

// ExecutedTrade records a broker-acknowledged order for a proposal.
// At most one exists per trading day.
type ExecutedTrade struct {
	ID              int64           `json:"id" gorm:"primaryKey"`
	TradeProposalID int64           `json:"trade_proposal_id" gorm:"uniqueIndex"`
	Ticker          string          `json:"ticker"`
	Action          string          `json:"action"`
	Quantity        int             `json:"quantity"`
	ExecutionPrice  decimal.Decimal `json:"execution_price" gorm:"type:numeric(18,4)"`
	BrokerOrderID   string          `json:"broker_order_id" gorm:"column:alpaca_order_id"`
	Reasoning       string          `json:"reasoning" gorm:"column:portfolio_manager_reasoning"`
	Status          string          `json:"status"`
	ExecutedAt      time.Time       `json:"executed_at" gorm:"index"`
}

func (ExecutedTrade) TableName() string {
	return "executed_trades"
}

// RebalanceTrade records a sell submitted to fund an approved buy. It is kept
// apart from ExecutedTrade so it never counts against the daily trade cap.
type RebalanceTrade struct {
	ID              int64           `json:"id" gorm:"primaryKey"`
	TradeProposalID int64           `json:"trade_proposal_id" gorm:"index"`
	Ticker          string          `json:"ticker"`
	Quantity        int             `json:"quantity"`
	ExecutionPrice  decimal.Decimal `json:"execution_price" gorm:"type:numeric(18,4)"`
	BrokerOrderID   string          `json:"broker_order_id"`
	Reasoning       string          `json:"reasoning"`
	Status          string          `json:"status"`
	ExecutedAt      time.Time       `json:"executed_at"`
}

func (RebalanceTrade) TableName() string {
	return "rebalance_trades"
}
