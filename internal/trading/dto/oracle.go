package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// SnapshotView is the price context handed to the oracle.
type SnapshotView struct {
	Price              decimal.Decimal  `json:"price"`
	Volume             int64            `json:"volume"`
	High               *decimal.Decimal `json:"high,omitempty"`
	Low                *decimal.Decimal `json:"low,omitempty"`
	Open               *decimal.Decimal `json:"open,omitempty"`
	PreviousClose      *decimal.Decimal `json:"previous_close,omitempty"`
	PriceChange        decimal.Decimal  `json:"price_change"`
	PriceChangePercent decimal.Decimal  `json:"price_change_percent"`
	MarketCap          *int64           `json:"market_cap,omitempty"`
	PERatio            *decimal.Decimal `json:"pe_ratio,omitempty"`
	CapturedAt         time.Time        `json:"captured_at"`
}

type Headline struct {
	Title     string    `json:"title"`
	Timestamp time.Time `json:"timestamp"`
}

// ScreeningContext is everything the screening call sees: headlines only.
type ScreeningContext struct {
	Ticker        string        `json:"ticker"`
	Headlines     []Headline    `json:"headlines"`
	HeadlineCount int           `json:"headline_count"`
	Snapshot      *SnapshotView `json:"snapshot,omitempty"`
}

// ScreeningDecision is the oracle's screening answer. Pointer fields are
// required and nil when the oracle omitted them.
type ScreeningDecision struct {
	IsInteresting *bool    `json:"is_interesting"`
	Reasoning     string   `json:"reasoning"`
	Confidence    *float64 `json:"confidence"`
}

type ArticleView struct {
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type TradeView struct {
	Ticker         string          `json:"ticker"`
	Action         string          `json:"action"`
	Quantity       int             `json:"quantity"`
	ExecutionPrice decimal.Decimal `json:"execution_price"`
	ExecutedAt     time.Time       `json:"executed_at"`
}

// DebateContext is shared by the bull and bear calls.
type DebateContext struct {
	Ticker       string           `json:"ticker"`
	CurrentPrice *decimal.Decimal `json:"current_price,omitempty"`
	Snapshot     *SnapshotView    `json:"snapshot,omitempty"`
	Articles     []ArticleView    `json:"articles"`
	ArticleCount int              `json:"article_count"`
	RecentTrades []TradeView      `json:"recent_trades"`
}

// ConsensusContext is what the synthesis call sees.
type ConsensusContext struct {
	Ticker       string `json:"ticker"`
	BullArgument string `json:"bull_argument"`
	BearArgument string `json:"bear_argument"`
}

// DebateRound is one bull/bear exchange stored on the transcript.
type DebateRound struct {
	Bull string `json:"bull"`
	Bear string `json:"bear"`
}

type DebateTranscript struct {
	Rounds []DebateRound `json:"rounds"`
}

// ProposalContext is built only from the debate, never from raw news.
type ProposalContext struct {
	Ticker       string `json:"ticker"`
	BullArgument string `json:"bull_argument"`
	BearArgument string `json:"bear_argument"`
	Consensus    string `json:"consensus"`
}

// ProposalDecision is the oracle's trade proposal.
type ProposalDecision struct {
	Action          *string  `json:"action"`
	Quantity        *float64 `json:"quantity"`
	Reasoning       string   `json:"reasoning"`
	Confidence      *float64 `json:"confidence"`
	ConfidenceScore *float64 `json:"confidence_score"`
}

// ConfidenceValue returns whichever confidence key the oracle used.
func (d ProposalDecision) ConfidenceValue() *float64 {
	if d.Confidence != nil {
		return d.Confidence
	}
	return d.ConfidenceScore
}

type ProposalView struct {
	ID            int64            `json:"id"`
	Ticker        string           `json:"ticker"`
	Action        string           `json:"action"`
	Quantity      int              `json:"quantity"`
	Reasoning     string           `json:"reasoning"`
	Confidence    int              `json:"confidence"`
	ProposedPrice *decimal.Decimal `json:"proposed_price"`
}

// RiskContext is the full account picture for the risk review.
type RiskContext struct {
	Proposal         ProposalView    `json:"proposal"`
	Account          Account         `json:"account"`
	CurrentPosition  *Position       `json:"current_position"`
	Positions        []Position      `json:"positions"`
	RecentTrades     []TradeView     `json:"recent_trades"`
	NeedsBuyingPower bool            `json:"needs_buying_power"`
	RequiredCash     decimal.Decimal `json:"required_cash"`
}

// RiskReviewDecision is the oracle's risk answer. Older prompts used
// "decision" for the verdict, both keys are accepted.
type RiskReviewDecision struct {
	Verdict          string   `json:"verdict"`
	Decision         string   `json:"decision"`
	Reasoning        string   `json:"reasoning"`
	AdjustedQuantity *float64 `json:"adjusted_quantity"`
	PositionToSell   *string  `json:"position_to_sell"`
	SellQuantity     *float64 `json:"sell_quantity"`
}

func (d RiskReviewDecision) VerdictValue() string {
	if d.Verdict != "" {
		return d.Verdict
	}
	return d.Decision
}

// RebalancePosition is a candidate holding in the narrow rebalance context.
type RebalancePosition struct {
	Symbol              string          `json:"symbol"`
	Qty                 decimal.Decimal `json:"qty"`
	CurrentPrice        decimal.Decimal `json:"current_price"`
	MarketValue         decimal.Decimal `json:"market_value"`
	UnrealizedPL        decimal.Decimal `json:"unrealized_pl"`
	AvgEntryPrice       decimal.Decimal `json:"avg_entry_price"`
	RecentArticlesCount int             `json:"recent_articles_count"`
	Headlines           []string        `json:"headlines"`
}

// RebalanceContext is deliberately narrow: the proposed trade, the cash gap
// and the positions that could fund it.
type RebalanceContext struct {
	ProposedTrade    ProposalView        `json:"proposed_trade"`
	RequiredCash     decimal.Decimal     `json:"required_cash"`
	CurrentPositions []RebalancePosition `json:"current_positions"`
}

type RebalanceDecision struct {
	ShouldRebalance bool     `json:"should_rebalance"`
	Reasoning       string   `json:"reasoning"`
	PositionToSell  string   `json:"position_to_sell"`
	SellQuantity    *float64 `json:"sell_quantity"`
}
