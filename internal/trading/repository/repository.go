package repository

import (
	"context"

	"golang-stock-trader/internal/entity"
	"golang-stock-trader/internal/trading/dto"
)

// ReasoningOracle turns a system and user context into a text decision.
// Implementations must return an error instead of an empty response.
type ReasoningOracle interface {
	Complete(ctx context.Context, systemContext, userContext string, temperature float32, expectJSON bool) (string, error)
}

// MarketDataGateway provides quotes and exchange status.
type MarketDataGateway interface {
	LatestSnapshot(ctx context.Context, ticker string) (*entity.StockSnapshot, error)
	// IsMarketOpen never fails; any error is reported as a closed market.
	IsMarketOpen(ctx context.Context, exchange string) bool
}

// BrokerGateway is the brokerage account used to trade.
type BrokerGateway interface {
	GetAccount(ctx context.Context) (*dto.Account, error)
	ListPositions(ctx context.Context) ([]dto.Position, error)
	SubmitOrder(ctx context.Context, order dto.OrderRequest) (*dto.OrderResult, error)
	// GetOrderByClientID looks an order up by its client order id. An
	// unknown id is a not_found error.
	GetOrderByClientID(ctx context.Context, clientOrderID string) (*dto.OrderResult, error)
}

// TradeEventPublisher announces executed trades to downstream consumers.
type TradeEventPublisher interface {
	PublishTradeExecuted(ctx context.Context, trade *entity.ExecutedTrade) error
}
