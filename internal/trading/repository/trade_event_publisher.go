package repository

import (
	"context"
	"time"

	"golang-stock-trader/internal/entity"
	"golang-stock-trader/pkg/common"

	"github.com/redis/go-redis/v9"
)

// redisTradeEventPublisher appends executed trades to a capped Redis stream.
type redisTradeEventPublisher struct {
	client redis.Cmdable
	maxLen int64
}

// NewRedisTradeEventPublisher creates a new instance of redisTradeEventPublisher.
func NewRedisTradeEventPublisher(client redis.Cmdable, maxLen int64) TradeEventPublisher {
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &redisTradeEventPublisher{client: client, maxLen: maxLen}
}

func (p *redisTradeEventPublisher) PublishTradeExecuted(ctx context.Context, trade *entity.ExecutedTrade) error {
	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: common.RedisStreamTradeExecuted,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"trade_id":        trade.ID,
			"proposal_id":     trade.TradeProposalID,
			"ticker":          trade.Ticker,
			"action":          trade.Action,
			"quantity":        trade.Quantity,
			"execution_price": trade.ExecutionPrice.String(),
			"broker_order_id": trade.BrokerOrderID,
			"status":          trade.Status,
			"executed_at":     trade.ExecutedAt.Format(time.RFC3339),
		},
	}).Err()
}
