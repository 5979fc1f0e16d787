package repository

import (
	"context"
	"fmt"
	"time"

	"golang-stock-trader/internal/entity"
	"golang-stock-trader/pkg/apperr"
	"golang-stock-trader/pkg/logger"
	"golang-stock-trader/pkg/retry"

	"github.com/piquette/finance-go"
	"github.com/piquette/finance-go/equity"
	"github.com/piquette/finance-go/quote"
	"github.com/shopspring/decimal"
)

// exchangeProxies maps an exchange code to a liquid symbol whose market
// state stands in for the exchange session.
var exchangeProxies = map[string]string{
	"US": "SPY",
}

// yahooFinanceRepository is a MarketDataGateway backed by Yahoo Finance.
type yahooFinanceRepository struct {
	policy retry.Policy
	logger *logger.Logger

	getEquity func(symbol string) (*finance.Equity, error)
	getQuote  func(symbol string) (*finance.Quote, error)
}

// NewYahooFinanceRepository creates a new instance of yahooFinanceRepository.
func NewYahooFinanceRepository(policy retry.Policy, log *logger.Logger) MarketDataGateway {
	return &yahooFinanceRepository{
		policy:    policy,
		logger:    log,
		getEquity: equity.Get,
		getQuote:  quote.Get,
	}
}

func (r *yahooFinanceRepository) LatestSnapshot(ctx context.Context, ticker string) (*entity.StockSnapshot, error) {
	eq, err := retry.DoValue(ctx, r.policy, func(ctx context.Context) (*finance.Equity, error) {
		eq, err := r.getEquity(ticker)
		if err != nil {
			return nil, apperr.New(apperr.KindTransient, "yahoo.Equity", err)
		}
		if eq == nil {
			return nil, apperr.Errorf(apperr.KindNotFound, "yahoo.Equity", "no quote for %s", ticker)
		}
		return eq, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch quote for %s: %w", ticker, err)
	}

	snapshot := &entity.StockSnapshot{
		Ticker:     ticker,
		Price:      decimal.NewFromFloat(eq.RegularMarketPrice),
		Volume:     int64(eq.RegularMarketVolume),
		High:       optionalDecimal(eq.RegularMarketDayHigh),
		Low:        optionalDecimal(eq.RegularMarketDayLow),
		Open:       optionalDecimal(eq.RegularMarketOpen),
		Close:      optionalDecimal(eq.RegularMarketPreviousClose),
		PERatio:    optionalDecimal(eq.TrailingPE),
		CapturedAt: time.Now().UTC(),
	}
	if eq.MarketCap > 0 {
		marketCap := eq.MarketCap
		snapshot.MarketCap = &marketCap
	}
	return snapshot, nil
}

func (r *yahooFinanceRepository) IsMarketOpen(ctx context.Context, exchange string) bool {
	symbol, ok := exchangeProxies[exchange]
	if !ok {
		r.logger.Warn("No market proxy for exchange, assuming closed", logger.StringField("exchange", exchange))
		return false
	}

	q, err := retry.DoValue(ctx, r.policy, func(ctx context.Context) (*finance.Quote, error) {
		q, err := r.getQuote(symbol)
		if err != nil {
			return nil, apperr.New(apperr.KindTransient, "yahoo.Quote", err)
		}
		return q, nil
	})
	if err != nil || q == nil {
		r.logger.Warn("Failed to check market status, assuming closed",
			logger.StringField("exchange", exchange), logger.ErrorField(err))
		return false
	}
	return q.MarketState == "REGULAR"
}
