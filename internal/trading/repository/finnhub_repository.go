package repository

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang-stock-trader/internal/entity"
	"golang-stock-trader/internal/trading/config"
	"golang-stock-trader/internal/trading/dto"
	"golang-stock-trader/pkg/apperr"
	"golang-stock-trader/pkg/logger"
	"golang-stock-trader/pkg/retry"

	"github.com/go-resty/resty/v2"
	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
)

// finnhubRepository is a MarketDataGateway backed by the Finnhub REST API.
type finnhubRepository struct {
	client    *resty.Client
	policy    retry.Policy
	cache     *cache.Cache
	statusTTL time.Duration
	logger    *logger.Logger
}

// NewFinnhubRepository creates a new instance of finnhubRepository.
func NewFinnhubRepository(cfg *config.Config, policy retry.Policy, log *logger.Logger) MarketDataGateway {
	client := resty.New().
		SetBaseURL(cfg.Finnhub.BaseURL).
		SetTimeout(cfg.Finnhub.Timeout).
		SetHeader("X-Finnhub-Token", cfg.Finnhub.APIKey)

	return &finnhubRepository{
		client:    client,
		policy:    policy,
		cache:     cache.New(cfg.MarketData.ProfileCacheTTL, 10*time.Minute),
		statusTTL: cfg.MarketData.MarketStatusCache,
		logger:    log,
	}
}

func (r *finnhubRepository) get(ctx context.Context, op, path string, params map[string]string, out interface{}) error {
	return r.policy.Do(ctx, func(ctx context.Context) error {
		req := r.client.R().SetQueryParams(params).SetResult(out)
		_, err := doRequest(ctx, op, req, http.MethodGet, path)
		return err
	})
}

// LatestSnapshot fetches a fresh quote. Profile and metric lookups are cached
// and optional; a failure there only leaves the fields empty.
func (r *finnhubRepository) LatestSnapshot(ctx context.Context, ticker string) (*entity.StockSnapshot, error) {
	var quote dto.FinnhubQuote
	if err := r.get(ctx, "finnhub.Quote", "/quote", map[string]string{"symbol": ticker}, &quote); err != nil {
		return nil, fmt.Errorf("failed to fetch quote for %s: %w", ticker, err)
	}
	if quote.Current == 0 {
		return nil, apperr.Errorf(apperr.KindNotFound, "finnhub.Quote", "no quote for %s", ticker)
	}

	snapshot := &entity.StockSnapshot{
		Ticker:     ticker,
		Price:      decimal.NewFromFloat(quote.Current),
		Volume:     quote.Volume,
		High:       optionalDecimal(quote.High),
		Low:        optionalDecimal(quote.Low),
		Open:       optionalDecimal(quote.Open),
		Close:      optionalDecimal(quote.PreviousClose),
		CapturedAt: time.Now().UTC(),
	}

	if profile, err := r.profile(ctx, ticker); err != nil {
		r.logger.Warn("Failed to fetch company profile", logger.StringField("ticker", ticker), logger.ErrorField(err))
	} else if profile.MarketCapitalization > 0 {
		capUSD := int64(profile.MarketCapitalization * 1_000_000)
		snapshot.MarketCap = &capUSD
	}

	if metrics, err := r.metrics(ctx, ticker); err != nil {
		r.logger.Warn("Failed to fetch company metrics", logger.StringField("ticker", ticker), logger.ErrorField(err))
	} else if metrics.Metric.PETTM != nil {
		pe := decimal.NewFromFloat(*metrics.Metric.PETTM)
		snapshot.PERatio = &pe
	}

	return snapshot, nil
}

func (r *finnhubRepository) profile(ctx context.Context, ticker string) (*dto.FinnhubProfile, error) {
	key := "profile:" + ticker
	if cached, ok := r.cache.Get(key); ok {
		return cached.(*dto.FinnhubProfile), nil
	}
	var profile dto.FinnhubProfile
	if err := r.get(ctx, "finnhub.Profile", "/stock/profile2", map[string]string{"symbol": ticker}, &profile); err != nil {
		return nil, err
	}
	r.cache.SetDefault(key, &profile)
	return &profile, nil
}

func (r *finnhubRepository) metrics(ctx context.Context, ticker string) (*dto.FinnhubMetrics, error) {
	key := "metrics:" + ticker
	if cached, ok := r.cache.Get(key); ok {
		return cached.(*dto.FinnhubMetrics), nil
	}
	var metrics dto.FinnhubMetrics
	params := map[string]string{"symbol": ticker, "metric": "all"}
	if err := r.get(ctx, "finnhub.Metrics", "/stock/metric", params, &metrics); err != nil {
		return nil, err
	}
	r.cache.SetDefault(key, &metrics)
	return &metrics, nil
}

// IsMarketOpen reports the exchange status. Errors are logged and reported
// as closed. Only successful lookups are cached.
func (r *finnhubRepository) IsMarketOpen(ctx context.Context, exchange string) bool {
	key := "market-status:" + exchange
	if cached, ok := r.cache.Get(key); ok {
		return cached.(bool)
	}

	var status dto.FinnhubMarketStatus
	if err := r.get(ctx, "finnhub.MarketStatus", "/stock/market-status", map[string]string{"exchange": exchange}, &status); err != nil {
		r.logger.Warn("Failed to check market status, assuming closed",
			logger.StringField("exchange", exchange),
			logger.StringField("error_kind", apperr.KindOf(err).String()),
			logger.ErrorField(err))
		return false
	}

	if r.statusTTL > 0 {
		r.cache.Set(key, status.IsOpen, r.statusTTL)
	}
	r.logger.Info("Market status checked",
		logger.StringField("exchange", exchange),
		logger.Field("is_open", status.IsOpen),
		logger.StringField("session", status.Session))
	return status.IsOpen
}

func optionalDecimal(v float64) *decimal.Decimal {
	if v == 0 {
		return nil
	}
	d := decimal.NewFromFloat(v)
	return &d
}
