package repository

import (
	"context"
	"fmt"
	"net/http"

	"golang-stock-trader/internal/trading/config"
	"golang-stock-trader/internal/trading/dto"
	"golang-stock-trader/pkg/apperr"
	"golang-stock-trader/pkg/logger"
	"golang-stock-trader/pkg/retry"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// alpacaRepository is a BrokerGateway backed by the Alpaca trading API.
type alpacaRepository struct {
	client *resty.Client
	policy retry.Policy
	logger *logger.Logger
}

// NewAlpacaRepository creates a new instance of alpacaRepository.
func NewAlpacaRepository(cfg *config.Config, policy retry.Policy, log *logger.Logger) BrokerGateway {
	client := resty.New().
		SetBaseURL(cfg.Alpaca.BaseURL).
		SetTimeout(cfg.Alpaca.Timeout).
		SetHeader("APCA-API-KEY-ID", cfg.Alpaca.APIKey).
		SetHeader("APCA-API-SECRET-KEY", cfg.Alpaca.APISecret).
		SetHeader("Accept", "application/json")

	return &alpacaRepository{
		client: client,
		policy: policy,
		logger: log,
	}
}

func (r *alpacaRepository) GetAccount(ctx context.Context) (*dto.Account, error) {
	var account dto.Account
	err := r.policy.Do(ctx, func(ctx context.Context) error {
		_, err := doRequest(ctx, "alpaca.GetAccount", r.client.R().SetResult(&account), http.MethodGet, "/v2/account")
		return err
	})
	if err != nil {
		r.logFailure(ctx, "Failed to fetch account", err)
		return nil, fmt.Errorf("failed to fetch account: %w", err)
	}
	return &account, nil
}

func (r *alpacaRepository) ListPositions(ctx context.Context) ([]dto.Position, error) {
	var positions []dto.Position
	err := r.policy.Do(ctx, func(ctx context.Context) error {
		positions = nil
		_, err := doRequest(ctx, "alpaca.ListPositions", r.client.R().SetResult(&positions), http.MethodGet, "/v2/positions")
		return err
	})
	if err != nil {
		r.logFailure(ctx, "Failed to list positions", err)
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}
	return positions, nil
}

// SubmitOrder places a market order. The client order id makes the call
// idempotent: when a retried submission is refused because the id already
// exists, the original order is looked up and returned.
func (r *alpacaRepository) SubmitOrder(ctx context.Context, order dto.OrderRequest) (*dto.OrderResult, error) {
	if order.Qty <= 0 {
		return nil, apperr.Errorf(apperr.KindInvalidInput, "alpaca.SubmitOrder", "quantity must be positive, got %d", order.Qty)
	}
	if order.Type == "" {
		order.Type = dto.OrderTypeMarket
	}
	if order.TimeInForce == "" {
		order.TimeInForce = dto.TimeInForceDay
	}

	var result dto.OrderResult
	attempts := 0
	err := r.policy.Do(ctx, func(ctx context.Context) error {
		attempts++
		req := r.client.R().SetBody(order).SetResult(&result)
		_, err := doRequest(ctx, "alpaca.SubmitOrder", req, http.MethodPost, "/v2/orders")
		return err
	})
	if err != nil && attempts > 1 && order.ClientOrderID != "" && apperr.Is(err, apperr.KindInvalidInput) {
		existing, lookupErr := r.lookupOrder(ctx, order.ClientOrderID)
		if lookupErr == nil {
			r.logger.WarnContext(ctx, "Order already accepted on an earlier attempt",
				logger.StringField("client_order_id", order.ClientOrderID),
				logger.StringField("order_id", existing.ID))
			return existing, nil
		}
	}
	if err != nil {
		r.logFailure(ctx, "Failed to submit order", err,
			logger.StringField("symbol", order.Symbol),
			logger.StringField("side", order.Side),
			logger.IntField("qty", order.Qty))
		return nil, fmt.Errorf("failed to submit %s order for %s: %w", order.Side, order.Symbol, err)
	}

	r.logger.InfoContext(ctx, "Order submitted",
		logger.StringField("symbol", order.Symbol),
		logger.StringField("side", order.Side),
		logger.IntField("qty", order.Qty),
		logger.StringField("order_id", result.ID),
		logger.StringField("status", result.Status))
	return &result, nil
}

func (r *alpacaRepository) GetOrderByClientID(ctx context.Context, clientOrderID string) (*dto.OrderResult, error) {
	return retry.DoValue(ctx, r.policy, func(ctx context.Context) (*dto.OrderResult, error) {
		return r.lookupOrder(ctx, clientOrderID)
	})
}

func (r *alpacaRepository) lookupOrder(ctx context.Context, clientOrderID string) (*dto.OrderResult, error) {
	var result dto.OrderResult
	req := r.client.R().
		SetQueryParam("client_order_id", clientOrderID).
		SetResult(&result)
	if _, err := doRequest(ctx, "alpaca.GetOrderByClientID", req, http.MethodGet, "/v2/orders:by_client_order_id"); err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *alpacaRepository) logFailure(ctx context.Context, msg string, err error, fields ...zap.Field) {
	kind := apperr.KindOf(err)
	fields = append(fields, logger.StringField("error_kind", kind.String()), logger.ErrorField(err))
	if kind == apperr.KindAuth {
		r.logger.ErrorContext(ctx, "Broker rejected credentials: "+msg, fields...)
		return
	}
	r.logger.ErrorContext(ctx, msg, fields...)
}
