package repository

import (
	"context"
	"errors"
	"time"

	"golang-stock-trader/internal/entity"
	"golang-stock-trader/pkg/utils"

	"gorm.io/gorm"
)

// ExecutedTradeRepository stores broker-acknowledged trades.
type ExecutedTradeRepository interface {
	Create(ctx context.Context, trade *entity.ExecutedTrade) error
	CreateRebalance(ctx context.Context, trade *entity.RebalanceTrade) error
	// GetByProposalID returns the trade recorded for a proposal, or nil.
	GetByProposalID(ctx context.Context, proposalID int64) (*entity.ExecutedTrade, error)
	// FindRecent lists trades executed at or after since, newest first.
	// An empty ticker matches every ticker.
	FindRecent(ctx context.Context, ticker string, since time.Time, limit int) ([]entity.ExecutedTrade, error)
	// HasTradedToday reports whether any trade was executed on now's
	// calendar day in the market time zone.
	HasTradedToday(ctx context.Context, now time.Time) (bool, error)
}

// NewExecutedTradeRepository creates a new instance of ExecutedTradeRepository.
func NewExecutedTradeRepository(db *gorm.DB, loc *time.Location) ExecutedTradeRepository {
	if loc == nil {
		loc = time.UTC
	}
	return &executedTradeRepository{
		db:  db,
		loc: loc,
	}
}

type executedTradeRepository struct {
	db  *gorm.DB
	loc *time.Location
}

func (r *executedTradeRepository) Create(ctx context.Context, trade *entity.ExecutedTrade) error {
	return r.db.WithContext(ctx).Create(trade).Error
}

func (r *executedTradeRepository) CreateRebalance(ctx context.Context, trade *entity.RebalanceTrade) error {
	return r.db.WithContext(ctx).Create(trade).Error
}

func (r *executedTradeRepository) GetByProposalID(ctx context.Context, proposalID int64) (*entity.ExecutedTrade, error) {
	var trade entity.ExecutedTrade
	if err := r.db.WithContext(ctx).Where("trade_proposal_id = ?", proposalID).First(&trade).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &trade, nil
}

func (r *executedTradeRepository) FindRecent(ctx context.Context, ticker string, since time.Time, limit int) ([]entity.ExecutedTrade, error) {
	var trades []entity.ExecutedTrade
	query := r.db.WithContext(ctx).Where("executed_at >= ?", since)
	if ticker != "" {
		query = query.Where("ticker = ?", ticker)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Order("executed_at desc").Find(&trades).Error; err != nil {
		return nil, err
	}
	return trades, nil
}

func (r *executedTradeRepository) HasTradedToday(ctx context.Context, now time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.ExecutedTrade{}).
		Where("executed_at >= ?", utils.StartOfDay(now, r.loc)).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
