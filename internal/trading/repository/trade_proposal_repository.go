package repository

import (
	"context"
	"errors"
	"time"

	"golang-stock-trader/internal/entity"

	"gorm.io/gorm"
)

// TradeProposalRepository stores proposals and guards their status machine.
type TradeProposalRepository interface {
	Create(ctx context.Context, proposal *entity.TradeProposal) error
	GetByID(ctx context.Context, id int64) (*entity.TradeProposal, error)
	// Resolve moves a PENDING proposal to status. It reports false, without
	// error, when the proposal had already left PENDING.
	Resolve(ctx context.Context, id int64, status string) (bool, error)
	// ListPending returns proposals still PENDING that were created at or
	// after since, oldest first.
	ListPending(ctx context.Context, since time.Time) ([]entity.TradeProposal, error)
}

// NewTradeProposalRepository creates a new instance of TradeProposalRepository.
func NewTradeProposalRepository(db *gorm.DB) TradeProposalRepository {
	return &tradeProposalRepository{
		db: db,
	}
}

type tradeProposalRepository struct {
	db *gorm.DB
}

func (r *tradeProposalRepository) Create(ctx context.Context, proposal *entity.TradeProposal) error {
	return r.db.WithContext(ctx).Create(proposal).Error
}

func (r *tradeProposalRepository) GetByID(ctx context.Context, id int64) (*entity.TradeProposal, error) {
	var proposal entity.TradeProposal
	if err := r.db.WithContext(ctx).First(&proposal, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &proposal, nil
}

func (r *tradeProposalRepository) Resolve(ctx context.Context, id int64, status string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&entity.TradeProposal{}).
		Where("id = ? AND status = ?", id, entity.ProposalStatusPending).
		Update("status", status)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *tradeProposalRepository) ListPending(ctx context.Context, since time.Time) ([]entity.TradeProposal, error) {
	var proposals []entity.TradeProposal
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at >= ?", entity.ProposalStatusPending, since).
		Order("created_at asc").
		Find(&proposals).Error
	if err != nil {
		return nil, err
	}
	return proposals, nil
}
