package repository

import (
	"context"
	"errors"

	"golang-stock-trader/internal/entity"

	"gorm.io/gorm"
)

// StockSnapshotRepository stores immutable price snapshots.
type StockSnapshotRepository interface {
	Create(ctx context.Context, snapshot *entity.StockSnapshot) error
	GetLatest(ctx context.Context, ticker string) (*entity.StockSnapshot, error)
}

// NewStockSnapshotRepository creates a new instance of StockSnapshotRepository.
func NewStockSnapshotRepository(db *gorm.DB) StockSnapshotRepository {
	return &stockSnapshotRepository{
		db: db,
	}
}

type stockSnapshotRepository struct {
	db *gorm.DB
}

func (r *stockSnapshotRepository) Create(ctx context.Context, snapshot *entity.StockSnapshot) error {
	return r.db.WithContext(ctx).Create(snapshot).Error
}

// GetLatest returns the snapshot with the greatest capture time, or nil.
func (r *stockSnapshotRepository) GetLatest(ctx context.Context, ticker string) (*entity.StockSnapshot, error) {
	var snapshot entity.StockSnapshot
	err := r.db.WithContext(ctx).
		Where("ticker = ?", ticker).
		Order("snapshot_time desc").
		First(&snapshot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &snapshot, nil
}
