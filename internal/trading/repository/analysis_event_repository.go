package repository

import (
	"context"

	"golang-stock-trader/internal/entity"

	"gorm.io/gorm"
)

// AnalysisEventRepository appends screening audit records.
type AnalysisEventRepository interface {
	Create(ctx context.Context, event *entity.AnalysisEvent) error
}

// NewAnalysisEventRepository creates a new instance of AnalysisEventRepository.
func NewAnalysisEventRepository(db *gorm.DB) AnalysisEventRepository {
	return &analysisEventRepository{
		db: db,
	}
}

type analysisEventRepository struct {
	db *gorm.DB
}

func (r *analysisEventRepository) Create(ctx context.Context, event *entity.AnalysisEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}
