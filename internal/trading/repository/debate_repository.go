package repository

import (
	"context"

	"golang-stock-trader/internal/entity"

	"gorm.io/gorm"
)

// DebateRepository appends debate transcripts.
type DebateRepository interface {
	Create(ctx context.Context, debate *entity.Debate) error
}

// NewDebateRepository creates a new instance of DebateRepository.
func NewDebateRepository(db *gorm.DB) DebateRepository {
	return &debateRepository{
		db: db,
	}
}

type debateRepository struct {
	db *gorm.DB
}

func (r *debateRepository) Create(ctx context.Context, debate *entity.Debate) error {
	return r.db.WithContext(ctx).Create(debate).Error
}
