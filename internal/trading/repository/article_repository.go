package repository

import (
	"context"
	"time"

	"golang-stock-trader/internal/entity"

	"gorm.io/gorm"
)

// ArticleRepository reads cleaned news articles.
type ArticleRepository interface {
	FindRecent(ctx context.Context, ticker string, since time.Time, limit int, usableOnly bool) ([]entity.Article, error)
	CountRecent(ctx context.Context, ticker string, since time.Time) (int64, error)
}

// NewArticleRepository creates a new instance of ArticleRepository.
func NewArticleRepository(db *gorm.DB) ArticleRepository {
	return &articleRepository{
		db: db,
	}
}

type articleRepository struct {
	db *gorm.DB
}

// FindRecent returns the newest articles for ticker published at or after since.
func (r *articleRepository) FindRecent(ctx context.Context, ticker string, since time.Time, limit int, usableOnly bool) ([]entity.Article, error) {
	var articles []entity.Article
	query := r.db.WithContext(ctx).Where("ticker = ? AND timestamp >= ?", ticker, since)
	if usableOnly {
		query = query.Where("is_usable = ?", true)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Order("timestamp desc").Find(&articles).Error; err != nil {
		return nil, err
	}
	return articles, nil
}

func (r *articleRepository) CountRecent(ctx context.Context, ticker string, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.Article{}).
		Where("ticker = ? AND timestamp >= ?", ticker, since).
		Count(&count).Error
	return count, err
}
