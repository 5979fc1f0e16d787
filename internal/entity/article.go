package entity

import "time"

// Article is a cleaned news article written by the scraping pipeline.
// The trading service only reads it.
type Article struct {
	ID          int64     `json:"id" gorm:"primaryKey"`
	Ticker      string    `json:"ticker"`
	Title       string    `json:"title"`
	ContentText string    `json:"content_text"`
	URL         string    `json:"url"`
	IsUsable    bool      `json:"is_usable"`
	Timestamp   time.Time `json:"timestamp"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Article) TableName() string {
	return "articles_cleaned"
}
