package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockSnapshot is an immutable point-in-time quote for a ticker.
type StockSnapshot struct {
	ID         int64            `json:"id" gorm:"primaryKey"`
	Ticker     string           `json:"ticker" gorm:"index:idx_stock_snapshots_ticker_time"`
	Price      decimal.Decimal  `json:"price" gorm:"type:numeric(18,4)"`
	Volume     int64            `json:"volume"`
	High       *decimal.Decimal `json:"high,omitempty" gorm:"type:numeric(18,4)"`
	Low        *decimal.Decimal `json:"low,omitempty" gorm:"type:numeric(18,4)"`
	Open       *decimal.Decimal `json:"open,omitempty" gorm:"column:open_price;type:numeric(18,4)"`
	Close      *decimal.Decimal `json:"close,omitempty" gorm:"column:close_price;type:numeric(18,4)"`
	MarketCap  *int64           `json:"market_cap,omitempty"`
	PERatio    *decimal.Decimal `json:"pe_ratio,omitempty" gorm:"column:pe_ratio;type:numeric(12,4)"`
	CapturedAt time.Time        `json:"captured_at" gorm:"column:snapshot_time;index:idx_stock_snapshots_ticker_time"`
	CreatedAt  time.Time        `json:"created_at"`
}

func (StockSnapshot) TableName() string {
	return "stock_snapshots"
}

// PriceChange returns the move versus the previous close and its percentage.
// Both are zero when the previous close is unknown.
func (s *StockSnapshot) PriceChange() (decimal.Decimal, decimal.Decimal) {
	if s.Close == nil || s.Close.IsZero() {
		return decimal.Zero, decimal.Zero
	}
	change := s.Price.Sub(*s.Close)
	pct := change.Div(*s.Close).Mul(decimal.NewFromInt(100)).Round(2)
	return change, pct
}
