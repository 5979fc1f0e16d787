package service

import (
	"context"
	"fmt"

	"golang-stock-trader/internal/entity"
	"golang-stock-trader/internal/trading/dto"
	"golang-stock-trader/internal/trading/repository"
	"golang-stock-trader/pkg/logger"
)

// SnapshotService resolves price snapshots through the ledger, falling back to
// the market data gateway.
type SnapshotService interface {
	// Latest returns the newest stored snapshot, fetching and storing one
	// when the ledger has none.
	Latest(ctx context.Context, ticker string) (*entity.StockSnapshot, error)
	// Refresh always fetches a fresh snapshot and stores it.
	Refresh(ctx context.Context, ticker string) (*entity.StockSnapshot, error)
}

// NewSnapshotService creates a new SnapshotService.
func NewSnapshotService(snapshotRepo repository.StockSnapshotRepository, marketData repository.MarketDataGateway, log *logger.Logger) SnapshotService {
	return &snapshotService{
		snapshotRepo: snapshotRepo,
		marketData:   marketData,
		logger:       log,
	}
}

type snapshotService struct {
	snapshotRepo repository.StockSnapshotRepository
	marketData   repository.MarketDataGateway
	logger       *logger.Logger
}

func (s *snapshotService) Latest(ctx context.Context, ticker string) (*entity.StockSnapshot, error) {
	snapshot, err := s.snapshotRepo.GetLatest(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}
	if snapshot != nil {
		return snapshot, nil
	}
	return s.Refresh(ctx, ticker)
}

func (s *snapshotService) Refresh(ctx context.Context, ticker string) (*entity.StockSnapshot, error) {
	snapshot, err := s.marketData.LatestSnapshot(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch snapshot: %w", err)
	}
	if err := s.snapshotRepo.Create(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("failed to store snapshot: %w", err)
	}
	s.logger.DebugContext(ctx, "Stored stock snapshot", logger.StringField("price", snapshot.Price.String()))
	return snapshot, nil
}

func toSnapshotView(s *entity.StockSnapshot) *dto.SnapshotView {
	if s == nil {
		return nil
	}
	change, pct := s.PriceChange()
	return &dto.SnapshotView{
		Price:              s.Price,
		Volume:             s.Volume,
		High:               s.High,
		Low:                s.Low,
		Open:               s.Open,
		PreviousClose:      s.Close,
		PriceChange:        change,
		PriceChangePercent: pct,
		MarketCap:          s.MarketCap,
		PERatio:            s.PERatio,
		CapturedAt:         s.CapturedAt,
	}
}

func toTradeViews(trades []entity.ExecutedTrade) []dto.TradeView {
	views := make([]dto.TradeView, 0, len(trades))
	for _, t := range trades {
		views = append(views, dto.TradeView{
			Ticker:         t.Ticker,
			Action:         t.Action,
			Quantity:       t.Quantity,
			ExecutionPrice: t.ExecutionPrice,
			ExecutedAt:     t.ExecutedAt,
		})
	}
	return views
}

func toProposalView(p *entity.TradeProposal) dto.ProposalView {
	return dto.ProposalView{
		ID:            p.ID,
		Ticker:        p.Ticker,
		Action:        p.Action,
		Quantity:      p.Quantity,
		Reasoning:     p.Reasoning,
		Confidence:    p.Confidence,
		ProposedPrice: p.ProposedPrice,
	}
}
