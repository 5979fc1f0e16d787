package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang-stock-trader/internal/entity"
	"golang-stock-trader/internal/trading/config"
	"golang-stock-trader/internal/trading/dto"
	"golang-stock-trader/internal/trading/repository"
	"golang-stock-trader/pkg/common"
	"golang-stock-trader/pkg/logger"
	"golang-stock-trader/pkg/utils"

	"gorm.io/datatypes"
)

const (
	debateArticleWindow  = 24 * time.Hour
	debateTradeWindow    = 30 * 24 * time.Hour
	advocateTemperature  = 0.8
	consensusTemperature = 0.7
)

// DebateService runs the bull versus bear analysis for an interesting ticker.
type DebateService interface {
	Debate(ctx context.Context, ticker string, analysisEventID int64) (*entity.Debate, error)
}

// NewDebateService creates a new DebateService.
func NewDebateService(
	cfg *config.Config,
	oracle repository.ReasoningOracle,
	articleRepo repository.ArticleRepository,
	snapshotRepo repository.StockSnapshotRepository,
	tradeRepo repository.ExecutedTradeRepository,
	debateRepo repository.DebateRepository,
	log *logger.Logger,
) DebateService {
	return &debateService{
		cfg:          cfg,
		oracle:       oracle,
		articleRepo:  articleRepo,
		snapshotRepo: snapshotRepo,
		tradeRepo:    tradeRepo,
		debateRepo:   debateRepo,
		logger:       log,
		now:          time.Now,
	}
}

type debateService struct {
	cfg          *config.Config
	oracle       repository.ReasoningOracle
	articleRepo  repository.ArticleRepository
	snapshotRepo repository.StockSnapshotRepository
	tradeRepo    repository.ExecutedTradeRepository
	debateRepo   repository.DebateRepository
	logger       *logger.Logger
	now          func() time.Time
}

func (s *debateService) Debate(ctx context.Context, ticker string, analysisEventID int64) (*entity.Debate, error) {
	debateCtx, err := s.buildContext(ctx, ticker)
	if err != nil {
		return nil, err
	}

	bullCtx, err := repository.BuildUserContext(fmt.Sprintf("Make the bullish case for %s.", ticker), debateCtx)
	if err != nil {
		return nil, err
	}
	bull, err := s.oracle.Complete(ctx, repository.BullSystemPrompt, bullCtx, advocateTemperature, false)
	if err != nil {
		return nil, fmt.Errorf("bull argument failed: %w", err)
	}

	bearCtx, err := repository.BuildUserContext(fmt.Sprintf("Make the bearish case for %s.", ticker), debateCtx)
	if err != nil {
		return nil, err
	}
	bear, err := s.oracle.Complete(ctx, repository.BearSystemPrompt, bearCtx, advocateTemperature, false)
	if err != nil {
		return nil, fmt.Errorf("bear argument failed: %w", err)
	}

	consensus := s.consensus(ctx, ticker, bull, bear)

	transcript, err := json.Marshal(dto.DebateTranscript{
		Rounds: []dto.DebateRound{{Bull: bull, Bear: bear}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal debate transcript: %w", err)
	}

	debate := &entity.Debate{
		Ticker:          ticker,
		AnalysisEventID: analysisEventID,
		DebateType:      common.DebateTypeBullVsBear,
		BullArgument:    bull,
		BearArgument:    bear,
		Consensus:       consensus,
		Transcript:      datatypes.JSON(transcript),
	}
	if err := s.debateRepo.Create(ctx, debate); err != nil {
		return nil, fmt.Errorf("failed to store debate: %w", err)
	}

	s.logger.InfoContext(ctx, "Debate completed",
		logger.Int64Field("debate_id", debate.ID),
		logger.IntField("article_count", debateCtx.ArticleCount),
		logger.Field("has_consensus", consensus != ""),
	)
	return debate, nil
}

// consensus asks for a synthesis of both arguments. A failure leaves the
// debate without consensus instead of failing it.
func (s *debateService) consensus(ctx context.Context, ticker, bull, bear string) string {
	userCtx, err := repository.BuildUserContext(
		fmt.Sprintf("Weigh the debate about %s.", ticker),
		dto.ConsensusContext{Ticker: ticker, BullArgument: bull, BearArgument: bear},
	)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to build consensus context", logger.ErrorField(err))
		return ""
	}
	consensus, err := s.oracle.Complete(ctx, repository.ConsensusSystemPrompt, userCtx, consensusTemperature, false)
	if err != nil {
		s.logger.WarnContext(ctx, "Consensus synthesis failed, continuing without it", logger.ErrorField(err))
		return ""
	}
	return consensus
}

func (s *debateService) buildContext(ctx context.Context, ticker string) (*dto.DebateContext, error) {
	now := s.now()

	articles, err := s.articleRepo.FindRecent(ctx, ticker, now.Add(-debateArticleWindow), s.cfg.Trading.MaxDebateArticles, true)
	if err != nil {
		return nil, fmt.Errorf("failed to load articles: %w", err)
	}

	snapshot, err := s.snapshotRepo.GetLatest(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	trades, err := s.tradeRepo.FindRecent(ctx, ticker, now.Add(-debateTradeWindow), s.cfg.Trading.MaxDebateTrades)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent trades: %w", err)
	}

	debateCtx := &dto.DebateContext{
		Ticker:       ticker,
		Snapshot:     toSnapshotView(snapshot),
		Articles:     make([]dto.ArticleView, 0, len(articles)),
		RecentTrades: toTradeViews(trades),
	}
	if snapshot != nil {
		debateCtx.CurrentPrice = &snapshot.Price
	}
	for _, a := range articles {
		content := utils.PlainText(a.ContentText)
		if content == "" {
			continue
		}
		debateCtx.Articles = append(debateCtx.Articles, dto.ArticleView{
			Title:     a.Title,
			Content:   utils.Truncate(content, s.cfg.Trading.ArticleCharBudget),
			Timestamp: a.Timestamp,
		})
	}
	debateCtx.ArticleCount = len(debateCtx.Articles)
	return debateCtx, nil
}
