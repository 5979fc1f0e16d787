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
	"golang-stock-trader/pkg/apperr"
	"golang-stock-trader/pkg/common"
	"golang-stock-trader/pkg/logger"

	"gorm.io/datatypes"
)

const (
	screeningWindow      = 24 * time.Hour
	screeningTemperature = 0.7
)

// ScreeningService decides whether a ticker's recent news deserves a debate.
type ScreeningService interface {
	// Screen always records an AnalysisEvent. On error the event is stored as
	// not interesting with the error text as reasoning, and the returned
	// result is still usable.
	Screen(ctx context.Context, ticker string) (*dto.ScreeningResult, error)
}

// NewScreeningService creates a new ScreeningService.
func NewScreeningService(
	cfg *config.Config,
	oracle repository.ReasoningOracle,
	articleRepo repository.ArticleRepository,
	eventRepo repository.AnalysisEventRepository,
	snapshots SnapshotService,
	log *logger.Logger,
) ScreeningService {
	return &screeningService{
		cfg:         cfg,
		oracle:      oracle,
		articleRepo: articleRepo,
		eventRepo:   eventRepo,
		snapshots:   snapshots,
		logger:      log,
		now:         time.Now,
	}
}

type screeningService struct {
	cfg         *config.Config
	oracle      repository.ReasoningOracle
	articleRepo repository.ArticleRepository
	eventRepo   repository.AnalysisEventRepository
	snapshots   SnapshotService
	logger      *logger.Logger
	now         func() time.Time
}

func (s *screeningService) Screen(ctx context.Context, ticker string) (*dto.ScreeningResult, error) {
	event := &entity.AnalysisEvent{
		Ticker:    ticker,
		EventType: common.EventTypeTickerAnalysis,
		AgentName: common.AgentScreening,
	}

	decision, err := s.screen(ctx, ticker, event)
	if err != nil {
		event.IsInteresting = false
		event.Confidence = 0
		event.Reasoning = err.Error()
		if event.OutputDecision == nil {
			event.OutputDecision = errorDocument(err)
		}
	} else {
		event.IsInteresting = *decision.IsInteresting
		event.Confidence = toConfidence(decision.Confidence)
		event.Reasoning = decision.Reasoning
	}

	if createErr := s.eventRepo.Create(ctx, event); createErr != nil {
		s.logger.ErrorContext(ctx, "Failed to store analysis event", logger.ErrorField(createErr))
		if err == nil {
			err = fmt.Errorf("failed to store analysis event: %w", createErr)
		}
		return &dto.ScreeningResult{Interesting: false, Reasoning: event.Reasoning}, err
	}

	result := &dto.ScreeningResult{
		Interesting: event.IsInteresting,
		EventID:     event.ID,
		Confidence:  event.Confidence,
		Reasoning:   event.Reasoning,
	}
	if err != nil {
		s.logger.WarnContext(ctx, "Screening failed, ticker marked not interesting", logger.ErrorField(err))
		return result, err
	}

	s.logger.InfoContext(ctx, "Screening completed",
		logger.Field("is_interesting", result.Interesting),
		logger.IntField("confidence", result.Confidence),
	)
	return result, nil
}

// screen gathers the context, asks the oracle and validates the answer. It
// fills the input and output documents of event as it goes.
func (s *screeningService) screen(ctx context.Context, ticker string, event *entity.AnalysisEvent) (*dto.ScreeningDecision, error) {
	since := s.now().Add(-screeningWindow)
	articles, err := s.articleRepo.FindRecent(ctx, ticker, since, s.cfg.Trading.MaxHeadlines, false)
	if err != nil {
		return nil, fmt.Errorf("failed to load headlines: %w", err)
	}

	snapshot, err := s.snapshots.Latest(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve snapshot: %w", err)
	}

	screeningCtx := dto.ScreeningContext{
		Ticker:        ticker,
		Headlines:     make([]dto.Headline, 0, len(articles)),
		HeadlineCount: len(articles),
		Snapshot:      toSnapshotView(snapshot),
	}
	event.Headlines = make([]string, 0, len(articles))
	for _, a := range articles {
		screeningCtx.Headlines = append(screeningCtx.Headlines, dto.Headline{Title: a.Title, Timestamp: a.Timestamp})
		event.Headlines = append(event.Headlines, a.Title)
	}

	if input, err := json.Marshal(screeningCtx); err == nil {
		event.InputContext = datatypes.JSON(input)
	}

	userCtx, err := repository.BuildUserContext(fmt.Sprintf("Screen the news flow for %s.", ticker), screeningCtx)
	if err != nil {
		return nil, err
	}

	raw, err := s.oracle.Complete(ctx, repository.ScreeningSystemPrompt, userCtx, screeningTemperature, true)
	if err != nil {
		return nil, fmt.Errorf("screening oracle call failed: %w", err)
	}

	event.OutputDecision = rawDocument(raw)

	var decision dto.ScreeningDecision
	if err := decodeDecision("screening", raw, &decision); err != nil {
		return nil, err
	}

	if decision.IsInteresting == nil {
		return nil, apperr.Errorf(apperr.KindMalformedOutput, "screening", "decision is missing is_interesting")
	}
	return &decision, nil
}

// rawDocument stores an oracle answer as JSON, quoting it when it is not
// valid JSON on its own.
func rawDocument(raw string) datatypes.JSON {
	if json.Valid([]byte(raw)) {
		return datatypes.JSON(raw)
	}
	quoted, _ := json.Marshal(map[string]string{"raw": raw})
	return datatypes.JSON(quoted)
}

func errorDocument(err error) datatypes.JSON {
	doc, _ := json.Marshal(map[string]string{"error": err.Error()})
	return datatypes.JSON(doc)
}
