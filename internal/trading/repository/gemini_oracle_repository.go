package repository

import (
	"context"
	"errors"
	"fmt"

	"golang-stock-trader/internal/trading/config"
	"golang-stock-trader/pkg/apperr"
	"golang-stock-trader/pkg/logger"
	"golang-stock-trader/pkg/ratelimit"
	"golang-stock-trader/pkg/utils"

	"google.golang.org/genai"
)

// geminiOracleRepository is a ReasoningOracle backed by the Gemini API.
type geminiOracleRepository struct {
	cfg          config.Gemini
	logger       *logger.Logger
	tokenLimiter *ratelimit.TokenLimiter
	genAiClient  *genai.Client
}

// NewGeminiOracleRepository creates a new instance of geminiOracleRepository.
func NewGeminiOracleRepository(cfg *config.Config, log *logger.Logger, genAiClient *genai.Client) (ReasoningOracle, error) {
	if cfg.Gemini.Model == "" {
		return nil, fmt.Errorf("gemini.model is required")
	}
	return &geminiOracleRepository{
		cfg:          cfg.Gemini,
		logger:       log,
		tokenLimiter: ratelimit.NewTokenLimiter(cfg.Gemini.MaxTokenPerMinute),
		genAiClient:  genAiClient,
	}, nil
}

func (r *geminiOracleRepository) Complete(ctx context.Context, systemContext, userContext string, temperature float32, expectJSON bool) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(userContext, "user"),
	}

	if r.cfg.MaxTokenPerMinute > 0 {
		tokenResp, err := r.genAiClient.Models.CountTokens(ctx, r.cfg.Model, contents, nil)
		if err != nil {
			return "", classifyGeminiError("gemini.CountTokens", err)
		}
		r.logger.Debug("Gemini token count",
			logger.IntField("total_tokens", int(tokenResp.TotalTokens)),
			logger.IntField("remaining", r.tokenLimiter.GetRemaining()),
		)
		if err := r.tokenLimiter.Wait(ctx, int(tokenResp.TotalTokens)); err != nil {
			return "", fmt.Errorf("failed to wait for token limit: %w", err)
		}
	}

	genCfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemContext, "user"),
		Temperature:       utils.ToPointer(temperature),
	}
	if expectJSON {
		genCfg.ResponseMIMEType = "application/json"
	}

	resp, err := r.genAiClient.Models.GenerateContent(ctx, r.cfg.Model, contents, genCfg)
	if err != nil {
		return "", classifyGeminiError("gemini.GenerateContent", err)
	}

	return requireContent("gemini.GenerateContent", resp.Text())
}

func classifyGeminiError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apperr.New(apperr.KindFromStatus(apiErr.Code), op, err)
	}
	return apperr.New(apperr.KindTransient, op, err)
}
