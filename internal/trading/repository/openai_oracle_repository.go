package repository

import (
	"context"
	"errors"
	"fmt"

	"golang-stock-trader/internal/trading/config"
	"golang-stock-trader/pkg/apperr"
	"golang-stock-trader/pkg/logger"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// chatGenerator is the part of an eino chat model the oracle uses.
type chatGenerator interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// openAIOracleRepository is a ReasoningOracle backed by any OpenAI compatible
// chat completion endpoint (OpenAI, DeepSeek, OpenRouter).
type openAIOracleRepository struct {
	chatModel chatGenerator
	logger    *logger.Logger
}

// NewOpenAIOracleRepository creates a new instance of openAIOracleRepository.
func NewOpenAIOracleRepository(ctx context.Context, cfg *config.Config, log *logger.Logger) (ReasoningOracle, error) {
	chatCfg := &openai.ChatModelConfig{
		BaseURL: cfg.OpenAI.BaseURL,
		APIKey:  cfg.OpenAI.APIKey,
		Model:   cfg.OpenAI.Model,
	}
	if cfg.OpenAI.MaxTokens > 0 {
		maxTokens := cfg.OpenAI.MaxTokens
		chatCfg.MaxTokens = &maxTokens
	}

	chatModel, err := openai.NewChatModel(ctx, chatCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return newOpenAIOracleRepository(chatModel, log), nil
}

func newOpenAIOracleRepository(chatModel chatGenerator, log *logger.Logger) *openAIOracleRepository {
	return &openAIOracleRepository{chatModel: chatModel, logger: log}
}

func (r *openAIOracleRepository) Complete(ctx context.Context, systemContext, userContext string, temperature float32, expectJSON bool) (string, error) {
	if expectJSON {
		systemContext = WithJSONInstruction(systemContext)
	}

	messages := []*schema.Message{
		schema.SystemMessage(systemContext),
		schema.UserMessage(userContext),
	}

	resp, err := r.chatModel.Generate(ctx, messages, model.WithTemperature(temperature))
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		r.logger.DebugContext(ctx, "Chat completion failed", logger.ErrorField(err))
		return "", apperr.New(apperr.KindTransient, "openai.Generate", err)
	}
	if resp == nil {
		return "", apperr.Errorf(apperr.KindTransient, "openai.Generate", "nil message from chat model")
	}

	return requireContent("openai.Generate", resp.Content)
}
