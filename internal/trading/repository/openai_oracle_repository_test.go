package repository

import (
	"context"
	"errors"
	"testing"

	"golang-stock-trader/pkg/apperr"
	"golang-stock-trader/pkg/logger"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChatModel struct {
	reply    *schema.Message
	err      error
	received []*schema.Message
	opts     []model.Option
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.received = input
	f.opts = opts
	return f.reply, f.err
}

func TestOpenAIOracleComplete(t *testing.T) {
	chat := &fakeChatModel{reply: schema.AssistantMessage(`{"is_interesting": true}`, nil)}
	oracle := newOpenAIOracleRepository(chat, logger.NewNop())

	text, err := oracle.Complete(context.Background(), "system", "user", 0.7, true)
	require.NoError(t, err)
	assert.Equal(t, `{"is_interesting": true}`, text)

	require.Len(t, chat.received, 2)
	assert.Equal(t, schema.System, chat.received[0].Role)
	assert.Contains(t, chat.received[0].Content, "single JSON object")
	assert.Equal(t, "user", chat.received[1].Content)
	assert.Len(t, chat.opts, 1)
	assert.Equal(t, float32(0.7), *model.GetCommonOptions(nil, chat.opts...).Temperature)
}

func TestOpenAIOracleRejectsEmptyResponse(t *testing.T) {
	chat := &fakeChatModel{reply: schema.AssistantMessage("   ", nil)}
	oracle := newOpenAIOracleRepository(chat, logger.NewNop())

	_, err := oracle.Complete(context.Background(), "system", "user", 0.5, false)
	require.Error(t, err)
	assert.True(t, apperr.IsRetryable(err))
}

func TestOpenAIOracleClassifiesErrors(t *testing.T) {
	chat := &fakeChatModel{err: errors.New("connection reset by peer")}
	oracle := newOpenAIOracleRepository(chat, logger.NewNop())

	_, err := oracle.Complete(context.Background(), "system", "user", 0.5, false)
	assert.True(t, apperr.Is(err, apperr.KindTransient))

	chat.err = context.Canceled
	_, err = oracle.Complete(context.Background(), "system", "user", 0.5, false)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, apperr.IsRetryable(err))
}
