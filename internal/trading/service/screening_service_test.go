package service

import (
	"context"
	"testing"
	"time"

	"golang-stock-trader/internal/entity"
	"golang-stock-trader/internal/trading/repository"
	"golang-stock-trader/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScreening(oracle *fakeOracle, articles *fakeArticleRepo, events *fakeEventRepo) *screeningService {
	svc := NewScreeningService(
		testConfig("ACME"),
		oracle,
		articles,
		events,
		&fakeSnapshots{prices: map[string]string{"ACME": "120.50"}},
		nopLogger(),
	).(*screeningService)
	svc.now = func() time.Time { return testNow }
	return svc
}

func TestScreen(t *testing.T) {
	articles := &fakeArticleRepo{articles: []entity.Article{
		{Ticker: "ACME", Title: "ACME beats estimates", Timestamp: testNow.Add(-time.Hour)},
		{Ticker: "ACME", Title: "ACME raises guidance", Timestamp: testNow.Add(-2 * time.Hour)},
		{Ticker: "ACME", Title: "Stale story", Timestamp: testNow.Add(-48 * time.Hour)},
		{Ticker: "OTHER", Title: "Unrelated", Timestamp: testNow.Add(-time.Hour)},
	}}

	tests := []struct {
		name            string
		oracle          *fakeOracle
		wantInteresting bool
		wantConfidence  int
		wantErrKind     apperr.Kind
		wantErr         bool
	}{
		{
			name:            "interesting",
			oracle:          newFakeOracle().on(repository.ScreeningSystemPrompt, `{"is_interesting": true, "reasoning": "two beats", "confidence": 82}`),
			wantInteresting: true,
			wantConfidence:  82,
		},
		{
			name:            "fenced json",
			oracle:          newFakeOracle().on(repository.ScreeningSystemPrompt, "```json\n{\"is_interesting\": false, \"reasoning\": \"routine\", \"confidence\": 40}\n```"),
			wantInteresting: false,
			wantConfidence:  40,
		},
		{
			name:        "missing is_interesting",
			oracle:      newFakeOracle().on(repository.ScreeningSystemPrompt, `{"reasoning": "unsure"}`),
			wantErr:     true,
			wantErrKind: apperr.KindMalformedOutput,
		},
		{
			name:        "not json",
			oracle:      newFakeOracle().on(repository.ScreeningSystemPrompt, "I think it is interesting"),
			wantErr:     true,
			wantErrKind: apperr.KindMalformedOutput,
		},
		{
			name:        "oracle unavailable",
			oracle:      newFakeOracle().fail(repository.ScreeningSystemPrompt, apperr.Errorf(apperr.KindAuth, "oracle", "bad key")),
			wantErr:     true,
			wantErrKind: apperr.KindAuth,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := &fakeEventRepo{}
			svc := newTestScreening(tt.oracle, articles, events)

			result, err := svc.Screen(context.Background(), "ACME")
			require.NotNil(t, result)
			require.Len(t, events.events, 1, "an analysis event is always recorded")
			event := events.events[0]

			assert.Equal(t, tt.wantInteresting, result.Interesting)
			assert.Equal(t, event.ID, result.EventID)
			assert.Equal(t, []string{"ACME beats estimates", "ACME raises guidance"}, []string(event.Headlines))
			assert.NotEmpty(t, event.OutputDecision)

			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.wantErrKind, apperr.KindOf(err))
				assert.False(t, event.IsInteresting)
				assert.Equal(t, err.Error(), event.Reasoning)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantConfidence, event.Confidence)

			calls := tt.oracle.callsTo(repository.ScreeningSystemPrompt)
			require.Len(t, calls, 1)
			assert.InDelta(t, 0.7, calls[0].Temperature, 0.001)
			assert.True(t, calls[0].ExpectJSON)
			assert.Contains(t, calls[0].User, "ACME beats estimates")
		})
	}
}

func TestScreenStoreFailure(t *testing.T) {
	oracle := newFakeOracle().on(repository.ScreeningSystemPrompt, `{"is_interesting": true, "reasoning": "x", "confidence": 90}`)
	svc := newTestScreening(oracle, &fakeArticleRepo{}, &fakeEventRepo{err: errBoom})

	result, err := svc.Screen(context.Background(), "ACME")
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
	assert.False(t, result.Interesting, "an unrecorded screening never proceeds")
}
