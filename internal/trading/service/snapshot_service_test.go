package service

import (
	"context"
	"math"
	"testing"

	"golang-stock-trader/internal/entity"
	"golang-stock-trader/pkg/apperr"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotLatest(t *testing.T) {
	t.Run("stored snapshot wins", func(t *testing.T) {
		repo := newFakeSnapshotRepo()
		repo.latest["ACME"] = &entity.StockSnapshot{Ticker: "ACME", Price: decimal.NewFromInt(42)}
		svc := NewSnapshotService(repo, &fakeMarket{}, nopLogger())

		snapshot, err := svc.Latest(context.Background(), "ACME")
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(42).Equal(snapshot.Price))
		assert.Empty(t, repo.stored)
	})

	t.Run("missing snapshot is fetched and stored", func(t *testing.T) {
		repo := newFakeSnapshotRepo()
		svc := NewSnapshotService(repo, &fakeMarket{}, nopLogger())

		snapshot, err := svc.Latest(context.Background(), "ACME")
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(100).Equal(snapshot.Price))
		require.Len(t, repo.stored, 1)
		assert.Equal(t, "ACME", repo.stored[0].Ticker)
	})
}

func TestDecodeDecision(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    bool
		wantErr bool
	}{
		{"plain", `{"should_rebalance": true}`, true, false},
		{"fenced", "```json\n{\"should_rebalance\": true}\n```", true, false},
		{"bare fence", "```\n{\"should_rebalance\": false}\n```", false, false},
		{"prose", "yes, sell it", false, true},
		{"empty", "", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out struct {
				ShouldRebalance bool `json:"should_rebalance"`
			}
			err := decodeDecision("test", tt.raw, &out)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, apperr.KindMalformedOutput, apperr.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.ShouldRebalance)
		})
	}
}

func TestToConfidence(t *testing.T) {
	v := func(f float64) *float64 { return &f }
	assert.Equal(t, 0, toConfidence(nil))
	assert.Equal(t, 0, toConfidence(v(-5)))
	assert.Equal(t, 69, toConfidence(v(69.9)))
	assert.Equal(t, 100, toConfidence(v(250)))
	assert.Equal(t, 100, toConfidence(v(1e19)))
	assert.Equal(t, 0, toConfidence(v(math.NaN())))
}

func TestToQuantity(t *testing.T) {
	v := func(f float64) *float64 { return &f }
	assert.Equal(t, 0, toQuantity(nil))
	assert.Equal(t, 0, toQuantity(v(-3)))
	assert.Equal(t, 0, toQuantity(v(math.NaN())))
	assert.Equal(t, 7, toQuantity(v(7.9)))
	assert.Equal(t, math.MaxInt32, toQuantity(v(1e19)))
	assert.Equal(t, math.MaxInt32, toQuantity(v(math.Inf(1))))
}
