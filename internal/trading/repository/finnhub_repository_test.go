package repository

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"golang-stock-trader/internal/trading/config"
	"golang-stock-trader/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFinnhubForTest(url string) MarketDataGateway {
	cfg := &config.Config{
		Finnhub:    config.Finnhub{BaseURL: url, APIKey: "token", Timeout: time.Second},
		MarketData: config.MarketData{ProfileCacheTTL: time.Hour, MarketStatusCache: time.Minute},
	}
	return NewFinnhubRepository(cfg, fastPolicy(), logger.NewNop())
}

func TestFinnhubLatestSnapshot(t *testing.T) {
	var profileCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "token", r.Header.Get("X-Finnhub-Token"))
		assert.Equal(t, "ACME", r.URL.Query().Get("symbol"))
		switch r.URL.Path {
		case "/quote":
			writeJSON(w, http.StatusOK, `{"c":101.5,"h":103,"l":99.5,"o":100,"pc":100,"t":1700000000}`)
		case "/stock/profile2":
			atomic.AddInt32(&profileCalls, 1)
			writeJSON(w, http.StatusOK, `{"name":"Acme","marketCapitalization":2500.5}`)
		case "/stock/metric":
			writeJSON(w, http.StatusOK, `{"metric":{"peTTM":21.4}}`)
		}
	}))
	defer srv.Close()

	gw := newFinnhubForTest(srv.URL)
	snap, err := gw.LatestSnapshot(context.Background(), "ACME")
	require.NoError(t, err)

	assert.True(t, decimal.NewFromFloat(101.5).Equal(snap.Price))
	require.NotNil(t, snap.MarketCap)
	assert.Equal(t, int64(2_500_500_000), *snap.MarketCap)
	require.NotNil(t, snap.PERatio)
	assert.Equal(t, "21.4", snap.PERatio.String())

	change, pct := snap.PriceChange()
	assert.Equal(t, "1.5", change.String())
	assert.Equal(t, "1.5", pct.String())

	_, err = gw.LatestSnapshot(context.Background(), "ACME")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&profileCalls))
}

func TestFinnhubUnknownTicker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"c":0,"h":0,"l":0,"o":0,"pc":0,"t":0}`)
	}))
	defer srv.Close()

	_, err := newFinnhubForTest(srv.URL).LatestSnapshot(context.Background(), "NOPE")
	assert.Error(t, err)
}

func TestFinnhubIsMarketOpen(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   bool
	}{
		{"open", http.StatusOK, `{"exchange":"US","isOpen":true,"session":"regular"}`, true},
		{"closed", http.StatusOK, `{"exchange":"US","isOpen":false,"session":"post-market"}`, false},
		{"error fails closed", http.StatusInternalServerError, `{}`, false},
		{"auth error fails closed", http.StatusUnauthorized, `{}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/stock/market-status", r.URL.Path)
				writeJSON(w, tt.status, tt.body)
			}))
			defer srv.Close()

			assert.Equal(t, tt.want, newFinnhubForTest(srv.URL).IsMarketOpen(context.Background(), "US"))
		})
	}
}
