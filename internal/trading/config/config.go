package config

import (
	"fmt"
	"strings"
	"time"

	"golang-stock-trader/pkg/common"
	"golang-stock-trader/pkg/config"

	"github.com/spf13/viper"
)

// Trading holds the workflow settings.
type Trading struct {
	Tickers         []string      `mapstructure:"tickers"`
	Exchange        string        `mapstructure:"exchange"`
	TimeZone        string        `mapstructure:"time_zone"`
	Schedule        string        `mapstructure:"schedule"`
	TickerDelay     time.Duration `mapstructure:"ticker_delay"`
	SettlementDelay time.Duration `mapstructure:"settlement_delay"`

	MaxHeadlines       int `mapstructure:"max_headlines"`
	MaxDebateArticles  int `mapstructure:"max_debate_articles"`
	ArticleCharBudget  int `mapstructure:"article_char_budget"`
	MaxDebateTrades    int `mapstructure:"max_debate_trades"`
	MaxReviewTrades    int `mapstructure:"max_review_trades"`
	MaxRebalanceTitles int `mapstructure:"max_rebalance_headlines"`
}

// Lock holds the distributed lock settings.
type Lock struct {
	Backend       string        `mapstructure:"backend"`
	Name          string        `mapstructure:"name"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
	Timeout       time.Duration `mapstructure:"timeout"`
	TTL           time.Duration `mapstructure:"ttl"`
}

// RateLimit holds the reasoning oracle call budget.
type RateLimit struct {
	MaxCalls int           `mapstructure:"max_calls"`
	Period   time.Duration `mapstructure:"period"`
}

// RetryPolicy holds backoff settings for one external service.
type RetryPolicy struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
}

// Retry holds per-service retry policies.
type Retry struct {
	Oracle     RetryPolicy `mapstructure:"oracle"`
	Broker     RetryPolicy `mapstructure:"broker"`
	MarketData RetryPolicy `mapstructure:"market_data"`
}

// AI selects the reasoning oracle provider.
type AI struct {
	Provider string `mapstructure:"provider"`
}

// Gemini holds the configuration for the Gemini API.
type Gemini struct {
	APIKey            string `mapstructure:"api_key"`
	Model             string `mapstructure:"model"`
	MaxTokenPerMinute int    `mapstructure:"max_token_per_minute"`
}

// OpenAI holds the configuration for an OpenAI-compatible chat API.
type OpenAI struct {
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`
	Model     string `mapstructure:"model"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

// MarketData selects the market data provider.
type MarketData struct {
	Provider          string        `mapstructure:"provider"`
	ProfileCacheTTL   time.Duration `mapstructure:"profile_cache_ttl"`
	MarketStatusCache time.Duration `mapstructure:"market_status_cache_ttl"`
}

// Finnhub holds the configuration for the Finnhub API.
type Finnhub struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Alpaca holds the configuration for the Alpaca trading API.
type Alpaca struct {
	APIKey    string        `mapstructure:"api_key"`
	APISecret string        `mapstructure:"api_secret"`
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// Telegram holds configuration for the Telegram notifier.
type Telegram struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id"`
}

// Config holds the full configuration for the trading service.
type Config struct {
	App             config.App      `mapstructure:"app"`
	Logger          config.Logger   `mapstructure:"logger"`
	Database        config.Database `mapstructure:"database"`
	Redis           config.Redis    `mapstructure:"redis"`
	API             config.API      `mapstructure:"api"`
	Trading         Trading         `mapstructure:"trading"`
	Lock            Lock            `mapstructure:"lock"`
	OracleRateLimit RateLimit       `mapstructure:"oracle_rate_limit"`
	Retry           Retry           `mapstructure:"retry"`
	AI              AI              `mapstructure:"ai"`
	Gemini          Gemini          `mapstructure:"gemini"`
	OpenAI          OpenAI          `mapstructure:"openai"`
	MarketData      MarketData      `mapstructure:"market_data"`
	Finnhub         Finnhub         `mapstructure:"finnhub"`
	Alpaca          Alpaca          `mapstructure:"alpaca"`
	Telegram        Telegram        `mapstructure:"telegram"`
}

func setDefaults() {
	viper.SetDefault("app.name", "trading-service")
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.encoding", "json")

	viper.SetDefault("trading.exchange", "US")
	viper.SetDefault("trading.time_zone", "America/New_York")
	viper.SetDefault("trading.schedule", "@every 1h")
	viper.SetDefault("trading.ticker_delay", "5s")
	viper.SetDefault("trading.settlement_delay", "2s")
	viper.SetDefault("trading.max_headlines", 30)
	viper.SetDefault("trading.max_debate_articles", 20)
	viper.SetDefault("trading.article_char_budget", 1000)
	viper.SetDefault("trading.max_debate_trades", 5)
	viper.SetDefault("trading.max_review_trades", 10)
	viper.SetDefault("trading.max_rebalance_headlines", 5)

	viper.SetDefault("lock.backend", "postgres")
	viper.SetDefault("lock.name", common.LockTradingCycle)
	viper.SetDefault("lock.retry_interval", "500ms")
	viper.SetDefault("lock.timeout", "120s")
	viper.SetDefault("lock.ttl", "4h")

	viper.SetDefault("oracle_rate_limit.max_calls", 1000)
	viper.SetDefault("oracle_rate_limit.period", "60s")

	viper.SetDefault("retry.oracle.max_attempts", 3)
	viper.SetDefault("retry.oracle.initial_interval", "2s")
	viper.SetDefault("retry.oracle.max_interval", "30s")
	viper.SetDefault("retry.oracle.multiplier", 2.0)
	for _, svc := range []string{"broker", "market_data"} {
		viper.SetDefault("retry."+svc+".max_attempts", 5)
		viper.SetDefault("retry."+svc+".initial_interval", "2s")
		viper.SetDefault("retry."+svc+".max_interval", "60s")
		viper.SetDefault("retry."+svc+".multiplier", 2.0)
	}

	viper.SetDefault("ai.provider", "openai")
	viper.SetDefault("openai.base_url", "https://api.openai.com/v1")
	viper.SetDefault("openai.model", "gpt-4o-mini")
	viper.SetDefault("gemini.model", "gemini-2.0-flash")

	viper.SetDefault("market_data.provider", "finnhub")
	viper.SetDefault("market_data.profile_cache_ttl", "24h")
	viper.SetDefault("market_data.market_status_cache_ttl", "1m")
	viper.SetDefault("finnhub.base_url", "https://finnhub.io/api/v1")
	viper.SetDefault("finnhub.timeout", "30s")
	viper.SetDefault("alpaca.base_url", "https://paper-api.alpaca.markets")
	viper.SetDefault("alpaca.timeout", "30s")
}

// Load loads the trading configuration from the given path.
func Load(path string) (*Config, error) {
	setDefaults()

	var cfg Config
	if err := config.Load(path, &cfg); err != nil {
		return nil, err
	}
	cfg.Trading.Tickers = NormalizeTickers(cfg.Trading.Tickers)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if len(c.Trading.Tickers) == 0 {
		return fmt.Errorf("trading.tickers must list at least one ticker")
	}
	if c.OracleRateLimit.MaxCalls <= 0 || c.OracleRateLimit.Period <= 0 {
		return fmt.Errorf("oracle_rate_limit requires positive max_calls and period")
	}
	switch c.AI.Provider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("unsupported ai.provider %q", c.AI.Provider)
	}
	switch c.MarketData.Provider {
	case "finnhub", "yahoo":
	default:
		return fmt.Errorf("unsupported market_data.provider %q", c.MarketData.Provider)
	}
	switch c.Lock.Backend {
	case "postgres", "redis":
	default:
		return fmt.Errorf("unsupported lock.backend %q", c.Lock.Backend)
	}
	return nil
}

// NormalizeTickers upper-cases, trims and de-duplicates tickers, keeping order.
// A single comma separated entry, as set through STOCK_LIST style variables,
// is split first.
func NormalizeTickers(raw []string) []string {
	var parts []string
	for _, r := range raw {
		parts = append(parts, strings.Split(r, ",")...)
	}

	seen := make(map[string]struct{}, len(parts))
	tickers := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.ToUpper(strings.TrimSpace(p))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		tickers = append(tickers, t)
	}
	return tickers
}
