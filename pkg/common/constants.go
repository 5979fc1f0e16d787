package common

const (
	RedisStreamTradeExecuted = "trading.trade.executed"

	// LockTradingCycle guards check-daily-cap -> run-cycle across instances.
	LockTradingCycle = "trading-cycle"

	// MinTradeConfidence is the hard floor for BUY/SELL proposals.
	MinTradeConfidence = 70

	AgentScreening = "screening"

	EventTypeTickerAnalysis = "ticker_analysis"
	DebateTypeBullVsBear    = "bull_vs_bear"
)
