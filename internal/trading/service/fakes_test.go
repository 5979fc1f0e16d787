package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang-stock-trader/internal/entity"
	"golang-stock-trader/internal/trading/config"
	"golang-stock-trader/internal/trading/dto"
	"golang-stock-trader/internal/trading/repository"
	"golang-stock-trader/pkg/apperr"
	"golang-stock-trader/pkg/logger"

	"github.com/shopspring/decimal"
)

var testNow = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

func testConfig(tickers ...string) *config.Config {
	return &config.Config{
		Trading: config.Trading{
			Tickers:            tickers,
			Exchange:           "US",
			MaxHeadlines:       30,
			MaxDebateArticles:  20,
			ArticleCharBudget:  1000,
			MaxDebateTrades:    5,
			MaxReviewTrades:    10,
			MaxRebalanceTitles: 5,
		},
		Lock: config.Lock{Name: "trading-cycle"},
	}
}

func price(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

type oracleCall struct {
	System      string
	User        string
	Temperature float32
	ExpectJSON  bool
}

// fakeOracle answers by system prompt. A missing reply is an error.
type fakeOracle struct {
	mu      sync.Mutex
	replies map[string][]string
	errs    map[string]error
	calls   []oracleCall
}

func newFakeOracle() *fakeOracle {
	return &fakeOracle{replies: map[string][]string{}, errs: map[string]error{}}
}

func (o *fakeOracle) on(system string, replies ...string) *fakeOracle {
	o.replies[system] = append(o.replies[system], replies...)
	return o
}

func (o *fakeOracle) fail(system string, err error) *fakeOracle {
	o.errs[system] = err
	return o
}

func (o *fakeOracle) Complete(_ context.Context, system, user string, temperature float32, expectJSON bool) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, oracleCall{System: system, User: user, Temperature: temperature, ExpectJSON: expectJSON})
	if err := o.errs[system]; err != nil {
		return "", err
	}
	queue := o.replies[system]
	if len(queue) == 0 {
		return "", apperr.Errorf(apperr.KindTransient, "fake", "no reply scripted")
	}
	reply := queue[0]
	if len(queue) > 1 {
		o.replies[system] = queue[1:]
	}
	return reply, nil
}

func (o *fakeOracle) callsTo(system string) []oracleCall {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []oracleCall
	for _, c := range o.calls {
		if c.System == system {
			out = append(out, c)
		}
	}
	return out
}

type fakeArticleRepo struct {
	articles []entity.Article
	err      error
}

func (r *fakeArticleRepo) FindRecent(_ context.Context, ticker string, since time.Time, limit int, usableOnly bool) ([]entity.Article, error) {
	if r.err != nil {
		return nil, r.err
	}
	var out []entity.Article
	for _, a := range r.articles {
		if a.Ticker != ticker || a.Timestamp.Before(since) || (usableOnly && !a.IsUsable) {
			continue
		}
		out = append(out, a)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeArticleRepo) CountRecent(ctx context.Context, ticker string, since time.Time) (int64, error) {
	articles, err := r.FindRecent(ctx, ticker, since, 0, false)
	return int64(len(articles)), err
}

type fakeEventRepo struct {
	events []*entity.AnalysisEvent
	err    error
}

func (r *fakeEventRepo) Create(_ context.Context, event *entity.AnalysisEvent) error {
	if r.err != nil {
		return r.err
	}
	event.ID = int64(len(r.events) + 1)
	r.events = append(r.events, event)
	return nil
}

type fakeDebateRepo struct {
	debates []*entity.Debate
}

func (r *fakeDebateRepo) Create(_ context.Context, debate *entity.Debate) error {
	debate.ID = int64(len(r.debates) + 1)
	r.debates = append(r.debates, debate)
	return nil
}

type fakeSnapshotRepo struct {
	latest map[string]*entity.StockSnapshot
	stored []*entity.StockSnapshot
}

func newFakeSnapshotRepo() *fakeSnapshotRepo {
	return &fakeSnapshotRepo{latest: map[string]*entity.StockSnapshot{}}
}

func (r *fakeSnapshotRepo) Create(_ context.Context, s *entity.StockSnapshot) error {
	s.ID = int64(len(r.stored) + 1)
	r.stored = append(r.stored, s)
	r.latest[s.Ticker] = s
	return nil
}

func (r *fakeSnapshotRepo) GetLatest(_ context.Context, ticker string) (*entity.StockSnapshot, error) {
	return r.latest[ticker], nil
}

// fakeSnapshots is a SnapshotService returning fixed prices.
type fakeSnapshots struct {
	prices    map[string]string
	refreshed []string
}

func (f *fakeSnapshots) Latest(_ context.Context, ticker string) (*entity.StockSnapshot, error) {
	p, ok := f.prices[ticker]
	if !ok {
		return nil, fmt.Errorf("no snapshot for %s", ticker)
	}
	return &entity.StockSnapshot{Ticker: ticker, Price: decimal.RequireFromString(p), CapturedAt: testNow}, nil
}

func (f *fakeSnapshots) Refresh(ctx context.Context, ticker string) (*entity.StockSnapshot, error) {
	f.refreshed = append(f.refreshed, ticker)
	return f.Latest(ctx, ticker)
}

// ledger records proposals, executed trades and rebalance sells in write order.
type ledger struct {
	mu         sync.Mutex
	proposals  map[int64]*entity.TradeProposal
	trades     []*entity.ExecutedTrade
	rebalances []*entity.RebalanceTrade
	writes     []string
	nextID     int64
	tradeErr   error

	// executedErr fails transitions to EXECUTED only.
	executedErr error
}

func newLedger() *ledger {
	return &ledger{proposals: map[int64]*entity.TradeProposal{}}
}

func (l *ledger) id() int64 {
	l.nextID++
	return l.nextID
}

func (l *ledger) Create(_ context.Context, p *entity.TradeProposal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	p.ID = l.id()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = testNow
	}
	stored := *p
	l.proposals[p.ID] = &stored
	return nil
}

func (l *ledger) GetByID(_ context.Context, id int64) (*entity.TradeProposal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.proposals[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (l *ledger) Resolve(_ context.Context, id int64, status string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if status == entity.ProposalStatusExecuted && l.executedErr != nil {
		return false, l.executedErr
	}
	p, ok := l.proposals[id]
	if !ok || p.Status != entity.ProposalStatusPending {
		return false, nil
	}
	p.Status = status
	return true, nil
}

func (l *ledger) ListPending(_ context.Context, since time.Time) ([]entity.TradeProposal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []entity.TradeProposal
	for id := int64(1); id <= l.nextID; id++ {
		p, ok := l.proposals[id]
		if ok && p.Status == entity.ProposalStatusPending && !p.CreatedAt.Before(since) {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (l *ledger) status(id int64) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.proposals[id].Status
}

// tradeLedger adapts ledger to ExecutedTradeRepository.
type tradeLedger struct{ *ledger }

func (l tradeLedger) Create(_ context.Context, t *entity.ExecutedTrade) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.tradeErr != nil {
		return l.tradeErr
	}
	t.ID = l.id()
	l.trades = append(l.trades, t)
	l.writes = append(l.writes, "trade:"+t.Ticker)
	return nil
}

func (l tradeLedger) CreateRebalance(_ context.Context, t *entity.RebalanceTrade) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	t.ID = l.id()
	l.rebalances = append(l.rebalances, t)
	l.writes = append(l.writes, "rebalance:"+t.Ticker)
	return nil
}

func (l tradeLedger) GetByProposalID(_ context.Context, proposalID int64) (*entity.ExecutedTrade, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, t := range l.trades {
		if t.TradeProposalID == proposalID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (l tradeLedger) FindRecent(_ context.Context, ticker string, since time.Time, limit int) ([]entity.ExecutedTrade, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []entity.ExecutedTrade
	for _, t := range l.trades {
		if (ticker == "" || t.Ticker == ticker) && !t.ExecutedAt.Before(since) {
			out = append(out, *t)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (l tradeLedger) HasTradedToday(_ context.Context, now time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	y, m, d := now.Date()
	for _, t := range l.trades {
		ty, tm, td := t.ExecutedAt.Date()
		if ty == y && tm == m && td == d {
			return true, nil
		}
	}
	return false, nil
}

type fakeBroker struct {
	mu        sync.Mutex
	account   dto.Account
	positions []dto.Position
	orders    []dto.OrderRequest
	status    string
	submitErr error
	accErr    error
}

func (b *fakeBroker) GetAccount(context.Context) (*dto.Account, error) {
	if b.accErr != nil {
		return nil, b.accErr
	}
	acc := b.account
	return &acc, nil
}

func (b *fakeBroker) ListPositions(context.Context) ([]dto.Position, error) {
	return append([]dto.Position(nil), b.positions...), nil
}

func (b *fakeBroker) SubmitOrder(_ context.Context, order dto.OrderRequest) (*dto.OrderResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.submitErr != nil {
		return nil, b.submitErr
	}
	b.orders = append(b.orders, order)
	status := b.status
	if status == "" {
		status = "filled"
	}
	return &dto.OrderResult{
		ID:            fmt.Sprintf("order-%d", len(b.orders)),
		ClientOrderID: order.ClientOrderID,
		Symbol:        order.Symbol,
		Side:          order.Side,
		Status:        status,
	}, nil
}

func (b *fakeBroker) GetOrderByClientID(_ context.Context, clientOrderID string) (*dto.OrderResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, o := range b.orders {
		if o.ClientOrderID != clientOrderID {
			continue
		}
		status := b.status
		if status == "" {
			status = "filled"
		}
		return &dto.OrderResult{
			ID:            fmt.Sprintf("order-%d", i+1),
			ClientOrderID: o.ClientOrderID,
			Symbol:        o.Symbol,
			Side:          o.Side,
			Status:        status,
			FilledQty:     decimal.NewFromInt(int64(o.Qty)),
		}, nil
	}
	return nil, apperr.Errorf(apperr.KindNotFound, "fake", "no order %s", clientOrderID)
}

func (b *fakeBroker) submitted() []dto.OrderRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]dto.OrderRequest(nil), b.orders...)
}

type fakePublisher struct {
	published []*entity.ExecutedTrade
	err       error
}

func (p *fakePublisher) PublishTradeExecuted(_ context.Context, t *entity.ExecutedTrade) error {
	p.published = append(p.published, t)
	return p.err
}

type fakeNotifier struct {
	messages []string
}

func (n *fakeNotifier) SendMessage(text string) error {
	n.messages = append(n.messages, text)
	return nil
}

type fakeMarket struct {
	open bool
}

func (m *fakeMarket) LatestSnapshot(_ context.Context, ticker string) (*entity.StockSnapshot, error) {
	return &entity.StockSnapshot{Ticker: ticker, Price: decimal.NewFromInt(100), CapturedAt: testNow}, nil
}

func (m *fakeMarket) IsMarketOpen(context.Context, string) bool {
	return m.open
}

// inProcessLocker serializes WithLock calls within the test process.
type inProcessLocker struct {
	mu      sync.Mutex
	timeout bool
	calls   int
}

func (l *inProcessLocker) WithLock(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	if l.timeout {
		return apperr.Errorf(apperr.KindLockTimeout, "lock.acquire", "could not acquire lock %q", name)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	return fn(ctx)
}

var errBoom = errors.New("boom")

var (
	_ repository.ReasoningOracle         = (*fakeOracle)(nil)
	_ repository.TradeProposalRepository = (*ledger)(nil)
	_ repository.ExecutedTradeRepository = tradeLedger{}
	_ repository.BrokerGateway           = (*fakeBroker)(nil)
	_ repository.MarketDataGateway       = (*fakeMarket)(nil)
	_ repository.StockSnapshotRepository = (*fakeSnapshotRepo)(nil)
	_ repository.ArticleRepository       = (*fakeArticleRepo)(nil)
	_ repository.AnalysisEventRepository = (*fakeEventRepo)(nil)
	_ repository.DebateRepository        = (*fakeDebateRepo)(nil)
	_ repository.TradeEventPublisher     = (*fakePublisher)(nil)
	_ SnapshotService                    = (*fakeSnapshots)(nil)
)

func nopLogger() *logger.Logger {
	return logger.NewNop()
}
