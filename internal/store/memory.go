package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Joe-Swanson828/prediction-bot/internal/market"
	"github.com/Joe-Swanson828/prediction-bot/internal/signal"
	"github.com/Joe-Swanson828/prediction-bot/internal/weights"
)

type signalRow struct {
	marketID string
	score    signal.Score
	actedOn  bool
	ts       time.Time
}

type compositeRow struct {
	composite signal.Composite
	ts        time.Time
}

type weightRow struct {
	category market.Category
	set      weights.Set
	ts       time.Time
}

// Memory is the in-process Store used for tests and offline/stub runs.
type Memory struct {
	mu         sync.Mutex
	markets    map[string]market.Market
	candles    map[string][]market.Candle
	signals    []signalRow
	composites []compositeRow
	trades     map[string]Trade
	tradeOrder []string
	positions  map[string]Position
	balances   []BalanceSnapshot
	weightRows []weightRow
	agentLog   []AgentLogEntry
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		markets:   make(map[string]market.Market),
		candles:   make(map[string][]market.Candle),
		trades:    make(map[string]Trade),
		positions: make(map[string]Position),
	}
}

func (s *Memory) UpsertMarket(_ context.Context, m market.Market) error {
	s.mu.Lock()
	s.markets[m.ID] = m
	s.mu.Unlock()
	return nil
}

func (s *Memory) Markets(_ context.Context) ([]market.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]market.Market, 0, len(s.markets))
	for _, m := range s.markets {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Memory) SaveCandles(_ context.Context, marketID string, candles []market.Candle) error {
	s.mu.Lock()
	s.candles[marketID] = append(s.candles[marketID], candles...)
	s.mu.Unlock()
	return nil
}

func (s *Memory) Candles(_ context.Context, marketID string, limit int) ([]market.Candle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.candles[marketID]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]market.Candle, len(all))
	copy(out, all)
	return out, nil
}

func (s *Memory) SaveSignal(_ context.Context, marketID string, sc signal.Score, actedOn bool, ts time.Time) error {
	s.mu.Lock()
	s.signals = append(s.signals, signalRow{marketID: marketID, score: sc, actedOn: actedOn, ts: ts})
	s.mu.Unlock()
	return nil
}

func (s *Memory) SaveComposite(_ context.Context, c signal.Composite, ts time.Time) error {
	s.mu.Lock()
	s.composites = append(s.composites, compositeRow{composite: c, ts: ts})
	s.mu.Unlock()
	return nil
}

func (s *Memory) SaveTrade(_ context.Context, t Trade) error {
	s.mu.Lock()
	if _, exists := s.trades[t.ID]; !exists {
		s.tradeOrder = append(s.tradeOrder, t.ID)
	}
	s.trades[t.ID] = t
	s.mu.Unlock()
	return nil
}

func (s *Memory) CloseTrade(_ context.Context, tradeID string, exitPrice, pnl, slippage float64, exitTime time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trades[tradeID]
	if !ok {
		return nil
	}
	t.Status = StatusClosed
	t.ExitPrice = exitPrice
	t.ExitTime = exitTime
	t.PnL = pnl
	t.Slippage = slippage
	s.trades[tradeID] = t
	return nil
}

func (s *Memory) OpenTrades(_ context.Context) ([]Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Trade
	for _, id := range s.tradeOrder {
		if t := s.trades[id]; t.Status == StatusOpen {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Memory) OpenTradeForMarket(_ context.Context, marketID string) (Trade, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Newest first, matching the latest-row read semantics of the contract.
	for i := len(s.tradeOrder) - 1; i >= 0; i-- {
		t := s.trades[s.tradeOrder[i]]
		if t.MarketID == marketID && t.Status == StatusOpen {
			return t, true, nil
		}
	}
	return Trade{}, false, nil
}

func (s *Memory) ClosedTrades(_ context.Context, limit int) ([]Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closedLocked(func(Trade) bool { return true }, limit), nil
}

func (s *Memory) RecentClosedTrades(_ context.Context, category market.Category, limit int) ([]Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closedLocked(func(t Trade) bool { return t.Category == category }, limit), nil
}

// closedLocked returns closed trades newest first.
func (s *Memory) closedLocked(match func(Trade) bool, limit int) []Trade {
	var out []Trade
	for i := len(s.tradeOrder) - 1; i >= 0; i-- {
		t := s.trades[s.tradeOrder[i]]
		if t.Status == StatusClosed && match(t) {
			out = append(out, t)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out
}

func (s *Memory) ClosedTradeCount(_ context.Context, category market.Category) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int
	for _, t := range s.trades {
		if t.Status == StatusClosed && t.Category == category {
			count++
		}
	}
	return count, nil
}

func (s *Memory) SavePosition(_ context.Context, p Position) error {
	s.mu.Lock()
	s.positions[p.TradeID] = p
	s.mu.Unlock()
	return nil
}

func (s *Memory) DeletePosition(_ context.Context, tradeID string) error {
	s.mu.Lock()
	delete(s.positions, tradeID)
	s.mu.Unlock()
	return nil
}

func (s *Memory) OpenPositions(_ context.Context) ([]Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Position, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MarketID < out[j].MarketID })
	return out, nil
}

func (s *Memory) SaveBalance(_ context.Context, snap BalanceSnapshot) error {
	s.mu.Lock()
	s.balances = append(s.balances, snap)
	s.mu.Unlock()
	return nil
}

func (s *Memory) BalanceHistory(_ context.Context, mode string, limit int) ([]BalanceSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []BalanceSnapshot
	for _, b := range s.balances {
		if b.Mode == mode {
			out = append(out, b)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *Memory) CurrentWeights(_ context.Context, category market.Category) (weights.Set, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.weightRows) - 1; i >= 0; i-- {
		if s.weightRows[i].category == category {
			return s.weightRows[i].set, true, nil
		}
	}
	return weights.Set{}, false, nil
}

func (s *Memory) SaveWeights(_ context.Context, category market.Category, set weights.Set, ts time.Time) error {
	s.mu.Lock()
	s.weightRows = append(s.weightRows, weightRow{category: category, set: set, ts: ts})
	s.mu.Unlock()
	return nil
}

// WeightHistoryLen reports how many weight snapshots exist for a category.
func (s *Memory) WeightHistoryLen(category market.Category) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	for _, r := range s.weightRows {
		if r.category == category {
			n++
		}
	}
	return n
}

func (s *Memory) SaveAgentLog(_ context.Context, e AgentLogEntry) error {
	s.mu.Lock()
	s.agentLog = append(s.agentLog, e)
	s.mu.Unlock()
	return nil
}

func (s *Memory) AgentLog(_ context.Context, limit int) ([]AgentLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AgentLogEntry, len(s.agentLog))
	copy(out, s.agentLog)
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *Memory) Close() {}
