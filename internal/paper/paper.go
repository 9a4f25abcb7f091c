// Package paper simulates execution against live prices: it fills orders with
// adverse slippage, tracks the cash balance, and keeps the durable trade and
// position records in sync with the in-memory risk state.
package paper

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Joe-Swanson828/prediction-bot/internal/metrics"
	"github.com/Joe-Swanson828/prediction-bot/internal/risk"
	"github.com/Joe-Swanson828/prediction-bot/internal/signal"
	"github.com/Joe-Swanson828/prediction-bot/internal/store"
)

const (
	// Simulated slippage band, always applied against the trader.
	slippageMin = 0.001
	slippageMax = 0.005

	// Contract prices stay inside the book's valid range after slippage.
	minFillPrice = 0.01
	maxFillPrice = 0.99

	// Orders below this dollar size are not worth simulating.
	minOrderSize = 0.50

	mode = "paper"
)

// Result reports the outcome of an execution attempt. A rejected order is a
// normal result, not an error.
type Result struct {
	Executed bool
	Trade    store.Trade
	Reason   string
}

// CloseResult reports a simulated position close.
type CloseResult struct {
	Closed bool
	Trade  store.Trade
	PnL    float64
	Reason string
}

// Stats summarizes closed-trade performance.
type Stats struct {
	Balance      float64
	TotalTrades  int
	Wins         int
	Losses       int
	WinRate      float64
	TotalPnL     float64
	TodayPnL     float64
	ProfitFactor float64
	BestTrade    float64
	WorstTrade   float64
	OpenCount    int
}

// Executor is the paper-trading engine. One mutex serializes admission and
// execution so concurrent scans cannot double-spend the balance.
type Executor struct {
	mu      sync.Mutex
	log     zerolog.Logger
	store   store.Store
	risk    *risk.Manager
	balance float64

	rand *rand.Rand
	now  func() time.Time
}

// NewExecutor builds an executor with the starting balance.
func NewExecutor(log zerolog.Logger, st store.Store, rm *risk.Manager, startingBalance float64) *Executor {
	return &Executor{
		log:     log.With().Str("component", "paper").Logger(),
		store:   st,
		risk:    rm,
		balance: startingBalance,
		rand:    rand.New(rand.NewSource(time.Now().UnixNano())),
		now:     time.Now,
	}
}

// SetClock overrides the time source, for tests.
func (e *Executor) SetClock(now func() time.Time) { e.now = now }

// SetRand overrides the slippage source, for tests.
func (e *Executor) SetRand(r *rand.Rand) { e.rand = r }

// Balance returns the current cash balance.
func (e *Executor) Balance() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balance
}

func (e *Executor) drawSlippage() float64 {
	return slippageMin + e.rand.Float64()*(slippageMax-slippageMin)
}

func clampFill(p float64) float64 {
	if p < minFillPrice {
		return minFillPrice
	}
	if p > maxFillPrice {
		return maxFillPrice
	}
	return p
}

// ExecuteTrade tries to open a position from a trade-eligible composite.
// marketPrice is the current price of the contract being bought (YES price
// for BUY_YES, NO price for BUY_NO).
func (e *Executor) ExecuteTrade(ctx context.Context, c signal.Composite, marketPrice float64) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !c.TradeEligible || c.Recommendation == signal.Hold {
		return Result{Reason: "not trade eligible"}
	}

	size := e.risk.ComputePositionSize(e.balance, c.FinalScore)
	if size < minOrderSize {
		return Result{Reason: fmt.Sprintf("position size $%.2f below minimum $%.2f", size, minOrderSize)}
	}
	if decision := e.risk.CanTrade(c.MarketID, size); !decision.Allowed {
		metrics.RiskRejectionsTotal.WithLabelValues(decision.Rule).Inc()
		e.log.Info().Str("market", c.MarketID).Str("rule", decision.Rule).
			Str("reason", decision.Reason).Msg("trade rejected by risk check")
		return Result{Reason: decision.Reason}
	}

	slip := e.drawSlippage()
	fill := clampFill(marketPrice * (1 + slip))

	if size > e.balance {
		size = e.balance
	}
	qty := size / fill

	direction := "YES"
	if c.Recommendation == signal.BuyNo {
		direction = "NO"
	}

	now := e.now()
	trade := store.Trade{
		ID:             uuid.NewString(),
		MarketID:       c.MarketID,
		Category:       c.Category,
		Direction:      direction,
		Quantity:       qty,
		EntryPrice:     fill,
		EntryTime:      now,
		Status:         store.StatusOpen,
		CompositeScore: c.FinalScore,
		TAScore:        c.TAScore,
		SentimentScore: c.SentimentScore,
		SpeedScore:     c.SpeedScore,
		Slippage:       slip,
		Mode:           mode,
	}

	e.balance -= size
	e.risk.RegisterPosition(c.MarketID, direction, size, fill)
	e.risk.UpdateBalance(e.balance)
	metrics.TradesTotal.WithLabelValues("opened").Inc()
	metrics.Balance.Set(e.balance)

	if err := e.store.SaveTrade(ctx, trade); err != nil {
		e.log.Warn().Err(err).Str("trade", trade.ID).Msg("failed to persist trade")
	}
	if err := e.store.SavePosition(ctx, store.Position{
		TradeID:      trade.ID,
		MarketID:     trade.MarketID,
		Direction:    direction,
		Quantity:     qty,
		EntryPrice:   fill,
		CurrentPrice: fill,
		LastUpdated:  now,
	}); err != nil {
		e.log.Warn().Err(err).Str("trade", trade.ID).Msg("failed to persist position")
	}
	e.snapshotBalanceLocked(ctx)

	e.log.Info().
		Str("market", c.MarketID).
		Str("direction", direction).
		Float64("qty", qty).
		Float64("fill", fill).
		Float64("size", size).
		Float64("score", c.FinalScore).
		Msg("paper trade executed")

	return Result{Executed: true, Trade: trade}
}

// ClosePosition closes the open trade for a market at the current price,
// applying exit slippage against the trader.
func (e *Executor) ClosePosition(ctx context.Context, marketID string, currentPrice float64, reason string) CloseResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closeLocked(ctx, marketID, currentPrice, reason)
}

func (e *Executor) closeLocked(ctx context.Context, marketID string, currentPrice float64, reason string) CloseResult {
	trade, ok, err := e.store.OpenTradeForMarket(ctx, marketID)
	if err != nil {
		e.log.Warn().Err(err).Str("market", marketID).Msg("open trade lookup failed")
		return CloseResult{Reason: "lookup failed"}
	}
	if !ok {
		return CloseResult{Reason: "no open trade"}
	}

	slip := e.drawSlippage()
	exit := clampFill(currentPrice * (1 - slip))

	pnl := (exit - trade.EntryPrice) * trade.Quantity
	proceeds := exit * trade.Quantity
	now := e.now()

	e.balance += proceeds
	e.risk.ClosePosition(marketID)
	e.risk.UpdateBalance(e.balance)
	metrics.TradesTotal.WithLabelValues("closed").Inc()
	metrics.Balance.Set(e.balance)

	if err := e.store.CloseTrade(ctx, trade.ID, exit, pnl, trade.Slippage+slip, now); err != nil {
		e.log.Warn().Err(err).Str("trade", trade.ID).Msg("failed to persist trade close")
	}
	if err := e.store.DeletePosition(ctx, trade.ID); err != nil {
		e.log.Warn().Err(err).Str("trade", trade.ID).Msg("failed to delete position")
	}
	e.snapshotBalanceLocked(ctx)

	trade.Status = store.StatusClosed
	trade.ExitPrice = exit
	trade.ExitTime = now
	trade.PnL = pnl

	e.log.Info().
		Str("market", marketID).
		Str("reason", reason).
		Float64("exit", exit).
		Float64("pnl", pnl).
		Float64("balance", e.balance).
		Msg("paper position closed")

	return CloseResult{Closed: true, Trade: trade, PnL: pnl, Reason: reason}
}

// PanicCloseAll closes every open position at the latest known price. Markets
// with no price are settled at 0.50.
func (e *Executor) PanicCloseAll(ctx context.Context, prices map[string]float64) []CloseResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	open, err := e.store.OpenTrades(ctx)
	if err != nil {
		e.log.Warn().Err(err).Msg("open trades lookup failed")
		return nil
	}

	var results []CloseResult
	for _, t := range open {
		price, ok := prices[t.MarketID]
		if !ok {
			price = 0.5
		}
		results = append(results, e.closeLocked(ctx, t.MarketID, price, "panic close"))
	}
	return results
}

func (e *Executor) snapshotBalanceLocked(ctx context.Context) {
	if err := e.store.SaveBalance(ctx, store.BalanceSnapshot{
		Balance: e.balance,
		Mode:    mode,
		Ts:      e.now(),
	}); err != nil {
		e.log.Warn().Err(err).Msg("failed to persist balance snapshot")
	}
}

// Stats computes performance over all closed trades plus the current open
// position count.
func (e *Executor) Stats(ctx context.Context) (Stats, error) {
	e.mu.Lock()
	balance := e.balance
	e.mu.Unlock()

	closed, err := e.store.ClosedTrades(ctx, 0)
	if err != nil {
		return Stats{}, err
	}
	open, err := e.store.OpenTrades(ctx)
	if err != nil {
		return Stats{}, err
	}

	s := Stats{Balance: balance, TotalTrades: len(closed), OpenCount: len(open)}
	today := e.now().Format("2006-01-02")

	var grossWin, grossLoss float64
	for i, t := range closed {
		s.TotalPnL += t.PnL
		if t.ExitTime.Format("2006-01-02") == today {
			s.TodayPnL += t.PnL
		}
		if t.PnL > 0 {
			s.Wins++
			grossWin += t.PnL
		} else {
			s.Losses++
			grossLoss += -t.PnL
		}
		if i == 0 || t.PnL > s.BestTrade {
			s.BestTrade = t.PnL
		}
		if i == 0 || t.PnL < s.WorstTrade {
			s.WorstTrade = t.PnL
		}
	}
	if s.TotalTrades > 0 {
		s.WinRate = float64(s.Wins) / float64(s.TotalTrades) * 100
	}
	if s.Wins > 0 && s.Losses > 0 {
		avgWin := grossWin / float64(s.Wins)
		avgLoss := grossLoss / float64(s.Losses)
		if avgLoss > 0 {
			s.ProfitFactor = avgWin / avgLoss
		}
	}
	return s, nil
}

// EquityCurve returns the recorded balance history, oldest first.
func (e *Executor) EquityCurve(ctx context.Context, limit int) ([]store.BalanceSnapshot, error) {
	return e.store.BalanceHistory(ctx, mode, limit)
}
