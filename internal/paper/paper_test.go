package paper

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Joe-Swanson828/prediction-bot/internal/market"
	"github.com/Joe-Swanson828/prediction-bot/internal/risk"
	"github.com/Joe-Swanson828/prediction-bot/internal/signal"
	"github.com/Joe-Swanson828/prediction-bot/internal/store"
)

func testSetup(balance float64) (*Executor, *store.Memory, *risk.Manager) {
	st := store.NewMemory()
	rm := risk.NewManager(balance, risk.Limits{
		MaxPositions:        5,
		MaxExposurePerTrade: 0.20,
		MaxTotalExposure:    0.80,
		TradeThreshold:      65,
	})
	e := NewExecutor(zerolog.Nop(), st, rm, balance)
	e.SetRand(rand.New(rand.NewSource(7)))
	e.SetClock(func() time.Time { return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC) })
	return e, st, rm
}

func eligibleComposite(marketID string, score float64) signal.Composite {
	return signal.Composite{
		MarketID:        marketID,
		Category:        market.CategoryCrypto,
		TAScore:         score,
		SentimentScore:  score,
		SpeedScore:      score,
		FinalScore:      score,
		Direction:       market.Bullish,
		SignalsAgreeing: 3,
		TradeEligible:   true,
		Recommendation:  signal.BuyYes,
	}
}

func TestExecuteTradeOpensPosition(t *testing.T) {
	e, st, rm := testSetup(100)
	ctx := context.Background()

	res := e.ExecuteTrade(ctx, eligibleComposite("MKT", 100), 0.50)
	if !res.Executed {
		t.Fatalf("expected execution, got %s", res.Reason)
	}

	// Perfect score sizes at 20% of balance; slippage is adverse and bounded.
	if res.Trade.EntryPrice < 0.50*1.001 || res.Trade.EntryPrice > 0.50*1.005 {
		t.Fatalf("fill %f outside slippage band", res.Trade.EntryPrice)
	}
	wantQty := 20.0 / res.Trade.EntryPrice
	if math.Abs(res.Trade.Quantity-wantQty) > 1e-9 {
		t.Fatalf("expected qty %f, got %f", wantQty, res.Trade.Quantity)
	}
	if got := e.Balance(); math.Abs(got-80) > 1e-9 {
		t.Fatalf("expected balance 80, got %f", got)
	}
	if rm.PositionCount() != 1 {
		t.Fatalf("expected risk manager to track the position")
	}

	open, _ := st.OpenTrades(ctx)
	if len(open) != 1 || open[0].MarketID != "MKT" {
		t.Fatalf("expected one persisted open trade, got %d", len(open))
	}
	positions, _ := st.OpenPositions(ctx)
	if len(positions) != 1 {
		t.Fatalf("expected one persisted position, got %d", len(positions))
	}
	history, _ := st.BalanceHistory(ctx, "paper", 0)
	if len(history) != 1 || history[0].Balance != 80 {
		t.Fatalf("expected balance snapshot at 80, got %+v", history)
	}
}

func TestExecuteTradeRejectsIneligible(t *testing.T) {
	e, _, _ := testSetup(100)
	c := eligibleComposite("MKT", 100)
	c.TradeEligible = false
	c.Recommendation = signal.Hold
	if res := e.ExecuteTrade(context.Background(), c, 0.50); res.Executed {
		t.Fatalf("expected rejection of ineligible composite")
	}
}

func TestExecuteTradeRejectsDuplicate(t *testing.T) {
	e, _, _ := testSetup(100)
	ctx := context.Background()
	if res := e.ExecuteTrade(ctx, eligibleComposite("MKT", 70), 0.50); !res.Executed {
		t.Fatalf("first trade should execute: %s", res.Reason)
	}
	if res := e.ExecuteTrade(ctx, eligibleComposite("MKT", 70), 0.50); res.Executed {
		t.Fatalf("expected duplicate rejection")
	}
}

func TestExecuteTradeRejectsTinyOrder(t *testing.T) {
	e, _, _ := testSetup(5)
	// 5% of $5 is $0.25, below the minimum order size.
	res := e.ExecuteTrade(context.Background(), eligibleComposite("MKT", 65), 0.50)
	if res.Executed {
		t.Fatalf("expected tiny order rejection, got trade %+v", res.Trade)
	}
	if res.Reason != "position size $0.25 below minimum $0.50" {
		t.Fatalf("unexpected rejection reason: %s", res.Reason)
	}
}

func TestTinyOrderRejectedBeforeRiskChecks(t *testing.T) {
	e, _, rm := testSetup(5)
	// Fill every position slot so the risk gate would also reject; the size
	// check must still win.
	for i := 0; i < 5; i++ {
		rm.RegisterPosition(string(rune('A'+i)), "YES", 0.1, 0.50)
	}
	res := e.ExecuteTrade(context.Background(), eligibleComposite("MKT", 65), 0.50)
	if res.Executed {
		t.Fatalf("expected rejection, got trade %+v", res.Trade)
	}
	if res.Reason != "position size $0.25 below minimum $0.50" {
		t.Fatalf("expected minimum size reason, got: %s", res.Reason)
	}
}

func TestClosePositionRealizesPnL(t *testing.T) {
	e, st, rm := testSetup(100)
	ctx := context.Background()

	res := e.ExecuteTrade(ctx, eligibleComposite("MKT", 100), 0.50)
	if !res.Executed {
		t.Fatalf("setup trade failed: %s", res.Reason)
	}
	entry := res.Trade.EntryPrice
	qty := res.Trade.Quantity

	closed := e.ClosePosition(ctx, "MKT", 0.70, "take profit")
	if !closed.Closed {
		t.Fatalf("expected close, got %s", closed.Reason)
	}
	// Exit slippage is adverse: fill in [0.70*0.995, 0.70*0.999].
	exit := closed.Trade.ExitPrice
	if exit < 0.70*0.995 || exit > 0.70*0.999 {
		t.Fatalf("exit fill %f outside slippage band", exit)
	}
	wantPnL := (exit - entry) * qty
	if math.Abs(closed.PnL-wantPnL) > 1e-9 {
		t.Fatalf("expected pnl %f, got %f", wantPnL, closed.PnL)
	}
	// Proceeds return to the balance.
	wantBalance := 80 + exit*qty
	if math.Abs(e.Balance()-wantBalance) > 1e-9 {
		t.Fatalf("expected balance %f, got %f", wantBalance, e.Balance())
	}
	if rm.PositionCount() != 0 {
		t.Fatalf("expected risk book cleared")
	}
	trades, _ := st.ClosedTrades(ctx, 0)
	if len(trades) != 1 || trades[0].Status != store.StatusClosed {
		t.Fatalf("expected one persisted closed trade")
	}
}

func TestCloseWithoutOpenTrade(t *testing.T) {
	e, _, _ := testSetup(100)
	if res := e.ClosePosition(context.Background(), "MKT", 0.50, "stop loss"); res.Closed {
		t.Fatalf("expected no-op close")
	}
}

func TestPanicCloseAllDefaultsMissingPrices(t *testing.T) {
	e, st, _ := testSetup(100)
	ctx := context.Background()
	e.ExecuteTrade(ctx, eligibleComposite("MKT-A", 100), 0.40)
	e.ExecuteTrade(ctx, eligibleComposite("MKT-B", 100), 0.40)

	results := e.PanicCloseAll(ctx, map[string]float64{"MKT-A": 0.60})
	if len(results) != 2 {
		t.Fatalf("expected 2 closes, got %d", len(results))
	}
	open, _ := st.OpenTrades(ctx)
	if len(open) != 0 {
		t.Fatalf("expected no open trades after panic close")
	}
	// MKT-B had no price and settles near 0.50.
	for _, r := range results {
		if r.Trade.MarketID == "MKT-B" {
			if r.Trade.ExitPrice < 0.50*0.995 || r.Trade.ExitPrice > 0.50*0.999 {
				t.Fatalf("expected default settle near 0.50, got %f", r.Trade.ExitPrice)
			}
		}
	}
}

func TestStats(t *testing.T) {
	e, st, _ := testSetup(100)
	ctx := context.Background()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	save := func(id string, pnl float64, exit time.Time) {
		tr := store.Trade{
			ID: id, MarketID: id, Category: market.CategoryCrypto, Direction: "YES",
			Quantity: 10, EntryPrice: 0.50, EntryTime: exit.Add(-time.Hour), Status: store.StatusOpen, Mode: "paper",
		}
		_ = st.SaveTrade(ctx, tr)
		_ = st.CloseTrade(ctx, id, 0.50+pnl/10, pnl, 0.002, exit)
	}
	save("t1", 2.0, now)
	save("t2", 3.0, now)
	save("t3", -1.0, now.AddDate(0, 0, -1))

	s, err := e.Stats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if s.TotalTrades != 3 || s.Wins != 2 || s.Losses != 1 {
		t.Fatalf("unexpected counts: %+v", s)
	}
	if math.Abs(s.WinRate-200.0/3.0) > 1e-9 {
		t.Fatalf("expected win rate 66.7, got %f", s.WinRate)
	}
	if math.Abs(s.TotalPnL-4.0) > 1e-9 {
		t.Fatalf("expected total pnl 4.0, got %f", s.TotalPnL)
	}
	// Only the two trades closed today count toward today's pnl.
	if math.Abs(s.TodayPnL-5.0) > 1e-9 {
		t.Fatalf("expected today pnl 5.0, got %f", s.TodayPnL)
	}
	// avg win 2.5, avg loss 1.0.
	if math.Abs(s.ProfitFactor-2.5) > 1e-9 {
		t.Fatalf("expected profit factor 2.5, got %f", s.ProfitFactor)
	}
	if s.BestTrade != 3.0 || s.WorstTrade != -1.0 {
		t.Fatalf("unexpected best/worst: %+v", s)
	}
}

func TestStatsNoLossesGuardsProfitFactor(t *testing.T) {
	e, st, _ := testSetup(100)
	ctx := context.Background()
	tr := store.Trade{ID: "t1", MarketID: "t1", Category: market.CategoryCrypto, Direction: "YES",
		Quantity: 10, EntryPrice: 0.50, Status: store.StatusOpen, Mode: "paper"}
	_ = st.SaveTrade(ctx, tr)
	_ = st.CloseTrade(ctx, "t1", 0.70, 2.0, 0.002, time.Now())

	s, err := e.Stats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if s.ProfitFactor != 0 {
		t.Fatalf("expected profit factor 0 with no losses, got %f", s.ProfitFactor)
	}
}

func TestTradePnLAt(t *testing.T) {
	tr := store.Trade{EntryPrice: 0.50, Quantity: 10}
	if got := tr.PnLAt(0.70); math.Abs(got-2.0) > 1e-9 {
		t.Fatalf("expected +2.00, got %f", got)
	}
	if got := tr.PnLAt(0.40); math.Abs(got+1.0) > 1e-9 {
		t.Fatalf("expected -1.00, got %f", got)
	}
}
