package store

import (
	"context"
	"testing"
	"time"

	"github.com/Joe-Swanson828/prediction-bot/internal/market"
	"github.com/Joe-Swanson828/prediction-bot/internal/weights"
)

func TestMemoryTradeLifecycle(t *testing.T) {
	st := NewMemory()
	ctx := context.Background()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	tr := Trade{
		ID: "t1", MarketID: "MKT", Category: market.CategoryCrypto, Direction: "YES",
		Quantity: 10, EntryPrice: 0.50, EntryTime: now, Status: StatusOpen, Mode: "paper",
	}
	if err := st.SaveTrade(ctx, tr); err != nil {
		t.Fatalf("save trade: %v", err)
	}

	got, ok, err := st.OpenTradeForMarket(ctx, "MKT")
	if err != nil || !ok || got.ID != "t1" {
		t.Fatalf("expected open trade t1, got %+v ok=%v err=%v", got, ok, err)
	}
	if _, ok, _ := st.OpenTradeForMarket(ctx, "OTHER"); ok {
		t.Fatalf("expected no trade for other market")
	}

	exit := now.Add(time.Hour)
	if err := st.CloseTrade(ctx, "t1", 0.70, 2.0, 0.004, exit); err != nil {
		t.Fatalf("close trade: %v", err)
	}
	if _, ok, _ := st.OpenTradeForMarket(ctx, "MKT"); ok {
		t.Fatalf("closed trade must not show as open")
	}

	closed, err := st.ClosedTrades(ctx, 0)
	if err != nil || len(closed) != 1 {
		t.Fatalf("expected one closed trade, got %d err=%v", len(closed), err)
	}
	c := closed[0]
	if c.Status != StatusClosed || c.ExitPrice != 0.70 || c.PnL != 2.0 || !c.ExitTime.Equal(exit) {
		t.Fatalf("close did not stick: %+v", c)
	}

	n, _ := st.ClosedTradeCount(ctx, market.CategoryCrypto)
	if n != 1 {
		t.Fatalf("expected closed count 1, got %d", n)
	}
	n, _ = st.ClosedTradeCount(ctx, market.CategorySports)
	if n != 0 {
		t.Fatalf("expected 0 closed sports trades, got %d", n)
	}
}

func TestMemoryRecentClosedTradesNewestFirst(t *testing.T) {
	st := NewMemory()
	ctx := context.Background()

	for i, id := range []string{"a", "b", "c"} {
		tr := Trade{ID: id, MarketID: id, Category: market.CategoryCrypto, Direction: "YES",
			Quantity: 1, EntryPrice: 0.5, Status: StatusOpen, Mode: "paper"}
		_ = st.SaveTrade(ctx, tr)
		_ = st.CloseTrade(ctx, id, 0.5, float64(i), 0, time.Now())
	}

	recent, err := st.RecentClosedTrades(ctx, market.CategoryCrypto, 2)
	if err != nil || len(recent) != 2 {
		t.Fatalf("expected 2 trades, got %d err=%v", len(recent), err)
	}
	if recent[0].ID != "c" || recent[1].ID != "b" {
		t.Fatalf("expected newest first, got %s %s", recent[0].ID, recent[1].ID)
	}
}

func TestMemoryMarketsAndCandles(t *testing.T) {
	st := NewMemory()
	ctx := context.Background()

	m := market.Market{ID: "MKT", Category: market.CategoryCrypto, YesPrice: 0.5, NoPrice: 0.5}
	if err := st.UpsertMarket(ctx, m); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	m.YesPrice = 0.6
	_ = st.UpsertMarket(ctx, m)

	markets, _ := st.Markets(ctx)
	if len(markets) != 1 || markets[0].YesPrice != 0.6 {
		t.Fatalf("expected upsert to replace, got %+v", markets)
	}

	candles := []market.Candle{
		{Ts: time.Unix(60, 0), Close: 0.5}, {Ts: time.Unix(120, 0), Close: 0.6},
	}
	_ = st.SaveCandles(ctx, "MKT", candles)
	got, _ := st.Candles(ctx, "MKT", 1)
	if len(got) != 1 || got[0].Close != 0.6 {
		t.Fatalf("expected latest candle only, got %+v", got)
	}
}

func TestMemoryPositions(t *testing.T) {
	st := NewMemory()
	ctx := context.Background()

	_ = st.SavePosition(ctx, Position{TradeID: "t1", MarketID: "MKT", Direction: "YES", Quantity: 10, EntryPrice: 0.5})
	positions, _ := st.OpenPositions(ctx)
	if len(positions) != 1 {
		t.Fatalf("expected one position, got %d", len(positions))
	}
	_ = st.DeletePosition(ctx, "t1")
	positions, _ = st.OpenPositions(ctx)
	if len(positions) != 0 {
		t.Fatalf("expected empty positions after delete")
	}
}

func TestMemoryBalanceHistoryFiltersMode(t *testing.T) {
	st := NewMemory()
	ctx := context.Background()
	_ = st.SaveBalance(ctx, BalanceSnapshot{Balance: 100, Mode: "paper", Ts: time.Unix(1, 0)})
	_ = st.SaveBalance(ctx, BalanceSnapshot{Balance: 105, Mode: "paper", Ts: time.Unix(2, 0)})
	_ = st.SaveBalance(ctx, BalanceSnapshot{Balance: 1, Mode: "live", Ts: time.Unix(3, 0)})

	history, _ := st.BalanceHistory(ctx, "paper", 0)
	if len(history) != 2 || history[1].Balance != 105 {
		t.Fatalf("expected paper history [100 105], got %+v", history)
	}
}

func TestMemoryImplementsWeightPersistence(t *testing.T) {
	var _ weights.Persistence = NewMemory()

	st := NewMemory()
	ctx := context.Background()
	if _, ok, _ := st.CurrentWeights(ctx, market.CategoryCrypto); ok {
		t.Fatalf("expected no weights initially")
	}
	set := weights.Set{TA: 0.5, Sentiment: 0.25, Speed: 0.25}
	_ = st.SaveWeights(ctx, market.CategoryCrypto, set, time.Unix(1, 0))
	got, ok, _ := st.CurrentWeights(ctx, market.CategoryCrypto)
	if !ok || got != set {
		t.Fatalf("expected saved weights back, got %+v ok=%v", got, ok)
	}
}
