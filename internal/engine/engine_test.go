package engine

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Joe-Swanson828/prediction-bot/internal/agent"
	"github.com/Joe-Swanson828/prediction-bot/internal/analysis/speed"
	"github.com/Joe-Swanson828/prediction-bot/internal/market"
	"github.com/Joe-Swanson828/prediction-bot/internal/paper"
	"github.com/Joe-Swanson828/prediction-bot/internal/risk"
	"github.com/Joe-Swanson828/prediction-bot/internal/signal"
	"github.com/Joe-Swanson828/prediction-bot/internal/store"
	"github.com/Joe-Swanson828/prediction-bot/internal/weights"
)

// fakeProvider serves a single crypto market with a controllable price and a
// steady uptrend behind it.
type fakeProvider struct {
	yesPrice float64
}

func (f *fakeProvider) Markets(_ context.Context) ([]market.Market, error) {
	return []market.Market{{
		ID: "FAKE-BTC", Exchange: "fake", Ticker: "FAKE-BTC",
		Category: market.CategoryCrypto, Title: "BTC above 100k",
		YesPrice: f.yesPrice, NoPrice: 1 - f.yesPrice,
		Volume: 1000, Status: "active", LastUpdated: time.Now(),
	}}, nil
}

func (f *fakeProvider) Candles(_ context.Context, _ string, limit int) ([]market.Candle, error) {
	n := 30
	if limit < n {
		n = limit
	}
	out := make([]market.Candle, n)
	price := f.yesPrice - float64(n)*0.01
	now := time.Now().Truncate(time.Minute)
	for i := range out {
		price += 0.01
		out[i] = market.Candle{
			Ts:     now.Add(-time.Duration(n-1-i) * time.Minute),
			Open:   price - 0.01, High: price + 0.002, Low: price - 0.012,
			Close: price, Volume: 100,
		}
	}
	return out, nil
}

type fakeNews struct{}

func (fakeNews) Headlines(_ context.Context, _ string) ([]string, error) {
	return []string{
		"institutional adoption surge, bullish momentum builds",
		"etf approval expected, record inflows continue",
		"strong rally as buyers step in",
	}, nil
}

func testEngine(provider *fakeProvider) (*Engine, *store.Memory, *paper.Executor) {
	st := store.NewMemory()
	repo := weights.NewRepository(map[market.Category]weights.Set{
		market.CategoryCrypto: {TA: 0.40, Sentiment: 0.30, Speed: 0.30},
	}, st)
	rm := risk.NewManager(100, risk.Limits{
		MaxPositions:        5,
		MaxExposurePerTrade: 0.20,
		MaxTotalExposure:    0.80,
		TradeThreshold:      65,
	})
	exec := paper.NewExecutor(zerolog.Nop(), st, rm, 100)
	ag := agent.New(zerolog.Nop(), st, repo, agent.DefaultParams())
	agg := signal.NewAggregator(repo, 65)
	mon := speed.NewMonitor()

	// Pre-seed price history so the speed engine sees momentum on scan one.
	mon.RecordTick("FAKE-BTC", provider.yesPrice-0.10, 100)
	mon.RecordTick("FAKE-BTC", provider.yesPrice-0.05, 100)
	mon.RecordTick("FAKE-BTC", provider.yesPrice, 100)

	eng := New(zerolog.Nop(), Params{
		ScanInterval:  time.Second,
		CandleLimit:   30,
		StopLossPct:   0.15,
		TakeProfitPct: 0.30,
	}, provider, fakeNews{}, st, mon, agg, exec, ag)
	return eng, st, exec
}

func TestScanOpensEligibleTrade(t *testing.T) {
	provider := &fakeProvider{yesPrice: 0.60}
	eng, st, exec := testEngine(provider)
	ctx := context.Background()

	eng.ScanOnce(ctx)

	open, _ := st.OpenTrades(ctx)
	if len(open) != 1 {
		t.Fatalf("expected one open trade after scan, got %d", len(open))
	}
	tr := open[0]
	if tr.MarketID != "FAKE-BTC" || tr.Direction != "YES" {
		t.Fatalf("unexpected trade %+v", tr)
	}
	if tr.CompositeScore < 65 {
		t.Fatalf("trade opened below threshold: %f", tr.CompositeScore)
	}
	if exec.Balance() >= 100 {
		t.Fatalf("balance must be debited, got %f", exec.Balance())
	}

	select {
	case ev := <-eng.Events():
		if ev.Type != EventTradeOpened || ev.MarketID != "FAKE-BTC" {
			t.Fatalf("unexpected event %+v", ev)
		}
	default:
		t.Fatalf("expected a trade_opened event")
	}

	// Market and signal rows are persisted for the cycle.
	markets, _ := st.Markets(ctx)
	if len(markets) != 1 {
		t.Fatalf("expected persisted market, got %d", len(markets))
	}
}

func TestScanDoesNotDoubleOpen(t *testing.T) {
	provider := &fakeProvider{yesPrice: 0.60}
	eng, st, _ := testEngine(provider)
	ctx := context.Background()

	eng.ScanOnce(ctx)
	eng.ScanOnce(ctx)

	open, _ := st.OpenTrades(ctx)
	if len(open) != 1 {
		t.Fatalf("expected a single open trade across scans, got %d", len(open))
	}
}

func TestTakeProfitClosesPosition(t *testing.T) {
	provider := &fakeProvider{yesPrice: 0.60}
	eng, st, _ := testEngine(provider)
	ctx := context.Background()

	eng.ScanOnce(ctx)
	open, _ := st.OpenTrades(ctx)
	if len(open) != 1 {
		t.Fatalf("setup scan did not open a trade")
	}

	// Price jumps past the take-profit level.
	provider.yesPrice = 0.85
	eng.ScanOnce(ctx)

	closed, _ := st.ClosedTrades(ctx, 0)
	if len(closed) != 1 {
		t.Fatalf("expected one closed trade, got %d", len(closed))
	}
	if closed[0].PnL <= 0 {
		t.Fatalf("take profit close should be profitable, got %f", closed[0].PnL)
	}
}

func TestStopLossClosesPosition(t *testing.T) {
	provider := &fakeProvider{yesPrice: 0.60}
	eng, st, _ := testEngine(provider)
	ctx := context.Background()

	eng.ScanOnce(ctx)
	if open, _ := st.OpenTrades(ctx); len(open) != 1 {
		t.Fatalf("setup scan did not open a trade")
	}

	provider.yesPrice = 0.40
	eng.ScanOnce(ctx)

	closed, _ := st.ClosedTrades(ctx, 0)
	if len(closed) != 1 {
		t.Fatalf("expected one closed trade, got %d", len(closed))
	}
	if closed[0].PnL >= 0 {
		t.Fatalf("stop loss close should be a loss, got %f", closed[0].PnL)
	}
}

func TestEmitNeverBlocks(t *testing.T) {
	provider := &fakeProvider{yesPrice: 0.60}
	eng, _, _ := testEngine(provider)

	// Nobody consumes; flooding past the buffer must not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			eng.emit(Event{Type: EventTradeOpened, MarketID: "X"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("emit blocked on a full channel")
	}
}

func TestConsumeTicksFeedsSpeedMonitor(t *testing.T) {
	provider := &fakeProvider{yesPrice: 0.60}
	eng, _, _ := testEngine(provider)
	ctx, cancel := context.WithCancel(context.Background())

	ticks := make(chan market.Tick, 4)
	done := make(chan struct{})
	go func() {
		eng.ConsumeTicks(ctx, ticks)
		close(done)
	}()

	ticks <- market.Tick{MarketID: "FAKE-BTC", Price: 0.61, Volume: 100, Ts: time.Now()}
	close(ticks)
	<-done
	cancel()

	r := eng.speed.Score("FAKE-BTC", 0.61, true)
	if r.StalenessSeconds == 9999 {
		t.Fatalf("expected tick to register in the speed monitor")
	}
}
