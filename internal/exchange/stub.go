package exchange

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/Joe-Swanson828/prediction-bot/internal/market"
)

// stubMarket seeds one synthetic market and the drift of its price walk.
type stubMarket struct {
	m     market.Market
	drift float64
}

// Stub generates deterministic synthetic markets with bounded random-walk
// prices. The same seed always produces the same walk.
type Stub struct {
	mu      sync.Mutex
	rand    *rand.Rand
	markets []stubMarket
	now     func() time.Time
}

// NewStub builds the synthetic provider with one market per category.
func NewStub(seed int64) *Stub {
	s := &Stub{
		rand: rand.New(rand.NewSource(seed)),
		now:  time.Now,
	}
	s.markets = []stubMarket{
		{m: market.Market{
			ID: "STUB-NFL-KC", Exchange: "stub", Ticker: "NFL-KC-WIN",
			Category: market.CategorySports, Title: "Chiefs to win Sunday",
			YesPrice: 0.55, NoPrice: 0.45, Status: "active",
		}, drift: 0.002},
		{m: market.Market{
			ID: "STUB-BTC-100K", Exchange: "stub", Ticker: "BTC-100K",
			Category: market.CategoryCrypto, Title: "BTC above 100k by Friday",
			YesPrice: 0.42, NoPrice: 0.58, Status: "active",
		}, drift: -0.001},
		{m: market.Market{
			ID: "STUB-NYC-RAIN", Exchange: "stub", Ticker: "NYC-RAIN",
			Category: market.CategoryWeather, Title: "Rain in NYC tomorrow",
			YesPrice: 0.70, NoPrice: 0.30, Status: "active",
		}, drift: 0.003},
	}
	return s
}

// SetClock overrides the time source, for tests.
func (s *Stub) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// Markets advances each synthetic price one step and returns the snapshots.
func (s *Stub) Markets(_ context.Context) ([]market.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]market.Market, 0, len(s.markets))
	for i := range s.markets {
		sm := &s.markets[i]
		step := sm.drift + (s.rand.Float64()-0.5)*0.01
		sm.m.YesPrice = clampPrice(sm.m.YesPrice + step)
		sm.m.NoPrice = clampPrice(1 - sm.m.YesPrice)
		sm.m.Volume += 50 + s.rand.Float64()*200
		sm.m.LastUpdated = s.now()
		out = append(out, sm.m)
	}
	return out, nil
}

// Candles synthesizes a walk ending at the market's current price, oldest
// first, one bar per minute.
func (s *Stub) Candles(_ context.Context, marketID string, limit int) ([]market.Candle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sm *stubMarket
	for i := range s.markets {
		if s.markets[i].m.ID == marketID {
			sm = &s.markets[i]
			break
		}
	}
	if sm == nil || limit <= 0 {
		return nil, nil
	}

	now := s.now().Truncate(time.Minute)
	out := make([]market.Candle, 0, limit)
	price := sm.m.YesPrice
	// Walk backwards from the live price so the last candle matches it.
	prices := make([]float64, limit)
	for i := limit - 1; i >= 0; i-- {
		prices[i] = price
		price = clampPrice(price - sm.drift - (s.rand.Float64()-0.5)*0.008)
	}
	for i, closePx := range prices {
		openPx := closePx
		if i > 0 {
			openPx = prices[i-1]
		}
		high := math.Max(openPx, closePx) + s.rand.Float64()*0.004
		low := math.Min(openPx, closePx) - s.rand.Float64()*0.004
		out = append(out, market.Candle{
			Ts:     now.Add(-time.Duration(limit-1-i) * time.Minute),
			Open:   openPx,
			High:   clampPrice(high),
			Low:    clampPrice(low),
			Close:  closePx,
			Volume: 100 + s.rand.Float64()*400,
		})
	}
	return out, nil
}

func clampPrice(p float64) float64 {
	if p < 0.01 {
		return 0.01
	}
	if p > 0.99 {
		return 0.99
	}
	return p
}
