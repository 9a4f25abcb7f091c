package technical

import (
	"math"
	"testing"

	"github.com/Joe-Swanson828/prediction-bot/internal/market"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSMA(t *testing.T) {
	if got := SMA([]float64{0.4, 0.5, 0.6}, 3); !almostEqual(got, 0.5) {
		t.Fatalf("expected sma 0.5, got %f", got)
	}
	// Shorter history than the period averages what exists.
	if got := SMA([]float64{0.4, 0.6}, 10); !almostEqual(got, 0.5) {
		t.Fatalf("expected sma 0.5 over short history, got %f", got)
	}
	if got := SMA(nil, 10); got != 0 {
		t.Fatalf("expected sma 0 with no prices, got %f", got)
	}
}

func TestEMAConvergesTowardLatest(t *testing.T) {
	prices := make([]float64, 200)
	for i := range prices {
		prices[i] = 0.8
	}
	prices[0] = 0.2
	if got := EMA(prices, 10); math.Abs(got-0.8) > 0.001 {
		t.Fatalf("expected ema near 0.8, got %f", got)
	}
	if got := EMA([]float64{0.3}, 10); !almostEqual(got, 0.3) {
		t.Fatalf("expected single-price ema to equal the price, got %f", got)
	}
}

func TestVWAP(t *testing.T) {
	candles := []market.Candle{
		{High: 0.6, Low: 0.4, Close: 0.5, Volume: 100},
		{High: 0.8, Low: 0.6, Close: 0.7, Volume: 300},
	}
	// typical prices 0.5 and 0.7, volume-weighted 1:3.
	want := (0.5*100 + 0.7*300) / 400
	if got := VWAP(candles); !almostEqual(got, want) {
		t.Fatalf("expected vwap %f, got %f", want, got)
	}
}

func TestVWAPZeroVolumeFallsBackToCloses(t *testing.T) {
	candles := []market.Candle{
		{Close: 0.4}, {Close: 0.6},
	}
	if got := VWAP(candles); !almostEqual(got, 0.5) {
		t.Fatalf("expected close average 0.5, got %f", got)
	}
}

func TestVolumeSpikeRatio(t *testing.T) {
	candles := []market.Candle{
		{Volume: 100}, {Volume: 100}, {Volume: 100}, {Volume: 300},
	}
	if got := VolumeSpikeRatio(candles, 20); !almostEqual(got, 3.0) {
		t.Fatalf("expected spike ratio 3.0, got %f", got)
	}
	if got := VolumeSpikeRatio(candles[:1], 20); got != 1.0 {
		t.Fatalf("expected 1.0 with a single candle, got %f", got)
	}
	flat := []market.Candle{{Volume: 0}, {Volume: 0}, {Volume: 50}}
	if got := VolumeSpikeRatio(flat, 20); got != 1.0 {
		t.Fatalf("expected 1.0 with zero baseline, got %f", got)
	}
}

func TestOrderbookImbalance(t *testing.T) {
	if got := OrderbookImbalance(300, 100); !almostEqual(got, 0.5) {
		t.Fatalf("expected imbalance 0.5, got %f", got)
	}
	if got := OrderbookImbalance(0, 0); got != 0 {
		t.Fatalf("expected 0 on empty book, got %f", got)
	}
	if got := OrderbookImbalance(0, 100); !almostEqual(got, -1) {
		t.Fatalf("expected -1 with only NO bids, got %f", got)
	}
}
