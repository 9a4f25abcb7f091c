package technical

import (
	"testing"

	"github.com/Joe-Swanson828/prediction-bot/internal/market"
)

func TestAnalyzeNoCandlesIsNeutral(t *testing.T) {
	a := NewAnalyzer()
	r := a.Analyze("MKT", nil, 0, 0)
	if r.Score != 50 || r.Direction != market.Neutral {
		t.Fatalf("expected neutral 50, got %f %s", r.Score, r.Direction)
	}
	if r.VolumeSpikeRatio != 1.0 {
		t.Fatalf("expected spike ratio 1.0, got %f", r.VolumeSpikeRatio)
	}
}

func TestAnalyzeUptrendScoresBullish(t *testing.T) {
	a := NewAnalyzer()
	candles := make([]market.Candle, 30)
	price := 0.40
	for i := range candles {
		price += 0.01
		candles[i] = market.Candle{Open: price - 0.01, High: price + 0.002, Low: price - 0.012, Close: price, Volume: 100}
	}
	r := a.Analyze("MKT", candles, 500, 100)
	if r.Direction != market.Bullish {
		t.Fatalf("expected bullish on steady uptrend, got %s (score %f)", r.Direction, r.Score)
	}
	if r.Score <= 55 || r.Score > 100 {
		t.Fatalf("score %f out of expected bullish range", r.Score)
	}
}

func TestAnalyzeDowntrendScoresBearish(t *testing.T) {
	a := NewAnalyzer()
	candles := make([]market.Candle, 30)
	price := 0.70
	for i := range candles {
		price -= 0.01
		candles[i] = market.Candle{Open: price + 0.01, High: price + 0.012, Low: price - 0.002, Close: price, Volume: 100}
	}
	r := a.Analyze("MKT", candles, 100, 500)
	if r.Direction != market.Bearish {
		t.Fatalf("expected bearish on steady downtrend, got %s (score %f)", r.Direction, r.Score)
	}
}

func TestAnalyzerKeepsPerMarketState(t *testing.T) {
	a := NewAnalyzer()
	candles := consolidationCandles(5)
	a.Analyze("A", candles, 0, 0)
	if a.MachineFor("A").State != ConsolidationDetected {
		t.Fatalf("expected detector A in consolidation")
	}
	if a.MachineFor("B").State != Scanning {
		t.Fatalf("expected fresh detector for unseen market")
	}
	a.Reset("A")
	if a.MachineFor("A").State != Scanning {
		t.Fatalf("expected reset detector after eviction")
	}
}
