package technical

import (
	"testing"

	"github.com/Joe-Swanson828/prediction-bot/internal/market"
)

func consolidationCandles(n int) []market.Candle {
	out := make([]market.Candle, n)
	for i := range out {
		out[i] = market.Candle{Open: 0.50, High: 0.505, Low: 0.495, Close: 0.50, Volume: 100}
	}
	return out
}

func TestDetectConsolidation(t *testing.T) {
	p := DefaultParams()
	m := NewMachineState()

	m, ok := DetectConsolidation(m, consolidationCandles(5), p)
	if !ok || m.State != ConsolidationDetected {
		t.Fatalf("expected consolidation detection, got state %s", m.State)
	}
	if m.ConsolidationHigh != 0.505 || m.ConsolidationLow != 0.495 {
		t.Fatalf("unexpected box: high %f low %f", m.ConsolidationHigh, m.ConsolidationLow)
	}

	// Too few candles never detects.
	if _, ok := DetectConsolidation(NewMachineState(), consolidationCandles(4), p); ok {
		t.Fatalf("expected no detection with 4 candles")
	}

	// A wide range is not a box.
	wide := consolidationCandles(5)
	wide[2].High = 0.60
	if _, ok := DetectConsolidation(NewMachineState(), wide, p); ok {
		t.Fatalf("expected no detection with wide range")
	}
}

func TestDoubleBreakoutSequence(t *testing.T) {
	p := DefaultParams()
	m := NewMachineState()
	m, _ = DetectConsolidation(m, consolidationCandles(5), p)

	// First breakout above the box.
	m, conf := Step(m, market.Candle{Close: 0.52, Volume: 100}, p)
	if m.State != FirstBreakout || conf != 35 {
		t.Fatalf("expected FIRST_BREAKOUT conf 35, got %s conf %f", m.State, conf)
	}
	if m.Direction != market.Bullish {
		t.Fatalf("expected bullish direction, got %s", m.Direction)
	}

	// Price returns near the breakout level.
	m, conf = Step(m, market.Candle{Close: 0.507, Volume: 100}, p)
	if m.State != Retest || conf != 20 {
		t.Fatalf("expected RETEST conf 20, got %s conf %f", m.State, conf)
	}

	// Second breakout on heavy volume earns the volume bonus.
	m, conf = Step(m, market.Candle{Close: 0.53, Volume: 1000}, p)
	if m.State != SecondBreakoutSignal || conf != 90 {
		t.Fatalf("expected SECOND_BREAKOUT_SIGNAL conf 90, got %s conf %f", m.State, conf)
	}

	// Signal holds for a few candles, then resets.
	for i := 0; i < 3; i++ {
		m, conf = Step(m, market.Candle{Close: 0.53, Volume: 100}, p)
		if m.State != SecondBreakoutSignal || conf != 90 {
			t.Fatalf("expected held signal on candle %d, got %s conf %f", i, m.State, conf)
		}
	}
	m, conf = Step(m, market.Candle{Close: 0.53, Volume: 100}, p)
	if m.State != Scanning || conf != 90 {
		t.Fatalf("expected reset after hold, got %s conf %f", m.State, conf)
	}
}

func TestSecondBreakoutWithoutVolumeBonus(t *testing.T) {
	p := DefaultParams()
	m := NewMachineState()
	m, _ = DetectConsolidation(m, consolidationCandles(5), p)
	m, _ = Step(m, market.Candle{Close: 0.52, Volume: 100}, p)
	m, _ = Step(m, market.Candle{Close: 0.507, Volume: 100}, p)

	m, conf := Step(m, market.Candle{Close: 0.53, Volume: 100}, p)
	if m.State != SecondBreakoutSignal || conf != 75 {
		t.Fatalf("expected conf 75 on flat volume, got %s conf %f", m.State, conf)
	}
}

func TestRetestInvalidation(t *testing.T) {
	p := DefaultParams()
	m := NewMachineState()
	m, _ = DetectConsolidation(m, consolidationCandles(5), p)
	m, _ = Step(m, market.Candle{Close: 0.52, Volume: 100}, p)
	m, _ = Step(m, market.Candle{Close: 0.507, Volume: 100}, p)

	// Bullish setup collapses through the bottom of the box.
	m, conf := Step(m, market.Candle{Close: 0.45, Volume: 100}, p)
	if m.State != Scanning || conf != 0 {
		t.Fatalf("expected reset on invalidation, got %s conf %f", m.State, conf)
	}
}

func TestBearishBreakout(t *testing.T) {
	p := DefaultParams()
	m := NewMachineState()
	m, _ = DetectConsolidation(m, consolidationCandles(5), p)

	m, conf := Step(m, market.Candle{Close: 0.48, Volume: 100}, p)
	if m.State != FirstBreakout || conf != 35 || m.Direction != market.Bearish {
		t.Fatalf("expected bearish FIRST_BREAKOUT, got %s %s conf %f", m.State, m.Direction, conf)
	}
}

func TestTimeoutResetsStalledDetector(t *testing.T) {
	p := DefaultParams()
	m := NewMachineState()
	m, _ = DetectConsolidation(m, consolidationCandles(5), p)

	var conf float64
	for i := 0; i <= p.TimeoutCandles; i++ {
		m, conf = Step(m, market.Candle{Close: 0.50, Volume: 100}, p)
	}
	if m.State != Scanning || conf != 0 {
		t.Fatalf("expected timeout reset, got %s conf %f", m.State, conf)
	}
}
