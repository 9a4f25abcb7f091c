// Package technical turns OHLCV candles and orderbook volumes into a 0-100
// score with directional bias. The primary signal is a double-breakout state
// machine (consolidation, breakout, retest, confirming second breakout);
// SMA/EMA posture, VWAP deviation, volume spikes, and orderbook imbalance
// contribute secondary adjustments.
package technical

import (
	"sync"

	"github.com/Joe-Swanson828/prediction-bot/internal/market"
)

// Result is the full output of one technical analysis pass.
type Result struct {
	Score              float64
	Direction          market.Direction
	SMA10              float64
	EMA60              float64
	VWAP               float64
	VolumeSpikeRatio   float64
	BreakoutState      State
	BreakoutDirection  market.Direction
	BreakoutConfidence float64
	OrderbookImbalance float64
	CandleCount        int
}

// Analyzer owns one breakout detector per market, created lazily on first
// observation and evicted explicitly when a market resolves.
type Analyzer struct {
	params   Params
	mu       sync.Mutex
	machines map[string]MachineState
}

// NewAnalyzer builds an analyzer with default breakout thresholds.
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		params:   DefaultParams(),
		machines: make(map[string]MachineState),
	}
}

// Analyze scores a market from its candle history plus orderbook bid volumes.
// Candles arrive oldest first with prices in [0, 1]. Missing data degrades to
// a neutral result rather than an error.
func (a *Analyzer) Analyze(marketID string, candles []market.Candle, yesBidVolume, noBidVolume float64) Result {
	a.mu.Lock()
	machine, ok := a.machines[marketID]
	if !ok {
		machine = NewMachineState()
	}

	if len(candles) == 0 {
		state := machine.State
		a.machines[marketID] = machine
		a.mu.Unlock()
		return Result{
			Score:             50,
			Direction:         market.Neutral,
			VolumeSpikeRatio:  1.0,
			BreakoutState:     state,
			BreakoutDirection: market.Neutral,
		}
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	currentPrice := closes[len(closes)-1]

	sma10 := SMA(closes, 10)
	ema60 := EMA(closes, 60)
	vwap := VWAP(candles)
	volSpike := VolumeSpikeRatio(candles, a.params.VolumeWindow)
	imbalance := OrderbookImbalance(yesBidVolume, noBidVolume)

	machine, _ = DetectConsolidation(machine, candles, a.params)
	machine, confidence := Step(machine, candles[len(candles)-1], a.params)
	a.machines[marketID] = machine
	breakoutState := machine.State
	breakoutDirection := machine.Direction
	a.mu.Unlock()

	score := 50.0

	if currentPrice > sma10 {
		score += 5
	} else {
		score -= 5
	}
	if sma10 > ema60 {
		score += 8
	} else {
		score -= 8
	}
	if vwap > 0 {
		score += (currentPrice - vwap) / vwap * 50
	}
	if volSpike > 2.0 {
		score += 10
	} else if volSpike > 1.5 {
		score += 5
	}
	score += imbalance * 10

	// Breakout pattern dominates when present.
	switch breakoutState {
	case SecondBreakoutSignal:
		if breakoutDirection == market.Bullish {
			score += confidence * 0.3
		} else {
			score -= confidence * 0.3
		}
	case FirstBreakout, Retest:
		if breakoutDirection == market.Bullish {
			score += confidence * 0.15
		} else {
			score -= confidence * 0.15
		}
	}

	if score < 0 {
		score = 0
	} else if score > 100 {
		score = 100
	}

	direction := market.Neutral
	if score > 55 {
		direction = market.Bullish
	} else if score < 45 {
		direction = market.Bearish
	}

	return Result{
		Score:              score,
		Direction:          direction,
		SMA10:              sma10,
		EMA60:              ema60,
		VWAP:               vwap,
		VolumeSpikeRatio:   volSpike,
		BreakoutState:      breakoutState,
		BreakoutDirection:  breakoutDirection,
		BreakoutConfidence: confidence,
		OrderbookImbalance: imbalance,
		CandleCount:        len(candles),
	}
}

// MachineFor returns the current detector state for a market.
func (a *Analyzer) MachineFor(marketID string) MachineState {
	a.mu.Lock()
	defer a.mu.Unlock()
	if m, ok := a.machines[marketID]; ok {
		return m
	}
	return NewMachineState()
}

// Reset evicts the detector for a market, e.g. after the market resolves.
func (a *Analyzer) Reset(marketID string) {
	a.mu.Lock()
	delete(a.machines, marketID)
	a.mu.Unlock()
}
