package technical

import "github.com/Joe-Swanson828/prediction-bot/internal/market"

// State enumerates the double-breakout pattern detector states.
type State string

const (
	Scanning              State = "SCANNING"
	ConsolidationDetected State = "CONSOLIDATION_DETECTED"
	FirstBreakout         State = "FIRST_BREAKOUT"
	Retest                State = "RETEST"
	SecondBreakoutSignal  State = "SECOND_BREAKOUT_SIGNAL"
)

// Params collects the tunable thresholds of the breakout detector.
type Params struct {
	ConsolidationMinCandles int
	ConsolidationMaxRange   float64 // range/mid that still counts as consolidation
	BreakoutMinPct          float64 // move beyond the box that counts as a breakout
	RetestTolerancePct      float64 // distance from the breakout level that counts as a retest
	TimeoutCandles          int     // reset after this many candles in a non-terminal state
	VolumeWindow            int
}

// DefaultParams returns the production thresholds.
func DefaultParams() Params {
	return Params{
		ConsolidationMinCandles: 5,
		ConsolidationMaxRange:   0.03,
		BreakoutMinPct:          0.015,
		RetestTolerancePct:      0.015,
		TimeoutCandles:          50,
		VolumeWindow:            20,
	}
}

// MachineState is the full per-market detector state. It is a plain value:
// Step consumes one and returns the successor, so single transitions can be
// tested in isolation.
type MachineState struct {
	State              State
	Direction          market.Direction
	ConsolidationHigh  float64
	ConsolidationLow   float64
	FirstBreakoutPrice float64
	CandlesInState     int
	RecentVolumes      []float64
}

// NewMachineState returns a detector in SCANNING.
func NewMachineState() MachineState {
	return MachineState{State: Scanning, Direction: market.Neutral}
}

func (m MachineState) reset() MachineState {
	return MachineState{State: Scanning, Direction: market.Neutral, RecentVolumes: m.RecentVolumes}
}

// DetectConsolidation inspects the most recent window of candles for a tight
// box and, when found, moves the detector into CONSOLIDATION_DETECTED.
func DetectConsolidation(m MachineState, candles []market.Candle, p Params) (MachineState, bool) {
	if m.State != Scanning || len(candles) < p.ConsolidationMinCandles {
		return m, false
	}
	recent := candles[len(candles)-p.ConsolidationMinCandles:]
	high, low := recent[0].High, recent[0].Low
	for _, c := range recent[1:] {
		if c.High > high {
			high = c.High
		}
		if c.Low < low {
			low = c.Low
		}
	}
	mid := (high + low) / 2
	if mid <= 0 {
		return m, false
	}
	if (high-low)/mid <= p.ConsolidationMaxRange {
		m.State = ConsolidationDetected
		m.ConsolidationHigh = high
		m.ConsolidationLow = low
		m.CandlesInState = 0
		return m, true
	}
	return m, false
}

// Step feeds one candle through the detector and returns the successor state
// plus the pattern confidence (0-100) for this candle.
func Step(m MachineState, c market.Candle, p Params) (MachineState, float64) {
	m.CandlesInState++
	m.RecentVolumes = append(m.RecentVolumes, c.Volume)
	if len(m.RecentVolumes) > p.VolumeWindow {
		m.RecentVolumes = m.RecentVolumes[len(m.RecentVolumes)-p.VolumeWindow:]
	}
	var volSum float64
	for _, v := range m.RecentVolumes {
		volSum += v
	}
	n := len(m.RecentVolumes)
	if n == 0 {
		n = 1
	}
	avgVolume := volSum / float64(n)

	// Timeout guard for detectors stuck in a non-terminal state.
	if m.CandlesInState > p.TimeoutCandles && m.State != Scanning && m.State != SecondBreakoutSignal {
		return m.reset(), 0
	}

	switch m.State {
	case Scanning:
		return m, 0 // accumulating data, consolidation detection runs separately

	case ConsolidationDetected:
		if c.Close > m.ConsolidationHigh*(1+p.BreakoutMinPct) {
			m.State = FirstBreakout
			m.FirstBreakoutPrice = c.Close
			m.Direction = market.Bullish
			m.CandlesInState = 0
			return m, 35
		}
		if c.Close < m.ConsolidationLow*(1-p.BreakoutMinPct) {
			m.State = FirstBreakout
			m.FirstBreakoutPrice = c.Close
			m.Direction = market.Bearish
			m.CandlesInState = 0
			return m, 35
		}
		return m, 0

	case FirstBreakout:
		level := m.ConsolidationHigh
		if m.Direction == market.Bearish {
			level = m.ConsolidationLow
		}
		denom := level
		if denom < 0.001 {
			denom = 0.001
		}
		distance := c.Close - level
		if distance < 0 {
			distance = -distance
		}
		if distance/denom <= p.RetestTolerancePct {
			m.State = Retest
			m.CandlesInState = 0
			return m, 20
		}
		// Invalidation: price crosses the opposite consolidation bound.
		if m.Direction == market.Bullish && c.Close < m.ConsolidationLow*(1-p.BreakoutMinPct) {
			return m.reset(), 0
		}
		if m.Direction == market.Bearish && c.Close > m.ConsolidationHigh*(1+p.BreakoutMinPct) {
			return m.reset(), 0
		}
		return m, 25

	case Retest:
		if m.Direction == market.Bullish {
			if c.Close > m.ConsolidationHigh*(1+p.BreakoutMinPct) {
				confidence := 75.0
				if c.Volume > avgVolume*1.5 {
					confidence += 15
				}
				if confidence > 100 {
					confidence = 100
				}
				m.State = SecondBreakoutSignal
				m.CandlesInState = 0
				return m, confidence
			}
			if c.Close < m.ConsolidationLow*(1-p.BreakoutMinPct) {
				return m.reset(), 0
			}
		} else {
			if c.Close < m.ConsolidationLow*(1-p.BreakoutMinPct) {
				confidence := 75.0
				if c.Volume > avgVolume*1.5 {
					confidence += 15
				}
				if confidence > 100 {
					confidence = 100
				}
				m.State = SecondBreakoutSignal
				m.CandlesInState = 0
				return m, confidence
			}
			if c.Close > m.ConsolidationHigh*(1+p.BreakoutMinPct) {
				return m.reset(), 0
			}
		}
		return m, 30

	case SecondBreakoutSignal:
		// Hold the signal for a few candles, then drop back to scanning.
		if m.CandlesInState > 3 {
			return m.reset(), 90
		}
		return m, 90
	}

	return m, 0
}
