// Package speed scores the bot's information edge per market: update
// freshness, volume spikes, price momentum, and divergence between external
// consensus estimates and the market-implied probability.
package speed

import (
	"sync"
	"time"

	"github.com/Joe-Swanson828/prediction-bot/internal/market"
)

const (
	historyLimit       = 30
	freshnessFullSecs  = 5.0
	freshnessStaleSecs = 120.0
	volumeSpikeRatio   = 2.0
	momentumScale      = 500.0
)

// marketData is the per-market rolling state the monitor tracks.
type marketData struct {
	lastUpdate    time.Time
	priceHistory  []float64
	volumeHistory []float64
	consensus     *market.Consensus
}

func (d *marketData) record(price, volume float64, now time.Time) {
	d.lastUpdate = now
	d.priceHistory = append(d.priceHistory, price)
	d.volumeHistory = append(d.volumeHistory, volume)
	if len(d.priceHistory) > historyLimit {
		d.priceHistory = d.priceHistory[len(d.priceHistory)-historyLimit:]
	}
	if len(d.volumeHistory) > historyLimit {
		d.volumeHistory = d.volumeHistory[len(d.volumeHistory)-historyLimit:]
	}
}

func (d *marketData) volumeBaseline() float64 {
	if len(d.volumeHistory) < 2 {
		if len(d.volumeHistory) == 1 && d.volumeHistory[0] > 1.0 {
			return d.volumeHistory[0]
		}
		return 1.0
	}
	prior := d.volumeHistory[:len(d.volumeHistory)-1]
	var sum float64
	for _, v := range prior {
		sum += v
	}
	return sum / float64(len(prior))
}

func (d *marketData) latestVolumeSpike() float64 {
	if len(d.volumeHistory) == 0 {
		return 1.0
	}
	baseline := d.volumeBaseline()
	if baseline < 1.0 {
		baseline = 1.0
	}
	return d.volumeHistory[len(d.volumeHistory)-1] / baseline
}

func (d *marketData) priceMomentum() float64 {
	if len(d.priceHistory) < 3 {
		return 0
	}
	return d.priceHistory[len(d.priceHistory)-1] - d.priceHistory[len(d.priceHistory)-3]
}

// Breakdown itemizes the scoring components for observability.
type Breakdown struct {
	Freshness      float64
	VolumeSpike    float64
	Momentum       float64
	ConsensusBonus float64
}

// Result is the speed engine output for one market.
type Result struct {
	Score            float64
	Direction        market.Direction
	StalenessSeconds float64
	VolumeSpikeRatio float64
	PriceMomentum    float64
	ConsensusEdge    float64
	Breakdown        Breakdown
}

// Monitor tracks per-market tick history, created lazily on first
// observation and evicted when a market resolves.
type Monitor struct {
	mu   sync.Mutex
	data map[string]*marketData
	now  func() time.Time
}

func NewMonitor() *Monitor {
	return &Monitor{data: make(map[string]*marketData), now: time.Now}
}

func (m *Monitor) get(marketID string) *marketData {
	d, ok := m.data[marketID]
	if !ok {
		d = &marketData{}
		m.data[marketID] = d
	}
	return d
}

// RecordTick stores a new price/volume update for a market.
func (m *Monitor) RecordTick(marketID string, price, volume float64) {
	m.mu.Lock()
	m.get(marketID).record(price, volume, m.now())
	m.mu.Unlock()
}

// UpdateConsensus stores the latest external multi-source estimate.
func (m *Monitor) UpdateConsensus(marketID string, c market.Consensus) {
	m.mu.Lock()
	cc := c
	m.get(marketID).consensus = &cc
	m.mu.Unlock()
}

// Evict stops tracking a market.
func (m *Monitor) Evict(marketID string) {
	m.mu.Lock()
	delete(m.data, marketID)
	m.mu.Unlock()
}

// Score computes the information-edge score for a market. currentPrice is
// the YES price used for consensus comparison; pass havePrice=false when the
// market price is unknown, which skips the consensus component.
func (m *Monitor) Score(marketID string, currentPrice float64, havePrice bool) Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.get(marketID)

	score := 50.0
	direction := market.Neutral
	var breakdown Breakdown

	// Freshness.
	var staleness float64
	never := d.lastUpdate.IsZero()
	if !never {
		staleness = m.now().Sub(d.lastUpdate).Seconds()
	}
	var freshness float64
	switch {
	case never, staleness > freshnessStaleSecs:
		freshness = -15
	case staleness < freshnessFullSecs:
		freshness = 15
	case staleness < 30:
		freshness = 10
	case staleness < 60:
		freshness = 5
	default:
		decay := (staleness - 60) / (freshnessStaleSecs - 60)
		freshness = 5 - decay*20
		if freshness < -15 {
			freshness = -15
		}
	}
	score += freshness
	breakdown.Freshness = freshness

	// Volume spike.
	spike := d.latestVolumeSpike()
	var volumeBonus float64
	switch {
	case spike >= volumeSpikeRatio*2:
		volumeBonus = 15
	case spike >= volumeSpikeRatio:
		volumeBonus = 8
	case spike >= 1.5:
		volumeBonus = 3
	}
	score += volumeBonus
	breakdown.VolumeSpike = volumeBonus

	// Momentum.
	momentum := d.priceMomentum()
	impact := momentum * momentumScale
	if impact > 0.1 || impact < -0.1 {
		score += impact
		if momentum > 0 {
			direction = market.Bullish
		} else if momentum < 0 {
			direction = market.Bearish
		}
	}
	breakdown.Momentum = impact

	// Consensus edge vs the market-implied probability.
	var consensusEdge, consensusBonus float64
	if d.consensus != nil && havePrice {
		marketProb := currentPrice * 100.0
		consensusEdge = d.consensus.Score - marketProb
		sourceMult := float64(d.consensus.SourceCount) / 3.0
		if sourceMult > 2.0 {
			sourceMult = 2.0
		}
		abs := consensusEdge
		if abs < 0 {
			abs = -abs
		}
		if abs > 10 {
			consensusBonus = abs * 0.3 * sourceMult
			if consensusBonus > 20 {
				consensusBonus = 20
			}
			if consensusEdge > 0 {
				direction = market.Bullish
			} else {
				direction = market.Bearish
				consensusBonus = -consensusBonus
			}
			score += consensusBonus
		}
	}
	breakdown.ConsensusBonus = consensusBonus

	if score < 0 {
		score = 0
	} else if score > 100 {
		score = 100
	}

	// Re-derive direction from the final score when still undecided.
	if direction == market.Neutral {
		if score > 60 {
			direction = market.Bullish
		} else if score < 40 {
			direction = market.Bearish
		}
	}

	stalenessOut := staleness
	if never {
		stalenessOut = 9999
	}

	return Result{
		Score:            score,
		Direction:        direction,
		StalenessSeconds: stalenessOut,
		VolumeSpikeRatio: spike,
		PriceMomentum:    momentum,
		ConsensusEdge:    consensusEdge,
		Breakdown:        breakdown,
	}
}
