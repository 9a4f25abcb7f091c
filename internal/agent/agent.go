// Package agent retunes per-category signal weights from realized trade
// outcomes. Every evaluationPeriod closed trades it measures how often each
// engine's directional call matched the trade result and nudges weights
// toward the engines that were right.
package agent

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/Joe-Swanson828/prediction-bot/internal/market"
	"github.com/Joe-Swanson828/prediction-bot/internal/metrics"
	"github.com/Joe-Swanson828/prediction-bot/internal/store"
	"github.com/Joe-Swanson828/prediction-bot/internal/weights"
)

// Params tunes the adjustment cycle.
type Params struct {
	EvaluationPeriod int     // closed trades per category between evaluations
	AdjustmentStep   float64 // weight delta per adjustment
	MinWeight        float64
	MaxWeight        float64

	// Accuracy bands: engines above Reward get boosted, below Punish get cut.
	RewardAccuracy float64
	PunishAccuracy float64
}

// DefaultParams mirror the production tuning.
func DefaultParams() Params {
	return Params{
		EvaluationPeriod: 20,
		AdjustmentStep:   0.05,
		MinWeight:        0.05,
		MaxWeight:        0.70,
		RewardAccuracy:   0.65,
		PunishAccuracy:   0.40,
	}
}

// Agent runs the weight-adjustment cycle. It keeps a per-category count of
// closed trades already evaluated so each trade is only judged once.
type Agent struct {
	log       zerolog.Logger
	store     store.Store
	weights   *weights.Repository
	params    Params
	now       func() time.Time
	evaluated map[market.Category]int
	onAdjust  func(store.AgentLogEntry)
}

// New builds an agent over the store and weight repository.
func New(log zerolog.Logger, st store.Store, repo *weights.Repository, params Params) *Agent {
	return &Agent{
		log:       log.With().Str("component", "agent").Logger(),
		store:     st,
		weights:   repo,
		params:    params,
		now:       time.Now,
		evaluated: make(map[market.Category]int),
	}
}

// SetClock overrides the time source, for tests.
func (a *Agent) SetClock(now func() time.Time) { a.now = now }

// OnAdjust registers a callback invoked after every committed adjustment.
func (a *Agent) OnAdjust(fn func(store.AgentLogEntry)) { a.onAdjust = fn }

// MaybeEvaluate runs one adjustment pass for every category that has
// accumulated a full evaluation period of new closed trades.
func (a *Agent) MaybeEvaluate(ctx context.Context) {
	for _, cat := range market.Categories {
		count, err := a.store.ClosedTradeCount(ctx, cat)
		if err != nil {
			a.log.Warn().Err(err).Str("category", string(cat)).Msg("closed trade count failed")
			continue
		}
		if count-a.evaluated[cat] < a.params.EvaluationPeriod {
			continue
		}
		a.evaluated[cat] = count
		a.EvaluateAndAdjust(ctx, cat)
	}
}

// EvaluateAndAdjust measures engine accuracy over the most recent evaluation
// window and supersedes the category's weights if any engine earned a change.
func (a *Agent) EvaluateAndAdjust(ctx context.Context, cat market.Category) {
	trades, err := a.store.RecentClosedTrades(ctx, cat, a.params.EvaluationPeriod)
	if err != nil {
		a.log.Warn().Err(err).Str("category", string(cat)).Msg("recent trades lookup failed")
		return
	}
	if len(trades) < a.params.EvaluationPeriod {
		return
	}

	taAcc := accuracy(trades, func(t store.Trade) float64 { return t.TAScore })
	sentAcc := accuracy(trades, func(t store.Trade) float64 { return t.SentimentScore })
	speedAcc := accuracy(trades, func(t store.Trade) float64 { return t.SpeedScore })

	old := a.weights.Current(ctx, cat)
	next := weights.Set{
		TA:        a.adjust(old.TA, taAcc),
		Sentiment: a.adjust(old.Sentiment, sentAcc),
		Speed:     a.adjust(old.Speed, speedAcc),
	}
	if next == old {
		return
	}

	next = a.normalize(next)

	reason := fmt.Sprintf(
		"accuracy over last %d trades: ta=%.0f%% sentiment=%.0f%% speed=%.0f%%",
		len(trades), taAcc*100, sentAcc*100, speedAcc*100)

	if err := a.weights.Supersede(ctx, cat, next); err != nil {
		a.log.Warn().Err(err).Str("category", string(cat)).Msg("weight supersede failed")
		return
	}
	entry := store.AgentLogEntry{
		Category:   cat,
		OldWeights: old,
		NewWeights: next,
		Reason:     reason,
		Ts:         a.now(),
	}
	if err := a.store.SaveAgentLog(ctx, entry); err != nil {
		a.log.Warn().Err(err).Str("category", string(cat)).Msg("agent log write failed")
	}
	metrics.WeightAdjustmentsTotal.WithLabelValues(string(cat)).Inc()
	if a.onAdjust != nil {
		a.onAdjust(entry)
	}

	a.log.Info().
		Str("category", string(cat)).
		Str("old", old.String()).
		Str("new", next.String()).
		Str("reason", reason).
		Msg("signal weights adjusted")
}

// accuracy scores one engine over a trade window: the engine was right when
// its directional call at entry matched the sign of the realized P&L. A score
// above 50 is a bullish call, 50 and below is bearish. An empty sample returns
// 0.5 so no adjustment fires either way.
func accuracy(trades []store.Trade, score func(store.Trade) float64) float64 {
	if len(trades) == 0 {
		return 0.5
	}
	var correct int
	for _, t := range trades {
		predictedBullish := score(t) > 50
		var right bool
		if t.Direction == "YES" {
			right = (predictedBullish && t.PnL > 0) || (!predictedBullish && t.PnL <= 0)
		} else {
			right = (!predictedBullish && t.PnL > 0) || (predictedBullish && t.PnL <= 0)
		}
		if right {
			correct++
		}
	}
	return float64(correct) / float64(len(trades))
}

// adjust moves one weight a step up or down based on accuracy bands, within
// [MinWeight, MaxWeight]. Mid-band accuracy leaves the weight untouched.
func (a *Agent) adjust(w, acc float64) float64 {
	switch {
	case acc > a.params.RewardAccuracy:
		w += a.params.AdjustmentStep
		if w > a.params.MaxWeight {
			w = a.params.MaxWeight
		}
	case acc < a.params.PunishAccuracy:
		w -= a.params.AdjustmentStep
		if w < a.params.MinWeight {
			w = a.params.MinWeight
		}
	}
	return w
}

// normalize rescales a set to sum to 1.0, re-clamps to the allowed band, and
// rescales once more. Rounding to four decimals keeps stored rows stable.
func (a *Agent) normalize(s weights.Set) weights.Set {
	s = scale(s)
	s.TA = clampWeight(s.TA, a.params.MinWeight, a.params.MaxWeight)
	s.Sentiment = clampWeight(s.Sentiment, a.params.MinWeight, a.params.MaxWeight)
	s.Speed = clampWeight(s.Speed, a.params.MinWeight, a.params.MaxWeight)
	return scale(s)
}

func scale(s weights.Set) weights.Set {
	sum := s.Sum()
	if sum <= 0 {
		return weights.EvenSplit()
	}
	return weights.Set{
		TA:        round4(s.TA / sum),
		Sentiment: round4(s.Sentiment / sum),
		Speed:     round4(s.Speed / sum),
	}
}

func clampWeight(w, lo, hi float64) float64 {
	if w < lo {
		return lo
	}
	if w > hi {
		return hi
	}
	return w
}

func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}
