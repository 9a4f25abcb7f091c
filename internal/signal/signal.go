// Package signal merges the three engine scores into a composite trading
// decision using the current per-category weight set.
package signal

import (
	"context"

	"github.com/Joe-Swanson828/prediction-bot/internal/market"
	"github.com/Joe-Swanson828/prediction-bot/internal/weights"
)

// Type identifies which engine produced a score.
type Type string

const (
	TypeTA        Type = "ta"
	TypeSentiment Type = "sentiment"
	TypeSpeed     Type = "speed"
)

// Recommendation is the trade action derived from a composite score.
type Recommendation string

const (
	BuyYes Recommendation = "BUY_YES"
	BuyNo  Recommendation = "BUY_NO"
	Hold   Recommendation = "HOLD"
)

// Score is one engine's output for a market in a single scan cycle.
type Score struct {
	Type       Type
	Value      float64 // 0-100
	Direction  market.Direction
	Confidence float64
}

// Composite is the aggregated decision for one market and cycle.
type Composite struct {
	MarketID        string
	Category        market.Category
	TAScore         float64
	SentimentScore  float64
	SpeedScore      float64
	Weights         weights.Set
	FinalScore      float64
	Direction       market.Direction
	SignalsAgreeing int
	TradeEligible   bool
	Recommendation  Recommendation
}

// Aggregator blends engine scores with adaptive weights and applies the
// consensus rule: trading requires the composite score to clear the
// threshold AND at least two engines agreeing on direction.
type Aggregator struct {
	weights        *weights.Repository
	tradeThreshold float64
}

// NewAggregator wires the aggregator to the weight repository.
func NewAggregator(repo *weights.Repository, tradeThreshold float64) *Aggregator {
	return &Aggregator{weights: repo, tradeThreshold: tradeThreshold}
}

// Compose computes the composite score for one market from the three engine
// scores. The weight set used is always the most recently superseded one for
// the market's category.
func (a *Aggregator) Compose(ctx context.Context, marketID string, category market.Category, ta, sentiment, speed Score) Composite {
	w := a.weights.Current(ctx, category)

	final := ta.Value*w.TA + sentiment.Value*w.Sentiment + speed.Value*w.Speed
	if final < 0 {
		final = 0
	} else if final > 100 {
		final = 100
	}

	var bullish, bearish int
	for _, d := range []market.Direction{ta.Direction, sentiment.Direction, speed.Direction} {
		switch d {
		case market.Bullish:
			bullish++
		case market.Bearish:
			bearish++
		}
	}

	direction := market.Neutral
	agreeing := 1
	if bullish >= 2 {
		direction = market.Bullish
		agreeing = bullish
	} else if bearish >= 2 {
		direction = market.Bearish
		agreeing = bearish
	}

	eligible := final >= a.tradeThreshold && agreeing >= 2

	recommendation := Hold
	if eligible && direction == market.Bullish {
		recommendation = BuyYes
	} else if eligible && direction == market.Bearish {
		recommendation = BuyNo
	}

	return Composite{
		MarketID:        marketID,
		Category:        category,
		TAScore:         ta.Value,
		SentimentScore:  sentiment.Value,
		SpeedScore:      speed.Value,
		Weights:         w,
		FinalScore:      final,
		Direction:       direction,
		SignalsAgreeing: agreeing,
		TradeEligible:   eligible,
		Recommendation:  recommendation,
	}
}
