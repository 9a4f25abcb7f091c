// Package sentiment scores free-text headlines for directional bias using a
// fixed valence lexicon plus category-specific keyword boosts. Scores are
// normalized from the native [-1, 1] range to [0, 100] where 50 is neutral.
package sentiment

import (
	"regexp"
	"strings"

	"github.com/Joe-Swanson828/prediction-bot/internal/market"
)

// recencyDecay weights batch items: the newest item gets 1.0 and each older
// item decays by this factor.
const recencyDecay = 0.9

var wordPattern = regexp.MustCompile(`[a-z0-9']+`)

// positive/negative form the base valence lexicon.
var positiveWords = map[string]struct{}{
	"good": {}, "great": {}, "win": {}, "won": {}, "positive": {}, "up": {}, "rise": {},
	"gain": {}, "profit": {}, "success": {}, "strong": {}, "high": {}, "record": {},
	"best": {}, "beat": {}, "exceed": {}, "outperform": {}, "surpass": {},
}

var negativeWords = map[string]struct{}{
	"bad": {}, "loss": {}, "lost": {}, "negative": {}, "down": {}, "fall": {}, "drop": {},
	"fail": {}, "weak": {}, "low": {}, "miss": {}, "underperform": {}, "injury": {},
	"suspend": {}, "cancel": {}, "crash": {}, "decline": {},
}

// domainBoosters carry extra weight in prediction-market contexts that the
// general lexicon misses. Applied on whole-word matches.
var domainBoosters = map[market.Category]map[string]float64{
	market.CategorySports: {
		"injured": -0.4, "injury": -0.3, "questionable": -0.2,
		"out": -0.15, "doubtful": -0.3, "suspended": -0.35,
		"starting": 0.2, "active": 0.15, "cleared": 0.25,
		"dominant": 0.2, "struggling": -0.2, "slump": -0.25,
	},
	market.CategoryCrypto: {
		"halt": -0.4, "crash": -0.5, "dump": -0.4, "rekt": -0.45,
		"moon": 0.35, "rally": 0.3, "surge": 0.35, "adoption": 0.25,
		"sec": -0.1, "ban": -0.4, "hack": -0.5, "exploit": -0.45,
		"etf": 0.3, "institutional": 0.2, "approval": 0.35,
		"fud": -0.2, "bullish": 0.35, "bearish": -0.35,
	},
	market.CategoryWeather: {
		"severe": -0.3, "warning": -0.25, "watch": -0.15,
		"record": 0.1, "extreme": -0.2, "unseasonable": -0.1,
		"mild": 0.1, "clear": 0.15, "sunny": 0.1,
	},
}

// Distribution counts how many batch items leaned each way.
type Distribution struct {
	Bullish int
	Neutral int
	Bearish int
}

// Result is a market-level sentiment analysis outcome.
type Result struct {
	Score        float64
	Direction    market.Direction
	SourceCount  int
	TopItems     []string
	Distribution Distribution
	Confidence   float64
}

// Analyzer scores text against the lexicon. It is stateless and safe for
// concurrent use.
type Analyzer struct{}

func NewAnalyzer() *Analyzer { return &Analyzer{} }

// ScoreText scores a single piece of text in [0, 100]. Empty or whitespace
// input is neutral (50).
func (a *Analyzer) ScoreText(text string, category market.Category) float64 {
	if strings.TrimSpace(text) == "" {
		return 50
	}
	clean := strings.ToLower(strings.TrimSpace(text))
	words := wordPattern.FindAllString(clean, -1)
	seen := make(map[string]struct{}, len(words))
	var pos, neg int
	for _, w := range words {
		seen[w] = struct{}{}
		if _, ok := positiveWords[w]; ok {
			pos++
		}
		if _, ok := negativeWords[w]; ok {
			neg++
		}
	}

	var compound float64
	if total := pos + neg; total > 0 {
		compound = float64(pos-neg) / float64(total)
	}

	if boosters, ok := domainBoosters[category]; ok {
		for word, boost := range boosters {
			if _, hit := seen[word]; hit {
				compound = clamp1(compound + boost)
			}
		}
	}

	return (compound + 1.0) / 2.0 * 100.0
}

// ScoreBatch combines per-item scores with exponential recency weighting:
// weight(i) = 0.9^(n-1-i) with index 0 oldest, so the newest item always
// carries weight 1.0.
func (a *Analyzer) ScoreBatch(texts []string, category market.Category) float64 {
	if len(texts) == 0 {
		return 50
	}
	n := len(texts)
	var weightedSum, totalWeight float64
	weight := 1.0
	for i := n - 1; i >= 0; i-- {
		weightedSum += a.ScoreText(texts[i], category) * weight
		totalWeight += weight
		weight *= recencyDecay
	}
	if totalWeight <= 0 {
		return 50
	}
	return weightedSum / totalWeight
}

// AnalyzeMarket produces the full sentiment result for a market from its
// recent headlines (oldest first). Empty input yields a neutral result with
// zero confidence.
func (a *Analyzer) AnalyzeMarket(category market.Category, newsItems []string) Result {
	if len(newsItems) == 0 {
		return Result{Score: 50, Direction: market.Neutral}
	}

	individual := make([]float64, len(newsItems))
	for i, item := range newsItems {
		individual[i] = a.ScoreText(item, category)
	}
	aggregate := a.ScoreBatch(newsItems, category)

	direction := market.Neutral
	if aggregate > 58 {
		direction = market.Bullish
	} else if aggregate < 42 {
		direction = market.Bearish
	}

	var dist Distribution
	for _, s := range individual {
		switch {
		case s > 58:
			dist.Bullish++
		case s < 42:
			dist.Bearish++
		default:
			dist.Neutral++
		}
	}

	agreeing := dist.Neutral
	switch direction {
	case market.Bullish:
		agreeing = dist.Bullish
	case market.Bearish:
		agreeing = dist.Bearish
	}
	total := len(individual)
	confidence := float64(agreeing) / float64(total) * 100.0
	if total >= 5 {
		confidence *= 1.1
		if confidence > 100 {
			confidence = 100
		}
	}

	top := newsItems
	if len(top) > 3 {
		top = top[:3]
	}

	return Result{
		Score:        aggregate,
		Direction:    direction,
		SourceCount:  total,
		TopItems:     top,
		Distribution: dist,
		Confidence:   confidence,
	}
}

func clamp1(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
