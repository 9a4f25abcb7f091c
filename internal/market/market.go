// Package market standardizes the domain types shared between data providers,
// the analysis engines, and the trading layer.
package market

import "time"

// Category identifies which vertical a prediction market belongs to.
type Category string

const (
	CategorySports  Category = "sports"
	CategoryCrypto  Category = "crypto"
	CategoryWeather Category = "weather"
)

// Categories lists every vertical the bot operates in.
var Categories = []Category{CategorySports, CategoryCrypto, CategoryWeather}

// Direction expresses a signal's directional bias.
type Direction string

const (
	Bullish Direction = "bullish"
	Bearish Direction = "bearish"
	Neutral Direction = "neutral"
)

// Market models a tracked prediction market. Prices are YES-contract
// probabilities in [0.01, 0.99].
type Market struct {
	ID          string
	Exchange    string
	Ticker      string
	Category    Category
	Title       string
	YesPrice    float64
	NoPrice     float64
	Volume      float64
	Status      string
	LastUpdated time.Time
}

// Candle is one OHLCV bar. Prices stay in the [0, 1] contract range and
// candles are always handed around oldest first.
type Candle struct {
	Ts     time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Tick is a single price/volume update for a market.
type Tick struct {
	MarketID string
	Price    float64
	Volume   float64
	Ts       time.Time
}

// Consensus carries an external multi-source probability estimate for a
// market outcome, used by the speed engine to find pricing divergence.
type Consensus struct {
	Score       float64 // 0-100 probability estimate
	Direction   Direction
	SourceCount int
}
