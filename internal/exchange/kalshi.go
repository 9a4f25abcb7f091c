package exchange

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/Joe-Swanson828/prediction-bot/internal/market"
)

const defaultKalshiBaseURL = "https://api.elections.kalshi.com/trade-api/v2"

// Kalshi polls the Kalshi trade API for market snapshots and candlesticks.
// Prices on the wire are integer cents; everything leaves this package as
// probabilities in [0, 1].
type Kalshi struct {
	client  *resty.Client
	log     zerolog.Logger
	tickers []string
}

// NewKalshi builds the REST client. The API key header is only attached when
// configured; public market data does not require it.
func NewKalshi(cfg Config, log zerolog.Logger) *Kalshi {
	base := cfg.BaseURL
	if base == "" {
		base = defaultKalshiBaseURL
	}
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(base, "/")).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)
	if cfg.APIKeyID != "" {
		client.SetHeader("KALSHI-ACCESS-KEY", cfg.APIKeyID)
	}
	return &Kalshi{
		client:  client,
		log:     log.With().Str("component", "kalshi").Logger(),
		tickers: cfg.Tickers,
	}
}

type kalshiMarket struct {
	Ticker   string  `json:"ticker"`
	Title    string  `json:"title"`
	Category string  `json:"category"`
	YesBid   float64 `json:"yes_bid"`
	YesAsk   float64 `json:"yes_ask"`
	NoBid    float64 `json:"no_bid"`
	NoAsk    float64 `json:"no_ask"`
	Volume   float64 `json:"volume"`
	Status   string  `json:"status"`
}

type kalshiMarketsResponse struct {
	Markets []kalshiMarket `json:"markets"`
	Cursor  string         `json:"cursor"`
}

type kalshiCandle struct {
	EndPeriodTs int64 `json:"end_period_ts"`
	Price       struct {
		Open  float64 `json:"open"`
		High  float64 `json:"high"`
		Low   float64 `json:"low"`
		Close float64 `json:"close"`
	} `json:"price"`
	Volume float64 `json:"volume"`
}

type kalshiCandlesResponse struct {
	Candlesticks []kalshiCandle `json:"candlesticks"`
}

// Markets fetches the configured tickers, or one page of open markets when
// no tickers are pinned.
func (k *Kalshi) Markets(ctx context.Context) ([]market.Market, error) {
	req := k.client.R().SetContext(ctx).SetQueryParam("status", "open")
	if len(k.tickers) > 0 {
		req.SetQueryParam("tickers", strings.Join(k.tickers, ","))
	}

	var body kalshiMarketsResponse
	resp, err := req.SetResult(&body).Get("/markets")
	if err != nil {
		return nil, fmt.Errorf("fetch markets: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch markets: status %d", resp.StatusCode())
	}

	out := make([]market.Market, 0, len(body.Markets))
	for _, km := range body.Markets {
		yes := centsToPrice((km.YesBid + km.YesAsk) / 2)
		out = append(out, market.Market{
			ID:          km.Ticker,
			Exchange:    ProviderKalshi,
			Ticker:      km.Ticker,
			Category:    mapCategory(km.Category),
			Title:       km.Title,
			YesPrice:    yes,
			NoPrice:     clampPrice(1 - yes),
			Volume:      km.Volume,
			Status:      km.Status,
			LastUpdated: time.Now(),
		})
	}
	return out, nil
}

// Candles fetches 1-minute candlesticks ending now.
func (k *Kalshi) Candles(ctx context.Context, marketID string, limit int) ([]market.Candle, error) {
	end := time.Now().Unix()
	start := end - int64(limit)*60

	var body kalshiCandlesResponse
	resp, err := k.client.R().SetContext(ctx).
		SetQueryParam("start_ts", fmt.Sprintf("%d", start)).
		SetQueryParam("end_ts", fmt.Sprintf("%d", end)).
		SetQueryParam("period_interval", "1").
		SetResult(&body).
		Get(fmt.Sprintf("/markets/%s/candlesticks", marketID))
	if err != nil {
		return nil, fmt.Errorf("fetch candlesticks: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch candlesticks: status %d", resp.StatusCode())
	}

	out := make([]market.Candle, 0, len(body.Candlesticks))
	for _, kc := range body.Candlesticks {
		out = append(out, market.Candle{
			Ts:     time.Unix(kc.EndPeriodTs, 0),
			Open:   centsToPrice(kc.Price.Open),
			High:   centsToPrice(kc.Price.High),
			Low:    centsToPrice(kc.Price.Low),
			Close:  centsToPrice(kc.Price.Close),
			Volume: kc.Volume,
		})
	}
	return out, nil
}

func centsToPrice(cents float64) float64 {
	return clampPrice(cents / 100)
}

// mapCategory folds the venue's category labels onto the bot's verticals.
// Unrecognized categories default to crypto, the most TA-driven profile.
func mapCategory(raw string) market.Category {
	switch strings.ToLower(raw) {
	case "sports", "sport":
		return market.CategorySports
	case "crypto", "financials", "economics":
		return market.CategoryCrypto
	case "weather", "climate", "climate and weather":
		return market.CategoryWeather
	default:
		return market.CategoryCrypto
	}
}
