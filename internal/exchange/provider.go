// Package exchange hosts connectors for prediction-market venues: market
// discovery, candlestick history, and streaming price ticks.
package exchange

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Joe-Swanson828/prediction-bot/internal/market"
)

const (
	// ProviderStub emits deterministic synthetic markets and candles,
	// useful for tests and offline work.
	ProviderStub = "stub"
	// ProviderKalshi polls the Kalshi trade API.
	ProviderKalshi = "kalshi"
)

// Provider serves market snapshots and candle history for the scan loop.
type Provider interface {
	Markets(ctx context.Context) ([]market.Market, error)
	Candles(ctx context.Context, marketID string, limit int) ([]market.Candle, error)
}

// Config carries provider connectivity settings.
type Config struct {
	Provider       string
	BaseURL        string
	WSURL          string
	APIKeyID       string
	Tickers        []string
	PollIntervalMs int
	CandleLimit    int
}

// New constructs the configured provider.
func New(cfg Config, log zerolog.Logger) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderStub:
		return NewStub(time.Now().UnixNano()), nil
	case ProviderKalshi:
		return NewKalshi(cfg, log), nil
	default:
		return nil, fmt.Errorf("unknown exchange provider %q", cfg.Provider)
	}
}
