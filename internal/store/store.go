// Package store defines the durable-storage contract the trading core writes
// through, plus the record types persisted per scan cycle. The core only
// requires latest-snapshot reads and append-only writes; two implementations
// are provided (Postgres and in-memory).
package store

import (
	"context"
	"time"

	"github.com/Joe-Swanson828/prediction-bot/internal/market"
	"github.com/Joe-Swanson828/prediction-bot/internal/signal"
	"github.com/Joe-Swanson828/prediction-bot/internal/weights"
)

// Trade statuses.
const (
	StatusOpen      = "open"
	StatusClosed    = "closed"
	StatusCancelled = "cancelled"
)

// Trade is one simulated execution and its lifecycle.
type Trade struct {
	ID             string
	MarketID       string
	Category       market.Category
	Direction      string // 'YES' | 'NO'
	Quantity       float64
	EntryPrice     float64
	ExitPrice      float64 // zero until closed
	EntryTime      time.Time
	ExitTime       time.Time // zero until closed
	PnL            float64
	Status         string
	CompositeScore float64
	TAScore        float64
	SentimentScore float64
	SpeedScore     float64
	Slippage       float64
	Mode           string // 'paper'
}

// PnLAt returns the realized P&L for a hypothetical exit price.
func (t Trade) PnLAt(exitPrice float64) float64 {
	return (exitPrice - t.EntryPrice) * t.Quantity
}

// Position mirrors the open subset of trades for fast dashboard reads.
type Position struct {
	TradeID       string
	MarketID      string
	Direction     string
	Quantity      float64
	EntryPrice    float64
	CurrentPrice  float64
	UnrealizedPnL float64
	LastUpdated   time.Time
}

// BalanceSnapshot is one point of the append-only equity curve.
type BalanceSnapshot struct {
	Balance float64
	Mode    string
	Ts      time.Time
}

// AgentLogEntry is one weight-adjustment audit record.
type AgentLogEntry struct {
	Category   market.Category
	OldWeights weights.Set
	NewWeights weights.Set
	Reason     string
	Ts         time.Time
}

// Store is the full persistence contract. Every method takes a context so
// implementations can honor cancellation at I/O boundaries.
type Store interface {
	weights.Persistence

	UpsertMarket(ctx context.Context, m market.Market) error
	Markets(ctx context.Context) ([]market.Market, error)

	SaveCandles(ctx context.Context, marketID string, candles []market.Candle) error
	Candles(ctx context.Context, marketID string, limit int) ([]market.Candle, error)

	SaveSignal(ctx context.Context, marketID string, s signal.Score, actedOn bool, ts time.Time) error
	SaveComposite(ctx context.Context, c signal.Composite, ts time.Time) error

	SaveTrade(ctx context.Context, t Trade) error
	CloseTrade(ctx context.Context, tradeID string, exitPrice, pnl, slippage float64, exitTime time.Time) error
	OpenTrades(ctx context.Context) ([]Trade, error)
	OpenTradeForMarket(ctx context.Context, marketID string) (Trade, bool, error)
	ClosedTrades(ctx context.Context, limit int) ([]Trade, error)
	RecentClosedTrades(ctx context.Context, category market.Category, limit int) ([]Trade, error)
	ClosedTradeCount(ctx context.Context, category market.Category) (int, error)

	SavePosition(ctx context.Context, p Position) error
	DeletePosition(ctx context.Context, tradeID string) error
	OpenPositions(ctx context.Context) ([]Position, error)

	SaveBalance(ctx context.Context, s BalanceSnapshot) error
	BalanceHistory(ctx context.Context, mode string, limit int) ([]BalanceSnapshot, error)

	SaveAgentLog(ctx context.Context, e AgentLogEntry) error
	AgentLog(ctx context.Context, limit int) ([]AgentLogEntry, error)

	Close()
}
