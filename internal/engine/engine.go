// Package engine runs the scan loop: fetch market data, score it through the
// three analysis engines, aggregate, gate through risk, and hand eligible
// composites to the paper executor. It also drives exit checks and the
// weight-adjustment agent between cycles.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Joe-Swanson828/prediction-bot/internal/agent"
	"github.com/Joe-Swanson828/prediction-bot/internal/analysis/sentiment"
	"github.com/Joe-Swanson828/prediction-bot/internal/analysis/speed"
	"github.com/Joe-Swanson828/prediction-bot/internal/analysis/technical"
	"github.com/Joe-Swanson828/prediction-bot/internal/exchange"
	"github.com/Joe-Swanson828/prediction-bot/internal/market"
	"github.com/Joe-Swanson828/prediction-bot/internal/metrics"
	"github.com/Joe-Swanson828/prediction-bot/internal/news"
	"github.com/Joe-Swanson828/prediction-bot/internal/paper"
	"github.com/Joe-Swanson828/prediction-bot/internal/signal"
	"github.com/Joe-Swanson828/prediction-bot/internal/store"
)

// Params are the loop's trading knobs.
type Params struct {
	ScanInterval  time.Duration
	CandleLimit   int
	StopLossPct   float64
	TakeProfitPct float64
}

// Engine owns one full scan cycle and the glue between components.
type Engine struct {
	log       zerolog.Logger
	params    Params
	provider  exchange.Provider
	headlines news.Provider
	store     store.Store
	technical *technical.Analyzer
	sentiment *sentiment.Analyzer
	speed     *speed.Monitor
	agg       *signal.Aggregator
	executor  *paper.Executor
	agent     *agent.Agent
	events    chan Event
	now       func() time.Time
}

// New wires the engine. All collaborators are required except events
// consumers; the event channel is buffered and drops when full.
func New(log zerolog.Logger, params Params, provider exchange.Provider, headlines news.Provider,
	st store.Store, mon *speed.Monitor, agg *signal.Aggregator, exec *paper.Executor, ag *agent.Agent) *Engine {
	if params.CandleLimit <= 0 {
		params.CandleLimit = 100
	}
	if params.ScanInterval <= 0 {
		params.ScanInterval = 30 * time.Second
	}
	e := &Engine{
		log:       log.With().Str("component", "engine").Logger(),
		params:    params,
		provider:  provider,
		headlines: headlines,
		store:     st,
		technical: technical.NewAnalyzer(),
		sentiment: sentiment.NewAnalyzer(),
		speed:     mon,
		agg:       agg,
		executor:  exec,
		agent:     ag,
		events:    make(chan Event, 64),
		now:       time.Now,
	}
	ag.OnAdjust(func(entry store.AgentLogEntry) {
		e.emit(Event{
			Type:     EventWeightsAdjusted,
			MarketID: string(entry.Category),
			Text: "weights adjusted for " + string(entry.Category) + ": " +
				entry.OldWeights.String() + " -> " + entry.NewWeights.String(),
			Ts: entry.Ts,
		})
	})
	return e
}

// Events exposes the notification stream. Slow consumers lose events rather
// than stalling the scan loop.
func (e *Engine) Events() <-chan Event { return e.events }

func (e *Engine) emit(ev Event) {
	select {
	case e.events <- ev:
	default:
	}
}

// Run executes scan cycles until the context is canceled.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.params.ScanInterval)
	defer ticker.Stop()

	e.log.Info().Dur("interval", e.params.ScanInterval).Msg("scan loop started")
	e.ScanOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.ScanOnce(ctx)
		}
	}
}

// ConsumeTicks feeds streamed price updates into the speed monitor until the
// context is canceled or the channel closes.
func (e *Engine) ConsumeTicks(ctx context.Context, ticks <-chan market.Tick) {
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-ticks:
			if !ok {
				return
			}
			e.speed.RecordTick(t.MarketID, t.Price, t.Volume)
		}
	}
}

// ScanOnce runs one full cycle over every tracked market.
func (e *Engine) ScanOnce(ctx context.Context) {
	markets, err := e.provider.Markets(ctx)
	if err != nil {
		e.log.Warn().Err(err).Msg("market snapshot failed, skipping cycle")
		return
	}

	for _, m := range markets {
		if ctx.Err() != nil {
			return
		}
		e.scanMarket(ctx, m)
	}

	e.agent.MaybeEvaluate(ctx)
	metrics.ScansTotal.Inc()
}

func (e *Engine) scanMarket(ctx context.Context, m market.Market) {
	now := e.now()
	if err := e.store.UpsertMarket(ctx, m); err != nil {
		e.log.Warn().Err(err).Str("market", m.ID).Msg("market upsert failed")
	}

	candles, err := e.provider.Candles(ctx, m.ID, e.params.CandleLimit)
	if err != nil {
		e.log.Warn().Err(err).Str("market", m.ID).Msg("candle fetch failed")
	}
	if len(candles) > 0 {
		if err := e.store.SaveCandles(ctx, m.ID, candles); err != nil {
			e.log.Warn().Err(err).Str("market", m.ID).Msg("candle persist failed")
		}
	}

	e.speed.RecordTick(m.ID, m.YesPrice, m.Volume)

	// Bid depth per side is proxied from snapshot volume split by price;
	// the venue snapshot does not carry book levels.
	ta := e.technical.Analyze(m.ID, candles, m.Volume*m.YesPrice, m.Volume*m.NoPrice)

	items, err := e.headlines.Headlines(ctx, m.Title)
	if err != nil {
		e.log.Warn().Err(err).Str("market", m.ID).Msg("headline fetch failed")
	}
	sent := e.sentiment.AnalyzeMarket(m.Category, items)

	spd := e.speed.Score(m.ID, m.YesPrice, true)

	taScore := signal.Score{Type: signal.TypeTA, Value: ta.Score, Direction: ta.Direction, Confidence: ta.BreakoutConfidence}
	sentScore := signal.Score{Type: signal.TypeSentiment, Value: sent.Score, Direction: sent.Direction, Confidence: sent.Confidence}
	spdScore := signal.Score{Type: signal.TypeSpeed, Value: spd.Score, Direction: spd.Direction, Confidence: spd.Score}

	composite := e.agg.Compose(ctx, m.ID, m.Category, taScore, sentScore, spdScore)

	for _, s := range []signal.Score{taScore, sentScore, spdScore} {
		metrics.SignalsTotal.WithLabelValues(string(s.Type)).Inc()
		if err := e.store.SaveSignal(ctx, m.ID, s, composite.TradeEligible, now); err != nil {
			e.log.Warn().Err(err).Str("market", m.ID).Msg("signal persist failed")
		}
	}
	if err := e.store.SaveComposite(ctx, composite, now); err != nil {
		e.log.Warn().Err(err).Str("market", m.ID).Msg("composite persist failed")
	}

	e.checkExit(ctx, m)

	if composite.TradeEligible {
		price := m.YesPrice
		if composite.Recommendation == signal.BuyNo {
			price = m.NoPrice
		}
		result := e.executor.ExecuteTrade(ctx, composite, price)
		if result.Executed {
			e.emit(Event{
				Type:     EventTradeOpened,
				MarketID: m.ID,
				Text: m.Title + ": opened " + result.Trade.Direction +
					" @ " + formatPrice(result.Trade.EntryPrice),
				Ts: now,
			})
		}
	}

	e.log.Debug().
		Str("market", m.ID).
		Float64("ta", ta.Score).
		Float64("sentiment", sent.Score).
		Float64("speed", spd.Score).
		Float64("final", composite.FinalScore).
		Bool("eligible", composite.TradeEligible).
		Msg("market scanned")
}

// checkExit applies stop-loss and take-profit to the market's open trade.
func (e *Engine) checkExit(ctx context.Context, m market.Market) {
	trade, ok, err := e.store.OpenTradeForMarket(ctx, m.ID)
	if err != nil || !ok {
		return
	}

	price := m.YesPrice
	if trade.Direction == "NO" {
		price = m.NoPrice
	}
	if trade.EntryPrice <= 0 {
		return
	}
	change := (price - trade.EntryPrice) / trade.EntryPrice

	var reason string
	switch {
	case e.params.StopLossPct > 0 && change <= -e.params.StopLossPct:
		reason = "stop loss"
	case e.params.TakeProfitPct > 0 && change >= e.params.TakeProfitPct:
		reason = "take profit"
	default:
		return
	}

	result := e.executor.ClosePosition(ctx, m.ID, price, reason)
	if result.Closed {
		e.emit(Event{
			Type:     EventTradeClosed,
			MarketID: m.ID,
			Text:     m.Title + ": " + reason + ", pnl " + formatPrice(result.PnL),
			Ts:       e.now(),
		})
	}
}

// PanicCloseAll force-closes every position at the latest snapshot prices.
func (e *Engine) PanicCloseAll(ctx context.Context) {
	markets, err := e.provider.Markets(ctx)
	prices := make(map[string]float64)
	if err == nil {
		for _, m := range markets {
			prices[m.ID] = m.YesPrice
		}
	}
	for _, r := range e.executor.PanicCloseAll(ctx, prices) {
		if r.Closed {
			e.emit(Event{Type: EventTradeClosed, MarketID: r.Trade.MarketID,
				Text: r.Trade.MarketID + ": panic close, pnl " + formatPrice(r.PnL), Ts: e.now()})
		}
	}
}

func formatPrice(f float64) string {
	return fmt.Sprintf("$%.2f", f)
}
