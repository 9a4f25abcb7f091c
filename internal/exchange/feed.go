package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Joe-Swanson828/prediction-bot/internal/market"
	"github.com/Joe-Swanson828/prediction-bot/internal/metrics"
)

const defaultKalshiWSURL = "wss://api.elections.kalshi.com/trade-api/ws/v2"

// Feed streams price ticks between scan cycles so the speed engine sees
// sub-interval movement. The stub mode polls the provider; kalshi subscribes
// to the ticker websocket channel.
type Feed struct {
	provider     string
	wsURL        string
	pollInterval time.Duration
	source       Provider
	log          zerolog.Logger
}

// NewFeed constructs a tick feed for the configured provider. source backs
// the stub poll mode and may be nil for websocket providers.
func NewFeed(cfg Config, source Provider, log zerolog.Logger) *Feed {
	interval := time.Duration(cfg.PollIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = 2 * time.Second
	}
	wsURL := cfg.WSURL
	if wsURL == "" {
		wsURL = defaultKalshiWSURL
	}
	return &Feed{
		provider:     strings.ToLower(cfg.Provider),
		wsURL:        wsURL,
		pollInterval: interval,
		source:       source,
		log:          log.With().Str("component", "feed").Logger(),
	}
}

// Run pushes ticks onto out until the context is canceled.
func (f *Feed) Run(ctx context.Context, out chan<- market.Tick) error {
	if f.provider == ProviderKalshi {
		return f.runKalshi(ctx, out)
	}
	return f.runPoll(ctx, out)
}

func (f *Feed) runPoll(ctx context.Context, out chan<- market.Tick) error {
	ticker := time.NewTicker(f.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ts := <-ticker.C:
			markets, err := f.source.Markets(ctx)
			if err != nil {
				f.log.Warn().Err(err).Msg("poll feed snapshot failed")
				continue
			}
			for _, m := range markets {
				tick := market.Tick{MarketID: m.ID, Price: m.YesPrice, Volume: m.Volume, Ts: ts}
				select {
				case out <- tick:
					metrics.TicksTotal.WithLabelValues(m.ID).Inc()
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}

func (f *Feed) runKalshi(ctx context.Context, out chan<- market.Tick) error {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := f.consumeKalshiStream(ctx, out); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.log.Warn().Err(err).Msg("kalshi feed disconnected, retrying")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff = time.Duration(math.Min(float64(maxBackoff), float64(backoff)*1.8))
			continue
		}
		return nil
	}
}

type kalshiWSCommand struct {
	ID     int      `json:"id"`
	Cmd    string   `json:"cmd"`
	Params wsParams `json:"params"`
}

type wsParams struct {
	Channels []string `json:"channels"`
}

type kalshiWSMessage struct {
	Type string `json:"type"`
	Msg  struct {
		MarketTicker string  `json:"market_ticker"`
		Price        float64 `json:"price"`
		Volume       float64 `json:"volume"`
		Ts           int64   `json:"ts"`
	} `json:"msg"`
}

func (f *Feed) consumeKalshiStream(ctx context.Context, out chan<- market.Tick) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	f.log.Info().Str("url", f.wsURL).Msg("connected market data feed")

	sub := kalshiWSCommand{ID: 1, Cmd: "subscribe", Params: wsParams{Channels: []string{"ticker"}}}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	conn.SetReadLimit(1 << 20)
	conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		return nil
	})

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					f.log.Warn().Err(err).Msg("feed ping failed")
					return
				}
			case <-pingCtx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var msg kalshiWSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			f.log.Warn().Err(err).Msg("failed to decode feed message")
			continue
		}
		if msg.Type != "ticker" || msg.Msg.MarketTicker == "" {
			continue
		}

		tick := market.Tick{
			MarketID: msg.Msg.MarketTicker,
			Price:    centsToPrice(msg.Msg.Price),
			Volume:   msg.Msg.Volume,
			Ts:       time.Unix(msg.Msg.Ts, 0),
		}
		select {
		case out <- tick:
			metrics.TicksTotal.WithLabelValues(tick.MarketID).Inc()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
