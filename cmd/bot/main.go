package main

import (
	"context"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/Joe-Swanson828/prediction-bot/internal/agent"
	"github.com/Joe-Swanson828/prediction-bot/internal/analysis/speed"
	"github.com/Joe-Swanson828/prediction-bot/internal/config"
	"github.com/Joe-Swanson828/prediction-bot/internal/engine"
	"github.com/Joe-Swanson828/prediction-bot/internal/exchange"
	"github.com/Joe-Swanson828/prediction-bot/internal/market"
	"github.com/Joe-Swanson828/prediction-bot/internal/metrics"
	"github.com/Joe-Swanson828/prediction-bot/internal/news"
	"github.com/Joe-Swanson828/prediction-bot/internal/notify"
	"github.com/Joe-Swanson828/prediction-bot/internal/paper"
	"github.com/Joe-Swanson828/prediction-bot/internal/risk"
	"github.com/Joe-Swanson828/prediction-bot/internal/signal"
	"github.com/Joe-Swanson828/prediction-bot/internal/store"
	"github.com/Joe-Swanson828/prediction-bot/internal/util"
	"github.com/Joe-Swanson828/prediction-bot/internal/weights"
)

func main() {
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		l := util.NewLogger("info")
		l.Fatal().Err(err).Msg("load config")
	}
	log := util.NewLogger(cfg.App.LogLevel)

	_ = metrics.Serve(cfg.App.MetricsAddr)
	log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open store")
	}
	defer st.Close()

	var rdb *redis.Client
	if cfg.Store.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Store.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Msg("redis unreachable, headline cache disabled")
			rdb = nil
		}
	}

	provider, err := exchange.New(exchange.Config{
		Provider:       cfg.Exchange.Provider,
		BaseURL:        cfg.Exchange.BaseURL,
		WSURL:          cfg.Exchange.WSURL,
		APIKeyID:       cfg.Exchange.APIKeyID,
		Tickers:        cfg.Exchange.Tickers,
		PollIntervalMs: cfg.Exchange.PollIntervalMs,
		CandleLimit:    cfg.Exchange.CandleLimit,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("build exchange provider")
	}

	headlines, err := news.New(news.Config{
		Provider:   cfg.News.Provider,
		BaseURL:    cfg.News.BaseURL,
		APIKey:     cfg.News.APIKey,
		MaxResults: cfg.News.MaxResults,
		FromHours:  cfg.News.FromHours,
		CacheTTL:   time.Duration(cfg.News.CacheTTLS) * time.Second,
	}, rdb, log)
	if err != nil {
		log.Fatal().Err(err).Msg("build news provider")
	}

	defaults := make(map[market.Category]weights.Set, len(cfg.Weights))
	for cat, w := range cfg.Weights {
		defaults[market.Category(cat)] = weights.Set{TA: w.TA, Sentiment: w.Sentiment, Speed: w.Speed}
	}
	repo := weights.NewRepository(defaults, st)

	limits := risk.Limits{
		MaxPositions:        cfg.Risk.MaxPositions,
		MaxExposurePerTrade: cfg.Risk.MaxExposurePerTrade,
		MaxTotalExposure:    cfg.Risk.MaxTotalExposure,
		TradeThreshold:      cfg.Trading.TradeThreshold,
	}
	riskMgr := risk.NewManager(cfg.Trading.StartingBalance, limits)
	executor := paper.NewExecutor(log, st, riskMgr, cfg.Trading.StartingBalance)

	agentParams := agent.DefaultParams()
	agentParams.EvaluationPeriod = cfg.Agent.EvaluationPeriod
	agentParams.AdjustmentStep = cfg.Agent.AdjustmentStep
	agentParams.MinWeight = cfg.Agent.MinWeight
	agentParams.MaxWeight = cfg.Agent.MaxWeight
	ag := agent.New(log, st, repo, agentParams)

	agg := signal.NewAggregator(repo, cfg.Trading.TradeThreshold)
	mon := speed.NewMonitor()

	eng := engine.New(log, engine.Params{
		ScanInterval:  time.Duration(cfg.Trading.ScanIntervalSecs) * time.Second,
		CandleLimit:   cfg.Exchange.CandleLimit,
		StopLossPct:   cfg.Trading.StopLossPct,
		TakeProfitPct: cfg.Trading.TakeProfitPct,
	}, provider, headlines, st, mon, agg, executor, ag)

	feed := exchange.NewFeed(exchange.Config{
		Provider:       cfg.Exchange.Provider,
		WSURL:          cfg.Exchange.WSURL,
		PollIntervalMs: cfg.Exchange.PollIntervalMs,
	}, provider, log)
	ticks := make(chan market.Tick, 1024)
	go func() {
		if err := feed.Run(ctx, ticks); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("feed stopped")
			cancel()
		}
	}()
	go eng.ConsumeTicks(ctx, ticks)

	tg := notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID, log)
	go func() {
		for ev := range eng.Events() {
			log.Info().Str("event", string(ev.Type)).Str("market", ev.MarketID).Msg(ev.Text)
			if err := tg.Notify(ctx, ev.Text); err != nil {
				log.Warn().Err(err).Msg("telegram notify failed")
			}
		}
	}()

	log.Info().
		Str("provider", cfg.Exchange.Provider).
		Float64("balance", cfg.Trading.StartingBalance).
		Msg("trading engine started")

	if err := eng.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("engine stopped")
	}
	log.Info().Msg("shutting down")
}

func loadConfig() (*config.Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if _, err := os.Stat(path); err != nil {
		return config.FromEnv()
	}
	return config.Load(path)
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.Store.PostgresDSN == "" {
		return store.NewMemory(), nil
	}
	return store.NewPostgres(ctx, cfg.Store.PostgresDSN)
}
