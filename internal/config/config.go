// Package config exposes strongly typed application configuration structs
// loaded from YAML, with secrets and runtime overrides pulled from the
// environment (.env).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// App captures process-wide runtime settings such as name, environment,
// metrics address, and logging level.
type App struct {
	Name        string `yaml:"name"`
	Env         string `yaml:"env"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
}

// Trading groups the knobs that shape when and how the bot trades.
type Trading struct {
	Mode             string  `yaml:"mode"` // 'paper' is the only supported mode
	StartingBalance  float64 `yaml:"starting_balance"`
	ScanIntervalSecs int     `yaml:"scan_interval_secs"`
	TradeThreshold   float64 `yaml:"trade_threshold"`
	StopLossPct      float64 `yaml:"stop_loss_pct"`
	TakeProfitPct    float64 `yaml:"take_profit_pct"`
}

// Risk encodes guard-rails for how much exposure the executor may take on.
type Risk struct {
	MaxPositions        int     `yaml:"max_positions"`
	MaxExposurePerTrade float64 `yaml:"max_exposure_per_trade"`
	MaxTotalExposure    float64 `yaml:"max_total_exposure"`
}

// Agent tunes the self-adjustment cycle for signal weights.
type Agent struct {
	EvaluationPeriod int     `yaml:"evaluation_period"`
	AdjustmentStep   float64 `yaml:"adjustment_step"`
	MinWeight        float64 `yaml:"min_weight"`
	MaxWeight        float64 `yaml:"max_weight"`
}

// CategoryWeights holds the default signal weights for one market category.
// The three components must sum to 1.0.
type CategoryWeights struct {
	TA        float64 `yaml:"ta"`
	Sentiment float64 `yaml:"sentiment"`
	Speed     float64 `yaml:"speed"`
}

// Validate checks the sum-to-one invariant within tolerance.
func (w CategoryWeights) Validate() error {
	total := w.TA + w.Sentiment + w.Speed
	if total < 0.99 || total > 1.01 {
		return fmt.Errorf("weights must sum to 1.0, got %.3f (ta=%.2f sentiment=%.2f speed=%.2f)",
			total, w.TA, w.Sentiment, w.Speed)
	}
	return nil
}

// Exchange describes the prediction-market data provider connectivity.
type Exchange struct {
	Provider       string   `yaml:"provider"` // 'stub' | 'kalshi'
	BaseURL        string   `yaml:"base_url"`
	WSURL          string   `yaml:"ws_url"`
	APIKeyID       string   `yaml:"api_key_id"`
	Tickers        []string `yaml:"tickers"`
	PollIntervalMs int      `yaml:"poll_interval_ms"`
	CandleLimit    int      `yaml:"candle_limit"`
}

// News configures the headline provider feeding the sentiment engine.
type News struct {
	Provider   string `yaml:"provider"` // 'stub' | 'newsapi'
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	MaxResults int    `yaml:"max_results"`
	FromHours  int    `yaml:"from_hours"`
	CacheTTLS  int    `yaml:"cache_ttl_secs"`
}

// Store points at the durable backends. Empty values select the in-memory
// store and disable the headline cache.
type Store struct {
	PostgresDSN string `yaml:"postgres_dsn"`
	RedisAddr   string `yaml:"redis_addr"`
}

// Telegram configures push notifications. Silent when unset.
type Telegram struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App      App                        `yaml:"app"`
	Trading  Trading                    `yaml:"trading"`
	Risk     Risk                       `yaml:"risk"`
	Agent    Agent                      `yaml:"agent"`
	Weights  map[string]CategoryWeights `yaml:"weights"`
	Exchange Exchange                   `yaml:"exchange"`
	News     News                       `yaml:"news"`
	Store    Store                      `yaml:"store"`
	Telegram Telegram                   `yaml:"telegram"`
}

// Default returns the configuration the bot runs with when no YAML file or
// environment overrides are present.
func Default() *Config {
	return &Config{
		App: App{Name: "prediction-bot", Env: "dev", MetricsAddr: ":9109", LogLevel: "info"},
		Trading: Trading{
			Mode:             "paper",
			StartingBalance:  100.0,
			ScanIntervalSecs: 30,
			TradeThreshold:   65,
			StopLossPct:      0.15,
			TakeProfitPct:    0.30,
		},
		Risk: Risk{
			MaxPositions:        5,
			MaxExposurePerTrade: 0.20,
			MaxTotalExposure:    0.80,
		},
		Agent: Agent{
			EvaluationPeriod: 20,
			AdjustmentStep:   0.05,
			MinWeight:        0.05,
			MaxWeight:        0.70,
		},
		Weights: map[string]CategoryWeights{
			"sports":  {TA: 0.20, Sentiment: 0.35, Speed: 0.45},
			"crypto":  {TA: 0.40, Sentiment: 0.30, Speed: 0.30},
			"weather": {TA: 0.15, Sentiment: 0.05, Speed: 0.80},
		},
		Exchange: Exchange{Provider: "stub", PollIntervalMs: 2000, CandleLimit: 100},
		News:     News{Provider: "stub", MaxResults: 10, FromHours: 12, CacheTTLS: 300},
	}
}

// Load reads a YAML file from disk and hydrates a Config on top of defaults,
// then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds a config from defaults plus environment overrides only,
// used when no YAML file is present.
func FromEnv() (*Config, error) {
	cfg := Default()
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	mode := strings.ToLower(strings.TrimSpace(c.Trading.Mode))
	if mode != "paper" {
		return fmt.Errorf("unsupported trading mode %q (only 'paper' is implemented)", c.Trading.Mode)
	}
	c.Trading.Mode = mode
	for cat, w := range c.Weights {
		if err := w.Validate(); err != nil {
			return fmt.Errorf("weights for %s: %w", cat, err)
		}
	}
	return nil
}

// applyEnv layers environment variables over the loaded file. Secrets only
// ever come from the environment.
func (c *Config) applyEnv() {
	c.Trading.StartingBalance = envFloat("PAPER_STARTING_BALANCE", c.Trading.StartingBalance)
	c.Trading.TradeThreshold = envFloat("TRADE_THRESHOLD", c.Trading.TradeThreshold)
	c.Trading.StopLossPct = envFloat("STOP_LOSS_PCT", c.Trading.StopLossPct)
	c.Trading.TakeProfitPct = envFloat("TAKE_PROFIT_PCT", c.Trading.TakeProfitPct)
	c.Risk.MaxPositions = envInt("MAX_POSITIONS", c.Risk.MaxPositions)
	c.Risk.MaxExposurePerTrade = envFloat("MAX_EXPOSURE_PER_TRADE", c.Risk.MaxExposurePerTrade)
	c.Risk.MaxTotalExposure = envFloat("MAX_TOTAL_EXPOSURE", c.Risk.MaxTotalExposure)

	c.Exchange.APIKeyID = envStr("KALSHI_API_KEY_ID", c.Exchange.APIKeyID)
	c.News.APIKey = envStr("NEWS_API_KEY", c.News.APIKey)
	c.Store.PostgresDSN = envStr("POSTGRES_DSN", c.Store.PostgresDSN)
	c.Store.RedisAddr = envStr("REDIS_ADDR", c.Store.RedisAddr)
	c.Telegram.BotToken = envStr("TELEGRAM_BOT_TOKEN", c.Telegram.BotToken)
	c.Telegram.ChatID = envStr("TELEGRAM_CHAT_ID", c.Telegram.ChatID)
	c.App.LogLevel = envStr("LOG_LEVEL", c.App.LogLevel)
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
