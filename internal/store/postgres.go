package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Joe-Swanson828/prediction-bot/internal/market"
	"github.com/Joe-Swanson828/prediction-bot/internal/signal"
	"github.com/Joe-Swanson828/prediction-bot/internal/weights"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS markets (
		id            TEXT PRIMARY KEY,
		exchange      TEXT NOT NULL,
		ticker        TEXT NOT NULL,
		category      TEXT NOT NULL,
		title         TEXT NOT NULL,
		yes_price     DOUBLE PRECISION DEFAULT 0.5,
		no_price      DOUBLE PRECISION DEFAULT 0.5,
		volume        DOUBLE PRECISION DEFAULT 0,
		status        TEXT DEFAULT 'active',
		last_updated  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS candlesticks (
		id         BIGSERIAL PRIMARY KEY,
		market_id  TEXT NOT NULL,
		ts         TIMESTAMPTZ NOT NULL,
		open       DOUBLE PRECISION,
		high       DOUBLE PRECISION,
		low        DOUBLE PRECISION,
		close      DOUBLE PRECISION,
		volume     DOUBLE PRECISION DEFAULT 0,
		UNIQUE (market_id, ts)
	)`,
	`CREATE TABLE IF NOT EXISTS signals (
		id          BIGSERIAL PRIMARY KEY,
		market_id   TEXT NOT NULL,
		signal_type TEXT NOT NULL,
		value       DOUBLE PRECISION NOT NULL,
		direction   TEXT,
		confidence  DOUBLE PRECISION,
		acted_on    BOOLEAN DEFAULT FALSE,
		ts          TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS composite_scores (
		id               BIGSERIAL PRIMARY KEY,
		market_id        TEXT NOT NULL,
		ta_score         DOUBLE PRECISION,
		sentiment_score  DOUBLE PRECISION,
		speed_score      DOUBLE PRECISION,
		ta_weight        DOUBLE PRECISION NOT NULL,
		sentiment_weight DOUBLE PRECISION NOT NULL,
		speed_weight     DOUBLE PRECISION NOT NULL,
		final_score      DOUBLE PRECISION NOT NULL,
		recommendation   TEXT,
		ts               TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS trades (
		id              TEXT PRIMARY KEY,
		market_id       TEXT NOT NULL,
		category        TEXT NOT NULL,
		direction       TEXT NOT NULL,
		quantity        DOUBLE PRECISION NOT NULL,
		entry_price     DOUBLE PRECISION NOT NULL,
		exit_price      DOUBLE PRECISION,
		entry_time      TIMESTAMPTZ NOT NULL,
		exit_time       TIMESTAMPTZ,
		pnl             DOUBLE PRECISION,
		status          TEXT NOT NULL DEFAULT 'open',
		composite_score DOUBLE PRECISION,
		ta_score        DOUBLE PRECISION,
		sentiment_score DOUBLE PRECISION,
		speed_score     DOUBLE PRECISION,
		slippage        DOUBLE PRECISION DEFAULT 0,
		mode            TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS positions (
		trade_id       TEXT PRIMARY KEY,
		market_id      TEXT NOT NULL,
		direction      TEXT NOT NULL,
		quantity       DOUBLE PRECISION NOT NULL,
		entry_price    DOUBLE PRECISION NOT NULL,
		current_price  DOUBLE PRECISION,
		unrealized_pnl DOUBLE PRECISION DEFAULT 0,
		last_updated   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS balance_history (
		id      BIGSERIAL PRIMARY KEY,
		balance DOUBLE PRECISION NOT NULL,
		mode    TEXT NOT NULL,
		ts      TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS strategy_weights (
		id               BIGSERIAL PRIMARY KEY,
		category         TEXT NOT NULL,
		ta_weight        DOUBLE PRECISION NOT NULL,
		sentiment_weight DOUBLE PRECISION NOT NULL,
		speed_weight     DOUBLE PRECISION NOT NULL,
		updated_at       TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS agent_log (
		id         BIGSERIAL PRIMARY KEY,
		category   TEXT,
		old_ta     DOUBLE PRECISION, old_sentiment DOUBLE PRECISION, old_speed DOUBLE PRECISION,
		new_ta     DOUBLE PRECISION, new_sentiment DOUBLE PRECISION, new_speed DOUBLE PRECISION,
		reason     TEXT,
		ts         TIMESTAMPTZ NOT NULL
	)`,
}

// Postgres implements Store on a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects, pings, and applies the idempotent schema.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	poolConfig.MaxConns = 10
	poolConfig.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	for _, stmt := range migrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}
	return &Postgres{pool: pool}, nil
}

func (s *Postgres) Close() { s.pool.Close() }

func (s *Postgres) UpsertMarket(ctx context.Context, m market.Market) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO markets (id, exchange, ticker, category, title, yes_price, no_price, volume, status, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			yes_price = EXCLUDED.yes_price,
			no_price = EXCLUDED.no_price,
			volume = EXCLUDED.volume,
			status = EXCLUDED.status,
			last_updated = EXCLUDED.last_updated`,
		m.ID, m.Exchange, m.Ticker, string(m.Category), m.Title, m.YesPrice, m.NoPrice, m.Volume, m.Status, m.LastUpdated)
	return err
}

func (s *Postgres) Markets(ctx context.Context) ([]market.Market, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, exchange, ticker, category, title, yes_price, no_price, volume, status, last_updated
		FROM markets ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []market.Market
	for rows.Next() {
		var m market.Market
		var cat string
		if err := rows.Scan(&m.ID, &m.Exchange, &m.Ticker, &cat, &m.Title, &m.YesPrice, &m.NoPrice, &m.Volume, &m.Status, &m.LastUpdated); err != nil {
			return nil, err
		}
		m.Category = market.Category(cat)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Postgres) SaveCandles(ctx context.Context, marketID string, candles []market.Candle) error {
	for _, c := range candles {
		if _, err := s.pool.Exec(ctx, `
			INSERT INTO candlesticks (market_id, ts, open, high, low, close, volume)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (market_id, ts) DO NOTHING`,
			marketID, c.Ts, c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			return err
		}
	}
	return nil
}

func (s *Postgres) Candles(ctx context.Context, marketID string, limit int) ([]market.Candle, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT ts, open, high, low, close, volume FROM (
			SELECT ts, open, high, low, close, volume
			FROM candlesticks WHERE market_id = $1
			ORDER BY ts DESC LIMIT $2
		) recent ORDER BY ts ASC`, marketID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []market.Candle
	for rows.Next() {
		var c market.Candle
		if err := rows.Scan(&c.Ts, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Postgres) SaveSignal(ctx context.Context, marketID string, sc signal.Score, actedOn bool, ts time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO signals (market_id, signal_type, value, direction, confidence, acted_on, ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		marketID, string(sc.Type), sc.Value, string(sc.Direction), sc.Confidence, actedOn, ts)
	return err
}

func (s *Postgres) SaveComposite(ctx context.Context, c signal.Composite, ts time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO composite_scores
			(market_id, ta_score, sentiment_score, speed_score,
			 ta_weight, sentiment_weight, speed_weight, final_score, recommendation, ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		c.MarketID, c.TAScore, c.SentimentScore, c.SpeedScore,
		c.Weights.TA, c.Weights.Sentiment, c.Weights.Speed, c.FinalScore, string(c.Recommendation), ts)
	return err
}

func (s *Postgres) SaveTrade(ctx context.Context, t Trade) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO trades
			(id, market_id, category, direction, quantity, entry_price, entry_time,
			 status, composite_score, ta_score, sentiment_score, speed_score, slippage, mode)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		t.ID, t.MarketID, string(t.Category), t.Direction, t.Quantity, t.EntryPrice, t.EntryTime,
		t.Status, t.CompositeScore, t.TAScore, t.SentimentScore, t.SpeedScore, t.Slippage, t.Mode)
	return err
}

func (s *Postgres) CloseTrade(ctx context.Context, tradeID string, exitPrice, pnl, slippage float64, exitTime time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE trades SET status = 'closed', exit_price = $2, exit_time = $3, pnl = $4, slippage = slippage + $5
		WHERE id = $1`, tradeID, exitPrice, exitTime, pnl, slippage)
	return err
}

const tradeColumns = `id, market_id, category, direction, quantity, entry_price,
	COALESCE(exit_price, 0), entry_time, COALESCE(exit_time, 'epoch'::timestamptz), COALESCE(pnl, 0),
	status, COALESCE(composite_score, 0), COALESCE(ta_score, 0), COALESCE(sentiment_score, 0),
	COALESCE(speed_score, 0), COALESCE(slippage, 0), mode`

func scanTrade(row pgx.Row) (Trade, error) {
	var t Trade
	var cat string
	err := row.Scan(&t.ID, &t.MarketID, &cat, &t.Direction, &t.Quantity, &t.EntryPrice,
		&t.ExitPrice, &t.EntryTime, &t.ExitTime, &t.PnL,
		&t.Status, &t.CompositeScore, &t.TAScore, &t.SentimentScore,
		&t.SpeedScore, &t.Slippage, &t.Mode)
	t.Category = market.Category(cat)
	return t, err
}

func (s *Postgres) queryTrades(ctx context.Context, query string, args ...any) ([]Trade, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Postgres) OpenTrades(ctx context.Context) ([]Trade, error) {
	return s.queryTrades(ctx,
		`SELECT `+tradeColumns+` FROM trades WHERE status = 'open' ORDER BY entry_time`)
}

func (s *Postgres) OpenTradeForMarket(ctx context.Context, marketID string) (Trade, bool, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+tradeColumns+` FROM trades
		 WHERE market_id = $1 AND status = 'open'
		 ORDER BY entry_time DESC LIMIT 1`, marketID)
	t, err := scanTrade(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Trade{}, false, nil
	}
	if err != nil {
		return Trade{}, false, err
	}
	return t, true, nil
}

func (s *Postgres) ClosedTrades(ctx context.Context, limit int) ([]Trade, error) {
	return s.queryTrades(ctx,
		`SELECT `+tradeColumns+` FROM trades WHERE status = 'closed' ORDER BY exit_time DESC LIMIT $1`, limit)
}

func (s *Postgres) RecentClosedTrades(ctx context.Context, category market.Category, limit int) ([]Trade, error) {
	return s.queryTrades(ctx,
		`SELECT `+tradeColumns+` FROM trades
		 WHERE status = 'closed' AND category = $1
		 ORDER BY exit_time DESC LIMIT $2`, string(category), limit)
}

func (s *Postgres) ClosedTradeCount(ctx context.Context, category market.Category) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM trades WHERE status = 'closed' AND category = $1`,
		string(category)).Scan(&count)
	return count, err
}

func (s *Postgres) SavePosition(ctx context.Context, p Position) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO positions (trade_id, market_id, direction, quantity, entry_price, current_price, unrealized_pnl, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (trade_id) DO UPDATE SET
			current_price = EXCLUDED.current_price,
			unrealized_pnl = EXCLUDED.unrealized_pnl,
			last_updated = EXCLUDED.last_updated`,
		p.TradeID, p.MarketID, p.Direction, p.Quantity, p.EntryPrice, p.CurrentPrice, p.UnrealizedPnL, p.LastUpdated)
	return err
}

func (s *Postgres) DeletePosition(ctx context.Context, tradeID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM positions WHERE trade_id = $1`, tradeID)
	return err
}

func (s *Postgres) OpenPositions(ctx context.Context) ([]Position, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT trade_id, market_id, direction, quantity, entry_price,
		       COALESCE(current_price, entry_price), COALESCE(unrealized_pnl, 0), last_updated
		FROM positions ORDER BY market_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Position
	for rows.Next() {
		var p Position
		if err := rows.Scan(&p.TradeID, &p.MarketID, &p.Direction, &p.Quantity, &p.EntryPrice,
			&p.CurrentPrice, &p.UnrealizedPnL, &p.LastUpdated); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Postgres) SaveBalance(ctx context.Context, snap BalanceSnapshot) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO balance_history (balance, mode, ts) VALUES ($1, $2, $3)`,
		snap.Balance, snap.Mode, snap.Ts)
	return err
}

func (s *Postgres) BalanceHistory(ctx context.Context, mode string, limit int) ([]BalanceSnapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT balance, mode, ts FROM (
			SELECT balance, mode, ts FROM balance_history
			WHERE mode = $1 ORDER BY ts DESC LIMIT $2
		) recent ORDER BY ts ASC`, mode, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BalanceSnapshot
	for rows.Next() {
		var b BalanceSnapshot
		if err := rows.Scan(&b.Balance, &b.Mode, &b.Ts); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Postgres) CurrentWeights(ctx context.Context, category market.Category) (weights.Set, bool, error) {
	var w weights.Set
	err := s.pool.QueryRow(ctx, `
		SELECT ta_weight, sentiment_weight, speed_weight
		FROM strategy_weights WHERE category = $1
		ORDER BY updated_at DESC, id DESC LIMIT 1`,
		string(category)).Scan(&w.TA, &w.Sentiment, &w.Speed)
	if errors.Is(err, pgx.ErrNoRows) {
		return weights.Set{}, false, nil
	}
	if err != nil {
		return weights.Set{}, false, err
	}
	return w, true, nil
}

func (s *Postgres) SaveWeights(ctx context.Context, category market.Category, w weights.Set, ts time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO strategy_weights (category, ta_weight, sentiment_weight, speed_weight, updated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		string(category), w.TA, w.Sentiment, w.Speed, ts)
	return err
}

func (s *Postgres) SaveAgentLog(ctx context.Context, e AgentLogEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO agent_log (category, old_ta, old_sentiment, old_speed, new_ta, new_sentiment, new_speed, reason, ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		string(e.Category), e.OldWeights.TA, e.OldWeights.Sentiment, e.OldWeights.Speed,
		e.NewWeights.TA, e.NewWeights.Sentiment, e.NewWeights.Speed, e.Reason, e.Ts)
	return err
}

func (s *Postgres) AgentLog(ctx context.Context, limit int) ([]AgentLogEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT category, old_ta, old_sentiment, old_speed, new_ta, new_sentiment, new_speed, reason, ts
		FROM agent_log ORDER BY ts DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AgentLogEntry
	for rows.Next() {
		var e AgentLogEntry
		var cat string
		if err := rows.Scan(&cat, &e.OldWeights.TA, &e.OldWeights.Sentiment, &e.OldWeights.Speed,
			&e.NewWeights.TA, &e.NewWeights.Sentiment, &e.NewWeights.Speed, &e.Reason, &e.Ts); err != nil {
			return nil, err
		}
		e.Category = market.Category(cat)
		out = append(out, e)
	}
	return out, rows.Err()
}
