// Package news fetches recent headlines per market for the sentiment engine,
// with an optional Redis cache in front of the upstream API.
package news

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	// ProviderStub serves canned headlines keyed by category.
	ProviderStub = "stub"
	// ProviderNewsAPI queries newsapi.org /v2/everything.
	ProviderNewsAPI = "newsapi"

	defaultNewsAPIBaseURL = "https://newsapi.org/v2"
)

// Provider returns recent headline texts for a search query, newest last.
type Provider interface {
	Headlines(ctx context.Context, query string) ([]string, error)
}

// Config carries provider settings.
type Config struct {
	Provider   string
	BaseURL    string
	APIKey     string
	MaxResults int
	FromHours  int
	CacheTTL   time.Duration
}

// New constructs the configured provider, wrapped in a cache when a Redis
// client is supplied.
func New(cfg Config, rdb *redis.Client, log zerolog.Logger) (Provider, error) {
	var inner Provider
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderStub:
		inner = NewStub()
	case ProviderNewsAPI:
		inner = NewNewsAPI(cfg, log)
	default:
		return nil, fmt.Errorf("unknown news provider %q", cfg.Provider)
	}
	if rdb == nil {
		return inner, nil
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cached{inner: inner, rdb: rdb, ttl: ttl, log: log.With().Str("component", "newscache").Logger()}, nil
}

// Cached caches headline batches in Redis. Cache failures fall through to
// the upstream provider.
type Cached struct {
	inner Provider
	rdb   *redis.Client
	ttl   time.Duration
	log   zerolog.Logger
}

func (c *Cached) Headlines(ctx context.Context, query string) ([]string, error) {
	key := "headlines:" + strings.ToLower(query)

	raw, err := c.rdb.Get(ctx, key).Result()
	if err == nil {
		var cached []string
		if err := json.Unmarshal([]byte(raw), &cached); err == nil {
			return cached, nil
		}
	} else if err != redis.Nil {
		c.log.Warn().Err(err).Str("key", key).Msg("headline cache read failed")
	}

	headlines, err := c.inner.Headlines(ctx, query)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(headlines); err == nil {
		if err := c.rdb.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
			c.log.Warn().Err(err).Str("key", key).Msg("headline cache write failed")
		}
	}
	return headlines, nil
}

// NewsAPI queries newsapi.org for recent articles matching the market query.
type NewsAPI struct {
	client     *resty.Client
	log        zerolog.Logger
	maxResults int
	fromHours  int
}

// NewNewsAPI builds the REST client.
func NewNewsAPI(cfg Config, log zerolog.Logger) *NewsAPI {
	base := cfg.BaseURL
	if base == "" {
		base = defaultNewsAPIBaseURL
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 10
	}
	fromHours := cfg.FromHours
	if fromHours <= 0 {
		fromHours = 12
	}
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(base, "/")).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetHeader("X-Api-Key", cfg.APIKey)
	return &NewsAPI{
		client:     client,
		log:        log.With().Str("component", "newsapi").Logger(),
		maxResults: maxResults,
		fromHours:  fromHours,
	}
}

type newsAPIResponse struct {
	Status   string `json:"status"`
	Articles []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	} `json:"articles"`
}

func (n *NewsAPI) Headlines(ctx context.Context, query string) ([]string, error) {
	from := time.Now().Add(-time.Duration(n.fromHours) * time.Hour).UTC().Format(time.RFC3339)

	var body newsAPIResponse
	resp, err := n.client.R().SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":        query,
			"from":     from,
			"sortBy":   "publishedAt",
			"language": "en",
			"pageSize": fmt.Sprintf("%d", n.maxResults),
		}).
		SetResult(&body).
		Get("/everything")
	if err != nil {
		return nil, fmt.Errorf("fetch headlines: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch headlines: status %d", resp.StatusCode())
	}
	if body.Status != "ok" {
		return nil, fmt.Errorf("fetch headlines: api status %q", body.Status)
	}

	out := make([]string, 0, len(body.Articles))
	for _, a := range body.Articles {
		text := a.Title
		if a.Description != "" {
			text += ". " + a.Description
		}
		out = append(out, text)
	}
	// Oldest first so recency weighting favors the latest article.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
