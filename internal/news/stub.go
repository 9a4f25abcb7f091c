package news

import (
	"context"
	"strings"
)

// Stub serves canned headlines so the sentiment engine has input during
// offline runs and tests. Matching is keyword-based on the query.
type Stub struct {
	byKeyword map[string][]string
}

// NewStub builds the canned provider.
func NewStub() *Stub {
	return &Stub{byKeyword: map[string][]string{
		"chiefs": {
			"Chiefs dominant in practice ahead of Sunday matchup",
			"Star quarterback cleared to play, team confident of victory",
			"Analysts favor Chiefs after strong comeback win last week",
		},
		"btc": {
			"Bitcoin rally stalls as traders take profit near resistance",
			"Institutional inflows surge, bullish momentum builds for BTC",
			"BTC breakout above key level triggers wave of buying",
		},
		"rain": {
			"Storm system approaching, heavy rain expected tomorrow",
			"Forecast models agree on significant rainfall for the city",
			"Flood watch issued as forecast confidence grows",
		},
	}}
}

func (s *Stub) Headlines(_ context.Context, query string) ([]string, error) {
	q := strings.ToLower(query)
	for keyword, headlines := range s.byKeyword {
		if strings.Contains(q, keyword) {
			out := make([]string, len(headlines))
			copy(out, headlines)
			return out, nil
		}
	}
	return nil, nil
}
