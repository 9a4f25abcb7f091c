// Package weights manages the per-category signal weight sets consumed by
// the aggregator and retuned by the agent. Weight history is append-only:
// a Set is superseded by a new snapshot, never mutated in place.
package weights

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Joe-Swanson828/prediction-bot/internal/market"
)

// Set holds the blend weights for the three signal engines. Components sum
// to 1.0 within ±0.01 and each stays inside the configured bounds.
type Set struct {
	TA        float64
	Sentiment float64
	Speed     float64
}

// Sum returns the total of the three components.
func (s Set) Sum() float64 { return s.TA + s.Sentiment + s.Speed }

// Valid reports whether the sum-to-one invariant holds within tolerance.
func (s Set) Valid() bool {
	sum := s.Sum()
	return sum > 0.99 && sum < 1.01
}

func (s Set) String() string {
	return fmt.Sprintf("ta=%.2f sentiment=%.2f speed=%.2f", s.TA, s.Sentiment, s.Speed)
}

// EvenSplit is the fallback for unknown categories.
func EvenSplit() Set { return Set{TA: 0.33, Sentiment: 0.33, Speed: 0.34} }

// Persistence is the slice of the durable store the repository needs:
// latest-snapshot read and append-only write.
type Persistence interface {
	CurrentWeights(ctx context.Context, category market.Category) (Set, bool, error)
	SaveWeights(ctx context.Context, category market.Category, s Set, ts time.Time) error
}

// Repository serves the current weight set per category and supersedes it
// with new snapshots. Reads fall back to configured defaults when nothing
// has been persisted, and to an even split for unknown categories.
type Repository struct {
	mu       sync.RWMutex
	defaults map[market.Category]Set
	latest   map[market.Category]Set
	persist  Persistence // may be nil
}

// NewRepository seeds a repository with category defaults. persist may be
// nil, in which case snapshots live only in memory.
func NewRepository(defaults map[market.Category]Set, persist Persistence) *Repository {
	d := make(map[market.Category]Set, len(defaults))
	for cat, s := range defaults {
		if s.Valid() {
			d[cat] = s
		}
	}
	return &Repository{
		defaults: d,
		latest:   make(map[market.Category]Set),
		persist:  persist,
	}
}

// Current returns the most recently superseded set for a category, loading
// from persistence on first access. Malformed or missing persisted weights
// degrade to defaults rather than failing.
func (r *Repository) Current(ctx context.Context, category market.Category) Set {
	r.mu.RLock()
	if s, ok := r.latest[category]; ok {
		r.mu.RUnlock()
		return s
	}
	r.mu.RUnlock()

	if r.persist != nil {
		if s, ok, err := r.persist.CurrentWeights(ctx, category); err == nil && ok && s.Valid() {
			r.mu.Lock()
			r.latest[category] = s
			r.mu.Unlock()
			return s
		}
	}
	return r.defaultFor(category)
}

// Supersede records a new snapshot for a category. Invalid sets are refused
// so a buggy caller can never corrupt the blend.
func (r *Repository) Supersede(ctx context.Context, category market.Category, s Set) error {
	if !s.Valid() {
		return fmt.Errorf("refusing weight set with sum %.3f", s.Sum())
	}
	r.mu.Lock()
	r.latest[category] = s
	r.mu.Unlock()

	if r.persist != nil {
		if err := r.persist.SaveWeights(ctx, category, s, time.Now().UTC()); err != nil {
			return fmt.Errorf("persist weights: %w", err)
		}
	}
	return nil
}

func (r *Repository) defaultFor(category market.Category) Set {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.defaults[category]; ok {
		return s
	}
	return EvenSplit()
}
