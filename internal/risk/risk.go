// Package risk enforces position and exposure limits and sizes positions
// from composite score confidence. Rejections are ordinary values, not
// errors: hitting a limit is an expected outcome of every scan cycle.
package risk

import (
	"fmt"
	"sync"
)

// Limits are the guard-rails loaded from configuration.
type Limits struct {
	MaxPositions        int
	MaxExposurePerTrade float64 // fraction of balance
	MaxTotalExposure    float64 // fraction of balance
	TradeThreshold      float64 // composite score 0-100
}

// Decision is the outcome of a pre-trade check. Rule carries a stable label
// for metrics; Reason is the human-readable explanation.
type Decision struct {
	Allowed bool
	Rule    string
	Reason  string
}

// OpenPosition is the lightweight record the manager tracks per market.
type OpenPosition struct {
	MarketID   string
	Direction  string // 'YES' | 'NO'
	Cost       float64
	EntryPrice float64
}

// Manager tracks balance, open positions, and aggregate committed exposure.
// State mutates only through Register/Close/UpdateBalance.
type Manager struct {
	mu        sync.Mutex
	limits    Limits
	balance   float64
	positions map[string]OpenPosition
}

// NewManager builds a manager with the starting balance.
func NewManager(startingBalance float64, limits Limits) *Manager {
	return &Manager{
		limits:    limits,
		balance:   startingBalance,
		positions: make(map[string]OpenPosition),
	}
}

// CanTrade checks a proposed dollar size against every limit, in order, and
// returns the first violation.
func (m *Manager) CanTrade(marketID string, proposedSize float64) Decision {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.positions) >= m.limits.MaxPositions {
		return Decision{Rule: "max_positions", Reason: fmt.Sprintf(
			"Max positions reached (%d). Close a position before opening another.", m.limits.MaxPositions)}
	}
	if _, dup := m.positions[marketID]; dup {
		return Decision{Rule: "duplicate", Reason: fmt.Sprintf("Already have an open position in %s.", marketID)}
	}
	maxSingle := m.balance * m.limits.MaxExposurePerTrade
	if proposedSize > maxSingle {
		return Decision{Rule: "per_trade_limit", Reason: fmt.Sprintf(
			"Proposed size $%.2f exceeds per-trade limit $%.2f (%.0f%% of balance).",
			proposedSize, maxSingle, m.limits.MaxExposurePerTrade*100)}
	}
	exposure := m.totalExposureLocked()
	maxTotal := m.balance * m.limits.MaxTotalExposure
	if exposure+proposedSize > maxTotal {
		return Decision{Rule: "total_exposure", Reason: fmt.Sprintf(
			"Would exceed total exposure limit. Current: $%.2f, Max: $%.2f (%.0f%% of balance).",
			exposure, maxTotal, m.limits.MaxTotalExposure*100)}
	}
	if proposedSize > m.balance {
		return Decision{Rule: "insufficient_balance", Reason: fmt.Sprintf(
			"Insufficient balance. Proposed $%.2f > available $%.2f.", proposedSize, m.balance)}
	}

	return Decision{Allowed: true, Reason: "OK"}
}

// ComputePositionSize scales position size with composite confidence: 5% of
// balance at the trade threshold, interpolating linearly to 20% at a perfect
// score, capped by the per-trade exposure limit. Deliberately simpler than a
// true Kelly fraction.
func (m *Manager) ComputePositionSize(balance, score float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	threshold := m.limits.TradeThreshold
	sizePct := 0.05
	if score > threshold && threshold < 100 {
		normalized := (score - threshold) / (100 - threshold)
		sizePct = 0.05 + normalized*0.15
	}
	if sizePct > m.limits.MaxExposurePerTrade {
		sizePct = m.limits.MaxExposurePerTrade
	}
	return balance * sizePct
}

// RegisterPosition records an open position after a successful execution.
func (m *Manager) RegisterPosition(marketID, direction string, cost, entryPrice float64) {
	m.mu.Lock()
	m.positions[marketID] = OpenPosition{
		MarketID:   marketID,
		Direction:  direction,
		Cost:       cost,
		EntryPrice: entryPrice,
	}
	m.mu.Unlock()
}

// ClosePosition removes a tracked position and reports whether it existed.
func (m *Manager) ClosePosition(marketID string) (OpenPosition, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.positions[marketID]
	if ok {
		delete(m.positions, marketID)
	}
	return p, ok
}

// UpdateBalance syncs the tracked balance after executions and closes.
func (m *Manager) UpdateBalance(balance float64) {
	m.mu.Lock()
	m.balance = balance
	m.mu.Unlock()
}

// Balance returns the tracked balance.
func (m *Manager) Balance() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balance
}

// TotalExposure is the sum of dollars committed to open positions.
func (m *Manager) TotalExposure() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalExposureLocked()
}

func (m *Manager) totalExposureLocked() float64 {
	var total float64
	for _, p := range m.positions {
		total += p.Cost
	}
	return total
}

// PositionCount returns how many positions are open.
func (m *Manager) PositionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.positions)
}

// Position returns tracking data for one market.
func (m *Manager) Position(marketID string) (OpenPosition, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.positions[marketID]
	return p, ok
}

// Positions returns a copy of all open positions.
func (m *Manager) Positions() []OpenPosition {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]OpenPosition, 0, len(m.positions))
	for _, p := range m.positions {
		out = append(out, p)
	}
	return out
}
