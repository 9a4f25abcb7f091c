package engine

import "time"

// EventType labels the engine lifecycle moments worth notifying on.
type EventType string

const (
	EventTradeOpened     EventType = "trade_opened"
	EventTradeClosed     EventType = "trade_closed"
	EventWeightsAdjusted EventType = "weights_adjusted"
)

// Event is one notification-worthy occurrence. Text is preformatted for
// human consumers.
type Event struct {
	Type     EventType
	MarketID string
	Text     string
	Ts       time.Time
}
