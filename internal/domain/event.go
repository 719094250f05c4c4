package domain

import "time"

// EventType names a domain event relayed to external collaborators.
type EventType string

const (
	EventTradeExecuted  EventType = "trade.executed"
	EventOrderRested    EventType = "order.rested"
	EventOrderRejected  EventType = "order.rejected"
	EventOrderCancelled EventType = "order.cancelled"
	EventOrderDormant   EventType = "order.dormant"
	EventOrderTriggered EventType = "order.triggered"
)

// EventTypes lists every event type in a stable order.
var EventTypes = []EventType{
	EventTradeExecuted,
	EventOrderRested,
	EventOrderRejected,
	EventOrderCancelled,
	EventOrderDormant,
	EventOrderTriggered,
}

// ValidEventType reports whether t is a known event type.
func ValidEventType(t EventType) bool {
	for _, known := range EventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Event is emitted by the engine for every trade and every change of an
// order's disposition. Sequence is strictly increasing per market.
type Event struct {
	Type      EventType
	Market    string
	Sequence  uint64
	OrderID   uint64
	Trade     *Trade // trade.executed only
	Order     *Order // snapshot after the change, nil for trades
	Reason    string
	Timestamp time.Time
}
