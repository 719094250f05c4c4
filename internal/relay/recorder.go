package relay

import (
	"github.com/efreitasn/matchbook/internal/domain"
	"github.com/efreitasn/matchbook/internal/store"
)

// TradeRecorder copies executed trades into the trade store. It runs on
// the sequencer goroutine through Chain, so a trade is readable as soon as
// the command that produced it has replied.
type TradeRecorder struct {
	trades *store.TradeStore
}

// NewTradeRecorder creates a TradeRecorder writing to trades.
func NewTradeRecorder(trades *store.TradeStore) *TradeRecorder {
	return &TradeRecorder{trades: trades}
}

// Record appends the trade of every trade.executed event.
func (r *TradeRecorder) Record(events []domain.Event) {
	for _, ev := range events {
		if ev.Type == domain.EventTradeExecuted && ev.Trade != nil {
			r.trades.Append(ev.Trade)
		}
	}
}
