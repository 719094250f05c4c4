package store

import (
	"sync"
	"time"

	"github.com/efreitasn/matchbook/internal/domain"
	"github.com/shopspring/decimal"
)

// TradeStore is a thread-safe in-memory store for executed trades, keyed
// by market. Trades are append-only and kept in execution order. When
// limit is positive only the newest limit trades per market are retained.
type TradeStore struct {
	mu     sync.RWMutex
	limit  int
	trades map[string][]*domain.Trade // market → trades (chronological)
}

// NewTradeStore creates an empty TradeStore retaining at most limit trades
// per market; 0 means unbounded.
func NewTradeStore(limit int) *TradeStore {
	return &TradeStore{
		limit:  limit,
		trades: make(map[string][]*domain.Trade),
	}
}

// Append adds trades to their market's chronological list.
func (s *TradeStore) Append(trades ...*domain.Trade) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range trades {
		list := append(s.trades[t.Market], t)
		if s.limit > 0 && len(list) >= 2*s.limit {
			// Compact so the dropped prefix can be collected.
			list = append(make([]*domain.Trade, 0, 2*s.limit), list[len(list)-s.limit:]...)
		}
		s.trades[t.Market] = list
	}
}

// Recent returns up to limit trades for market, newest first. A
// non-positive limit returns every retained trade.
func (s *TradeStore) Recent(market string, limit int) []*domain.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trades := s.retained(market)
	n := len(trades)
	if limit > 0 && limit < n {
		n = limit
	}
	result := make([]*domain.Trade, 0, n)
	for i := len(trades) - 1; i >= 0 && len(result) < n; i-- {
		result = append(result, trades[i])
	}
	return result
}

// retained returns the newest limit trades of market. Callers hold mu.
func (s *TradeStore) retained(market string) []*domain.Trade {
	trades := s.trades[market]
	if s.limit > 0 && len(trades) > s.limit {
		return trades[len(trades)-s.limit:]
	}
	return trades
}

// VWAP summarizes the trades of a market executed at or after since.
type VWAP struct {
	Price          *int64 // nil when no trade ever happened
	TradesInWindow int
	LastTradeAt    *time.Time
}

// VWAP computes the volume-weighted average price over trades executed
// at or after since, walking back from the newest trade. With no trade in
// the window it falls back to the last trade's price.
func (s *TradeStore) VWAP(market string, since time.Time) VWAP {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out VWAP
	trades := s.retained(market)
	if len(trades) == 0 {
		return out
	}
	last := trades[len(trades)-1]
	lastAt := last.ExecutedAt
	out.LastTradeAt = &lastAt

	sumPriceQty, sumQty := decimal.Zero, decimal.Zero
	for i := len(trades) - 1; i >= 0; i-- {
		t := trades[i]
		if t.ExecutedAt.Before(since) {
			break
		}
		sumPriceQty = sumPriceQty.Add(domain.Notional(t.Price, t.Quantity))
		sumQty = sumQty.Add(decimal.NewFromInt(t.Quantity))
		out.TradesInWindow++
	}

	price := last.Price
	if sumQty.IsPositive() {
		price = domain.AveragePrice(sumPriceQty, sumQty)
	}
	out.Price = &price
	return out
}
