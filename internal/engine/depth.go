package engine

import (
	"github.com/efreitasn/matchbook/internal/domain"
	"github.com/google/btree"
	"github.com/shopspring/decimal"
)

// DepthLevel is one aggregated price level.
type DepthLevel struct {
	Price      int64
	Quantity   int64
	OrderCount int
}

// DepthSnapshot holds at most the requested number of levels per side,
// best first. A side with fewer levels simply has a shorter slice.
type DepthSnapshot struct {
	Market      string
	Version     uint64
	Bids        []DepthLevel
	Asks        []DepthLevel
	Spread      *int64 // nil if either side is empty
	MarketPrice int64
}

// LevelSnapshot is a price level with its individual orders.
type LevelSnapshot struct {
	Price    int64
	Quantity int64
	Orders   []*domain.Order
}

// FullSnapshot is the per-order view of the whole book.
type FullSnapshot struct {
	Market      string
	Version     uint64
	Bids        []LevelSnapshot
	Asks        []LevelSnapshot
	Stops       []*domain.Order
	MarketPrice int64
}

// QuoteLevel is the quantity a simulated market order would take at one
// price.
type QuoteLevel struct {
	Price    int64
	Quantity int64
}

// QuoteResult holds the result of a market order simulation.
type QuoteResult struct {
	Side              domain.OrderSide
	QuantityRequested int64
	QuantityAvailable int64
	FullyFillable     bool
	EstimatedAvgPrice *int64           // nil when no liquidity
	EstimatedTotal    *decimal.Decimal // in ticks; nil when no liquidity
	PriceLevels       []QuoteLevel
}

// Depth returns up to levels aggregated levels per side. It reads level
// totals only and stops after levels entries, so its cost does not
// depend on the size of the book.
func (b *OrderBook) Depth(levels int) DepthSnapshot {
	snap := DepthSnapshot{
		Market:      b.market,
		Version:     b.version,
		Bids:        topLevels(b.bids, levels),
		Asks:        topLevels(b.asks, levels),
		MarketPrice: b.marketPrice,
	}
	bid, okBid := b.bids.Best()
	ask, okAsk := b.asks.Best()
	if okBid && okAsk {
		spread := ask.Price - bid.Price
		snap.Spread = &spread
	}
	return snap
}

func topLevels(s *BookSide, n int) []DepthLevel {
	if n <= 0 {
		return []DepthLevel{}
	}
	out := make([]DepthLevel, 0, min(n, s.LevelCount()))
	s.Levels(func(l *PriceLevel) bool {
		out = append(out, DepthLevel{
			Price:      l.Price,
			Quantity:   l.Total,
			OrderCount: l.Len(),
		})
		return len(out) < n
	})
	return out
}

// Snapshot returns copies of every resting and dormant order.
func (b *OrderBook) Snapshot() FullSnapshot {
	snap := FullSnapshot{
		Market:      b.market,
		Version:     b.version,
		Bids:        fullLevels(b.bids),
		Asks:        fullLevels(b.asks),
		Stops:       make([]*domain.Order, 0, len(b.dormant)),
		MarketPrice: b.marketPrice,
	}
	for _, tree := range []*btree.BTreeG[*domain.Order]{b.buyStops, b.sellStops} {
		tree.Ascend(func(o *domain.Order) bool {
			snap.Stops = append(snap.Stops, o.Clone())
			return true
		})
	}
	return snap
}

func fullLevels(s *BookSide) []LevelSnapshot {
	out := make([]LevelSnapshot, 0, s.LevelCount())
	s.Levels(func(l *PriceLevel) bool {
		ls := LevelSnapshot{
			Price:    l.Price,
			Quantity: l.Total,
			Orders:   make([]*domain.Order, 0, l.Len()),
		}
		l.Orders(func(o *domain.Order) bool {
			ls.Orders = append(ls.Orders, o.Clone())
			return true
		})
		out = append(out, ls)
		return true
	})
	return out
}

// Quote simulates a market order of quantity on side against the current
// book without changing it. A buy quote walks the asks, a sell quote the
// bids.
func (b *OrderBook) Quote(side domain.OrderSide, quantity int64) QuoteResult {
	result := QuoteResult{
		Side:              side,
		QuantityRequested: quantity,
		PriceLevels:       make([]QuoteLevel, 0),
	}

	remaining := quantity
	totalCost := decimal.Zero
	b.side(side.Opposite()).Levels(func(l *PriceLevel) bool {
		if remaining <= 0 {
			return false
		}
		qty := min(l.Total, remaining)
		totalCost = totalCost.Add(domain.Notional(l.Price, qty))
		result.QuantityAvailable += qty
		remaining -= qty
		result.PriceLevels = append(result.PriceLevels, QuoteLevel{Price: l.Price, Quantity: qty})
		return remaining > 0
	})

	if result.QuantityAvailable > 0 {
		avgPrice := domain.AveragePrice(totalCost, decimal.NewFromInt(result.QuantityAvailable))
		result.EstimatedAvgPrice = &avgPrice
		result.EstimatedTotal = &totalCost
	}
	result.FullyFillable = result.QuantityAvailable >= quantity
	return result
}
