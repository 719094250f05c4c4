package engine

import (
	"github.com/efreitasn/matchbook/internal/domain"
	"github.com/google/btree"
)

// bidLess orders bid levels by price descending so Min() is the best bid.
func bidLess(a, b *PriceLevel) bool {
	return a.Price > b.Price
}

// askLess orders ask levels by price ascending so Min() is the best ask.
func askLess(a, b *PriceLevel) bool {
	return a.Price < b.Price
}

// BookSide holds the price levels of one side, ordered best first, with
// a price index for direct access to a level.
type BookSide struct {
	side    domain.OrderSide
	levels  *btree.BTreeG[*PriceLevel]
	byPrice map[int64]*PriceLevel
	orders  int
}

func newBookSide(side domain.OrderSide) *BookSide {
	const degree = 32
	less := askLess
	if side == domain.OrderSideBuy {
		less = bidLess
	}
	return &BookSide{
		side:    side,
		levels:  btree.NewG[*PriceLevel](degree, less),
		byPrice: make(map[int64]*PriceLevel),
	}
}

// Best returns the best-priced level.
func (s *BookSide) Best() (*PriceLevel, bool) {
	return s.levels.Min()
}

// Level returns the level at price, if any.
func (s *BookSide) Level(price int64) (*PriceLevel, bool) {
	l, ok := s.byPrice[price]
	return l, ok
}

// Levels iterates levels best first until fn returns false.
func (s *BookSide) Levels(fn func(*PriceLevel) bool) {
	s.levels.Ascend(fn)
}

// LevelCount returns the number of distinct prices on this side.
func (s *BookSide) LevelCount() int {
	return s.levels.Len()
}

// OrderCount returns the number of resting orders on this side.
func (s *BookSide) OrderCount() int {
	return s.orders
}

// Crossing sums the aggregate quantity of levels acceptable to o, best
// first, stopping once want is reached. Only level totals are read, so
// the cost is proportional to the number of levels visited.
func (s *BookSide) Crossing(o *domain.Order, want int64) int64 {
	var available int64
	s.levels.Ascend(func(l *PriceLevel) bool {
		if !o.Crosses(l.Price) {
			return false
		}
		available += l.Total
		return available < want
	})
	return available
}

func (s *BookSide) insert(o *domain.Order) {
	l, ok := s.byPrice[o.Price]
	if !ok {
		l = newPriceLevel(o.Price)
		s.byPrice[o.Price] = l
		s.levels.ReplaceOrInsert(l)
	}
	l.push(o)
	s.orders++
}

func (s *BookSide) remove(o *domain.Order) bool {
	l, ok := s.byPrice[o.Price]
	if !ok || !l.remove(o) {
		return false
	}
	s.orders--
	s.dropIfEmpty(l)
	return true
}

// fill executes qty against o at level l and drops the level once its
// last order is gone.
func (s *BookSide) fill(l *PriceLevel, o *domain.Order, qty int64) {
	l.fill(o, qty)
	if o.Remaining == 0 {
		s.orders--
	}
	s.dropIfEmpty(l)
}

func (s *BookSide) dropIfEmpty(l *PriceLevel) {
	if l.Len() > 0 {
		return
	}
	s.levels.Delete(l)
	delete(s.byPrice, l.Price)
}
