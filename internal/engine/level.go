package engine

import (
	"github.com/efreitasn/matchbook/internal/domain"
	"github.com/google/btree"
)

// PriceLevel is the FIFO queue of resting orders sharing one price.
// Orders are kept ordered by submission sequence so an activated stop
// order regains the position its sequence entitles it to. Total is the
// sum of the constituents' remaining quantities and is maintained on
// every insert, removal and partial fill.
type PriceLevel struct {
	Price  int64
	Total  int64
	orders *btree.BTreeG[*domain.Order]
}

func sequenceLess(a, b *domain.Order) bool {
	return a.Sequence < b.Sequence
}

func newPriceLevel(price int64) *PriceLevel {
	const degree = 16
	return &PriceLevel{
		Price:  price,
		orders: btree.NewG[*domain.Order](degree, sequenceLess),
	}
}

// Len returns the number of orders queued at this price.
func (l *PriceLevel) Len() int {
	return l.orders.Len()
}

// Front returns the oldest order at this price.
func (l *PriceLevel) Front() (*domain.Order, bool) {
	return l.orders.Min()
}

// Orders iterates the queue oldest first until fn returns false.
func (l *PriceLevel) Orders(fn func(*domain.Order) bool) {
	l.orders.Ascend(fn)
}

func (l *PriceLevel) push(o *domain.Order) {
	l.orders.ReplaceOrInsert(o)
	l.Total += o.Remaining
}

func (l *PriceLevel) remove(o *domain.Order) bool {
	if _, ok := l.orders.Delete(o); !ok {
		return false
	}
	l.Total -= o.Remaining
	return true
}

// fill takes qty from o, which must be queued here. An order reaching
// zero is dequeued.
func (l *PriceLevel) fill(o *domain.Order, qty int64) {
	o.Remaining -= qty
	o.Filled += qty
	l.Total -= qty
	if o.Remaining == 0 {
		l.orders.Delete(o)
	}
}

// audit recomputes the aggregate and checks every constituent.
func (l *PriceLevel) audit() string {
	if l.orders.Len() == 0 {
		return "empty price level retained"
	}
	var sum int64
	var detail string
	l.orders.Ascend(func(o *domain.Order) bool {
		if o.Remaining <= 0 || o.Remaining > o.Quantity {
			detail = "order remaining quantity out of range"
			return false
		}
		if o.Price != l.Price {
			detail = "order queued at foreign price"
			return false
		}
		sum += o.Remaining
		return true
	})
	if detail != "" {
		return detail
	}
	if sum != l.Total {
		return "aggregate quantity does not match constituents"
	}
	return ""
}
