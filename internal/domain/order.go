package domain

// OrderType distinguishes limit orders from market orders.
type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
)

// OrderSide indicates whether an order buys or sells.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// Opposite returns the side an order of this side matches against.
func (s OrderSide) Opposite() OrderSide {
	if s == OrderSideBuy {
		return OrderSideSell
	}
	return OrderSideBuy
}

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusDormant         OrderStatus = "dormant"
	OrderStatusNew             OrderStatus = "new"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusFilled          OrderStatus = "filled"
	OrderStatusCancelled       OrderStatus = "cancelled"
	OrderStatusRejected        OrderStatus = "rejected"
)

// Terminal reports whether no further transition is possible.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected:
		return true
	}
	return false
}

// Order is a buy or sell intent. ID and Sequence are assigned by the
// engine; callers fill in Side, Type, Price, Quantity and Condition.
type Order struct {
	ID        uint64
	Market    string
	ClientRef string
	Side      OrderSide
	Type      OrderType
	Price     int64 // ticks, 0 for market orders
	Quantity  int64
	Remaining int64
	Filled    int64
	Sequence  uint64
	Condition Condition
	Status    OrderStatus
}

// IsMarket reports whether the order carries no limit price.
func (o *Order) IsMarket() bool {
	return o.Type == OrderTypeMarket
}

// Crosses reports whether a resting price on the opposite side is
// acceptable to this order.
func (o *Order) Crosses(price int64) bool {
	if o.IsMarket() {
		return true
	}
	if o.Side == OrderSideBuy {
		return price <= o.Price
	}
	return price >= o.Price
}

// Clone returns a detached copy safe to hand to other goroutines.
func (o *Order) Clone() *Order {
	c := *o
	return &c
}
