package domain

import "time"

// Trade is an execution between a resting maker and an incoming taker.
// Price is always the maker's price.
type Trade struct {
	Market       string
	Sequence     uint64
	MakerOrderID uint64
	TakerOrderID uint64
	TakerSide    OrderSide
	Price        int64
	Quantity     int64
	ExecutedAt   time.Time
}
