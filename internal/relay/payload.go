package relay

import (
	"encoding/json"
	"time"

	"github.com/efreitasn/matchbook/internal/domain"
)

// Payload is the JSON envelope every sink publishes.
type Payload struct {
	Event     string     `json:"event"`
	Market    string     `json:"market"`
	Sequence  uint64     `json:"sequence"`
	Timestamp string     `json:"timestamp"`
	Reason    string     `json:"reason,omitempty"`
	Trade     *TradeData `json:"trade,omitempty"`
	Order     *OrderData `json:"order,omitempty"`
}

// TradeData is the trade.executed body.
type TradeData struct {
	Sequence     uint64 `json:"sequence"`
	MakerOrderID uint64 `json:"maker_order_id"`
	TakerOrderID uint64 `json:"taker_order_id"`
	TakerSide    string `json:"taker_side"`
	Price        string `json:"price"`
	Quantity     int64  `json:"quantity"`
}

// OrderData is the order snapshot carried by order.* events.
type OrderData struct {
	OrderID   uint64  `json:"order_id"`
	ClientRef string  `json:"client_ref,omitempty"`
	Side      string  `json:"side"`
	Type      string  `json:"type"`
	Condition string  `json:"condition"`
	Trigger   *string `json:"trigger_price,omitempty"`
	Price     *string `json:"price"`
	Quantity  int64   `json:"quantity"`
	Filled    int64   `json:"filled_quantity"`
	Remaining int64   `json:"remaining_quantity"`
	Status    string  `json:"status"`
}

// Encoder renders events with prices formatted at Scale decimal places.
type Encoder struct {
	Scale int32
}

// Payload builds the envelope for ev.
func (e Encoder) Payload(ev domain.Event) Payload {
	p := Payload{
		Event:     string(ev.Type),
		Market:    ev.Market,
		Sequence:  ev.Sequence,
		Timestamp: ev.Timestamp.UTC().Format(time.RFC3339Nano),
		Reason:    ev.Reason,
	}
	if t := ev.Trade; t != nil {
		p.Trade = &TradeData{
			Sequence:     t.Sequence,
			MakerOrderID: t.MakerOrderID,
			TakerOrderID: t.TakerOrderID,
			TakerSide:    string(t.TakerSide),
			Price:        domain.FormatPrice(t.Price, e.Scale),
			Quantity:     t.Quantity,
		}
	}
	if o := ev.Order; o != nil {
		p.Order = e.order(o)
	}
	return p
}

func (e Encoder) order(o *domain.Order) *OrderData {
	d := &OrderData{
		OrderID:   o.ID,
		ClientRef: o.ClientRef,
		Side:      string(o.Side),
		Type:      string(o.Type),
		Condition: string(o.Condition.Kind()),
		Quantity:  o.Quantity,
		Filled:    o.Filled,
		Remaining: o.Remaining,
		Status:    string(o.Status),
	}
	if !o.IsMarket() {
		price := domain.FormatPrice(o.Price, e.Scale)
		d.Price = &price
	}
	if stop, ok := o.Condition.(domain.Stop); ok {
		trigger := domain.FormatPrice(stop.Trigger, e.Scale)
		d.Trigger = &trigger
	}
	return d
}

// Marshal encodes ev as JSON.
func (e Encoder) Marshal(ev domain.Event) ([]byte, error) {
	return json.Marshal(e.Payload(ev))
}
