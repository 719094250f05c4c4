package engine

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/efreitasn/matchbook/internal/domain"
	"github.com/google/btree"
)

// Disposition is the final outcome of an incoming order after a command.
type Disposition string

const (
	DispositionFilled                   Disposition = "filled"
	DispositionResting                  Disposition = "resting"
	DispositionPartiallyFilledResting   Disposition = "partially_filled_resting"
	DispositionPartiallyFilledCancelled Disposition = "partially_filled_cancelled"
	DispositionCancelled                Disposition = "cancelled"
	DispositionRejected                 Disposition = "rejected"
	DispositionDormant                  Disposition = "dormant"
)

// Reasons attached to rejections and discarded remainders.
const (
	ReasonInsufficientLiquidity = "insufficient_liquidity"
	ReasonImmediateOrCancel     = "immediate_or_cancel"
	ReasonMarketRemainder       = "market_order_remainder"
	ReasonCancelled             = "cancelled_by_request"
	ReasonReplaced              = "replaced"
	ReasonStopTriggered         = "stop_triggered"
)

// SubmitResult describes what a submission did to the book.
type SubmitResult struct {
	Order       *domain.Order
	Disposition Disposition
	Reason      string
	Trades      []*domain.Trade
	Events      []domain.Event
}

// CancelResult carries the cancelled order as it was when removed.
type CancelResult struct {
	Order  *domain.Order
	Events []domain.Event
}

// ReplaceResult pairs the cancellation of the original order with the
// submission of its replacement. Submitted is nil when the replacement
// quantity was not positive.
type ReplaceResult struct {
	Cancelled *CancelResult
	Submitted *SubmitResult
}

// Events returns the cancellation and submission events in order.
func (r *ReplaceResult) Events() []domain.Event {
	events := slices.Clone(r.Cancelled.Events)
	if r.Submitted != nil {
		events = append(events, r.Submitted.Events...)
	}
	return events
}

// MarketPriceResult lists the stop orders a reference price activated,
// in activation order.
type MarketPriceResult struct {
	Price     int64
	Activated []*SubmitResult
	Events    []domain.Event
}

// Option configures an OrderBook.
type Option func(*OrderBook)

// WithClock overrides the time source used for trade and event timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *OrderBook) {
		b.now = now
	}
}

type touch struct {
	side  *BookSide
	price int64
}

// OrderBook is the matching engine for a single market. It is a pure
// state machine: every command runs to completion and leaves the book
// uncrossed, and nothing else writes to its state. It is not safe for
// concurrent use; Sequencer serializes access to it.
type OrderBook struct {
	market string
	bids   *BookSide
	asks   *BookSide

	resting map[uint64]*domain.Order
	dormant map[uint64]*domain.Order
	// Dormant stops ordered by how soon a price move reaches them.
	buyStops  *btree.BTreeG[*domain.Order]
	sellStops *btree.BTreeG[*domain.Order]

	marketPrice int64
	lastOrderID uint64
	lastSeq     uint64
	lastTrade   uint64
	lastEvent   uint64
	version     uint64

	touched []touch
	halted  *domain.InvariantViolation
	now     func() time.Time
}

// buyStopLess fires lowest triggers first as the price rises.
func buyStopLess(a, b *domain.Order) bool {
	ta, tb := a.Condition.(domain.Stop).Trigger, b.Condition.(domain.Stop).Trigger
	if ta != tb {
		return ta < tb
	}
	return a.Sequence < b.Sequence
}

// sellStopLess fires highest triggers first as the price falls.
func sellStopLess(a, b *domain.Order) bool {
	ta, tb := a.Condition.(domain.Stop).Trigger, b.Condition.(domain.Stop).Trigger
	if ta != tb {
		return ta > tb
	}
	return a.Sequence < b.Sequence
}

// NewOrderBook creates an empty book for market.
func NewOrderBook(market string, opts ...Option) *OrderBook {
	const degree = 16
	b := &OrderBook{
		market:    market,
		bids:      newBookSide(domain.OrderSideBuy),
		asks:      newBookSide(domain.OrderSideSell),
		resting:   make(map[uint64]*domain.Order),
		dormant:   make(map[uint64]*domain.Order),
		buyStops:  btree.NewG[*domain.Order](degree, buyStopLess),
		sellStops: btree.NewG[*domain.Order](degree, sellStopLess),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Market returns the market this book serves.
func (b *OrderBook) Market() string {
	return b.market
}

// Version counts applied commands; snapshots report the version they
// were taken at.
func (b *OrderBook) Version() uint64 {
	return b.version
}

// MarketPrice returns the reference price last set, or 0.
func (b *OrderBook) MarketPrice() int64 {
	return b.marketPrice
}

// Halted returns the invariant violation that stopped this book, if any.
func (b *OrderBook) Halted() *domain.InvariantViolation {
	return b.halted
}

// Bids exposes the bid side for read-only traversal.
func (b *OrderBook) Bids() *BookSide {
	return b.bids
}

// Asks exposes the ask side for read-only traversal.
func (b *OrderBook) Asks() *BookSide {
	return b.asks
}

// Order returns a copy of a resting or dormant order.
func (b *OrderBook) Order(id uint64) (*domain.Order, error) {
	if o, ok := b.resting[id]; ok {
		return o.Clone(), nil
	}
	if o, ok := b.dormant[id]; ok {
		return o.Clone(), nil
	}
	return nil, fmt.Errorf("order %d: %w", id, domain.ErrOrderNotFound)
}

// Submit validates o, assigns its ID and sequence, and matches it. The
// caller's order is not retained; the result carries the engine's copy.
// If the command leaves the book inconsistent the result is returned
// together with an *domain.InvariantViolation and the book halts.
func (b *OrderBook) Submit(o *domain.Order) (*SubmitResult, error) {
	if b.halted != nil {
		return nil, b.halted
	}
	if err := validateOrder(o); err != nil {
		return nil, err
	}
	b.begin()
	res := b.submit(o)
	return res, b.audit()
}

// Cancel removes a resting or dormant order.
func (b *OrderBook) Cancel(id uint64) (*CancelResult, error) {
	if b.halted != nil {
		return nil, b.halted
	}
	o, ok := b.live(id)
	if !ok {
		return nil, fmt.Errorf("order %d: %w", id, domain.ErrOrderNotFound)
	}
	b.begin()
	res := b.cancel(o, ReasonCancelled)
	return res, b.audit()
}

// Replace cancels the order and submits a new one for the same side,
// type and condition with quantity remaining+quantityDelta at newPrice.
// A stop that has already activated is resubmitted as GTC.
// The replacement gets a new ID and sequence, so it queues behind every
// order already resting at newPrice. A newPrice of 0 keeps a market
// order unpriced. When the new quantity is not positive the original
// stays cancelled and a *domain.ValidationError is returned alongside
// the result.
func (b *OrderBook) Replace(id uint64, quantityDelta, newPrice int64) (*ReplaceResult, error) {
	if b.halted != nil {
		return nil, b.halted
	}
	o, ok := b.live(id)
	if !ok {
		return nil, fmt.Errorf("order %d: %w", id, domain.ErrOrderNotFound)
	}

	next := &domain.Order{
		Market:    b.market,
		ClientRef: o.ClientRef,
		Side:      o.Side,
		Type:      o.Type,
		Price:     newPrice,
		Quantity:  o.Remaining + quantityDelta,
		Condition: o.Condition,
	}
	if _, ok := o.Condition.(domain.Stop); ok && o.Status != domain.OrderStatusDormant {
		// An activated stop already lives on the book; its trigger is spent.
		next.Condition = domain.GoodTillCancel{}
	}
	if o.IsMarket() && newPrice > 0 {
		next.Type = domain.OrderTypeLimit
	}
	if next.Type == domain.OrderTypeLimit && newPrice <= 0 {
		return nil, &domain.ValidationError{Message: "price must be greater than 0"}
	}
	if newPrice < 0 {
		return nil, &domain.ValidationError{Message: "price must not be negative"}
	}

	b.begin()
	res := &ReplaceResult{Cancelled: b.cancel(o, ReasonReplaced)}
	if next.Quantity <= 0 {
		if err := b.audit(); err != nil {
			return res, err
		}
		return res, &domain.ValidationError{
			Message: "replacement quantity must be positive; the original order was cancelled",
		}
	}
	res.Submitted = b.submit(next)
	return res, b.audit()
}

// SetMarketPrice records the reference price and activates every dormant
// stop it reaches, in submission order, through the normal matching path.
func (b *OrderBook) SetMarketPrice(price int64) (*MarketPriceResult, error) {
	if b.halted != nil {
		return nil, b.halted
	}
	if price <= 0 {
		return nil, &domain.ValidationError{Message: "market price must be greater than 0"}
	}
	b.begin()
	b.marketPrice = price

	var triggered []*domain.Order
	collect := func(o *domain.Order) bool {
		if !o.Condition.(domain.Stop).Triggered(o.Side, price) {
			return false
		}
		triggered = append(triggered, o)
		return true
	}
	b.buyStops.Ascend(collect)
	b.sellStops.Ascend(collect)
	slices.SortFunc(triggered, func(a, c *domain.Order) int {
		return cmp.Compare(a.Sequence, c.Sequence)
	})

	res := &MarketPriceResult{Price: price}
	for _, o := range triggered {
		b.unpark(o)
		sr := b.activate(o)
		res.Activated = append(res.Activated, sr)
		res.Events = append(res.Events, sr.Events...)
	}
	return res, b.audit()
}

func (b *OrderBook) begin() {
	b.version++
	b.touched = b.touched[:0]
}

func (b *OrderBook) live(id uint64) (*domain.Order, bool) {
	if o, ok := b.resting[id]; ok {
		return o, true
	}
	o, ok := b.dormant[id]
	return o, ok
}

func (b *OrderBook) side(s domain.OrderSide) *BookSide {
	if s == domain.OrderSideBuy {
		return b.bids
	}
	return b.asks
}

// submit assigns identity to a validated order and routes it either to
// the dormant set or to the match loop.
func (b *OrderBook) submit(in *domain.Order) *SubmitResult {
	o := in.Clone()
	b.lastOrderID++
	b.lastSeq++
	o.ID = b.lastOrderID
	o.Sequence = b.lastSeq
	o.Market = b.market
	o.Remaining = o.Quantity
	o.Filled = 0
	o.Status = domain.OrderStatusNew

	if stop, ok := o.Condition.(domain.Stop); ok {
		if !stop.Triggered(o.Side, b.marketPrice) {
			return b.park(o)
		}
		return b.activate(o)
	}
	return b.match(o)
}

func (b *OrderBook) park(o *domain.Order) *SubmitResult {
	o.Status = domain.OrderStatusDormant
	b.dormant[o.ID] = o
	if o.Side == domain.OrderSideBuy {
		b.buyStops.ReplaceOrInsert(o)
	} else {
		b.sellStops.ReplaceOrInsert(o)
	}
	return &SubmitResult{
		Order:       o.Clone(),
		Disposition: DispositionDormant,
		Events:      []domain.Event{b.event(domain.EventOrderDormant, o, nil, "")},
	}
}

func (b *OrderBook) unpark(o *domain.Order) {
	delete(b.dormant, o.ID)
	if o.Side == domain.OrderSideBuy {
		b.buyStops.Delete(o)
	} else {
		b.sellStops.Delete(o)
	}
}

// activate converts a dormant stop into a live order that keeps its
// original sequence.
func (b *OrderBook) activate(o *domain.Order) *SubmitResult {
	o.Status = domain.OrderStatusNew
	ev := b.event(domain.EventOrderTriggered, o, nil, ReasonStopTriggered)
	res := b.match(o)
	res.Events = append([]domain.Event{ev}, res.Events...)
	return res
}

// match runs the price-time priority loop for o against the opposite
// side and decides what happens to any remainder.
func (b *OrderBook) match(o *domain.Order) *SubmitResult {
	res := &SubmitResult{}
	opp := b.side(o.Side.Opposite())

	if Evaluate(o, opp) == Reject {
		o.Status = domain.OrderStatusRejected
		res.Order = o.Clone()
		res.Disposition = DispositionRejected
		res.Reason = ReasonInsufficientLiquidity
		res.Events = append(res.Events, b.event(domain.EventOrderRejected, o, nil, res.Reason))
		return res
	}

	for o.Remaining > 0 {
		level, ok := opp.Best()
		if !ok || !o.Crosses(level.Price) {
			break
		}
		maker, _ := level.Front()
		qty := min(o.Remaining, maker.Remaining)

		b.lastTrade++
		trade := &domain.Trade{
			Market:       b.market,
			Sequence:     b.lastTrade,
			MakerOrderID: maker.ID,
			TakerOrderID: o.ID,
			TakerSide:    o.Side,
			Price:        maker.Price,
			Quantity:     qty,
			ExecutedAt:   b.now(),
		}

		o.Remaining -= qty
		o.Filled += qty
		b.touched = append(b.touched, touch{side: opp, price: level.Price})
		opp.fill(level, maker, qty)
		if maker.Remaining == 0 {
			maker.Status = domain.OrderStatusFilled
			delete(b.resting, maker.ID)
		} else {
			maker.Status = domain.OrderStatusPartiallyFilled
		}

		res.Trades = append(res.Trades, trade)
		res.Events = append(res.Events, b.event(domain.EventTradeExecuted, nil, trade, ""))
	}

	switch {
	case o.Remaining == 0:
		o.Status = domain.OrderStatusFilled
		res.Disposition = DispositionFilled
	case restsRemainder(o):
		if o.Filled > 0 {
			o.Status = domain.OrderStatusPartiallyFilled
			res.Disposition = DispositionPartiallyFilledResting
		} else {
			res.Disposition = DispositionResting
		}
		own := b.side(o.Side)
		own.insert(o)
		b.resting[o.ID] = o
		b.touched = append(b.touched, touch{side: own, price: o.Price})
		res.Events = append(res.Events, b.event(domain.EventOrderRested, o, nil, ""))
	default:
		res.Reason = ReasonImmediateOrCancel
		if o.IsMarket() {
			res.Reason = ReasonMarketRemainder
		}
		o.Status = domain.OrderStatusCancelled
		res.Disposition = DispositionCancelled
		if o.Filled > 0 {
			res.Disposition = DispositionPartiallyFilledCancelled
		}
		res.Events = append(res.Events, b.event(domain.EventOrderCancelled, o, nil, res.Reason))
	}
	res.Order = o.Clone()
	return res
}

func (b *OrderBook) cancel(o *domain.Order, reason string) *CancelResult {
	if o.Status == domain.OrderStatusDormant {
		b.unpark(o)
	} else {
		s := b.side(o.Side)
		s.remove(o)
		delete(b.resting, o.ID)
		b.touched = append(b.touched, touch{side: s, price: o.Price})
	}
	o.Status = domain.OrderStatusCancelled
	return &CancelResult{
		Order:  o.Clone(),
		Events: []domain.Event{b.event(domain.EventOrderCancelled, o, nil, reason)},
	}
}

func (b *OrderBook) event(t domain.EventType, o *domain.Order, trade *domain.Trade, reason string) domain.Event {
	b.lastEvent++
	ev := domain.Event{
		Type:      t,
		Market:    b.market,
		Sequence:  b.lastEvent,
		Trade:     trade,
		Reason:    reason,
		Timestamp: b.now(),
	}
	if o != nil {
		ev.OrderID = o.ID
		ev.Order = o.Clone()
	}
	if trade != nil {
		ev.OrderID = trade.TakerOrderID
		ev.Timestamp = trade.ExecutedAt
	}
	return ev
}

// audit checks the levels touched by the last command and the spread.
// Any failure halts the book.
func (b *OrderBook) audit() error {
	for _, t := range b.touched {
		l, ok := t.side.Level(t.price)
		if !ok {
			continue
		}
		if detail := l.audit(); detail != "" {
			return b.halt(fmt.Sprintf("%s side level %d: %s", t.side.side, t.price, detail))
		}
	}
	return b.checkSpread()
}

func (b *OrderBook) checkSpread() error {
	bid, okBid := b.bids.Best()
	ask, okAsk := b.asks.Best()
	if okBid && okAsk && bid.Price >= ask.Price {
		return b.halt(fmt.Sprintf("crossed book at rest: best bid %d >= best ask %d", bid.Price, ask.Price))
	}
	return nil
}

// CheckInvariants audits the whole book. It is O(orders) and meant for
// diagnostics and tests rather than the command path.
func (b *OrderBook) CheckInvariants() error {
	if b.halted != nil {
		return b.halted
	}
	for _, s := range []*BookSide{b.bids, b.asks} {
		var detail string
		count := 0
		s.Levels(func(l *PriceLevel) bool {
			if d := l.audit(); d != "" {
				detail = fmt.Sprintf("%s side level %d: %s", s.side, l.Price, d)
				return false
			}
			l.Orders(func(o *domain.Order) bool {
				if b.resting[o.ID] != o {
					detail = fmt.Sprintf("order %d queued but not indexed", o.ID)
					return false
				}
				count++
				return true
			})
			return detail == ""
		})
		if detail != "" {
			return b.halt(detail)
		}
		if count != s.OrderCount() {
			return b.halt(fmt.Sprintf("%s side order count %d, queued %d", s.side, s.OrderCount(), count))
		}
	}
	if n := b.bids.OrderCount() + b.asks.OrderCount(); n != len(b.resting) {
		return b.halt(fmt.Sprintf("resting index holds %d orders, sides hold %d", len(b.resting), n))
	}
	if n := b.buyStops.Len() + b.sellStops.Len(); n != len(b.dormant) {
		return b.halt(fmt.Sprintf("dormant index holds %d orders, stop sets hold %d", len(b.dormant), n))
	}
	return b.checkSpread()
}

func (b *OrderBook) halt(detail string) error {
	b.halted = &domain.InvariantViolation{Market: b.market, Detail: detail}
	return b.halted
}
