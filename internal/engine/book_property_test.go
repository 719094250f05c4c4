package engine

import (
	"reflect"
	"testing"

	"github.com/efreitasn/matchbook/internal/domain"
	"pgregory.net/rapid"
)

// genOrder draws an order that passes validation. Prices are kept in a
// narrow band so that orders cross often.
func genOrder() *rapid.Generator[*domain.Order] {
	return rapid.Custom(func(t *rapid.T) *domain.Order {
		side := rapid.SampledFrom([]domain.OrderSide{domain.OrderSideBuy, domain.OrderSideSell}).Draw(t, "side")
		qty := rapid.Int64Range(1, 20).Draw(t, "qty")
		if rapid.IntRange(0, 9).Draw(t, "market") == 0 {
			return &domain.Order{
				Side:      side,
				Type:      domain.OrderTypeMarket,
				Quantity:  qty,
				Condition: domain.ImmediateOrCancel{},
			}
		}
		var cond domain.Condition
		switch rapid.IntRange(0, 4).Draw(t, "cond") {
		case 0:
			cond = domain.ImmediateOrCancel{}
		case 1:
			cond = domain.FillOrKill{}
		case 2:
			cond = domain.Stop{Trigger: rapid.Int64Range(95, 105).Draw(t, "trigger")}
		default:
			cond = domain.GoodTillCancel{}
		}
		return &domain.Order{
			Side:      side,
			Type:      domain.OrderTypeLimit,
			Price:     rapid.Int64Range(95, 105).Draw(t, "price"),
			Quantity:  qty,
			Condition: cond,
		}
	})
}

func checkSubmitResult(t *rapid.T, o *domain.Order, res *SubmitResult) {
	var traded int64
	for _, tr := range res.Trades {
		traded += tr.Quantity
		if tr.Quantity <= 0 {
			t.Fatalf("trade with non-positive quantity %d", tr.Quantity)
		}
		if !o.IsMarket() && !res.Order.Crosses(tr.Price) {
			t.Fatalf("trade at %d outside taker limit %d (%s)", tr.Price, res.Order.Price, res.Order.Side)
		}
	}
	if traded != res.Order.Filled {
		t.Fatalf("trades sum to %d but order filled %d", traded, res.Order.Filled)
	}
	if res.Order.Filled+res.Order.Remaining != res.Order.Quantity {
		t.Fatalf("filled %d + remaining %d != quantity %d", res.Order.Filled, res.Order.Remaining, res.Order.Quantity)
	}
	if _, ok := res.Order.Condition.(domain.FillOrKill); ok {
		if res.Disposition != DispositionFilled && res.Disposition != DispositionRejected {
			t.Fatalf("fill-or-kill ended %s", res.Disposition)
		}
		if res.Disposition == DispositionRejected && len(res.Trades) > 0 {
			t.Fatal("rejected fill-or-kill produced trades")
		}
	}
	if res.Disposition == DispositionResting || res.Disposition == DispositionPartiallyFilledResting {
		if res.Order.IsMarket() {
			t.Fatal("market order rested")
		}
	}
}

func checkQueues(t *rapid.T, b *OrderBook) {
	snap := b.Snapshot()
	for _, levels := range [][]LevelSnapshot{snap.Bids, snap.Asks} {
		for _, l := range levels {
			for i := 1; i < len(l.Orders); i++ {
				if l.Orders[i].Sequence <= l.Orders[i-1].Sequence {
					t.Fatalf("level %d out of sequence order: %d after %d",
						l.Price, l.Orders[i].Sequence, l.Orders[i-1].Sequence)
				}
			}
		}
	}
}

func TestProperty_RandomCommandStreamKeepsInvariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		b := NewOrderBook("TEST")
		var ids []uint64
		var lastEvent uint64

		steps := rapid.IntRange(1, 80).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			var events []domain.Event
			switch op := rapid.IntRange(0, 9).Draw(t, "op"); {
			case op < 6:
				o := genOrder().Draw(t, "order")
				res, err := b.Submit(o)
				if err != nil {
					t.Fatalf("Submit: %v", err)
				}
				checkSubmitResult(t, o, res)
				ids = append(ids, res.Order.ID)
				events = res.Events
			case op < 8 && len(ids) > 0:
				id := rapid.SampledFrom(ids).Draw(t, "cancelID")
				res, err := b.Cancel(id)
				if err == nil {
					events = res.Events
				}
			case op == 8 && len(ids) > 0:
				id := rapid.SampledFrom(ids).Draw(t, "replaceID")
				delta := rapid.Int64Range(-5, 5).Draw(t, "delta")
				price := rapid.Int64Range(95, 105).Draw(t, "newPrice")
				res, err := b.Replace(id, delta, price)
				if res != nil {
					events = res.Events()
					if res.Submitted != nil {
						ids = append(ids, res.Submitted.Order.ID)
					}
				} else if err == nil {
					t.Fatal("Replace returned neither result nor error")
				}
			default:
				res, err := b.SetMarketPrice(rapid.Int64Range(90, 110).Draw(t, "marketPrice"))
				if err != nil {
					t.Fatalf("SetMarketPrice: %v", err)
				}
				events = res.Events
			}

			for _, ev := range events {
				if ev.Sequence <= lastEvent {
					t.Fatalf("event sequence %d not after %d", ev.Sequence, lastEvent)
				}
				lastEvent = ev.Sequence
			}
			if err := b.CheckInvariants(); err != nil {
				t.Fatalf("step %d: %v", i, err)
			}
			checkQueues(t, b)
		}
	})
}

func TestProperty_SubmitCancelRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		b := NewOrderBook("TEST")
		// Build a non-crossed book: bids below 100, asks at or above.
		n := rapid.IntRange(0, 20).Draw(t, "resting")
		for i := 0; i < n; i++ {
			side := rapid.SampledFrom([]domain.OrderSide{domain.OrderSideBuy, domain.OrderSideSell}).Draw(t, "side")
			price := rapid.Int64Range(90, 99).Draw(t, "bidPrice")
			if side == domain.OrderSideSell {
				price = rapid.Int64Range(100, 110).Draw(t, "askPrice")
			}
			if _, err := b.Submit(gtc(side, price, rapid.Int64Range(1, 10).Draw(t, "qty"))); err != nil {
				t.Fatalf("Submit: %v", err)
			}
		}
		before := b.Depth(50)

		side := rapid.SampledFrom([]domain.OrderSide{domain.OrderSideBuy, domain.OrderSideSell}).Draw(t, "restSide")
		price := rapid.Int64Range(90, 99).Draw(t, "restBid")
		if side == domain.OrderSideSell {
			price = rapid.Int64Range(100, 110).Draw(t, "restAsk")
		}
		res, err := b.Submit(gtc(side, price, rapid.Int64Range(1, 10).Draw(t, "restQty")))
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		if res.Disposition != DispositionResting {
			t.Fatalf("expected non-crossing order to rest, got %s", res.Disposition)
		}
		if _, err := b.Cancel(res.Order.ID); err != nil {
			t.Fatalf("Cancel: %v", err)
		}

		after := b.Depth(50)
		if !reflect.DeepEqual(before.Bids, after.Bids) || !reflect.DeepEqual(before.Asks, after.Asks) {
			t.Fatalf("depth changed: before %+v after %+v", before, after)
		}
	})
}

func TestProperty_FOKRejectionIsNoOp(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		b := NewOrderBook("TEST")
		n := rapid.IntRange(0, 10).Draw(t, "asks")
		var available int64
		for i := 0; i < n; i++ {
			qty := rapid.Int64Range(1, 10).Draw(t, "qty")
			available += qty
			if _, err := b.Submit(gtc(domain.OrderSideSell, rapid.Int64Range(100, 105).Draw(t, "price"), qty)); err != nil {
				t.Fatalf("Submit: %v", err)
			}
		}
		before := b.Snapshot()

		// More than everything on the book, at a limit crossing every ask.
		res, err := b.Submit(limitOrder(domain.OrderSideBuy, 105, available+1, domain.FillOrKill{}))
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		if res.Disposition != DispositionRejected {
			t.Fatalf("expected rejected, got %s", res.Disposition)
		}
		after := b.Snapshot()
		if !reflect.DeepEqual(before.Asks, after.Asks) || !reflect.DeepEqual(before.Bids, after.Bids) {
			t.Fatal("rejected fill-or-kill changed the book")
		}
	})
}
