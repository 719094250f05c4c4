package engine

import "github.com/efreitasn/matchbook/internal/domain"

// Verdict is the Conditions Evaluator's ruling on an incoming order.
type Verdict int

const (
	// AllowFull means crossing liquidity covers the whole remainder.
	AllowFull Verdict = iota
	// AllowPartial means matching may proceed and leave a remainder.
	AllowPartial
	// Reject means the order must not touch the book.
	Reject
)

func (v Verdict) String() string {
	switch v {
	case AllowFull:
		return "allow_full"
	case AllowPartial:
		return "allow_partial"
	case Reject:
		return "reject"
	}
	return "unknown"
}

// SideView is the read-only view of the opposing side the evaluator needs.
type SideView interface {
	Crossing(o *domain.Order, want int64) int64
}

// Evaluate decides, before any fill is committed, how far o may match
// against view.
func Evaluate(o *domain.Order, view SideView) Verdict {
	full := view.Crossing(o, o.Remaining) >= o.Remaining
	if _, ok := o.Condition.(domain.FillOrKill); ok && !full {
		return Reject
	}
	if full {
		return AllowFull
	}
	return AllowPartial
}

// restsRemainder reports whether an unmatched remainder of o goes on the
// book. Market orders never rest; activated stops behave as GTC.
func restsRemainder(o *domain.Order) bool {
	if o.IsMarket() {
		return false
	}
	switch o.Condition.(type) {
	case domain.GoodTillCancel, domain.Stop:
		return true
	}
	return false
}

// validateOrder checks an incoming order for internal consistency.
func validateOrder(o *domain.Order) error {
	switch o.Side {
	case domain.OrderSideBuy, domain.OrderSideSell:
	default:
		return &domain.ValidationError{Message: "side must be 'buy' or 'sell'"}
	}
	if o.Quantity <= 0 {
		return &domain.ValidationError{Message: "quantity must be a positive integer"}
	}
	switch o.Type {
	case domain.OrderTypeLimit:
		if o.Price <= 0 {
			return &domain.ValidationError{Message: "price must be greater than 0"}
		}
	case domain.OrderTypeMarket:
		if o.Price != 0 {
			return &domain.ValidationError{Message: "market orders must not include price"}
		}
	default:
		return &domain.ValidationError{Message: "type must be 'limit' or 'market'"}
	}
	switch c := o.Condition.(type) {
	case nil:
		return &domain.ValidationError{Message: "condition is required"}
	case domain.FillOrKill:
		if o.IsMarket() {
			return &domain.ValidationError{Message: "fill-or-kill orders require a limit price"}
		}
	case domain.Stop:
		if c.Trigger <= 0 {
			return &domain.ValidationError{Message: "stop orders require a trigger price greater than 0"}
		}
	}
	return nil
}
