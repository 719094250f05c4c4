package domain

import "fmt"

// Condition is the closed set of order qualifiers. Only the types in
// this file implement it.
type Condition interface {
	Kind() ConditionKind
	condition()
}

// ConditionKind names a Condition variant on the wire.
type ConditionKind string

const (
	ConditionGTC  ConditionKind = "gtc"
	ConditionIOC  ConditionKind = "ioc"
	ConditionFOK  ConditionKind = "fok"
	ConditionStop ConditionKind = "stop"
)

// GoodTillCancel rests any unmatched remainder on the book.
type GoodTillCancel struct{}

// ImmediateOrCancel fills what crosses now and discards the rest.
type ImmediateOrCancel struct{}

// FillOrKill executes completely or not at all.
type FillOrKill struct{}

// Stop stays dormant until the reference price reaches Trigger, then
// enters the book as a good-till-cancel order.
type Stop struct {
	Trigger int64
}

func (GoodTillCancel) Kind() ConditionKind    { return ConditionGTC }
func (ImmediateOrCancel) Kind() ConditionKind { return ConditionIOC }
func (FillOrKill) Kind() ConditionKind        { return ConditionFOK }
func (Stop) Kind() ConditionKind              { return ConditionStop }

func (GoodTillCancel) condition()    {}
func (ImmediateOrCancel) condition() {}
func (FillOrKill) condition()        {}
func (Stop) condition()              {}

// Triggered reports whether a reference price activates a stop on the
// given side: buy stops fire at or above the trigger, sell stops at or
// below it.
func (s Stop) Triggered(side OrderSide, price int64) bool {
	if price <= 0 {
		return false
	}
	if side == OrderSideBuy {
		return price >= s.Trigger
	}
	return price <= s.Trigger
}

// ParseCondition builds a Condition from its wire kind. trigger is only
// consulted for stop orders.
func ParseCondition(kind string, trigger int64) (Condition, error) {
	switch ConditionKind(kind) {
	case "", ConditionGTC:
		return GoodTillCancel{}, nil
	case ConditionIOC:
		return ImmediateOrCancel{}, nil
	case ConditionFOK:
		return FillOrKill{}, nil
	case ConditionStop:
		return Stop{Trigger: trigger}, nil
	}
	return nil, &ValidationError{
		Message: fmt.Sprintf("Unknown condition: %s. Must be one of: gtc, ioc, fok, stop", kind),
	}
}
