package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	ErrOrderNotFound        = errors.New("order_not_found")
	ErrMarketNotFound       = errors.New("market_not_found")
	ErrSubscriptionNotFound = errors.New("subscription_not_found")
)

// ValidationError represents a malformed or self-contradictory request.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// InvariantViolation reports an engine defect detected after a command.
// The affected market stops accepting mutations once one is raised.
type InvariantViolation struct {
	Market string
	Detail string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation in market %s: %s", e.Market, e.Detail)
}
