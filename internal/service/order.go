package service

import (
	"context"
	"fmt"
	"regexp"

	"github.com/efreitasn/matchbook/internal/domain"
	"github.com/efreitasn/matchbook/internal/engine"
)

var (
	marketRegex    = regexp.MustCompile(`^[A-Z0-9]{1,16}$`)
	clientRefRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{0,64}$`)
)

// SubmitOrderRequest represents the input for order submission. Prices
// are decimal strings converted to ticks at the service's price scale.
type SubmitOrderRequest struct {
	Market       string
	ClientRef    string
	Type         domain.OrderType
	Side         domain.OrderSide
	Price        string // required for limit, must be empty for market
	Quantity     int64
	Condition    string // gtc, ioc, fok or stop; empty means gtc
	TriggerPrice string // required for stop
}

// ReplaceOrderRequest represents the input for order replacement.
type ReplaceOrderRequest struct {
	Market        string
	OrderID       uint64
	QuantityDelta int64
	Price         string // empty keeps a market order unpriced
}

// OrderService validates requests at the edge and forwards them to the
// market's sequencer.
type OrderService struct {
	markets *engine.Manager
	scale   int32
}

// NewOrderService creates a new OrderService with the given dependencies.
func NewOrderService(markets *engine.Manager, priceScale int32) *OrderService {
	return &OrderService{
		markets: markets,
		scale:   priceScale,
	}
}

// SubmitOrder validates the request and submits it to the market, opening
// the market on first use.
func (s *OrderService) SubmitOrder(ctx context.Context, req SubmitOrderRequest) (*engine.SubmitResult, error) {
	if err := ValidateMarket(req.Market); err != nil {
		return nil, err
	}
	if !clientRefRegex.MatchString(req.ClientRef) {
		return nil, &domain.ValidationError{
			Message: "client_ref must match ^[a-zA-Z0-9_-]{0,64}$",
		}
	}
	if req.Type != domain.OrderTypeLimit && req.Type != domain.OrderTypeMarket {
		return nil, &domain.ValidationError{
			Message: fmt.Sprintf("Unknown order type: %s. Must be one of: limit, market", req.Type),
		}
	}
	if req.Side != domain.OrderSideBuy && req.Side != domain.OrderSideSell {
		return nil, &domain.ValidationError{
			Message: "side must be 'buy' or 'sell'",
		}
	}
	if req.Quantity <= 0 {
		return nil, &domain.ValidationError{
			Message: "quantity must be a positive integer",
		}
	}

	var price int64
	switch req.Type {
	case domain.OrderTypeLimit:
		if req.Price == "" {
			return nil, &domain.ValidationError{Message: "price is required for limit orders"}
		}
		p, err := s.parsePrice("price", req.Price)
		if err != nil {
			return nil, err
		}
		price = p
	case domain.OrderTypeMarket:
		if req.Price != "" {
			return nil, &domain.ValidationError{Message: "market orders must not include price"}
		}
	}

	var trigger int64
	if req.Condition == string(domain.ConditionStop) {
		if req.TriggerPrice == "" {
			return nil, &domain.ValidationError{Message: "trigger_price is required for stop orders"}
		}
		t, err := s.parsePrice("trigger_price", req.TriggerPrice)
		if err != nil {
			return nil, err
		}
		trigger = t
	} else if req.TriggerPrice != "" {
		return nil, &domain.ValidationError{Message: "trigger_price is only allowed for stop orders"}
	}
	cond, err := domain.ParseCondition(req.Condition, trigger)
	if err != nil {
		return nil, err
	}

	seq, err := s.markets.GetOrCreate(req.Market)
	if err != nil {
		return nil, err
	}
	return seq.Submit(ctx, &domain.Order{
		Market:    req.Market,
		ClientRef: req.ClientRef,
		Side:      req.Side,
		Type:      req.Type,
		Price:     price,
		Quantity:  req.Quantity,
		Condition: cond,
	})
}

// GetOrder returns a resting or dormant order.
func (s *OrderService) GetOrder(ctx context.Context, market string, orderID uint64) (*domain.Order, error) {
	seq, err := s.market(market)
	if err != nil {
		return nil, err
	}
	return seq.Order(ctx, orderID)
}

// CancelOrder removes a resting or dormant order.
func (s *OrderService) CancelOrder(ctx context.Context, market string, orderID uint64) (*engine.CancelResult, error) {
	seq, err := s.market(market)
	if err != nil {
		return nil, err
	}
	return seq.Cancel(ctx, orderID)
}

// ReplaceOrder cancels an order and submits its replacement.
func (s *OrderService) ReplaceOrder(ctx context.Context, req ReplaceOrderRequest) (*engine.ReplaceResult, error) {
	seq, err := s.market(req.Market)
	if err != nil {
		return nil, err
	}
	var price int64
	if req.Price != "" {
		if price, err = s.parsePrice("price", req.Price); err != nil {
			return nil, err
		}
	}
	return seq.Replace(ctx, req.OrderID, req.QuantityDelta, price)
}

// SetMarketPrice updates the reference price of a market and activates
// the stops it reaches. The market is opened if needed so stops can be
// armed against a known price.
func (s *OrderService) SetMarketPrice(ctx context.Context, market, price string) (*engine.MarketPriceResult, error) {
	if err := ValidateMarket(market); err != nil {
		return nil, err
	}
	ticks, err := s.parsePrice("price", price)
	if err != nil {
		return nil, err
	}
	seq, err := s.markets.GetOrCreate(market)
	if err != nil {
		return nil, err
	}
	return seq.SetMarketPrice(ctx, ticks)
}

func (s *OrderService) market(market string) (*engine.Sequencer, error) {
	if err := ValidateMarket(market); err != nil {
		return nil, err
	}
	seq, ok := s.markets.Get(market)
	if !ok {
		return nil, fmt.Errorf("market %s: %w", market, domain.ErrMarketNotFound)
	}
	return seq, nil
}

func (s *OrderService) parsePrice(field, value string) (int64, error) {
	ticks, err := domain.ParsePrice(value, s.scale)
	if err != nil {
		return 0, &domain.ValidationError{Message: field + ": " + err.Error()}
	}
	return ticks, nil
}

// ValidateMarket reports whether market is a well-formed symbol.
func ValidateMarket(market string) error {
	if !marketRegex.MatchString(market) {
		return &domain.ValidationError{
			Message: "market must match ^[A-Z0-9]{1,16}$",
		}
	}
	return nil
}
