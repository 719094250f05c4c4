package handler

import (
	"net/http"
	"strconv"

	"github.com/efreitasn/matchbook/internal/domain"
	"github.com/efreitasn/matchbook/internal/engine"
	"github.com/efreitasn/matchbook/internal/service"
	"github.com/go-chi/chi/v5"
)

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	orderSvc *service.OrderService
	prices   prices
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orderSvc *service.OrderService, priceScale int32) *OrderHandler {
	return &OrderHandler{orderSvc: orderSvc, prices: prices(priceScale)}
}

// submitOrderRequest is the JSON request body for POST /markets/{market}/orders.
type submitOrderRequest struct {
	ClientRef    string `json:"client_ref"`
	Type         string `json:"type"`
	Side         string `json:"side"`
	Price        string `json:"price"`
	Quantity     int64  `json:"quantity"`
	Condition    string `json:"condition"`
	TriggerPrice string `json:"trigger_price"`
}

// replaceOrderRequest is the JSON request body for PATCH
// /markets/{market}/orders/{order_id}.
type replaceOrderRequest struct {
	QuantityDelta int64  `json:"quantity_delta"`
	Price         string `json:"price"`
}

// marketPriceRequest is the JSON request body for PUT
// /markets/{market}/market-price.
type marketPriceRequest struct {
	Price string `json:"price"`
}

// orderResponse is a single order. Price is null for market orders and
// trigger_price is present only on stop orders.
type orderResponse struct {
	OrderID           uint64  `json:"order_id"`
	Market            string  `json:"market"`
	ClientRef         string  `json:"client_ref"`
	Type              string  `json:"type"`
	Side              string  `json:"side"`
	Condition         string  `json:"condition"`
	Price             *string `json:"price"`
	TriggerPrice      *string `json:"trigger_price,omitempty"`
	Quantity          int64   `json:"quantity"`
	FilledQuantity    int64   `json:"filled_quantity"`
	RemainingQuantity int64   `json:"remaining_quantity"`
	Status            string  `json:"status"`
	Sequence          uint64  `json:"sequence"`
}

// tradeResponse is a single execution.
type tradeResponse struct {
	Sequence     uint64 `json:"sequence"`
	MakerOrderID uint64 `json:"maker_order_id"`
	TakerOrderID uint64 `json:"taker_order_id"`
	TakerSide    string `json:"taker_side"`
	Price        string `json:"price"`
	Quantity     int64  `json:"quantity"`
	ExecutedAt   string `json:"executed_at"`
}

// submitResponse is the outcome of a submission.
type submitResponse struct {
	Order       orderResponse   `json:"order"`
	Disposition string          `json:"disposition"`
	Reason      string          `json:"reason,omitempty"`
	Trades      []tradeResponse `json:"trades"`
}

// replaceResponse is the outcome of a replace: the cancelled original and
// the submission of its replacement.
type replaceResponse struct {
	Cancelled orderResponse  `json:"cancelled"`
	Submitted submitResponse `json:"submitted"`
}

// marketPriceResponse is the response for PUT /markets/{market}/market-price.
type marketPriceResponse struct {
	Market      string           `json:"market"`
	MarketPrice string           `json:"market_price"`
	Activated   []submitResponse `json:"activated"`
}

// SubmitOrder handles POST /markets/{market}/orders.
func (h *OrderHandler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req submitOrderRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	res, err := h.orderSvc.SubmitOrder(r.Context(), service.SubmitOrderRequest{
		Market:       chi.URLParam(r, "market"),
		ClientRef:    req.ClientRef,
		Type:         domain.OrderType(req.Type),
		Side:         domain.OrderSide(req.Side),
		Price:        req.Price,
		Quantity:     req.Quantity,
		Condition:    req.Condition,
		TriggerPrice: req.TriggerPrice,
	})
	if err != nil {
		mapError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, h.buildSubmitResponse(res))
}

// GetOrder handles GET /markets/{market}/orders/{order_id}.
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	order, err := h.orderSvc.GetOrder(r.Context(), chi.URLParam(r, "market"), orderID)
	if err != nil {
		mapError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildOrderResponse(h.prices, order))
}

// CancelOrder handles DELETE /markets/{market}/orders/{order_id}.
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	res, err := h.orderSvc.CancelOrder(r.Context(), chi.URLParam(r, "market"), orderID)
	if err != nil {
		mapError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildOrderResponse(h.prices, res.Order))
}

// ReplaceOrder handles PATCH /markets/{market}/orders/{order_id}.
func (h *OrderHandler) ReplaceOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	var req replaceOrderRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	res, err := h.orderSvc.ReplaceOrder(r.Context(), service.ReplaceOrderRequest{
		Market:        chi.URLParam(r, "market"),
		OrderID:       orderID,
		QuantityDelta: req.QuantityDelta,
		Price:         req.Price,
	})
	if err != nil {
		mapError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, replaceResponse{
		Cancelled: buildOrderResponse(h.prices, res.Cancelled.Order),
		Submitted: h.buildSubmitResponse(res.Submitted),
	})
}

// SetMarketPrice handles PUT /markets/{market}/market-price.
func (h *OrderHandler) SetMarketPrice(w http.ResponseWriter, r *http.Request) {
	var req marketPriceRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	market := chi.URLParam(r, "market")
	res, err := h.orderSvc.SetMarketPrice(r.Context(), market, req.Price)
	if err != nil {
		mapError(w, err)
		return
	}

	activated := make([]submitResponse, len(res.Activated))
	for i, a := range res.Activated {
		activated[i] = h.buildSubmitResponse(a)
	}
	WriteJSON(w, http.StatusOK, marketPriceResponse{
		Market:      market,
		MarketPrice: h.prices.format(res.Price),
		Activated:   activated,
	})
}

// parseOrderID reads the order_id path parameter, writing a 400 if it is
// not a positive integer.
func parseOrderID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "order_id"), 10, 64)
	if err != nil || id == 0 {
		WriteError(w, http.StatusBadRequest, "validation_error", "order_id must be a positive integer")
		return 0, false
	}
	return id, true
}

func (h *OrderHandler) buildSubmitResponse(res *engine.SubmitResult) submitResponse {
	return submitResponse{
		Order:       buildOrderResponse(h.prices, res.Order),
		Disposition: string(res.Disposition),
		Reason:      res.Reason,
		Trades:      buildTradeResponses(h.prices, res.Trades),
	}
}

// buildOrderResponse renders an order. Market orders carry a null price.
func buildOrderResponse(p prices, o *domain.Order) orderResponse {
	resp := orderResponse{
		OrderID:           o.ID,
		Market:            o.Market,
		ClientRef:         o.ClientRef,
		Type:              string(o.Type),
		Side:              string(o.Side),
		Condition:         string(o.Condition.Kind()),
		Quantity:          o.Quantity,
		FilledQuantity:    o.Filled,
		RemainingQuantity: o.Remaining,
		Status:            string(o.Status),
		Sequence:          o.Sequence,
	}
	if !o.IsMarket() {
		price := p.format(o.Price)
		resp.Price = &price
	}
	if stop, ok := o.Condition.(domain.Stop); ok {
		t := p.format(stop.Trigger)
		resp.TriggerPrice = &t
	}
	return resp
}

// buildTradeResponses converts domain trades to response trades.
func buildTradeResponses(p prices, trades []*domain.Trade) []tradeResponse {
	result := make([]tradeResponse, len(trades))
	for i, t := range trades {
		result[i] = tradeResponse{
			Sequence:     t.Sequence,
			MakerOrderID: t.MakerOrderID,
			TakerOrderID: t.TakerOrderID,
			TakerSide:    string(t.TakerSide),
			Price:        p.format(t.Price),
			Quantity:     t.Quantity,
			ExecutedAt:   formatTime(t.ExecutedAt),
		}
	}
	return result
}
