package handler

import (
	"net/http"
	"strconv"

	"github.com/efreitasn/matchbook/internal/domain"
	"github.com/efreitasn/matchbook/internal/engine"
	"github.com/efreitasn/matchbook/internal/service"
	"github.com/go-chi/chi/v5"
)

// MarketHandler handles HTTP requests for market data endpoints.
type MarketHandler struct {
	marketSvc *service.MarketService
	prices    prices
}

// NewMarketHandler creates a new MarketHandler.
func NewMarketHandler(marketSvc *service.MarketService, priceScale int32) *MarketHandler {
	return &MarketHandler{marketSvc: marketSvc, prices: prices(priceScale)}
}

// marketsResponse is the JSON response for GET /markets.
type marketsResponse struct {
	Markets []string `json:"markets"`
}

// depthLevelResponse is a single aggregated price level.
type depthLevelResponse struct {
	Price         string `json:"price"`
	TotalQuantity int64  `json:"total_quantity"`
	OrderCount    int    `json:"order_count"`
}

// depthResponse is the JSON response for GET /markets/{market}/depth.
type depthResponse struct {
	Market      string               `json:"market"`
	Version     uint64               `json:"version"`
	Bids        []depthLevelResponse `json:"bids"`
	Asks        []depthLevelResponse `json:"asks"`
	Spread      *string              `json:"spread"`
	MarketPrice *string              `json:"market_price"`
}

// bookLevelResponse is a price level with its queue in time priority.
type bookLevelResponse struct {
	Price         string          `json:"price"`
	TotalQuantity int64           `json:"total_quantity"`
	Orders        []orderResponse `json:"orders"`
}

// bookResponse is the JSON response for GET /markets/{market}/book.
type bookResponse struct {
	Market      string              `json:"market"`
	Version     uint64              `json:"version"`
	Bids        []bookLevelResponse `json:"bids"`
	Asks        []bookLevelResponse `json:"asks"`
	Stops       []orderResponse     `json:"stops"`
	MarketPrice *string             `json:"market_price"`
}

// quoteLevelResponse is a single price level in the quote response.
type quoteLevelResponse struct {
	Price    string `json:"price"`
	Quantity int64  `json:"quantity"`
}

// quoteResponse is the JSON response for GET /markets/{market}/quote.
type quoteResponse struct {
	Market            string               `json:"market"`
	Side              string               `json:"side"`
	QuantityRequested int64                `json:"quantity_requested"`
	QuantityAvailable int64                `json:"quantity_available"`
	FullyFillable     bool                 `json:"fully_fillable"`
	EstimatedAvgPrice *string              `json:"estimated_average_price"`
	EstimatedTotal    *string              `json:"estimated_total"`
	PriceLevels       []quoteLevelResponse `json:"price_levels"`
}

// priceResponse is the JSON response for GET /markets/{market}/price.
type priceResponse struct {
	Market       string  `json:"market"`
	CurrentPrice *string `json:"current_price"`
	Window       string  `json:"window"`
	TradesInWin  int     `json:"trades_in_window"`
	LastTradeAt  *string `json:"last_trade_at"`
	MarketPrice  *string `json:"market_price"`
}

// tradesResponse is the JSON response for GET /markets/{market}/trades.
type tradesResponse struct {
	Market string          `json:"market"`
	Trades []tradeResponse `json:"trades"`
}

// ListMarkets handles GET /markets.
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, marketsResponse{Markets: h.marketSvc.ListMarkets()})
}

// GetDepth handles GET /markets/{market}/depth.
func (h *MarketHandler) GetDepth(w http.ResponseWriter, r *http.Request) {
	// Parse levels query param (default 10).
	levels := 10
	if l := r.URL.Query().Get("levels"); l != "" {
		var err error
		levels, err = strconv.Atoi(l)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "levels must be a valid integer")
			return
		}
	}

	depth, err := h.marketSvc.GetDepth(r.Context(), chi.URLParam(r, "market"), levels)
	if err != nil {
		mapError(w, err)
		return
	}

	resp := depthResponse{
		Market:      depth.Market,
		Version:     depth.Version,
		Bids:        h.depthLevels(depth.Bids),
		Asks:        h.depthLevels(depth.Asks),
		Spread:      h.prices.formatPtr(depth.Spread),
		MarketPrice: h.marketPrice(depth.MarketPrice),
	}
	WriteJSON(w, http.StatusOK, resp)
}

// GetBook handles GET /markets/{market}/book.
func (h *MarketHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	snap, err := h.marketSvc.GetBook(r.Context(), chi.URLParam(r, "market"))
	if err != nil {
		mapError(w, err)
		return
	}

	stops := make([]orderResponse, len(snap.Stops))
	for i, o := range snap.Stops {
		stops[i] = buildOrderResponse(h.prices, o)
	}

	WriteJSON(w, http.StatusOK, bookResponse{
		Market:      snap.Market,
		Version:     snap.Version,
		Bids:        h.bookLevels(snap.Bids),
		Asks:        h.bookLevels(snap.Asks),
		Stops:       stops,
		MarketPrice: h.marketPrice(snap.MarketPrice),
	})
}

// GetQuote handles GET /markets/{market}/quote.
func (h *MarketHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	side := r.URL.Query().Get("side")
	quantityStr := r.URL.Query().Get("quantity")

	// Parse quantity.
	quantity, err := strconv.ParseInt(quantityStr, 10, 64)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", "quantity must be a positive integer")
		return
	}

	market := chi.URLParam(r, "market")
	quote, err := h.marketSvc.GetQuote(r.Context(), market, domain.OrderSide(side), quantity)
	if err != nil {
		mapError(w, err)
		return
	}

	priceLevels := make([]quoteLevelResponse, len(quote.PriceLevels))
	for i, pl := range quote.PriceLevels {
		priceLevels[i] = quoteLevelResponse{
			Price:    h.prices.format(pl.Price),
			Quantity: pl.Quantity,
		}
	}

	WriteJSON(w, http.StatusOK, quoteResponse{
		Market:            market,
		Side:              string(quote.Side),
		QuantityRequested: quote.QuantityRequested,
		QuantityAvailable: quote.QuantityAvailable,
		FullyFillable:     quote.FullyFillable,
		EstimatedAvgPrice: h.prices.formatPtr(quote.EstimatedAvgPrice),
		EstimatedTotal:    h.prices.formatNotional(quote.EstimatedTotal),
		PriceLevels:       priceLevels,
	})
}

// GetPrice handles GET /markets/{market}/price.
func (h *MarketHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	price, err := h.marketSvc.GetPrice(r.Context(), chi.URLParam(r, "market"))
	if err != nil {
		mapError(w, err)
		return
	}

	resp := priceResponse{
		Market:       price.Market,
		CurrentPrice: h.prices.formatPtr(price.CurrentPrice),
		Window:       price.Window,
		TradesInWin:  price.TradesInWindow,
		MarketPrice:  h.marketPrice(price.MarketPrice),
	}
	if price.LastTradeAt != nil {
		s := formatTime(*price.LastTradeAt)
		resp.LastTradeAt = &s
	}

	WriteJSON(w, http.StatusOK, resp)
}

// ListTrades handles GET /markets/{market}/trades.
func (h *MarketHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		var err error
		limit, err = strconv.Atoi(l)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "limit must be a valid integer")
			return
		}
	}

	market := chi.URLParam(r, "market")
	trades, err := h.marketSvc.ListTrades(market, limit)
	if err != nil {
		mapError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, tradesResponse{
		Market: market,
		Trades: buildTradeResponses(h.prices, trades),
	})
}

func (h *MarketHandler) depthLevels(levels []engine.DepthLevel) []depthLevelResponse {
	out := make([]depthLevelResponse, len(levels))
	for i, l := range levels {
		out[i] = depthLevelResponse{
			Price:         h.prices.format(l.Price),
			TotalQuantity: l.Quantity,
			OrderCount:    l.OrderCount,
		}
	}
	return out
}

func (h *MarketHandler) bookLevels(levels []engine.LevelSnapshot) []bookLevelResponse {
	out := make([]bookLevelResponse, len(levels))
	for i, l := range levels {
		queue := make([]orderResponse, len(l.Orders))
		for j, o := range l.Orders {
			queue[j] = buildOrderResponse(h.prices, o)
		}
		out[i] = bookLevelResponse{
			Price:         h.prices.format(l.Price),
			TotalQuantity: l.Quantity,
			Orders:        queue,
		}
	}
	return out
}

// marketPrice renders the reference price, null until one is set.
func (h *MarketHandler) marketPrice(ticks int64) *string {
	if ticks == 0 {
		return nil
	}
	return h.prices.formatPtr(&ticks)
}
