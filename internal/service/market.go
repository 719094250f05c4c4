package service

import (
	"context"
	"fmt"
	"time"

	"github.com/efreitasn/matchbook/internal/domain"
	"github.com/efreitasn/matchbook/internal/engine"
	"github.com/efreitasn/matchbook/internal/store"
)

// PriceResponse represents the response for GET /markets/{market}/price.
type PriceResponse struct {
	Market         string
	CurrentPrice   *int64 // nil when no trades ever
	Window         string // e.g. "5m"
	TradesInWindow int
	LastTradeAt    *time.Time // nil when no trades ever
	MarketPrice    int64      // reference price for stops, 0 if never set
}

// MarketService handles depth, book, quote, price and trade history
// queries. Every read goes through the market's sequencer, so it sees the
// book between commands.
type MarketService struct {
	markets    *engine.Manager
	trades     *store.TradeStore
	vwapWindow time.Duration
	maxDepth   int
}

// NewMarketService creates a new MarketService with the given dependencies.
func NewMarketService(
	markets *engine.Manager,
	trades *store.TradeStore,
	vwapWindow time.Duration,
	maxDepth int,
) *MarketService {
	return &MarketService{
		markets:    markets,
		trades:     trades,
		vwapWindow: vwapWindow,
		maxDepth:   maxDepth,
	}
}

// ListMarkets returns the open markets in lexical order.
func (s *MarketService) ListMarkets() []string {
	return s.markets.Markets()
}

// GetDepth returns up to levels aggregated levels per side.
func (s *MarketService) GetDepth(ctx context.Context, market string, levels int) (engine.DepthSnapshot, error) {
	seq, err := s.market(market)
	if err != nil {
		return engine.DepthSnapshot{}, err
	}
	if levels < 1 || levels > s.maxDepth {
		return engine.DepthSnapshot{}, &domain.ValidationError{
			Message: fmt.Sprintf("levels must be between 1 and %d", s.maxDepth),
		}
	}
	return seq.Depth(ctx, levels)
}

// GetBook returns every resting and dormant order of a market.
func (s *MarketService) GetBook(ctx context.Context, market string) (engine.FullSnapshot, error) {
	seq, err := s.market(market)
	if err != nil {
		return engine.FullSnapshot{}, err
	}
	return seq.Snapshot(ctx)
}

// GetQuote simulates a market order against the current book and returns
// the estimated result without placing an order.
func (s *MarketService) GetQuote(ctx context.Context, market string, side domain.OrderSide, quantity int64) (engine.QuoteResult, error) {
	seq, err := s.market(market)
	if err != nil {
		return engine.QuoteResult{}, err
	}
	if side != domain.OrderSideBuy && side != domain.OrderSideSell {
		return engine.QuoteResult{}, &domain.ValidationError{
			Message: "side must be 'buy' or 'sell'",
		}
	}
	if quantity <= 0 {
		return engine.QuoteResult{}, &domain.ValidationError{
			Message: "quantity must be a positive integer",
		}
	}
	return seq.Quote(ctx, side, quantity)
}

// GetPrice returns the last traded price of a market, computed as VWAP
// over the configured window. It falls back to the last trade's price if
// no trades exist in the window, and to a null price if none ever did.
func (s *MarketService) GetPrice(ctx context.Context, market string) (*PriceResponse, error) {
	seq, err := s.market(market)
	if err != nil {
		return nil, err
	}
	depth, err := seq.Depth(ctx, 0)
	if err != nil {
		return nil, err
	}

	vwap := s.trades.VWAP(market, time.Now().Add(-s.vwapWindow))
	return &PriceResponse{
		Market:         market,
		CurrentPrice:   vwap.Price,
		Window:         formatDuration(s.vwapWindow),
		TradesInWindow: vwap.TradesInWindow,
		LastTradeAt:    vwap.LastTradeAt,
		MarketPrice:    depth.MarketPrice,
	}, nil
}

// ListTrades returns up to limit recent trades, newest first.
func (s *MarketService) ListTrades(market string, limit int) ([]*domain.Trade, error) {
	if _, err := s.market(market); err != nil {
		return nil, err
	}
	if limit < 1 || limit > 1000 {
		return nil, &domain.ValidationError{
			Message: "limit must be between 1 and 1000",
		}
	}
	return s.trades.Recent(market, limit), nil
}

func (s *MarketService) market(market string) (*engine.Sequencer, error) {
	if err := ValidateMarket(market); err != nil {
		return nil, err
	}
	seq, ok := s.markets.Get(market)
	if !ok {
		return nil, fmt.Errorf("market %s: %w", market, domain.ErrMarketNotFound)
	}
	return seq, nil
}

// formatDuration converts a time.Duration to a human-readable string
// like "5m" for the window field.
func formatDuration(d time.Duration) string {
	if d == 0 {
		return "0s"
	}
	minutes := int(d.Minutes())
	if d == time.Duration(minutes)*time.Minute && minutes > 0 {
		return fmt.Sprintf("%dm", minutes)
	}
	return d.String()
}
