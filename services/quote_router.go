package services

import (
	"context"
	"fmt"

	"optitrack/interfaces"
	"optitrack/market"
)

// QuoteRouter dispatches quote requests to a provider per market
type QuoteRouter struct {
	routes   map[market.Market]interfaces.QuoteProvider
	fallback interfaces.QuoteProvider
}

// NewQuoteRouter creates a router that uses fallback for unrouted markets
func NewQuoteRouter(fallback interfaces.QuoteProvider) *QuoteRouter {
	return &QuoteRouter{
		routes:   make(map[market.Market]interfaces.QuoteProvider),
		fallback: fallback,
	}
}

// Route sends a market's symbols to provider
func (r *QuoteRouter) Route(m market.Market, provider interfaces.QuoteProvider) *QuoteRouter {
	r.routes[m] = provider
	return r
}

// GetQuote implements interfaces.QuoteProvider
func (r *QuoteRouter) GetQuote(ctx context.Context, symbol string) (*interfaces.LiveQuote, error) {
	m, _, err := market.Split(symbol)
	if err != nil {
		return nil, err
	}

	provider, ok := r.routes[m]
	if !ok {
		provider = r.fallback
	}
	if provider == nil {
		return nil, fmt.Errorf("%w: no provider for market %s", ErrQuoteNotFound, m)
	}

	canonical, _ := market.Normalize(symbol)
	return provider.GetQuote(ctx, canonical)
}
