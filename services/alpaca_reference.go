package services

import (
	"context"
	"fmt"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/sirupsen/logrus"

	"optitrack/interfaces"
	"optitrack/market"
)

// latestTradeSource is the part of the Alpaca market data client we use
type latestTradeSource interface {
	GetLatestTrade(symbol string, req marketdata.GetLatestTradeRequest) (*marketdata.Trade, error)
}

// AlpacaReferenceClient supplies US stock prices from Alpaca market data.
// It is used for underlying reference prices, not option premiums.
type AlpacaReferenceClient struct {
	client latestTradeSource
	logger *logrus.Logger
}

// NewAlpacaReferenceClient creates a new Alpaca reference price client
func NewAlpacaReferenceClient(apiKey, secretKey string) *AlpacaReferenceClient {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	return &AlpacaReferenceClient{
		client: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:    apiKey,
			APISecret: secretKey,
		}),
		logger: logger,
	}
}

// SetLogger replaces the client logger
func (c *AlpacaReferenceClient) SetLogger(l *logrus.Logger) {
	c.logger = l
}

// GetQuote returns the latest trade price of a US stock as a quote
func (c *AlpacaReferenceClient) GetQuote(ctx context.Context, symbol string) (*interfaces.LiveQuote, error) {
	m, code, err := market.Split(symbol)
	if err != nil {
		return nil, err
	}
	if m != market.US {
		return nil, fmt.Errorf("%w: alpaca serves US symbols only, got %s", ErrQuoteNotFound, symbol)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	trade, err := c.client.GetLatestTrade(code, marketdata.GetLatestTradeRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to get latest trade for %s: %w", symbol, err)
	}
	if trade == nil || trade.Price <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrQuoteNotFound, symbol)
	}

	c.logger.WithFields(logrus.Fields{
		"symbol": symbol,
		"price":  trade.Price,
	}).Debug("Fetched reference price")

	return &interfaces.LiveQuote{
		Symbol:       "US." + code,
		CurrentPrice: trade.Price,
		LastPrice:    trade.Price,
		Timestamp:    trade.Timestamp,
	}, nil
}
