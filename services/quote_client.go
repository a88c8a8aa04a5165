package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"optitrack/interfaces"
	"optitrack/market"
)

// ErrQuoteNotFound is returned when the provider has no quote for a symbol
var ErrQuoteNotFound = errors.New("quote not found")

// GatewayQuoteClient fetches quotes from an HTTP quote gateway. The gateway
// answers with bare codes plus a numeric market id, which are re-keyed to
// canonical symbols.
type GatewayQuoteClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
	logger  *logrus.Logger
}

// NewGatewayQuoteClient creates a new gateway quote client. ratePerSec limits
// outgoing requests; zero or less disables the limit.
func NewGatewayQuoteClient(baseURL, apiKey string, ratePerSec float64) *GatewayQuoteClient {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	limit := rate.Inf
	if ratePerSec > 0 {
		limit = rate.Limit(ratePerSec)
	}

	return &GatewayQuoteClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// SetLogger replaces the client logger
func (c *GatewayQuoteClient) SetLogger(l *logrus.Logger) {
	c.logger = l
}

// gatewayQuoteResponse is the gateway's batch quote payload
type gatewayQuoteResponse struct {
	Quotes []gatewayQuote `json:"quotes"`
}

// gatewayQuote represents one quote row from the gateway
type gatewayQuote struct {
	Code              string   `json:"code"`
	Market            int      `json:"market"`
	CurPrice          float64  `json:"cur_price"`
	LastPrice         float64  `json:"last_price"`
	Delta             *float64 `json:"delta,omitempty"`
	Gamma             float64  `json:"gamma,omitempty"`
	Theta             float64  `json:"theta,omitempty"`
	Vega              float64  `json:"vega,omitempty"`
	ImpliedVolatility float64  `json:"implied_volatility,omitempty"`
	OpenInterest      *int64   `json:"open_interest,omitempty"`
	UpdateTime        int64    `json:"update_time"` // unix seconds
}

// GetQuote returns the latest quote for one canonical symbol
func (c *GatewayQuoteClient) GetQuote(ctx context.Context, symbol string) (*interfaces.LiveQuote, error) {
	quotes, err := c.GetQuotes(ctx, []string{symbol})
	if err != nil {
		return nil, err
	}

	canonical, err := market.Normalize(symbol)
	if err != nil {
		return nil, err
	}

	quote, ok := quotes[canonical]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrQuoteNotFound, canonical)
	}
	return quote, nil
}

// GetQuotes fetches quotes for many symbols in one request. Symbols missing
// from the response are absent from the returned map.
func (c *GatewayQuoteClient) GetQuotes(ctx context.Context, symbols []string) (map[string]*interfaces.LiveQuote, error) {
	codes := make([]string, 0, len(symbols))
	for _, s := range symbols {
		canonical, err := market.Normalize(s)
		if err != nil {
			c.logger.WithError(err).WithField("symbol", s).Warn("Skipping unresolvable symbol")
			continue
		}
		codes = append(codes, canonical)
	}
	if len(codes) == 0 {
		return map[string]*interfaces.LiveQuote{}, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("quote rate limiter: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/quotes?codes=%s", c.baseURL, url.QueryEscape(strings.Join(codes, ",")))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-KEY", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch quotes: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	var payload gatewayQuoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode quotes: %w", err)
	}

	quotes := make(map[string]*interfaces.LiveQuote, len(payload.Quotes))
	for _, q := range payload.Quotes {
		canonical, err := market.FromProvider(q.Market, q.Code)
		if err != nil {
			c.logger.WithError(err).Warn("Dropping quote with unknown market")
			continue
		}
		quotes[canonical] = q.toLiveQuote(canonical)
	}

	c.logger.WithFields(logrus.Fields{
		"requested": len(codes),
		"received":  len(quotes),
	}).Debug("Fetched quotes")

	return quotes, nil
}

func (q gatewayQuote) toLiveQuote(canonical string) *interfaces.LiveQuote {
	quote := &interfaces.LiveQuote{
		Symbol:       canonical,
		CurrentPrice: q.CurPrice,
		LastPrice:    q.LastPrice,
		OpenInterest: q.OpenInterest,
		Timestamp:    time.Now(),
	}
	if q.UpdateTime > 0 {
		quote.Timestamp = time.Unix(q.UpdateTime, 0)
	}
	if q.Delta != nil {
		quote.Greeks = &interfaces.Greeks{
			Delta:             *q.Delta,
			Gamma:             q.Gamma,
			Theta:             q.Theta,
			Vega:              q.Vega,
			ImpliedVolatility: q.ImpliedVolatility,
		}
	}
	return quote
}
