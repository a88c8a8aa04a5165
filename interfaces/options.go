package interfaces

import (
	"context"
	"time"
)

// Direction is the side the position was opened on
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

// Opposite returns the side a closing trade executes on
func (d Direction) Opposite() Direction {
	if d == DirectionSell {
		return DirectionBuy
	}
	return DirectionSell
}

// OptionType is CALL or PUT
type OptionType string

const (
	OptionCall OptionType = "CALL"
	OptionPut  OptionType = "PUT"
)

// PositionStatus is the lifecycle state of an option position
type PositionStatus string

const (
	StatusOpen      PositionStatus = "OPEN"
	StatusClosed    PositionStatus = "CLOSED"
	StatusExpired   PositionStatus = "EXPIRED"
	StatusExercised PositionStatus = "EXERCISED"
	StatusLapsed    PositionStatus = "LAPSED"
)

// Terminal reports whether no further transition is possible
func (s PositionStatus) Terminal() bool {
	switch s {
	case StatusClosed, StatusExercised, StatusLapsed:
		return true
	}
	return false
}

// DefaultSharesPerContract is the contract multiplier used when a trade omits it
const DefaultSharesPerContract = 500

// OptionPosition is the net exposure to one option contract
type OptionPosition struct {
	ID          string         `json:"id"`
	StockSymbol string         `json:"stock_symbol"`
	OptionCode  string         `json:"option_code,omitempty"` // contract code used for live quotes
	Direction   Direction      `json:"direction"`
	OptionType  OptionType     `json:"option_type"`
	StrikePrice float64        `json:"strike_price"`
	ExpiryDate  time.Time      `json:"expiry_date"`
	Status      PositionStatus `json:"status"`

	// Reference prices for expiry resolution
	LastStockPrice    *float64 `json:"last_stock_price,omitempty"`
	StockPriceAtClose *float64 `json:"stock_price_at_close,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TradeEvent is one fill against a position
type TradeEvent struct {
	ID                uint      `json:"id"`
	PositionID        string    `json:"position_id"`
	Type              string    `json:"type"` // OPEN, ADD, REDUCE, CLOSE or OPEN_SELL, OPEN_BUY, CLOSE_SELL, CLOSE_BUY
	Contracts         int       `json:"contracts"`
	Premium           float64   `json:"premium"` // per share
	SharesPerContract int       `json:"shares_per_contract"`
	Fee               float64   `json:"fee"`
	TradeDate         time.Time `json:"trade_date"`
	MarginPercent     *float64  `json:"margin_percent,omitempty"`
	StockPrice        *float64  `json:"stock_price,omitempty"` // underlying price when the trade was made
	Notes             string    `json:"notes,omitempty"`
}

// Greeks as supplied by the market-data provider
type Greeks struct {
	Delta             float64 `json:"delta"`
	Gamma             float64 `json:"gamma"`
	Theta             float64 `json:"theta"`
	Vega              float64 `json:"vega"`
	ImpliedVolatility float64 `json:"implied_volatility"`
}

// LiveQuote is the latest price snapshot for a canonical symbol
type LiveQuote struct {
	Symbol       string    `json:"symbol"`
	CurrentPrice float64   `json:"current_price"`
	LastPrice    float64   `json:"last_price"`
	Greeks       *Greeks   `json:"greeks,omitempty"`
	OpenInterest *int64    `json:"open_interest,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Price returns the current price, falling back to the last price
func (q *LiveQuote) Price() (float64, bool) {
	if q == nil {
		return 0, false
	}
	if q.CurrentPrice > 0 {
		return q.CurrentPrice, true
	}
	if q.LastPrice > 0 {
		return q.LastPrice, true
	}
	return 0, false
}

// QuoteProvider supplies live quotes keyed by canonical "MARKET.CODE" symbols
type QuoteProvider interface {
	GetQuote(ctx context.Context, symbol string) (*LiveQuote, error)
}

// RefreshRecord is one row of a bulk PNL refresh
type RefreshRecord struct {
	PositionID       string    `json:"position_id"`
	CanonicalSymbol  string    `json:"canonical_symbol"`
	CurrentPrice     float64   `json:"current_price"`
	UnrealizedPNL    float64   `json:"unrealized_pnl"`
	NetPNL           float64   `json:"net_pnl"`
	ReturnPercentage float64   `json:"return_percentage"`
	RefreshedAt      time.Time `json:"refreshed_at"`
}
