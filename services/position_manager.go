package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"optitrack/interfaces"
	"optitrack/market"
	"optitrack/pnl"
)

// ErrInvalidRequest is returned for malformed requests that never reach the ledger
var ErrInvalidRequest = errors.New("invalid request")

// BatchQuoteProvider is implemented by providers that can quote many symbols at once
type BatchQuoteProvider interface {
	GetQuotes(ctx context.Context, symbols []string) (map[string]*interfaces.LiveQuote, error)
}

// OpenPositionRequest represents a request to open a position with its first trade
type OpenPositionRequest struct {
	StockSymbol string       `json:"stock_symbol" binding:"required"`
	OptionCode  string       `json:"option_code"`
	Direction   string       `json:"direction" binding:"required"`   // BUY or SELL
	OptionType  string       `json:"option_type" binding:"required"` // CALL or PUT
	StrikePrice float64      `json:"strike_price" binding:"required,gt=0"`
	ExpiryDate  string       `json:"expiry_date" binding:"required"` // YYYY-MM-DD
	Trade       TradeRequest `json:"trade" binding:"required"`
}

// TradeRequest represents one trade to record
type TradeRequest struct {
	Type              string   `json:"type" binding:"required"`
	Contracts         int      `json:"contracts"`
	Premium           float64  `json:"premium"`
	SharesPerContract int      `json:"shares_per_contract"`
	Fee               float64  `json:"fee"`
	TradeDate         string   `json:"trade_date" binding:"required"` // YYYY-MM-DD
	MarginPercent     *float64 `json:"margin_percent,omitempty"`
	StockPrice        *float64 `json:"stock_price,omitempty"`
	Notes             string   `json:"notes,omitempty"`
}

// PositionView is a position with its ledger and derived summary
type PositionView struct {
	Position    *interfaces.OptionPosition `json:"position"`
	Trades      []*interfaces.TradeEvent   `json:"trades"`
	Summary     pnl.Summary                `json:"summary"`
	Quote       *interfaces.LiveQuote      `json:"quote,omitempty"`
	PriceSource string                     `json:"price_source"` // live, snapshot, none
}

// Transition is a lifecycle change applied by the expiry sweep
type Transition struct {
	PositionID            string                    `json:"position_id"`
	Symbol                string                    `json:"symbol"`
	From                  interfaces.PositionStatus `json:"from"`
	To                    interfaces.PositionStatus `json:"to"`
	ReferencePrice        *float64                  `json:"reference_price,omitempty"`
	NeedsManualResolution bool                      `json:"needs_manual_resolution"`
}

// PositionManager runs the ledger, PNL and lifecycle use cases over a store
// and a quote provider
type PositionManager struct {
	store      interfaces.PositionStore
	quotes     interfaces.QuoteProvider
	references interfaces.QuoteProvider
	cache      SummaryCache
	activity   *ActivityLogger
	metrics    *RefreshMetrics
	logger     *logrus.Logger
	now        func() time.Time
}

// PositionManagerOption configures optional collaborators
type PositionManagerOption func(*PositionManager)

// WithReferenceProvider sets the provider of underlying stock prices
func WithReferenceProvider(p interfaces.QuoteProvider) PositionManagerOption {
	return func(pm *PositionManager) { pm.references = p }
}

// WithSummaryCache enables summary caching
func WithSummaryCache(c SummaryCache) PositionManagerOption {
	return func(pm *PositionManager) { pm.cache = c }
}

// WithActivityLogger journals mutations and transitions
func WithActivityLogger(a *ActivityLogger) PositionManagerOption {
	return func(pm *PositionManager) { pm.activity = a }
}

// WithMetrics instruments refresh and sweep
func WithMetrics(m *RefreshMetrics) PositionManagerOption {
	return func(pm *PositionManager) { pm.metrics = m }
}

// WithLogger replaces the default logger
func WithLogger(l *logrus.Logger) PositionManagerOption {
	return func(pm *PositionManager) { pm.logger = l }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) PositionManagerOption {
	return func(pm *PositionManager) { pm.now = now }
}

// NewPositionManager creates a new position manager
func NewPositionManager(store interfaces.PositionStore, quotes interfaces.QuoteProvider, opts ...PositionManagerOption) *PositionManager {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	pm := &PositionManager{
		store:  store,
		quotes: quotes,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(pm)
	}
	if pm.references == nil {
		pm.references = quotes
	}

	return pm
}

// CreatePosition opens a position with its first trade
func (pm *PositionManager) CreatePosition(ctx context.Context, req *OpenPositionRequest) (*interfaces.OptionPosition, error) {
	position, err := pm.positionFromRequest(req)
	if err != nil {
		return nil, err
	}
	first, err := tradeFromRequest(&req.Trade)
	if err != nil {
		return nil, err
	}

	if err := pm.store.CreatePositionWithTrade(position, first); err != nil {
		return nil, fmt.Errorf("failed to open position: %w", err)
	}

	pm.logger.WithFields(logrus.Fields{
		"position_id": position.ID,
		"symbol":      position.StockSymbol,
		"direction":   position.Direction,
		"option_type": position.OptionType,
		"strike":      position.StrikePrice,
		"expiry":      position.ExpiryDate.Format("2006-01-02"),
		"contracts":   first.Contracts,
	}).Info("Position opened")

	if pm.activity != nil {
		if err := pm.activity.LogPositionOpened(position, first); err != nil {
			pm.logger.WithError(err).Warn("Failed to journal position")
		}
	}

	return position, nil
}

// AddTrade records a trade against a position
func (pm *PositionManager) AddTrade(ctx context.Context, positionID string, req *TradeRequest) (*interfaces.OptionPosition, *interfaces.TradeEvent, error) {
	trade, err := tradeFromRequest(req)
	if err != nil {
		return nil, nil, err
	}

	before, err := pm.store.GetPosition(positionID)
	if err != nil {
		return nil, nil, err
	}

	position, err := pm.store.AddTrade(positionID, trade)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to add trade: %w", err)
	}

	if pm.activity != nil {
		if err := pm.activity.LogTradeRecorded(position, trade); err != nil {
			pm.logger.WithError(err).Warn("Failed to journal trade")
		}
		if before.Status != position.Status {
			if err := pm.activity.LogStatusChange(position, before.Status, position.Status, position.StockPriceAtClose); err != nil {
				pm.logger.WithError(err).Warn("Failed to journal status change")
			}
		}
	}

	return position, trade, nil
}

// DeleteTrade removes a trade from a position's ledger
func (pm *PositionManager) DeleteTrade(ctx context.Context, positionID string, tradeID uint) (*interfaces.OptionPosition, error) {
	before, err := pm.store.GetPosition(positionID)
	if err != nil {
		return nil, err
	}

	position, err := pm.store.DeleteTrade(positionID, tradeID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete trade: %w", err)
	}

	if pm.activity != nil {
		if err := pm.activity.LogTradeDeleted(positionID, tradeID); err != nil {
			pm.logger.WithError(err).Warn("Failed to journal trade deletion")
		}
		if before.Status != position.Status {
			if err := pm.activity.LogStatusChange(position, before.Status, position.Status, position.StockPriceAtClose); err != nil {
				pm.logger.WithError(err).Warn("Failed to journal status change")
			}
		}
	}
	return position, nil
}

// DeletePosition deletes a position and its trades
func (pm *PositionManager) DeletePosition(ctx context.Context, positionID string) error {
	if err := pm.store.DeletePosition(positionID); err != nil {
		return fmt.Errorf("failed to delete position: %w", err)
	}

	if pm.activity != nil {
		if err := pm.activity.LogPositionDeleted(positionID); err != nil {
			pm.logger.WithError(err).Warn("Failed to journal position deletion")
		}
	}
	return nil
}

// ListPositions returns positions, optionally filtered by status
func (pm *PositionManager) ListPositions(status string) ([]*interfaces.OptionPosition, error) {
	return pm.store.ListPositions(interfaces.PositionStatus(strings.ToUpper(status)))
}

// GetPosition returns a position record
func (pm *PositionManager) GetPosition(positionID string) (*interfaces.OptionPosition, error) {
	return pm.store.GetPosition(positionID)
}

// GetSummary returns a position with its trades and summary. With live set,
// the option is quoted first; on failure the last refresh snapshot price is
// used instead.
func (pm *PositionManager) GetSummary(ctx context.Context, positionID string, live bool) (*PositionView, error) {
	position, err := pm.store.GetPosition(positionID)
	if err != nil {
		return nil, err
	}
	trades, err := pm.store.GetTrades(positionID)
	if err != nil {
		return nil, err
	}

	view := &PositionView{Position: position, Trades: trades, PriceSource: "none"}

	var price *float64
	if live && position.OptionCode != "" {
		quote, err := pm.quotes.GetQuote(ctx, position.OptionCode)
		if err != nil {
			pm.logger.WithError(err).WithField("position_id", positionID).Warn("Live quote unavailable")
		} else if p, ok := quote.Price(); ok {
			price = &p
			view.Quote = quote
			view.PriceSource = "live"
		}
	}
	if price == nil {
		if snapshot, err := pm.store.GetRefreshSnapshot(positionID); err == nil && snapshot.CurrentPrice > 0 {
			p := snapshot.CurrentPrice
			price = &p
			view.PriceSource = "snapshot"
		}
	}

	view.Summary = pm.summarize(ctx, position, trades, price).Rounded()
	return view, nil
}

// RefreshOpenPositions recomputes PNL for every open position from live
// quotes. Positions without a resolvable symbol or quote are left out and
// keep their previous snapshot.
func (pm *PositionManager) RefreshOpenPositions(ctx context.Context) ([]interfaces.RefreshRecord, error) {
	return pm.refresh(ctx, func(string) bool { return true })
}

func (pm *PositionManager) refresh(ctx context.Context, include func(canonical string) bool) ([]interfaces.RefreshRecord, error) {
	started := pm.now()

	positions, err := pm.store.ListPositions(interfaces.StatusOpen)
	if err != nil {
		return nil, fmt.Errorf("failed to list open positions: %w", err)
	}

	symbols := make(map[string]string, len(positions)) // position id -> canonical
	wanted := make([]string, 0, len(positions))
	for _, position := range positions {
		canonical, err := market.Normalize(position.OptionCode)
		if err != nil {
			pm.metrics.observeSkipped("no_symbol")
			continue
		}
		if !include(canonical) {
			continue
		}
		symbols[position.ID] = canonical
		wanted = append(wanted, canonical)
	}

	quotes := pm.fetchQuotes(ctx, wanted)

	records := make([]interfaces.RefreshRecord, 0, len(symbols))
	for _, position := range positions {
		canonical, ok := symbols[position.ID]
		if !ok {
			continue
		}

		price, ok := quotes[canonical].Price()
		if !ok {
			pm.metrics.observeSkipped("no_quote")
			pm.logger.WithFields(logrus.Fields{
				"position_id": position.ID,
				"symbol":      canonical,
			}).Debug("No quote, keeping previous values")
			continue
		}

		trades, err := pm.store.GetTrades(position.ID)
		if err != nil {
			pm.metrics.observeSkipped("store_error")
			pm.logger.WithError(err).WithField("position_id", position.ID).Error("Failed to load trades")
			continue
		}

		summary := pm.summarize(ctx, position, trades, &price)
		record := interfaces.RefreshRecord{
			PositionID:       position.ID,
			CanonicalSymbol:  canonical,
			CurrentPrice:     price,
			UnrealizedPNL:    summary.UnrealizedPNL,
			NetPNL:           summary.NetPNL,
			ReturnPercentage: summary.ReturnPercentage,
			RefreshedAt:      pm.now(),
		}
		if err := pm.store.SaveRefreshSnapshot(&record); err != nil {
			pm.logger.WithError(err).WithField("position_id", position.ID).Warn("Failed to save refresh snapshot")
		}

		pm.refreshStockPrice(ctx, position)

		records = append(records, record)
		pm.metrics.observeRefreshed()
	}

	pm.metrics.observeDuration(pm.now().Sub(started).Seconds())

	pm.logger.WithFields(logrus.Fields{
		"open":      len(positions),
		"refreshed": len(records),
	}).Info("Refresh cycle complete")

	if pm.activity != nil {
		if err := pm.activity.LogRefresh(len(records), len(positions)-len(records)); err != nil {
			pm.logger.WithError(err).Warn("Failed to journal refresh")
		}
	}

	return records, nil
}

// SweepExpirations applies the time-driven lifecycle transitions to open and
// expired positions
func (pm *PositionManager) SweepExpirations(ctx context.Context, now time.Time) ([]Transition, error) {
	transitions := make([]Transition, 0)

	for _, status := range []interfaces.PositionStatus{interfaces.StatusOpen, interfaces.StatusExpired} {
		positions, err := pm.store.ListPositions(status)
		if err != nil {
			return transitions, fmt.Errorf("failed to list %s positions: %w", status, err)
		}

		for _, position := range positions {
			if !position.ExpiryDate.Before(now) {
				continue
			}

			transition, err := pm.resolvePosition(ctx, position, now)
			if err != nil {
				pm.logger.WithError(err).WithField("position_id", position.ID).Error("Failed to resolve position")
				continue
			}
			if transition != nil {
				transitions = append(transitions, *transition)
			}
		}
	}

	return transitions, nil
}

func (pm *PositionManager) resolvePosition(ctx context.Context, position *interfaces.OptionPosition, now time.Time) (*Transition, error) {
	trades, err := pm.store.GetTrades(position.ID)
	if err != nil {
		return nil, err
	}
	totals := pnl.Aggregate(trades)

	in := pnl.StatusInput{
		Current:           position.Status,
		NetContracts:      totals.NetContracts,
		OptionType:        position.OptionType,
		StrikePrice:       position.StrikePrice,
		ExpiryDate:        position.ExpiryDate,
		Now:               now,
		Location:          exchangeLocation(position.StockSymbol),
		StockPriceAtClose: position.StockPriceAtClose,
		LastStockPrice:    position.LastStockPrice,
	}

	res := pnl.Resolve(in)
	if res.NeedsManualResolution {
		// Past expiry, so a fresh underlying price is a valid reference
		if price := pm.refreshStockPrice(ctx, position); price != nil {
			in.LastStockPrice = price
			res = pnl.Resolve(in)
		}
	}

	if res.Status == position.Status {
		return nil, nil
	}

	if err := pm.store.UpdatePositionStatus(position.ID, res.Status); err != nil {
		return nil, err
	}

	pm.metrics.observeTransition(string(res.Status))
	pm.logger.WithFields(logrus.Fields{
		"position_id":     position.ID,
		"symbol":          position.StockSymbol,
		"from":            position.Status,
		"to":              res.Status,
		"needs_attention": res.NeedsManualResolution,
	}).Info("Position status changed")

	if pm.activity != nil {
		if err := pm.activity.LogStatusChange(position, position.Status, res.Status, res.ReferencePrice); err != nil {
			pm.logger.WithError(err).Warn("Failed to journal status change")
		}
	}

	return &Transition{
		PositionID:            position.ID,
		Symbol:                position.StockSymbol,
		From:                  position.Status,
		To:                    res.Status,
		ReferencePrice:        res.ReferencePrice,
		NeedsManualResolution: res.NeedsManualResolution,
	}, nil
}

// MonitorPositions refreshes open positions whose market is in session and
// sweeps expirations on every tick until ctx is cancelled
func (pm *PositionManager) MonitorPositions(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	pm.logger.WithField("interval", interval).Info("Position monitoring started")

	for {
		select {
		case <-ctx.Done():
			pm.logger.Info("Position monitoring stopped")
			return
		case <-ticker.C:
			now := pm.now()
			if _, err := pm.refresh(ctx, func(canonical string) bool {
				return market.IsSymbolTrading(canonical, now)
			}); err != nil {
				pm.logger.WithError(err).Error("Refresh cycle failed")
			}
			if _, err := pm.SweepExpirations(ctx, now); err != nil {
				pm.logger.WithError(err).Error("Expiry sweep failed")
			}
		}
	}
}

func (pm *PositionManager) summarize(ctx context.Context, position *interfaces.OptionPosition, trades []*interfaces.TradeEvent, price *float64) pnl.Summary {
	in := pnl.Input{
		Terms:     pnl.TermsOf(position),
		Trades:    trades,
		LivePrice: price,
	}

	if pm.cache == nil {
		return pnl.Calculate(in)
	}

	key, err := SummaryKey(in)
	if err != nil {
		return pnl.Calculate(in)
	}
	if cached, ok := pm.cache.Get(ctx, key); ok {
		pm.metrics.observeCacheHit()
		return *cached
	}

	summary := pnl.Calculate(in)
	pm.cache.Set(ctx, key, summary)
	return summary
}

func (pm *PositionManager) fetchQuotes(ctx context.Context, symbols []string) map[string]*interfaces.LiveQuote {
	quotes := make(map[string]*interfaces.LiveQuote, len(symbols))
	if len(symbols) == 0 {
		return quotes
	}

	if batch, ok := pm.quotes.(BatchQuoteProvider); ok {
		fetched, err := batch.GetQuotes(ctx, symbols)
		if err == nil {
			return fetched
		}
		pm.logger.WithError(err).Warn("Batch quote request failed, quoting one by one")
	}

	for _, symbol := range symbols {
		if _, seen := quotes[symbol]; seen {
			continue
		}
		quote, err := pm.quotes.GetQuote(ctx, symbol)
		if err != nil {
			pm.logger.WithError(err).WithField("symbol", symbol).Debug("Quote unavailable")
			continue
		}
		quotes[symbol] = quote
	}
	return quotes
}

// refreshStockPrice fetches and stores the underlying price. Failures are logged only.
func (pm *PositionManager) refreshStockPrice(ctx context.Context, position *interfaces.OptionPosition) *float64 {
	if pm.references == nil {
		return nil
	}

	quote, err := pm.references.GetQuote(ctx, position.StockSymbol)
	if err != nil {
		pm.logger.WithError(err).WithField("symbol", position.StockSymbol).Debug("Reference price unavailable")
		return nil
	}
	price, ok := quote.Price()
	if !ok {
		return nil
	}

	if err := pm.store.UpdateStockPrice(position.ID, price); err != nil {
		pm.logger.WithError(err).WithField("position_id", position.ID).Warn("Failed to store stock price")
	}
	return &price
}

func (pm *PositionManager) positionFromRequest(req *OpenPositionRequest) (*interfaces.OptionPosition, error) {
	symbol, err := market.Normalize(req.StockSymbol)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	optionCode := ""
	if strings.TrimSpace(req.OptionCode) != "" {
		m, _, _ := market.Split(symbol)
		code := strings.TrimSpace(req.OptionCode)
		if !strings.Contains(code, ".") {
			code = string(m) + "." + code
		}
		optionCode, err = market.Normalize(code)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
	}

	direction := interfaces.Direction(strings.ToUpper(strings.TrimSpace(req.Direction)))
	if direction != interfaces.DirectionBuy && direction != interfaces.DirectionSell {
		return nil, fmt.Errorf("%w: direction must be BUY or SELL", ErrInvalidRequest)
	}

	optionType := interfaces.OptionType(strings.ToUpper(strings.TrimSpace(req.OptionType)))
	if optionType != interfaces.OptionCall && optionType != interfaces.OptionPut {
		return nil, fmt.Errorf("%w: option_type must be CALL or PUT", ErrInvalidRequest)
	}

	if req.StrikePrice <= 0 {
		return nil, fmt.Errorf("%w: strike_price must be greater than 0", ErrInvalidRequest)
	}

	expiry, err := parseDate(req.ExpiryDate)
	if err != nil {
		return nil, err
	}

	return &interfaces.OptionPosition{
		ID:          uuid.NewString(),
		StockSymbol: symbol,
		OptionCode:  optionCode,
		Direction:   direction,
		OptionType:  optionType,
		StrikePrice: req.StrikePrice,
		ExpiryDate:  expiry,
		Status:      interfaces.StatusOpen,
	}, nil
}

func tradeFromRequest(req *TradeRequest) (*interfaces.TradeEvent, error) {
	tradeDate, err := parseDate(req.TradeDate)
	if err != nil {
		return nil, err
	}

	shares := req.SharesPerContract
	if shares == 0 {
		shares = interfaces.DefaultSharesPerContract
	}

	return &interfaces.TradeEvent{
		Type:              strings.ToUpper(strings.TrimSpace(req.Type)),
		Contracts:         req.Contracts,
		Premium:           req.Premium,
		SharesPerContract: shares,
		Fee:               req.Fee,
		TradeDate:         tradeDate,
		MarginPercent:     req.MarginPercent,
		StockPrice:        req.StockPrice,
		Notes:             req.Notes,
	}, nil
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q, use YYYY-MM-DD", ErrInvalidRequest, s)
	}
	return t, nil
}

// exchangeLocation is the time zone expiry dates of the symbol's market are
// read in
func exchangeLocation(symbol string) *time.Location {
	m, _, err := market.Split(symbol)
	if err != nil {
		return time.UTC
	}
	return market.Location(m)
}
