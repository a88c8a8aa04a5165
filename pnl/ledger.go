package pnl

import (
	"fmt"
	"math"
	"sort"
	"time"

	"optitrack/interfaces"
)

// Totals is the ledger part of a position summary
type Totals struct {
	NetContracts      int       `json:"net_contracts"`
	TotalOpened       int       `json:"total_opened"`
	TotalClosed       int       `json:"total_closed"`
	AvgEntryPremium   float64   `json:"avg_entry_premium"`
	TotalPremium      float64   `json:"total_premium"`
	TotalFees         float64   `json:"total_fees"`
	SharesPerContract int       `json:"shares_per_contract"`
	FirstTradeDate    time.Time `json:"first_trade_date"`
}

// SortTrades orders trades by trade date. Trades on the same date keep their
// relative order.
func SortTrades(trades []*interfaces.TradeEvent) []*interfaces.TradeEvent {
	sorted := make([]*interfaces.TradeEvent, len(trades))
	copy(sorted, trades)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TradeDate.Before(sorted[j].TradeDate)
	})
	return sorted
}

// Aggregate reduces an ordered trade list to its totals. The average entry
// premium is recomputed from scratch over opening trades on every call.
// Trades with an unknown type contribute fees only.
func Aggregate(trades []*interfaces.TradeEvent) Totals {
	var (
		totals          Totals
		weightedPremium float64
	)

	for i, trade := range trades {
		if i == 0 {
			totals.FirstTradeDate = trade.TradeDate
			totals.SharesPerContract = sharesPerContract(trade)
		}
		totals.TotalFees += trade.Fee

		leg, err := Classify(trade.Type)
		if err != nil {
			continue
		}

		switch leg {
		case Opening:
			totals.TotalOpened += trade.Contracts
			weightedPremium += trade.Premium * float64(trade.Contracts)
			totals.TotalPremium += trade.Premium * float64(trade.Contracts) * float64(sharesPerContract(trade))
		case Closing:
			totals.TotalClosed += trade.Contracts
		}
	}

	totals.NetContracts = totals.TotalOpened - totals.TotalClosed
	if totals.TotalOpened > 0 {
		totals.AvgEntryPremium = weightedPremium / float64(totals.TotalOpened)
	}

	return totals
}

// ValidateTrade checks a single trade in isolation
func ValidateTrade(trade *interfaces.TradeEvent) error {
	if trade == nil {
		return fmt.Errorf("%w: missing trade", ErrInvalidTrade)
	}
	if _, err := Classify(trade.Type); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTrade, err)
	}
	if trade.Contracts <= 0 {
		return fmt.Errorf("%w: contracts must be greater than 0, got %d", ErrInvalidTrade, trade.Contracts)
	}
	if trade.Premium < 0 || math.IsNaN(trade.Premium) || math.IsInf(trade.Premium, 0) {
		return fmt.Errorf("%w: premium must be a non-negative number, got %v", ErrInvalidTrade, trade.Premium)
	}
	if trade.SharesPerContract <= 0 {
		return fmt.Errorf("%w: shares per contract must be greater than 0, got %d", ErrInvalidTrade, trade.SharesPerContract)
	}
	if trade.Fee < 0 || math.IsNaN(trade.Fee) || math.IsInf(trade.Fee, 0) {
		return fmt.Errorf("%w: fee must be a non-negative number, got %v", ErrInvalidTrade, trade.Fee)
	}
	if trade.TradeDate.IsZero() {
		return fmt.Errorf("%w: trade date is required", ErrInvalidTrade)
	}
	if trade.MarginPercent != nil && (*trade.MarginPercent <= 0 || *trade.MarginPercent > 100) {
		return fmt.Errorf("%w: margin percent must be in (0, 100], got %v", ErrInvalidTrade, *trade.MarginPercent)
	}
	return nil
}

// ValidateSequence checks an ordered ledger. The first trade must open, every
// trade uses the first trade's contract multiplier, and at every prefix a
// closing trade may not exceed the contracts open before it.
func ValidateSequence(trades []*interfaces.TradeEvent) error {
	open := 0
	for i, trade := range trades {
		if err := ValidateTrade(trade); err != nil {
			return fmt.Errorf("trade %d: %w", i+1, err)
		}
		if i > 0 && sharesPerContract(trade) != sharesPerContract(trades[0]) {
			return fmt.Errorf("%w: trade %d uses %d shares per contract but the position uses %d",
				ErrInvalidTrade, i+1, sharesPerContract(trade), sharesPerContract(trades[0]))
		}

		leg, _ := Classify(trade.Type)
		if i == 0 && leg != Opening {
			return fmt.Errorf("%w: the earliest trade must be an opening trade, got %s", ErrInvalidTrade, trade.Type)
		}

		switch leg {
		case Opening:
			open += trade.Contracts
		case Closing:
			if trade.Contracts > open {
				return fmt.Errorf("%w: trade %d on %s closes %d contracts but only %d are open",
					ErrInvalidTrade, i+1, trade.TradeDate.Format("2006-01-02"), trade.Contracts, open)
			}
			open -= trade.Contracts
		}
	}
	return nil
}

// ValidateAppend places the candidate at its date position in the ledger and
// validates the result. The returned slice is the new ordered ledger.
func ValidateAppend(existing []*interfaces.TradeEvent, candidate *interfaces.TradeEvent) ([]*interfaces.TradeEvent, error) {
	if err := ValidateTrade(candidate); err != nil {
		return nil, err
	}

	ordered := SortTrades(existing)
	idx := sort.Search(len(ordered), func(i int) bool {
		return ordered[i].TradeDate.After(candidate.TradeDate)
	})

	next := make([]*interfaces.TradeEvent, 0, len(ordered)+1)
	next = append(next, ordered[:idx]...)
	next = append(next, candidate)
	next = append(next, ordered[idx:]...)

	if err := ValidateSequence(next); err != nil {
		return nil, err
	}
	return next, nil
}

// ValidateRemoval checks that the trade at index can be deleted from the
// ordered ledger. The earliest trade stays while later trades exist.
func ValidateRemoval(ordered []*interfaces.TradeEvent, index int) ([]*interfaces.TradeEvent, error) {
	if index < 0 || index >= len(ordered) {
		return nil, fmt.Errorf("%w: trade index %d out of range", ErrInvalidTrade, index)
	}
	if index == 0 && len(ordered) > 1 {
		return nil, fmt.Errorf("%w: the earliest trade cannot be deleted while later trades exist", ErrInvalidTrade)
	}

	next := make([]*interfaces.TradeEvent, 0, len(ordered)-1)
	next = append(next, ordered[:index]...)
	next = append(next, ordered[index+1:]...)

	if err := ValidateSequence(next); err != nil {
		return nil, err
	}
	return next, nil
}
