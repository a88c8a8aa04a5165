package pnl

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"optitrack/interfaces"
)

// Terms are the contract terms of a position that affect PNL
type Terms struct {
	Direction   interfaces.Direction
	OptionType  interfaces.OptionType
	StrikePrice float64
	ExpiryDate  time.Time
}

// TermsOf extracts the PNL-relevant terms of a position
func TermsOf(position *interfaces.OptionPosition) Terms {
	return Terms{
		Direction:   position.Direction,
		OptionType:  position.OptionType,
		StrikePrice: position.StrikePrice,
		ExpiryDate:  position.ExpiryDate,
	}
}

// Input to Calculate. Trades must be in trade date order.
type Input struct {
	Terms  Terms
	Trades []*interfaces.TradeEvent

	// LivePrice is the latest option premium, nil when no quote is available
	LivePrice *float64

	// PriorMarketValue is used for market value when LivePrice is nil
	PriorMarketValue *float64
}

// Summary is the derived view of a position
type Summary struct {
	Totals

	RealizedPNL      float64 `json:"realized_pnl"`
	UnrealizedPNL    float64 `json:"unrealized_pnl"`
	GrossPNL         float64 `json:"gross_pnl"`
	NetPNL           float64 `json:"net_pnl"`
	ReturnPercentage float64 `json:"return_percentage"`
	MarketValue      float64 `json:"market_value"`
	BreakevenCost    float64 `json:"breakeven_cost"`
	AnnualizedReturn float64 `json:"annualized_return"`
}

// Calculate derives the full position summary. Identical inputs always yield
// identical summaries.
func Calculate(in Input) Summary {
	totals := Aggregate(in.Trades)
	summary := Summary{Totals: totals}

	if len(in.Trades) == 0 {
		return summary
	}

	shares := float64(totals.SharesPerContract)
	net := float64(totals.NetContracts)

	summary.RealizedPNL = RealizedPNL(in.Terms.Direction, in.Trades)

	if in.LivePrice != nil {
		summary.UnrealizedPNL = directional(in.Terms.Direction, *in.LivePrice-totals.AvgEntryPremium) * net * shares
		summary.MarketValue = net * *in.LivePrice * shares
	} else if in.PriorMarketValue != nil {
		summary.MarketValue = *in.PriorMarketValue
	} else {
		summary.MarketValue = net * totals.AvgEntryPremium * shares
	}

	summary.GrossPNL = summary.RealizedPNL + summary.UnrealizedPNL
	summary.NetPNL = summary.GrossPNL - totals.TotalFees

	if totals.TotalPremium != 0 {
		summary.ReturnPercentage = summary.NetPNL / totals.TotalPremium * 100
	}

	if in.Terms.Direction == interfaces.DirectionSell {
		summary.BreakevenCost = in.Terms.StrikePrice*net*shares - (totals.TotalPremium - totals.TotalFees)
		summary.AnnualizedReturn = AnnualizedReturn(in.Terms, in.Trades, totals)
	}

	return summary
}

// RealizedPNL replays the ledger with a running weighted-average entry
// premium. Each close realizes against the basis at the time of that close and
// is charged its own fee.
func RealizedPNL(direction interfaces.Direction, trades []*interfaces.TradeEvent) float64 {
	var (
		realized   float64
		open       int
		runningAvg float64
	)

	for _, trade := range trades {
		leg, err := Classify(trade.Type)
		if err != nil {
			continue
		}

		switch leg {
		case Opening:
			held := float64(open)
			added := float64(trade.Contracts)
			if held+added > 0 {
				runningAvg = (runningAvg*held + trade.Premium*added) / (held + added)
			}
			open += trade.Contracts
		case Closing:
			perShare := directional(direction, trade.Premium-runningAvg)
			realized += perShare*float64(trade.Contracts)*float64(sharesPerContract(trade)) - trade.Fee
			open -= trade.Contracts
			if open <= 0 {
				open = 0
				runningAvg = 0
			}
		}
	}

	return realized
}

// UnrealizedAgainstFinalAverage is the shortcut valuation of still-open
// contracts against the final average entry premium.
func UnrealizedAgainstFinalAverage(direction interfaces.Direction, totals Totals, price float64) float64 {
	return directional(direction, price-totals.AvgEntryPremium) * float64(totals.NetContracts) * float64(totals.SharesPerContract)
}

// RealizedAgainstFinalAverage values every close against the final average
// entry premium instead of the basis at the time of the close. It matches
// RealizedPNL only while no opening trade follows a close.
func RealizedAgainstFinalAverage(direction interfaces.Direction, trades []*interfaces.TradeEvent) float64 {
	totals := Aggregate(trades)

	var realized float64
	for _, trade := range trades {
		leg, err := Classify(trade.Type)
		if err != nil || leg != Closing {
			continue
		}
		perShare := directional(direction, trade.Premium-totals.AvgEntryPremium)
		realized += perShare*float64(trade.Contracts)*float64(sharesPerContract(trade)) - trade.Fee
	}
	return realized
}

// AnnualizedReturn is the yearly return on capital at risk for a short
// position. It is 0 when no capital is at risk.
func AnnualizedReturn(terms Terms, trades []*interfaces.TradeEvent, totals Totals) float64 {
	riskCapital := terms.StrikePrice * float64(totals.NetContracts) * float64(totals.SharesPerContract)
	if margin := marginPercent(trades); margin != nil {
		riskCapital *= *margin / 100
	}
	if riskCapital <= 0 {
		return 0
	}

	var received float64
	for _, trade := range trades {
		flow, err := CashFlow(trade, terms.Direction)
		if err != nil {
			continue
		}
		received += flow
	}
	received -= totals.TotalFees

	return received / riskCapital * (365 / float64(HoldingDays(totals.FirstTradeDate, terms.ExpiryDate))) * 100
}

// HoldingDays is the whole number of days from the first trade to expiry, at least 1
func HoldingDays(firstTrade, expiry time.Time) int {
	days := math.Ceil(expiry.Sub(firstTrade).Hours() / 24)
	if days < 1 {
		return 1
	}
	return int(days)
}

// marginPercent returns the margin percent of the most recent trade carrying one
func marginPercent(trades []*interfaces.TradeEvent) *float64 {
	for i := len(trades) - 1; i >= 0; i-- {
		if trades[i].MarginPercent != nil && *trades[i].MarginPercent > 0 {
			return trades[i].MarginPercent
		}
	}
	return nil
}

// directional flips a long-side amount for short positions
func directional(direction interfaces.Direction, amount float64) float64 {
	if direction == interfaces.DirectionSell {
		return -amount
	}
	return amount
}

// Rounded returns a copy with monetary fields rounded to two decimals for display
func (s Summary) Rounded() Summary {
	r := s
	r.AvgEntryPremium = round(s.AvgEntryPremium, 4)
	r.TotalPremium = round(s.TotalPremium, 2)
	r.TotalFees = round(s.TotalFees, 2)
	r.RealizedPNL = round(s.RealizedPNL, 2)
	r.UnrealizedPNL = round(s.UnrealizedPNL, 2)
	r.GrossPNL = round(s.GrossPNL, 2)
	r.NetPNL = round(s.NetPNL, 2)
	r.ReturnPercentage = round(s.ReturnPercentage, 2)
	r.MarketValue = round(s.MarketValue, 2)
	r.BreakevenCost = round(s.BreakevenCost, 2)
	r.AnnualizedReturn = round(s.AnnualizedReturn, 2)
	return r
}

func round(v float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}
