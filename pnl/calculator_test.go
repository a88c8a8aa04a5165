package pnl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optitrack/interfaces"
)

func sellPut80() Terms {
	return Terms{
		Direction:   interfaces.DirectionSell,
		OptionType:  interfaces.OptionPut,
		StrikePrice: 80,
		ExpiryDate:  day0.AddDate(0, 0, 30),
	}
}

func scaledShortPut() []*interfaces.TradeEvent {
	return []*interfaces.TradeEvent{
		trade(TypeOpen, 5, 2.50, 0),
		trade(TypeAdd, 3, 2.00, 1),
		trade(TypeReduce, 4, 1.00, 2),
	}
}

func ptr(v float64) *float64 { return &v }

func TestRealizedPNL_ReduceAgainstRunningAverage(t *testing.T) {
	realized := RealizedPNL(interfaces.DirectionSell, scaledShortPut())
	assert.InDelta(t, 2625.0, realized, 1e-9)
}

func TestRealizedPNL_UsesBasisAtTimeOfClose(t *testing.T) {
	trades := []*interfaces.TradeEvent{
		trade(TypeOpen, 2, 2.0, 0),
		trade(TypeReduce, 1, 1.0, 1), // realized against 2.0
		trade(TypeAdd, 1, 5.0, 2),    // running average becomes 3.5
		trade(TypeReduce, 1, 1.0, 3), // realized against 3.5
	}

	realized := RealizedPNL(interfaces.DirectionSell, trades)
	assert.InDelta(t, (2.0-1.0)*500+(3.5-1.0)*500, realized, 1e-9)
}

func TestRealizedPNL_BuyPositionAndFees(t *testing.T) {
	open := trade(TypeOpenBuy, 2, 3.0, 0)
	open.Fee = 5
	closing := trade(TypeCloseSell, 1, 4.0, 1)
	closing.Fee = 10

	realized := RealizedPNL(interfaces.DirectionBuy, []*interfaces.TradeEvent{open, closing})
	assert.InDelta(t, 490.0, realized, 1e-9, "only the closing trade's fee is charged to realized")
}

func TestCalculate_SellPutWithLivePrice(t *testing.T) {
	summary := Calculate(Input{
		Terms:     sellPut80(),
		Trades:    scaledShortPut(),
		LivePrice: ptr(1.50),
	})

	assert.Equal(t, 4, summary.NetContracts)
	assert.InDelta(t, 2.3125, summary.AvgEntryPremium, 1e-12)
	assert.InDelta(t, 9250.0, summary.TotalPremium, 1e-9)
	assert.InDelta(t, 2625.0, summary.RealizedPNL, 1e-9)
	assert.InDelta(t, 1625.0, summary.UnrealizedPNL, 1e-9, "short premium gains as price falls")
	assert.InDelta(t, 4250.0, summary.GrossPNL, 1e-9)
	assert.InDelta(t, 4250.0, summary.NetPNL, 1e-9)
	assert.InDelta(t, 4250.0/9250.0*100, summary.ReturnPercentage, 1e-9)
	assert.InDelta(t, 3000.0, summary.MarketValue, 1e-9)
	assert.InDelta(t, 80*4*500-9250.0, summary.BreakevenCost, 1e-9)

	// cash flows 6250 + 3000 - 2000 against 160000 at risk for 30 days
	assert.InDelta(t, 7250.0/160000.0*(365.0/30.0)*100, summary.AnnualizedReturn, 1e-9)
}

func TestCalculate_MarginScalesRiskCapital(t *testing.T) {
	trades := scaledShortPut()
	trades[0].MarginPercent = ptr(20)

	summary := Calculate(Input{Terms: sellPut80(), Trades: trades})
	assert.InDelta(t, 7250.0/32000.0*(365.0/30.0)*100, summary.AnnualizedReturn, 1e-9)
}

func TestCalculate_NoLivePrice(t *testing.T) {
	summary := Calculate(Input{Terms: sellPut80(), Trades: scaledShortPut()})
	assert.Zero(t, summary.UnrealizedPNL)
	assert.InDelta(t, 4*2.3125*500, summary.MarketValue, 1e-9, "falls back to cost basis")

	summary = Calculate(Input{Terms: sellPut80(), Trades: scaledShortPut(), PriorMarketValue: ptr(1234.5)})
	assert.Equal(t, 1234.5, summary.MarketValue)
}

func TestCalculate_BuyPositionHasNoShortMetrics(t *testing.T) {
	terms := sellPut80()
	terms.Direction = interfaces.DirectionBuy

	summary := Calculate(Input{Terms: terms, Trades: scaledShortPut(), LivePrice: ptr(3.0)})
	assert.Zero(t, summary.BreakevenCost)
	assert.Zero(t, summary.AnnualizedReturn)
	assert.InDelta(t, (3.0-2.3125)*4*500, summary.UnrealizedPNL, 1e-9)
	assert.InDelta(t, -2625.0, summary.RealizedPNL, 1e-9)
}

func TestCalculate_EmptyLedger(t *testing.T) {
	summary := Calculate(Input{Terms: sellPut80(), LivePrice: ptr(2)})
	assert.Equal(t, Summary{}, summary)
}

func TestCalculate_FullyClosedHasZeroRiskCapital(t *testing.T) {
	trades := append(scaledShortPut(), trade(TypeClose, 4, 0.5, 3))
	summary := Calculate(Input{Terms: sellPut80(), Trades: trades, LivePrice: ptr(0.2)})

	assert.Zero(t, summary.NetContracts)
	assert.Zero(t, summary.UnrealizedPNL)
	assert.Zero(t, summary.MarketValue)
	assert.Zero(t, summary.AnnualizedReturn)
}

func TestCalculate_ZeroPremiumReturn(t *testing.T) {
	summary := Calculate(Input{Terms: sellPut80(), Trades: []*interfaces.TradeEvent{trade(TypeOpen, 1, 0, 0)}})
	assert.Zero(t, summary.ReturnPercentage)
}

func TestHoldingDays(t *testing.T) {
	assert.Equal(t, 1, HoldingDays(day0, day0))
	assert.Equal(t, 1, HoldingDays(day0, day0.AddDate(0, 0, -3)))
	assert.Equal(t, 30, HoldingDays(day0, day0.AddDate(0, 0, 30)))
	assert.Equal(t, 2, HoldingDays(day0, day0.Add(25*60*60*1e9)))
}

// The detail view values closes against the final average entry. The two
// methods may disagree while contracts are outstanding but must agree once
// the position is flat.
func TestRealizedMethodsConvergeWhenFlat(t *testing.T) {
	trades := []*interfaces.TradeEvent{
		trade(TypeOpen, 2, 2.0, 0),
		trade(TypeReduce, 1, 1.0, 1),
		trade(TypeAdd, 1, 5.0, 2),
	}

	replay := RealizedPNL(interfaces.DirectionSell, trades)
	shortcut := RealizedAgainstFinalAverage(interfaces.DirectionSell, trades)
	assert.InDelta(t, 500.0, replay, 1e-9)
	assert.InDelta(t, 1000.0, shortcut, 1e-9)
	assert.NotEqual(t, replay, shortcut)

	trades = append(trades, trade(TypeClose, 2, 1.0, 3))
	require.Zero(t, Aggregate(trades).NetContracts)

	replay = RealizedPNL(interfaces.DirectionSell, trades)
	shortcut = RealizedAgainstFinalAverage(interfaces.DirectionSell, trades)
	assert.InDelta(t, 3000.0, replay, 1e-9)
	assert.InDelta(t, replay, shortcut, 1e-9)
}

func TestUnrealizedAgainstFinalAverage(t *testing.T) {
	totals := Aggregate(scaledShortPut())
	assert.InDelta(t, 1625.0, UnrealizedAgainstFinalAverage(interfaces.DirectionSell, totals, 1.5), 1e-9)
}

func TestSummaryRounded(t *testing.T) {
	summary := Summary{NetPNL: 1234.5678, ReturnPercentage: 45.945945, Totals: Totals{AvgEntryPremium: 2.31254}}
	r := summary.Rounded()
	assert.Equal(t, 1234.57, r.NetPNL)
	assert.Equal(t, 45.95, r.ReturnPercentage)
	assert.Equal(t, 2.3125, r.AvgEntryPremium)
	assert.Equal(t, 1234.5678, summary.NetPNL, "original untouched")
}
