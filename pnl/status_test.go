package pnl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"optitrack/interfaces"
)

func expiredPut(ref *float64) StatusInput {
	return StatusInput{
		Current:        interfaces.StatusOpen,
		NetContracts:   2,
		OptionType:     interfaces.OptionPut,
		StrikePrice:    80,
		ExpiryDate:     day0,
		Now:            day0.AddDate(0, 0, 1),
		LastStockPrice: ref,
	}
}

func TestResolve_PutAtExpiry(t *testing.T) {
	res := Resolve(expiredPut(ptr(75)))
	assert.Equal(t, interfaces.StatusExercised, res.Status)
	assert.Equal(t, 75.0, *res.ReferencePrice)

	res = Resolve(expiredPut(ptr(85)))
	assert.Equal(t, interfaces.StatusLapsed, res.Status)

	res = Resolve(expiredPut(ptr(80)))
	assert.Equal(t, interfaces.StatusLapsed, res.Status, "at the strike is out of the money")
}

func TestResolve_CallAtExpiry(t *testing.T) {
	in := expiredPut(ptr(85))
	in.OptionType = interfaces.OptionCall
	assert.Equal(t, interfaces.StatusExercised, Resolve(in).Status)

	in.LastStockPrice = ptr(75)
	assert.Equal(t, interfaces.StatusLapsed, Resolve(in).Status)
}

func TestResolve_NoReferencePriceStaysExpired(t *testing.T) {
	res := Resolve(expiredPut(nil))
	assert.Equal(t, interfaces.StatusExpired, res.Status)
	assert.True(t, res.NeedsManualResolution)
	assert.Nil(t, res.ReferencePrice)

	in := expiredPut(nil)
	in.Current = interfaces.StatusExpired
	assert.Equal(t, interfaces.StatusExpired, Resolve(in).Status)
}

func TestResolve_PrefersCloseTimePrice(t *testing.T) {
	in := expiredPut(ptr(85))
	in.StockPriceAtClose = ptr(70)
	res := Resolve(in)
	assert.Equal(t, interfaces.StatusExercised, res.Status)
	assert.Equal(t, 70.0, *res.ReferencePrice)
}

func TestResolve_NotYetExpired(t *testing.T) {
	in := expiredPut(ptr(75))
	in.Now = day0.Add(23 * time.Hour)
	assert.Equal(t, interfaces.StatusOpen, Resolve(in).Status, "expiry day itself is still open")

	in.Now = day0.AddDate(0, 0, -5)
	assert.Equal(t, interfaces.StatusOpen, Resolve(in).Status)
}

func TestResolve_ExpiryDayInExchangeTimeZone(t *testing.T) {
	hk := time.FixedZone("HKT", 8*60*60)
	ny := time.FixedZone("EST", -5*60*60)

	// 00:30 on the day after expiry in Hong Kong, still the expiry day in UTC
	in := expiredPut(ptr(75))
	in.Now = day0.Add(16*time.Hour + 30*time.Minute)
	assert.Equal(t, interfaces.StatusOpen, Resolve(in).Status)

	in.Location = hk
	assert.Equal(t, interfaces.StatusExercised, Resolve(in).Status)

	// 22:00 on the expiry day in New York, already the next day in UTC
	in = expiredPut(ptr(75))
	in.Now = day0.AddDate(0, 0, 1).Add(3 * time.Hour)
	assert.Equal(t, interfaces.StatusExercised, Resolve(in).Status)

	in.Location = ny
	assert.Equal(t, interfaces.StatusOpen, Resolve(in).Status)
}

func TestResolve_FlatPositionDoesNotExpire(t *testing.T) {
	in := expiredPut(ptr(75))
	in.NetContracts = 0
	assert.Equal(t, interfaces.StatusOpen, Resolve(in).Status)
}

func TestResolve_TerminalStatesAreKept(t *testing.T) {
	for _, status := range []interfaces.PositionStatus{
		interfaces.StatusClosed, interfaces.StatusExercised, interfaces.StatusLapsed,
	} {
		in := expiredPut(ptr(75))
		in.Current = status
		assert.Equal(t, status, Resolve(in).Status)
		assert.True(t, status.Terminal())
	}
}

func TestStatusAfterTrade(t *testing.T) {
	assert.Equal(t, interfaces.StatusClosed, StatusAfterTrade(interfaces.StatusOpen, 0))
	assert.Equal(t, interfaces.StatusOpen, StatusAfterTrade(interfaces.StatusOpen, 3))
	assert.Equal(t, interfaces.StatusClosed, StatusAfterTrade("", 0))
	assert.Equal(t, interfaces.StatusExpired, StatusAfterTrade(interfaces.StatusExpired, 0))
	assert.Equal(t, interfaces.StatusClosed, StatusAfterTrade(interfaces.StatusClosed, 4), "closed is never revisited")
}
