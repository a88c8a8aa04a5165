package pnl

import (
	"time"

	"optitrack/interfaces"
)

// StatusInput carries everything the lifecycle resolver looks at
type StatusInput struct {
	Current      interfaces.PositionStatus
	NetContracts int
	OptionType   interfaces.OptionType
	StrikePrice  float64
	ExpiryDate   time.Time
	Now          time.Time

	// Location is the exchange time zone the expiry date is read in. The
	// expiry's own location is used when nil.
	Location *time.Location

	// Reference prices in order of preference
	StockPriceAtClose *float64
	LastStockPrice    *float64
}

// Resolution is the outcome of a lifecycle evaluation
type Resolution struct {
	Status                interfaces.PositionStatus `json:"status"`
	ReferencePrice        *float64                  `json:"reference_price,omitempty"`
	NeedsManualResolution bool                      `json:"needs_manual_resolution"`
}

// StatusAfterTrade applies the user-driven transition: an open position whose
// net contracts reach zero is closed. Any other status is returned unchanged.
func StatusAfterTrade(current interfaces.PositionStatus, netContracts int) interfaces.PositionStatus {
	if current == "" {
		current = interfaces.StatusOpen
	}
	if current == interfaces.StatusOpen && netContracts == 0 {
		return interfaces.StatusClosed
	}
	return current
}

// Resolve applies the time-driven transitions. An open position past its
// expiry date with contracts outstanding expires, and an expired position is
// settled as exercised or lapsed once a reference price is known. Without a
// reference price it stays expired.
func Resolve(in StatusInput) Resolution {
	status := in.Current
	if status == "" {
		status = interfaces.StatusOpen
	}

	if status == interfaces.StatusOpen && in.NetContracts > 0 && pastExpiry(in.Now, in.ExpiryDate, in.Location) {
		status = interfaces.StatusExpired
	}
	if status != interfaces.StatusExpired {
		return Resolution{Status: status}
	}

	ref := ReferencePrice(in.StockPriceAtClose, in.LastStockPrice)
	if ref == nil {
		return Resolution{Status: interfaces.StatusExpired, NeedsManualResolution: true}
	}

	if InTheMoney(in.OptionType, in.StrikePrice, *ref) {
		return Resolution{Status: interfaces.StatusExercised, ReferencePrice: ref}
	}
	return Resolution{Status: interfaces.StatusLapsed, ReferencePrice: ref}
}

// ReferencePrice picks the close-time stock price, then the last known one
func ReferencePrice(atClose, last *float64) *float64 {
	if atClose != nil && *atClose > 0 {
		return atClose
	}
	if last != nil && *last > 0 {
		return last
	}
	return nil
}

// InTheMoney reports whether exercising at price would pay off. A price equal
// to the strike is out of the money.
func InTheMoney(optionType interfaces.OptionType, strike, price float64) bool {
	if optionType == interfaces.OptionPut {
		return price < strike
	}
	return price > strike
}

// pastExpiry reports whether the exchange's calendar date at now is after the
// expiry date. The expiry is a calendar date, so only its Y/M/D is used.
func pastExpiry(now, expiry time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = expiry.Location()
	}
	n := now.In(loc)
	today := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
	expiryDay := time.Date(expiry.Year(), expiry.Month(), expiry.Day(), 0, 0, 0, 0, time.UTC)
	return today.After(expiryDay)
}
