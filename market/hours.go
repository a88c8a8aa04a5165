package market

import (
	"time"
)

type session struct {
	open, close int // minutes from midnight, local time
}

type exchange struct {
	zone     string
	fallback *time.Location
	sessions []session
}

var exchanges = map[Market]exchange{
	HK: {
		zone:     "Asia/Hong_Kong",
		fallback: time.FixedZone("HKT", 8*60*60),
		sessions: []session{{9*60 + 30, 12 * 60}, {13 * 60, 16 * 60}},
	},
	SH: {
		zone:     "Asia/Shanghai",
		fallback: time.FixedZone("CST", 8*60*60),
		sessions: []session{{9*60 + 30, 11*60 + 30}, {13 * 60, 15 * 60}},
	},
	SZ: {
		zone:     "Asia/Shanghai",
		fallback: time.FixedZone("CST", 8*60*60),
		sessions: []session{{9*60 + 30, 11*60 + 30}, {13 * 60, 15 * 60}},
	},
	US: {
		zone:     "America/New_York",
		fallback: time.FixedZone("EST", -5*60*60),
		sessions: []session{{9*60 + 30, 16 * 60}},
	},
}

// Location returns the exchange time zone of a market
func Location(m Market) *time.Location {
	ex, ok := exchanges[m]
	if !ok {
		return time.UTC
	}
	loc, err := time.LoadLocation(ex.zone)
	if err != nil {
		return ex.fallback
	}
	return loc
}

// IsTradingHours is a heuristic for whether the market is in a regular
// trading session at now. Holidays are not considered.
func IsTradingHours(m Market, now time.Time) bool {
	ex, ok := exchanges[m]
	if !ok {
		return false
	}

	local := now.In(Location(m))
	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		return false
	}

	minutes := local.Hour()*60 + local.Minute()
	for _, s := range ex.sessions {
		if minutes >= s.open && minutes < s.close {
			return true
		}
	}
	return false
}

// IsSymbolTrading applies IsTradingHours to the market of a canonical symbol
func IsSymbolTrading(canonical string, now time.Time) bool {
	m, _, err := Split(canonical)
	if err != nil {
		return false
	}
	return IsTradingHours(m, now)
}
