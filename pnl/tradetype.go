// Package pnl aggregates option trade ledgers and derives position PNL and
// lifecycle status. Every function is a pure function of its arguments.
package pnl

import (
	"errors"
	"fmt"
	"strings"

	"optitrack/interfaces"
)

var (
	// ErrInvalidTrade is returned for any ledger input that must be rejected
	ErrInvalidTrade = errors.New("invalid trade")

	// ErrUnknownTradeType is returned when a tag is not in the classification table
	ErrUnknownTradeType = errors.New("unknown trade type")
)

// Leg is the logical effect of a trade on net contracts
type Leg int

const (
	Opening Leg = iota + 1
	Closing
)

func (l Leg) String() string {
	switch l {
	case Opening:
		return "opening"
	case Closing:
		return "closing"
	}
	return "unknown"
}

// Trade type tags from both historical schemes
const (
	TypeOpen   = "OPEN"
	TypeAdd    = "ADD"
	TypeReduce = "REDUCE"
	TypeClose  = "CLOSE"

	TypeOpenSell  = "OPEN_SELL"
	TypeOpenBuy   = "OPEN_BUY"
	TypeCloseSell = "CLOSE_SELL"
	TypeCloseBuy  = "CLOSE_BUY"
)

// legs is the only place raw tags are inspected
var legs = map[string]Leg{
	TypeOpen:   Opening,
	TypeAdd:    Opening,
	TypeReduce: Closing,
	TypeClose:  Closing,

	TypeOpenSell:  Opening,
	TypeOpenBuy:   Opening,
	TypeCloseSell: Closing,
	TypeCloseBuy:  Closing,
}

// Classify resolves a trade type tag from either scheme to its leg
func Classify(tag string) (Leg, error) {
	leg, ok := legs[strings.ToUpper(strings.TrimSpace(tag))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownTradeType, tag)
	}
	return leg, nil
}

// IsOpening reports whether the tag is a known opening tag
func IsOpening(tag string) bool {
	leg, err := Classify(tag)
	return err == nil && leg == Opening
}

// TradeSide returns the side a trade executed on. Opening trades inherit the
// position direction, closing trades take the opposite side.
func TradeSide(leg Leg, direction interfaces.Direction) interfaces.Direction {
	if leg == Closing {
		return direction.Opposite()
	}
	return direction
}

// CashFlow returns the signed premium cash flow of a trade, before fees.
// Selling receives premium (positive), buying pays it (negative).
func CashFlow(trade *interfaces.TradeEvent, direction interfaces.Direction) (float64, error) {
	leg, err := Classify(trade.Type)
	if err != nil {
		return 0, err
	}
	amount := trade.Premium * float64(trade.Contracts) * float64(sharesPerContract(trade))
	if TradeSide(leg, direction) == interfaces.DirectionSell {
		return amount, nil
	}
	return -amount, nil
}

func sharesPerContract(trade *interfaces.TradeEvent) int {
	if trade.SharesPerContract > 0 {
		return trade.SharesPerContract
	}
	return interfaces.DefaultSharesPerContract
}
