package models

import (
	"time"

	"gorm.io/gorm"
)

// DBOptionPosition represents an option position in the database
type DBOptionPosition struct {
	gorm.Model
	PositionID  string `gorm:"uniqueIndex"`
	StockSymbol string `gorm:"index"`
	OptionCode  string
	Direction   string // BUY, SELL
	OptionType  string // CALL, PUT
	StrikePrice float64
	ExpiryDate  time.Time `gorm:"index"`
	Status      string    `gorm:"index"` // OPEN, CLOSED, EXPIRED, EXERCISED, LAPSED

	// Reference prices for expiry resolution
	LastStockPrice    *float64
	StockPriceAtClose *float64

	Trades []DBOptionTrade `gorm:"foreignKey:PositionRefID;constraint:OnDelete:CASCADE"`
}

// DBOptionTrade represents one trade event of a position
type DBOptionTrade struct {
	gorm.Model
	PositionRefID     uint   `gorm:"index"`
	PositionID        string `gorm:"index"`
	Type              string
	Contracts         int
	Premium           float64
	SharesPerContract int
	Fee               float64
	TradeDate         time.Time `gorm:"index"`
	MarginPercent     *float64
	StockPrice        *float64
	Notes             string
}

// DBRefreshSnapshot holds the last refreshed PNL values of a position
type DBRefreshSnapshot struct {
	gorm.Model
	PositionID       string `gorm:"uniqueIndex"`
	CanonicalSymbol  string
	CurrentPrice     float64
	UnrealizedPNL    float64
	NetPNL           float64
	ReturnPercentage float64
	RefreshedAt      time.Time `gorm:"index"`
}

// TableName overrides for cleaner table names
func (DBOptionPosition) TableName() string {
	return "option_positions"
}

func (DBOptionTrade) TableName() string {
	return "option_trades"
}

func (DBRefreshSnapshot) TableName() string {
	return "refresh_snapshots"
}
