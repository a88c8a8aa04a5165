package database

import (
	"optitrack/interfaces"
	"optitrack/models"
)

// positionToDB converts an OptionPosition to its database row
func positionToDB(p *interfaces.OptionPosition) *models.DBOptionPosition {
	return &models.DBOptionPosition{
		PositionID:        p.ID,
		StockSymbol:       p.StockSymbol,
		OptionCode:        p.OptionCode,
		Direction:         string(p.Direction),
		OptionType:        string(p.OptionType),
		StrikePrice:       p.StrikePrice,
		ExpiryDate:        p.ExpiryDate,
		Status:            string(p.Status),
		LastStockPrice:    p.LastStockPrice,
		StockPriceAtClose: p.StockPriceAtClose,
	}
}

// dbToPosition converts a database row to an OptionPosition
func dbToPosition(row *models.DBOptionPosition) *interfaces.OptionPosition {
	return &interfaces.OptionPosition{
		ID:                row.PositionID,
		StockSymbol:       row.StockSymbol,
		OptionCode:        row.OptionCode,
		Direction:         interfaces.Direction(row.Direction),
		OptionType:        interfaces.OptionType(row.OptionType),
		StrikePrice:       row.StrikePrice,
		ExpiryDate:        row.ExpiryDate,
		Status:            interfaces.PositionStatus(row.Status),
		LastStockPrice:    row.LastStockPrice,
		StockPriceAtClose: row.StockPriceAtClose,
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
	}
}

func tradeToDB(t *interfaces.TradeEvent) *models.DBOptionTrade {
	return &models.DBOptionTrade{
		Type:              t.Type,
		Contracts:         t.Contracts,
		Premium:           t.Premium,
		SharesPerContract: t.SharesPerContract,
		Fee:               t.Fee,
		TradeDate:         t.TradeDate,
		MarginPercent:     t.MarginPercent,
		StockPrice:        t.StockPrice,
		Notes:             t.Notes,
	}
}

func dbToTrade(row *models.DBOptionTrade) *interfaces.TradeEvent {
	return &interfaces.TradeEvent{
		ID:                row.ID,
		PositionID:        row.PositionID,
		Type:              row.Type,
		Contracts:         row.Contracts,
		Premium:           row.Premium,
		SharesPerContract: row.SharesPerContract,
		Fee:               row.Fee,
		TradeDate:         row.TradeDate,
		MarginPercent:     row.MarginPercent,
		StockPrice:        row.StockPrice,
		Notes:             row.Notes,
	}
}
