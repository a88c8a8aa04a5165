package interfaces

// PositionStore defines the persistence collaborator for positions and their trades
type PositionStore interface {
	CreatePositionWithTrade(position *OptionPosition, first *TradeEvent) error
	GetPosition(positionID string) (*OptionPosition, error)
	ListPositions(status PositionStatus) ([]*OptionPosition, error)
	GetTrades(positionID string) ([]*TradeEvent, error)

	// AddTrade and DeleteTrade validate the resulting ledger and update the
	// position status in the same transaction.
	AddTrade(positionID string, trade *TradeEvent) (*OptionPosition, error)
	DeleteTrade(positionID string, tradeID uint) (*OptionPosition, error)
	DeletePosition(positionID string) error

	UpdatePositionStatus(positionID string, status PositionStatus) error
	UpdateStockPrice(positionID string, price float64) error

	SaveRefreshSnapshot(record *RefreshRecord) error
	GetRefreshSnapshot(positionID string) (*RefreshRecord, error)
}
