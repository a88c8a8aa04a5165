package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"optitrack/interfaces"
	"optitrack/models"
	"optitrack/pnl"
)

// ErrNotFound is returned when a position or trade does not exist
var ErrNotFound = errors.New("record not found")

// LocalStorage implements the PositionStore interface using SQLite
type LocalStorage struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewLocalStorage creates a new local storage service
func NewLocalStorage(dbPath string) (*LocalStorage, error) {
	// Ensure the directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_foreign_keys=on"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(
		&models.DBOptionPosition{},
		&models.DBOptionTrade{},
		&models.DBRefreshSnapshot{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	return &LocalStorage{
		db:     db,
		logger: logger,
	}, nil
}

// SetLogger replaces the storage logger
func (s *LocalStorage) SetLogger(l *logrus.Logger) {
	s.logger = l
}

// CreatePositionWithTrade saves a new position together with its opening trade
func (s *LocalStorage) CreatePositionWithTrade(position *interfaces.OptionPosition, first *interfaces.TradeEvent) error {
	if position.ID == "" {
		return fmt.Errorf("%w: position id is required", pnl.ErrInvalidTrade)
	}
	if err := pnl.ValidateSequence([]*interfaces.TradeEvent{first}); err != nil {
		return err
	}

	dbPosition := positionToDB(position)
	dbPosition.Status = string(pnl.StatusAfterTrade(position.Status, first.Contracts))
	if first.StockPrice != nil {
		dbPosition.LastStockPrice = first.StockPrice
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(dbPosition).Error; err != nil {
			return fmt.Errorf("failed to save position: %w", err)
		}

		dbTrade := tradeToDB(first)
		dbTrade.PositionRefID = dbPosition.ID
		dbTrade.PositionID = dbPosition.PositionID
		if err := tx.Create(dbTrade).Error; err != nil {
			return fmt.Errorf("failed to save trade: %w", err)
		}
		first.ID = dbTrade.ID
		first.PositionID = dbTrade.PositionID
		return nil
	})
	if err != nil {
		return err
	}

	*position = *dbToPosition(dbPosition)

	s.logger.WithFields(logrus.Fields{
		"position_id": position.ID,
		"symbol":      position.StockSymbol,
		"direction":   position.Direction,
		"strike":      position.StrikePrice,
	}).Info("Position created")

	return nil
}

// GetPosition retrieves a position by its public ID
func (s *LocalStorage) GetPosition(positionID string) (*interfaces.OptionPosition, error) {
	dbPosition, err := findPosition(s.db, positionID)
	if err != nil {
		return nil, err
	}
	return dbToPosition(dbPosition), nil
}

// ListPositions retrieves positions with an optional status filter
func (s *LocalStorage) ListPositions(status interfaces.PositionStatus) ([]*interfaces.OptionPosition, error) {
	var dbPositions []*models.DBOptionPosition

	query := s.db.Model(&models.DBOptionPosition{})
	if status != "" {
		query = query.Where("status = ?", string(status))
	}

	result := query.Order("created_at DESC").Find(&dbPositions)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get positions: %w", result.Error)
	}

	positions := make([]*interfaces.OptionPosition, len(dbPositions))
	for i, dbPosition := range dbPositions {
		positions[i] = dbToPosition(dbPosition)
	}

	return positions, nil
}

// GetTrades retrieves the trades of a position in trade date order
func (s *LocalStorage) GetTrades(positionID string) ([]*interfaces.TradeEvent, error) {
	dbPosition, err := findPosition(s.db, positionID)
	if err != nil {
		return nil, err
	}
	return loadTrades(s.db, dbPosition.ID)
}

// AddTrade validates the trade against the ledger as of its trade date and
// saves it. Rejected trades leave the database untouched.
func (s *LocalStorage) AddTrade(positionID string, trade *interfaces.TradeEvent) (*interfaces.OptionPosition, error) {
	var updated *models.DBOptionPosition

	err := s.db.Transaction(func(tx *gorm.DB) error {
		dbPosition, err := findPosition(tx, positionID)
		if err != nil {
			return err
		}

		current := interfaces.PositionStatus(dbPosition.Status)
		if current.Terminal() {
			return fmt.Errorf("%w: position %s is %s", pnl.ErrInvalidTrade, positionID, current)
		}

		existing, err := loadTrades(tx, dbPosition.ID)
		if err != nil {
			return err
		}

		ledger, err := pnl.ValidateAppend(existing, trade)
		if err != nil {
			return err
		}

		dbTrade := tradeToDB(trade)
		dbTrade.PositionRefID = dbPosition.ID
		dbTrade.PositionID = dbPosition.PositionID
		if err := tx.Create(dbTrade).Error; err != nil {
			return fmt.Errorf("failed to save trade: %w", err)
		}
		trade.ID = dbTrade.ID
		trade.PositionID = dbTrade.PositionID

		totals := pnl.Aggregate(ledger)
		next := pnl.StatusAfterTrade(current, totals.NetContracts)

		updates := map[string]interface{}{"status": string(next)}
		if trade.StockPrice != nil {
			updates["last_stock_price"] = *trade.StockPrice
			if next == interfaces.StatusClosed {
				updates["stock_price_at_close"] = *trade.StockPrice
			}
		}
		if err := tx.Model(dbPosition).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update position: %w", err)
		}

		updated, err = findPosition(tx, positionID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"position_id": positionID,
		"type":        trade.Type,
		"contracts":   trade.Contracts,
		"premium":     trade.Premium,
		"status":      updated.Status,
	}).Info("Trade recorded")

	return dbToPosition(updated), nil
}

// DeleteTrade removes a trade if the remaining ledger stays valid
func (s *LocalStorage) DeleteTrade(positionID string, tradeID uint) (*interfaces.OptionPosition, error) {
	var updated *models.DBOptionPosition

	err := s.db.Transaction(func(tx *gorm.DB) error {
		dbPosition, err := findPosition(tx, positionID)
		if err != nil {
			return err
		}

		current := interfaces.PositionStatus(dbPosition.Status)
		if current.Terminal() {
			return fmt.Errorf("%w: position %s is %s", pnl.ErrInvalidTrade, positionID, current)
		}

		ledger, err := loadTrades(tx, dbPosition.ID)
		if err != nil {
			return err
		}

		index := -1
		for i, t := range ledger {
			if t.ID == tradeID {
				index = i
				break
			}
		}
		if index < 0 {
			return fmt.Errorf("%w: trade %d of position %s", ErrNotFound, tradeID, positionID)
		}

		remaining, err := pnl.ValidateRemoval(ledger, index)
		if err != nil {
			return err
		}

		if err := tx.Unscoped().Delete(&models.DBOptionTrade{}, tradeID).Error; err != nil {
			return fmt.Errorf("failed to delete trade: %w", err)
		}

		totals := pnl.Aggregate(remaining)
		next := pnl.StatusAfterTrade(current, totals.NetContracts)
		if next != current {
			if err := tx.Model(dbPosition).Updates(map[string]interface{}{"status": string(next)}).Error; err != nil {
				return fmt.Errorf("failed to update position: %w", err)
			}
		}

		updated, err = findPosition(tx, positionID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"position_id": positionID,
		"trade_id":    tradeID,
		"status":      updated.Status,
	}).Info("Trade deleted")

	return dbToPosition(updated), nil
}

// DeletePosition deletes a position and all of its trades
func (s *LocalStorage) DeletePosition(positionID string) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		dbPosition, err := findPosition(tx, positionID)
		if err != nil {
			return err
		}

		if err := tx.Unscoped().Where("position_ref_id = ?", dbPosition.ID).Delete(&models.DBOptionTrade{}).Error; err != nil {
			return fmt.Errorf("failed to delete trades: %w", err)
		}
		if err := tx.Unscoped().Where("position_id = ?", positionID).Delete(&models.DBRefreshSnapshot{}).Error; err != nil {
			return fmt.Errorf("failed to delete refresh snapshot: %w", err)
		}
		if err := tx.Unscoped().Delete(dbPosition).Error; err != nil {
			return fmt.Errorf("failed to delete position: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.WithField("position_id", positionID).Info("Position deleted")
	return nil
}

// UpdatePositionStatus sets the lifecycle status of a position
func (s *LocalStorage) UpdatePositionStatus(positionID string, status interfaces.PositionStatus) error {
	result := s.db.Model(&models.DBOptionPosition{}).
		Where("position_id = ?", positionID).
		Update("status", string(status))
	if result.Error != nil {
		return fmt.Errorf("failed to update position status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: position %s", ErrNotFound, positionID)
	}
	return nil
}

// UpdateStockPrice records the last known price of the underlying
func (s *LocalStorage) UpdateStockPrice(positionID string, price float64) error {
	result := s.db.Model(&models.DBOptionPosition{}).
		Where("position_id = ?", positionID).
		Update("last_stock_price", price)
	if result.Error != nil {
		return fmt.Errorf("failed to update stock price: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: position %s", ErrNotFound, positionID)
	}
	return nil
}

// SaveRefreshSnapshot stores the latest refresh record of a position
func (s *LocalStorage) SaveRefreshSnapshot(record *interfaces.RefreshRecord) error {
	var snapshot models.DBRefreshSnapshot

	result := s.db.Where("position_id = ?", record.PositionID).First(&snapshot)
	if result.Error != nil && !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to load refresh snapshot: %w", result.Error)
	}

	snapshot.PositionID = record.PositionID
	snapshot.CanonicalSymbol = record.CanonicalSymbol
	snapshot.CurrentPrice = record.CurrentPrice
	snapshot.UnrealizedPNL = record.UnrealizedPNL
	snapshot.NetPNL = record.NetPNL
	snapshot.ReturnPercentage = record.ReturnPercentage
	snapshot.RefreshedAt = record.RefreshedAt
	if snapshot.RefreshedAt.IsZero() {
		snapshot.RefreshedAt = time.Now()
	}

	if err := s.db.Save(&snapshot).Error; err != nil {
		return fmt.Errorf("failed to save refresh snapshot: %w", err)
	}
	return nil
}

// GetRefreshSnapshot retrieves the latest refresh record of a position
func (s *LocalStorage) GetRefreshSnapshot(positionID string) (*interfaces.RefreshRecord, error) {
	var snapshot models.DBRefreshSnapshot

	result := s.db.Where("position_id = ?", positionID).First(&snapshot)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: refresh snapshot for %s", ErrNotFound, positionID)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get refresh snapshot: %w", result.Error)
	}

	return &interfaces.RefreshRecord{
		PositionID:       snapshot.PositionID,
		CanonicalSymbol:  snapshot.CanonicalSymbol,
		CurrentPrice:     snapshot.CurrentPrice,
		UnrealizedPNL:    snapshot.UnrealizedPNL,
		NetPNL:           snapshot.NetPNL,
		ReturnPercentage: snapshot.ReturnPercentage,
		RefreshedAt:      snapshot.RefreshedAt,
	}, nil
}

// Close closes the database connection
func (s *LocalStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func findPosition(db *gorm.DB, positionID string) (*models.DBOptionPosition, error) {
	var dbPosition models.DBOptionPosition

	result := db.Where("position_id = ?", positionID).First(&dbPosition)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: position %s", ErrNotFound, positionID)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get position: %w", result.Error)
	}
	return &dbPosition, nil
}

func loadTrades(db *gorm.DB, positionRefID uint) ([]*interfaces.TradeEvent, error) {
	var dbTrades []*models.DBOptionTrade

	result := db.Where("position_ref_id = ?", positionRefID).
		Order("trade_date ASC").
		Order("id ASC").
		Find(&dbTrades)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get trades: %w", result.Error)
	}

	trades := make([]*interfaces.TradeEvent, len(dbTrades))
	for i, dbTrade := range dbTrades {
		trades[i] = dbToTrade(dbTrade)
	}
	return trades, nil
}
