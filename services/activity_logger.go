package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"optitrack/interfaces"
)

// Activity types recorded in the journal
const (
	ActivityPositionOpened  = "POSITION_OPENED"
	ActivityTradeRecorded   = "TRADE_RECORDED"
	ActivityTradeDeleted    = "TRADE_DELETED"
	ActivityPositionDeleted = "POSITION_DELETED"
	ActivityStatusChanged   = "STATUS_CHANGED"
	ActivityRefresh         = "REFRESH"
)

// ErrNoActivity is returned when no journal exists for a date
var ErrNoActivity = errors.New("no activity logged")

// ActivityLogger journals ledger mutations and lifecycle transitions to daily
// JSON files
type ActivityLogger struct {
	logger *logrus.Logger
	logDir string
	now    func() time.Time

	mu         sync.Mutex
	currentLog *DailyActivityLog
}

// DailyActivityLog represents a day's worth of position activity
type DailyActivityLog struct {
	Date       string          `json:"date"`
	Summary    ActivitySummary `json:"summary"`
	Activities []Activity      `json:"activities"`
}

// ActivitySummary provides counts for the day
type ActivitySummary struct {
	PositionsOpened   int `json:"positions_opened"`
	TradesRecorded    int `json:"trades_recorded"`
	TradesDeleted     int `json:"trades_deleted"`
	PositionsDeleted  int `json:"positions_deleted"`
	StatusChanges     int `json:"status_changes"`
	RefreshCycles     int `json:"refresh_cycles"`
	UnresolvedExpires int `json:"unresolved_expiries"`
}

// Activity represents a single journal entry
type Activity struct {
	Timestamp  time.Time              `json:"timestamp"`
	Type       string                 `json:"type"`
	PositionID string                 `json:"position_id,omitempty"`
	Symbol     string                 `json:"symbol,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
}

// NewActivityLogger creates a new activity logger
func NewActivityLogger(logDir string) *ActivityLogger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	// Ensure log directory exists
	if err := os.MkdirAll(logDir, 0755); err != nil {
		logger.WithError(err).Error("Failed to create activity log directory")
	}

	return &ActivityLogger{
		logger: logger,
		logDir: logDir,
		now:    time.Now,
	}
}

// SetLogger replaces the journal's logger
func (al *ActivityLogger) SetLogger(l *logrus.Logger) {
	al.logger = l
}

// LogPositionOpened journals a new position and its first trade
func (al *ActivityLogger) LogPositionOpened(position *interfaces.OptionPosition, first *interfaces.TradeEvent) error {
	return al.record(Activity{
		Type:       ActivityPositionOpened,
		PositionID: position.ID,
		Symbol:     position.StockSymbol,
		Details: map[string]interface{}{
			"direction":   position.Direction,
			"option_type": position.OptionType,
			"strike":      position.StrikePrice,
			"expiry":      position.ExpiryDate.Format("2006-01-02"),
			"contracts":   first.Contracts,
			"premium":     first.Premium,
		},
	})
}

// LogTradeRecorded journals a trade added to an existing position
func (al *ActivityLogger) LogTradeRecorded(position *interfaces.OptionPosition, trade *interfaces.TradeEvent) error {
	return al.record(Activity{
		Type:       ActivityTradeRecorded,
		PositionID: position.ID,
		Symbol:     position.StockSymbol,
		Details: map[string]interface{}{
			"trade_id":   trade.ID,
			"type":       trade.Type,
			"contracts":  trade.Contracts,
			"premium":    trade.Premium,
			"fee":        trade.Fee,
			"trade_date": trade.TradeDate.Format("2006-01-02"),
		},
	})
}

// LogTradeDeleted journals a removed trade
func (al *ActivityLogger) LogTradeDeleted(positionID string, tradeID uint) error {
	return al.record(Activity{
		Type:       ActivityTradeDeleted,
		PositionID: positionID,
		Details:    map[string]interface{}{"trade_id": tradeID},
	})
}

// LogPositionDeleted journals a deleted position
func (al *ActivityLogger) LogPositionDeleted(positionID string) error {
	return al.record(Activity{
		Type:       ActivityPositionDeleted,
		PositionID: positionID,
	})
}

// LogStatusChange journals a lifecycle transition
func (al *ActivityLogger) LogStatusChange(position *interfaces.OptionPosition, from, to interfaces.PositionStatus, referencePrice *float64) error {
	details := map[string]interface{}{
		"from": from,
		"to":   to,
	}
	if referencePrice != nil {
		details["reference_price"] = *referencePrice
	}

	return al.record(Activity{
		Type:       ActivityStatusChanged,
		PositionID: position.ID,
		Symbol:     position.StockSymbol,
		Details:    details,
	})
}

// LogRefresh journals one bulk refresh cycle
func (al *ActivityLogger) LogRefresh(refreshed, skipped int) error {
	return al.record(Activity{
		Type: ActivityRefresh,
		Details: map[string]interface{}{
			"refreshed": refreshed,
			"skipped":   skipped,
		},
	})
}

// ActivityFilter selects journal entries. Empty fields match everything.
type ActivityFilter struct {
	PositionID string
	Type       string
}

// IsKnownActivityType reports whether t is one of the journal's entry types
func IsKnownActivityType(t string) bool {
	switch t {
	case ActivityPositionOpened, ActivityTradeRecorded, ActivityTradeDeleted,
		ActivityPositionDeleted, ActivityStatusChanged, ActivityRefresh:
		return true
	}
	return false
}

func (f ActivityFilter) matches(a Activity) bool {
	if f.PositionID != "" && a.PositionID != f.PositionID {
		return false
	}
	if f.Type != "" && a.Type != f.Type {
		return false
	}
	return true
}

// Filter returns a copy of the log holding only matching entries, with the
// summary counted over those entries
func (l *DailyActivityLog) Filter(f ActivityFilter) *DailyActivityLog {
	filtered := &DailyActivityLog{Date: l.Date, Activities: make([]Activity, 0)}
	for _, a := range l.Activities {
		if !f.matches(a) {
			continue
		}
		filtered.Activities = append(filtered.Activities, a)
		countActivity(&filtered.Summary, a)
	}
	return filtered
}

func countActivity(s *ActivitySummary, a Activity) {
	switch a.Type {
	case ActivityPositionOpened:
		s.PositionsOpened++
	case ActivityTradeRecorded:
		s.TradesRecorded++
	case ActivityTradeDeleted:
		s.TradesDeleted++
	case ActivityPositionDeleted:
		s.PositionsDeleted++
	case ActivityStatusChanged:
		s.StatusChanges++
		// Details come back as strings once read from disk
		if fmt.Sprint(a.Details["to"]) == string(interfaces.StatusExpired) {
			s.UnresolvedExpires++
		}
	case ActivityRefresh:
		s.RefreshCycles++
	}
}

// PositionHistory returns every journaled entry of one position across all
// days, oldest first
func (al *ActivityLogger) PositionHistory(positionID string) ([]Activity, error) {
	dates, err := al.ListAvailableLogs()
	if err != nil {
		return nil, err
	}

	al.mu.Lock()
	defer al.mu.Unlock()

	filter := ActivityFilter{PositionID: positionID}
	history := make([]Activity, 0)
	for _, date := range dates {
		log, err := al.readLog(date)
		if err != nil {
			al.logger.WithError(err).WithField("date", date).Warn("Skipping unreadable activity log")
			continue
		}
		history = append(history, log.Filter(filter).Activities...)
	}
	return history, nil
}

// GetCurrentLog returns today's log
func (al *ActivityLogger) GetCurrentLog() (*DailyActivityLog, error) {
	al.mu.Lock()
	defer al.mu.Unlock()

	date := al.now().Format("2006-01-02")
	if al.currentLog != nil && al.currentLog.Date == date {
		current := *al.currentLog
		current.Activities = append([]Activity(nil), al.currentLog.Activities...)
		return &current, nil
	}
	return al.readLog(date)
}

// GetLogForDate retrieves the log for a specific date
func (al *ActivityLogger) GetLogForDate(date string) (*DailyActivityLog, error) {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, fmt.Errorf("invalid date %q, use YYYY-MM-DD", date)
	}

	al.mu.Lock()
	defer al.mu.Unlock()
	return al.readLog(date)
}

// ListAvailableLogs returns the dates that have a journal, oldest first
func (al *ActivityLogger) ListAvailableLogs() ([]string, error) {
	files, err := os.ReadDir(al.logDir)
	if err != nil {
		return nil, err
	}

	dates := make([]string, 0)
	for _, file := range files {
		name := file.Name()
		if file.IsDir() || filepath.Ext(name) != ".json" || !strings.HasPrefix(name, "activity_") {
			continue
		}
		// activity_2024-03-01.json
		dates = append(dates, strings.TrimSuffix(strings.TrimPrefix(name, "activity_"), ".json"))
	}
	sort.Strings(dates)

	return dates, nil
}

func (al *ActivityLogger) record(activity Activity) error {
	al.mu.Lock()
	defer al.mu.Unlock()

	now := al.now()
	date := now.Format("2006-01-02")

	if al.currentLog == nil || al.currentLog.Date != date {
		existing, err := al.readLog(date)
		if err != nil {
			existing = &DailyActivityLog{Date: date, Activities: make([]Activity, 0)}
		}
		al.currentLog = existing
	}

	activity.Timestamp = now
	al.currentLog.Activities = append(al.currentLog.Activities, activity)
	countActivity(&al.currentLog.Summary, activity)

	al.logger.WithFields(logrus.Fields{
		"type":        activity.Type,
		"position_id": activity.PositionID,
	}).Debug("Activity logged")

	return al.saveLog()
}

func (al *ActivityLogger) readLog(date string) (*DailyActivityLog, error) {
	data, err := os.ReadFile(al.filename(date))
	if err != nil {
		return nil, fmt.Errorf("%w for date %s: %v", ErrNoActivity, date, err)
	}

	var log DailyActivityLog
	if err := json.Unmarshal(data, &log); err != nil {
		return nil, fmt.Errorf("failed to parse log: %w", err)
	}

	return &log, nil
}

func (al *ActivityLogger) filename(date string) string {
	return filepath.Join(al.logDir, fmt.Sprintf("activity_%s.json", date))
}

// saveLog saves the current log to disk
func (al *ActivityLogger) saveLog() error {
	if al.currentLog == nil {
		return fmt.Errorf("no active log to save")
	}

	data, err := json.MarshalIndent(al.currentLog, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal log: %w", err)
	}

	if err := os.WriteFile(al.filename(al.currentLog.Date), data, 0644); err != nil {
		return fmt.Errorf("failed to write log file: %w", err)
	}

	return nil
}
