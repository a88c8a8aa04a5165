package services

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optitrack/interfaces"
)

func newTestActivityLogger(t *testing.T, now time.Time) *ActivityLogger {
	t.Helper()
	al := NewActivityLogger(filepath.Join(t.TempDir(), "activity"))
	al.SetLogger(quietLogger())
	al.now = func() time.Time { return now }
	return al
}

func TestActivityLoggerJournalsAndPersists(t *testing.T) {
	day := time.Date(2024, 3, 8, 9, 30, 0, 0, time.UTC)
	al := newTestActivityLogger(t, day)

	position := &interfaces.OptionPosition{
		ID:          "pos-1",
		StockSymbol: "HK.09988",
		Direction:   interfaces.DirectionSell,
		OptionType:  interfaces.OptionPut,
		StrikePrice: 80,
		ExpiryDate:  day,
	}
	first := &interfaces.TradeEvent{Type: "OPEN", Contracts: 10, Premium: 2}
	ref := 75.0

	require.NoError(t, al.LogPositionOpened(position, first))
	require.NoError(t, al.LogTradeRecorded(position, &interfaces.TradeEvent{ID: 2, Type: "ADD", Contracts: 5, TradeDate: day}))
	require.NoError(t, al.LogStatusChange(position, interfaces.StatusOpen, interfaces.StatusExpired, nil))
	require.NoError(t, al.LogStatusChange(position, interfaces.StatusExpired, interfaces.StatusExercised, &ref))
	require.NoError(t, al.LogRefresh(3, 1))

	current, err := al.GetCurrentLog()
	require.NoError(t, err)
	assert.Equal(t, "2024-03-08", current.Date)
	assert.Len(t, current.Activities, 5)
	assert.Equal(t, 1, current.Summary.PositionsOpened)
	assert.Equal(t, 1, current.Summary.TradesRecorded)
	assert.Equal(t, 2, current.Summary.StatusChanges)
	assert.Equal(t, 1, current.Summary.UnresolvedExpires)
	assert.Equal(t, 1, current.Summary.RefreshCycles)
	assert.Equal(t, 75.0, current.Activities[3].Details["reference_price"])

	// A fresh logger over the same directory reads the persisted journal
	reopened := NewActivityLogger(al.logDir)
	reopened.SetLogger(quietLogger())
	stored, err := reopened.GetLogForDate("2024-03-08")
	require.NoError(t, err)
	assert.Len(t, stored.Activities, 5)
	assert.Equal(t, ActivityPositionOpened, stored.Activities[0].Type)
}

func TestActivityLoggerRollsOverDays(t *testing.T) {
	day := time.Date(2024, 3, 8, 23, 59, 0, 0, time.UTC)
	al := newTestActivityLogger(t, day)

	require.NoError(t, al.LogPositionDeleted("pos-1"))
	al.now = func() time.Time { return day.Add(2 * time.Minute) }
	require.NoError(t, al.LogTradeDeleted("pos-2", 7))

	dates, err := al.ListAvailableLogs()
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-03-08", "2024-03-09"}, dates)

	first, err := al.GetLogForDate("2024-03-08")
	require.NoError(t, err)
	assert.Equal(t, 1, first.Summary.PositionsDeleted)
	assert.Zero(t, first.Summary.TradesDeleted)
}

func TestActivityLoggerMissingAndInvalidDates(t *testing.T) {
	al := newTestActivityLogger(t, time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC))

	_, err := al.GetLogForDate("2024-01-01")
	assert.ErrorIs(t, err, ErrNoActivity)

	_, err = al.GetLogForDate("yesterday")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoActivity)

	// Unrelated files are ignored
	require.NoError(t, os.WriteFile(filepath.Join(al.logDir, "notes.json"), []byte("{}"), 0644))
	dates, err := al.ListAvailableLogs()
	require.NoError(t, err)
	assert.Empty(t, dates)
}

func TestActivityLoggerFilterAndPositionHistory(t *testing.T) {
	day := time.Date(2024, 3, 8, 23, 59, 0, 0, time.UTC)
	al := newTestActivityLogger(t, day)

	alibaba := &interfaces.OptionPosition{ID: "pos-1", StockSymbol: "HK.09988"}
	tencent := &interfaces.OptionPosition{ID: "pos-2", StockSymbol: "HK.00700"}

	require.NoError(t, al.LogStatusChange(alibaba, interfaces.StatusOpen, interfaces.StatusExpired, nil))
	require.NoError(t, al.LogTradeDeleted(tencent.ID, 4))
	require.NoError(t, al.LogRefresh(2, 0))

	al.now = func() time.Time { return day.Add(2 * time.Minute) }
	ref := 75.0
	require.NoError(t, al.LogStatusChange(alibaba, interfaces.StatusExpired, interfaces.StatusExercised, &ref))

	// Filtering a log read back from disk still counts expiries
	stored, err := al.GetLogForDate("2024-03-08")
	require.NoError(t, err)
	filtered := stored.Filter(ActivityFilter{PositionID: alibaba.ID})
	require.Len(t, filtered.Activities, 1)
	assert.Equal(t, 1, filtered.Summary.StatusChanges)
	assert.Equal(t, 1, filtered.Summary.UnresolvedExpires)
	assert.Zero(t, filtered.Summary.TradesDeleted)
	assert.Len(t, stored.Activities, 3, "filter leaves the source log untouched")

	refreshes := stored.Filter(ActivityFilter{Type: ActivityRefresh})
	require.Len(t, refreshes.Activities, 1)
	assert.Equal(t, 1, refreshes.Summary.RefreshCycles)

	history, err := al.PositionHistory(alibaba.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "EXPIRED", history[0].Details["to"])
	assert.Equal(t, "EXERCISED", history[1].Details["to"])

	assert.True(t, IsKnownActivityType(ActivityTradeDeleted))
	assert.False(t, IsKnownActivityType("trade_deleted"))
}
