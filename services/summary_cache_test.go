package services

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optitrack/interfaces"
	"optitrack/pnl"
)

func cacheInput(price float64) pnl.Input {
	return pnl.Input{
		Terms: pnl.Terms{
			Direction:   interfaces.DirectionSell,
			OptionType:  interfaces.OptionPut,
			StrikePrice: 80,
			ExpiryDate:  time.Date(2024, 3, 28, 0, 0, 0, 0, time.UTC),
		},
		Trades: []*interfaces.TradeEvent{{
			Type:              pnl.TypeOpen,
			Contracts:         10,
			Premium:           2,
			SharesPerContract: 500,
			TradeDate:         time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		}},
		LivePrice: &price,
	}
}

func TestSummaryKeyTracksInputs(t *testing.T) {
	a, err := SummaryKey(cacheInput(1.5))
	require.NoError(t, err)
	b, err := SummaryKey(cacheInput(1.5))
	require.NoError(t, err)
	c, err := SummaryKey(cacheInput(1.6))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestMemorySummaryCache(t *testing.T) {
	ctx := context.Background()
	cache := NewMemorySummaryCache(time.Minute)

	_, ok := cache.Get(ctx, "missing")
	assert.False(t, ok)

	summary := pnl.Calculate(cacheInput(1.5))
	cache.Set(ctx, "k", summary)

	got, ok := cache.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, summary, *got)

	expired := NewMemorySummaryCache(-time.Second)
	expired.Set(ctx, "k", summary)
	_, ok = expired.Get(ctx, "k")
	assert.False(t, ok)
}

func TestRefreshMetricsRegisterAndCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRefreshMetrics(reg)

	m.observeRefreshed()
	m.observeRefreshed()
	m.observeSkipped("no_quote")
	m.observeTransition(string(interfaces.StatusLapsed))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.refreshed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.skipped.WithLabelValues("no_quote")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("LAPSED")))

	var nilMetrics *RefreshMetrics
	assert.NotPanics(t, func() {
		nilMetrics.observeRefreshed()
		nilMetrics.observeCacheHit()
	})
}
