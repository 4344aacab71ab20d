package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchpulse/watchpulse/internal/config"
	"github.com/watchpulse/watchpulse/internal/model"
)

func TestWeightsFromConfig(t *testing.T) {
	t.Run("normalizes by sum", func(t *testing.T) {
		w := WeightsFromConfig(config.ScoringConfig{PremiumWeight: 2, AvailabilityWeight: 1, VelocityWeight: 1})
		assert.InDelta(t, 0.5, w.Premium, 1e-12)
		assert.InDelta(t, 0.25, w.Availability, 1e-12)
		assert.InDelta(t, 0.25, w.Velocity, 1e-12)
	})

	t.Run("all zero falls back to thirds", func(t *testing.T) {
		w := WeightsFromConfig(config.ScoringConfig{})
		assert.InDelta(t, 1.0/3.0, w.Premium, 1e-12)
		assert.InDelta(t, 1.0/3.0, w.Availability, 1e-12)
		assert.InDelta(t, 1.0/3.0, w.Velocity, 1e-12)
	})
}

// The worked first-day example: MSRP 10000, prices 12000/12500/13000,
// one new listing, no prior-day row.
func TestScoreDay_FirstObservation(t *testing.T) {
	date := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	listings := listingsWithPrices(12000, 12500, 13000)
	listings[0].IsNew = true

	m := Aggregate(listings, nil)
	w := WeightsFromConfig(config.ScoringConfig{PremiumWeight: 1, AvailabilityWeight: 1, VelocityWeight: 1})
	stats := ScoreDay(42, date, m, 10000, nil, w)

	require.NotNil(t, stats.MedianPrice)
	assert.Equal(t, 12500.0, *stats.MedianPrice)
	assert.Equal(t, 3, stats.ListingsCount)
	assert.Equal(t, 1, stats.NewListingsCount)
	assert.Equal(t, 0.0, stats.SoldRateProxy)
	assert.Equal(t, 0.25, stats.PremiumOverMSRP)
	assert.Equal(t, 0.1278, stats.WaitTimeIndex)
	assert.Equal(t, model.WaitBandShort, stats.WaitBand)
}

func TestSignals_PremiumCarriedAcrossEmptyDay(t *testing.T) {
	prior := &model.DailyModelStats{PremiumOverMSRP: 0.31}
	s := Signals(DayMetrics{MedianPrice: nil, SoldRateProxy: 1}, 10000, prior)
	assert.Equal(t, 0.31, s.PremiumOverMSRP)
}

func TestSignals_NoMedianNoPrior(t *testing.T) {
	s := Signals(DayMetrics{MedianPrice: nil}, 10000, nil)
	assert.Equal(t, 0.0, s.PremiumOverMSRP)
}

func TestSignals_FreshMedianOverridesPrior(t *testing.T) {
	median := 9000.0
	prior := &model.DailyModelStats{PremiumOverMSRP: 0.5}
	s := Signals(DayMetrics{MedianPrice: &median, ListingsCount: 1}, 10000, prior)
	assert.Equal(t, -0.1, s.PremiumOverMSRP)
}

func TestSignals_UnknownMSRP(t *testing.T) {
	median := 15000.0
	s := Signals(DayMetrics{MedianPrice: &median, ListingsCount: 2}, 0, nil)
	assert.Equal(t, 0.0, s.PremiumOverMSRP)
}

func TestSignals_AvailabilityAndVelocity(t *testing.T) {
	median := 10000.0
	m := DayMetrics{MedianPrice: &median, ListingsCount: 4, NewListingsCount: 2, SoldRateProxy: 0.5}
	s := Signals(m, 10000, nil)
	assert.InDelta(t, 0.5, s.AvailabilityRatio, 1e-12)
	// 0.6*0.5 + 0.4*(2/4)
	assert.InDelta(t, 0.5, s.Velocity, 1e-12)
}

func TestCompositeIndex_NegativePremiumClampedOut(t *testing.T) {
	w := Weights{Premium: 1.0 / 3.0, Availability: 1.0 / 3.0, Velocity: 1.0 / 3.0}
	s := model.ScarcitySignals{PremiumOverMSRP: -0.4, AvailabilityRatio: 1, Velocity: 0}
	assert.Equal(t, 0.0, CompositeIndex(s, w))
}

func TestCompositeIndex_Bounded(t *testing.T) {
	w := Weights{Premium: 1.0 / 3.0, Availability: 1.0 / 3.0, Velocity: 1.0 / 3.0}
	s := model.ScarcitySignals{PremiumOverMSRP: 3.2, AvailabilityRatio: 0, Velocity: 1}
	idx := CompositeIndex(s, w)
	assert.LessOrEqual(t, idx, 1.0)
	assert.Equal(t, 1.0, idx)
}

func TestScoreDay_ZeroListingDay(t *testing.T) {
	date := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	w := WeightsFromConfig(config.ScoringConfig{PremiumWeight: 1, AvailabilityWeight: 1, VelocityWeight: 1})

	m := Aggregate(nil, []int64{1, 2, 3})
	prior := &model.DailyModelStats{PremiumOverMSRP: 0.2}
	stats := ScoreDay(7, date, m, 10000, prior, w)

	assert.Nil(t, stats.MedianPrice)
	assert.Equal(t, 0, stats.ListingsCount)
	assert.Equal(t, 1.0, stats.SoldRateProxy)
	assert.Equal(t, 0.2, stats.PremiumOverMSRP)
	assert.NotEmpty(t, stats.WaitBand)
}
