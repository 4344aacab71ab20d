package ingest

import (
	"time"

	"github.com/watchpulse/watchpulse/internal/config"
	"github.com/watchpulse/watchpulse/internal/model"
)

// Weights are the composite-score weights, already normalized to sum to 1.
type Weights struct {
	Premium      float64
	Availability float64
	Velocity     float64
}

// WeightsFromConfig normalizes the configured weights by their sum. All-zero
// weights fall back to equal thirds.
func WeightsFromConfig(cfg config.ScoringConfig) Weights {
	total := cfg.PremiumWeight + cfg.AvailabilityWeight + cfg.VelocityWeight
	if total <= 0 {
		third := 1.0 / 3.0
		return Weights{Premium: third, Availability: third, Velocity: third}
	}
	return Weights{
		Premium:      cfg.PremiumWeight / total,
		Availability: cfg.AvailabilityWeight / total,
		Velocity:     cfg.VelocityWeight / total,
	}
}

// Signals derives the three scarcity signals from a model's daily metrics.
// prior is the model's previous-day stats row, used to carry the premium
// forward across a day with no known median; msrp ≤ 0 means unknown.
func Signals(m DayMetrics, msrp float64, prior *model.DailyModelStats) model.ScarcitySignals {
	var premium float64
	switch {
	case m.MedianPrice != nil && msrp > 0:
		premium = round4((*m.MedianPrice - msrp) / msrp)
	case m.MedianPrice == nil && prior != nil:
		premium = prior.PremiumOverMSRP
	}

	freshness := 0.0
	if m.ListingsCount > 0 {
		freshness = float64(m.NewListingsCount) / float64(m.ListingsCount)
	}

	return model.ScarcitySignals{
		PremiumOverMSRP:   premium,
		AvailabilityRatio: clamp01(1 - m.SoldRateProxy),
		Velocity:          0.6*m.SoldRateProxy + 0.4*freshness,
	}
}

// CompositeIndex combines the signals into the bounded wait-time index.
// Premium participates clamped to [0,1]; the stored premium keeps its sign.
func CompositeIndex(s model.ScarcitySignals, w Weights) float64 {
	idx := w.Premium*clamp01(s.PremiumOverMSRP) +
		w.Availability*(1-s.AvailabilityRatio) +
		w.Velocity*s.Velocity
	return round4(clamp01(idx))
}

// ScoreDay produces the full stats row for one model and capture date.
func ScoreDay(modelID int64, date time.Time, m DayMetrics, msrp float64, prior *model.DailyModelStats, w Weights) model.DailyModelStats {
	signals := Signals(m, msrp, prior)
	index := CompositeIndex(signals, w)

	return model.DailyModelStats{
		ModelID:          modelID,
		CapturedDate:     date,
		MedianPrice:      m.MedianPrice,
		ListingsCount:    m.ListingsCount,
		NewListingsCount: m.NewListingsCount,
		SoldRateProxy:    m.SoldRateProxy,
		PremiumOverMSRP:  signals.PremiumOverMSRP,
		WaitTimeIndex:    index,
		WaitBand:         model.WaitBandFor(index),
	}
}
