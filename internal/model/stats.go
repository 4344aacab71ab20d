package model

import "time"

// WaitBand is a human-readable scarcity category derived from the wait-time
// index.
type WaitBand string

const (
	WaitBandShort    WaitBand = "0-6 months"
	WaitBandMedium   WaitBand = "6-18 months"
	WaitBandLong     WaitBand = "18 months-3 years"
	WaitBandVeryLong WaitBand = "3-5 years"
	WaitBandExtreme  WaitBand = "5-8+ years"
)

// waitBandThresholds maps the lower bound (inclusive) of each band, checked
// highest first. Every index in [0,1] lands in exactly one band.
var waitBandThresholds = []struct {
	lower float64
	band  WaitBand
}{
	{0.80, WaitBandExtreme},
	{0.60, WaitBandVeryLong},
	{0.40, WaitBandLong},
	{0.20, WaitBandMedium},
	{0.00, WaitBandShort},
}

// WaitBandFor classifies a wait-time index into its band. Inputs outside
// [0,1] are treated as if clamped.
func WaitBandFor(index float64) WaitBand {
	for _, t := range waitBandThresholds {
		if index >= t.lower {
			return t.band
		}
	}
	return WaitBandShort
}

// DailyModelStats is the pipeline's output: one row per (model_id,
// captured_date). MedianPrice is nil on a zero-listing day; the row is still
// written so absence of listings stays queryable.
type DailyModelStats struct {
	ModelID          int64     `json:"model_id"`
	CapturedDate     time.Time `json:"captured_date"`
	MedianPrice      *float64  `json:"median_price"`
	ListingsCount    int       `json:"listings_count"`
	NewListingsCount int       `json:"new_listings_count"`
	SoldRateProxy    float64   `json:"sold_rate_proxy"`
	PremiumOverMSRP  float64   `json:"premium_over_msrp"`
	WaitTimeIndex    float64   `json:"wait_time_index"`
	WaitBand         WaitBand  `json:"wait_band"`
}

// ScarcitySignals are the three named inputs to the composite score. Premium
// is a ratio and may exceed 1 or go negative; the other two are in [0,1].
type ScarcitySignals struct {
	PremiumOverMSRP   float64 `json:"premium_over_msrp"`
	AvailabilityRatio float64 `json:"availability_ratio"`
	Velocity          float64 `json:"velocity"`
}

// DateOnly formats a capture date the way it is keyed in the store.
func DateOnly(t time.Time) string {
	return t.Format("2006-01-02")
}
