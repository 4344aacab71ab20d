package ingest

import (
	"math"
	"sort"

	"github.com/watchpulse/watchpulse/internal/model"
)

// DayMetrics is the per-model reduction of one day's normalized listings,
// before scoring.
type DayMetrics struct {
	MedianPrice      *float64
	ListingsCount    int
	NewListingsCount int
	SoldRateProxy    float64
}

// Aggregate reduces one model's normalized listings for the capture date.
// priorIDs are the listing IDs observed for the model on the previous day;
// the sold-rate proxy is the fraction of those that disappeared today. With
// no prior-day row the proxy defaults to 0: first observation carries no
// turnover signal, a deliberately conservative default.
func Aggregate(listings []model.NormalizedListing, priorIDs []int64) DayMetrics {
	m := DayMetrics{
		ListingsCount: len(listings),
		SoldRateProxy: soldRateProxy(listings, priorIDs),
	}

	if len(listings) == 0 {
		// Zero-listing day: nil median, zero counts. The row is still
		// written so absence of listings stays a recorded fact.
		return m
	}

	for _, l := range listings {
		if l.IsNew {
			m.NewListingsCount++
		}
	}

	median := round2(medianPrice(listings))
	m.MedianPrice = &median
	return m
}

// medianPrice returns the median of the listing prices: middle value for an
// odd count, mean of the two middle values for an even count.
func medianPrice(listings []model.NormalizedListing) float64 {
	prices := make([]float64, len(listings))
	for i, l := range listings {
		prices[i] = l.Price
	}
	sort.Float64s(prices)

	mid := len(prices) / 2
	if len(prices)%2 == 1 {
		return prices[mid]
	}
	return (prices[mid-1] + prices[mid]) / 2
}

// soldRateProxy approximates turnover from day-over-day listing
// disappearance: prior-day listings absent today over prior-day count,
// clamped to [0,1].
func soldRateProxy(listings []model.NormalizedListing, priorIDs []int64) float64 {
	if len(priorIDs) == 0 {
		return 0
	}

	today := make(map[int64]bool, len(listings))
	for _, l := range listings {
		today[l.ListingID] = true
	}

	gone := 0
	for _, id := range priorIDs {
		if !today[id] {
			gone++
		}
	}

	return round4(clamp01(float64(gone) / float64(len(priorIDs))))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
