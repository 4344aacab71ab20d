package ingest

import (
	"context"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/watchpulse/watchpulse/internal/model"
	"github.com/watchpulse/watchpulse/internal/store"
)

const maxValidationExamples = 10

// PriceAnomaly flags a listing whose price jumped more than the threshold
// between consecutive days.
type PriceAnomaly struct {
	ListingID int64   `json:"listing_id"`
	PrevPrice float64 `json:"prev_price"`
	CurrPrice float64 `json:"curr_price"`
	PctJump   float64 `json:"pct_jump"`
}

// ValidationReport is the post-run data quality check attached to the run
// summary. None of its findings are fatal.
type ValidationReport struct {
	AnomalyThresholdPct  float64              `json:"anomaly_threshold_pct"`
	AnomalyCount         int                  `json:"anomaly_count"`
	AnomalyExamples      []PriceAnomaly       `json:"anomaly_examples,omitempty"`
	MissingStatsCount    int                  `json:"missing_stats_count"`
	MissingStatsModelIDs []int64              `json:"missing_stats_model_ids,omitempty"`
	DuplicateURLCount    int                  `json:"duplicate_url_count"`
	DuplicateURLExamples []store.DuplicateURL `json:"duplicate_url_examples,omitempty"`
}

// priceAnomalies pairs listings present on both days and flags jumps above
// thresholdPct, largest first.
func priceAnomalies(today, prior map[int64][]model.NormalizedListing, thresholdPct float64) (int, []PriceAnomaly) {
	prevPrices := make(map[int64]float64)
	for _, listings := range prior {
		for _, l := range listings {
			prevPrices[l.ListingID] = l.Price
		}
	}

	var anomalies []PriceAnomaly
	for _, listings := range today {
		for _, l := range listings {
			prev, ok := prevPrices[l.ListingID]
			if !ok || prev <= 0 {
				continue
			}
			jump := math.Abs((l.Price-prev)/prev) * 100
			if jump > thresholdPct {
				anomalies = append(anomalies, PriceAnomaly{
					ListingID: l.ListingID,
					PrevPrice: prev,
					CurrPrice: l.Price,
					PctJump:   round2(jump),
				})
			}
		}
	}

	sort.Slice(anomalies, func(i, j int) bool {
		if anomalies[i].PctJump != anomalies[j].PctJump {
			return anomalies[i].PctJump > anomalies[j].PctJump
		}
		return anomalies[i].ListingID < anomalies[j].ListingID
	})

	count := len(anomalies)
	if count > maxValidationExamples {
		anomalies = anomalies[:maxValidationExamples]
	}
	return count, anomalies
}

// validate assembles the post-run report: day-over-day price anomalies,
// models left without a stats row, and duplicate listing URLs.
func (p *Pipeline) validate(ctx context.Context, brand string, today, prior map[int64][]model.NormalizedListing, missing []int64) *ValidationReport {
	threshold := p.cfg.Ingest.AnomalyThresholdPct
	report := &ValidationReport{AnomalyThresholdPct: threshold}

	report.AnomalyCount, report.AnomalyExamples = priceAnomalies(today, prior, threshold)

	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	report.MissingStatsCount = len(missing)
	report.MissingStatsModelIDs = missing

	dups, err := p.store.DuplicateListingURLs(ctx, brand)
	if err != nil {
		// Validation is best-effort; a failed check is logged, not raised.
		zap.L().Warn("validate: duplicate url check failed", zap.Error(err))
	} else {
		report.DuplicateURLCount = len(dups)
		if len(dups) > maxValidationExamples {
			dups = dups[:maxValidationExamples]
		}
		report.DuplicateURLExamples = dups
	}

	return report
}
