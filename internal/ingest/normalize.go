package ingest

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/watchpulse/watchpulse/internal/config"
	"github.com/watchpulse/watchpulse/internal/model"
	"github.com/watchpulse/watchpulse/internal/rates"
)

// DropReason classifies why an observation was excluded from aggregation.
type DropReason string

const (
	DropBadPrice     DropReason = "bad_price"
	DropUnknownModel DropReason = "unknown_model"
	DropBadCurrency  DropReason = "unresolved_currency"
	DropImplausible  DropReason = "implausible_price"
	DropDuplicate    DropReason = "duplicate"
)

// DropStats counts dropped observations per model and reason. Drops are an
// observability signal, never an error.
type DropStats struct {
	PerModel map[int64]map[DropReason]int `json:"per_model,omitempty"`
	Total    int                          `json:"total"`
}

func newDropStats() *DropStats {
	return &DropStats{PerModel: make(map[int64]map[DropReason]int)}
}

func (d *DropStats) add(modelID int64, reason DropReason) {
	byReason, ok := d.PerModel[modelID]
	if !ok {
		byReason = make(map[DropReason]int)
		d.PerModel[modelID] = byReason
	}
	byReason[reason]++
	d.Total++
}

// ForModel returns the drop count for one model across all reasons.
func (d *DropStats) ForModel(modelID int64) int {
	n := 0
	for _, c := range d.PerModel[modelID] {
		n += c
	}
	return n
}

// Normalizer validates a batch of raw observations for one brand and capture
// date: price parsing, currency conversion into the reference currency,
// plausibility screening against MSRP, and de-duplication.
type Normalizer struct {
	catalog *model.Catalog
	rates   *rates.Table
	minMult float64
	maxMult float64
}

// NewNormalizer builds a Normalizer. Plausibility bounds come from config as
// MSRP multipliers.
func NewNormalizer(catalog *model.Catalog, table *rates.Table, cfg config.IngestConfig) *Normalizer {
	return &Normalizer{
		catalog: catalog,
		rates:   table,
		minMult: cfg.PlausibilityMin,
		maxMult: cfg.PlausibilityMax,
	}
}

// Normalize cleans one day's observations. Per-listing problems drop the
// listing and bump a counter; they never fail the batch. The returned map is
// keyed by model ID with listings in input order.
func (n *Normalizer) Normalize(obs []model.ListingObservation) (map[int64][]model.NormalizedListing, *DropStats) {
	out := make(map[int64][]model.NormalizedListing)
	drops := newDropStats()
	seen := make(map[string]bool, len(obs))

	for _, o := range obs {
		ref := n.catalog.Lookup(o.ModelID)
		if ref == nil {
			drops.add(o.ModelID, DropUnknownModel)
			continue
		}

		raw, err := parseRawPrice(o.RawPrice)
		if err != nil || raw.Sign() <= 0 {
			drops.add(o.ModelID, DropBadPrice)
			continue
		}

		converted, err := n.convert(raw, o.Currency)
		if err != nil {
			drops.add(o.ModelID, DropBadCurrency)
			continue
		}
		price, _ := converted.Round(2).Float64()

		// Outliers are dropped, not clamped.
		if ref.MSRP > 0 && (price < n.minMult*ref.MSRP || price > n.maxMult*ref.MSRP) {
			drops.add(o.ModelID, DropImplausible)
			continue
		}

		key := fmt.Sprintf("%s|%d|%.2f", o.Source, o.ModelID, price)
		if seen[key] {
			drops.add(o.ModelID, DropDuplicate)
			continue
		}
		seen[key] = true

		out[o.ModelID] = append(out[o.ModelID], model.NormalizedListing{
			ListingID: o.ListingID,
			ModelID:   o.ModelID,
			Price:     price,
			Source:    o.Source,
			IsNew:     o.IsNew,
		})
	}

	if drops.Total > 0 {
		zap.L().Info("normalize: dropped observations",
			zap.Int("dropped", drops.Total),
			zap.Int("kept", len(obs)-drops.Total),
		)
		for modelID, byReason := range drops.PerModel {
			fields := make([]zap.Field, 0, len(byReason)+1)
			fields = append(fields, zap.Int64("model_id", modelID))
			for reason, count := range byReason {
				fields = append(fields, zap.Int(string(reason), count))
			}
			zap.L().Debug("normalize: per-model drops", fields...)
		}
	}

	return out, drops
}

// convert converts a parsed price into the reference currency. An empty
// currency code means the source already reports in the reference currency.
func (n *Normalizer) convert(amount decimal.Decimal, code string) (decimal.Decimal, error) {
	if code == "" {
		code = n.rates.Reference()
	}
	return n.rates.Convert(amount, code)
}

// parseRawPrice parses scraped price text, tolerating currency symbols and
// thousands separators ("$12,500", "12500.00").
func parseRawPrice(s string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.TrimLeft(cleaned, "$€£¥ ")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return decimal.Zero, eris.New("ingest: empty price")
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, eris.Wrapf(err, "ingest: parse price %q", s)
	}
	return d, nil
}
