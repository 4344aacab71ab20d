package ingest

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/watchpulse/watchpulse/internal/config"
	"github.com/watchpulse/watchpulse/internal/model"
	"github.com/watchpulse/watchpulse/internal/rates"
	"github.com/watchpulse/watchpulse/internal/store"
)

// Pipeline sequences one (brand, captured_date) run: load catalog, normalize
// the day's observations, then per model aggregate → score → write. The run
// is all-or-nothing per model, never per batch.
type Pipeline struct {
	cfg     *config.Config
	store   store.Store
	rates   *rates.Table
	weights Weights
}

// New creates a Pipeline with all dependencies.
func New(cfg *config.Config, st store.Store, table *rates.Table) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		store:   st,
		rates:   table,
		weights: WeightsFromConfig(cfg.Scoring),
	}
}

// Run executes the pipeline for one brand and capture date. A non-nil error
// means the run was fatal (catalog or rate table unavailable, listing source
// unreadable); per-model failures are reported in the summary instead. Once
// ctx is cancelled no new model work is scheduled, but in-flight writes
// finish so no half-written row is left behind.
func (p *Pipeline) Run(ctx context.Context, brand string, date time.Time) (*RunSummary, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := zap.L().With(
		zap.String("run_id", runID),
		zap.String("brand", brand),
		zap.String("date", model.DateOnly(date)),
	)
	log.Info("pipeline: starting run")

	summary := &RunSummary{
		RunID:        runID,
		Brand:        brand,
		CapturedDate: model.DateOnly(date),
	}

	// Fatal preconditions: catalog and rate table.
	models, err := p.store.Catalog(ctx, brand)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: load catalog for %s", brand)
	}
	if len(models) == 0 {
		return nil, eris.Errorf("pipeline: no catalog models for brand %s", brand)
	}
	if p.rates == nil || p.rates.Len() == 0 {
		return nil, eris.New("pipeline: rate table unavailable")
	}
	catalog := model.NewCatalog(brand, models)
	summary.ModelsTotal = catalog.Len()

	// The run log is observability, not a precondition.
	if err := p.store.StartRun(ctx, store.RunRecord{ID: runID, Brand: brand, CapturedDate: date}); err != nil {
		log.Warn("pipeline: failed to record run start", zap.Error(err))
	}

	// Shared read-only inputs, fanned out to all workers.
	obsToday, err := p.store.Observations(ctx, brand, date)
	if err != nil {
		return nil, p.failRun(ctx, runID, summary, eris.Wrap(err, "pipeline: load observations"))
	}
	prevDate := date.AddDate(0, 0, -1)
	obsPrev, err := p.store.Observations(ctx, brand, prevDate)
	if err != nil {
		return nil, p.failRun(ctx, runID, summary, eris.Wrap(err, "pipeline: load prior-day observations"))
	}
	priorStats, err := p.store.StatsForDate(ctx, brand, prevDate)
	if err != nil {
		return nil, p.failRun(ctx, runID, summary, eris.Wrap(err, "pipeline: load prior-day stats"))
	}

	normalizer := NewNormalizer(catalog, p.rates, p.cfg.Ingest)
	normToday, drops := normalizer.Normalize(obsToday)
	normPrev, _ := normalizer.Normalize(obsPrev)
	summary.Drops = drops

	priorIDs := make(map[int64][]int64, len(normPrev))
	for modelID, listings := range normPrev {
		ids := make([]int64, len(listings))
		for i, l := range listings {
			ids[i] = l.ListingID
		}
		priorIDs[modelID] = ids
	}

	// Per-model fan-out. Models have no data dependency on each other.
	var mu sync.Mutex
	written := make(map[int64]bool, catalog.Len())

	// Floor of 1: a zero or negative limit would make every Go call block.
	limit := p.cfg.Ingest.MaxConcurrentModels
	if limit < 1 {
		limit = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for _, ref := range catalog.Models {
		if gctx.Err() != nil {
			// Stop scheduling; whatever is in flight still completes.
			mu.Lock()
			summary.Cancelled++
			mu.Unlock()
			continue
		}

		g.Go(func() error {
			metrics := Aggregate(normToday[ref.ID], priorIDs[ref.ID])

			var prior *model.DailyModelStats
			if prev, ok := priorStats[ref.ID]; ok {
				prior = &prev
			}
			stats := ScoreDay(ref.ID, date, metrics, ref.MSRP, prior, p.weights)

			// Writes run to completion even if the run is cancelled
			// mid-flight: a row is either absent or whole.
			writeCtx := context.WithoutCancel(gctx)
			if err := p.store.UpsertDailyStats(writeCtx, stats); err != nil {
				log.Error("pipeline: write failed",
					zap.Int64("model_id", ref.ID),
					zap.String("ref_code", ref.RefCode),
					zap.Error(err),
				)
				mu.Lock()
				summary.Failures = append(summary.Failures, ModelFailure{
					ModelID: ref.ID,
					RefCode: ref.RefCode,
					Stage:   "write",
					Error:   err.Error(),
				})
				mu.Unlock()
				return nil // isolated: sibling models keep going
			}

			mu.Lock()
			written[ref.ID] = true
			summary.Processed++
			if metrics.ListingsCount == 0 {
				summary.ZeroListings++
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; failures land in the summary

	var missing []int64
	for _, ref := range catalog.Models {
		if !written[ref.ID] {
			missing = append(missing, ref.ID)
		}
	}
	summary.Validation = p.validate(ctx, brand, normToday, normPrev, missing)
	summary.DurationMS = time.Since(start).Milliseconds()

	status := store.RunStatusComplete
	if summary.Failed() {
		status = store.RunStatusFailed
	}
	p.completeRun(ctx, runID, status, summary)

	log.Info("pipeline: run finished",
		zap.Int("processed", summary.Processed),
		zap.Int("zero_listings", summary.ZeroListings),
		zap.Int("failures", len(summary.Failures)),
		zap.Int("dropped", drops.Total),
		zap.Int64("duration_ms", summary.DurationMS),
	)

	return summary, nil
}

// failRun records a fatal outcome in the run log before returning the error.
func (p *Pipeline) failRun(ctx context.Context, runID string, summary *RunSummary, err error) error {
	summary.Failures = append(summary.Failures, ModelFailure{Stage: "run", Error: err.Error()})
	p.completeRun(ctx, runID, store.RunStatusFailed, summary)
	return err
}

func (p *Pipeline) completeRun(ctx context.Context, runID, status string, summary *RunSummary) {
	payload, err := json.Marshal(summary)
	if err != nil {
		zap.L().Warn("pipeline: marshal summary", zap.Error(err))
		payload = nil
	}
	// The run row should outlive a cancelled context.
	if err := p.store.CompleteRun(context.WithoutCancel(ctx), runID, status, payload); err != nil {
		zap.L().Warn("pipeline: failed to record run completion", zap.Error(err))
	}
}
