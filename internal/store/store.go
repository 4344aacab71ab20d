package store

import (
	"context"
	"time"

	"github.com/watchpulse/watchpulse/internal/model"
)

// DuplicateURL reports a listing URL that appears on more than one listing
// row for the brand.
type DuplicateURL struct {
	URL   string `json:"url"`
	Count int    `json:"count"`
}

// RunRecord is one row in the ingest run log.
type RunRecord struct {
	ID           string    `json:"id"`
	Brand        string    `json:"brand"`
	CapturedDate time.Time `json:"captured_date"`
	Status       string    `json:"status"`
}

// Run log statuses.
const (
	RunStatusRunning  = "running"
	RunStatusComplete = "complete"
	RunStatusFailed   = "failed"
)

// Store is the persistence boundary of the pipeline: the catalog and listing
// tables the acquisition layer maintains (read-only here) and the
// model_daily_stats table the writer owns.
type Store interface {
	// Catalog returns the brand's models ordered by ID.
	Catalog(ctx context.Context, brand string) ([]model.ModelReference, error)

	// Observations returns the raw listing snapshots captured for the brand
	// on the given date.
	Observations(ctx context.Context, brand string, date time.Time) ([]model.ListingObservation, error)

	// StatsForDate returns the brand's stats rows for a date, keyed by model.
	StatsForDate(ctx context.Context, brand string, date time.Time) (map[int64]model.DailyModelStats, error)

	// UpsertDailyStats writes one stats row. The statement is a single atomic
	// upsert keyed on (model_id, captured_date): re-running with identical
	// input converges to an identical row.
	UpsertDailyStats(ctx context.Context, stats model.DailyModelStats) error

	// DuplicateListingURLs lists URLs shared by multiple listings of the brand.
	DuplicateListingURLs(ctx context.Context, brand string) ([]DuplicateURL, error)

	// Run log
	StartRun(ctx context.Context, run RunRecord) error
	CompleteRun(ctx context.Context, runID, status string, summary []byte) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
