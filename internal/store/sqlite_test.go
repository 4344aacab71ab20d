package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchpulse/watchpulse/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func seedSQLiteModel(t *testing.T, s *SQLiteStore, id int64, refCode string, msrp float64) {
	t.Helper()
	_, err := s.db.Exec(
		`INSERT INTO brand_models (id, brand, model_name, ref_code, msrp) VALUES (?, 'rolex', ?, ?, ?)`,
		id, "Model "+refCode, refCode, msrp,
	)
	require.NoError(t, err)
}

func TestSQLiteStore_MigrateIsIdempotent(t *testing.T) {
	s := newTestSQLite(t)
	require.NoError(t, s.Migrate(context.Background()))
}

func TestSQLiteStore_Catalog(t *testing.T) {
	s := newTestSQLite(t)
	seedSQLiteModel(t, s, 2, "124060", 9100)
	seedSQLiteModel(t, s, 1, "126610LN", 10000)

	models, err := s.Catalog(context.Background(), "rolex")
	require.NoError(t, err)
	require.Len(t, models, 2)

	// Ordered by ID regardless of insert order.
	assert.Equal(t, int64(1), models[0].ID)
	assert.Equal(t, "126610LN", models[0].RefCode)
	assert.Equal(t, 10000.0, models[0].MSRP)

	none, err := s.Catalog(context.Background(), "patek")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLiteStore_UpsertDailyStats_ConvergesToOneRow(t *testing.T) {
	s := newTestSQLite(t)
	seedSQLiteModel(t, s, 1, "126610LN", 10000)
	date := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	median := 12500.0
	stats := model.DailyModelStats{
		ModelID:          1,
		CapturedDate:     date,
		MedianPrice:      &median,
		ListingsCount:    3,
		NewListingsCount: 1,
		SoldRateProxy:    0,
		PremiumOverMSRP:  0.25,
		WaitTimeIndex:    0.1278,
		WaitBand:         model.WaitBandShort,
	}
	require.NoError(t, s.UpsertDailyStats(context.Background(), stats))

	// Second write with revised numbers replaces, not duplicates.
	revised := 12800.0
	stats.MedianPrice = &revised
	stats.ListingsCount = 4
	require.NoError(t, s.UpsertDailyStats(context.Background(), stats))

	got, err := s.StatsForDate(context.Background(), "rolex", date)
	require.NoError(t, err)
	require.Len(t, got, 1)

	row := got[1]
	require.NotNil(t, row.MedianPrice)
	assert.Equal(t, 12800.0, *row.MedianPrice)
	assert.Equal(t, 4, row.ListingsCount)
	assert.Equal(t, 0.25, row.PremiumOverMSRP)
	assert.Equal(t, model.WaitBandShort, row.WaitBand)

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM model_daily_stats`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestSQLiteStore_UpsertDailyStats_NullMedian(t *testing.T) {
	s := newTestSQLite(t)
	seedSQLiteModel(t, s, 1, "126610LN", 10000)
	date := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.UpsertDailyStats(context.Background(), model.DailyModelStats{
		ModelID:       1,
		CapturedDate:  date,
		SoldRateProxy: 1,
		WaitBand:      model.WaitBandShort,
	}))

	got, err := s.StatsForDate(context.Background(), "rolex", date)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[1].MedianPrice)
	assert.Equal(t, 1.0, got[1].SoldRateProxy)
}

func TestSQLiteStore_Observations(t *testing.T) {
	s := newTestSQLite(t)
	seedSQLiteModel(t, s, 1, "126610LN", 10000)
	date := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	_, err := s.db.Exec(
		`INSERT INTO market_listings (id, model_id, source, url, created_at) VALUES
		 (101, 1, 'chrono24', 'https://c24/101', '2026-08-30 09:00:00'),
		 (102, 1, 'ebay', NULL, '2026-08-01 09:00:00')`)
	require.NoError(t, err)
	_, err = s.db.Exec(
		`INSERT INTO listing_snapshots (listing_id, captured_date, price_raw, currency) VALUES
		 (101, '2026-08-30', '$12,500', 'USD'),
		 (102, '2026-08-30', '12800', NULL),
		 (102, '2026-08-29', '12750', NULL)`)
	require.NoError(t, err)

	obs, err := s.Observations(context.Background(), "rolex", date)
	require.NoError(t, err)
	require.Len(t, obs, 2)

	assert.Equal(t, int64(101), obs[0].ListingID)
	assert.Equal(t, "$12,500", obs[0].RawPrice)
	assert.Equal(t, "USD", obs[0].Currency)
	assert.True(t, obs[0].IsNew, "created on the capture date")

	assert.Equal(t, int64(102), obs[1].ListingID)
	assert.Empty(t, obs[1].Currency)
	assert.False(t, obs[1].IsNew)
}

func TestSQLiteStore_DuplicateListingURLs(t *testing.T) {
	s := newTestSQLite(t)
	seedSQLiteModel(t, s, 1, "126610LN", 10000)

	_, err := s.db.Exec(
		`INSERT INTO market_listings (model_id, source, url) VALUES
		 (1, 'chrono24', 'https://c24/dup'),
		 (1, 'chrono24', 'https://c24/dup'),
		 (1, 'chrono24', 'https://c24/dup'),
		 (1, 'ebay', 'https://ebay/dup'),
		 (1, 'ebay', 'https://ebay/dup'),
		 (1, 'ebay', 'https://ebay/unique'),
		 (1, 'ebay', NULL)`)
	require.NoError(t, err)

	dups, err := s.DuplicateListingURLs(context.Background(), "rolex")
	require.NoError(t, err)
	require.Len(t, dups, 2)
	assert.Equal(t, DuplicateURL{URL: "https://c24/dup", Count: 3}, dups[0])
	assert.Equal(t, DuplicateURL{URL: "https://ebay/dup", Count: 2}, dups[1])
}

func TestSQLiteStore_RunLog(t *testing.T) {
	s := newTestSQLite(t)
	date := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	run := RunRecord{ID: "run-1", Brand: "rolex", CapturedDate: date}
	require.NoError(t, s.StartRun(context.Background(), run))
	require.NoError(t, s.CompleteRun(context.Background(), "run-1", RunStatusComplete, []byte(`{"ok":true}`)))

	var status, summary string
	var completed any
	require.NoError(t, s.db.QueryRow(
		`SELECT status, summary, completed_at FROM ingest_runs WHERE id = 'run-1'`,
	).Scan(&status, &summary, &completed))
	assert.Equal(t, RunStatusComplete, status)
	assert.JSONEq(t, `{"ok":true}`, summary)
	assert.NotNil(t, completed)
}
