package store

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchpulse/watchpulse/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresFromPool(mock), mock
}

func TestPostgresStore_Catalog(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows([]string{
		"id", "brand", "collection", "model_name", "ref_code",
		"msrp", "case_material", "bracelet", "dial", "size_mm", "image_url",
	}).
		AddRow(int64(1), "rolex", "Submariner", "Submariner Date", "126610LN",
			10000.0, "Oystersteel", "Oyster", "Black", 41.0, "").
		AddRow(int64(2), "rolex", "Submariner", "Submariner", "124060",
			0.0, "", "", "", 0.0, "")

	mock.ExpectQuery(`FROM brand_models WHERE brand = \$1 ORDER BY id`).
		WithArgs("rolex").
		WillReturnRows(rows)

	models, err := s.Catalog(context.Background(), "rolex")
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "126610LN", models[0].RefCode)
	assert.Equal(t, 10000.0, models[0].MSRP)
	assert.Equal(t, 0.0, models[1].MSRP)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Catalog_QueryError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM brand_models`).
		WithArgs("rolex").
		WillReturnError(assert.AnError)

	_, err := s.Catalog(context.Background(), "rolex")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog for rolex")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Observations(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	date := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows([]string{
		"id", "model_id", "price_raw", "currency", "source", "url", "is_new", "captured_date",
	}).
		AddRow(int64(101), int64(1), "$12,500", "USD", "chrono24", "https://c24/101", true, date).
		AddRow(int64(102), int64(1), "12800", "", "ebay", "", false, date)

	mock.ExpectQuery(`FROM listing_snapshots s`).
		WithArgs("rolex", date).
		WillReturnRows(rows)

	obs, err := s.Observations(context.Background(), "rolex", date)
	require.NoError(t, err)
	require.Len(t, obs, 2)
	assert.Equal(t, int64(101), obs[0].ListingID)
	assert.True(t, obs[0].IsNew)
	assert.Equal(t, "12800", obs[1].RawPrice)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_StatsForDate_NullMedian(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	date := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	median := 12500.0

	rows := pgxmock.NewRows([]string{
		"model_id", "captured_date", "median_price", "listings_count",
		"new_listings_count", "sold_rate_proxy", "premium_over_msrp",
		"wait_time_index", "wait_band",
	}).
		AddRow(int64(1), date, &median, 3, 1, 0.0, 0.25, 0.1278, model.WaitBandShort).
		AddRow(int64(2), date, (*float64)(nil), 0, 0, 1.0, 0.2, 0.4, model.WaitBandMedium)

	mock.ExpectQuery(`FROM model_daily_stats d`).
		WithArgs("rolex", date).
		WillReturnRows(rows)

	stats, err := s.StatsForDate(context.Background(), "rolex", date)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	require.NotNil(t, stats[1].MedianPrice)
	assert.Equal(t, 12500.0, *stats[1].MedianPrice)
	assert.Equal(t, model.WaitBandShort, stats[1].WaitBand)
	assert.Nil(t, stats[2].MedianPrice)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertDailyStats(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	date := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	median := 12500.0

	mock.ExpectExec(`INSERT INTO model_daily_stats[\s\S]*ON CONFLICT \(model_id, captured_date\) DO UPDATE`).
		WithArgs(int64(1), date, &median, 3, 1, 0.0, 0.25, 0.1278, "0-6 months").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.UpsertDailyStats(context.Background(), model.DailyModelStats{
		ModelID:          1,
		CapturedDate:     date,
		MedianPrice:      &median,
		ListingsCount:    3,
		NewListingsCount: 1,
		SoldRateProxy:    0,
		PremiumOverMSRP:  0.25,
		WaitTimeIndex:    0.1278,
		WaitBand:         model.WaitBandShort,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertDailyStats_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO model_daily_stats`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(assert.AnError)

	err := s.UpsertDailyStats(context.Background(), model.DailyModelStats{ModelID: 7})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert stats for model 7")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DuplicateListingURLs(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows([]string{"url", "n"}).
		AddRow("https://c24/dup", 3).
		AddRow("https://ebay/dup", 2)

	mock.ExpectQuery(`HAVING COUNT\(\*\) > 1`).
		WithArgs("rolex").
		WillReturnRows(rows)

	dups, err := s.DuplicateListingURLs(context.Background(), "rolex")
	require.NoError(t, err)
	require.Len(t, dups, 2)
	assert.Equal(t, DuplicateURL{URL: "https://c24/dup", Count: 3}, dups[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RunLog(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	date := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO ingest_runs`).
		WithArgs("run-1", "rolex", date, RunStatusRunning).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.StartRun(context.Background(), RunRecord{ID: "run-1", Brand: "rolex", CapturedDate: date})
	require.NoError(t, err)

	summary := []byte(`{"run_id":"run-1"}`)
	mock.ExpectExec(`UPDATE ingest_runs SET status = \$1`).
		WithArgs(RunStatusComplete, summary, "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = s.CompleteRun(context.Background(), "run-1", RunStatusComplete, summary)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS brand_models`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
