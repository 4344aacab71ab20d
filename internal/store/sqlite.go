package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/watchpulse/watchpulse/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Dates are stored as
// ISO strings; otherwise the shape mirrors the Postgres schema.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS brand_models (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	brand         TEXT NOT NULL,
	collection    TEXT NOT NULL DEFAULT '',
	model_name    TEXT NOT NULL,
	ref_code      TEXT NOT NULL,
	msrp          REAL,
	case_material TEXT,
	bracelet      TEXT,
	dial          TEXT,
	size_mm       REAL,
	image_url     TEXT,
	UNIQUE (brand, ref_code)
);

CREATE TABLE IF NOT EXISTS market_listings (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	model_id   INTEGER NOT NULL REFERENCES brand_models(id),
	source     TEXT NOT NULL,
	url        TEXT,
	created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS listing_snapshots (
	listing_id    INTEGER NOT NULL REFERENCES market_listings(id),
	captured_date TEXT NOT NULL,
	price_raw     TEXT,
	currency      TEXT,
	PRIMARY KEY (listing_id, captured_date)
);

CREATE TABLE IF NOT EXISTS model_daily_stats (
	model_id           INTEGER NOT NULL REFERENCES brand_models(id),
	captured_date      TEXT NOT NULL,
	median_price       REAL,
	listings_count     INTEGER NOT NULL DEFAULT 0,
	new_listings_count INTEGER NOT NULL DEFAULT 0,
	sold_rate_proxy    REAL NOT NULL DEFAULT 0,
	premium_over_msrp  REAL NOT NULL DEFAULT 0,
	wait_time_index    REAL NOT NULL DEFAULT 0,
	wait_band          TEXT NOT NULL,
	PRIMARY KEY (model_id, captured_date)
);

CREATE TABLE IF NOT EXISTS ingest_runs (
	id            TEXT PRIMARY KEY,
	brand         TEXT NOT NULL,
	captured_date TEXT NOT NULL,
	status        TEXT NOT NULL,
	started_at    TEXT NOT NULL DEFAULT (datetime('now')),
	completed_at  TEXT,
	summary       TEXT
);

CREATE INDEX IF NOT EXISTS idx_brand_models_brand ON brand_models(brand);
CREATE INDEX IF NOT EXISTS idx_market_listings_model_id ON market_listings(model_id);
CREATE INDEX IF NOT EXISTS idx_listing_snapshots_date ON listing_snapshots(captured_date);
CREATE INDEX IF NOT EXISTS idx_model_daily_stats_date ON model_daily_stats(captured_date);
`

// Migrate creates the schema if missing.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Catalog returns the brand's models ordered by ID.
func (s *SQLiteStore) Catalog(ctx context.Context, brand string) ([]model.ModelReference, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, brand, collection, model_name, ref_code,
		        COALESCE(msrp, 0), COALESCE(case_material, ''), COALESCE(bracelet, ''),
		        COALESCE(dial, ''), COALESCE(size_mm, 0), COALESCE(image_url, '')
		 FROM brand_models WHERE brand = ? ORDER BY id`,
		brand,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: catalog for %s", brand)
	}
	defer rows.Close()

	var models []model.ModelReference
	for rows.Next() {
		var m model.ModelReference
		if err := rows.Scan(&m.ID, &m.Brand, &m.Collection, &m.ModelName, &m.RefCode,
			&m.MSRP, &m.CaseMaterial, &m.Bracelet, &m.Dial, &m.SizeMM, &m.ImageURL); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan catalog row")
		}
		models = append(models, m)
	}
	return models, eris.Wrapf(rows.Err(), "sqlite: catalog for %s", brand)
}

// Observations returns the raw listing snapshots captured for the brand on
// the given date.
func (s *SQLiteStore) Observations(ctx context.Context, brand string, date time.Time) ([]model.ListingObservation, error) {
	day := model.DateOnly(date)
	rows, err := s.db.QueryContext(ctx,
		`SELECT l.id, l.model_id, COALESCE(s.price_raw, ''), COALESCE(s.currency, ''),
		        l.source, COALESCE(l.url, ''), (date(l.created_at) = s.captured_date)
		 FROM listing_snapshots s
		 JOIN market_listings l ON l.id = s.listing_id
		 JOIN brand_models m ON m.id = l.model_id
		 WHERE m.brand = ? AND s.captured_date = ?
		 ORDER BY l.id`,
		brand, day,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: observations for %s on %s", brand, day)
	}
	defer rows.Close()

	var obs []model.ListingObservation
	for rows.Next() {
		var o model.ListingObservation
		if err := rows.Scan(&o.ListingID, &o.ModelID, &o.RawPrice, &o.Currency,
			&o.Source, &o.URL, &o.IsNew); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan observation row")
		}
		o.CapturedDate = date
		obs = append(obs, o)
	}
	return obs, eris.Wrapf(rows.Err(), "sqlite: observations for %s on %s", brand, day)
}

// StatsForDate returns the brand's stats rows for a date, keyed by model.
func (s *SQLiteStore) StatsForDate(ctx context.Context, brand string, date time.Time) (map[int64]model.DailyModelStats, error) {
	day := model.DateOnly(date)
	rows, err := s.db.QueryContext(ctx,
		`SELECT d.model_id, d.median_price, d.listings_count, d.new_listings_count,
		        d.sold_rate_proxy, d.premium_over_msrp, d.wait_time_index, d.wait_band
		 FROM model_daily_stats d
		 JOIN brand_models m ON m.id = d.model_id
		 WHERE m.brand = ? AND d.captured_date = ?`,
		brand, day,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: stats for %s on %s", brand, day)
	}
	defer rows.Close()

	stats := make(map[int64]model.DailyModelStats)
	for rows.Next() {
		var d model.DailyModelStats
		var median sql.NullFloat64
		var band string
		if err := rows.Scan(&d.ModelID, &median, &d.ListingsCount, &d.NewListingsCount,
			&d.SoldRateProxy, &d.PremiumOverMSRP, &d.WaitTimeIndex, &band); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan stats row")
		}
		if median.Valid {
			v := median.Float64
			d.MedianPrice = &v
		}
		d.WaitBand = model.WaitBand(band)
		d.CapturedDate = date
		stats[d.ModelID] = d
	}
	return stats, eris.Wrapf(rows.Err(), "sqlite: stats for %s on %s", brand, day)
}

// UpsertDailyStats writes one stats row via a single INSERT ... ON CONFLICT
// statement.
func (s *SQLiteStore) UpsertDailyStats(ctx context.Context, stats model.DailyModelStats) error {
	var median any
	if stats.MedianPrice != nil {
		median = *stats.MedianPrice
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO model_daily_stats
		   (model_id, captured_date, median_price, listings_count, new_listings_count,
		    sold_rate_proxy, premium_over_msrp, wait_time_index, wait_band)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (model_id, captured_date) DO UPDATE SET
		   median_price = excluded.median_price,
		   listings_count = excluded.listings_count,
		   new_listings_count = excluded.new_listings_count,
		   sold_rate_proxy = excluded.sold_rate_proxy,
		   premium_over_msrp = excluded.premium_over_msrp,
		   wait_time_index = excluded.wait_time_index,
		   wait_band = excluded.wait_band`,
		stats.ModelID, model.DateOnly(stats.CapturedDate), median, stats.ListingsCount,
		stats.NewListingsCount, stats.SoldRateProxy, stats.PremiumOverMSRP,
		stats.WaitTimeIndex, string(stats.WaitBand),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: upsert stats for model %d on %s",
			stats.ModelID, model.DateOnly(stats.CapturedDate))
	}
	return nil
}

// DuplicateListingURLs lists URLs shared by multiple listings of the brand.
func (s *SQLiteStore) DuplicateListingURLs(ctx context.Context, brand string) ([]DuplicateURL, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT l.url, COUNT(*) AS n
		 FROM market_listings l
		 JOIN brand_models m ON m.id = l.model_id
		 WHERE m.brand = ? AND l.url IS NOT NULL AND l.url <> ''
		 GROUP BY l.url
		 HAVING COUNT(*) > 1
		 ORDER BY n DESC, l.url`,
		brand,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: duplicate urls for %s", brand)
	}
	defer rows.Close()

	var dups []DuplicateURL
	for rows.Next() {
		var d DuplicateURL
		if err := rows.Scan(&d.URL, &d.Count); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan duplicate url row")
		}
		dups = append(dups, d)
	}
	return dups, eris.Wrapf(rows.Err(), "sqlite: duplicate urls for %s", brand)
}

// StartRun records the beginning of an ingest run.
func (s *SQLiteStore) StartRun(ctx context.Context, run RunRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ingest_runs (id, brand, captured_date, status) VALUES (?, ?, ?, ?)`,
		run.ID, run.Brand, model.DateOnly(run.CapturedDate), RunStatusRunning,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: start run %s", run.ID)
	}
	return nil
}

// CompleteRun records the outcome of an ingest run.
func (s *SQLiteStore) CompleteRun(ctx context.Context, runID, status string, summary []byte) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE ingest_runs SET status = ?, completed_at = datetime('now'), summary = ? WHERE id = ?`,
		status, string(summary), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return nil
}
