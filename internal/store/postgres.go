package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/watchpulse/watchpulse/internal/db"
	"github.com/watchpulse/watchpulse/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgresFromPool wraps an existing pool. Used by tests (pgxmock) and by
// commands that share one pool between the store and bulk helpers.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying database pool for subsystems that need direct
// query access (e.g., the catalog importer's bulk upsert).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS brand_models (
	id            BIGSERIAL PRIMARY KEY,
	brand         TEXT NOT NULL,
	collection    TEXT NOT NULL DEFAULT '',
	model_name    TEXT NOT NULL,
	ref_code      TEXT NOT NULL,
	msrp          DOUBLE PRECISION,
	case_material TEXT,
	bracelet      TEXT,
	dial          TEXT,
	size_mm       DOUBLE PRECISION,
	image_url     TEXT,
	UNIQUE (brand, ref_code)
);

CREATE TABLE IF NOT EXISTS market_listings (
	id         BIGSERIAL PRIMARY KEY,
	model_id   BIGINT NOT NULL REFERENCES brand_models(id),
	source     TEXT NOT NULL,
	url        TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS listing_snapshots (
	listing_id    BIGINT NOT NULL REFERENCES market_listings(id),
	captured_date DATE NOT NULL,
	price_raw     TEXT,
	currency      TEXT,
	PRIMARY KEY (listing_id, captured_date)
);

CREATE TABLE IF NOT EXISTS model_daily_stats (
	model_id           BIGINT NOT NULL REFERENCES brand_models(id),
	captured_date      DATE NOT NULL,
	median_price       DOUBLE PRECISION,
	listings_count     INTEGER NOT NULL DEFAULT 0,
	new_listings_count INTEGER NOT NULL DEFAULT 0,
	sold_rate_proxy    DOUBLE PRECISION NOT NULL DEFAULT 0,
	premium_over_msrp  DOUBLE PRECISION NOT NULL DEFAULT 0,
	wait_time_index    DOUBLE PRECISION NOT NULL DEFAULT 0,
	wait_band          TEXT NOT NULL,
	PRIMARY KEY (model_id, captured_date)
);

CREATE TABLE IF NOT EXISTS ingest_runs (
	id            TEXT PRIMARY KEY,
	brand         TEXT NOT NULL,
	captured_date DATE NOT NULL,
	status        TEXT NOT NULL,
	started_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at  TIMESTAMPTZ,
	summary       JSONB
);

CREATE INDEX IF NOT EXISTS idx_brand_models_brand ON brand_models(brand);
CREATE INDEX IF NOT EXISTS idx_market_listings_model_id ON market_listings(model_id);
CREATE INDEX IF NOT EXISTS idx_listing_snapshots_date ON listing_snapshots(captured_date);
CREATE INDEX IF NOT EXISTS idx_model_daily_stats_date ON model_daily_stats(captured_date);
CREATE INDEX IF NOT EXISTS idx_ingest_runs_brand_date ON ingest_runs(brand, captured_date);
`

// Migrate creates the schema if missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// Catalog returns the brand's models ordered by ID.
func (s *PostgresStore) Catalog(ctx context.Context, brand string) ([]model.ModelReference, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, brand, collection, model_name, ref_code,
		        COALESCE(msrp, 0), COALESCE(case_material, ''), COALESCE(bracelet, ''),
		        COALESCE(dial, ''), COALESCE(size_mm, 0), COALESCE(image_url, '')
		 FROM brand_models WHERE brand = $1 ORDER BY id`,
		brand,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: catalog for %s", brand)
	}
	defer rows.Close()

	var models []model.ModelReference
	for rows.Next() {
		var m model.ModelReference
		if err := rows.Scan(&m.ID, &m.Brand, &m.Collection, &m.ModelName, &m.RefCode,
			&m.MSRP, &m.CaseMaterial, &m.Bracelet, &m.Dial, &m.SizeMM, &m.ImageURL); err != nil {
			return nil, eris.Wrap(err, "postgres: scan catalog row")
		}
		models = append(models, m)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "postgres: catalog for %s", brand)
	}
	return models, nil
}

// Observations returns the raw listing snapshots captured for the brand on
// the given date.
func (s *PostgresStore) Observations(ctx context.Context, brand string, date time.Time) ([]model.ListingObservation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT l.id, l.model_id, COALESCE(s.price_raw, ''), COALESCE(s.currency, ''),
		        l.source, COALESCE(l.url, ''), (l.created_at::date = s.captured_date), s.captured_date
		 FROM listing_snapshots s
		 JOIN market_listings l ON l.id = s.listing_id
		 JOIN brand_models m ON m.id = l.model_id
		 WHERE m.brand = $1 AND s.captured_date = $2
		 ORDER BY l.id`,
		brand, date,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: observations for %s on %s", brand, model.DateOnly(date))
	}
	defer rows.Close()

	var obs []model.ListingObservation
	for rows.Next() {
		var o model.ListingObservation
		if err := rows.Scan(&o.ListingID, &o.ModelID, &o.RawPrice, &o.Currency,
			&o.Source, &o.URL, &o.IsNew, &o.CapturedDate); err != nil {
			return nil, eris.Wrap(err, "postgres: scan observation row")
		}
		obs = append(obs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "postgres: observations for %s on %s", brand, model.DateOnly(date))
	}
	return obs, nil
}

// StatsForDate returns the brand's stats rows for a date, keyed by model.
func (s *PostgresStore) StatsForDate(ctx context.Context, brand string, date time.Time) (map[int64]model.DailyModelStats, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT d.model_id, d.captured_date, d.median_price, d.listings_count,
		        d.new_listings_count, d.sold_rate_proxy, d.premium_over_msrp,
		        d.wait_time_index, d.wait_band
		 FROM model_daily_stats d
		 JOIN brand_models m ON m.id = d.model_id
		 WHERE m.brand = $1 AND d.captured_date = $2`,
		brand, date,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: stats for %s on %s", brand, model.DateOnly(date))
	}
	defer rows.Close()

	stats := make(map[int64]model.DailyModelStats)
	for rows.Next() {
		var d model.DailyModelStats
		if err := rows.Scan(&d.ModelID, &d.CapturedDate, &d.MedianPrice, &d.ListingsCount,
			&d.NewListingsCount, &d.SoldRateProxy, &d.PremiumOverMSRP,
			&d.WaitTimeIndex, &d.WaitBand); err != nil {
			return nil, eris.Wrap(err, "postgres: scan stats row")
		}
		stats[d.ModelID] = d
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "postgres: stats for %s on %s", brand, model.DateOnly(date))
	}
	return stats, nil
}

// UpsertDailyStats writes one stats row via a single INSERT ... ON CONFLICT
// statement, atomic at the database level.
func (s *PostgresStore) UpsertDailyStats(ctx context.Context, stats model.DailyModelStats) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO model_daily_stats
		   (model_id, captured_date, median_price, listings_count, new_listings_count,
		    sold_rate_proxy, premium_over_msrp, wait_time_index, wait_band)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (model_id, captured_date) DO UPDATE SET
		   median_price = EXCLUDED.median_price,
		   listings_count = EXCLUDED.listings_count,
		   new_listings_count = EXCLUDED.new_listings_count,
		   sold_rate_proxy = EXCLUDED.sold_rate_proxy,
		   premium_over_msrp = EXCLUDED.premium_over_msrp,
		   wait_time_index = EXCLUDED.wait_time_index,
		   wait_band = EXCLUDED.wait_band`,
		stats.ModelID, stats.CapturedDate, stats.MedianPrice, stats.ListingsCount,
		stats.NewListingsCount, stats.SoldRateProxy, stats.PremiumOverMSRP,
		stats.WaitTimeIndex, string(stats.WaitBand),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: upsert stats for model %d on %s",
			stats.ModelID, model.DateOnly(stats.CapturedDate))
	}
	return nil
}

// DuplicateListingURLs lists URLs shared by multiple listings of the brand,
// most duplicated first.
func (s *PostgresStore) DuplicateListingURLs(ctx context.Context, brand string) ([]DuplicateURL, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT l.url, COUNT(*) AS n
		 FROM market_listings l
		 JOIN brand_models m ON m.id = l.model_id
		 WHERE m.brand = $1 AND l.url IS NOT NULL AND l.url <> ''
		 GROUP BY l.url
		 HAVING COUNT(*) > 1
		 ORDER BY n DESC, l.url`,
		brand,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: duplicate urls for %s", brand)
	}
	defer rows.Close()

	var dups []DuplicateURL
	for rows.Next() {
		var d DuplicateURL
		if err := rows.Scan(&d.URL, &d.Count); err != nil {
			return nil, eris.Wrap(err, "postgres: scan duplicate url row")
		}
		dups = append(dups, d)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "postgres: duplicate urls for %s", brand)
	}
	return dups, nil
}

// StartRun records the beginning of an ingest run.
func (s *PostgresStore) StartRun(ctx context.Context, run RunRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ingest_runs (id, brand, captured_date, status, started_at)
		 VALUES ($1, $2, $3, $4, now())`,
		run.ID, run.Brand, run.CapturedDate, RunStatusRunning,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: start run %s", run.ID)
	}
	return nil
}

// CompleteRun records the outcome of an ingest run.
func (s *PostgresStore) CompleteRun(ctx context.Context, runID, status string, summary []byte) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE ingest_runs SET status = $1, completed_at = now(), summary = $2 WHERE id = $3`,
		status, summary, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	return nil
}
