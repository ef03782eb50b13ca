// Package postgres stores storm summaries in a PostgreSQL table.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/hurdat-etl/internal/domain"
	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS storm_summaries (
	run_id            TEXT             NOT NULL,
	profile           TEXT             NOT NULL,
	storm_id          INTEGER          NOT NULL,
	name              TEXT             NOT NULL,
	year              INTEGER          NOT NULL,
	decade            INTEGER          NOT NULL,
	start_time        TIMESTAMPTZ      NOT NULL,
	landfall          BOOLEAN          NOT NULL,
	observation_count INTEGER          NOT NULL,
	peak_wind         INTEGER          NOT NULL,
	peak_category     TEXT             NOT NULL,
	all_lat           DOUBLE PRECISION NOT NULL,
	all_lon           DOUBLE PRECISION NOT NULL,
	mid_lat           DOUBLE PRECISION NOT NULL,
	mid_lon           DOUBLE PRECISION NOT NULL,
	first_lat         DOUBLE PRECISION NOT NULL,
	first_lon         DOUBLE PRECISION NOT NULL,
	last_lat          DOUBLE PRECISION NOT NULL,
	last_lon          DOUBLE PRECISION NOT NULL,
	scale             DOUBLE PRECISION NOT NULL,
	weighted_lat      DOUBLE PRECISION,
	weighted_lon      DOUBLE PRECISION,
	place_name        TEXT,
	formatted_address TEXT,
	geo_confidence    DOUBLE PRECISION,
	geo_source        TEXT,
	processed_at      TIMESTAMPTZ      NOT NULL,
	PRIMARY KEY (run_id, profile, storm_id)
)`

const upsertSummary = `
	INSERT INTO storm_summaries (
		run_id, profile, storm_id, name, year, decade, start_time, landfall,
		observation_count, peak_wind, peak_category,
		all_lat, all_lon, mid_lat, mid_lon, first_lat, first_lon, last_lat, last_lon,
		scale, weighted_lat, weighted_lon,
		place_name, formatted_address, geo_confidence, geo_source, processed_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
	        $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27)
	ON CONFLICT (run_id, profile, storm_id) DO UPDATE
	SET name = EXCLUDED.name,
	    observation_count = EXCLUDED.observation_count,
	    peak_wind = EXCLUDED.peak_wind,
	    peak_category = EXCLUDED.peak_category,
	    all_lat = EXCLUDED.all_lat,
	    all_lon = EXCLUDED.all_lon,
	    mid_lat = EXCLUDED.mid_lat,
	    mid_lon = EXCLUDED.mid_lon,
	    first_lat = EXCLUDED.first_lat,
	    first_lon = EXCLUDED.first_lon,
	    last_lat = EXCLUDED.last_lat,
	    last_lon = EXCLUDED.last_lon,
	    scale = EXCLUDED.scale,
	    weighted_lat = EXCLUDED.weighted_lat,
	    weighted_lon = EXCLUDED.weighted_lon,
	    place_name = EXCLUDED.place_name,
	    formatted_address = EXCLUDED.formatted_address,
	    geo_confidence = EXCLUDED.geo_confidence,
	    geo_source = EXCLUDED.geo_source,
	    processed_at = EXCLUDED.processed_at
`

// Store implements pipeline.BatchLoader on top of a storm_summaries table.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open connects to dsn, checks the connection and ensures the table exists.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)

	s := &Store{db: db, logger: logger}
	if err := s.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates the summaries table if it is missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create storm_summaries: %w", err)
	}
	return nil
}

// LoadBatch upserts the batch in one transaction, so a retried batch either
// lands whole or not at all.
func (s *Store) LoadBatch(ctx context.Context, summaries []domain.StormSummary) error {
	if len(summaries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, upsertSummary)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for i := range summaries {
		if _, err := stmt.ExecContext(ctx, summaryArgs(summaries[i])...); err != nil {
			return fmt.Errorf("upsert storm %d (%s): %w", summaries[i].ID, summaries[i].Profile, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.logger.Debug("postgres batch written", "rows", len(summaries))
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// summaryArgs lists the upsert parameters in column order. Optional columns
// are NULL when the summary has no value for them.
func summaryArgs(s domain.StormSummary) []any {
	var weightedLat, weightedLon sql.NullFloat64
	if s.Weighted != nil {
		weightedLat = sql.NullFloat64{Float64: s.Weighted.Lat, Valid: true}
		weightedLon = sql.NullFloat64{Float64: s.Weighted.Lon, Valid: true}
	}
	return []any{
		s.RunID, s.Profile, s.ID, s.Name, s.Year, s.Decade, s.Start.UTC(), s.Landfall,
		s.ObservationCount, s.PeakWind, string(s.PeakCategory),
		s.All.Lat, s.All.Lon, s.Mid.Lat, s.Mid.Lon,
		s.First.Lat, s.First.Lon, s.Last.Lat, s.Last.Lon,
		s.Scale, weightedLat, weightedLon,
		nullString(s.PlaceName), nullString(s.FormattedAddress),
		sql.NullFloat64{Float64: s.GeoConfidence, Valid: s.GeoSource != ""},
		nullString(s.GeoSource),
		s.ProcessedAt.UTC(),
	}
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
