package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/hurdat-etl/internal/adapter/csvfile"
	httpadapter "github.com/couchcryptid/hurdat-etl/internal/adapter/http"
	"github.com/couchcryptid/hurdat-etl/internal/adapter/hurdatfile"
	kafkaadapter "github.com/couchcryptid/hurdat-etl/internal/adapter/kafka"
	"github.com/couchcryptid/hurdat-etl/internal/adapter/mapbox"
	"github.com/couchcryptid/hurdat-etl/internal/adapter/postgres"
	"github.com/couchcryptid/hurdat-etl/internal/adapter/rediscache"
	"github.com/couchcryptid/hurdat-etl/internal/config"
	"github.com/couchcryptid/hurdat-etl/internal/domain"
	"github.com/couchcryptid/hurdat-etl/internal/observability"
	"github.com/couchcryptid/hurdat-etl/internal/pipeline"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/google/uuid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err := run(cfg, logger); err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	metrics := observability.NewMetrics()
	runID := uuid.NewString()
	logger = logger.With("run_id", runID)

	profiles := config.DefaultProfiles(cfg.NumMeas)
	if cfg.ProfilesPath != "" {
		var err error
		if profiles, err = config.LoadProfiles(cfg.ProfilesPath, cfg.NumMeas); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize geocoder (feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN).
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		geocoder = mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, logger, metrics)
		if cfg.RedisAddr != "" {
			rdb, err := rediscache.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
			if err != nil {
				return err
			}
			defer rdb.Close()
			geocoder = rediscache.New(geocoder, rdb, cfg.GeocodeCacheTTL, metrics, logger)
			logger.Info("redis geocode cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.GeocodeCacheTTL)
		}
		geocoder = mapbox.NewCachedGeocoder(geocoder, cfg.MapboxCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	reader, err := hurdatfile.Open(cfg.InputPath)
	if err != nil {
		return err
	}
	defer reader.Close()

	loaders, closers, err := openSinks(ctx, cfg, logger)
	defer closeAll(closers, logger)
	if err != nil {
		return err
	}

	transformer := pipeline.NewTransformer(geocoder, runID, logger)
	p := pipeline.New(reader, transformer, loaders, logger, metrics, pipeline.Options{
		BatchSize:          cfg.BatchSize,
		SkipMalformed:      cfg.SkipMalformed,
		ExportObservations: cfg.ExportObservations,
	})

	// Probes stay up after the run so the report can be collected; a signal
	// ends the process.
	var srv *httpadapter.Server
	if cfg.HTTPAddr != "" {
		srv = httpadapter.NewServer(cfg.HTTPAddr, p, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
	}

	report, runErr := p.Run(ctx, profiles)
	logger.Info("run report",
		"lines", report.LinesRead,
		"storms", report.StormsAssembled,
		"malformed_skipped", report.MalformedSkipped,
		"day_count_mismatches", report.DayCountMismatches,
		"profiles", len(report.Profiles),
	)

	if srv != nil {
		if runErr == nil {
			logger.Info("run complete, serving report until signalled", "addr", cfg.HTTPAddr)
			<-ctx.Done()
		}
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
	}

	if runErr != nil {
		return fmt.Errorf("pipeline: %w", runErr)
	}
	logger.Info("shutdown complete")
	return nil
}

// openSinks builds the loaders named in SINKS. The closers are returned even
// on error so already opened sinks are released.
func openSinks(ctx context.Context, cfg *config.Config, logger *slog.Logger) ([]pipeline.BatchLoader, []io.Closer, error) {
	var loaders []pipeline.BatchLoader
	var closers []io.Closer

	for _, name := range cfg.Sinks {
		switch name {
		case config.SinkCSV:
			w, err := csvfile.NewWriter(cfg.OutputDir, logger)
			if err != nil {
				return nil, closers, err
			}
			loaders, closers = append(loaders, w), append(closers, w)
		case config.SinkKafka:
			w := kafkaadapter.NewWriter(cfg, logger)
			loaders, closers = append(loaders, w), append(closers, w)
		case config.SinkPostgres:
			s, err := postgres.Open(ctx, cfg.DatabaseURL, logger)
			if err != nil {
				return nil, closers, err
			}
			loaders, closers = append(loaders, s), append(closers, s)
		}
		logger.Info("sink enabled", "sink", name)
	}
	return loaders, closers, nil
}

func closeAll(closers []io.Closer, logger *slog.Logger) {
	for _, c := range closers {
		if err := c.Close(); err != nil {
			logger.Error("sink close error", "error", err)
		}
	}
}
