package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/hurdat-etl/internal/domain"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Sink names accepted in SINKS.
const (
	SinkCSV      = "csv"
	SinkKafka    = "kafka"
	SinkPostgres = "postgres"
)

var knownSinks = []string{SinkCSV, SinkKafka, SinkPostgres}

// Config holds all service settings, populated from environment variables.
type Config struct {
	InputPath          string
	ProfilesPath       string
	NumMeas            int
	SkipMalformed      bool
	ExportObservations bool

	Sinks          []string
	OutputDir      string
	KafkaBrokers   []string
	KafkaSinkTopic string
	DatabaseURL    string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	BatchSize       int

	// Mapbox geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int

	// Optional Redis cache shared by runs; empty RedisAddr disables it.
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	GeocodeCacheTTL time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
// A .env file in the working directory is read first; real environment
// variables win over it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	mapboxTimeoutStr := sharedcfg.EnvOrDefault("MAPBOX_TIMEOUT", "5s")
	mapboxTimeout, err2 := time.ParseDuration(mapboxTimeoutStr)
	if err2 != nil || mapboxTimeout <= 0 {
		return nil, errors.New("invalid MAPBOX_TIMEOUT")
	}

	numMeas, err := strconv.Atoi(sharedcfg.EnvOrDefault("NUM_MEAS", strconv.Itoa(domain.DefaultNumMeas)))
	if err != nil || numMeas < 1 {
		return nil, errors.New("invalid NUM_MEAS: must be a positive integer")
	}

	skipMalformed, err := strconv.ParseBool(sharedcfg.EnvOrDefault("SKIP_MALFORMED", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid SKIP_MALFORMED: %w", err)
	}

	exportObservations, err := strconv.ParseBool(sharedcfg.EnvOrDefault("EXPORT_OBSERVATIONS", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid EXPORT_OBSERVATIONS: %w", err)
	}

	redisDB, err := strconv.Atoi(sharedcfg.EnvOrDefault("REDIS_DB", "0"))
	if err != nil || redisDB < 0 {
		return nil, errors.New("invalid REDIS_DB: must be a non-negative integer")
	}

	cacheTTL, err := time.ParseDuration(sharedcfg.EnvOrDefault("GEOCODE_CACHE_TTL", "720h"))
	if err != nil || cacheTTL <= 0 {
		return nil, errors.New("invalid GEOCODE_CACHE_TTL")
	}

	sinks, err := parseSinks(sharedcfg.EnvOrDefault("SINKS", SinkCSV))
	if err != nil {
		return nil, err
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	cfg := &Config{
		InputPath:          sharedcfg.EnvOrDefault("HURDAT_INPUT", "data/hurdat.txt"),
		ProfilesPath:       os.Getenv("PROFILES_PATH"),
		NumMeas:            numMeas,
		SkipMalformed:      skipMalformed,
		ExportObservations: exportObservations,

		Sinks:          sinks,
		OutputDir:      sharedcfg.EnvOrDefault("OUTPUT_DIR", "output"),
		KafkaBrokers:   sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic: sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "hurdat-storm-summaries"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),

		HTTPAddr:        os.Getenv("HTTP_ADDR"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		BatchSize:       batchSize,

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: parseMapboxCacheSize(),

		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         redisDB,
		GeocodeCacheTTL: cacheTTL,
	}

	if cfg.InputPath == "" {
		return nil, errors.New("HURDAT_INPUT is required")
	}
	if cfg.UsesSink(SinkKafka) {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required")
		}
		if cfg.KafkaSinkTopic == "" {
			return nil, errors.New("KAFKA_SINK_TOPIC is required")
		}
	}
	if cfg.UsesSink(SinkPostgres) && cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required for the postgres sink")
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}

	return cfg, nil
}

// UsesSink reports whether name is listed in SINKS.
func (c *Config) UsesSink(name string) bool {
	return slices.Contains(c.Sinks, name)
}

func parseSinks(s string) ([]string, error) {
	var sinks []string
	for _, part := range strings.Split(s, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" {
			continue
		}
		if !slices.Contains(knownSinks, name) {
			return nil, fmt.Errorf("invalid SINKS: unknown sink %q", name)
		}
		if !slices.Contains(sinks, name) {
			sinks = append(sinks, name)
		}
	}
	if len(sinks) == 0 {
		return nil, errors.New("SINKS must name at least one sink")
	}
	return sinks, nil
}

func parseMapboxCacheSize() int {
	if s := os.Getenv("MAPBOX_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
