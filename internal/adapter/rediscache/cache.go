// Package rediscache shares reverse geocoding results between runs through
// Redis.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/hurdat-etl/internal/domain"
	"github.com/couchcryptid/hurdat-etl/internal/observability"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "hurdat:geocode:rev:"

// kv is the part of a Redis client the cache uses.
type kv interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Geocoder wraps a domain.Geocoder with a Redis-backed cache. Redis failures
// are logged and fall through to the inner geocoder.
type Geocoder struct {
	inner   domain.Geocoder
	store   kv
	ttl     time.Duration
	metrics *observability.Metrics
	logger  *slog.Logger
}

// Connect dials Redis and checks the connection.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

// New creates a cache decorator around inner. Entries expire after ttl.
func New(inner domain.Geocoder, client *redis.Client, ttl time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Geocoder {
	return &Geocoder{
		inner:   inner,
		store:   redisKV{client: client},
		ttl:     ttl,
		metrics: metrics,
		logger:  logger,
	}
}

func (g *Geocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.GeocodingResult, error) {
	key := cacheKey(lat, lon)

	data, ok, err := g.store.Get(ctx, key)
	switch {
	case err != nil:
		g.logger.Warn("redis geocode cache read failed", "key", key, "error", err)
	case ok:
		var result domain.GeocodingResult
		if err := json.Unmarshal([]byte(data), &result); err == nil {
			g.metrics.GeocodeCache.WithLabelValues("shared_hit").Inc()
			return result, nil
		}
		g.logger.Warn("discarding unreadable cache entry", "key", key)
	}
	g.metrics.GeocodeCache.WithLabelValues("shared_miss").Inc()

	result, err := g.inner.ReverseGeocode(ctx, lat, lon)
	if err != nil {
		return result, err
	}
	// Only cache non-empty results so transient "not found" responses can be retried.
	if result.FormattedAddress == "" {
		return result, nil
	}
	encoded, err := json.Marshal(result)
	if err != nil {
		return result, nil
	}
	if err := g.store.Set(ctx, key, string(encoded), g.ttl); err != nil {
		g.logger.Warn("redis geocode cache write failed", "key", key, "error", err)
	}
	return result, nil
}

func cacheKey(lat, lon float64) string {
	return fmt.Sprintf("%s%.6f,%.6f", keyPrefix, lat, lon)
}

type redisKV struct {
	client *redis.Client
}

func (r redisKV) Get(ctx context.Context, key string) (string, bool, error) {
	data, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return data, true, nil
}

func (r redisKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}
