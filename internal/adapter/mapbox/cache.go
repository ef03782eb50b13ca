package mapbox

import (
	"container/list"
	"context"
	"math"
	"sync"

	"github.com/couchcryptid/hurdat-etl/internal/domain"
	"github.com/couchcryptid/hurdat-etl/internal/observability"
)

// GridResolution is the cell size, in degrees, that midpoints are snapped to
// before lookup. Profiles of one storm produce midpoints that differ only in
// the trailing decimals; at 0.01° they land in the same cell and share a
// request.
const GridResolution = 0.01

// CachedGeocoder wraps a Geocoder with an in-memory LRU keyed by grid cell.
type CachedGeocoder struct {
	inner   domain.Geocoder
	cache   *cellCache
	metrics *observability.Metrics
}

// NewCachedGeocoder creates a cache decorator around a geocoder.
func NewCachedGeocoder(inner domain.Geocoder, maxEntries int, metrics *observability.Metrics) *CachedGeocoder {
	return &CachedGeocoder{
		inner:   inner,
		cache:   newCellCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.GeocodingResult, error) {
	key := cellOf(lat, lon)
	if result, ok := c.cache.get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues("hit").Inc()
		return result, nil
	}
	c.metrics.GeocodeCache.WithLabelValues("miss").Inc()
	result, err := c.inner.ReverseGeocode(ctx, lat, lon)
	if err != nil {
		return result, err
	}
	// Open ocean has no place; leave it uncached so a later midpoint in the
	// same cell can still resolve.
	if result.FormattedAddress != "" {
		c.cache.put(key, result)
	}
	return result, nil
}

// cell is a midpoint snapped to the grid.
type cell struct {
	lat, lon int64
}

// cellOf snaps a position to the grid. Longitudes are wrapped into
// [-180, 180) first so tracks crossing the antimeridian share cells.
func cellOf(lat, lon float64) cell {
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	lon -= 180
	c := cell{
		lat: int64(math.Round(lat / GridResolution)),
		lon: int64(math.Round(lon / GridResolution)),
	}
	// -180 and 180 are the same meridian.
	if c.lon == int64(math.Round(180/GridResolution)) {
		c.lon = -c.lon
	}
	return c
}

// cellCache is a thread-safe LRU of results per cell. When two lookups race
// for one cell the more confident result is kept.
type cellCache struct {
	maxEntries int

	mu      sync.Mutex
	order   *list.List // front is most recently used
	entries map[cell]*list.Element
}

type cellEntry struct {
	key   cell
	value domain.GeocodingResult
}

func newCellCache(maxEntries int) *cellCache {
	return &cellCache{
		maxEntries: max(maxEntries, 1),
		order:      list.New(),
		entries:    make(map[cell]*list.Element),
	}
}

func (c *cellCache) get(key cell) (domain.GeocodingResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return domain.GeocodingResult{}, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cellEntry).value, true
}

func (c *cellCache) put(key cell, value domain.GeocodingResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		e := el.Value.(*cellEntry)
		if value.Confidence >= e.value.Confidence {
			e.value = value
		}
		c.order.MoveToFront(el)
		return
	}

	c.entries[key] = c.order.PushFront(&cellEntry{key: key, value: value})
	if c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cellEntry).key)
	}
}

func (c *cellCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
