package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"places-backend/internal/metrics"
	"places-backend/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// CachedGeocoder is a read-through Redis cache in front of another Geocoder.
// Cache failures are logged and bypassed.
type CachedGeocoder struct {
	next   Geocoder
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewCachedGeocoder wraps next with a Redis cache. Prefix may be empty.
func NewCachedGeocoder(next Geocoder, client *redis.Client, prefix string, ttl time.Duration) *CachedGeocoder {
	if prefix == "" {
		prefix = "geocode:"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CachedGeocoder{next: next, client: client, prefix: prefix, ttl: ttl}
}

func (c *CachedGeocoder) key(address string) string {
	return c.prefix + strings.Join(strings.Fields(strings.ToLower(address)), " ")
}

// Resolve returns the cached location for address or resolves and caches it
func (c *CachedGeocoder) Resolve(ctx context.Context, address string) (models.Location, error) {
	key := c.key(address)

	b, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var loc models.Location
		if jsonErr := json.Unmarshal(b, &loc); jsonErr == nil {
			metrics.GeocodeRequests.WithLabelValues("cache", "hit").Inc()
			return loc, nil
		}
		log.Warn().Str("key", key).Msg("Discarding malformed geocode cache entry")
	case errors.Is(err, redis.Nil):
	default:
		log.Warn().Err(err).Str("key", key).Msg("Geocode cache read failed")
	}
	metrics.GeocodeRequests.WithLabelValues("cache", "miss").Inc()

	loc, err := c.next.Resolve(ctx, address)
	if err != nil {
		return models.Location{}, err
	}

	if b, err := json.Marshal(loc); err == nil {
		if err := c.client.Set(ctx, key, b, c.ttl).Err(); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Geocode cache write failed")
		}
	}
	return loc, nil
}
