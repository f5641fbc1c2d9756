package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lohun/driverlog/internal/config"
	"github.com/lohun/driverlog/internal/hos"
)

// geocoder is the upstream lookup a CachedGeocoder delegates to on miss.
type geocoder interface {
	Geocode(ctx context.Context, address string) (hos.Location, error)
}

// kvStore is the subset of *redis.Client the cache uses. Declared as an
// interface so tests can inject a fake without a live Redis.
type kvStore interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// CachedGeocoder is a cache-aside wrapper around a geocoder. Cache failures
// are logged and ignored; the upstream result always wins.
type CachedGeocoder struct {
	upstream geocoder
	kv       kvStore
	ttl      time.Duration
}

// NewCachedGeocoder builds a CachedGeocoder backed by a new go-redis client.
func NewCachedGeocoder(upstream geocoder, cfg config.RedisConfig) *CachedGeocoder {
	return &CachedGeocoder{
		upstream: upstream,
		kv: redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		ttl: cfg.GeocodeTTL,
	}
}

func cacheKey(address string) string {
	return "geocode:" + address
}

// Geocode returns the cached location for address, or resolves it upstream
// and stores the result with the configured TTL.
func (g *CachedGeocoder) Geocode(ctx context.Context, address string) (hos.Location, error) {
	if raw, err := g.kv.Get(ctx, cacheKey(address)).Result(); err == nil {
		var loc hos.Location
		if err := json.Unmarshal([]byte(raw), &loc); err == nil {
			return loc, nil
		}
		// Corrupt entry: fall through and overwrite it with a fresh lookup.
	} else if !errors.Is(err, redis.Nil) {
		slog.WarnContext(ctx, "geocode cache read failed", "err", err)
	}

	loc, err := g.upstream.Geocode(ctx, address)
	if err != nil {
		return hos.Location{}, err
	}

	if raw, err := json.Marshal(loc); err == nil {
		if err := g.kv.Set(ctx, cacheKey(address), raw, g.ttl).Err(); err != nil {
			slog.WarnContext(ctx, "geocode cache write failed", "err", err)
		}
	}

	return loc, nil
}

// Ping verifies the cache is reachable and answering PONG.
func (g *CachedGeocoder) Ping(ctx context.Context) error {
	val, err := g.kv.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	if val != "PONG" {
		return fmt.Errorf("unexpected PING response: %q", val)
	}
	return nil
}
