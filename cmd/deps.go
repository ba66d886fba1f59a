package cmd

import (
	"context"
	"fmt"

	"places-backend/internal/config"
	"places-backend/internal/geocode"
	"places-backend/internal/models"
	"places-backend/internal/repository"
	"places-backend/internal/repository/memstore"
	"places-backend/internal/repository/mongostore"
	"places-backend/internal/storage"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const geocodeCachePrefix = "geocode:"

// openStore connects to the configured database
func openStore(ctx context.Context, cfg config.DatabaseConfig) (repository.Store, error) {
	switch cfg.Driver {
	case "postgres":
		connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()

		pool, err := pgxpool.New(connectCtx, cfg.DSN())
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := pool.Ping(connectCtx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		return repository.NewPostgresStore(pool), nil

	case "mongo":
		client, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.ConnectTimeout)
		if err != nil {
			return nil, err
		}
		return mongostore.New(client, cfg.DBName), nil

	case "memory":
		log.Warn().Msg("Using in-memory database, data is lost on exit")
		return memstore.New(), nil

	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// newImageStore creates the configured image store
func newImageStore(ctx context.Context, cfg config.StorageConfig) (storage.ImageStore, error) {
	switch cfg.Driver {
	case "local":
		return storage.NewLocalStore(cfg.LocalDir)
	case "s3":
		return storage.NewS3Store(ctx, storage.S3Config{
			Region:    cfg.Region,
			Bucket:    cfg.Bucket,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Endpoint:  cfg.Endpoint,
		})
	case "minio":
		return storage.NewMinIOStore(ctx, storage.MinIOConfig{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Bucket:    cfg.Bucket,
			UseSSL:    !cfg.DisableSSL,
		})
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// newGeocoder creates the configured geocoder, cached in redis when an
// address is configured. The returned client is nil without redis.
func newGeocoder(ctx context.Context, cfg config.GeocoderConfig, redisCfg config.RedisConfig) (geocode.Geocoder, *redis.Client, error) {
	var geocoder geocode.Geocoder
	switch cfg.Driver {
	case "google":
		geocoder = geocode.NewGoogleGeocoder(geocode.GoogleConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
			RPS:     cfg.RPS,
			Burst:   cfg.Burst,
		})
	case "static":
		geocoder = geocode.StaticGeocoder{Location: models.Location{Lat: cfg.StaticLat, Lng: cfg.StaticLng}}
	default:
		return nil, nil, fmt.Errorf("unknown geocoder driver %q", cfg.Driver)
	}

	if redisCfg.Addr == "" {
		return geocoder, nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     redisCfg.Addr,
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", redisCfg.Addr).Msg("Redis unavailable, geocode cache will be bypassed until it recovers")
	}

	return geocode.NewCachedGeocoder(geocoder, client, geocodeCachePrefix, cfg.CacheTTL), client, nil
}
