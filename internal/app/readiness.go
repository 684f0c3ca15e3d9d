package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/hrselector/backend/internal/config"
)

// BuildReadinessChecks returns the dependency probes used by /readyz.
// redisClient may be nil when the limiter is disabled.
func BuildReadinessChecks(cfg config.Config, pool *pgxpool.Pool, redisClient *redis.Client) (dbCheck, tikaCheck, redisCheck func(context.Context) error) {
	dbCheck = func(ctx context.Context) error {
		return pool.Ping(ctx)
	}
	tikaCheck = func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.TikaURL+"/version", nil)
		if err != nil {
			return err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("tika status %d", resp.StatusCode)
		}
		return nil
	}
	if redisClient != nil {
		redisCheck = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	return dbCheck, tikaCheck, redisCheck
}
