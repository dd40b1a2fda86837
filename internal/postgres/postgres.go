package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Config struct {
	DSN      string
	MaxConns int32
	// ConnectAttempts bounds how often New retries an unreachable server.
	ConnectAttempts int
}

// New opens a pool and waits until the server answers a ping. Every
// connection identifies itself as fairtix in pg_stat_activity.
func New(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	const op = "postgres.New"

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 30 * time.Second
	poolCfg.ConnConfig.RuntimeParams["application_name"] = "fairtix"

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	attempts := max(cfg.ConnectAttempts, 1)
	backoff := 500 * time.Millisecond

	for i := 1; ; i++ {
		err = ping(ctx, pool)
		if err == nil {
			return pool, nil
		}
		if i == attempts {
			break
		}

		select {
		case <-ctx.Done():
			pool.Close()
			return nil, fmt.Errorf("%s:%w", op, ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	pool.Close()
	return nil, fmt.Errorf("%s: after %d attempts:%w", op, attempts, err)
}

func ping(ctx context.Context, pool *pgxpool.Pool) error {
	ctxPing, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return pool.Ping(ctxPing)
}
