package redisx

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config addresses the Redis server. Addr is either host:port or a
// redis:// URL; a URL overrides Password and DB.
type Config struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

func (c Config) options() (*redis.Options, error) {
	var opts *redis.Options
	if strings.HasPrefix(c.Addr, "redis://") || strings.HasPrefix(c.Addr, "rediss://") {
		parsed, err := redis.ParseURL(c.Addr)
		if err != nil {
			return nil, err
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     c.Addr,
			Password: c.Password,
			DB:       c.DB,
		}
	}

	if c.PoolSize > 0 {
		opts.PoolSize = c.PoolSize
	}
	opts.ClientName = "fairtix"
	opts.DialTimeout = 3 * time.Second

	return opts, nil
}

// New connects and pings the server.
func New(ctx context.Context, cfg Config) (*redis.Client, error) {
	const op = "redisx.New"

	opts, err := cfg.options()
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	client := redis.NewClient(opts)

	ctxPing, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := client.Ping(ctxPing).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return client, nil
}
