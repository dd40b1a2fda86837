package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/kirinyoku/fairtix/internal/domain"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Bootstrap BootstrapConfig
	Tickets   TicketsConfig
}

type ServerConfig struct {
	Host string
	Port int

	// SignatureMaxSkew bounds the age of a signed request.
	SignatureMaxSkew time.Duration
}

type StoreConfig struct {
	Backend     string
	LockTimeout time.Duration
}

// RedisConfig is optional. An empty Addr runs without cache, rate limit,
// idempotency keys and notification pub/sub.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

func (c RedisConfig) Enabled() bool { return c.Addr != "" }

type PostgresConfig struct {
	User     string
	Password string
	Name     string
	Host     string
	Port     int
	SSLMode  string

	MaxConns        int32
	ConnectAttempts int
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Name,
		c.SSLMode,
	)
}

// BootstrapConfig seeds the system state on first start.
type BootstrapConfig struct {
	Admin        domain.Identity
	FeeRecipient domain.Identity
	RefundFeeBps uint32
}

type TicketsConfig struct {
	PurchaseLimit   uint32
	RateLimit       int
	RateWindow      time.Duration
	IdempotencyTTL  time.Duration
	EventSummaryTTL time.Duration
}

func New() (*Config, error) {
	const op = "config.New"

	_ = godotenv.Load()

	var (
		cfg Config
		err error
	)

	cfg.Server.Host = getenv("SERVER_HOST", "localhost")
	if cfg.Server.Port, err = getInt("SERVER_PORT", 8080); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if cfg.Server.SignatureMaxSkew, err = getDuration("SIGNATURE_MAX_SKEW", 5*time.Minute); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cfg.Store.Backend = getenv("STORE_BACKEND", BackendMemory)
	if cfg.Store.LockTimeout, err = getDuration("LOCK_TIMEOUT", 5*time.Second); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	switch cfg.Store.Backend {
	case BackendMemory:
	case BackendPostgres:
		if cfg.Postgres, err = postgresFromEnv(); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	default:
		return nil, fmt.Errorf("%s: invalid STORE_BACKEND %q", op, cfg.Store.Backend)
	}

	cfg.Redis.Addr = os.Getenv("REDIS_ADDR")
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	if cfg.Redis.DB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if cfg.Redis.PoolSize, err = getInt("REDIS_POOL_SIZE", 0); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	adminStr := os.Getenv("ADMIN_IDENTITY")
	if adminStr == "" {
		return nil, fmt.Errorf("%s: missing ADMIN_IDENTITY", op)
	}
	if cfg.Bootstrap.Admin, err = domain.ParseIdentity(adminStr); err != nil {
		return nil, fmt.Errorf("%s: invalid ADMIN_IDENTITY: %w", op, err)
	}

	if s := os.Getenv("FEE_RECIPIENT"); s != "" {
		if cfg.Bootstrap.FeeRecipient, err = domain.ParseIdentity(s); err != nil {
			return nil, fmt.Errorf("%s: invalid FEE_RECIPIENT: %w", op, err)
		}
	}

	refundFee, err := getInt("REFUND_FEE_BPS", 500)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if refundFee < 0 || refundFee > 1000 {
		return nil, fmt.Errorf("%s: REFUND_FEE_BPS must be within [0, 1000]", op)
	}
	cfg.Bootstrap.RefundFeeBps = uint32(refundFee)

	limit, err := getInt("DEFAULT_PURCHASE_LIMIT", 2)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%s: DEFAULT_PURCHASE_LIMIT must be positive", op)
	}
	cfg.Tickets.PurchaseLimit = uint32(limit)

	if cfg.Tickets.RateLimit, err = getInt("PURCHASE_RATE_LIMIT", 10); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if cfg.Tickets.RateWindow, err = getDuration("PURCHASE_RATE_WINDOW", time.Minute); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if cfg.Tickets.IdempotencyTTL, err = getDuration("IDEMPOTENCY_TTL", 2*time.Hour); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if cfg.Tickets.EventSummaryTTL, err = getDuration("EVENT_CACHE_TTL", time.Minute); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &cfg, nil
}

func postgresFromEnv() (PostgresConfig, error) {
	port, err := getInt("POSTGRES_PORT", 5432)
	if err != nil {
		return PostgresConfig{}, err
	}

	maxConns, err := getInt("POSTGRES_MAX_CONNS", 0)
	if err != nil {
		return PostgresConfig{}, err
	}

	attempts, err := getInt("POSTGRES_CONNECT_ATTEMPTS", 5)
	if err != nil {
		return PostgresConfig{}, err
	}

	cfg := PostgresConfig{
		User:     os.Getenv("POSTGRES_USER"),
		Password: os.Getenv("POSTGRES_PASSWORD"),
		Name:     os.Getenv("POSTGRES_DB"),
		Host:     getenv("POSTGRES_HOST", "localhost"),
		Port:     port,
		SSLMode:  getenv("POSTGRES_SSLMODE", "disable"),

		MaxConns:        int32(maxConns),
		ConnectAttempts: attempts,
	}

	switch {
	case cfg.User == "":
		return cfg, fmt.Errorf("missing POSTGRES_USER")
	case cfg.Password == "":
		return cfg, fmt.Errorf("missing POSTGRES_PASSWORD")
	case cfg.Name == "":
		return cfg, fmt.Errorf("missing POSTGRES_DB")
	}

	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return v, nil
}
