package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppName     string
	Server      ServerConfig
	Log         LogConfig
	Postgres    PostgresConfig
	Redis       RedisConfig
	RateLimiter RateLimiterConfig
	Bulkhead    BulkheadConfig
	Breaker     BreakerConfig
	Idempotency IdempotencyConfig
	Scheduler   SchedulerConfig
	Fleet       FleetConfig
}

type ServerConfig struct {
	Port            int
	APIPrefix       string
	ShutdownTimeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string // "json" or "text"
}

type PostgresConfig struct {
	URL             string // DATABASE_URL takes precedence if set
	Host            string
	Port            int
	User            string
	Password        string
	DB              string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL      string // REDIS_URL takes precedence if set
	Host     string
	Port     int
	Password string
	DB       int
}

// RateLimiterConfig budgets are per client address and window. Mutations
// have their own, smaller budget.
type RateLimiterConfig struct {
	MaxRequests         int
	MutationMaxRequests int
	Window              time.Duration
}

type BulkheadConfig struct {
	MutationPool int
	QueueTimeout time.Duration
}

type BreakerConfig struct {
	Threshold int
	Cooldown  time.Duration
}

type IdempotencyConfig struct {
	TTL time.Duration
}

// SchedulerConfig holds the cron specs of the lifecycle sweeps. Specs use the
// standard five-field cron syntax.
type SchedulerConfig struct {
	Enabled        bool
	BatteryDrain   string
	BatteryCharge  string
	SettleOrders   string
	ResetDelivered string
	LockTTL        time.Duration
}

type FleetConfig struct {
	MinLoadBattery int
	SettleAfter    time.Duration
	ResetAfter     time.Duration
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return v
}

func getenvBool(key string, fallback bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return fallback
	}
	return v
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppName: getenv("APP_NAME", "drone-dispatch"),
		Server: ServerConfig{
			Port:            getenvInt("PORT", getenvInt("SERVER_PORT", 8080)),
			APIPrefix:       getenv("API_PREFIX", "/api/v1"),
			ShutdownTimeout: time.Duration(getenvInt("SHUTDOWN_TIMEOUT_SECONDS", 5)) * time.Second,
		},
		Log: LogConfig{
			Level:  getenv("LOG_LEVEL", "info"),
			Format: getenv("LOG_FORMAT", "json"),
		},
		Postgres: PostgresConfig{
			URL:             getenv("DATABASE_URL", ""),
			Host:            getenv("POSTGRES_HOST", "localhost"),
			Port:            getenvInt("POSTGRES_PORT", 5432),
			User:            getenv("POSTGRES_USER", "drone_admin"),
			Password:        getenv("POSTGRES_PASSWORD", "secure_password"),
			DB:              getenv("POSTGRES_DB", "drone_dispatch"),
			SSLMode:         getenv("POSTGRES_SSLMODE", "disable"),
			MaxOpenConns:    getenvInt("POSTGRES_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getenvInt("POSTGRES_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: time.Duration(getenvInt("POSTGRES_CONN_MAX_LIFETIME_SECONDS", 300)) * time.Second,
		},
		Redis: RedisConfig{
			URL:      getenv("REDIS_URL", ""),
			Host:     getenv("REDIS_HOST", "localhost"),
			Port:     getenvInt("REDIS_PORT", 6379),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getenvInt("REDIS_DB", 0),
		},
		RateLimiter: RateLimiterConfig{
			MaxRequests:         getenvInt("RATE_LIMIT_MAX_REQUESTS", 100),
			MutationMaxRequests: getenvInt("RATE_LIMIT_MUTATION_MAX_REQUESTS", 30),
			Window:              time.Duration(getenvInt("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second,
		},
		Bulkhead: BulkheadConfig{
			MutationPool: getenvInt("BULKHEAD_MUTATION_POOL", 50),
			QueueTimeout: time.Duration(getenvInt("BULKHEAD_QUEUE_TIMEOUT_MS", 250)) * time.Millisecond,
		},
		Breaker: BreakerConfig{
			Threshold: getenvInt("CIRCUIT_BREAKER_THRESHOLD", 5),
			Cooldown:  time.Duration(getenvInt("CIRCUIT_BREAKER_COOLDOWN_SECONDS", 30)) * time.Second,
		},
		Idempotency: IdempotencyConfig{
			TTL: time.Duration(getenvInt("IDEMPOTENCY_TTL_SECONDS", 300)) * time.Second,
		},
		Scheduler: SchedulerConfig{
			Enabled:        getenvBool("SCHEDULER_ENABLED", true),
			BatteryDrain:   getenv("CRON_BATTERY_DRAIN", "*/15 * * * *"),
			BatteryCharge:  getenv("CRON_BATTERY_CHARGE", "*/15 * * * *"),
			SettleOrders:   getenv("CRON_SETTLE_ORDERS", "*/5 * * * *"),
			ResetDelivered: getenv("CRON_RESET_DELIVERED", "*/10 * * * *"),
			LockTTL:        time.Duration(getenvInt("SCHEDULER_LOCK_TTL_SECONDS", 240)) * time.Second,
		},
		Fleet: FleetConfig{
			MinLoadBattery: getenvInt("FLEET_MIN_LOAD_BATTERY", 25),
			SettleAfter:    time.Duration(getenvInt("FLEET_SETTLE_AFTER_MINUTES", 5)) * time.Minute,
			ResetAfter:     time.Duration(getenvInt("FLEET_RESET_AFTER_MINUTES", 10)) * time.Minute,
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.Log.Format)
	}
	if c.Fleet.MinLoadBattery < 0 || c.Fleet.MinLoadBattery > 100 {
		return fmt.Errorf("FLEET_MIN_LOAD_BATTERY must be within 0..100, got %d", c.Fleet.MinLoadBattery)
	}
	if c.RateLimiter.MaxRequests <= 0 || c.RateLimiter.MutationMaxRequests <= 0 {
		return fmt.Errorf("RATE_LIMIT_MAX_REQUESTS and RATE_LIMIT_MUTATION_MAX_REQUESTS must be positive")
	}
	if c.Bulkhead.MutationPool <= 0 {
		return fmt.Errorf("BULKHEAD_MUTATION_POOL must be positive")
	}
	if c.Breaker.Threshold <= 0 {
		return fmt.Errorf("CIRCUIT_BREAKER_THRESHOLD must be positive")
	}
	return nil
}

func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DB, p.SSLMode)
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
