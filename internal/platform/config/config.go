// Package config reads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the full service configuration.
type Config struct {
	Addr           string
	Environment    string
	LogLevel       string
	TrustedProxies string
	RequestTimeout time.Duration

	Registry  RegistryConfig
	Cache     CacheConfig
	Redis     RedisConfig
	Database  DatabaseConfig
	Kafka     KafkaConfig
	Telemetry TelemetryConfig
}

// RegistryConfig configures the EGRUL client and the extraction poll.
type RegistryConfig struct {
	BaseURL      string
	UserAgent    string
	Timeout      time.Duration
	PollAttempts int
	PollInterval time.Duration
}

// CacheConfig configures the record cache. A zero TTL disables caching.
type CacheConfig struct {
	TTL  time.Duration
	Size int
}

// RedisConfig configures the optional Redis record cache. An empty URL disables it.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig configures the optional Postgres request log.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// KafkaConfig configures request events. An empty broker list disables them.
type KafkaConfig struct {
	Brokers string
	Topic   string
	Acks    string
}

// TelemetryConfig toggles OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled bool
}

// Default returns the configuration used when no variables are set.
func Default() Config {
	return Config{
		Addr:           ":8080",
		Environment:    "dev",
		LogLevel:       "info",
		RequestTimeout: 30 * time.Second,
		Registry: RegistryConfig{
			BaseURL:      "https://egrul.nalog.ru/",
			UserAgent:    "python-requests/2.27.1",
			Timeout:      10 * time.Second,
			PollAttempts: 3,
			PollInterval: 200 * time.Millisecond,
		},
		Cache: CacheConfig{
			TTL:  5 * time.Minute,
			Size: 1024,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Kafka: KafkaConfig{
			Topic: "egrul.requests",
			Acks:  "1",
		},
	}
}

// FromEnv overlays environment variables on Default. Unparseable numbers and
// durations keep their defaults.
func FromEnv() Config {
	return fromLookup(os.LookupEnv)
}

func fromLookup(lookup func(string) (string, bool)) Config {
	cfg := Default()
	e := env{lookup: lookup}

	e.str("EGRUL_ADDR", &cfg.Addr)
	e.str("ENVIRONMENT", &cfg.Environment)
	e.str("LOG_LEVEL", &cfg.LogLevel)
	e.str("TRUSTED_PROXIES", &cfg.TrustedProxies)
	e.duration("REQUEST_TIMEOUT", &cfg.RequestTimeout)

	e.str("EGRUL_BASE_URL", &cfg.Registry.BaseURL)
	e.str("EGRUL_USER_AGENT", &cfg.Registry.UserAgent)
	e.duration("EGRUL_TIMEOUT", &cfg.Registry.Timeout)
	e.positiveInt("EGRUL_POLL_ATTEMPTS", &cfg.Registry.PollAttempts)
	e.duration("EGRUL_POLL_INTERVAL", &cfg.Registry.PollInterval)

	e.duration("EGRUL_CACHE_TTL", &cfg.Cache.TTL)
	e.positiveInt("EGRUL_CACHE_SIZE", &cfg.Cache.Size)

	e.str("REDIS_URL", &cfg.Redis.URL)
	e.positiveInt("REDIS_POOL_SIZE", &cfg.Redis.PoolSize)
	e.positiveInt("REDIS_MIN_IDLE_CONNS", &cfg.Redis.MinIdleConns)
	e.duration("REDIS_DIAL_TIMEOUT", &cfg.Redis.DialTimeout)
	e.duration("REDIS_READ_TIMEOUT", &cfg.Redis.ReadTimeout)
	e.duration("REDIS_WRITE_TIMEOUT", &cfg.Redis.WriteTimeout)

	e.str("DATABASE_URL", &cfg.Database.URL)
	e.positiveInt("DB_MAX_OPEN_CONNS", &cfg.Database.MaxOpenConns)
	e.positiveInt("DB_MAX_IDLE_CONNS", &cfg.Database.MaxIdleConns)
	e.duration("DB_CONN_MAX_LIFETIME", &cfg.Database.ConnMaxLifetime)

	e.str("KAFKA_BROKERS", &cfg.Kafka.Brokers)
	e.str("KAFKA_TOPIC", &cfg.Kafka.Topic)
	e.str("KAFKA_ACKS", &cfg.Kafka.Acks)

	e.boolean("OTEL_ENABLED", &cfg.Telemetry.Enabled)
	return cfg
}

// IsProduction reports whether ENVIRONMENT is "production" or "prod".
func (c Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

type env struct {
	lookup func(string) (string, bool)
}

func (e env) get(key string) (string, bool) {
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (e env) str(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e env) duration(key string, dst *time.Duration) {
	if v, ok := e.get(key); ok {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			*dst = d
		}
	}
}

func (e env) positiveInt(key string, dst *int) {
	if v, ok := e.get(key); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = n
		}
	}
}

func (e env) boolean(key string, dst *bool) {
	if v, ok := e.get(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
