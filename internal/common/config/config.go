package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

const (
	StoreBackendFile  = "file"
	StoreBackendRedis = "redis"

	NotifySinkLog   = "log"
	NotifySinkRedis = "redis"
)

type Config struct {
	Debug bool `env:"DEBUG" envDefault:"false"`

	Server struct {
		Port   int    `env:"PORT" envDefault:"8080"`
		Origin string `env:"ORIGIN" envDefault:"http://localhost:3000"`
	}

	Store struct {
		// file: one JSON document per domain under DataDir; redis: one key per domain.
		Backend string `env:"STORE_BACKEND" envDefault:"file"`
		DataDir string `env:"DATA_DIR" envDefault:"./data"`
	}

	Redis struct {
		Host     string `env:"REDIS_HOST" envDefault:"localhost"`
		Port     int    `env:"REDIS_PORT" envDefault:"6379"`
		Password string `env:"REDIS_PASSWORD" envDefault:""`
		DB       int    `env:"REDIS_DB" envDefault:"0"`
	}

	Expiry struct {
		InitialDelay time.Duration `env:"EXPIRY_INITIAL_DELAY" envDefault:"10s"`
		Interval     time.Duration `env:"EXPIRY_INTERVAL" envDefault:"30s"`
		StopTimeout  time.Duration `env:"EXPIRY_STOP_TIMEOUT" envDefault:"5s"`
	}

	Debounce struct {
		Window        time.Duration `env:"DEBOUNCE_WINDOW" envDefault:"2s"`
		ActionTimeout time.Duration `env:"DEBOUNCE_ACTION_TIMEOUT" envDefault:"10s"`
	}

	Notify struct {
		Sink         string `env:"NOTIFY_SINK" envDefault:"log"`
		Stream       string `env:"NOTIFY_STREAM" envDefault:"events:notifications"`
		StreamMaxLen int64  `env:"NOTIFY_STREAM_MAXLEN" envDefault:"10000"`
	}

	Activity struct {
		Enabled   bool          `env:"ACTIVITY_WORKER_ENABLED" envDefault:"false"`
		Stream    string        `env:"ACTIVITY_STREAM" envDefault:"bot:events"`
		Group     string        `env:"ACTIVITY_GROUP" envDefault:"event_engine_consumers"`
		Consumer  string        `env:"ACTIVITY_CONSUMER" envDefault:"event_worker_1"`
		// Idle members drop out of the cache after MemberTTL; 0 keeps them forever.
		MemberTTL time.Duration `env:"MEMBER_CACHE_TTL" envDefault:"720h"`
	}

	Limits struct {
		MaxWinners int `env:"MAX_WINNERS" envDefault:"20"`
	}
}

// Load reads the optional .env file and parses the environment into Config.
func Load() (*Config, error) {
	// The .env file is optional; in production variables are set directly.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerated and numeric settings.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case StoreBackendFile, StoreBackendRedis:
	default:
		return fmt.Errorf("invalid STORE_BACKEND %q: want %s or %s", c.Store.Backend, StoreBackendFile, StoreBackendRedis)
	}
	switch c.Notify.Sink {
	case NotifySinkLog, NotifySinkRedis:
	default:
		return fmt.Errorf("invalid NOTIFY_SINK %q: want %s or %s", c.Notify.Sink, NotifySinkLog, NotifySinkRedis)
	}
	if c.Expiry.Interval <= 0 {
		return fmt.Errorf("invalid EXPIRY_INTERVAL %s: must be positive", c.Expiry.Interval)
	}
	if c.Debounce.Window <= 0 {
		return fmt.Errorf("invalid DEBOUNCE_WINDOW %s: must be positive", c.Debounce.Window)
	}
	if c.Limits.MaxWinners < 1 {
		return fmt.Errorf("invalid MAX_WINNERS %d: must be at least 1", c.Limits.MaxWinners)
	}
	return nil
}

// RedisAddr returns host:port of the configured redis server.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// NeedsRedis reports whether any configured component talks to redis.
func (c *Config) NeedsRedis() bool {
	return c.Store.Backend == StoreBackendRedis ||
		c.Notify.Sink == NotifySinkRedis ||
		c.Activity.Enabled
}
