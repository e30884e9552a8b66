package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type ServerConfig struct {
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	AdminAPIKey    string        `yaml:"admin_api_key"`  // bearer key for the plan catalog API
	WebhookSecret  string        `yaml:"webhook_secret"` // shared secret for /internal/subscription-events
	JWTSecret      string        `yaml:"jwt_secret"`     // HMAC secret of the externally issued session tokens
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PlanTTL  time.Duration `yaml:"plan_ttl"` // plan catalog cache TTL
}

type LimitsConfig struct {
	ConsumePerMinute int `yaml:"consume_per_minute"` // per-user POST /api/credits ceiling
}

type SweepConfig struct {
	Interval  time.Duration `yaml:"interval"`
	BatchSize int           `yaml:"batch_size"`
}

type Config struct {
	Log      LogConfig      `yaml:"log"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Limits   LimitsConfig   `yaml:"limits"`
	Sweep    SweepConfig    `yaml:"sweep"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RequestTimeout <= 0 {
		cfg.Server.RequestTimeout = 15 * time.Second
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Redis.PlanTTL <= 0 {
		cfg.Redis.PlanTTL = time.Hour
	}
	if cfg.Limits.ConsumePerMinute <= 0 {
		cfg.Limits.ConsumePerMinute = 60
	}
	if cfg.Sweep.Interval <= 0 {
		cfg.Sweep.Interval = time.Hour
	}
	if cfg.Sweep.BatchSize <= 0 {
		cfg.Sweep.BatchSize = 200
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Server.JWTSecret == "" {
		return nil, errors.New("server.jwt_secret is required")
	}
	if cfg.Server.WebhookSecret == "" {
		return nil, errors.New("server.webhook_secret is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
