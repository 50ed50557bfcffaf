package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Version     string `koanf:"version"`
	Environment string `koanf:"environment" validate:"oneof=development staging production"`
	LogLevel    string `koanf:"log_level" validate:"oneof=debug info warn error"`

	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	Graph     GraphConfig     `koanf:"graph"`
	Archive   ArchiveConfig   `koanf:"archive"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"min=1"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"min=0"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

type RedisConfig struct {
	URL      string        `koanf:"url"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db"`
	CacheTTL time.Duration `koanf:"cache_ttl"`
}

// GraphConfig tunes the MS Graph calendar backend.
type GraphConfig struct {
	BaseURL           string        `koanf:"base_url" validate:"required,url"`
	TenantID          string        `koanf:"tenant_id"`
	ClientID          string        `koanf:"client_id"`
	PageSize          int           `koanf:"page_size" validate:"min=1,max=999"`
	RequestsPerSecond float64       `koanf:"requests_per_second" validate:"gt=0"`
	Burst             int           `koanf:"burst" validate:"min=1"`
	Timeout           time.Duration `koanf:"timeout"`
	TokenSkew         time.Duration `koanf:"token_skew"`
}

// ArchiveConfig tunes archival runs.
type ArchiveConfig struct {
	Workers     int           `koanf:"workers" validate:"min=1"`
	RunLockTTL  time.Duration `koanf:"run_lock_ttl"`
	MetricsAddr string        `koanf:"metrics_addr"`
}

type TelemetryConfig struct {
	OTLPEndpoint string  `koanf:"otlp_endpoint"`
	SampleRate   float64 `koanf:"sample_rate" validate:"min=0,max=1"`
}

var validate = validator.New()

// Load layers defaults, the optional configs/config.yaml, then AA_-prefixed
// environment variables, and validates the merged result.
func Load() (*Config, error) {
	return LoadFrom("configs/config.yaml")
}

func LoadFrom(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := &Config{
		Version:     "dev",
		Environment: "development",
		LogLevel:    "info",
		Database: DatabaseConfig{
			URL:             "postgres://localhost:5432/admin_assistant?sslmode=disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			URL:      "localhost:6379",
			CacheTTL: 15 * time.Minute,
		},
		Graph: GraphConfig{
			BaseURL:           "https://graph.microsoft.com/v1.0",
			PageSize:          250,
			RequestsPerSecond: 4,
			Burst:             8,
			Timeout:           30 * time.Second,
			TokenSkew:         2 * time.Minute,
		},
		Archive: ArchiveConfig{
			Workers:     4,
			RunLockTTL:  15 * time.Minute,
			MetricsAddr: ":9464",
		},
		Telemetry: TelemetryConfig{
			SampleRate: 0.1,
		},
	}

	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	// The config file is optional; environment variables alone are enough.
	_ = k.Load(file.Provider(path), yaml.Parser())

	// Double underscore nests: AA_DATABASE__MAX_OPEN_CONNS → database.max_open_conns.
	if err := k.Load(env.Provider("AA_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "AA_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}
