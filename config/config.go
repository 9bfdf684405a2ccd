package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Surehub    SurehubConfig    `yaml:"surehub"`
	Watcher    WatcherConfig    `yaml:"watcher"`
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Log        LogConfig        `yaml:"log"`
}

// SurehubConfig holds the account and connection settings for the cloud API.
type SurehubConfig struct {
	Email           string        `yaml:"email_address"`
	Password        string        `yaml:"password"`
	Endpoint        string        `yaml:"endpoint"`
	DeviceID        string        `yaml:"device_id"`
	RateLimitPerSec float64       `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int           `yaml:"rate_limit_burst"`
	TimeoutSeconds  int           `yaml:"timeout_seconds"`
	Timeout         time.Duration `yaml:"-"`
	HTTPProxy       string        `yaml:"http_proxy"`
	AllProxy        string        `yaml:"all_proxy"`
}

// Timeline scopes a watcher can follow.
const (
	ScopeGlobal    = "global"
	ScopeHousehold = "household"
	ScopePet       = "pet"
)

// WatcherConfig holds the timeline polling configuration.
type WatcherConfig struct {
	Enabled         bool          `yaml:"enabled"`
	IntervalSeconds int           `yaml:"interval_seconds"`
	Interval        time.Duration `yaml:"-"` // Ignored by YAML parser
	PageSize        int           `yaml:"page_size"`
	Scope           string        `yaml:"scope"`
	HouseholdID     int64         `yaml:"household_id"`
	PetID           int64         `yaml:"pet_id"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RequestIPHeader string  `yaml:"request_ip_header"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"`
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// LogConfig selects the log level and handler format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads the configuration from the given path. SUREHUB_EMAIL,
// SUREHUB_PASSWORD, LOG_LEVEL and LOG_FORMAT override the file.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	cfg.Surehub.Email = getEnv("SUREHUB_EMAIL", cfg.Surehub.Email)
	cfg.Surehub.Password = getEnv("SUREHUB_PASSWORD", cfg.Surehub.Password)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() error {
	if cfg.Surehub.TimeoutSeconds <= 0 {
		cfg.Surehub.TimeoutSeconds = 30
	}
	cfg.Surehub.Timeout = time.Duration(cfg.Surehub.TimeoutSeconds) * time.Second

	if cfg.Surehub.RateLimitPerSec <= 0 {
		cfg.Surehub.RateLimitPerSec = 5
	}
	if cfg.Surehub.RateLimitBurst <= 0 {
		cfg.Surehub.RateLimitBurst = 5
	}

	if cfg.Watcher.IntervalSeconds <= 0 {
		cfg.Watcher.IntervalSeconds = 60
	}
	cfg.Watcher.Interval = time.Duration(cfg.Watcher.IntervalSeconds) * time.Second

	switch cfg.Watcher.Scope {
	case "":
		cfg.Watcher.Scope = ScopeGlobal
	case ScopeGlobal:
	case ScopeHousehold:
		if cfg.Watcher.HouseholdID <= 0 {
			return fmt.Errorf("watcher.scope %q requires watcher.household_id", cfg.Watcher.Scope)
		}
	case ScopePet:
		if cfg.Watcher.PetID <= 0 {
			return fmt.Errorf("watcher.scope %q requires watcher.pet_id", cfg.Watcher.Scope)
		}
	default:
		return fmt.Errorf("unknown watcher.scope %q", cfg.Watcher.Scope)
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}

	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 30
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		slog.Warn("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}
	return nil
}

// ScopeKey names the timeline the watcher follows, for storing its cursor.
func (w WatcherConfig) ScopeKey() string {
	switch w.Scope {
	case ScopeHousehold:
		return fmt.Sprintf("household:%d", w.HouseholdID)
	case ScopePet:
		return fmt.Sprintf("pet:%d", w.PetID)
	default:
		return ScopeGlobal
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
