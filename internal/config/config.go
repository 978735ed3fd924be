package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ignite/warmup-scheduler/internal/domain"
	"github.com/ignite/warmup-scheduler/internal/pkg/logger"
)

// Config holds all configuration for the scheduler
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Redis      RedisConfig      `yaml:"redis"`
	Storage    StorageConfig    `yaml:"storage"`
	Database   DatabaseConfig   `yaml:"database"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Logging    logger.Config    `yaml:"logging"`
	Identities []IdentityConfig `yaml:"identities"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port                   int      `yaml:"port"`
	Host                   string   `yaml:"host"`
	AllowedOrigins         []string `yaml:"allowed_origins"`
	ShutdownTimeoutSeconds int      `yaml:"shutdown_timeout_seconds"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	// In a container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// Addr is host:port for http.Server.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.GetHost(), c.Port)
}

// ShutdownTimeout returns the graceful shutdown budget as a duration
func (c ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// RedisConfig selects the shared store. An empty URL means the local
// storage fallback.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// StorageConfig holds the single-instance fallback store settings
type StorageConfig struct {
	LocalPath string `yaml:"local_path"` // empty keeps state in memory only
}

// DatabaseConfig points at the identity registry. An empty URL means the
// identities listed in this file are used instead.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// SchedulerConfig holds warm-up and selection settings
type SchedulerConfig struct {
	Timezone       string  `yaml:"timezone"`
	SweepSchedule  string  `yaml:"sweep_schedule"`
	DefaultProfile string  `yaml:"default_profile"`
	WeekendFactor  float64 `yaml:"weekend_factor"`
	LockTTLSeconds int     `yaml:"lock_ttl_seconds"`
	LockWaitMillis int     `yaml:"lock_wait_millis"`
	Concurrency    int     `yaml:"concurrency"`
}

// LockTTL returns the record lock expiry as a duration
func (c SchedulerConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// LockWait returns how long a record write waits for its lock
func (c SchedulerConfig) LockWait() time.Duration {
	return time.Duration(c.LockWaitMillis) * time.Millisecond
}

// IdentityConfig is a statically configured sending identity.
type IdentityConfig struct {
	ID          string    `yaml:"id"`
	Host        string    `yaml:"host"`
	User        string    `yaml:"user"`
	Active      *bool     `yaml:"active"` // defaults to true
	HourlyLimit int       `yaml:"hourly_limit"`
	DailyLimit  int       `yaml:"daily_limit"`
	CreatedAt   time.Time `yaml:"created_at"`
	SentTotal   int       `yaml:"sent_total"`
}

// ToDomain converts the entry. A missing created_at is taken as now.
func (c IdentityConfig) ToDomain(now time.Time) domain.Identity {
	id := domain.Identity{
		ID:              c.ID,
		Host:            c.Host,
		User:            c.User,
		Active:          c.Active == nil || *c.Active,
		HourlyLimit:     c.HourlyLimit,
		DailyLimit:      c.DailyLimit,
		CreatedAt:       c.CreatedAt,
		EmailsSentTotal: c.SentTotal,
	}
	if id.CreatedAt.IsZero() {
		id.CreatedAt = now
	}
	return id
}

// IdentityList converts every configured identity.
func (cfg *Config) IdentityList(now time.Time) []domain.Identity {
	out := make([]domain.Identity, 0, len(cfg.Identities))
	for _, ic := range cfg.Identities {
		out = append(out, ic.ToDomain(now))
	}
	return out
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.setDefaults()
	return &cfg, nil
}

func (cfg *Config) setDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.ShutdownTimeoutSeconds == 0 {
		cfg.Server.ShutdownTimeoutSeconds = 15
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Scheduler.SweepSchedule == "" {
		cfg.Scheduler.SweepSchedule = "1 0 * * *"
	}
	if cfg.Scheduler.DefaultProfile == "" {
		cfg.Scheduler.DefaultProfile = string(domain.ProfileStandard)
	}
	if cfg.Scheduler.WeekendFactor == 0 {
		cfg.Scheduler.WeekendFactor = 0.5
	}
	if cfg.Scheduler.LockTTLSeconds == 0 {
		cfg.Scheduler.LockTTLSeconds = 10
	}
	if cfg.Scheduler.LockWaitMillis == 0 {
		cfg.Scheduler.LockWaitMillis = 500
	}
	if cfg.Scheduler.Concurrency == 0 {
		cfg.Scheduler.Concurrency = 8
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// Validate rejects settings the scheduler cannot start with.
func (cfg *Config) Validate() error {
	var errs []error
	if p := domain.Profile(cfg.Scheduler.DefaultProfile); !p.Valid() || p == domain.ProfileCustom {
		errs = append(errs, fmt.Errorf("scheduler.default_profile %q is not a built-in profile", cfg.Scheduler.DefaultProfile))
	}
	if f := cfg.Scheduler.WeekendFactor; f < 0 || f > 1 {
		errs = append(errs, fmt.Errorf("scheduler.weekend_factor %.2f outside [0,1]", f))
	}
	if _, err := time.LoadLocation(cfg.Scheduler.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("scheduler.timezone: %w", err))
	}
	seen := make(map[string]bool, len(cfg.Identities))
	for i, ic := range cfg.Identities {
		switch {
		case ic.ID == "":
			errs = append(errs, fmt.Errorf("identities[%d]: id is required", i))
		case seen[ic.ID]:
			errs = append(errs, fmt.Errorf("identities[%d]: duplicate id %q", i, ic.ID))
		}
		seen[ic.ID] = true
		if ic.HourlyLimit < 0 || ic.DailyLimit < 0 {
			errs = append(errs, fmt.Errorf("identities[%d]: limits must not be negative", i))
		}
	}
	return errors.Join(errs...)
}

// LoadFromEnv loads configuration with environment variable overrides.
// It loads a .env file (if present) before reading env vars, so secrets
// can live in .env locally and in real env vars in production.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("STORAGE_PATH"); v != "" {
		cfg.Storage.LocalPath = v
	}
	if v := os.Getenv("SCHEDULER_TIMEZONE"); v != "" {
		cfg.Scheduler.Timezone = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("SERVER_PORT %q: %w", v, err)
		}
		cfg.Server.Port = port
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
