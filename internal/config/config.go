package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Addr                  string  `yaml:"addr"`
		JWTSecret             string  `yaml:"jwt_secret"`
		JWTIssuer             string  `yaml:"jwt_issuer"`
		TokenTTLMinutes       int     `yaml:"token_ttl_minutes"`
		RateLimitPerSecond    float64 `yaml:"rate_limit_per_second"`
		RateLimitBurst        int     `yaml:"rate_limit_burst"`
		ClassroomCacheSeconds int     `yaml:"classroom_cache_seconds"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		IntervalHours int    `yaml:"interval_hours"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Client struct {
		BaseURL        string `yaml:"base_url"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
		TokenPath      string `yaml:"token_path"`
	} `yaml:"client"`

	Redis struct {
		Address         string `yaml:"address"`
		Password        string `yaml:"password"`
		DB              int    `yaml:"db"`
		CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
	} `yaml:"redis"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
	} `yaml:"monitoring"`

	Seed struct {
		ClassroomsPath       string `yaml:"classrooms_path"`
		WatchIntervalSeconds int    `yaml:"watch_interval_seconds"`
	} `yaml:"seed"`
}

var ErrMissingJWTSecret = errors.New("server.jwt_secret must be set")

// LoadEnv reads a .env file into the process environment when one exists.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.JWTIssuer == "" {
		cfg.Server.JWTIssuer = "classbook"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/classbook.db"
	}
	if cfg.Client.BaseURL == "" {
		cfg.Client.BaseURL = "http://localhost:8080"
	}

	return &cfg, nil
}

// PrepareDatabaseDir creates the parent directory of the database file.
func (c *Config) PrepareDatabaseDir() error {
	return os.MkdirAll(filepath.Dir(c.Database.Path), 0o755)
}

// ValidateServer checks the settings the backend cannot start without.
func (c *Config) ValidateServer() error {
	if c.Server.JWTSecret == "" {
		return ErrMissingJWTSecret
	}
	return nil
}

func (c *Config) TokenTTL() time.Duration {
	if c.Server.TokenTTLMinutes <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Server.TokenTTLMinutes) * time.Minute
}

// RateLimit returns the per-client request rate and burst; zero rate disables limiting.
func (c *Config) RateLimit() (perSecond float64, burst int) {
	perSecond = c.Server.RateLimitPerSecond
	burst = c.Server.RateLimitBurst
	if perSecond > 0 && burst <= 0 {
		burst = int(perSecond) + 1
	}
	return perSecond, burst
}

func (c *Config) ClassroomCacheTTL() time.Duration {
	if c.Server.ClassroomCacheSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Server.ClassroomCacheSeconds) * time.Second
}

func (c *Config) ClientTimeout() time.Duration {
	if c.Client.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Client.TimeoutSeconds) * time.Second
}

// TokenPath returns where the client persists its bearer token.
func (c *Config) TokenPath() string {
	if c.Client.TokenPath != "" {
		return c.Client.TokenPath
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "classbook", "token")
}

func (c *Config) RedisCacheTTL() time.Duration {
	if c.Redis.Address == "" || c.Redis.CacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Redis.CacheTTLSeconds) * time.Second
}

func (c *Config) SeedWatchInterval() time.Duration {
	if c.Seed.WatchIntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Seed.WatchIntervalSeconds) * time.Second
}
