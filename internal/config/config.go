package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Port          int      `yaml:"port"`
	DataPath      string   `yaml:"data_path"`
	DBPath        string   `yaml:"db_path"`
	StaticPath    string   `yaml:"static_path"`
	JWTSecret     string   `yaml:"jwt_secret"`
	AdminUsername string   `yaml:"admin_username"`
	AdminPassword string   `yaml:"admin_password"`
	AppEnv        string   `yaml:"app_env"`
	FrontendURL   string   `yaml:"frontend_url"`
	CORSOrigins   []string `yaml:"cors_origins"`

	Logging     LoggingConfig     `yaml:"logging"`
	Cache       CacheConfig       `yaml:"cache"`
	YouTube     YouTubeConfig     `yaml:"youtube"`
	Performance PerformanceConfig `yaml:"performance"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type CacheConfig struct {
	RedisURL   string        `yaml:"redis_url"`
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
}

type YouTubeConfig struct {
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	Timeout           time.Duration `yaml:"timeout"`
	MaxTries          uint          `yaml:"max_tries"`
}

type PerformanceConfig struct {
	// Workers is the number of background upscale job workers.
	Workers int `yaml:"workers"`
	// MaxConcurrentUpscales bounds synchronous upscale requests.
	MaxConcurrentUpscales int   `yaml:"max_concurrent_upscales"`
	RateLimitPerMinute    int   `yaml:"rate_limit_per_minute"`
	MaxBodyBytes          int64 `yaml:"max_body_bytes"`
}

// Load reads an optional YAML file named by CONFIG_FILE, then applies
// environment variables on top, then validates.
func Load() (*Config, error) {
	cfg := &Config{}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if cfg.JWTSecret == "" {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			return nil, fmt.Errorf("generate JWT secret: %w", err)
		}
		cfg.JWTSecret = hex.EncodeToString(b)
		slog.Warn("JWT_SECRET not set, using random secret; sessions will not survive restarts")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setInt(&c.Port, "PORT")
	setString(&c.DataPath, "DATA_PATH")
	setString(&c.DBPath, "DB_PATH")
	setString(&c.StaticPath, "STATIC_PATH")
	setString(&c.JWTSecret, "JWT_SECRET")
	setString(&c.AdminUsername, "ADMIN_USERNAME")
	setString(&c.AdminPassword, "ADMIN_PASSWORD")
	setString(&c.AppEnv, "APP_ENV")
	setString(&c.FrontendURL, "FRONTEND_URL")
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.CORSOrigins = splitList(v)
	}

	setString(&c.Logging.Level, "LOG_LEVEL")
	setString(&c.Logging.Format, "LOG_FORMAT")

	setString(&c.Cache.RedisURL, "REDIS_URL")
	setDuration(&c.Cache.TTL, "CACHE_TTL")
	setInt(&c.Cache.MaxEntries, "CACHE_MAX_ENTRIES")

	if v := os.Getenv("YOUTUBE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.YouTube.RequestsPerSecond = f
		}
	}
	setInt(&c.YouTube.Burst, "YOUTUBE_BURST")
	setDuration(&c.YouTube.Timeout, "YOUTUBE_TIMEOUT")

	setInt(&c.Performance.Workers, "WORKERS")
	setInt(&c.Performance.MaxConcurrentUpscales, "MAX_CONCURRENT_UPSCALES")
	setInt(&c.Performance.RateLimitPerMinute, "RATE_LIMIT_PER_MINUTE")
}

// Validate rejects impossible settings and fills defaults for missing ones.
func (c *Config) Validate() error {
	if c.Port == 0 {
		c.Port = 5000
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}

	if c.AppEnv == "" {
		c.AppEnv = EnvDevelopment
	}
	c.AppEnv = strings.ToLower(c.AppEnv)
	if c.AppEnv != EnvDevelopment && c.AppEnv != EnvProduction {
		return fmt.Errorf("app_env must be %q or %q, got %q", EnvDevelopment, EnvProduction, c.AppEnv)
	}
	if c.AppEnv == EnvProduction && c.FrontendURL == "" {
		return fmt.Errorf("frontend_url is required in production")
	}

	if c.DataPath == "" {
		c.DataPath = "data"
	}
	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.DataPath, "summarizer.db")
	}
	if c.StaticPath == "" {
		c.StaticPath = filepath.Join(c.DataPath, "static")
	}
	if c.AdminUsername == "" {
		c.AdminUsername = "admin"
	}
	if c.AdminPassword == "" {
		c.AdminPassword = "admin"
	}
	if len(c.CORSOrigins) == 0 {
		c.CORSOrigins = []string{"*"}
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative")
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 6 * time.Hour
	}
	if c.Cache.MaxEntries == 0 {
		c.Cache.MaxEntries = 512
	}

	if c.YouTube.RequestsPerSecond < 0 {
		return fmt.Errorf("youtube.requests_per_second must not be negative")
	}
	if c.YouTube.RequestsPerSecond == 0 {
		c.YouTube.RequestsPerSecond = 5
	}
	if c.YouTube.Burst == 0 {
		c.YouTube.Burst = 5
	}
	if c.YouTube.Timeout == 0 {
		c.YouTube.Timeout = 15 * time.Second
	}
	if c.YouTube.MaxTries == 0 {
		c.YouTube.MaxTries = 3
	}

	if c.Performance.Workers == 0 {
		c.Performance.Workers = 2
	}
	if c.Performance.MaxConcurrentUpscales == 0 {
		c.Performance.MaxConcurrentUpscales = 2
	}
	if c.Performance.RateLimitPerMinute == 0 {
		c.Performance.RateLimitPerMinute = 30
	}
	if c.Performance.MaxBodyBytes == 0 {
		c.Performance.MaxBodyBytes = 1 << 20
	}
	if c.Performance.Workers < 0 || c.Performance.MaxConcurrentUpscales < 0 || c.Performance.RateLimitPerMinute < 0 {
		return fmt.Errorf("performance settings must not be negative")
	}

	return nil
}

// Production reports whether the server runs in production mode.
func (c *Config) Production() bool {
	return c.AppEnv == EnvProduction
}

// AllowedOrigins is FRONTEND_URL in production and CORSOrigins otherwise.
func (c *Config) AllowedOrigins() []string {
	if c.Production() {
		return []string{c.FrontendURL}
	}
	return c.CORSOrigins
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		} else {
			slog.Warn("ignoring invalid integer env", slog.String("key", key), slog.String("value", v))
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		} else {
			slog.Warn("ignoring invalid duration env", slog.String("key", key), slog.String("value", v))
		}
	}
}
