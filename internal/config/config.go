// Package config loads apicache-server settings from a YAML file with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pengqiangsheng/apicache/pkg/apicache"
	"github.com/pengqiangsheng/apicache/pkg/logging"
	"github.com/pengqiangsheng/apicache/pkg/store"
	"gopkg.in/yaml.v3"
)

// Config represents the server configuration
type Config struct {
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
	Cache  CacheConfig  `yaml:"cache"`
	Redis  RedisConfig  `yaml:"redis"`
}

// ServerConfig contains listener settings
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// CacheConfig contains engine defaults
type CacheConfig struct {
	Enabled          bool              `yaml:"enabled"`
	DefaultDuration  string            `yaml:"default_duration"`
	Debug            bool              `yaml:"debug"`
	Production       bool              `yaml:"production"`
	TrackPerformance bool              `yaml:"track_performance"`
	StripQuery       bool              `yaml:"strip_query"`
	HeaderBlacklist  []string          `yaml:"header_blacklist"`
	Headers          map[string]string `yaml:"headers"`
}

// RedisConfig selects the Redis backend. An empty URL keeps entries in
// process memory.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	Prefix       string        `yaml:"prefix"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level: string(logging.LevelInfo),
		},
		Cache: CacheConfig{
			Enabled:          true,
			DefaultDuration:  "1 hour",
			TrackPerformance: true,
		},
		Redis: RedisConfig{
			Prefix:       "apicache",
			QueryTimeout: store.DefaultQueryTimeout,
		},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config YAML: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overrides fields from the environment:
//
//	PORT, REDIS_URL, APICACHE_REDIS_PREFIX, APICACHE_LOG_LEVEL,
//	APICACHE_LOG_PRETTY, APICACHE_ENABLED, APICACHE_DEFAULT_DURATION,
//	APICACHE_DEBUG, APICACHE_PRODUCTION, APICACHE_TRACK_PERFORMANCE,
//	APICACHE_STRIP_QUERY, APICACHE_HEADER_BLACKLIST (comma separated)
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	if v, ok := lookup("REDIS_URL"); ok {
		c.Redis.URL = v
	}
	if v, ok := lookup("APICACHE_REDIS_PREFIX"); ok {
		c.Redis.Prefix = v
	}
	if v, ok := lookup("APICACHE_LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := lookup("APICACHE_DEFAULT_DURATION"); ok {
		c.Cache.DefaultDuration = v
	}
	if v, ok := lookup("APICACHE_HEADER_BLACKLIST"); ok {
		c.Cache.HeaderBlacklist = splitList(v)
	}

	flags := []struct {
		env string
		dst *bool
	}{
		{"APICACHE_LOG_PRETTY", &c.Log.Pretty},
		{"APICACHE_ENABLED", &c.Cache.Enabled},
		{"APICACHE_DEBUG", &c.Cache.Debug},
		{"APICACHE_PRODUCTION", &c.Cache.Production},
		{"APICACHE_TRACK_PERFORMANCE", &c.Cache.TrackPerformance},
		{"APICACHE_STRIP_QUERY", &c.Cache.StripQuery},
	}
	for _, f := range flags {
		v, ok := lookup(f.env)
		if !ok {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", f.env, v, err)
		}
		*f.dst = b
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive, got: %s", c.Server.ShutdownTimeout)
	}

	switch logging.LogLevel(strings.ToLower(c.Log.Level)) {
	case logging.LevelDebug, logging.LevelInfo, logging.LevelWarn, logging.LevelError:
	default:
		return fmt.Errorf("log level must be debug, info, warn or error, got: %s", c.Log.Level)
	}

	if c.Cache.DefaultDuration != "" && apicache.ParseDuration(c.Cache.DefaultDuration, 0) <= 0 {
		return fmt.Errorf("invalid cache default duration: %q", c.Cache.DefaultDuration)
	}

	if c.Redis.URL != "" && c.Redis.Prefix == "" {
		return fmt.Errorf("redis prefix is required when a redis url is set")
	}

	return nil
}

// Logging returns the logger configuration.
func (c *Config) Logging() logging.Config {
	lc := logging.DefaultConfig()
	lc.Level = logging.LogLevel(c.Log.Level)
	lc.Pretty = c.Log.Pretty
	return lc
}

// Options returns the engine options described by the cache section.
// The backend is chosen by the caller.
func (c *Config) Options() []apicache.Option {
	opts := []apicache.Option{
		apicache.WithEnabled(c.Cache.Enabled),
		apicache.WithDebug(c.Cache.Debug),
		apicache.WithProduction(c.Cache.Production),
		apicache.WithTrackPerformance(c.Cache.TrackPerformance),
		apicache.WithStripQuery(c.Cache.StripQuery),
		apicache.WithHeaderBlacklist(c.Cache.HeaderBlacklist...),
	}
	if c.Cache.DefaultDuration != "" {
		opts = append(opts, apicache.WithDefaultDurationString(c.Cache.DefaultDuration))
	}
	if len(c.Cache.Headers) > 0 {
		opts = append(opts, apicache.WithHeaders(c.Cache.Headers))
	}
	return opts
}
