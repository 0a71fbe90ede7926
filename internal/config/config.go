package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/adamjohnlea/my-music-collection-sub000/internal/constants"
)

// ConfigFileEnv names the environment variable pointing at an optional TOML file.
const ConfigFileEnv = "MMC_CONFIG"

// Config holds all application configuration
type Config struct {
	Port            string        `toml:"port"`
	DBPath          string        `toml:"db_path"`
	ImagesDir       string        `toml:"images_dir"`
	BaseURL         string        `toml:"base_url"`
	Token           string        `toml:"token"`
	Username        string        `toml:"username"`
	UserAgent       string        `toml:"user_agent"`
	LogLevel        string        `toml:"log_level"`
	LogFormat       string        `toml:"log_format"`
	StateBackend    string        `toml:"state_backend"` // sqlite or redis
	RedisURL        string        `toml:"redis_url"`
	PerPage         int           `toml:"per_page"`
	RefreshMaxPages int           `toml:"refresh_max_pages"`
	RetryMax        int           `toml:"retry_max"`
	ImageDailyCap   int           `toml:"image_daily_cap"`
	PushNotes       bool          `toml:"push_notes"`
	HTTPTimeout     time.Duration `toml:"http_timeout"`
	WorkerInterval  time.Duration `toml:"worker_interval"`
}

// Default returns the built-in configuration before any file or environment overrides.
func Default() *Config {
	return &Config{
		Port:            constants.DefaultPort,
		DBPath:          constants.DefaultDBPath,
		ImagesDir:       constants.DefaultImagesDir,
		BaseURL:         constants.DefaultBaseURL,
		UserAgent:       constants.DefaultUserAgent,
		LogLevel:        "info",
		LogFormat:       "text",
		StateBackend:    constants.DefaultStateBackend,
		RedisURL:        constants.DefaultRedisURL,
		PerPage:         constants.DefaultPerPage,
		RefreshMaxPages: constants.DefaultRefreshMaxPages,
		RetryMax:        constants.DefaultRetryMax,
		ImageDailyCap:   constants.DefaultImageDailyCap,
		HTTPTimeout:     constants.DefaultHTTPTimeout,
		WorkerInterval:  constants.DefaultWorkerInterval,
	}
}

// Load builds the configuration from defaults, the optional TOML file named by
// MMC_CONFIG, and finally environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	if _, err := toml.DecodeFile(path, c); err != nil {
		return fmt.Errorf("reading config from %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Port = getEnv("PORT", c.Port)
	c.DBPath = getEnv("DB_PATH", c.DBPath)
	c.ImagesDir = getEnv("IMAGES_DIR", c.ImagesDir)
	c.BaseURL = getEnv("DISCOGS_BASE_URL", c.BaseURL)
	c.Token = getEnv("DISCOGS_TOKEN", c.Token)
	c.Username = getEnv("DISCOGS_USERNAME", c.Username)
	c.UserAgent = getEnv("USER_AGENT", c.UserAgent)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	c.StateBackend = getEnv("STATE_BACKEND", c.StateBackend)
	c.RedisURL = getEnv("REDIS_URL", c.RedisURL)

	var errs []string
	intVars := []struct {
		key string
		dst *int
	}{
		{"PER_PAGE", &c.PerPage},
		{"REFRESH_MAX_PAGES", &c.RefreshMaxPages},
		{"RETRY_MAX", &c.RetryMax},
		{"IMAGE_DAILY_CAP", &c.ImageDailyCap},
	}
	for _, v := range intVars {
		raw, ok := os.LookupEnv(v.key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s must be a number, got: %s", v.key, raw))
			continue
		}
		*v.dst = n
	}

	if raw, ok := os.LookupEnv("PUSH_NOTES"); ok {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			errs = append(errs, fmt.Sprintf("PUSH_NOTES must be a boolean, got: %s", raw))
		} else {
			c.PushNotes = b
		}
	}

	durVars := []struct {
		key string
		dst *time.Duration
	}{
		{"HTTP_TIMEOUT", &c.HTTPTimeout},
		{"WORKER_INTERVAL", &c.WorkerInterval},
	}
	for _, v := range durVars {
		raw, ok := os.LookupEnv(v.key)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s must be a duration, got: %s", v.key, raw))
			continue
		}
		*v.dst = d
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration parsing failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Validate validates the configuration and returns detailed errors
func (c *Config) Validate() error {
	var errors []string

	// Validate Port
	if c.Port == "" {
		errors = append(errors, "PORT cannot be empty")
	} else {
		port, err := strconv.Atoi(c.Port)
		if err != nil {
			errors = append(errors, fmt.Sprintf("PORT must be a valid number, got: %s", c.Port))
		} else if port < 1 || port > 65535 {
			errors = append(errors, fmt.Sprintf("PORT must be between 1 and 65535, got: %d", port))
		}
	}

	if c.DBPath == "" {
		errors = append(errors, "DB_PATH cannot be empty")
	}

	if c.ImagesDir == "" {
		errors = append(errors, "IMAGES_DIR cannot be empty")
	}

	if c.BaseURL == "" {
		errors = append(errors, "DISCOGS_BASE_URL cannot be empty")
	} else if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errors = append(errors, fmt.Sprintf("DISCOGS_BASE_URL is not a valid URL: %s", c.BaseURL))
	}

	if c.Username == "" {
		errors = append(errors, "DISCOGS_USERNAME cannot be empty")
	}

	if c.UserAgent == "" {
		errors = append(errors, "USER_AGENT cannot be empty")
	}

	if c.PerPage < 1 || c.PerPage > 100 {
		errors = append(errors, fmt.Sprintf("PER_PAGE must be between 1 and 100, got: %d", c.PerPage))
	}

	if c.RefreshMaxPages < 1 {
		errors = append(errors, fmt.Sprintf("REFRESH_MAX_PAGES must be positive, got: %d", c.RefreshMaxPages))
	}

	if c.RetryMax < 0 {
		errors = append(errors, fmt.Sprintf("RETRY_MAX cannot be negative, got: %d", c.RetryMax))
	}

	if c.ImageDailyCap < 0 {
		errors = append(errors, fmt.Sprintf("IMAGE_DAILY_CAP cannot be negative, got: %d", c.ImageDailyCap))
	}

	if c.HTTPTimeout <= 0 {
		errors = append(errors, "HTTP_TIMEOUT must be positive")
	}

	switch c.StateBackend {
	case "sqlite":
	case "redis":
		if c.RedisURL == "" {
			errors = append(errors, "REDIS_URL cannot be empty when STATE_BACKEND=redis")
		}
	default:
		errors = append(errors, fmt.Sprintf("STATE_BACKEND must be one of: sqlite, redis, got: %s", c.StateBackend))
	}

	// Validate LogLevel
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: debug, info, warn, error, got: %s", c.LogLevel))
	}

	// Validate LogFormat
	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validLogFormats[c.LogFormat] {
		errors = append(errors, fmt.Sprintf("LOG_FORMAT must be one of: text, json, got: %s", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
