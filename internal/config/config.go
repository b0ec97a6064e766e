package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port string `yaml:"port"`

	// Auth
	APIKey string `yaml:"api_key"`

	// Storage
	DatabasePath string `yaml:"database_path"`

	// Worker pool
	WorkerCount  int `yaml:"worker_count"`
	MaxQueueSize int `yaml:"max_queue_size"`

	// Size limits. MaxInputBytes caps synchronous render requests.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
	MaxInputBytes  int64 `yaml:"max_input_bytes"`

	// Chunking defaults
	DefaultChunkSize    int `yaml:"default_chunk_size"`
	DefaultChunkOverlap int `yaml:"default_chunk_overlap"`

	// Job state
	JobTTL time.Duration `yaml:"job_ttl"`

	// Rendering
	LinkBase      string `yaml:"link_base"`
	MathNumbering bool   `yaml:"math_numbering"`

	LogLevel    string        `yaml:"log_level"`
	StatsWindow time.Duration `yaml:"stats_window"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:                "8090",
		DatabasePath:        "wikidoc.db",
		WorkerCount:         4,
		MaxQueueSize:        100,
		MaxUploadBytes:      52428800, // 50MB
		MaxInputBytes:       4194304,  // 4MB
		DefaultChunkSize:    800,
		DefaultChunkOverlap: 100,
		JobTTL:              1 * time.Hour,
		LinkBase:            "/wiki/",
		LogLevel:            "info",
		StatsWindow:         1 * time.Hour,
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (if any), then environment variables. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config: %w", err)
			}
			slog.Warn("config file not found, using defaults", "path", path)
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
			slog.Info("loaded config file", "path", path)
		}
	}

	cfg.Port = envOr("PORT", cfg.Port)
	cfg.APIKey = envOr("WIKIDOC_API_KEY", cfg.APIKey)
	cfg.DatabasePath = envOr("DATABASE_PATH", cfg.DatabasePath)

	cfg.WorkerCount = envInt("WORKER_COUNT", cfg.WorkerCount)
	cfg.MaxQueueSize = envInt("MAX_QUEUE_SIZE", cfg.MaxQueueSize)

	cfg.MaxUploadBytes = envInt64("MAX_UPLOAD_BYTES", cfg.MaxUploadBytes)
	cfg.MaxInputBytes = envInt64("MAX_INPUT_BYTES", cfg.MaxInputBytes)

	cfg.DefaultChunkSize = envInt("DEFAULT_CHUNK_SIZE", cfg.DefaultChunkSize)
	cfg.DefaultChunkOverlap = envInt("DEFAULT_CHUNK_OVERLAP", cfg.DefaultChunkOverlap)

	cfg.JobTTL = envDuration("JOB_TTL", cfg.JobTTL)

	cfg.LinkBase = envOr("LINK_BASE", cfg.LinkBase)
	cfg.MathNumbering = envBool("MATH_NUMBERING", cfg.MathNumbering)

	cfg.LogLevel = strings.ToLower(envOr("LOG_LEVEL", cfg.LogLevel))
	cfg.StatsWindow = envDuration("STATS_WINDOW", cfg.StatsWindow)

	cfg.applyDefaults()
	return cfg, nil
}

// applyDefaults resets non-positive numeric settings.
func (c *Config) applyDefaults() {
	d := Default()
	if c.WorkerCount <= 0 {
		c.WorkerCount = d.WorkerCount
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = d.MaxQueueSize
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = d.MaxUploadBytes
	}
	if c.MaxInputBytes <= 0 {
		c.MaxInputBytes = d.MaxInputBytes
	}
	if c.DefaultChunkSize <= 0 {
		c.DefaultChunkSize = d.DefaultChunkSize
	}
	if c.DefaultChunkOverlap <= 0 {
		c.DefaultChunkOverlap = d.DefaultChunkOverlap
	}
	if c.JobTTL <= 0 {
		c.JobTTL = d.JobTTL
	}
	if c.StatsWindow <= 0 {
		c.StatsWindow = d.StatsWindow
	}
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []error
	if c.APIKey == "" {
		errs = append(errs, errors.New("WIKIDOC_API_KEY is required"))
	}
	if c.DatabasePath == "" {
		errs = append(errs, errors.New("DATABASE_PATH is required"))
	}
	if !strings.HasPrefix(c.LinkBase, "/") || !strings.HasSuffix(c.LinkBase, "/") {
		errs = append(errs, fmt.Errorf("LINK_BASE must start and end with '/', got %q", c.LinkBase))
	}
	if _, ok := logLevels[strings.ToLower(c.LogLevel)]; !ok {
		errs = append(errs, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got %q", c.LogLevel))
	}
	if c.DefaultChunkOverlap >= c.DefaultChunkSize {
		errs = append(errs, fmt.Errorf("DEFAULT_CHUNK_OVERLAP (%d) must be smaller than DEFAULT_CHUNK_SIZE (%d)", c.DefaultChunkOverlap, c.DefaultChunkSize))
	}
	return errors.Join(errs...)
}

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	if l, ok := logLevels[strings.ToLower(c.LogLevel)]; ok {
		return l
	}
	return slog.LevelInfo
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
