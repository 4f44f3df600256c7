package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	// Server settings
	ListenAddr string
	Debug      bool

	// Storage
	DataDirectory string
	Storage       string
	SQLitePath    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Uploads
	UploadTTL       time.Duration
	MaxUploadMB     int
	MaxStagedUpload int

	// Password unlocks encrypted file storage at startup without a prompt
	Password string
}

// DefaultConfig returns configuration with sensible defaults
func DefaultConfig() *Config {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	dataDir := filepath.Join(wd, "data")

	return &Config{
		ListenAddr:      ":8080",
		DataDirectory:   dataDir,
		Storage:         "file",
		SQLitePath:      filepath.Join(dataDir, "daybook.db"),
		RedisAddr:       "localhost:6379",
		UploadTTL:       30 * time.Minute,
		MaxUploadMB:     10,
		MaxStagedUpload: 32,
	}
}

// Load reads an optional .env file, then applies DAYBOOK_* environment overrides
func Load() *Config {
	// A missing .env is normal outside development
	_ = godotenv.Load()

	cfg := DefaultConfig()

	cfg.ListenAddr = getEnv("DAYBOOK_LISTEN_ADDR", cfg.ListenAddr)
	if debug := os.Getenv("DAYBOOK_DEBUG"); debug == "true" || debug == "1" {
		cfg.Debug = true
	}
	if dataDir := os.Getenv("DAYBOOK_DATA_DIR"); dataDir != "" {
		cfg.DataDirectory = dataDir
		cfg.SQLitePath = filepath.Join(dataDir, "daybook.db")
	}
	cfg.Storage = strings.ToLower(getEnv("DAYBOOK_STORAGE", cfg.Storage))
	cfg.SQLitePath = getEnv("DAYBOOK_SQLITE_PATH", cfg.SQLitePath)
	cfg.RedisAddr = getEnv("DAYBOOK_REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnv("DAYBOOK_REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = getEnvInt("DAYBOOK_REDIS_DB", cfg.RedisDB)
	cfg.UploadTTL = getEnvDuration("DAYBOOK_UPLOAD_TTL", cfg.UploadTTL)
	cfg.MaxUploadMB = getEnvInt("DAYBOOK_MAX_UPLOAD_MB", cfg.MaxUploadMB)
	cfg.MaxStagedUpload = getEnvInt("DAYBOOK_MAX_STAGED", cfg.MaxStagedUpload)
	cfg.Password = os.Getenv("DAYBOOK_PASSWORD")

	return cfg
}

// Validate checks the configuration and reports every problem at once
func (c *Config) Validate() error {
	var errs []string

	if c.ListenAddr == "" {
		errs = append(errs, "listen address cannot be empty")
	}

	switch c.Storage {
	case "file":
		if c.DataDirectory == "" {
			errs = append(errs, "data directory cannot be empty when using file storage")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			errs = append(errs, "SQLite database path cannot be empty when using sqlite storage")
		}
	case "redis":
		if c.RedisAddr == "" {
			errs = append(errs, "Redis address cannot be empty when using redis storage")
		}
		if c.RedisDB < 0 {
			errs = append(errs, fmt.Sprintf("invalid Redis database %d: must not be negative", c.RedisDB))
		}
	default:
		errs = append(errs, fmt.Sprintf("invalid storage backend '%s': must be one of [file sqlite redis]", c.Storage))
	}

	if c.UploadTTL < time.Minute {
		errs = append(errs, fmt.Sprintf("invalid upload TTL %v: must be at least 1 minute", c.UploadTTL))
	}
	if c.MaxUploadMB < 1 || c.MaxUploadMB > 512 {
		errs = append(errs, fmt.Sprintf("invalid max upload size %d MB: must be between 1 and 512", c.MaxUploadMB))
	}
	if c.MaxStagedUpload < 1 {
		errs = append(errs, fmt.Sprintf("invalid staged upload limit %d: must be at least 1", c.MaxStagedUpload))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

// MaxUploadBytes is the request body limit for spreadsheet and backup uploads
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
