// Package config loads service configuration from built-in defaults, an optional .env file
// and the process environment, in that order of precedence (environment wins).
package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Logging   LoggingConfig   `koanf:"logging"`
	Limitless LimitlessConfig `koanf:"limitless"`
	TCGplayer TCGplayerConfig `koanf:"tcgplayer"`
	Sync      SyncConfig      `koanf:"sync"`
	Schedule  ScheduleConfig  `koanf:"schedule"`
	Archive   ArchiveConfig   `koanf:"archive"`
}

type ServerConfig struct {
	Port           int    `koanf:"port"`
	AdminToken     string `koanf:"admin_token"`
	AllowedOrigins string `koanf:"allowed_origins"` // comma separated
}

type DatabaseConfig struct {
	URL string `koanf:"url"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// LimitlessConfig points at the tournament results site.
type LimitlessConfig struct {
	BaseURL  string `koanf:"base_url"`
	PageSize int    `koanf:"page_size"`
}

// TCGplayerConfig holds catalog/pricing API settings. Credentials are optional here and
// only checked when the first authenticated call is made.
type TCGplayerConfig struct {
	PublicKey         string  `koanf:"public_key"`
	PrivateKey        string  `koanf:"private_key"`
	APIURL            string  `koanf:"api_url"`
	TokenURL          string  `koanf:"token_url"`
	CategoryID        int     `koanf:"category_id"`
	RequestsPerSecond float64 `koanf:"requests_per_second"` // 0 = unlimited
}

type SyncConfig struct {
	Delay         time.Duration `koanf:"delay"`
	PageSize      int           `koanf:"page_size"`
	ChunkSize     int           `koanf:"chunk_size"`
	PriceBatch    int           `koanf:"price_batch"`
	RetryAttempts int           `koanf:"retry_attempts"`
	RetryDelay    time.Duration `koanf:"retry_delay"`
	DeckLimit     int           `koanf:"deck_limit"`
}

// ScheduleConfig sets how often each pipeline runs in the server process. 0 disables a job.
type ScheduleConfig struct {
	Tournaments time.Duration `koanf:"tournaments"`
	Decks       time.Duration `koanf:"decks"`
	Catalog     time.Duration `koanf:"catalog"`
	Prices      time.Duration `koanf:"prices"`
}

// ArchiveConfig controls where raw scraped pages are kept: "none", "local" or "r2".
type ArchiveConfig struct {
	Mode            string `koanf:"mode"`
	Dir             string `koanf:"dir"`
	AccountID       string `koanf:"account_id"`
	AccessKeyID     string `koanf:"access_key_id"`
	AccessKeySecret string `koanf:"access_key_secret"`
	Bucket          string `koanf:"bucket"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           5300,
			AllowedOrigins: "http://localhost:3000",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Limitless: LimitlessConfig{
			BaseURL:  "https://onepiece.limitlesstcg.com",
			PageSize: 100,
		},
		TCGplayer: TCGplayerConfig{
			APIURL:     "https://api.tcgplayer.com",
			TokenURL:   "https://api.tcgplayer.com/token",
			CategoryID: 68,
		},
		Sync: SyncConfig{
			Delay:         2 * time.Second,
			PageSize:      100,
			ChunkSize:     25,
			PriceBatch:    100,
			RetryAttempts: 3,
			RetryDelay:    time.Second,
			DeckLimit:     20,
		},
		Schedule: ScheduleConfig{
			Tournaments: 6 * time.Hour,
			Decks:       6 * time.Hour,
			Catalog:     24 * time.Hour,
			Prices:      time.Hour,
		},
		Archive: ArchiveConfig{
			Mode: "none",
			Dir:  "archive",
		},
	}
}

// envKeys maps environment variable names to koanf paths.
var envKeys = map[string]string{
	"database_url":                  "database.url",
	"port":                          "server.port",
	"admin_api_token":               "server.admin_token",
	"allowed_origins":               "server.allowed_origins",
	"log_level":                     "logging.level",
	"log_format":                    "logging.format",
	"limitless_base_url":            "limitless.base_url",
	"limitless_page_size":           "limitless.page_size",
	"tcgplayer_public_key":          "tcgplayer.public_key",
	"tcgplayer_private_key":         "tcgplayer.private_key",
	"tcgplayer_api_url":             "tcgplayer.api_url",
	"tcgplayer_token_url":           "tcgplayer.token_url",
	"tcgplayer_category_id":         "tcgplayer.category_id",
	"tcgplayer_requests_per_second": "tcgplayer.requests_per_second",
	"sync_delay":                    "sync.delay",
	"sync_page_size":                "sync.page_size",
	"sync_chunk_size":               "sync.chunk_size",
	"sync_price_batch":              "sync.price_batch",
	"sync_retry_attempts":           "sync.retry_attempts",
	"sync_retry_delay":              "sync.retry_delay",
	"sync_deck_limit":               "sync.deck_limit",
	"schedule_tournaments":          "schedule.tournaments",
	"schedule_decks":                "schedule.decks",
	"schedule_catalog":              "schedule.catalog",
	"schedule_prices":               "schedule.prices",
	"archive_mode":                  "archive.mode",
	"archive_dir":                   "archive.dir",
	"cloudflare_account_id":         "archive.account_id",
	"r2_access_key_id":              "archive.access_key_id",
	"r2_access_key_secret":          "archive.access_key_secret",
	"r2_bucket_name":                "archive.bucket",
}

// envTransform returns the koanf path for a known variable and "" (ignored) for the rest.
func envTransform(key string) string {
	return envKeys[strings.ToLower(key)]
}

// Load reads .env (if present) and builds the configuration.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail deep inside a sync run.
func (c *Config) Validate() error {
	if c.Limitless.PageSize <= 0 || c.Limitless.PageSize > 100 {
		return fmt.Errorf("limitless page size must be between 1 and 100, got %d", c.Limitless.PageSize)
	}
	if c.Sync.PageSize <= 0 || c.Sync.PageSize > 100 {
		return fmt.Errorf("sync page size must be between 1 and 100, got %d", c.Sync.PageSize)
	}
	if c.Sync.ChunkSize <= 0 {
		return fmt.Errorf("sync chunk size must be positive, got %d", c.Sync.ChunkSize)
	}
	if c.Sync.Delay < 0 {
		return fmt.Errorf("sync delay must not be negative")
	}
	switch c.Archive.Mode {
	case "none", "local", "r2":
	default:
		return fmt.Errorf("unknown archive mode %q (want none, local or r2)", c.Archive.Mode)
	}
	return nil
}
