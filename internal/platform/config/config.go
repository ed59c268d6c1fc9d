package config

import (
	"os"
	"time"
)

// Engine captures process-level configuration for the governance engine.
type Engine struct {
	// StorageProvider selects the encrypted backend: memory, sqlite, redis
	// or postgres.
	StorageProvider string

	// SQLitePath is the vault database file used by the sqlite provider.
	SQLitePath string

	// KeyFile holds the root encryption key for the sqlite provider. The key
	// deliberately lives outside the vault; retrieving it is a separate call.
	KeyFile string

	// Redis configures the redis provider when its URL is set.
	Redis RedisConfig

	// PostgresDSN configures the postgres provider when set.
	PostgresDSN string

	// CleanupInterval is the cadence of the background retention job.
	CleanupInterval time.Duration

	// ReceiptSigningKey signs deletion receipts. Empty disables signed
	// receipts; the certificate hash is always produced.
	ReceiptSigningKey string

	Debug bool
}

// RedisConfig holds redis connection settings.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds an Engine config from environment variables so main stays lean.
func FromEnv() Engine {
	provider := os.Getenv("VEIL_STORAGE_PROVIDER")
	if provider == "" {
		provider = "memory"
	}

	sqlitePath := os.Getenv("VEIL_SQLITE_PATH")
	if sqlitePath == "" {
		sqlitePath = "veil.db"
	}

	interval := 24 * time.Hour
	if v := os.Getenv("VEIL_CLEANUP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			interval = d
		}
	}

	return Engine{
		StorageProvider: provider,
		SQLitePath:      sqlitePath,
		KeyFile:         os.Getenv("VEIL_KEY_FILE"),
		Redis: RedisConfig{
			URL:          os.Getenv("VEIL_REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		PostgresDSN:       os.Getenv("VEIL_POSTGRES_DSN"),
		CleanupInterval:   interval,
		ReceiptSigningKey: os.Getenv("VEIL_RECEIPT_SIGNING_KEY"),
		Debug:             os.Getenv("VEIL_DEBUG") == "true",
	}
}
