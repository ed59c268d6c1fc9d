package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"veil/internal/audit"
	"veil/internal/compliance"
	"veil/internal/consent"
	"veil/internal/platform/config"
	"veil/internal/platform/logger"
	"veil/internal/platform/metrics"
	platformredis "veil/internal/platform/redis"
	"veil/internal/storage"
	"veil/internal/storage/keysource"
	"veil/internal/storage/provider/memory"
	"veil/internal/storage/provider/postgresvault"
	"veil/internal/storage/provider/redisvault"
	"veil/internal/storage/provider/sqlitevault"
)

// main wires the storage provider, vault, and managers, then idles until a
// shutdown signal. Business logic lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.Debug)

	if err := run(cfg, log); err != nil {
		log.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Engine, log *slog.Logger) error {
	provider, closer, err := buildProvider(cfg)
	if err != nil {
		return fmt.Errorf("build storage provider: %w", err)
	}
	if closer != nil {
		defer closer.Close()
	}

	mx := metrics.New()
	vault := storage.NewVault(provider,
		storage.WithLogger(log),
		storage.WithMetrics(mx),
		storage.WithCleanupInterval(cfg.CleanupInterval),
	)
	defer vault.Dispose()

	recorder := audit.NewRecorder(vault, audit.WithLogger(log), audit.WithMetrics(mx))

	consents, err := consent.NewManager(vault, recorder,
		consent.WithLogger(log), consent.WithMetrics(mx))
	if err != nil {
		return fmt.Errorf("build consent manager: %w", err)
	}

	complianceOpts := []compliance.Option{
		compliance.WithLogger(log),
		compliance.WithMetrics(mx),
	}
	if cfg.ReceiptSigningKey != "" {
		complianceOpts = append(complianceOpts, compliance.WithReceiptSigning(cfg.ReceiptSigningKey))
	}
	if _, err := compliance.NewManager(vault, consents, recorder, complianceOpts...); err != nil {
		return fmt.Errorf("build compliance manager: %w", err)
	}

	// Surface swallowed audit writes; losing audit entries silently would
	// defeat the point of keeping them.
	go func() {
		for failure := range recorder.Failures() {
			log.Warn("audit entry dropped",
				"event", failure.Entry.EventType, "error", failure.Err)
		}
	}()

	log.Info("veil engine started",
		"provider", cfg.StorageProvider, "cleanupInterval", cfg.CleanupInterval)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("veil engine stopping")
	return nil
}

// buildProvider selects the encrypted backend. The returned closer is nil
// for providers without a connection to release.
func buildProvider(cfg config.Engine) (storage.SecureStorageProvider, io.Closer, error) {
	switch cfg.StorageProvider {
	case "memory":
		return memory.New(), nil, nil
	case "sqlite":
		keyFile := cfg.KeyFile
		if keyFile == "" {
			keyFile = cfg.SQLitePath + ".key"
		}
		p, err := sqlitevault.Open(cfg.SQLitePath, keysource.NewFile(keyFile))
		if err != nil {
			return nil, nil, err
		}
		return p, p, nil
	case "redis":
		client, err := platformredis.New(cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		if client == nil {
			return nil, nil, fmt.Errorf("redis provider selected but VEIL_REDIS_URL is not set")
		}
		return redisvault.New(client), client, nil
	case "postgres":
		p, err := postgresvault.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return p, p, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage provider %q", cfg.StorageProvider)
	}
}
